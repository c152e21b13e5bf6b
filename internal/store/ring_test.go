package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		push     []int
		want     []int
	}{
		{"empty", 3, nil, []int{}},
		{"partial", 3, []int{1, 2}, []int{1, 2}},
		{"full", 3, []int{1, 2, 3}, []int{1, 2, 3}},
		{"wraps", 3, []int{1, 2, 3, 4, 5}, []int{3, 4, 5}},
		{"capacity clamped to one", 0, []int{1, 2}, []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRing[int](tt.capacity)
			for _, v := range tt.push {
				r.Push(v)
			}
			assert.Equal(t, tt.want, r.Items())
			assert.Equal(t, len(tt.want), r.Len())
		})
	}
}

func TestRingReset(t *testing.T) {
	r := NewRing[string](2)
	r.Push("a")
	r.Push("b")
	r.Push("c")
	r.Reset()

	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Items())

	r.Push("d")
	assert.Equal(t, []string{"d"}, r.Items())
}

func TestRingItemsIsCopy(t *testing.T) {
	r := NewRing[int](2)
	r.Push(1)
	items := r.Items()
	items[0] = 99
	assert.Equal(t, []int{1}, r.Items())
}
