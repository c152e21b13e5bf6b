package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestTruncateWithEllipsis(t *testing.T) {
	tests := []struct {
		name  string
		input string
		width int
		want  string
	}{
		{"fits", "nginx", 10, "nginx"},
		{"exact", "nginx", 5, "nginx"},
		{"cut", "my-long-container-name", 10, "my-long..."},
		{"tiny width", "postgres", 3, "pos"},
		{"zero width", "postgres", 0, ""},
		{"wide runes", "日本語のコンテナ", 7, "日本..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateWithEllipsis(tt.input, tt.width)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, lipgloss.Width(got), max(tt.width, 0))
		})
	}
}

func TestPadding(t *testing.T) {
	styled := greenStyle.Render("●")

	assert.Equal(t, 5, lipgloss.Width(padRight(styled, 5)))
	assert.Equal(t, 5, lipgloss.Width(padLeft("1.5%", 5)))
	assert.Equal(t, "  ab  ", padCenter("ab", 6))
	assert.Equal(t, "toolong", padRight("toolong", 3), "padding never truncates")
}

func TestTableComponentKeepsBordersAligned(t *testing.T) {
	headers := []TableHeader{
		{Label: "", Width: 2},
		{Label: "NAME", Width: 12},
		{Label: "CPU", Width: 7, AlignRight: true},
	}
	rows := []TableRow{
		{Cells: []string{greenStyle.Render("●"), "web", "1.2%"}},
		{Cells: []string{grayStyle.Render("○"), "database", "--"}, IsSelected: true},
		{Cells: []string{renderConfirmation("Remove?", 1)}, Span: true},
	}

	out := NewTableComponent(headers).WithWidth(40).SetRows(rows).SetVisibleRange(0, len(rows)).View()
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

	// 3 header lines, 3 rows, 1 bottom divider
	assert.Len(t, lines, 7)
	want := lipgloss.Width(lines[0])
	for i, line := range lines {
		assert.Equal(t, want, lipgloss.Width(line), "line %d: %q", i, line)
	}
}

func TestTableComponentEmpty(t *testing.T) {
	out := NewTableComponent([]TableHeader{{Label: "NAME", Width: 20}}).
		SetEmptyText("No containers found").
		View()
	assert.Contains(t, out, "No containers found")
}

func TestSparkline(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		width  int
		want   string
	}{
		{"empty", nil, 10, ""},
		{"all zero", []float64{0, 0, 0}, 10, "▁▁▁"},
		{"rising", []float64{0, 50, 100}, 10, "▁▄█"},
		{"keeps newest", []float64{100, 0, 0, 100}, 2, "▁█"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sparkline(tt.values, tt.width))
		})
	}
}

func TestHeaderComponentFitsWidth(t *testing.T) {
	out := NewHeaderComponent("dockyard").
		WithWidth(60).
		SetSummary(strings.Repeat("x", 200)).
		View()
	for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		assert.Equal(t, 60, lipgloss.Width(line))
	}
}
