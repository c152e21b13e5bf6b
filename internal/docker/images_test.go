package docker

import (
	"strings"
	"testing"
	"time"

	"github.com/moby/moby/api/types/image"

	"dockyard/internal/types"
)

func TestParseImage(t *testing.T) {
	tests := []struct {
		name         string
		summary      image.Summary
		wantTags     int
		wantDangling bool
		wantInUse    bool
	}{
		{
			name:      "tagged and used",
			summary:   image.Summary{ID: "sha256:aaa", RepoTags: []string{"nginx:latest"}, Containers: 2},
			wantTags:  1,
			wantInUse: true,
		},
		{
			name:         "dangling",
			summary:      image.Summary{ID: "sha256:bbb", RepoTags: []string{"<none>:<none>"}},
			wantDangling: true,
		},
		{
			name:         "no tags at all",
			summary:      image.Summary{ID: "sha256:ccc"},
			wantDangling: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := parseImage(tt.summary)
			if len(img.RepoTags) != tt.wantTags {
				t.Errorf("RepoTags = %v, want %d tags", img.RepoTags, tt.wantTags)
			}
			if img.Dangling != tt.wantDangling {
				t.Errorf("Dangling = %v, want %v", img.Dangling, tt.wantDangling)
			}
			if img.InUse != tt.wantInUse {
				t.Errorf("InUse = %v, want %v", img.InUse, tt.wantInUse)
			}
		})
	}
}

func TestSortImagesNewestFirst(t *testing.T) {
	now := time.Now()
	images := []types.Image{
		{ID: "old", Created: now.Add(-48 * time.Hour)},
		{ID: "new", Created: now},
		{ID: "mid", Created: now.Add(-time.Hour)},
	}

	SortImages(images)

	if images[0].ID != "new" || images[1].ID != "mid" || images[2].ID != "old" {
		t.Errorf("unexpected order: %s, %s, %s", images[0].ID, images[1].ID, images[2].ID)
	}
}

func TestDecodePullEvents(t *testing.T) {
	stream := strings.Join([]string{
		`{"status":"Pulling from library/alpine","id":"latest"}`,
		`{"status":"Downloading","progressDetail":{"current":512,"total":1024},"id":"a1"}`,
		`{"status":"Pull complete","id":"a1"}`,
		`{"status":"Status: Downloaded newer image for alpine:latest"}`,
	}, "\n")

	var events []types.LayerEvent
	err := DecodePullEvents(strings.NewReader(stream), func(ev types.LayerEvent) {
		events = append(events, ev)
	})

	if err != nil {
		t.Fatalf("DecodePullEvents() error = %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[1].LayerID != "a1" || events[1].Current != 512 || events[1].Total != 1024 {
		t.Errorf("unexpected progress event: %+v", events[1])
	}
}

func TestDecodePullEventsError(t *testing.T) {
	stream := `{"status":"Pulling from library/nope","id":"latest"}
{"errorDetail":{"message":"manifest unknown"},"error":"manifest unknown"}
{"status":"never reached"}`

	var count int
	err := DecodePullEvents(strings.NewReader(stream), func(types.LayerEvent) { count++ })

	if err == nil || err.Error() != "manifest unknown" {
		t.Fatalf("DecodePullEvents() error = %v, want manifest unknown", err)
	}
	if count != 2 {
		t.Errorf("got %d events, want 2", count)
	}
}

func TestDecodePullEventsMalformed(t *testing.T) {
	err := DecodePullEvents(strings.NewReader(`{"status":`), func(types.LayerEvent) {})
	if err == nil {
		t.Fatal("expected a decode error for a truncated stream")
	}
}
