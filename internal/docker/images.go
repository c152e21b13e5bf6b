package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/moby/moby/api/types/image"
	"github.com/moby/moby/client"

	"dockyard/internal/types"
)

// ListImages retrieves top-level images, newest first
func (c *Client) ListImages(ctx context.Context) ([]types.Image, error) {
	ctx, cancel := withTimeout(ctx, TimeoutQuick)
	defer cancel()

	result, err := c.cli.ImageList(ctx, client.ImageListOptions{})
	if err != nil {
		return nil, wrapErr("list images", TimeoutQuick, err)
	}

	images := make([]types.Image, 0, len(result.Items))
	for _, img := range result.Items {
		images = append(images, parseImage(img))
	}

	SortImages(images)
	return images, nil
}

// SortImages orders images newest first, with ties broken by ID
func SortImages(images []types.Image) {
	sort.SliceStable(images, func(i, j int) bool {
		if !images[i].Created.Equal(images[j].Created) {
			return images[i].Created.After(images[j].Created)
		}
		return images[i].ID < images[j].ID
	})
}

// RemoveImage removes an image
func (c *Client) RemoveImage(ctx context.Context, imageID string, force bool) error {
	ctx, cancel := withTimeout(ctx, TimeoutMedium)
	defer cancel()

	_, err := c.cli.ImageRemove(ctx, imageID, client.ImageRemoveOptions{
		Force:         force,
		PruneChildren: true,
	})
	if err != nil {
		return wrapErr("remove image", TimeoutMedium, err)
	}
	return nil
}

// PullImage starts pulling an image from a registry and returns the raw
// progress stream. The pull only completes if the stream is read to EOF.
func (c *Client) PullImage(ctx context.Context, imageName string) (io.ReadCloser, error) {
	reader, err := c.cli.ImagePull(ctx, imageName, client.ImagePullOptions{})
	if err != nil {
		return nil, wrapErr("pull image", TimeoutLong, err)
	}
	return reader, nil
}

// pullMessage is one line of the JSON progress stream
type pullMessage struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	ProgressDetail struct {
		Current int64 `json:"current"`
		Total   int64 `json:"total"`
	} `json:"progressDetail"`
	Error       string `json:"error"`
	ErrorDetail *struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
}

// DecodePullEvents reads a pull progress stream and calls fn for every event.
// An event carrying an error ends decoding and is returned as the error.
func DecodePullEvents(r io.Reader, fn func(types.LayerEvent)) error {
	dec := json.NewDecoder(r)
	for {
		var msg pullMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to decode pull progress: %w", err)
		}

		errMsg := msg.Error
		if errMsg == "" && msg.ErrorDetail != nil {
			errMsg = msg.ErrorDetail.Message
		}

		fn(types.LayerEvent{
			LayerID: msg.ID,
			Status:  msg.Status,
			Current: msg.ProgressDetail.Current,
			Total:   msg.ProgressDetail.Total,
			Error:   errMsg,
		})

		if errMsg != "" {
			return errors.New(errMsg)
		}
	}
}

// InspectImage retrieves image details formatted for display
func (c *Client) InspectImage(ctx context.Context, imageID string) (string, error) {
	ctx, cancel := withTimeout(ctx, TimeoutQuick)
	defer cancel()

	inspectResult, err := c.cli.ImageInspect(ctx, imageID)
	if err != nil {
		return "", wrapErr("inspect image", TimeoutQuick, err)
	}

	return formatImageInspect(inspectResult), nil
}

// Helper functions

func parseImage(img image.Summary) types.Image {
	var tags []string
	for _, tag := range img.RepoTags {
		if tag != "<none>:<none>" {
			tags = append(tags, tag)
		}
	}

	return types.Image{
		ID:       img.ID,
		RepoTags: tags,
		Size:     img.Size,
		Created:  time.Unix(img.Created, 0),
		InUse:    img.Containers > 0,
		Dangling: len(tags) == 0,
	}
}

func formatImageInspect(inspect client.ImageInspectResult) string {
	var b strings.Builder

	b.WriteString("=== IMAGE INFO ===\n")
	id := strings.TrimPrefix(inspect.ID, "sha256:")
	if len(id) > 12 {
		id = id[:12]
	}
	b.WriteString(fmt.Sprintf("ID: %s\n", id))
	if len(inspect.RepoTags) > 0 {
		b.WriteString(fmt.Sprintf("Tags: %s\n", strings.Join(inspect.RepoTags, ", ")))
	}
	if len(inspect.RepoDigests) > 0 {
		b.WriteString(fmt.Sprintf("Digests: %s\n", strings.Join(inspect.RepoDigests, ", ")))
	}
	b.WriteString(fmt.Sprintf("Created: %s\n", inspect.Created))
	b.WriteString(fmt.Sprintf("Size: %s\n", units.HumanSize(float64(inspect.Size))))

	b.WriteString("\n=== ARCHITECTURE ===\n")
	b.WriteString(fmt.Sprintf("OS: %s\n", inspect.Os))
	b.WriteString(fmt.Sprintf("Architecture: %s\n", inspect.Architecture))
	if inspect.Variant != "" {
		b.WriteString(fmt.Sprintf("Variant: %s\n", inspect.Variant))
	}

	b.WriteString("\n=== LAYERS ===\n")
	if len(inspect.RootFS.Layers) == 0 {
		b.WriteString("No layers found\n")
	} else {
		b.WriteString(fmt.Sprintf("Total layers: %d\n", len(inspect.RootFS.Layers)))
		for i, layer := range inspect.RootFS.Layers {
			b.WriteString(fmt.Sprintf("  %2d  %s\n", i+1, layer))
		}
	}

	if inspect.Config != nil {
		b.WriteString("\n=== CONFIG ===\n")
		if len(inspect.Config.Entrypoint) > 0 {
			b.WriteString(fmt.Sprintf("Entrypoint: %s\n", strings.Join(inspect.Config.Entrypoint, " ")))
		}
		if len(inspect.Config.Cmd) > 0 {
			b.WriteString(fmt.Sprintf("Cmd: %s\n", strings.Join(inspect.Config.Cmd, " ")))
		}
		if len(inspect.Config.Env) > 0 {
			b.WriteString("\nEnvironment Variables:\n")
			for _, env := range inspect.Config.Env {
				b.WriteString(fmt.Sprintf("  %s\n", env))
			}
		}
	}

	return b.String()
}
