package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/containerd/errdefs"
	"github.com/patrickmn/go-cache"

	"dockyard/internal/app"
	"dockyard/internal/types"
	"dockyard/pkg/logging"
)

// InspectTTL is how long inspect output is served from cache.
const InspectTTL = 10 * time.Second

// Lifecycle issues container lifecycle calls.
type Lifecycle interface {
	StartContainer(ctx context.Context, containerID string) error
	StopContainer(ctx context.Context, containerID string) error
	RestartContainer(ctx context.Context, containerID string) error
	PauseContainer(ctx context.Context, containerID string) error
	UnpauseContainer(ctx context.Context, containerID string) error
	RemoveContainer(ctx context.Context, containerID string, force bool) error
}

// Inspector fetches formatted details for the details modal.
type Inspector interface {
	InspectContainer(ctx context.Context, containerID string) (string, error)
	InspectImage(ctx context.Context, imageID string) (string, error)
}

// ImageRemover deletes images.
type ImageRemover interface {
	RemoveImage(ctx context.Context, imageID string, force bool) error
}

// Commands is everything the dispatcher sends to the runtime.
type Commands interface {
	Lifecycle
	Inspector
	ImageRemover
}

// Dispatcher runs user-initiated commands through the gate. It is called from
// tea.Cmd goroutines, never from the render loop itself.
type Dispatcher struct {
	gate    *Gate
	api     Commands
	refresh Refresher
	cache   *cache.Cache
}

// NewDispatcher creates a dispatcher. After each command the affected list is
// refreshed through refresh.
func NewDispatcher(gate *Gate, api Commands, refresh Refresher) *Dispatcher {
	return &Dispatcher{
		gate:    gate,
		api:     api,
		refresh: refresh,
		cache:   cache.New(InspectTTL, 3*InspectTTL),
	}
}

// Apply validates op against the container's current status and, if valid,
// issues it. Invalid requests return app.ErrInvalidAction without any API call.
func (d *Dispatcher) Apply(ctx context.Context, op types.LifecycleOp, c types.Container) error {
	if err := app.ValidateLifecycle(op, c.Status); err != nil {
		logging.Debug("dispatch", "rejected %s on %s: %v", op, c.Name, err)
		return fmt.Errorf("cannot %s %s: %w", op, c.Name, err)
	}

	err := d.gate.Do(ctx, func(ctx context.Context) error {
		switch op {
		case types.OpStart:
			return d.api.StartContainer(ctx, c.ID)
		case types.OpStop:
			return d.api.StopContainer(ctx, c.ID)
		case types.OpRestart:
			return d.api.RestartContainer(ctx, c.ID)
		case types.OpPause:
			return d.api.PauseContainer(ctx, c.ID)
		case types.OpUnpause:
			return d.api.UnpauseContainer(ctx, c.ID)
		case types.OpRemove:
			return d.api.RemoveContainer(ctx, c.ID, c.Status != types.StatusStopped)
		default:
			return fmt.Errorf("unknown operation %d", op)
		}
	})

	d.cache.Delete(inspectKey(types.ContainersView, c.ID))
	d.refresh.RefreshContainers()

	if err != nil {
		logging.Error("dispatch", err, "%s %s failed", op, c.Name)
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("container %s no longer exists: %w", c.Name, err)
		}
		return fmt.Errorf("failed to %s %s: %w", op, c.Name, err)
	}

	logging.Info("dispatch", "%s %s", op, c.Name)
	return nil
}

// RemoveImage deletes an image. Without force, an image used by a container
// is refused by the daemon.
func (d *Dispatcher) RemoveImage(ctx context.Context, img types.Image, force bool) error {
	err := d.gate.Do(ctx, func(ctx context.Context) error {
		return d.api.RemoveImage(ctx, img.ID, force)
	})

	d.cache.Delete(inspectKey(types.ImagesView, img.ID))
	d.refresh.RefreshImages()

	if err != nil {
		logging.Error("dispatch", err, "remove image %s failed", img.ShortID())
		switch {
		case errdefs.IsNotFound(err):
			return fmt.Errorf("image %s no longer exists: %w", img.Reference(), err)
		case errdefs.IsConflict(err):
			return fmt.Errorf("image %s is in use, force remove with D: %w", img.Reference(), err)
		}
		return fmt.Errorf("failed to remove image %s: %w", img.Reference(), err)
	}

	logging.Info("dispatch", "removed image %s", img.Reference())
	return nil
}

// Inspect returns formatted details for a container or an image, served from
// cache for InspectTTL.
func (d *Dispatcher) Inspect(ctx context.Context, view types.ViewKind, id string) (string, error) {
	key := inspectKey(view, id)
	if v, ok := d.cache.Get(key); ok {
		return v.(string), nil
	}

	var content string
	err := d.gate.Do(ctx, func(ctx context.Context) error {
		var err error
		if view == types.ImagesView {
			content, err = d.api.InspectImage(ctx, id)
		} else {
			content, err = d.api.InspectContainer(ctx, id)
		}
		return err
	})
	if err != nil {
		logging.Warn("dispatch", "inspect %.12s failed: %v", id, err)
		return "", err
	}

	d.cache.Set(key, content, cache.DefaultExpiration)
	return content, nil
}

func inspectKey(view types.ViewKind, id string) string {
	return view.String() + "/" + id
}
