package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/containerd/errdefs"

	"dockyard/internal/types"
)

// fakeRuntime records every call and lets tests shape responses.
type fakeRuntime struct {
	mu         sync.Mutex
	calls      []string
	statsTimes map[string]time.Time

	containers     []types.Container
	images         []types.Image
	listErr        error
	statsDelay     time.Duration
	statsFail      map[string]bool
	lifecycleErr   error
	inspectCount   atomic.Int32
	containerLists atomic.Int32
	imageLists     atomic.Int32
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{statsTimes: make(map[string]time.Time), statsFail: make(map[string]bool)}
}

func (f *fakeRuntime) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeRuntime) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRuntime) ListContainers(ctx context.Context, all bool) ([]types.Container, error) {
	f.containerLists.Add(1)
	f.record(fmt.Sprintf("list-containers all=%t", all))
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.containers, f.listErr
}

func (f *fakeRuntime) ListImages(ctx context.Context) ([]types.Image, error) {
	f.imageLists.Add(1)
	f.record("list-images")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images, f.listErr
}

func (f *fakeRuntime) ContainerStats(ctx context.Context, id string) (types.StatsSample, error) {
	start := time.Now()
	f.mu.Lock()
	f.statsTimes[id] = start
	fail := f.statsFail[id]
	delay := f.statsDelay
	f.mu.Unlock()
	f.record("stats " + id)

	if delay > 0 {
		select {
		case <-ctx.Done():
			return types.StatsSample{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	if fail {
		return types.StatsSample{}, errors.New("stats unavailable")
	}
	return types.StatsSample{ContainerID: id, CPUPercent: 1, Timestamp: start}, nil
}

func (f *fakeRuntime) StatsTimes() map[string]time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]time.Time, len(f.statsTimes))
	for k, v := range f.statsTimes {
		out[k] = v
	}
	return out
}

func (f *fakeRuntime) lifecycle(op, id string) error {
	f.record(op + " " + id)
	return f.lifecycleErr
}

func (f *fakeRuntime) StartContainer(ctx context.Context, id string) error {
	return f.lifecycle("start", id)
}
func (f *fakeRuntime) StopContainer(ctx context.Context, id string) error {
	return f.lifecycle("stop", id)
}
func (f *fakeRuntime) RestartContainer(ctx context.Context, id string) error {
	return f.lifecycle("restart", id)
}
func (f *fakeRuntime) PauseContainer(ctx context.Context, id string) error {
	return f.lifecycle("pause", id)
}
func (f *fakeRuntime) UnpauseContainer(ctx context.Context, id string) error {
	return f.lifecycle("unpause", id)
}
func (f *fakeRuntime) RemoveContainer(ctx context.Context, id string, force bool) error {
	return f.lifecycle(fmt.Sprintf("remove force=%t", force), id)
}
func (f *fakeRuntime) RemoveImage(ctx context.Context, id string, force bool) error {
	return f.lifecycle(fmt.Sprintf("remove-image force=%t", force), id)
}
func (f *fakeRuntime) InspectContainer(ctx context.Context, id string) (string, error) {
	f.inspectCount.Add(1)
	return "container " + id, nil
}
func (f *fakeRuntime) InspectImage(ctx context.Context, id string) (string, error) {
	f.inspectCount.Add(1)
	return "image " + id, nil
}

// countingRefresher counts out-of-cadence refresh requests.
type countingRefresher struct {
	containers atomic.Int32
	images     atomic.Int32
}

func (r *countingRefresher) RefreshContainers() { r.containers.Add(1) }
func (r *countingRefresher) RefreshImages()     { r.images.Add(1) }

var errNoSuchContainer = fmt.Errorf("No such container: gone: %w", errdefs.ErrNotFound)

func runningContainers(n int) []types.Container {
	out := make([]types.Container, n)
	for i := range out {
		out[i] = types.Container{
			ID:     fmt.Sprintf("c%02d", i),
			Name:   fmt.Sprintf("svc-%02d", i),
			Status: types.StatusRunning,
		}
	}
	return out
}
