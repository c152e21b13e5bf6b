package scheduler

import (
	"context"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockyard/internal/app"
	"dockyard/internal/store"
	"dockyard/internal/types"
)

func newDispatcherFixture() (*fakeRuntime, *countingRefresher, *Dispatcher) {
	rt := newFakeRuntime()
	refresh := &countingRefresher{}
	return rt, refresh, NewDispatcher(NewGate(5), rt, refresh)
}

func TestApplyRejectsInvalidWithoutAPICall(t *testing.T) {
	tests := []struct {
		name   string
		op     types.LifecycleOp
		status types.ContainerStatus
	}{
		{"pause paused", types.OpPause, types.StatusPaused},
		{"pause stopped", types.OpPause, types.StatusStopped},
		{"unpause running", types.OpUnpause, types.StatusRunning},
		{"start running", types.OpStart, types.StatusRunning},
		{"stop stopped", types.OpStop, types.StatusStopped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, refresh, d := newDispatcherFixture()
			c := types.Container{ID: "abc", Name: "web", Status: tt.status}

			err := d.Apply(context.Background(), tt.op, c)

			assert.ErrorIs(t, err, app.ErrInvalidAction)
			assert.Empty(t, rt.Calls())
			assert.Equal(t, int32(0), refresh.containers.Load())
		})
	}
}

func TestApplyPauseUnpauseRoundTrip(t *testing.T) {
	rt, refresh, d := newDispatcherFixture()
	c := types.Container{ID: "abc", Name: "web", Status: types.StatusRunning}

	require.NoError(t, d.Apply(context.Background(), types.OpPause, c))

	c.Status = types.StatusPaused // as the next list refresh reports it
	require.NoError(t, d.Apply(context.Background(), types.OpUnpause, c))

	assert.Equal(t, []string{"pause abc", "unpause abc"}, rt.Calls())
	assert.Equal(t, int32(2), refresh.containers.Load())
}

func TestApplyRemoveForcesNonStopped(t *testing.T) {
	rt, _, d := newDispatcherFixture()

	require.NoError(t, d.Apply(context.Background(), types.OpRemove, types.Container{ID: "a", Status: types.StatusRunning}))
	require.NoError(t, d.Apply(context.Background(), types.OpRemove, types.Container{ID: "b", Status: types.StatusStopped}))

	assert.Equal(t, []string{"remove force=true a", "remove force=false b"}, rt.Calls())
}

func TestApplyRemoveMissingContainer(t *testing.T) {
	rt, refresh, d := newDispatcherFixture()
	rt.lifecycleErr = errNoSuchContainer

	st := store.New(10, 10)
	st.ReplaceContainers(runningContainers(2))
	before := st.Snapshot()

	gone := types.Container{ID: "gone", Name: "ghost", Status: types.StatusStopped}
	err := d.Apply(context.Background(), types.OpRemove, gone)

	require.Error(t, err)
	assert.True(t, errdefs.IsNotFound(err))
	assert.Contains(t, err.Error(), "ghost no longer exists")
	assert.Equal(t, int32(1), refresh.containers.Load(), "list is refreshed to drop the stale row")

	after := st.Snapshot()
	assert.Equal(t, before.Containers, after.Containers)
}

func TestRemoveImageConflict(t *testing.T) {
	rt, refresh, d := newDispatcherFixture()
	rt.lifecycleErr = errdefs.ErrConflict

	img := types.Image{ID: "sha256:abc", RepoTags: []string{"nginx:latest"}}
	err := d.RemoveImage(context.Background(), img, false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "in use")
	assert.Equal(t, []string{"remove-image force=false sha256:abc"}, rt.Calls())
	assert.Equal(t, int32(1), refresh.images.Load())
}

func TestInspectIsCached(t *testing.T) {
	rt, _, d := newDispatcherFixture()

	first, err := d.Inspect(context.Background(), types.ContainersView, "abc")
	require.NoError(t, err)
	second, err := d.Inspect(context.Background(), types.ContainersView, "abc")
	require.NoError(t, err)

	assert.Equal(t, "container abc", first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), rt.inspectCount.Load())

	img, err := d.Inspect(context.Background(), types.ImagesView, "abc")
	require.NoError(t, err)
	assert.Equal(t, "image abc", img)
	assert.Equal(t, int32(2), rt.inspectCount.Load())
}

func TestLifecycleInvalidatesInspectCache(t *testing.T) {
	rt, _, d := newDispatcherFixture()
	c := types.Container{ID: "abc", Name: "web", Status: types.StatusRunning}

	_, _ = d.Inspect(context.Background(), types.ContainersView, "abc")
	require.NoError(t, d.Apply(context.Background(), types.OpStop, c))
	_, _ = d.Inspect(context.Background(), types.ContainersView, "abc")

	assert.Equal(t, int32(2), rt.inspectCount.Load())
}
