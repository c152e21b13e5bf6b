package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockyard/internal/store"
	"dockyard/internal/types"
)

func startScheduler(t *testing.T, rt *fakeRuntime, st *store.Store, opts Options) (*Scheduler, func()) {
	t.Helper()
	gate := NewGate(5)
	fetcher := NewStatsFetcher(gate, rt, st, 5, 0)
	s := New(gate, rt, st, fetcher, opts)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	return s, func() {
		cancel()
		select {
		case err := <-errc:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("scheduler did not stop")
		}
	}
}

func slowOpts() Options {
	return Options{ContainerEvery: time.Hour, ImageEvery: time.Hour, StatsEvery: time.Hour}
}

func TestSchedulerInitialRefresh(t *testing.T) {
	rt := newFakeRuntime()
	rt.containers = runningContainers(3)
	rt.images = []types.Image{{ID: "sha256:1", RepoTags: []string{"nginx:latest"}}}
	st := store.New(10, 10)

	_, stop := startScheduler(t, rt, st, slowOpts())
	defer stop()

	require.Eventually(t, func() bool {
		snap := st.Snapshot()
		return snap.ContainersLoaded && snap.ImagesLoaded
	}, 2*time.Second, 10*time.Millisecond)

	snap := st.Snapshot()
	assert.Len(t, snap.Containers, 3)
	assert.Len(t, snap.Images, 1)
}

func TestSchedulerIndependentCadences(t *testing.T) {
	rt := newFakeRuntime()
	rt.containers = runningContainers(2)
	st := store.New(10, 10)
	st.SetViewport(types.Viewport{View: types.ContainersView, First: 0, Count: 2})

	_, stop := startScheduler(t, rt, st, Options{
		ContainerEvery: 50 * time.Millisecond,
		ImageEvery:     time.Hour,
		StatsEvery:     20 * time.Millisecond,
	})

	time.Sleep(300 * time.Millisecond)
	stop()

	assert.GreaterOrEqual(t, rt.containerLists.Load(), int32(3))
	assert.Equal(t, int32(1), rt.imageLists.Load(), "image list only refreshed at start")
	assert.NotEmpty(t, rt.StatsTimes())
}

func TestSchedulerBannerFollowsListErrors(t *testing.T) {
	rt := newFakeRuntime()
	rt.listErr = errors.New("connect: no such file or directory")
	st := store.New(10, 10)

	s, stop := startScheduler(t, rt, st, slowOpts())
	defer stop()

	require.Eventually(t, func() bool {
		return st.Snapshot().Banner != ""
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, st.Snapshot().Banner, "no such file or directory")

	rt.mu.Lock()
	rt.listErr = nil
	rt.mu.Unlock()
	s.RefreshContainers()
	s.RefreshImages()

	require.Eventually(t, func() bool {
		return st.Snapshot().Banner == ""
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerShowAllToggle(t *testing.T) {
	rt := newFakeRuntime()
	st := store.New(10, 10)

	s, stop := startScheduler(t, rt, st, slowOpts())
	defer stop()

	require.Eventually(t, func() bool { return rt.containerLists.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	s.SetShowAll(false)
	require.Eventually(t, func() bool {
		for _, c := range rt.Calls() {
			if c == "list-containers all=false" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, st.ShowAll())
}

func TestSchedulerPrunesStatsOfRemovedContainers(t *testing.T) {
	rt := newFakeRuntime()
	rt.containers = runningContainers(2)
	st := store.New(10, 10)

	s, stop := startScheduler(t, rt, st, slowOpts())
	defer stop()

	require.Eventually(t, func() bool { return len(st.Containers()) == 2 }, 2*time.Second, 10*time.Millisecond)
	st.PutStats(types.StatsSample{ContainerID: "c01", Timestamp: time.Now()})

	rt.mu.Lock()
	rt.containers = runningContainers(1)
	rt.mu.Unlock()
	s.RefreshContainers()

	require.Eventually(t, func() bool { return len(st.Containers()) == 1 }, 2*time.Second, 10*time.Millisecond)
	_, ok := st.Stats("c01")
	assert.False(t, ok)
}
