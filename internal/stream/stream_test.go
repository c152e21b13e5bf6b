package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockyard/internal/scheduler"
	"dockyard/internal/store"
	"dockyard/internal/types"
)

// fakeLogSource hands out pipes the test writes into.
type fakeLogSource struct {
	mu      sync.Mutex
	writers map[string]*io.PipeWriter
	ctxs    map[string]context.Context
	err     error
	opened  chan string
}

func newFakeLogSource() *fakeLogSource {
	return &fakeLogSource{
		writers: make(map[string]*io.PipeWriter),
		ctxs:    make(map[string]context.Context),
		opened:  make(chan string, 4),
	}
}

func (f *fakeLogSource) StreamLogs(ctx context.Context, id string, tail string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	pr, pw := io.Pipe()
	f.mu.Lock()
	f.writers[id] = pw
	f.ctxs[id] = ctx
	f.mu.Unlock()
	f.opened <- id
	return pr, nil
}

func (f *fakeLogSource) writer(id string) *io.PipeWriter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writers[id]
}

func (f *fakeLogSource) ctx(id string) context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ctxs[id]
}

func waitOpened(t *testing.T, f *fakeLogSource, want string) {
	t.Helper()
	select {
	case id := <-f.opened:
		require.Equal(t, want, id)
	case <-time.After(2 * time.Second):
		t.Fatalf("log stream for %s was not opened", want)
	}
}

func TestLogStreamerAppendsLines(t *testing.T) {
	src := newFakeLogSource()
	st := store.New(100, 10)
	l := NewLogStreamer(context.Background(), scheduler.NewGate(5), src, st, 100)

	l.Open("a")
	waitOpened(t, src, "a")

	_, err := io.WriteString(src.writer("a"), "first\r\nsecond\n")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(st.Snapshot().Logs.Lines) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"first", "second"}, st.Snapshot().Logs.Lines)

	require.NoError(t, src.writer("a").Close())
	require.Eventually(t, func() bool { return st.Snapshot().Logs.Ended }, 2*time.Second, 10*time.Millisecond)

	l.Close()
	l.Wait()
}

func TestLogStreamerSwitchCancelsPrevious(t *testing.T) {
	src := newFakeLogSource()
	st := store.New(100, 10)
	l := NewLogStreamer(context.Background(), scheduler.NewGate(5), src, st, 100)

	l.Open("a")
	waitOpened(t, src, "a")
	l.Open("b")
	waitOpened(t, src, "b")

	select {
	case <-src.ctx("a").Done():
	case <-time.After(2 * time.Second):
		t.Fatal("previous stream was not cancelled")
	}

	// A late write on the old stream must not reach the new buffer.
	go func() { _, _ = io.WriteString(src.writer("a"), "stale\n") }()
	_, err := io.WriteString(src.writer("b"), "fresh\n")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(st.Snapshot().Logs.Lines) == 1
	}, 2*time.Second, 10*time.Millisecond)
	logs := st.Snapshot().Logs
	assert.Equal(t, "b", logs.ContainerID)
	assert.Equal(t, []string{"fresh"}, logs.Lines)

	l.Close()
	assert.Empty(t, st.Snapshot().Logs.ContainerID)
	l.Wait()
}

func TestLogStreamerReopenSameContainer(t *testing.T) {
	src := newFakeLogSource()
	st := store.New(100, 10)
	l := NewLogStreamer(context.Background(), scheduler.NewGate(5), src, st, 100)

	l.Open("a")
	waitOpened(t, src, "a")
	first := src.writer("a")
	firstCtx := src.ctx("a")

	l.Close()
	l.Open("a")
	waitOpened(t, src, "a")
	<-firstCtx.Done()

	// The cancelled stream may still hand over lines it already read.
	go func() { _, _ = io.WriteString(first, "stale\n") }()
	_, err := io.WriteString(src.writer("a"), "fresh\n")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(st.Snapshot().Logs.Lines) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	logs := st.Snapshot().Logs
	assert.Equal(t, "a", logs.ContainerID)
	assert.Equal(t, []string{"fresh"}, logs.Lines)
	assert.False(t, logs.Ended, "the old stream ending does not end the new one")

	l.Close()
	l.Wait()
}

func TestLogStreamerOpenError(t *testing.T) {
	src := newFakeLogSource()
	src.err = errors.New("no such container")
	st := store.New(100, 10)
	l := NewLogStreamer(context.Background(), scheduler.NewGate(5), src, st, 100)

	l.Open("a")
	l.Wait()

	logs := st.Snapshot().Logs
	assert.True(t, logs.Ended)
	assert.Equal(t, "no such container", logs.Err)
}

func TestReadLines(t *testing.T) {
	var lines []string
	err := ReadLines(strings.NewReader("one\ntwo\r\n\nthree"), func(s string) { lines = append(lines, s) })
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "", "three"}, lines)
}

// fakePuller serves a canned progress stream.
type fakePuller struct {
	stream string
	err    error
	pulls  atomic.Int32
}

func (f *fakePuller) PullImage(ctx context.Context, name string) (io.ReadCloser, error) {
	f.pulls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.stream)), nil
}

// imageRefresher installs a fixed image list when asked to refresh.
type imageRefresher struct {
	store  *store.Store
	images []types.Image
	count  atomic.Int32
}

func (r *imageRefresher) RefreshContainers() {}
func (r *imageRefresher) RefreshImages() {
	r.count.Add(1)
	r.store.ReplaceImages(r.images)
}

func threeLayerPull() string {
	var b strings.Builder
	b.WriteString(`{"status":"Pulling from library/nginx","id":"latest"}` + "\n")
	for _, layer := range []string{"a1", "b2", "c3"} {
		b.WriteString(fmt.Sprintf(`{"status":"Downloading","progressDetail":{"current":50,"total":100},"id":"%s"}`+"\n", layer))
		b.WriteString(fmt.Sprintf(`{"status":"Downloading","progressDetail":{"current":100,"total":100},"id":"%s"}`+"\n", layer))
		b.WriteString(fmt.Sprintf(`{"status":"Pull complete","id":"%s"}`+"\n", layer))
	}
	b.WriteString(`{"status":"Status: Downloaded newer image for nginx:latest"}` + "\n")
	return b.String()
}

func TestPullRefreshesImagesOnceOnCompletion(t *testing.T) {
	st := store.New(10, 10)
	refresh := &imageRefresher{store: st, images: []types.Image{{ID: "sha256:n", RepoTags: []string{"nginx:latest"}}}}
	api := &fakePuller{stream: threeLayerPull()}
	p := NewPuller(context.Background(), scheduler.NewGate(5), api, st, refresh)

	ref, err := p.Start("nginx:latest")
	require.NoError(t, err)
	assert.Equal(t, "nginx:latest", ref)
	p.Wait()

	assert.Equal(t, int32(1), refresh.count.Load())

	snap := st.Snapshot()
	require.NotNil(t, snap.Pull)
	assert.True(t, snap.Pull.Done)
	assert.NoError(t, snap.Pull.Err)
	require.Len(t, snap.Pull.Layers, 3)
	for _, layer := range snap.Pull.Layers {
		assert.Equal(t, "Pull complete", layer.Status)
	}
	require.Len(t, snap.Images, 1)
	assert.Equal(t, "nginx:latest", snap.Images[0].Reference())

	notices := st.DrainNotices()
	require.Len(t, notices, 1)
	assert.False(t, notices[0].Err)
}

func TestPullFailureStillRefreshesOnce(t *testing.T) {
	st := store.New(10, 10)
	refresh := &imageRefresher{store: st}
	api := &fakePuller{stream: `{"status":"Pulling from library/nope","id":"latest"}
{"errorDetail":{"message":"manifest unknown"},"error":"manifest unknown"}
`}
	p := NewPuller(context.Background(), scheduler.NewGate(5), api, st, refresh)

	_, err := p.Start("nope")
	require.NoError(t, err)
	p.Wait()

	assert.Equal(t, int32(1), refresh.count.Load())
	snap := st.Snapshot()
	require.NotNil(t, snap.Pull)
	assert.True(t, snap.Pull.Done)
	assert.EqualError(t, snap.Pull.Err, "manifest unknown")
	assert.False(t, st.Pulling("nope:latest"))

	notices := st.DrainNotices()
	require.Len(t, notices, 1)
	assert.True(t, notices[0].Err)
}

func TestPullRejectsConcurrentSameName(t *testing.T) {
	st := store.New(10, 10)
	require.NoError(t, st.BeginPull("nginx:latest"))

	api := &fakePuller{stream: threeLayerPull()}
	p := NewPuller(context.Background(), scheduler.NewGate(5), api, st, &imageRefresher{store: st})

	_, err := p.Start("nginx")
	assert.ErrorIs(t, err, store.ErrPullInProgress)
	p.Wait()
	assert.Equal(t, int32(0), api.pulls.Load())
}

func TestPullOpenError(t *testing.T) {
	st := store.New(10, 10)
	refresh := &imageRefresher{store: st}
	api := &fakePuller{err: errors.New("registry unreachable")}
	p := NewPuller(context.Background(), scheduler.NewGate(5), api, st, refresh)

	_, err := p.Start("redis:7")
	require.NoError(t, err)
	p.Wait()

	snap := st.Snapshot()
	assert.True(t, snap.Pull.Done)
	assert.Error(t, snap.Pull.Err)
	assert.Equal(t, int32(1), refresh.count.Load())
}

func TestNormalizeImageName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"nginx", "nginx:latest", false},
		{"nginx:1.27", "nginx:1.27", false},
		{"docker.io/library/redis", "redis:latest", false},
		{"ghcr.io/org/app:v2", "ghcr.io/org/app:v2", false},
		{"Not Valid", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeImageName(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
