package scheduler

import (
	"context"
	"sync"
	"time"

	"dockyard/internal/store"
	"dockyard/internal/types"
	"dockyard/pkg/logging"
)

// StatsReader takes a single stats reading for a container.
type StatsReader interface {
	ContainerStats(ctx context.Context, containerID string) (types.StatsSample, error)
}

// Plan returns the IDs of the containers that need a stats fetch: running
// containers within the viewport widened by margin rows on each side. Only
// the containers view has container rows, so any other view yields nothing.
func Plan(vp types.Viewport, rows []types.Container, margin int) []string {
	if vp.View != types.ContainersView || vp.Count <= 0 || len(rows) == 0 {
		return nil
	}

	lo := vp.First - margin
	if lo < 0 {
		lo = 0
	}
	hi := vp.First + vp.Count + margin
	if hi > len(rows) {
		hi = len(rows)
	}

	var ids []string
	for i := lo; i < hi; i++ {
		if rows[i].Status == types.StatusRunning {
			ids = append(ids, rows[i].ID)
		}
	}
	return ids
}

// Offsets spreads n calls evenly over window: call i starts at i*window/n.
func Offsets(n int, window time.Duration) []time.Duration {
	if n <= 0 {
		return nil
	}
	step := window / time.Duration(n)
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = time.Duration(i) * step
	}
	return out
}

// StatsFetcher refreshes stats for the visible containers once per tick.
type StatsFetcher struct {
	gate     *Gate
	reader   StatsReader
	store    *store.Store
	margin   int
	interval time.Duration

	mu      sync.Mutex
	pending map[string]bool
}

// NewStatsFetcher creates a fetcher that staggers each tick's calls across interval.
func NewStatsFetcher(gate *Gate, reader StatsReader, st *store.Store, margin int, interval time.Duration) *StatsFetcher {
	return &StatsFetcher{
		gate:     gate,
		reader:   reader,
		store:    st,
		margin:   margin,
		interval: interval,
		pending:  make(map[string]bool),
	}
}

// Tick plans one round against the published viewport and starts the
// staggered fetches. Containers whose previous fetch is still pending are
// skipped. The returned channel is closed once every fetch of this round has
// finished or been abandoned because ctx was cancelled.
func (f *StatsFetcher) Tick(ctx context.Context) <-chan struct{} {
	vp := f.store.Viewport()
	ids := Plan(vp, f.store.Containers(), f.margin)

	f.mu.Lock()
	todo := ids[:0:0]
	for _, id := range ids {
		if !f.pending[id] {
			f.pending[id] = true
			todo = append(todo, id)
		}
	}
	f.mu.Unlock()

	done := make(chan struct{})
	if len(todo) == 0 {
		close(done)
		return done
	}

	logging.Debug("stats", "fetching %d of %d planned containers (rows %d+%d)", len(todo), len(ids), vp.First, vp.Count)

	var wg sync.WaitGroup
	for i, offset := range Offsets(len(todo), f.interval) {
		wg.Add(1)
		go func(id string, offset time.Duration) {
			defer wg.Done()
			defer f.release(id)

			if offset > 0 {
				timer := time.NewTimer(offset)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			f.fetch(ctx, id)
		}(todo[i], offset)
	}

	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

func (f *StatsFetcher) fetch(ctx context.Context, id string) {
	var sample types.StatsSample
	err := f.gate.Do(ctx, func(ctx context.Context) error {
		var err error
		sample, err = f.reader.ContainerStats(ctx, id)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.Warn("stats", "stats fetch failed for %.12s: %v", id, err)
		f.store.RecordStatsError(id, err)
		return
	}
	f.store.PutStats(sample)
}

func (f *StatsFetcher) release(id string) {
	f.mu.Lock()
	delete(f.pending, id)
	f.mu.Unlock()
}
