package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"dockyard/internal/store"
	"dockyard/internal/types"
	"dockyard/pkg/logging"
)

// Lister fetches the container and image lists.
type Lister interface {
	ListContainers(ctx context.Context, all bool) ([]types.Container, error)
	ListImages(ctx context.Context) ([]types.Image, error)
}

// Refresher requests out-of-cadence list refreshes.
type Refresher interface {
	RefreshContainers()
	RefreshImages()
}

type jobKind int

const (
	jobContainers jobKind = iota
	jobImages
	jobStats
)

func (k jobKind) String() string {
	switch k {
	case jobContainers:
		return "containers"
	case jobImages:
		return "images"
	default:
		return "stats"
	}
}

// Options configures the three refresh cadences.
type Options struct {
	ContainerEvery time.Duration
	ImageEvery     time.Duration
	StatsEvery     time.Duration
}

// Scheduler owns three independent timers. A firing timer only enqueues a
// job; jobs run on their own goroutines, so a stalled call never delays the
// next tick of any timer.
type Scheduler struct {
	gate    *Gate
	lister  Lister
	store   *store.Store
	fetcher *StatsFetcher
	opts    Options

	jobs chan jobKind

	mu       sync.Mutex
	running  map[jobKind]bool
	rerun    map[jobKind]bool
	listErrs map[jobKind]error
}

// New creates a scheduler. Run must be called to start it.
func New(gate *Gate, lister Lister, st *store.Store, fetcher *StatsFetcher, opts Options) *Scheduler {
	return &Scheduler{
		gate:     gate,
		lister:   lister,
		store:    st,
		fetcher:  fetcher,
		opts:     opts,
		jobs:     make(chan jobKind, 16),
		running:  make(map[jobKind]bool),
		rerun:    make(map[jobKind]bool),
		listErrs: make(map[jobKind]error),
	}
}

// Run starts the timers and blocks until ctx is cancelled and every job has
// returned. Both lists are refreshed immediately on start.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	s.enqueue(jobContainers)
	s.enqueue(jobImages)

	g.Go(func() error { return s.every(ctx, s.opts.ContainerEvery, jobContainers) })
	g.Go(func() error { return s.every(ctx, s.opts.ImageEvery, jobImages) })
	g.Go(func() error { return s.every(ctx, s.opts.StatsEvery, jobStats) })

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case kind := <-s.jobs:
				s.start(ctx, g, kind)
			}
		}
	})

	return g.Wait()
}

// RefreshContainers requests a container list refresh outside the cadence.
func (s *Scheduler) RefreshContainers() { s.enqueue(jobContainers) }

// RefreshImages requests an image list refresh outside the cadence.
func (s *Scheduler) RefreshImages() { s.enqueue(jobImages) }

// SetShowAll switches between listing all containers and running ones only,
// and refreshes the list right away.
func (s *Scheduler) SetShowAll(all bool) {
	s.store.SetShowAll(all)
	s.enqueue(jobContainers)
}

func (s *Scheduler) every(ctx context.Context, d time.Duration, kind jobKind) error {
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.enqueue(kind)
		}
	}
}

// enqueue never blocks. A full queue already holds pending work that will
// observe the latest state, so dropping is safe.
func (s *Scheduler) enqueue(kind jobKind) {
	select {
	case s.jobs <- kind:
	default:
		logging.Debug("scheduler", "job queue full, dropping %s job", kind)
	}
}

// start runs a job unless one of the same kind is in flight. A list job that
// arrives while its kind is running is folded into a single rerun, so a
// refresh requested mid-flight still observes the newest state.
func (s *Scheduler) start(ctx context.Context, g *errgroup.Group, kind jobKind) {
	if kind == jobStats {
		g.Go(func() error {
			<-s.fetcher.Tick(ctx)
			return nil
		})
		return
	}

	s.mu.Lock()
	if s.running[kind] {
		s.rerun[kind] = true
		s.mu.Unlock()
		return
	}
	s.running[kind] = true
	s.mu.Unlock()

	g.Go(func() error {
		for {
			s.runList(ctx, kind)

			s.mu.Lock()
			again := s.rerun[kind] && ctx.Err() == nil
			s.rerun[kind] = false
			if !again {
				s.running[kind] = false
			}
			s.mu.Unlock()
			if !again {
				return nil
			}
		}
	})
}

func (s *Scheduler) runList(ctx context.Context, kind jobKind) {
	started := time.Now()

	var err error
	switch kind {
	case jobContainers:
		var list []types.Container
		err = s.gate.Do(ctx, func(ctx context.Context) error {
			var err error
			list, err = s.lister.ListContainers(ctx, s.store.ShowAll())
			return err
		})
		if err == nil {
			s.store.ReplaceContainers(list)
		}
	case jobImages:
		var list []types.Image
		err = s.gate.Do(ctx, func(ctx context.Context) error {
			var err error
			list, err = s.lister.ListImages(ctx)
			return err
		})
		if err == nil {
			s.store.ReplaceImages(list)
		}
	}

	if ctx.Err() != nil {
		return
	}
	if err != nil {
		logging.Error("scheduler", err, "%s refresh failed", kind)
	} else {
		logging.Debug("scheduler", "%s refresh took %s", kind, time.Since(started).Round(time.Millisecond))
	}
	s.setListErr(kind, err)
}

// setListErr keeps the connectivity banner in step with the list refreshes:
// it shows while any list is failing and clears once all succeed again.
func (s *Scheduler) setListErr(kind jobKind, err error) {
	s.mu.Lock()
	if err != nil {
		s.listErrs[kind] = err
	} else {
		delete(s.listErrs, kind)
	}
	var banner string
	for _, k := range []jobKind{jobContainers, jobImages} {
		if e, ok := s.listErrs[k]; ok {
			banner = fmt.Sprintf("Docker unavailable: %v (retrying)", e)
			break
		}
	}
	s.mu.Unlock()

	s.store.SetBanner(banner)
}
