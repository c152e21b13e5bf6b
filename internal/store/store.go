// Package store is the single source of truth shared by background workers
// and the render loop.
//
// Every write is one short critical section scoped to one logical update; no
// lock is ever held across an API call. Readers take a Snapshot and release
// the lock immediately. Container and image slices are replaced wholesale and
// never mutated in place, so snapshots may share them.
package store

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"dockyard/internal/types"
)

// ErrPullInProgress is returned when a pull is requested for an image that is
// already being pulled.
var ErrPullInProgress = errors.New("a pull for this image is already in progress")

// StatsPoint is one entry in a container's stats history.
type StatsPoint struct {
	CPUPercent float64
	MemUsed    uint64
	At         time.Time
}

// Notice is a per-entity message waiting to be shown once as a transient status.
type Notice struct {
	Text string
	Err  bool
	At   time.Time
}

// LogView is a copy of the active log buffer.
type LogView struct {
	ContainerID string
	Lines       []string
	Dropped     uint64 // lines evicted from the ring since the stream opened
	Ended       bool
	Err         string
}

// Snapshot is an immutable view of the store. Slices and maps in it must not be
// modified by the reader.
type Snapshot struct {
	Version          uint64
	Containers       []types.Container
	ContainersLoaded bool
	Stats            map[string]types.StatsSample
	StatsErr         map[string]string
	Images           []types.Image
	ImagesLoaded     bool
	Logs             LogView
	Pull             *types.PullProgress
	Pulling          []string
	Banner           string
	ShowAll          bool
}

// Store holds the latest known runtime state.
type Store struct {
	mu sync.RWMutex

	containers       []types.Container
	index            map[string]int
	containersLoaded bool
	stats            map[string]types.StatsSample
	statsErr         map[string]string
	history          map[string]*Ring[StatsPoint]
	historyCap       int

	images       []types.Image
	imagesLoaded bool

	logID      string
	logGen     uint64
	logs       *Ring[string]
	logDropped uint64
	logEnded   bool
	logErr     string

	pull    *types.PullProgress
	pulling map[string]bool

	banner  string
	showAll bool
	notices []Notice

	version  atomic.Uint64
	viewport atomic.Pointer[types.Viewport]
}

// New creates an empty store.
func New(logCapacity, historyCapacity int) *Store {
	s := &Store{
		index:      make(map[string]int),
		stats:      make(map[string]types.StatsSample),
		statsErr:   make(map[string]string),
		history:    make(map[string]*Ring[StatsPoint]),
		historyCap: historyCapacity,
		logs:       NewRing[string](logCapacity),
		pulling:    make(map[string]bool),
		showAll:    true,
	}
	s.viewport.Store(&types.Viewport{})
	return s
}

// Version increases on every mutation. The render loop compares it against the
// last snapshot it took to skip copying when nothing changed.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

func (s *Store) bump() {
	s.version.Add(1)
}

// Snapshot returns a consistent copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Version:          s.version.Load(),
		Containers:       s.containers,
		ContainersLoaded: s.containersLoaded,
		Stats:            make(map[string]types.StatsSample, len(s.stats)),
		StatsErr:         make(map[string]string, len(s.statsErr)),
		Images:           s.images,
		ImagesLoaded:     s.imagesLoaded,
		Logs: LogView{
			ContainerID: s.logID,
			Lines:       s.logs.Items(),
			Dropped:     s.logDropped,
			Ended:       s.logEnded,
			Err:         s.logErr,
		},
		Banner:  s.banner,
		ShowAll: s.showAll,
	}
	for id, sample := range s.stats {
		snap.Stats[id] = sample
	}
	for id, msg := range s.statsErr {
		snap.StatsErr[id] = msg
	}
	if s.pull != nil {
		p := *s.pull
		p.Events = append([]types.LayerEvent(nil), s.pull.Events...)
		p.Layers = append([]types.LayerEvent(nil), s.pull.Layers...)
		snap.Pull = &p
	}
	for name := range s.pulling {
		snap.Pulling = append(snap.Pulling, name)
	}
	return snap
}

// ReplaceContainers installs a fresh container list. Stats, errors and history
// for containers absent from the list are pruned in the same critical section.
func (s *Store) ReplaceContainers(list []types.Container) {
	index := make(map[string]int, len(list))
	for i, c := range list {
		index[c.ID] = i
	}

	s.mu.Lock()
	s.containers = list
	s.index = index
	s.containersLoaded = true
	for id := range s.stats {
		if _, ok := index[id]; !ok {
			delete(s.stats, id)
		}
	}
	for id := range s.statsErr {
		if _, ok := index[id]; !ok {
			delete(s.statsErr, id)
		}
	}
	for id := range s.history {
		if _, ok := index[id]; !ok {
			delete(s.history, id)
		}
	}
	s.mu.Unlock()
	s.bump()
}

// Containers returns the current ordered container list.
func (s *Store) Containers() []types.Container {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.containers
}

// Container looks up a container by ID.
func (s *Store) Container(id string) (types.Container, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return types.Container{}, false
	}
	return s.containers[i], true
}

// PutStats records a sample. Samples for unknown containers are dropped, as
// are samples whose fetch started before the one already held.
func (s *Store) PutStats(sample types.StatsSample) bool {
	s.mu.Lock()
	if _, ok := s.index[sample.ContainerID]; !ok {
		s.mu.Unlock()
		return false
	}
	if prev, ok := s.stats[sample.ContainerID]; ok && sample.Timestamp.Before(prev.Timestamp) {
		s.mu.Unlock()
		return false
	}
	s.stats[sample.ContainerID] = sample
	delete(s.statsErr, sample.ContainerID)

	h, ok := s.history[sample.ContainerID]
	if !ok {
		h = NewRing[StatsPoint](s.historyCap)
		s.history[sample.ContainerID] = h
	}
	h.Push(StatsPoint{CPUPercent: sample.CPUPercent, MemUsed: sample.MemUsed, At: sample.Timestamp})
	s.mu.Unlock()
	s.bump()
	return true
}

// RecordStatsError marks a container's last stats fetch as failed. Its
// previous sample is kept and ages towards staleness.
func (s *Store) RecordStatsError(id string, err error) {
	s.mu.Lock()
	if _, ok := s.index[id]; !ok {
		s.mu.Unlock()
		return
	}
	s.statsErr[id] = err.Error()
	s.mu.Unlock()
	s.bump()
}

// Stats returns the latest sample for a container.
func (s *Store) Stats(id string) (types.StatsSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sample, ok := s.stats[id]
	return sample, ok
}

// History returns a container's stats history, oldest first.
func (s *Store) History(id string) []StatsPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.history[id]
	if !ok {
		return nil
	}
	return h.Items()
}

// ReplaceImages installs a fresh image list.
func (s *Store) ReplaceImages(list []types.Image) {
	s.mu.Lock()
	s.images = list
	s.imagesLoaded = true
	s.mu.Unlock()
	s.bump()
}

// Images returns the current image list.
func (s *Store) Images() []types.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.images
}

// ResetLogs clears the log buffer and binds it to a container. An empty id
// closes the log view. The returned generation identifies the stream that may
// write to the new buffer; writers holding an older one are ignored, even when
// they follow the same container.
func (s *Store) ResetLogs(id string) uint64 {
	s.mu.Lock()
	s.logID = id
	s.logGen++
	gen := s.logGen
	s.logs.Reset()
	s.logDropped = 0
	s.logEnded = false
	s.logErr = ""
	s.mu.Unlock()
	s.bump()
	return gen
}

// AppendLog adds one line to the log buffer if gen is still the current
// stream generation.
func (s *Store) AppendLog(gen uint64, line string) bool {
	s.mu.Lock()
	if s.logID == "" || gen != s.logGen {
		s.mu.Unlock()
		return false
	}
	if s.logs.Len() == s.logs.Cap() {
		s.logDropped++
	}
	s.logs.Push(line)
	s.mu.Unlock()
	s.bump()
	return true
}

// EndLogs marks the stream of generation gen as finished, with an optional error.
func (s *Store) EndLogs(gen uint64, err error) {
	s.mu.Lock()
	if s.logID == "" || gen != s.logGen {
		s.mu.Unlock()
		return
	}
	s.logEnded = true
	if err != nil {
		s.logErr = err.Error()
	}
	s.mu.Unlock()
	s.bump()
}

// BeginPull registers a pull for name and makes it the displayed progress,
// discarding whatever progress was shown before.
func (s *Store) BeginPull(name string) error {
	s.mu.Lock()
	if s.pulling[name] {
		s.mu.Unlock()
		return ErrPullInProgress
	}
	s.pulling[name] = true
	s.pull = &types.PullProgress{Image: name, Started: time.Now()}
	s.mu.Unlock()
	s.bump()
	return nil
}

// AppendPullEvent records a progress event. Events of a pull that is no longer
// displayed are dropped; the pull itself keeps running.
func (s *Store) AppendPullEvent(name string, ev types.LayerEvent) {
	s.mu.Lock()
	if s.pull == nil || s.pull.Image != name || s.pull.Done {
		s.mu.Unlock()
		return
	}
	s.pull.Events = append(s.pull.Events, ev)
	if ev.LayerID != "" && ev.LayerID != layerTag(name) {
		updated := false
		for i := range s.pull.Layers {
			if s.pull.Layers[i].LayerID == ev.LayerID {
				s.pull.Layers[i] = ev
				updated = true
				break
			}
		}
		if !updated {
			s.pull.Layers = append(s.pull.Layers, ev)
		}
	}
	s.mu.Unlock()
	s.bump()
}

// FinishPull releases the name and marks the displayed progress as terminal.
func (s *Store) FinishPull(name string, err error) {
	s.mu.Lock()
	delete(s.pulling, name)
	if s.pull != nil && s.pull.Image == name && !s.pull.Done {
		s.pull.Done = true
		s.pull.Err = err
		s.pull.Finished = time.Now()
	}
	s.mu.Unlock()
	s.bump()
}

// DiscardPull drops the displayed progress. Pulls still running are unaffected.
func (s *Store) DiscardPull() {
	s.mu.Lock()
	s.pull = nil
	s.mu.Unlock()
	s.bump()
}

// Pulling reports whether a pull for name is in progress.
func (s *Store) Pulling(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pulling[name]
}

// SetBanner sets the persistent connectivity banner.
func (s *Store) SetBanner(msg string) {
	s.mu.Lock()
	changed := s.banner != msg
	s.banner = msg
	s.mu.Unlock()
	if changed {
		s.bump()
	}
}

// ClearBanner removes the connectivity banner.
func (s *Store) ClearBanner() {
	s.SetBanner("")
}

// SetShowAll records whether stopped containers are listed.
func (s *Store) SetShowAll(all bool) {
	s.mu.Lock()
	s.showAll = all
	s.mu.Unlock()
	s.bump()
}

// ShowAll reports whether stopped containers are listed.
func (s *Store) ShowAll() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.showAll
}

// PushNotice queues a message to be shown once by the render loop.
func (s *Store) PushNotice(text string, isErr bool) {
	s.mu.Lock()
	s.notices = append(s.notices, Notice{Text: text, Err: isErr, At: time.Now()})
	s.mu.Unlock()
	s.bump()
}

// DrainNotices removes and returns all queued notices in arrival order.
func (s *Store) DrainNotices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

// SetViewport publishes the visible window of the active list. It is written
// by the render loop and read by the stats fetcher without locking.
func (s *Store) SetViewport(vp types.Viewport) {
	s.viewport.Store(&vp)
}

// Viewport returns the last published viewport.
func (s *Store) Viewport() types.Viewport {
	return *s.viewport.Load()
}

// layerTag is the id the daemon uses for the "Pulling from" header line, which
// is the tag rather than a layer.
func layerTag(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		switch name[i] {
		case ':':
			return name[i+1:]
		case '/':
			return "latest"
		}
	}
	return "latest"
}
