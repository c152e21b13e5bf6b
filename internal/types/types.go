// Package types contains all data structures and constants used throughout dockyard.
package types

import "time"

// StaleThreshold is the age after which a stats sample is reported as stale.
const StaleThreshold = 10 * time.Second

// ContainerStatus is the coarse lifecycle state of a container
type ContainerStatus int

const (
	StatusOther ContainerStatus = iota
	StatusRunning
	StatusPaused
	StatusStopped
)

func (s ContainerStatus) String() string {
	switch s {
	case StatusRunning:
		return "RUNNING"
	case StatusPaused:
		return "PAUSED"
	case StatusStopped:
		return "STOPPED"
	default:
		return "OTHER"
	}
}

// Health is the health check state reported by the runtime
type Health int

const (
	HealthNone Health = iota
	HealthStarting
	HealthHealthy
	HealthUnhealthy
)

func (h Health) String() string {
	switch h {
	case HealthStarting:
		return "starting"
	case HealthHealthy:
		return "healthy"
	case HealthUnhealthy:
		return "unhealthy"
	default:
		return "--"
	}
}

// Container represents a Docker container as returned by a list refresh
type Container struct {
	ID         string
	Name       string
	Image      string
	Status     ContainerStatus
	State      string // raw runtime state, e.g. "exited", "restarting"
	StatusText string // human readable status, e.g. "Up 3 hours (healthy)"
	Health     Health
	Ports      []string
	Created    time.Time
	Labels     map[string]string
	Volumes    []string
	Networks   []string
	Env        []string // only known after an inspect; the list API does not return it
}

// ShortID returns the first 12 characters of the container ID
func (c Container) ShortID() string {
	if len(c.ID) > 12 {
		return c.ID[:12]
	}
	return c.ID
}

// StatsSample is one point-in-time CPU/memory reading for a container
type StatsSample struct {
	ContainerID string
	CPUPercent  float64
	MemUsed     uint64
	MemLimit    uint64
	Timestamp   time.Time // when the fetch that produced this sample started
}

// Stale reports whether the sample is older than StaleThreshold at now.
func (s StatsSample) Stale(now time.Time) bool {
	return now.Sub(s.Timestamp) > StaleThreshold
}

// MemPercent returns memory usage relative to the limit, or 0 without a limit.
func (s StatsSample) MemPercent() float64 {
	if s.MemLimit == 0 {
		return 0
	}
	return float64(s.MemUsed) / float64(s.MemLimit) * 100.0
}

// Image represents a Docker image
type Image struct {
	ID       string
	RepoTags []string // repository:tag references
	Size     int64
	Created  time.Time
	InUse    bool // Whether the image is used by any container
	Dangling bool // Whether the image has no repository:tag reference
}

// ShortID returns the image ID without the digest algorithm, cut to 12 characters
func (i Image) ShortID() string {
	id := i.ID
	if len(id) > 7 && id[:7] == "sha256:" {
		id = id[7:]
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

// Reference returns the first repository:tag, or "<none>:<none>"
func (i Image) Reference() string {
	if len(i.RepoTags) == 0 {
		return "<none>:<none>"
	}
	return i.RepoTags[0]
}

// LayerEvent is one progress event from an image pull
type LayerEvent struct {
	LayerID string
	Status  string
	Current int64
	Total   int64
	Error   string
}

// PullProgress tracks one image pull from initiation to completion or failure
type PullProgress struct {
	Image    string
	Events   []LayerEvent
	Layers   []LayerEvent // latest event per layer, in order of first appearance
	Done     bool
	Err      error
	Started  time.Time
	Finished time.Time
}

// ViewKind identifies which list a viewport belongs to
type ViewKind int

const (
	ContainersView ViewKind = iota
	ImagesView
)

func (v ViewKind) String() string {
	if v == ImagesView {
		return "Images"
	}
	return "Containers"
}

// Viewport describes the visible window of the active list
type Viewport struct {
	View  ViewKind
	First int // first visible row index
	Count int // number of visible rows
}

// LifecycleOp is a container lifecycle request
type LifecycleOp int

const (
	OpStart LifecycleOp = iota
	OpStop
	OpRestart
	OpPause
	OpUnpause
	OpRemove
)

func (o LifecycleOp) String() string {
	switch o {
	case OpStart:
		return "start"
	case OpStop:
		return "stop"
	case OpRestart:
		return "restart"
	case OpPause:
		return "pause"
	case OpUnpause:
		return "unpause"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Message types for Bubble Tea
type FrameTickMsg time.Time
type ClearStatusMsg struct{ Seq int }
type ActionSuccessMsg string
type ActionErrorMsg string

// DetailsMsg carries inspect output for the details modal
type DetailsMsg struct {
	ID      string
	Content string
	Err     error
}

// ExecFinishedMsg is delivered when an interactive shell session exits
type ExecFinishedMsg struct {
	ContainerID string
	ExitCode    int
	Err         error
}
