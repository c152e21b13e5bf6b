// Package app holds the application state machine: the active view, the
// active modal and whether the terminal is held by the dashboard or handed to
// a shell session. It is owned by the render loop and never shared.
package app

import (
	"errors"
	"fmt"
	"strings"

	"dockyard/internal/types"
)

var (
	// ErrInvalidTransition is returned for a state change not allowed from the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrInvalidAction is returned for a lifecycle request that does not fit the container's status.
	ErrInvalidAction = errors.New("action not valid for container status")
)

// Modal is the active overlay.
type Modal int

const (
	NoModal Modal = iota
	ConfirmModal
	PullDialog
	DetailsOpen
	HelpOpen
)

func (m Modal) String() string {
	switch m {
	case ConfirmModal:
		return "confirm"
	case PullDialog:
		return "pull"
	case DetailsOpen:
		return "details"
	case HelpOpen:
		return "help"
	default:
		return "none"
	}
}

// Mode tells whether the dashboard owns the terminal.
type Mode int

const (
	Foreground Mode = iota
	Suspended
)

func (m Mode) String() string {
	if m == Suspended {
		return "suspended"
	}
	return "foreground"
}

// ActionKind distinguishes the destructive actions that go through confirmation.
type ActionKind int

const (
	ActionLifecycle ActionKind = iota
	ActionRemoveImage
)

// PendingAction is the action awaiting confirmation.
type PendingAction struct {
	Kind      ActionKind
	Op        types.LifecycleOp
	Container types.Container
	Image     types.Image
	Force     bool
}

// Prompt is the question shown in the confirmation modal.
func (a PendingAction) Prompt() string {
	if a.Kind == ActionRemoveImage {
		if a.Force {
			return fmt.Sprintf("Force remove image %s?", a.Image.Reference())
		}
		return fmt.Sprintf("Remove image %s?", a.Image.Reference())
	}
	if a.Op == types.OpRemove && a.Container.Status != types.StatusStopped {
		return fmt.Sprintf("Container %s is %s. Force remove it?", a.Container.Name, strings.ToLower(a.Container.Status.String()))
	}
	return fmt.Sprintf("%s container %s?", capitalize(a.Op.String()), a.Container.Name)
}

// Machine is the application state machine.
type Machine struct {
	view    types.ViewKind
	modal   Modal
	mode    Mode
	pending *PendingAction

	logsFor     string
	detailsFor  string
	detailsView types.ViewKind
}

// NewMachine starts in the containers view with no modal, in the foreground.
func NewMachine() *Machine {
	return &Machine{view: types.ContainersView}
}

func (m *Machine) View() types.ViewKind { return m.view }
func (m *Machine) Modal() Modal         { return m.modal }
func (m *Machine) Mode() Mode           { return m.mode }

// Pending returns the action awaiting confirmation, if any.
func (m *Machine) Pending() (PendingAction, bool) {
	if m.pending == nil {
		return PendingAction{}, false
	}
	return *m.pending, true
}

// LogsTarget returns the container whose logs are streaming, or "".
func (m *Machine) LogsTarget() string { return m.logsFor }

// DetailsTarget returns what the details modal shows.
func (m *Machine) DetailsTarget() (types.ViewKind, string) { return m.detailsView, m.detailsFor }

func (m *Machine) idle() bool {
	return m.modal == NoModal && m.mode == Foreground
}

// SwitchView changes the active list. Leaving the containers view closes the log panel.
func (m *Machine) SwitchView(v types.ViewKind) error {
	if !m.idle() {
		return fmt.Errorf("%w: switch view with %s modal open", ErrInvalidTransition, m.modal)
	}
	m.view = v
	if v != types.ContainersView {
		m.logsFor = ""
	}
	return nil
}

// OpenConfirm routes a destructive action through confirmation.
func (m *Machine) OpenConfirm(action PendingAction) error {
	if !m.idle() {
		return fmt.Errorf("%w: confirm with %s modal open", ErrInvalidTransition, m.modal)
	}
	m.modal = ConfirmModal
	m.pending = &action
	return nil
}

// Confirm accepts the pending action. The machine returns to NoModal whatever
// the eventual outcome of the action.
func (m *Machine) Confirm() (PendingAction, error) {
	if m.modal != ConfirmModal || m.pending == nil {
		return PendingAction{}, fmt.Errorf("%w: nothing to confirm", ErrInvalidTransition)
	}
	action := *m.pending
	m.modal = NoModal
	m.pending = nil
	return action, nil
}

// OpenPullDialog opens the image pull prompt.
func (m *Machine) OpenPullDialog() error {
	if !m.idle() {
		return fmt.Errorf("%w: pull dialog with %s modal open", ErrInvalidTransition, m.modal)
	}
	m.modal = PullDialog
	return nil
}

// OpenDetails opens the details modal for a container or an image.
func (m *Machine) OpenDetails(view types.ViewKind, id string) error {
	if !m.idle() {
		return fmt.Errorf("%w: details with %s modal open", ErrInvalidTransition, m.modal)
	}
	m.modal = DetailsOpen
	m.detailsView = view
	m.detailsFor = id
	return nil
}

// OpenHelp shows the key binding overlay.
func (m *Machine) OpenHelp() error {
	if !m.idle() {
		return fmt.Errorf("%w: help with %s modal open", ErrInvalidTransition, m.modal)
	}
	m.modal = HelpOpen
	return nil
}

// CloseModal returns to NoModal from any modal, dropping a pending action.
func (m *Machine) CloseModal() {
	m.modal = NoModal
	m.pending = nil
	m.detailsFor = ""
}

// OpenLogs binds the log panel to a container, replacing any previous one.
func (m *Machine) OpenLogs(id string) error {
	if !m.idle() || m.view != types.ContainersView {
		return fmt.Errorf("%w: logs are only available from the containers list", ErrInvalidTransition)
	}
	m.logsFor = id
	return nil
}

// CloseLogs closes the log panel.
func (m *Machine) CloseLogs() {
	m.logsFor = ""
}

// Suspend hands the terminal to a shell session.
func (m *Machine) Suspend() error {
	if m.view != types.ContainersView || !m.idle() {
		return fmt.Errorf("%w: shell sessions start from the containers list with no modal open", ErrInvalidTransition)
	}
	m.mode = Suspended
	return nil
}

// Resume takes the terminal back after a shell session, whatever its exit status.
func (m *Machine) Resume() error {
	if m.mode != Suspended {
		return fmt.Errorf("%w: not suspended", ErrInvalidTransition)
	}
	m.mode = Foreground
	return nil
}

// ValidateLifecycle checks op against a container's status before any API call.
func ValidateLifecycle(op types.LifecycleOp, status types.ContainerStatus) error {
	ok := false
	switch op {
	case types.OpPause:
		ok = status == types.StatusRunning
	case types.OpUnpause:
		ok = status == types.StatusPaused
	case types.OpStart:
		ok = status != types.StatusRunning && status != types.StatusPaused
	case types.OpStop:
		ok = status == types.StatusRunning
	case types.OpRestart:
		ok = status != types.StatusPaused
	case types.OpRemove:
		ok = true
	}
	if !ok {
		return fmt.Errorf("%w: cannot %s a %s container", ErrInvalidAction, op, strings.ToLower(status.String()))
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
