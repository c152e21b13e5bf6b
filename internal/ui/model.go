// Package ui contains the TUI model, update logic, and view rendering for dockyard.
//
// The model is the render/input loop. It never calls the runtime itself: list
// state comes from store snapshots taken on each frame tick, and every command
// runs as a tea.Cmd through the dispatcher.
package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"dockyard/internal/app"
	"dockyard/internal/session"
	"dockyard/internal/store"
	"dockyard/internal/types"
)

// Commands issues user-initiated runtime commands.
type Commands interface {
	Apply(ctx context.Context, op types.LifecycleOp, c types.Container) error
	RemoveImage(ctx context.Context, img types.Image, force bool) error
	Inspect(ctx context.Context, view types.ViewKind, id string) (string, error)
}

// ListControl requests list refreshes and flips the show-all flag.
type ListControl interface {
	RefreshContainers()
	RefreshImages()
	SetShowAll(all bool)
}

// LogFollower binds the log buffer to one container at a time.
type LogFollower interface {
	Open(id string)
	Close()
}

// PullStarter starts background image pulls.
type PullStarter interface {
	Start(name string) (string, error)
}

// ShellStarter reserves the single shell session slot.
type ShellStarter interface {
	Begin(containerID, name string) (*session.ShellCommand, error)
}

// Deps are the collaborators the model drives.
type Deps struct {
	Ctx      context.Context
	Store    *store.Store
	Commands Commands
	Lists    ListControl
	Logs     LogFollower
	Pulls    PullStarter
	Shells   ShellStarter
	Version  string
}

type statusLine struct {
	text  string
	isErr bool
}

// Model represents the application state
type Model struct {
	deps    Deps
	keys    KeyMap
	machine *app.Machine

	// Last snapshot taken from the store
	snap        store.Snapshot
	lastVersion uint64
	history     []store.StatsPoint

	// Navigation state
	selectedRow    int
	scrollOffset   int
	viewportHeight int
	logsHeight     int

	// Display state
	width  int
	height int

	// Status line; queued messages are shown one after another
	status         statusLine
	statusSeq      int
	statusQueue    []statusLine
	animationFrame int

	// Confirmation modal: 0=Yes, 1=No
	confirmOption int

	// Log panel
	logView    viewport.Model
	autoScroll bool
	logsName   string

	// Details modal
	details        viewport.Model
	detailsLoading bool

	// Shell session
	execName string

	// Pull dialog
	pullInput textinput.Model
	spinner   spinner.Model

	help help.Model

	// Components
	header    HeaderComponent
	tabs      TabsComponent
	actionBar ActionBarComponent
}

// NewModel creates an initial model with default state
func NewModel(deps Deps) *Model {
	if deps.Ctx == nil {
		deps.Ctx = context.Background()
	}

	tabs := []TabItem{
		{Name: "Containers", Shortcut: "1"},
		{Name: "Images", Shortcut: "2"},
	}

	input := textinput.New()
	input.Placeholder = "nginx:latest"
	input.Prompt = "Image: "
	input.CharLimit = 255
	input.Width = 40

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = cyanStyle

	title := "dockyard"
	if deps.Version != "" {
		title += " " + deps.Version
	}

	m := &Model{
		deps:           deps,
		keys:           DefaultKeyMap(),
		machine:        app.NewMachine(),
		viewportHeight: 10,
		logsHeight:     8,
		width:          90,
		height:         35,
		autoScroll:     true,
		logView:        viewport.New(86, 8),
		details:        viewport.New(70, 15),
		pullInput:      input,
		spinner:        spin,
		help:           help.New(),

		header:    NewHeaderComponent(title),
		tabs:      NewTabsComponent(tabs, 0),
		actionBar: NewActionBarComponent(),
	}
	m.help.ShowAll = true
	return m
}

// Init takes the first snapshot and starts the frame clock.
func (m *Model) Init() tea.Cmd {
	m.refresh()
	m.publishViewport()
	return tea.Batch(
		frameTickCmd(),
		m.spinner.Tick,
	)
}

// Machine exposes the state machine, mainly for tests.
func (m *Model) Machine() *app.Machine {
	return m.machine
}

// selectedContainer returns the container under the cursor in the containers view.
func (m *Model) selectedContainer() (types.Container, bool) {
	if m.selectedRow < 0 || m.selectedRow >= len(m.snap.Containers) {
		return types.Container{}, false
	}
	return m.snap.Containers[m.selectedRow], true
}

// selectedImage returns the image under the cursor in the images view.
func (m *Model) selectedImage() (types.Image, bool) {
	if m.selectedRow < 0 || m.selectedRow >= len(m.snap.Images) {
		return types.Image{}, false
	}
	return m.snap.Images[m.selectedRow], true
}

// rowCount is the number of rows in the active list.
func (m *Model) rowCount() int {
	if m.machine.View() == types.ImagesView {
		return len(m.snap.Images)
	}
	return len(m.snap.Containers)
}

// refresh re-snapshots the store when it changed since the last frame.
func (m *Model) refresh() {
	if m.deps.Store == nil {
		return
	}
	if v := m.deps.Store.Version(); v == m.lastVersion && m.lastVersion != 0 {
		return
	}
	m.snap = m.deps.Store.Snapshot()
	m.lastVersion = m.snap.Version

	m.clampSelection()
	m.syncLogView()
	if m.machine.Modal() == app.DetailsOpen {
		if view, id := m.machine.DetailsTarget(); view == types.ContainersView {
			m.history = m.deps.Store.History(id)
		}
	}
}

// publishViewport tells the stats fetcher which rows are on screen.
func (m *Model) publishViewport() {
	if m.deps.Store == nil {
		return
	}
	m.deps.Store.SetViewport(types.Viewport{
		View:  m.machine.View(),
		First: m.scrollOffset,
		Count: m.viewportHeight,
	})
}

// clampSelection keeps the cursor and scroll window inside the list after
// the list shrank.
func (m *Model) clampSelection() {
	n := m.rowCount()
	if m.selectedRow >= n {
		m.selectedRow = n - 1
	}
	if m.selectedRow < 0 {
		m.selectedRow = 0
	}
	m.adjustScroll()
}

func (m *Model) adjustScroll() {
	if m.selectedRow < m.scrollOffset {
		m.scrollOffset = m.selectedRow
	}
	if m.selectedRow >= m.scrollOffset+m.viewportHeight {
		m.scrollOffset = m.selectedRow - m.viewportHeight + 1
	}
	if maxOffset := m.rowCount() - m.viewportHeight; m.scrollOffset > maxOffset {
		m.scrollOffset = max(maxOffset, 0)
	}
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}
