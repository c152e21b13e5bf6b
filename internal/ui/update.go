package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"dockyard/internal/app"
	"dockyard/internal/store"
	"dockyard/internal/types"
	"dockyard/pkg/logging"
)

var progressive = map[types.LifecycleOp]string{
	types.OpStart:   "Starting",
	types.OpStop:    "Stopping",
	types.OpRestart: "Restarting",
	types.OpPause:   "Pausing",
	types.OpUnpause: "Unpausing",
	types.OpRemove:  "Removing",
}

// Update handles all incoming messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleResize(msg)
		return m, nil

	case types.FrameTickMsg:
		return m, m.handleFrame()

	case types.ClearStatusMsg:
		if msg.Seq == m.statusSeq {
			m.status = statusLine{}
			return m, m.nextStatus()
		}
		return m, nil

	case types.ActionSuccessMsg:
		return m, m.setStatus(string(msg), false)

	case types.ActionErrorMsg:
		return m, m.setStatus(string(msg), true)

	case types.DetailsMsg:
		return m, m.handleDetails(msg)

	case types.ExecFinishedMsg:
		return m, m.handleExecFinished(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	// Cursor blink and other input internals
	if m.machine.Modal() == app.PullDialog {
		var cmd tea.Cmd
		m.pullInput, cmd = m.pullInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleResize updates dimensions when the terminal is resized
func (m *Model) handleResize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height
	m.layout()
	m.publishViewport()
}

// layout splits the screen between the list and the log panel.
// Fixed chrome: header 2, banner 1, tabs 3, table borders 4, action bar 2.
func (m *Model) layout() {
	avail := m.height - 12
	if m.machine.LogsTarget() != "" {
		m.logsHeight = max(avail/2-2, 3)
		avail -= m.logsHeight + 2
	}
	m.viewportHeight = max(avail, 3)

	m.logView.Width = max(m.width-2, 10)
	m.logView.Height = m.logsHeight
	m.details.Width = max(m.width*3/4, 30)
	m.details.Height = max(m.height-16, 5)
	m.pullInput.Width = max(min(m.width/2, 60), 20)

	m.adjustScroll()
}

// handleFrame re-reads the store and surfaces queued notices. Nothing is
// read while a shell session holds the terminal; the frame after resuming
// picks everything up.
func (m *Model) handleFrame() tea.Cmd {
	m.animationFrame = (m.animationFrame + 1) % 4
	if m.machine.Mode() == app.Suspended {
		return frameTickCmd()
	}

	m.refresh()
	m.publishViewport()

	cmds := []tea.Cmd{frameTickCmd()}
	if m.deps.Store != nil {
		if notices := m.deps.Store.DrainNotices(); len(notices) > 0 {
			for _, n := range notices[1:] {
				m.statusQueue = append(m.statusQueue, statusLine{text: n.Text, isErr: n.Err})
			}
			cmds = append(cmds, m.setStatus(notices[0].Text, notices[0].Err))
		}
	}
	return tea.Batch(cmds...)
}

// setStatus shows a transient message and schedules its dismissal.
func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.statusSeq++
	m.status = statusLine{text: text, isErr: isErr}
	return clearStatusCmd(m.statusSeq)
}

// nextStatus shows the next queued message, if any.
func (m *Model) nextStatus() tea.Cmd {
	if len(m.statusQueue) == 0 {
		return nil
	}
	next := m.statusQueue[0]
	m.statusQueue = m.statusQueue[1:]
	return m.setStatus(next.text, next.isErr)
}

// handleKeyPress routes keys by the active modal, then by the active view
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.machine.Mode() == app.Suspended {
		return m, nil
	}

	switch m.machine.Modal() {
	case app.HelpOpen:
		return m.handleHelpKeys(msg)
	case app.ConfirmModal:
		return m.handleConfirmKeys(msg)
	case app.PullDialog:
		return m.handlePullKeys(msg)
	case app.DetailsOpen:
		return m.handleDetailsKeys(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.closeLogs()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		if err := m.machine.OpenHelp(); err != nil {
			return m, m.setStatus(err.Error(), true)
		}
		return m, nil
	case key.Matches(msg, m.keys.NextView):
		next := types.ImagesView
		if m.machine.View() == types.ImagesView {
			next = types.ContainersView
		}
		return m, m.switchView(next)
	case key.Matches(msg, m.keys.ContainersView):
		return m, m.switchView(types.ContainersView)
	case key.Matches(msg, m.keys.ImagesView):
		return m, m.switchView(types.ImagesView)
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
		return m, nil
	case key.Matches(msg, m.keys.Top):
		m.moveCursor(-m.rowCount())
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.moveCursor(m.rowCount())
		return m, nil
	case key.Matches(msg, m.keys.Details):
		return m, m.openDetails()
	}

	if m.machine.View() == types.ImagesView {
		return m.handleImageKeys(msg)
	}
	return m.handleContainerKeys(msg)
}

func (m *Model) moveCursor(delta int) {
	m.selectedRow += delta
	m.clampSelection()
	m.publishViewport()
}

// handleContainerKeys handles keys specific to the containers view
func (m *Model) handleContainerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Start):
		return m, m.requestLifecycle(types.OpStart)
	case key.Matches(msg, m.keys.Stop):
		return m, m.requestLifecycle(types.OpStop)
	case key.Matches(msg, m.keys.Restart):
		return m, m.requestLifecycle(types.OpRestart)
	case key.Matches(msg, m.keys.Pause):
		op := types.OpPause
		if c, ok := m.selectedContainer(); ok && c.Status == types.StatusPaused {
			op = types.OpUnpause
		}
		return m, m.requestLifecycle(op)
	case key.Matches(msg, m.keys.Remove):
		c, ok := m.selectedContainer()
		if !ok {
			return m, nil
		}
		return m, m.openConfirm(app.PendingAction{Kind: app.ActionLifecycle, Op: types.OpRemove, Container: c})
	case key.Matches(msg, m.keys.Logs):
		return m, m.toggleLogs()
	case key.Matches(msg, m.keys.Back):
		m.closeLogs()
		return m, nil
	case key.Matches(msg, m.keys.Follow):
		if m.machine.LogsTarget() == "" {
			return m, nil
		}
		m.autoScroll = !m.autoScroll
		if m.autoScroll {
			m.logView.GotoBottom()
		}
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.scrollLogs(-1)
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.scrollLogs(1)
		return m, nil
	case key.Matches(msg, m.keys.Exec):
		return m, m.startShell()
	case key.Matches(msg, m.keys.ShowAll):
		all := !m.snap.ShowAll
		m.snap.ShowAll = all
		m.deps.Lists.SetShowAll(all)
		if all {
			return m, m.setStatus("Showing all containers", false)
		}
		return m, m.setStatus("Showing running containers only", false)
	}
	return m, nil
}

// handleImageKeys handles keys specific to the images view
func (m *Model) handleImageKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Pull):
		if err := m.machine.OpenPullDialog(); err != nil {
			return m, m.setStatus(err.Error(), true)
		}
		m.pullInput.SetValue("")
		return m, m.pullInput.Focus()
	case key.Matches(msg, m.keys.Remove), key.Matches(msg, m.keys.ForceRemove):
		img, ok := m.selectedImage()
		if !ok {
			return m, nil
		}
		force := key.Matches(msg, m.keys.ForceRemove)
		return m, m.openConfirm(app.PendingAction{Kind: app.ActionRemoveImage, Image: img, Force: force})
	}
	return m, nil
}

// requestLifecycle validates op locally and dispatches it in the background.
func (m *Model) requestLifecycle(op types.LifecycleOp) tea.Cmd {
	c, ok := m.selectedContainer()
	if !ok {
		return nil
	}
	if err := app.ValidateLifecycle(op, c.Status); err != nil {
		return m.setStatus(fmt.Sprintf("Cannot %s %s: container is %s", op, c.Name, strings.ToLower(c.Status.String())), true)
	}
	return tea.Batch(
		m.setStatus(fmt.Sprintf("%s %s...", progressive[op], c.Name), false),
		m.lifecycleCmd(op, c),
	)
}

func (m *Model) openConfirm(action app.PendingAction) tea.Cmd {
	if err := m.machine.OpenConfirm(action); err != nil {
		return m.setStatus(err.Error(), true)
	}
	m.confirmOption = 1
	return nil
}

// handleConfirmKeys handles the yes/no confirmation modal
func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		return m, m.confirm()
	case key.Matches(msg, m.keys.Cancel):
		m.machine.CloseModal()
		return m, nil
	case key.Matches(msg, m.keys.Toggle), key.Matches(msg, m.keys.NextView):
		m.confirmOption = 1 - m.confirmOption
		return m, nil
	case msg.Type == tea.KeyEnter:
		if m.confirmOption == 0 {
			return m, m.confirm()
		}
		m.machine.CloseModal()
		return m, nil
	}
	return m, nil
}

// confirm runs the pending action. The modal closes before the command runs.
func (m *Model) confirm() tea.Cmd {
	action, err := m.machine.Confirm()
	if err != nil {
		return nil
	}

	if action.Kind == app.ActionRemoveImage {
		return tea.Batch(
			m.setStatus("Removing image "+action.Image.Reference()+"...", false),
			m.removeImageCmd(action.Image, action.Force),
		)
	}
	return tea.Batch(
		m.setStatus(fmt.Sprintf("%s %s...", progressive[action.Op], action.Container.Name), false),
		m.lifecycleCmd(action.Op, action.Container),
	)
}

// handlePullKeys handles the pull dialog. Closing it discards the shown
// progress but leaves pulls running.
func (m *Model) handlePullKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.pullInput.Blur()
		m.machine.CloseModal()
		m.deps.Store.DiscardPull()
		m.snap.Pull = nil
		return m, nil
	case tea.KeyCtrlC:
		m.closeLogs()
		return m, tea.Quit
	case tea.KeyEnter:
		name := strings.TrimSpace(m.pullInput.Value())
		if name == "" {
			return m, nil
		}
		ref, err := m.deps.Pulls.Start(name)
		if err != nil {
			if errors.Is(err, store.ErrPullInProgress) {
				return m, m.setStatus(fmt.Sprintf("%s is already being pulled", ref), true)
			}
			return m, m.setStatus(err.Error(), true)
		}
		m.pullInput.SetValue("")
		return m, m.setStatus("Pulling "+ref+"...", false)
	}

	var cmd tea.Cmd
	m.pullInput, cmd = m.pullInput.Update(msg)
	return m, cmd
}

// handleDetailsKeys scrolls or closes the details modal
func (m *Model) handleDetailsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.Details):
		m.machine.CloseModal()
		m.history = nil
		return m, nil
	}
	var cmd tea.Cmd
	m.details, cmd = m.details.Update(msg)
	return m, cmd
}

func (m *Model) handleHelpKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Help, m.keys.Back, m.keys.Quit) {
		m.machine.CloseModal()
	}
	return m, nil
}

func (m *Model) switchView(v types.ViewKind) tea.Cmd {
	if v == m.machine.View() {
		return nil
	}
	hadLogs := m.machine.LogsTarget() != ""
	if err := m.machine.SwitchView(v); err != nil {
		return m.setStatus(err.Error(), true)
	}
	if hadLogs && m.machine.LogsTarget() == "" {
		m.deps.Logs.Close()
	}

	m.tabs = m.tabs.SetActiveTab(int(v))
	m.selectedRow = 0
	m.scrollOffset = 0
	m.layout()
	m.publishViewport()
	return nil
}

func (m *Model) toggleLogs() tea.Cmd {
	c, ok := m.selectedContainer()
	if !ok {
		return nil
	}
	if m.machine.LogsTarget() == c.ID {
		m.closeLogs()
		return nil
	}
	if err := m.machine.OpenLogs(c.ID); err != nil {
		return m.setStatus(err.Error(), true)
	}

	m.logsName = c.Name
	m.autoScroll = true
	m.logView.SetContent("")
	m.deps.Logs.Open(c.ID)
	m.layout()
	m.publishViewport()
	return nil
}

func (m *Model) closeLogs() {
	if m.machine.LogsTarget() == "" {
		return
	}
	m.machine.CloseLogs()
	m.deps.Logs.Close()
	m.layout()
	m.publishViewport()
}

// scrollLogs moves the log panel by a page. Scrolling away from the bottom
// stops following; reaching it again resumes.
func (m *Model) scrollLogs(pages int) {
	if m.machine.LogsTarget() == "" {
		return
	}
	m.logView.SetYOffset(m.logView.YOffset + pages*m.logView.Height)
	m.autoScroll = m.logView.AtBottom()
}

// syncLogView copies the log buffer into the log panel.
func (m *Model) syncLogView() {
	target := m.machine.LogsTarget()
	if target == "" || m.snap.Logs.ContainerID != target {
		return
	}
	content := strings.ReplaceAll(strings.Join(m.snap.Logs.Lines, "\n"), "\t", "    ")
	m.logView.SetContent(content)
	if m.autoScroll {
		m.logView.GotoBottom()
	}
}

func (m *Model) openDetails() tea.Cmd {
	view := m.machine.View()

	var id string
	if view == types.ImagesView {
		img, ok := m.selectedImage()
		if !ok {
			return nil
		}
		id = img.ID
	} else {
		c, ok := m.selectedContainer()
		if !ok {
			return nil
		}
		id = c.ID
	}

	if err := m.machine.OpenDetails(view, id); err != nil {
		return m.setStatus(err.Error(), true)
	}
	m.detailsLoading = true
	m.details.SetContent("")
	m.details.GotoTop()
	m.history = nil
	if view == types.ContainersView && m.deps.Store != nil {
		m.history = m.deps.Store.History(id)
	}
	return m.inspectCmd(view, id)
}

func (m *Model) handleDetails(msg types.DetailsMsg) tea.Cmd {
	if _, id := m.machine.DetailsTarget(); m.machine.Modal() != app.DetailsOpen || id != msg.ID {
		return nil
	}

	m.detailsLoading = false
	if msg.Err != nil {
		m.details.SetContent("Failed to load details: " + msg.Err.Error())
		return m.setStatus(msg.Err.Error(), true)
	}
	m.details.SetContent(msg.Content)
	m.details.GotoTop()
	return nil
}

// startShell suspends the dashboard and hands the terminal to a shell in the
// selected container.
func (m *Model) startShell() tea.Cmd {
	c, ok := m.selectedContainer()
	if !ok {
		return nil
	}
	if c.Status != types.StatusRunning {
		return m.setStatus(fmt.Sprintf("Cannot open a shell in %s: container is %s", c.Name, strings.ToLower(c.Status.String())), true)
	}

	if err := m.machine.Suspend(); err != nil {
		return m.setStatus(err.Error(), true)
	}
	shell, err := m.deps.Shells.Begin(c.ID, c.Name)
	if err != nil {
		_ = m.machine.Resume()
		return m.setStatus(err.Error(), true)
	}

	m.execName = c.Name
	logging.Debug("ui", "suspending for shell in %s", c.Name)
	return execCmd(c, shell)
}

// handleExecFinished takes the terminal back and forces a full redraw.
func (m *Model) handleExecFinished(msg types.ExecFinishedMsg) tea.Cmd {
	if err := m.machine.Resume(); err != nil {
		logging.Warn("ui", "resume after shell: %v", err)
	}
	logging.Debug("ui", "resumed after shell in %s (status %d)", m.execName, msg.ExitCode)

	m.lastVersion = 0
	m.refresh()
	m.publishViewport()

	text, isErr := execResult(msg, m.execName)
	return tea.Batch(tea.ClearScreen, m.setStatus(text, isErr))
}
