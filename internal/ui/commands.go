package ui

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"dockyard/internal/session"
	"dockyard/internal/types"
)

const (
	// FrameInterval is how often the model re-reads the store.
	FrameInterval = 200 * time.Millisecond
	// StatusTimeout is how long a transient status message stays visible.
	StatusTimeout = 4 * time.Second
)

var pastTense = map[types.LifecycleOp]string{
	types.OpStart:   "Started",
	types.OpStop:    "Stopped",
	types.OpRestart: "Restarted",
	types.OpPause:   "Paused",
	types.OpUnpause: "Unpaused",
	types.OpRemove:  "Removed",
}

// frameTickCmd drives snapshots and status animations
func frameTickCmd() tea.Cmd {
	return tea.Tick(FrameInterval, func(t time.Time) tea.Msg {
		return types.FrameTickMsg(t)
	})
}

// clearStatusCmd dismisses the status message with the given sequence number
func clearStatusCmd(seq int) tea.Cmd {
	return tea.Tick(StatusTimeout, func(time.Time) tea.Msg {
		return types.ClearStatusMsg{Seq: seq}
	})
}

// lifecycleCmd runs a lifecycle operation on a container
func (m *Model) lifecycleCmd(op types.LifecycleOp, c types.Container) tea.Cmd {
	ctx, cmds := m.deps.Ctx, m.deps.Commands
	return func() tea.Msg {
		if err := cmds.Apply(ctx, op, c); err != nil {
			return types.ActionErrorMsg(err.Error())
		}
		return types.ActionSuccessMsg(fmt.Sprintf("%s %s", pastTense[op], c.Name))
	}
}

// removeImageCmd deletes an image
func (m *Model) removeImageCmd(img types.Image, force bool) tea.Cmd {
	ctx, cmds := m.deps.Ctx, m.deps.Commands
	return func() tea.Msg {
		if err := cmds.RemoveImage(ctx, img, force); err != nil {
			return types.ActionErrorMsg(err.Error())
		}
		return types.ActionSuccessMsg("Removed image " + img.Reference())
	}
}

// inspectCmd retrieves details for a container or an image
func (m *Model) inspectCmd(view types.ViewKind, id string) tea.Cmd {
	ctx, cmds := m.deps.Ctx, m.deps.Commands
	return func() tea.Msg {
		content, err := cmds.Inspect(ctx, view, id)
		return types.DetailsMsg{ID: id, Content: content, Err: err}
	}
}

// execCmd hands the terminal to a shell in the container. bubbletea releases
// the terminal before Run and takes it back after.
func execCmd(c types.Container, shell *session.ShellCommand) tea.Cmd {
	return tea.Exec(shell, func(err error) tea.Msg {
		return types.ExecFinishedMsg{
			ContainerID: c.ID,
			ExitCode:    shell.ExitCode,
			Err:         err,
		}
	})
}

// execResult turns a finished session into a status line.
func execResult(msg types.ExecFinishedMsg, name string) (string, bool) {
	switch {
	case errors.Is(msg.Err, session.ErrNoShell):
		return fmt.Sprintf("No usable shell found in %s", name), true
	case msg.Err != nil:
		return msg.Err.Error(), true
	case msg.ExitCode != 0:
		return fmt.Sprintf("Shell in %s exited with status %d", name, msg.ExitCode), false
	default:
		return fmt.Sprintf("Shell in %s closed", name), false
	}
}
