package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings for the dashboard.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding

	NextView       key.Binding
	ContainersView key.Binding
	ImagesView     key.Binding

	Start   key.Binding
	Stop    key.Binding
	Restart key.Binding
	Pause   key.Binding
	Remove  key.Binding
	Exec    key.Binding
	Logs    key.Binding
	Follow  key.Binding
	ShowAll key.Binding

	Pull        key.Binding
	ForceRemove key.Binding

	Details key.Binding
	Back    key.Binding
	Confirm key.Binding
	Cancel  key.Binding
	Toggle  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "scroll logs up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "scroll logs down"),
		),
		Top: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("g", "first row"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("G", "last row"),
		),
		NextView: key.NewBinding(
			key.WithKeys("tab", "shift+tab"),
			key.WithHelp("tab", "switch view"),
		),
		ContainersView: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "containers"),
		),
		ImagesView: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "images"),
		),
		Start: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start"),
		),
		Stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop"),
		),
		Restart: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "restart"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pause/unpause"),
		),
		Remove: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "remove"),
		),
		Exec: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "shell"),
		),
		Logs: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "logs"),
		),
		Follow: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "auto-scroll logs"),
		),
		ShowAll: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "show all/running"),
		),
		Pull: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pull image"),
		),
		ForceRemove: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "force remove"),
		),
		Details: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "details"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "yes"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("n", "N", "esc"),
			key.WithHelp("n", "no"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("left", "right", "h"),
			key.WithHelp("←/→", "choose"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the action bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns bindings for the help overlay, one column per group.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.NextView, k.ContainersView, k.ImagesView},
		{k.Start, k.Stop, k.Restart, k.Pause, k.Remove, k.Exec, k.ShowAll},
		{k.Logs, k.Follow, k.PageUp, k.PageDown, k.Details},
		{k.Pull, k.ForceRemove, k.Back, k.Help, k.Quit},
	}
}

// containerShortcuts and imageShortcuts drive the action bar per view.
func (k KeyMap) containerShortcuts() []key.Binding {
	return []key.Binding{k.Start, k.Stop, k.Restart, k.Pause, k.Logs, k.Exec, k.Details, k.Remove, k.ShowAll}
}

func (k KeyMap) imageShortcuts() []key.Binding {
	return []key.Binding{k.Pull, k.Details, k.Remove, k.ForceRemove}
}
