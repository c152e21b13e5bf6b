package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"dockyard/internal/app"
	"dockyard/internal/types"
)

// View renders the current frame. Nothing is drawn while a shell session
// holds the terminal.
func (m *Model) View() string {
	if m.machine.Mode() == app.Suspended {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.header.WithWidth(m.width).SetSummary(summary(m.snap)).View())
	b.WriteString(m.renderBanner())
	b.WriteString(m.tabs.WithWidth(m.width).View())

	bodyHeight := m.viewportHeight + 4
	switch m.machine.Modal() {
	case app.HelpOpen:
		b.WriteString(m.overlay(m.renderHelp(), bodyHeight))
	case app.PullDialog:
		b.WriteString(m.overlay(m.renderPullDialog(), bodyHeight))
	case app.DetailsOpen:
		b.WriteString(m.overlay(m.renderDetails(), bodyHeight))
	default:
		b.WriteString(m.renderList(bodyHeight))
	}

	if m.machine.LogsTarget() != "" {
		b.WriteString(m.renderLogsPanel())
	}

	bar := m.actionBar.WithWidth(m.width).SetActions(m.getActionShortcuts())
	if m.status.text != "" {
		bar = bar.SetStatusMessage(m.status.text, m.status.isErr)
	}
	b.WriteString(bar.View())

	return b.String()
}

// renderBanner always takes one line so the layout does not jump when the
// connectivity banner comes and goes.
func (m *Model) renderBanner() string {
	if m.snap.Banner == "" {
		return "\n"
	}
	text := truncateWithEllipsis(" ! "+m.snap.Banner, m.width)
	return bannerStyle.Render(padRight(text, m.width)) + "\n"
}

// renderList renders the active table padded to height lines.
func (m *Model) renderList(height int) string {
	var table string
	if m.machine.View() == types.ImagesView {
		table = m.renderImagesTab()
	} else {
		table = m.renderContainersTab()
	}

	lines := strings.Count(table, "\n")
	if lines < height {
		filler := greenStyle.Render("│") + strings.Repeat(" ", max(m.width-2, 0)) + greenStyle.Render("│") + "\n"
		table += strings.Repeat(filler, height-lines)
	}
	return table
}

func (m *Model) overlay(box string, height int) string {
	return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, box) + "\n"
}

// visibleRange returns the slice of rows shown at the current scroll position.
func (m *Model) visibleRange(n int) (int, int) {
	start := min(m.scrollOffset, n)
	end := min(m.scrollOffset+m.viewportHeight, n)
	return start, end
}

// renderContainersTab renders the containers table
func (m *Model) renderContainersTab() string {
	inner := max(m.width-2, 40)

	var headers []TableHeader
	wide := inner >= 100
	if wide {
		flex := inner - 38 - 7
		headers = []TableHeader{
			{Label: "", Width: 2},
			{Label: "NAME", Width: flex * 35 / 100},
			{Label: "IMAGE", Width: flex * 30 / 100},
			{Label: "STATUS", Width: 10},
			{Label: "HEALTH", Width: 9},
			{Label: "CPU", Width: 7, AlignRight: true},
			{Label: "MEM", Width: 10, AlignRight: true},
			{Label: "PORTS", Width: flex - flex*35/100 - flex*30/100},
		}
	} else {
		headers = []TableHeader{
			{Label: "", Width: 2},
			{Label: "NAME", Width: max(inner-29-4, 8)},
			{Label: "STATUS", Width: 10},
			{Label: "CPU", Width: 7, AlignRight: true},
			{Label: "MEM", Width: 10, AlignRight: true},
		}
	}

	table := NewTableComponent(headers).WithWidth(m.width)
	if len(m.snap.Containers) == 0 {
		empty := "No containers found"
		if !m.snap.ContainersLoaded {
			empty = "Loading containers..."
		}
		return table.SetEmptyText(empty).View()
	}

	pending, confirming := m.machine.Pending()
	confirming = confirming && pending.Kind == app.ActionLifecycle

	now := time.Now()
	start, end := m.visibleRange(len(m.snap.Containers))
	var rows []TableRow
	for i := start; i < end; i++ {
		c := m.snap.Containers[i]

		if confirming && c.ID == pending.Container.ID {
			rows = append(rows, TableRow{
				Cells: []string{renderConfirmation(pending.Prompt(), m.confirmOption)},
				Span:  true,
			})
			continue
		}

		cpu, mem := m.statsCells(c, now)
		var cells []string
		if wide {
			cells = []string{
				m.getStatusDot(c),
				truncateWithEllipsis(c.Name, headers[1].Width),
				truncateWithEllipsis(c.Image, headers[2].Width),
				c.Status.String(),
				renderHealth(c.Health),
				cpu,
				mem,
				truncateWithEllipsis(strings.Join(c.Ports, ", "), headers[7].Width),
			}
		} else {
			cells = []string{
				m.getStatusDot(c),
				truncateWithEllipsis(c.Name, headers[1].Width),
				c.Status.String(),
				cpu,
				mem,
			}
		}

		marker := c.ID == m.machine.LogsTarget()
		if marker {
			cells[1] = truncateWithEllipsis("» "+c.Name, headers[1].Width)
		}

		rows = append(rows, TableRow{
			Cells:      cells,
			IsSelected: i == m.selectedRow,
		})
	}

	return table.
		SetRows(rows).
		SetVisibleRange(0, len(rows)).
		View()
}

// statsCells renders CPU and memory for a container. Stale values are dimmed
// and a failed last fetch is marked with "!".
func (m *Model) statsCells(c types.Container, now time.Time) (string, string) {
	if c.Status != types.StatusRunning {
		return dimStyle.Render("--"), dimStyle.Render("--")
	}

	mark := ""
	if _, failed := m.snap.StatsErr[c.ID]; failed {
		mark = redStyle.Render("!")
	}

	sample, ok := m.snap.Stats[c.ID]
	if !ok {
		return dimStyle.Render("--") + mark, dimStyle.Render("--")
	}

	cpu, mem := formatCPU(sample.CPUPercent), formatMem(sample.MemUsed)
	if sample.Stale(now) {
		return dimStyle.Render(cpu) + mark, dimStyle.Render(mem)
	}
	return cpu + mark, mem
}

// renderImagesTab renders the images table
func (m *Model) renderImagesTab() string {
	inner := max(m.width-2, 40)

	var headers []TableHeader
	wide := inner >= 90
	if wide {
		headers = []TableHeader{
			{Label: "", Width: 2},
			{Label: "REPOSITORY:TAG", Width: inner - 2 - 12 - 10 - 16 - 4},
			{Label: "ID", Width: 12},
			{Label: "SIZE", Width: 10, AlignRight: true},
			{Label: "CREATED", Width: 16},
		}
	} else {
		headers = []TableHeader{
			{Label: "", Width: 2},
			{Label: "REPOSITORY:TAG", Width: max(inner-2-10-2, 8)},
			{Label: "SIZE", Width: 10, AlignRight: true},
		}
	}

	table := NewTableComponent(headers).WithWidth(m.width)
	if len(m.snap.Images) == 0 {
		empty := "No images found"
		if !m.snap.ImagesLoaded {
			empty = "Loading images..."
		}
		return table.SetEmptyText(empty).View()
	}

	pending, confirming := m.machine.Pending()
	confirming = confirming && pending.Kind == app.ActionRemoveImage

	now := time.Now()
	start, end := m.visibleRange(len(m.snap.Images))
	var rows []TableRow
	for i := start; i < end; i++ {
		img := m.snap.Images[i]

		if confirming && img.ID == pending.Image.ID {
			rows = append(rows, TableRow{
				Cells: []string{renderConfirmation(pending.Prompt(), m.confirmOption)},
				Span:  true,
			})
			continue
		}

		dot := grayStyle.Render("○")
		switch {
		case img.InUse:
			dot = greenStyle.Render("●")
		case img.Dangling:
			dot = dimStyle.Render("◌")
		}

		var cells []string
		if wide {
			cells = []string{
				dot,
				truncateWithEllipsis(img.Reference(), headers[1].Width),
				img.ShortID(),
				formatMem(uint64(max(img.Size, 0))),
				truncateWithEllipsis(formatAge(img.Created, now), headers[4].Width),
			}
		} else {
			cells = []string{
				dot,
				truncateWithEllipsis(img.Reference(), headers[1].Width),
				formatMem(uint64(max(img.Size, 0))),
			}
		}

		rows = append(rows, TableRow{
			Cells:      cells,
			IsSelected: i == m.selectedRow,
		})
	}

	return table.
		SetRows(rows).
		SetVisibleRange(0, len(rows)).
		View()
}

// renderLogsPanel renders the log panel below the list
func (m *Model) renderLogsPanel() string {
	var hints []string
	if m.snap.Logs.Dropped > 0 {
		hints = append(hints, fmt.Sprintf("%d older lines dropped", m.snap.Logs.Dropped))
	}
	switch {
	case m.snap.Logs.Err != "":
		hints = append(hints, "stream failed: "+m.snap.Logs.Err)
	case m.snap.Logs.Ended:
		hints = append(hints, "stream ended")
	case m.autoScroll:
		hints = append(hints, "following")
	default:
		hints = append(hints, "paused, [a] to follow")
	}

	return NewPanelComponent("Logs: "+m.logsName, m.logsHeight).
		WithWidth(m.width).
		SetHint(strings.Join(hints, " | ")).
		SetContent(m.logView.View()).
		View()
}

func (m *Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(brightStyle.Render("Key bindings"))
	b.WriteString("\n\n")
	b.WriteString(m.help.FullHelpView(m.keys.FullHelp()))
	b.WriteString("\n\n")
	b.WriteString(normalStyle.Render("[esc] close"))
	return modalStyle.Render(b.String())
}

func (m *Model) renderPullDialog() string {
	var b strings.Builder
	b.WriteString(brightStyle.Render("Pull image"))
	b.WriteString("\n\n")
	b.WriteString(m.pullInput.View())
	b.WriteString("\n")

	if p := m.snap.Pull; p != nil {
		b.WriteString("\n")
		switch {
		case p.Done && p.Err != nil:
			b.WriteString(redStyle.Render("✗ Pull of " + p.Image + " failed: " + p.Err.Error()))
		case p.Done:
			b.WriteString(greenStyle.Render("✓ Pulled " + p.Image))
		default:
			b.WriteString(m.spinner.View() + " " + cyanStyle.Render("Pulling "+p.Image))
		}
		b.WriteString("\n")

		layers := p.Layers
		const maxLayers = 8
		if len(layers) > maxLayers {
			b.WriteString(normalStyle.Render(fmt.Sprintf("  ... %d more layers", len(layers)-maxLayers)))
			b.WriteString("\n")
			layers = layers[len(layers)-maxLayers:]
		}
		width := max(m.pullInput.Width+8, 30)
		for _, ev := range layers {
			b.WriteString(normalStyle.Render("  " + truncateWithEllipsis(formatLayer(ev), width)))
			b.WriteString("\n")
		}
	}

	if others := m.otherPulls(); len(others) > 0 {
		b.WriteString("\n")
		b.WriteString(normalStyle.Render("Also pulling: " + strings.Join(others, ", ")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(normalStyle.Render("[enter] pull  [esc] close (pulls keep running)"))
	return modalStyle.Render(b.String())
}

// otherPulls lists in-flight pulls other than the one shown in detail.
func (m *Model) otherPulls() []string {
	var out []string
	for _, name := range m.snap.Pulling {
		if m.snap.Pull != nil && name == m.snap.Pull.Image {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (m *Model) renderDetails() string {
	view, id := m.machine.DetailsTarget()

	title := "Details"
	if view == types.ImagesView {
		for _, img := range m.snap.Images {
			if img.ID == id {
				title = "Image " + img.Reference()
				break
			}
		}
	} else {
		for _, c := range m.snap.Containers {
			if c.ID == id {
				title = "Container " + c.Name
				break
			}
		}
	}

	var b strings.Builder
	b.WriteString(brightStyle.Render(truncateWithEllipsis(title, m.details.Width)))
	b.WriteString("\n\n")
	if m.detailsLoading {
		b.WriteString(m.spinner.View() + " Loading...")
	} else {
		b.WriteString(m.details.View())
	}

	if view == types.ContainersView && len(m.history) > 0 {
		last := m.history[len(m.history)-1]
		graphWidth := max(m.details.Width-22, 10)
		b.WriteString("\n\n")
		b.WriteString(fmt.Sprintf("CPU %s %s\n", greenStyle.Render(sparkline(cpuSeries(m.history), graphWidth)), formatCPU(last.CPUPercent)))
		b.WriteString(fmt.Sprintf("MEM %s %s", cyanStyle.Render(sparkline(memSeries(m.history), graphWidth)), formatMem(last.MemUsed)))
	}

	b.WriteString("\n\n")
	b.WriteString(normalStyle.Render("[↑/↓] scroll  [esc] close"))
	return modalStyle.Render(b.String())
}

// getStatusDot returns a colored status indicator based on container status
func (m *Model) getStatusDot(c types.Container) string {
	animFrames := []string{"◴", "◷", "◶", "◵"}

	switch c.Status {
	case types.StatusRunning:
		if c.Health == types.HealthUnhealthy {
			return redStyle.Render("●")
		}
		return greenStyle.Render("●")
	case types.StatusPaused:
		return yellowStyle.Render("○")
	case types.StatusStopped:
		return grayStyle.Render("○")
	default:
		if c.State == "restarting" {
			return greenStyle.Render(animFrames[m.animationFrame%len(animFrames)])
		}
		return redStyle.Render("◌")
	}
}

func renderHealth(h types.Health) string {
	switch h {
	case types.HealthHealthy:
		return greenStyle.Render(h.String())
	case types.HealthUnhealthy:
		return redStyle.Render(h.String())
	case types.HealthStarting:
		return yellowStyle.Render(h.String())
	default:
		return dimStyle.Render(h.String())
	}
}

// renderConfirmation renders an inline confirmation prompt
func renderConfirmation(prompt string, selectedOption int) string {
	confirmStyle := lipgloss.NewStyle().
		Foreground(yellow).
		Background(bgColor).
		Bold(true)

	yesStyle := lipgloss.NewStyle().
		Foreground(green).
		Background(bgColor)

	noStyle := lipgloss.NewStyle().
		Foreground(red).
		Background(bgColor)

	var b strings.Builder
	b.WriteString(confirmStyle.Render(" " + truncateWithEllipsis(prompt, 60) + " "))

	if selectedOption == 0 {
		b.WriteString(yesStyle.Render("[Yes]"))
		b.WriteString(normalStyle.Render(" No"))
	} else {
		b.WriteString(normalStyle.Render("Yes "))
		b.WriteString(noStyle.Render("[No]"))
	}

	return b.String()
}

// getActionShortcuts returns the keyboard shortcuts for the current view
func (m *Model) getActionShortcuts() string {
	var bindings []key.Binding
	if m.machine.View() == types.ImagesView {
		bindings = m.keys.imageShortcuts()
	} else {
		bindings = m.keys.containerShortcuts()
		if m.machine.LogsTarget() != "" {
			bindings = append(bindings, m.keys.Follow, m.keys.PageUp)
		}
	}
	bindings = append(bindings, m.keys.ShortHelp()...)

	shortcuts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		shortcuts = append(shortcuts, renderShortcut(h.Key, h.Desc))
	}

	line := " " + strings.Join(shortcuts, " ")
	if lipgloss.Width(line) > m.width-2 {
		// drop shortcuts from the middle until it fits, keeping help and quit
		for len(shortcuts) > 2 && lipgloss.Width(" "+strings.Join(shortcuts, " ")) > m.width-2 {
			shortcuts = append(shortcuts[:len(shortcuts)-3], shortcuts[len(shortcuts)-2:]...)
		}
		line = " " + strings.Join(shortcuts, " ")
	}
	return line
}

// renderShortcut formats a keyboard shortcut with highlighted key
func renderShortcut(k, desc string) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(keyStyle.Render(k))
	b.WriteString("]")
	b.WriteString(shortcutTextStyle.Render(desc))
	return b.String()
}
