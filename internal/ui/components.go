package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// HeaderComponent renders the top header bar
type HeaderComponent struct {
	title   string
	summary string
	width   int
}

func NewHeaderComponent(title string) HeaderComponent {
	return HeaderComponent{
		title: title,
		width: 80,
	}
}

func (h HeaderComponent) WithWidth(width int) HeaderComponent {
	h.width = width - 2 // Account for borders
	return h
}

func (h HeaderComponent) SetSummary(summary string) HeaderComponent {
	h.summary = summary
	return h
}

func (h HeaderComponent) View() string {
	var b strings.Builder

	b.WriteString(greenStyle.Render("┌" + strings.Repeat("─", max(h.width, 0)) + "┐"))
	b.WriteString("\n")

	left := " " + h.title
	right := h.summary + " "
	room := h.width - runewidth.StringWidth(left)
	if runewidth.StringWidth(right) > room {
		right = truncateWithEllipsis(right, max(room, 0))
	}
	gap := max(h.width-runewidth.StringWidth(left)-runewidth.StringWidth(right), 0)

	b.WriteString(greenStyle.Render("│" + left))
	b.WriteString(strings.Repeat(" ", gap))
	b.WriteString(cyanStyle.Render(right))
	b.WriteString(greenStyle.Render("│"))
	b.WriteString("\n")

	return b.String()
}

// TabsComponent renders the tab navigation
type TabsComponent struct {
	tabs      []TabItem
	activeTab int
	width     int
}

type TabItem struct {
	Name     string
	Shortcut string
}

func NewTabsComponent(tabs []TabItem, activeTab int) TabsComponent {
	return TabsComponent{
		tabs:      tabs,
		activeTab: activeTab,
		width:     80,
	}
}

func (t TabsComponent) WithWidth(width int) TabsComponent {
	t.width = width - 2
	return t
}

func (t TabsComponent) SetActiveTab(index int) TabsComponent {
	t.activeTab = index
	return t
}

func (t TabsComponent) View() string {
	var b strings.Builder

	tabWidths := make([]int, len(t.tabs))
	for i, tab := range t.tabs {
		tabWidths[i] = 1 + runewidth.StringWidth(tab.Name) + 1 + runewidth.StringWidth(tab.Shortcut) + 1
	}

	b.WriteString(" ")
	for _, width := range tabWidths {
		b.WriteString(greenStyle.Render("╭" + strings.Repeat("─", width) + "╮"))
	}
	b.WriteString("\n")

	b.WriteString(" ")
	for i, tab := range t.tabs {
		b.WriteString(greenStyle.Render("│"))
		content := fmt.Sprintf(" %s %s ", tab.Name, tab.Shortcut)
		if i == t.activeTab {
			b.WriteString(yellowStyle.Render(content))
		} else {
			b.WriteString(greenStyle.Render(content))
		}
		b.WriteString(greenStyle.Render("│"))
	}
	b.WriteString("\n")

	b.WriteString(greenStyle.Render("─"))
	for i, width := range tabWidths {
		if i == t.activeTab {
			b.WriteString(greenStyle.Render("╯"))
			b.WriteString(strings.Repeat(" ", width))
			b.WriteString(greenStyle.Render("╰"))
		} else {
			b.WriteString(greenStyle.Render("┴" + strings.Repeat("─", width) + "┴"))
		}
	}

	totalTabWidth := 1
	for _, width := range tabWidths {
		totalTabWidth += width + 2
	}
	if remaining := t.width + 2 - totalTabWidth; remaining > 0 {
		b.WriteString(greenStyle.Render(strings.Repeat("─", remaining)))
	}
	b.WriteString("\n")

	return b.String()
}

// TableComponent renders a table with headers and rows
type TableComponent struct {
	headers []TableHeader
	rows    []TableRow
	start   int
	end     int
	width   int
	empty   string
}

type TableHeader struct {
	Label      string
	Width      int
	AlignRight bool
}

type TableRow struct {
	Cells      []string
	IsSelected bool
	Style      lipgloss.Style
	Span       bool // render Cells[0] across the full table width
}

func NewTableComponent(headers []TableHeader) TableComponent {
	return TableComponent{
		headers: headers,
		rows:    []TableRow{},
		width:   80,
		empty:   "No items found",
	}
}

func (t TableComponent) WithWidth(width int) TableComponent {
	t.width = width - 2
	return t
}

func (t TableComponent) SetRows(rows []TableRow) TableComponent {
	t.rows = rows
	return t
}

func (t TableComponent) SetVisibleRange(start, end int) TableComponent {
	t.start = start
	t.end = end
	return t
}

// SetEmptyText sets the line shown when there are no rows.
func (t TableComponent) SetEmptyText(text string) TableComponent {
	t.empty = text
	return t
}

// innerWidth is the width of all columns plus their separators.
func (t TableComponent) innerWidth() int {
	w := 0
	for _, h := range t.headers {
		w += h.Width
	}
	if len(t.headers) > 1 {
		w += len(t.headers) - 1
	}
	return w
}

func (t TableComponent) divider(left, mid, right string) string {
	var b strings.Builder
	b.WriteString(left)
	for i, header := range t.headers {
		b.WriteString(strings.Repeat("─", header.Width))
		if i < len(t.headers)-1 {
			b.WriteString(mid)
		}
	}
	b.WriteString(right)
	return greenStyle.Render(b.String())
}

func (t TableComponent) View() string {
	var b strings.Builder

	b.WriteString(t.divider("├", "┬", "┤"))
	b.WriteString("\n")

	b.WriteString(greenStyle.Render("│"))
	for i, header := range t.headers {
		b.WriteString(normalStyle.Render(padCenter(header.Label, header.Width)))
		if i < len(t.headers)-1 {
			b.WriteString(greenStyle.Render("│"))
		}
	}
	b.WriteString(greenStyle.Render("│"))
	b.WriteString("\n")

	b.WriteString(t.divider("├", "┼", "┤"))
	b.WriteString("\n")

	if len(t.rows) == 0 {
		inner := t.innerWidth()
		b.WriteString(greenStyle.Render("│"))
		b.WriteString(cyanStyle.Render(padRight(" "+t.empty, inner)))
		b.WriteString(greenStyle.Render("│"))
		b.WriteString("\n")
	} else {
		for i := t.start; i < t.end && i < len(t.rows); i++ {
			row := t.rows[i]
			b.WriteString(greenStyle.Render("│"))

			if row.Span && len(row.Cells) > 0 {
				b.WriteString(padRight(row.Cells[0], t.innerWidth()))
				b.WriteString(greenStyle.Render("│"))
				b.WriteString("\n")
				continue
			}

			for j, header := range t.headers {
				cell := ""
				if j < len(row.Cells) {
					cell = row.Cells[j]
				}
				if header.AlignRight {
					cell = padLeft(cell, header.Width)
				} else {
					cell = padRight(cell, header.Width)
				}
				if row.IsSelected {
					b.WriteString(yellowStyle.Render(cell))
				} else {
					b.WriteString(row.Style.Render(cell))
				}
				if j < len(t.headers)-1 {
					b.WriteString(greenStyle.Render("│"))
				}
			}
			b.WriteString(greenStyle.Render("│"))
			b.WriteString("\n")
		}
	}

	b.WriteString(t.divider("├", "┴", "┤"))
	b.WriteString("\n")

	return b.String()
}

// ActionBarComponent renders the action bar at the bottom
type ActionBarComponent struct {
	actions       string
	statusMessage string
	isError       bool
	width         int
}

func NewActionBarComponent() ActionBarComponent {
	return ActionBarComponent{
		width: 80,
	}
}

func (a ActionBarComponent) WithWidth(width int) ActionBarComponent {
	a.width = width - 2
	return a
}

func (a ActionBarComponent) SetActions(actions string) ActionBarComponent {
	a.actions = actions
	return a
}

func (a ActionBarComponent) SetStatusMessage(message string, isError bool) ActionBarComponent {
	a.statusMessage = message
	a.isError = isError
	return a
}

func (a ActionBarComponent) View() string {
	var b strings.Builder

	b.WriteString(greenStyle.Render("│"))

	switch {
	case a.statusMessage != "":
		statusStyle := cyanStyle
		if a.isError {
			statusStyle = redStyle
		}
		msg := truncateWithEllipsis(" "+a.statusMessage, a.width)
		b.WriteString(statusStyle.Render(padRight(msg, a.width)))
	case a.actions != "":
		// actions are pre-styled, so measure with lipgloss rather than truncating
		b.WriteString(padRight(a.actions, a.width))
	default:
		b.WriteString(strings.Repeat(" ", max(a.width, 0)))
	}

	b.WriteString(greenStyle.Render("│"))
	b.WriteString("\n")

	b.WriteString(greenStyle.Render("└" + strings.Repeat("─", max(a.width, 0)) + "┘"))

	return b.String()
}

// PanelComponent frames pre-rendered content, such as a viewport, with a
// titled border.
type PanelComponent struct {
	title   string
	hint    string
	content string
	lines   int
	width   int
}

func NewPanelComponent(title string, lines int) PanelComponent {
	return PanelComponent{
		title: title,
		lines: lines,
		width: 80,
	}
}

func (p PanelComponent) WithWidth(width int) PanelComponent {
	p.width = width - 2
	return p
}

func (p PanelComponent) SetHint(hint string) PanelComponent {
	p.hint = hint
	return p
}

func (p PanelComponent) SetContent(content string) PanelComponent {
	p.content = content
	return p
}

func (p PanelComponent) View() string {
	var b strings.Builder

	title := truncateWithEllipsis(" "+p.title, max(p.width-runewidth.StringWidth(p.hint)-1, 0))
	gap := max(p.width-runewidth.StringWidth(title)-runewidth.StringWidth(p.hint)-1, 0)
	b.WriteString(greenStyle.Render("│"))
	b.WriteString(brightStyle.Render(title))
	b.WriteString(strings.Repeat(" ", gap))
	b.WriteString(normalStyle.Render(p.hint + " "))
	b.WriteString(greenStyle.Render("│"))
	b.WriteString("\n")

	b.WriteString(greenStyle.Render("├" + strings.Repeat("─", max(p.width, 0)) + "┤"))
	b.WriteString("\n")

	lines := strings.Split(p.content, "\n")
	for i := 0; i < p.lines; i++ {
		line := ""
		if i < len(lines) {
			line = lines[i]
		}
		b.WriteString(greenStyle.Render("│"))
		b.WriteString(padRight(line, p.width))
		b.WriteString(greenStyle.Render("│"))
		b.WriteString("\n")
	}

	return b.String()
}

// truncateWithEllipsis cuts s to at most width terminal cells.
func truncateWithEllipsis(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}

// padRight pads s with spaces to width cells. s may carry ANSI styling.
func padRight(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

func padLeft(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return strings.Repeat(" ", width-w) + s
}

func padCenter(s string, width int) string {
	s = truncateWithEllipsis(s, width)
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	left := (width - w) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-w-left)
}
