package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"blockvm/internal/campaign"
)

type progressModel struct {
	title      string
	events     <-chan campaign.Event
	spinner    spinner.Model
	prog       progress.Model
	runs       []runItem
	stageLabel string
	covered    int
	width      int
	done       bool
}

type runItem struct {
	status  string
	tick    int
	ticks   int
	covered int
}

type eventMsg campaign.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders campaign progress
// for runs runs. It quits once events is closed.
func NewProgressModel(title string, runs int, events <-chan campaign.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]runItem, runs)
	for i := range items {
		items[i].status = "queued"
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		runs:    items,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(campaign.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.runs) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := truncate(m.title, m.width-24)
	if m.stageLabel != "" {
		header = fmt.Sprintf("%s (%s)", header, m.stageLabel)
	}
	if m.done {
		header = fmt.Sprintf("done: %s, %d blocks covered", header, m.covered)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	for i, item := range m.runs {
		statusStyled := styleStatus(item.status).Render(fmt.Sprintf("%10s", item.status))
		line := fmt.Sprintf("  %s  run %-3d", statusStyled, i)
		if item.ticks > 0 {
			line += fmt.Sprintf("  tick %d/%d", item.tick, item.ticks)
		}
		if item.covered > 0 {
			line += fmt.Sprintf("  covered %d", item.covered)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")

	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev campaign.Event) tea.Cmd {
	label := statusLabel(ev.Stage, ev.Status)
	if ev.Run < 0 || ev.Run >= len(m.runs) {
		if label != "" {
			m.stageLabel = label
		}
		if ev.Stage == campaign.StageMerge && ev.Status == campaign.StatusDone {
			m.covered = ev.Covered
		}
		return nil
	}
	item := &m.runs[ev.Run]
	if label != "" {
		item.status = label
	}
	if ev.Ticks > 0 {
		item.ticks = ev.Ticks
	}
	if ev.Tick > 0 {
		item.tick = ev.Tick
	}
	if ev.Covered > 0 {
		item.covered = ev.Covered
	}
	return m.prog.SetPercent(m.percent())
}

func (m *progressModel) percent() float64 {
	total := 0.0
	for _, item := range m.runs {
		switch {
		case item.status == "done" || item.status == "error":
			total += 1.0
		case item.ticks > 0:
			total += float64(item.tick) / float64(item.ticks)
		}
	}
	return total / float64(len(m.runs))
}

func statusLabel(stage campaign.Stage, status campaign.Status) string {
	switch status {
	case campaign.StatusQueued:
		return "queued"
	case campaign.StatusDone:
		if stage == campaign.StageSetup {
			return "ready"
		}
		return "done"
	case campaign.StatusError:
		return "error"
	case campaign.StatusWorking:
		return stageLabel(stage)
	default:
		return ""
	}
}

func stageLabel(stage campaign.Stage) string {
	switch stage {
	case campaign.StageSetup:
		return "loading"
	case campaign.StageRun:
		return "running"
	case campaign.StageMerge:
		return "merging"
	default:
		return ""
	}
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "done":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "error":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "loading", "ready", "running", "merging":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
