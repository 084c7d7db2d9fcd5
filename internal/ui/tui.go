package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bamsammich/mtpsync/internal/event"
	"github.com/bamsammich/mtpsync/internal/stats"
)

// feedLines is how many finished files the interactive view keeps.
const feedLines = 8

var (
	colorGreen = lipgloss.Color("#a6e3a1")
	colorBlue  = lipgloss.Color("#89b4fa")
	colorRed   = lipgloss.Color("#f38ba8")
	colorMauve = lipgloss.Color("#cba6f7")
	colorMuted = lipgloss.Color("#5a6278")

	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorMauve)
	styleDone    = lipgloss.NewStyle().Foreground(colorGreen)
	styleFailed  = lipgloss.NewStyle().Foreground(colorRed)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleCurrent = lipgloss.NewStyle().Foreground(colorBlue)
)

type (
	eventMsg event.Event
	doneMsg  struct{}
	tickMsg  time.Time
)

func nextEvent(ch <-chan event.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// tuiModel is the Bubble Tea model of the interactive view: the file in
// flight, the last few finished files and a running total.
type tuiModel struct {
	cfg     Config
	events  <-chan event.Event
	feed    []string
	current string
	size    int64
	snap    stats.Snapshot
	speed   float64
	width   int
	done    bool
}

func newTUIModel(cfg Config, events <-chan event.Event) tuiModel {
	return tuiModel{cfg: cfg, events: events, width: 80}
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(nextEvent(m.events), tickEvery())
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cfg.Cancel != nil {
				m.cfg.Cancel()
			}
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case eventMsg:
		m.handleEvent(event.Event(msg))
		return m, nextEvent(m.events)

	case doneMsg:
		m.done = true
		m.current = ""
		m.snap = m.cfg.Stats.Snapshot()
		return m, tea.Quit

	case tickMsg:
		m.cfg.Stats.Tick()
		m.snap = m.cfg.Stats.Snapshot()
		m.speed = m.cfg.Stats.RollingSpeed(5)
		return m, tickEvery()
	}
	return m, nil
}

func (m *tuiModel) handleEvent(ev event.Event) {
	name := m.cfg.destPath(ev.Path)
	switch ev.Type {
	case event.FileStarted:
		m.current, m.size = name, ev.Size
	case event.FileCompleted:
		m.current = ""
		m.push(styleDone.Render(m.cfg.Direction.arrow()) + " " + name + "  " + styleMuted.Render(stats.FormatBytes(ev.Size)))
	case event.FileFailed:
		m.current = ""
		m.push(styleFailed.Render(fmt.Sprintf("✗ %s: %v", name, ev.Error)))
	case event.VerifyFailed:
		m.push(styleFailed.Render("✗ " + name + ": checksum mismatch"))
	case event.FileSkipped:
		m.push(styleMuted.Render("- " + name + " (skipped)"))
	case event.DirCreated:
		if m.cfg.Verbose {
			m.push(styleMuted.Render("+ " + name + "/"))
		}
	}
}

func (m *tuiModel) push(line string) {
	m.feed = append(m.feed, line)
	if len(m.feed) > feedLines {
		m.feed = m.feed[len(m.feed)-feedLines:]
	}
}

func (m tuiModel) View() string {
	line := lipgloss.NewStyle().MaxWidth(m.width)
	var b strings.Builder

	b.WriteString(styleTitle.Render("mtpsync") + " " + styleMuted.Render(m.cfg.Direction.arrow()+" "+m.cfg.Dest) + "\n")
	for _, f := range m.feed {
		b.WriteString(line.Render(f) + "\n")
	}
	if m.current != "" {
		b.WriteString(line.Render(styleCurrent.Render("› "+m.current)+"  "+styleMuted.Render(stats.FormatBytes(m.size))) + "\n")
	}
	if !m.done {
		b.WriteString(styleMuted.Render(progressLine(m.snap, m.speed)+"  q to stop") + "\n")
	}
	return b.String()
}

// tuiPresenter runs the interactive view on the error writer.
type tuiPresenter struct {
	cfg Config
}

func newTUIPresenter(cfg Config) *tuiPresenter {
	return &tuiPresenter{cfg: cfg}
}

func (p *tuiPresenter) Run(events <-chan event.Event) error {
	prog := tea.NewProgram(
		newTUIModel(p.cfg, events),
		tea.WithOutput(p.cfg.ErrWriter),
		tea.WithoutSignalHandler(),
	)
	_, err := prog.Run()
	// The view may quit before the transfer stops sending.
	for range events {
	}
	return err
}

func (p *tuiPresenter) Summary() string {
	return SummaryLine(p.cfg.Stats.Snapshot())
}
