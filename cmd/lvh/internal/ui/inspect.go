// Package ui implements the terminal debug window of lvh inspect.
package ui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/livefir/livehydrate"
	"github.com/livefir/livehydrate/cmd/lvh/internal/session"
	"github.com/livefir/livehydrate/widget/builtin"
)

// Tabs of the debug window.
const (
	TabData = iota
	TabMarkup
	TabRendered
	TabStages
)

var tabNames = []string{"Data Context", "Raw Markup", "Rendered", "Stage Events"}

var (
	activeTabStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).Underline(true).Padding(0, 1)
	inactiveTabStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Padding(0, 1)
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
)

// Model steps through a recorded session one record at a time. Stepping
// backwards replays the session from the start into a fresh engine.
type Model struct {
	cfg   *livehydrate.Config
	steps []session.Step

	engine *livehydrate.Engine
	cursor int // number of steps applied
	data   livehydrate.DataContext
	stages []livehydrate.StageEvent
	errMsg string

	tab      int
	viewport viewport.Model
	ready    bool
	quitting bool
}

// NewModel creates the debug window for steps. No step is applied yet.
func NewModel(cfg *livehydrate.Config, steps []session.Step) (*Model, error) {
	m := &Model{cfg: cfg, steps: steps, viewport: viewport.New(80, 20)}
	if err := m.restart(); err != nil {
		return nil, err
	}
	return m, nil
}

// Run starts the interactive program.
func Run(cfg *livehydrate.Config, steps []session.Step) error {
	m, err := NewModel(cfg, steps)
	if err != nil {
		return err
	}
	defer m.Close()

	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// Close releases the engine.
func (m *Model) Close() {
	if m.engine != nil {
		_ = m.engine.Close()
	}
}

func (m *Model) restart() error {
	m.Close()
	m.stages = nil
	m.data = nil
	m.errMsg = ""
	m.cursor = 0

	engine, err := livehydrate.New(livehydrate.Options{
		Config:   m.cfg,
		Registry: builtin.NewRegistry(),
		OnStage: func(ev livehydrate.StageEvent) {
			m.stages = append(m.stages, ev)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	m.engine = engine
	return nil
}

// Forward applies the next step. It reports whether there was one.
func (m *Model) Forward() bool {
	if m.cursor >= len(m.steps) {
		return false
	}
	step := m.steps[m.cursor]
	m.cursor++

	switch {
	case step.Record.Event == session.KindError:
		m.errMsg = step.Record.Message
	case step.Apply:
		if step.Event.Data != nil {
			m.data = step.Event.Data
		}
		if err := m.engine.Apply(step.Event); err != nil {
			m.errMsg = err.Error()
		}
	}
	m.refresh()
	return true
}

// Back rewinds one step by replaying everything before it.
func (m *Model) Back() bool {
	if m.cursor == 0 {
		return false
	}
	target := m.cursor - 1
	if err := m.restart(); err != nil {
		m.errMsg = err.Error()
		return false
	}
	for m.cursor < target {
		m.Forward()
	}
	m.refresh()
	return true
}

// Cursor is the number of applied steps.
func (m *Model) Cursor() int {
	return m.cursor
}

// Tab is the active tab.
func (m *Model) Tab() int {
	return m.tab
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// tabs, blank line, status
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-3, 1)
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "n", "right", "l", " ":
			m.Forward()
			return m, nil
		case "p", "left", "h":
			m.Back()
			return m, nil
		case "tab":
			m.tab = (m.tab + 1) % len(tabNames)
			m.refresh()
			return m, nil
		case "shift+tab":
			m.tab = (m.tab + len(tabNames) - 1) % len(tabNames)
			m.refresh()
			return m, nil
		case "1", "2", "3", "4":
			m.tab = int(msg.String()[0] - '1')
			m.refresh()
			return m, nil
		case "end", "G":
			for m.Forward() {
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.content())
	m.viewport.GotoTop()
}

func (m *Model) content() string {
	switch m.tab {
	case TabData:
		if len(m.data) == 0 {
			return "(no data context)"
		}
		b, err := json.MarshalIndent(m.data, "", "  ")
		if err != nil {
			return err.Error()
		}
		return string(b)

	case TabMarkup:
		if m.cursor == 0 {
			return ""
		}
		return m.steps[m.cursor-1].Payload

	case TabRendered:
		var b strings.Builder
		b.WriteString(m.engine.HTML())
		if mounted := m.engine.Mounted(); len(mounted) > 0 {
			b.WriteString("\n\nmounted: " + strings.Join(mounted, ", "))
		}
		return b.String()

	case TabStages:
		var b strings.Builder
		for _, ev := range m.stages {
			fmt.Fprintf(&b, "%s  %-9s %s\n", ev.Time.Format("15:04:05.000"), ev.Stage, ev.Message)
		}
		return b.String()
	}
	return ""
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	tabs := make([]string, len(tabNames))
	for i, name := range tabNames {
		if i == m.tab {
			tabs[i] = activeTabStyle.Render(name)
		} else {
			tabs[i] = inactiveTabStyle.Render(name)
		}
	}

	status := fmt.Sprintf("step %d/%d", m.cursor, len(m.steps))
	if m.cursor > 0 {
		status += "  " + m.steps[m.cursor-1].Describe()
	}
	status = statusStyle.Render(status + "  (n/p step, tab switch, q quit)")
	if m.errMsg != "" {
		status += "  " + errorStyle.Render(m.errMsg)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...) + "\n" + m.viewport.View() + "\n" + status
}
