// Package tui renders a local report generation in the terminal: the step log,
// the phase checklist and a progress bar driven by the simulator.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/JakeFAU/signal-news/internal/phase"
	"github.com/JakeFAU/signal-news/internal/report"
	"github.com/JakeFAU/signal-news/internal/simulator"
)

const maxBarWidth = 60

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3B82F6"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	activeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	contentStyle = lipgloss.NewStyle().Padding(1, 2)
)

type stepMsg simulator.Step

type doneMsg struct {
	id  string
	err error
}

// Model is the bubbletea model for one generation run.
type Model struct {
	topic   string
	prefs   report.Preferences
	handle  *simulator.Handle
	tracker *phase.Tracker
	bar     progress.Model

	steps    []string
	reportID string
	err      error
	canceled bool
	finished bool
}

// New creates a Model following h. The caller owns h; the model cancels it on
// ctrl+c, q or esc.
func New(h *simulator.Handle, topic string, prefs report.Preferences) Model {
	tracker := phase.NewTracker()
	tracker.Start()
	return Model{
		topic:   topic,
		prefs:   prefs,
		handle:  h,
		tracker: tracker,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Init starts listening for steps.
func (m Model) Init() tea.Cmd {
	return waitForStep(m.handle)
}

// waitForStep reads the next step, or the result once the updates channel closes.
func waitForStep(h *simulator.Handle) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-h.Updates()
		if !ok {
			id, err := h.Result()
			return doneMsg{id: id, err: err}
		}
		return stepMsg(st)
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.finished {
				m.handle.Cancel()
				m.canceled = true
				m.finished = true
				m.tracker.Reset()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-8, 10), maxBarWidth)

	case stepMsg:
		m.tracker.Observe(msg.Text)
		m.steps = append(m.steps, msg.Text)
		return m, waitForStep(m.handle)

	case doneMsg:
		m.finished = true
		switch {
		case msg.err == nil:
			m.reportID = msg.id
		case errors.Is(msg.err, context.Canceled):
			m.canceled = true
			m.tracker.Reset()
		default:
			m.err = msg.err
			m.tracker.Reset()
		}
		return m, tea.Quit
	}
	return m, nil
}

// View renders the model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Signal News"))
	b.WriteString("\n")
	b.WriteString(subtleStyle.Render(fmt.Sprintf("%s · focus %s · depth %d · tone %s",
		m.topic, m.prefs.Focus, m.prefs.Depth, m.prefs.Tone)))
	b.WriteString("\n\n")

	state := m.tracker.State()
	reached := m.tracker.Index()
	for _, p := range phase.All() {
		switch {
		case m.reportID != "" || p.Ordinal < reached:
			b.WriteString(doneStyle.Render("✓ " + p.Title))
		case p.Ordinal == reached:
			b.WriteString(activeStyle.Render("● " + p.Title))
		default:
			b.WriteString(subtleStyle.Render("○ " + p.Title))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	percent := state.Percent
	if m.reportID != "" {
		percent = 100
	}
	b.WriteString(m.bar.ViewAs(percent / 100))
	b.WriteString("\n\n")

	switch {
	case m.reportID != "":
		b.WriteString(doneStyle.Render("Report ready: " + m.reportID))
	case m.err != nil:
		b.WriteString(errorStyle.Render("Generation failed: " + m.err.Error()))
	case m.canceled:
		b.WriteString(errorStyle.Render("Generation canceled"))
	case state.CurrentStep != "":
		b.WriteString(state.CurrentStep)
		b.WriteString("\n")
		b.WriteString(subtleStyle.Render("Press ctrl+c to cancel"))
	default:
		b.WriteString(subtleStyle.Render("Starting..."))
	}
	b.WriteString("\n")
	return contentStyle.Render(b.String())
}

// ReportID is the identifier of a finished run, or "".
func (m Model) ReportID() string {
	return m.reportID
}

// Err is the run's failure, if any.
func (m Model) Err() error {
	return m.err
}

// Canceled reports whether the run was stopped before it finished.
func (m Model) Canceled() bool {
	return m.canceled
}

// Steps returns the step messages received so far.
func (m Model) Steps() []string {
	return append([]string(nil), m.steps...)
}
