package dashboard

import (
	"strings"
	"time"

	"fwe/internal/history"
	"fwe/internal/run"
	"fwe/internal/scenario"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.renderer = m.newRenderer(msg.Width - 8)
		m.notes = m.renderNotes()
		m.historyPage.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case debounceMsg:
		if msg.seq != m.debounceSeq {
			return m, nil
		}
		return m.trigger()

	case runResultMsg:
		return m.resolve(msg.outcome)

	case recordedMsg:
		m.recordErr = msg.err
		if msg.err != nil {
			m.logger.Warn("failed to record run", zap.Error(msg.err))
		} else if m.page == pageHistory {
			m.historyPage.UpdateContent()
		}
		return m, nil

	case spinner.TickMsg:
		if m.controller.State().Phase == run.Loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	return m.updateFocused(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit

	case "ctrl+t":
		if m.page == pageHistory {
			m.page = pageRun
		} else {
			m.page = pageHistory
			m.historyPage.UpdateContent()
		}
		return m, nil
	}

	if m.page == pageHistory {
		var cmd tea.Cmd
		m.historyPage, cmd = m.historyPage.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "enter", "ctrl+r":
		m.debounceSeq++
		return m.trigger()

	case "tab":
		return m.setFocus((m.focus + 1) % fieldCount), nil

	case "shift+tab":
		return m.setFocus((m.focus + fieldCount - 1) % fieldCount), nil

	case "up", "down":
		delta := 1
		if msg.String() == "down" {
			delta = -1
		}
		next, ok := stepValue(m.focus, m.inputs[m.focus].Value(), delta)
		if !ok {
			// plain fields move focus instead
			if delta > 0 {
				return m.setFocus((m.focus + fieldCount - 1) % fieldCount), nil
			}
			return m.setFocus((m.focus + 1) % fieldCount), nil
		}
		m.inputs[m.focus].SetValue(next)
		return m.edited()
	}

	return m.updateFocused(msg)
}

func (m Model) setFocus(f field) Model {
	m.inputs[m.focus].Blur()
	m.focus = f
	m.inputs[m.focus].Focus()
	return m
}

func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	before := m.inputs[m.focus].Value()
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	if m.inputs[m.focus].Value() == before {
		return m, cmd
	}
	next, editCmd := m.edited()
	return next, tea.Batch(cmd, editCmd)
}

// edited schedules a debounced run when auto-run is on.
func (m Model) edited() (tea.Model, tea.Cmd) {
	if !m.autoRun {
		return m, nil
	}
	m.debounceSeq++
	seq := m.debounceSeq
	return m, tea.Tick(m.debounce, func(time.Time) tea.Msg { return debounceMsg{seq: seq} })
}

// trigger builds a request from the form and starts a run. Validation
// failures are shown and nothing is sent.
func (m Model) trigger() (tea.Model, tea.Cmd) {
	raw, err := scenario.ParseForm(formInput(m.inputs))
	if err == nil {
		var req scenario.Request
		req, err = m.builder.Build(raw)
		if err == nil {
			m.validationErr = nil
			token, job := m.controller.Trigger(m.ctx, req)
			m.logger.Debug("dashboard run", zap.Uint64("token", uint64(token)), zap.Stringer("request", req))
			return m, tea.Batch(m.spinner.Tick, runJob(job))
		}
	}
	m.validationErr = err
	return m, nil
}

func runJob(job run.Job) tea.Cmd {
	return func() tea.Msg { return runResultMsg{outcome: job()} }
}

func (m Model) resolve(o run.Outcome) (tea.Model, tea.Cmd) {
	if !m.controller.Resolve(o) {
		return m, nil
	}
	if o.Err == nil {
		m.notes = m.renderNotes()
	}
	if m.history == nil {
		return m, nil
	}
	store, endpoint, ctx := m.history, m.endpoint, m.ctx
	return m, func() tea.Msg {
		_, err := store.Record(ctx, history.SourceDashboard, endpoint, o)
		return recordedMsg{err: err}
	}
}

// renderNotes renders the notes of the shown result as markdown.
func (m Model) renderNotes() string {
	resp, ok := m.shownResponse()
	if !ok || len(resp.Notes) == 0 {
		return ""
	}
	var md strings.Builder
	for _, n := range resp.Notes {
		md.WriteString("- ")
		md.WriteString(n)
		md.WriteString("\n")
	}
	if m.renderer == nil {
		return md.String()
	}
	out, err := m.renderer.Render(md.String())
	if err != nil {
		m.logger.Debug("notes render failed", zap.Error(err))
		return md.String()
	}
	return out
}

// shownResponse is the result on screen: the current success, or the last
// success while a newer run is loading or has failed.
func (m Model) shownResponse() (scenario.Response, bool) {
	st := m.controller.State()
	if st.Phase == run.Succeeded {
		return st.Response, true
	}
	return m.controller.LastSuccess()
}
