// Package dashboard is the interactive scenario surface. Every edit (or
// Enter) re-triggers a run; results arrive as bubbletea messages and are
// applied through run.Controller, so a slow earlier response can never
// overwrite a newer one.
package dashboard

import (
	"context"
	"time"

	"fwe/cmd/fwe/ui"
	"fwe/internal/history"
	"fwe/internal/run"
	"fwe/internal/scenario"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"
)

// Options configures the dashboard.
type Options struct {
	Sender          run.Sender
	Endpoint        string
	EndpointSource  string
	AutoRun         bool
	Debounce        time.Duration
	AbortSuperseded bool
	History         *history.Store
	HistoryLimit    int
	Logger          *zap.Logger
	Styles          *ui.Styles
	NotesStyle      string // glamour style name; defaults from the theme
}

type page int

const (
	pageRun page = iota
	pageHistory
)

// Model is the dashboard's bubbletea model.
type Model struct {
	ctx        context.Context
	controller *run.Controller
	builder    scenario.Builder
	logger     *zap.Logger

	endpoint       string
	endpointSource string
	autoRun        bool
	debounce       time.Duration
	debounceSeq    int

	history     *history.Store
	historyPage ui.HistoryPageModel
	page        page

	inputs        []textinput.Model
	focus         field
	spinner       spinner.Model
	styles        ui.Styles
	notesStyle    string
	renderer      *glamour.TermRenderer
	notes         string
	validationErr error
	recordErr     error

	width  int
	height int
}

// Messages for tea updates
type (
	runResultMsg struct{ outcome run.Outcome }
	debounceMsg  struct{ seq int }
	recordedMsg  struct{ err error }
)

// New builds the dashboard model.
func New(ctx context.Context, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	styles := ui.DefaultStyles()
	if opts.Styles != nil {
		styles = *opts.Styles
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	notesStyle := opts.NotesStyle
	if notesStyle == "" {
		notesStyle = "light"
		if styles.Theme.IsDark {
			notesStyle = "dark"
		}
	}

	m := Model{
		ctx: ctx,
		controller: run.New(opts.Sender,
			run.WithLogger(logger.Named("run")),
			run.WithAbortSuperseded(opts.AbortSuperseded)),
		builder:        scenario.NewBuilder(scenario.PolicyClamp),
		logger:         logger,
		endpoint:       opts.Endpoint,
		endpointSource: opts.EndpointSource,
		autoRun:        opts.AutoRun,
		debounce:       opts.Debounce,
		history:        opts.History,
		historyPage:    ui.NewHistoryPageModel(opts.History, opts.HistoryLimit, styles),
		inputs:         newInputs(styles),
		spinner:        sp,
		styles:         styles,
		notesStyle:     notesStyle,
		width:          100,
		height:         40,
	}
	m.renderer = m.newRenderer(80)
	return m
}

func (m Model) newRenderer(wrap int) *glamour.TermRenderer {
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(m.notesStyle),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		m.logger.Warn("notes renderer unavailable", zap.Error(err))
		return nil
	}
	return r
}

// Init starts the cursor blink and, with auto-run on, the first run.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.autoRun {
		seq := m.debounceSeq
		cmds = append(cmds, func() tea.Msg { return debounceMsg{seq: seq} })
	}
	return tea.Batch(cmds...)
}

// State exposes the controller state.
func (m Model) State() run.State { return m.controller.State() }

// Run starts the dashboard on the alternate screen and blocks until it
// exits.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
