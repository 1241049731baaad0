// Package tui is the interactive terminal front end for the pipeline.
//
// It follows the bubbletea loop: key presses and pipeline progress arrive as
// messages, Update folds them into the App, View renders the App.
//
//	editing  --ctrl+s-->  running  --result-->  results
//	   ^                     |                    |
//	   +------- esc ---------+-------- esc -------+
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jonathan/market-research/internal/agents"
	"github.com/jonathan/market-research/internal/llm"
	"github.com/jonathan/market-research/internal/pipeline"
)

// appState represents which screen we're on
type appState int

const (
	stateEditing appState = iota // typing the brief
	stateRunning                 // pipeline in progress
	stateResults                 // browsing outputs (or the failure)
)

const (
	briefCharLimit = 20000
	headerHeight   = 4
	footerHeight   = 2
)

// tab is one output panel. The executive summary comes first since it is
// what the user ran the pipeline for.
type tab struct {
	title string
	stage agents.Stage
}

var tabs = []tab{
	{title: "Executive summary", stage: agents.StagePresenter},
	{title: "Research brief", stage: agents.StageGatherer},
	{title: "Market analysis", stage: agents.StageAnalyst},
	{title: "Strategy", stage: agents.StageStrategist},
}

// progressMsg carries one pipeline progress event into the update loop
type progressMsg struct {
	event pipeline.ProgressEvent
}

// runFinishedMsg is the last message of a run
type runFinishedMsg struct {
	result *pipeline.Result
	err    error
}

// Options configures the App
type Options struct {
	Catalog      *agents.Catalog
	StageTimeout time.Duration
	Logger       *slog.Logger
}

// App is the bubbletea model
type App struct {
	client       llm.Client
	catalog      *agents.Catalog
	stageTimeout time.Duration
	logger       *slog.Logger

	state     appState
	brief     textarea.Model
	spinner   spinner.Model
	output    viewport.Model
	activeTab int

	// run in progress
	events    chan tea.Msg
	cancel    context.CancelFunc
	current   agents.Stage
	completed [agents.NumStages]bool
	started   time.Time

	result    *pipeline.Result
	err       error
	statusMsg string

	width  int
	height int
}

// NewApp creates the App around an inference client
func NewApp(client llm.Client, opts Options) (*App, error) {
	if client == nil {
		return nil, errors.New("tui: inference client is required")
	}
	if opts.Catalog == nil {
		opts.Catalog = agents.DefaultCatalog()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ta := textarea.New()
	ta.Placeholder = "Describe the product, market or idea to research..."
	ta.CharLimit = briefCharLimit
	ta.ShowLineNumbers = false
	ta.SetWidth(80)
	ta.SetHeight(8)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = runningStyle

	return &App{
		client:       client,
		catalog:      opts.Catalog,
		stageTimeout: opts.StageTimeout,
		logger:       opts.Logger,
		state:        stateEditing,
		brief:        ta,
		spinner:      sp,
		output:       viewport.New(80, 20),
		width:        80,
		height:       30,
	}, nil
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case progressMsg:
		a.handleProgress(msg.event)
		return a, waitForMsg(a.events)

	case runFinishedMsg:
		a.finishRun(msg)
		return a, nil

	case spinner.TickMsg:
		if a.state != stateRunning {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a.forward(msg)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		a.stopRun()
		return a, tea.Quit
	}

	switch a.state {
	case stateEditing:
		if msg.String() == "ctrl+s" {
			return a.startRun()
		}

	case stateRunning:
		if msg.String() == "esc" {
			a.stopRun()
			a.statusMsg = "Run cancelled"
		}
		return a, nil

	case stateResults:
		switch msg.String() {
		case "tab", "right":
			a.selectTab(a.activeTab + 1)
			return a, nil
		case "shift+tab", "left":
			a.selectTab(a.activeTab - 1)
			return a, nil
		case "esc":
			a.state = stateEditing
			a.statusMsg = ""
			return a, a.brief.Focus()
		case "q":
			return a, tea.Quit
		}
	}

	return a.forward(msg)
}

// forward passes a message to whichever component has focus
func (a *App) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.state {
	case stateEditing:
		a.brief, cmd = a.brief.Update(msg)
	case stateResults:
		a.output, cmd = a.output.Update(msg)
	}
	return a, cmd
}

// startRun validates the brief and launches the pipeline in the background.
// An empty brief only shows the guidance message.
func (a *App) startRun() (tea.Model, tea.Cmd) {
	brief := a.brief.Value()
	if strings.TrimSpace(brief) == "" {
		a.statusMsg = a.catalog.EmptyBriefMessage()
		return a, nil
	}

	events := make(chan tea.Msg, 2*agents.NumStages+2)
	orchestrator, err := pipeline.New(a.client,
		pipeline.WithCatalog(a.catalog),
		pipeline.WithLogger(a.logger),
		pipeline.WithStageTimeout(a.stageTimeout),
		pipeline.WithProgress(func(e pipeline.ProgressEvent) {
			events <- progressMsg{event: e}
		}),
	)
	if err != nil {
		a.statusMsg = err.Error()
		return a, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.events = events
	a.cancel = cancel
	a.state = stateRunning
	a.current = agents.StageGatherer
	a.completed = [agents.NumStages]bool{}
	a.started = time.Now()
	a.result = nil
	a.err = nil
	a.statusMsg = ""
	a.brief.Blur()

	go func() {
		defer close(events)
		result, err := orchestrator.Run(ctx, brief)
		events <- runFinishedMsg{result: result, err: err}
	}()

	return a, tea.Batch(a.spinner.Tick, waitForMsg(events))
}

// waitForMsg reads the next message of a run
func waitForMsg(events <-chan tea.Msg) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func (a *App) handleProgress(e pipeline.ProgressEvent) {
	if !e.Stage.Valid() {
		return
	}
	switch {
	case e.State.Terminal():
	case e.Completed:
		a.completed[e.Stage] = true
	default:
		a.current = e.Stage
	}
}

func (a *App) finishRun(msg runFinishedMsg) {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.events = nil
	a.state = stateResults
	a.result = msg.result
	a.err = msg.err
	if msg.err == nil {
		a.statusMsg = fmt.Sprintf("Completed in %s", time.Since(a.started).Round(time.Second))
	}
	a.selectTab(0)
}

// stopRun cancels a run in progress; the pipeline reports the cancellation as its result
func (a *App) stopRun() {
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *App) selectTab(i int) {
	n := len(tabs)
	a.activeTab = ((i % n) + n) % n
	a.output.SetContent(a.panelContent())
	a.output.GotoTop()
}

func (a *App) panelContent() string {
	if a.err != nil {
		return failureText(a.err)
	}
	if a.result == nil {
		return ""
	}
	width := max(20, a.output.Width)
	return lipgloss.NewStyle().Width(width).Render(a.result.Get(tabs[a.activeTab].stage))
}

// failureText describes a failed run for the results panel
func failureText(err error) string {
	var b strings.Builder
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		fmt.Fprintf(&b, "The %s stage failed.\n\n", stageErr.Stage)
	}
	b.WriteString(err.Error())
	switch {
	case errors.Is(err, context.Canceled):
		b.WriteString("\n\nThe run was cancelled.")
	case errors.Is(err, llm.ErrInferenceUnavailable):
		b.WriteString("\n\nCheck that the inference service is running and the model is available.")
	}
	return b.String()
}

func (a *App) resize(width, height int) {
	a.width, a.height = width, height
	a.brief.SetWidth(max(20, width-4))
	a.output.Width = max(20, width-4)
	a.output.Height = max(3, height-headerHeight-footerHeight-2)
	if a.state == stateResults {
		a.output.SetContent(a.panelContent())
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#5B8DEF")).
			Padding(0, 1)
	runningStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	doneStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	hintStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	activeTabStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#7D56F4")).Padding(0, 1)
	inactiveTabStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0")).Padding(0, 1)
	panelBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#7D56F4"))
)

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Market Research Pipeline"))
	b.WriteString(" ")
	b.WriteString(hintStyle.Render(a.client.Model()))
	b.WriteString("\n\n")

	switch a.state {
	case stateEditing:
		b.WriteString(a.brief.View())
		b.WriteString("\n")
		if a.statusMsg != "" {
			b.WriteString(errorStyle.Render(a.statusMsg))
			b.WriteString("\n")
		}
		b.WriteString(hintStyle.Render("ctrl+s: run • ctrl+c: quit"))

	case stateRunning:
		b.WriteString(a.stagesView())
		b.WriteString("\n")
		b.WriteString(hintStyle.Render("esc: cancel • ctrl+c: quit"))

	case stateResults:
		if a.err != nil {
			b.WriteString(errorStyle.Render("Run failed"))
		} else {
			b.WriteString(a.tabsView())
		}
		b.WriteString("\n")
		b.WriteString(panelBoxStyle.Render(a.output.View()))
		b.WriteString("\n")
		if a.statusMsg != "" {
			b.WriteString(doneStyle.Render(a.statusMsg))
			b.WriteString("  ")
		}
		b.WriteString(hintStyle.Render("tab: next panel • ↑/↓: scroll • esc: edit brief • q: quit"))
	}

	return b.String()
}

func (a *App) stagesView() string {
	lines := make([]string, 0, agents.NumStages)
	for _, stage := range agents.Stages() {
		label := fmt.Sprintf("Step %d/%d: %s", int(stage)+1, agents.NumStages, stage)
		switch {
		case a.completed[stage]:
			lines = append(lines, doneStyle.Render("✓ "+label))
		case stage == a.current:
			lines = append(lines, a.spinner.View()+runningStyle.Render(label))
		default:
			lines = append(lines, pendingStyle.Render("· "+label))
		}
	}
	return strings.Join(lines, "\n")
}

func (a *App) tabsView() string {
	rendered := make([]string, 0, len(tabs))
	for i, t := range tabs {
		if i == a.activeTab {
			rendered = append(rendered, activeTabStyle.Render(t.title))
		} else {
			rendered = append(rendered, inactiveTabStyle.Render(t.title))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// Run starts the program and blocks until the user quits
func Run(ctx context.Context, app *App) error {
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	app.stopRun()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}
