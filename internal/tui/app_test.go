package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/market-research/internal/agents"
	"github.com/jonathan/market-research/internal/llm"
	"github.com/jonathan/market-research/internal/pipeline"
)

type stubClient struct {
	failOn agents.Stage
	err    error
}

func (c *stubClient) Generate(_ context.Context, system, _ string, _ float64) (string, error) {
	stage, ok := agents.DefaultCatalog().StageForInstruction(system)
	if !ok {
		return "", &llm.InferenceError{Message: "unexpected instruction"}
	}
	if c.err != nil && stage == c.failOn {
		return "", c.err
	}
	return fmt.Sprintf("%s text", stage), nil
}

func (c *stubClient) Model() string { return "stub" }
func (c *stubClient) Close() error  { return nil }

func newTestApp(t *testing.T, client llm.Client) *App {
	t.Helper()
	app, err := NewApp(client, Options{
		StageTimeout: time.Minute,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return app
}

func key(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func update(t *testing.T, app *App, msg tea.Msg) tea.Cmd {
	t.Helper()
	model, cmd := app.Update(msg)
	require.Same(t, app, model)
	return cmd
}

// drainRun feeds every message of the current run back into the app
func drainRun(t *testing.T, app *App) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for app.state == stateRunning {
		select {
		case msg, ok := <-app.events:
			require.True(t, ok, "run ended without a result")
			update(t, app, msg)
		case <-deadline:
			t.Fatal("run did not finish")
		}
	}
}

func TestNewApp_RequiresClient(t *testing.T) {
	_, err := NewApp(nil, Options{})
	assert.Error(t, err)
}

func TestEmptyBriefDoesNotStartRun(t *testing.T) {
	for _, brief := range []string{"", "   ", "\n\n"} {
		t.Run(fmt.Sprintf("%q", brief), func(t *testing.T) {
			app := newTestApp(t, &stubClient{})
			app.brief.SetValue(brief)

			cmd := update(t, app, key(tea.KeyCtrlS))

			assert.Nil(t, cmd)
			assert.Equal(t, stateEditing, app.state)
			assert.Nil(t, app.events)
			assert.Equal(t, agents.DefaultCatalog().EmptyBriefMessage(), app.statusMsg)
			assert.Contains(t, app.View(), app.statusMsg)
		})
	}
}

func TestRunShowsAllPanels(t *testing.T) {
	app := newTestApp(t, &stubClient{})
	app.brief.SetValue("Launch a fitness app for university students in Europe.")

	cmd := update(t, app, key(tea.KeyCtrlS))
	require.NotNil(t, cmd)
	assert.Equal(t, stateRunning, app.state)
	assert.Contains(t, app.View(), "Step 1/4")

	drainRun(t, app)

	require.Equal(t, stateResults, app.state)
	require.NoError(t, app.err)
	require.NotNil(t, app.result)
	assert.Equal(t, [agents.NumStages]bool{true, true, true, true}, app.completed)

	// executive summary first, then the other three in pipeline order
	assert.Contains(t, app.output.View(), "Presenter text")
	for _, want := range []string{"Data Gatherer text", "Analyst text", "Strategist text", "Presenter text"} {
		update(t, app, key(tea.KeyTab))
		assert.Contains(t, app.output.View(), want)
	}

	update(t, app, key(tea.KeyShiftTab))
	assert.Equal(t, 3, app.activeTab)
}

func TestRunFailureShowsStage(t *testing.T) {
	app := newTestApp(t, &stubClient{
		failOn: agents.StageAnalyst,
		err:    &llm.UnavailableError{Message: "cannot reach ollama"},
	})
	app.brief.SetValue("coffee shop")

	update(t, app, key(tea.KeyCtrlS))
	drainRun(t, app)

	require.Equal(t, stateResults, app.state)
	assert.Nil(t, app.result)
	assert.ErrorIs(t, app.err, llm.ErrInferenceUnavailable)
	assert.True(t, app.completed[agents.StageGatherer])
	assert.False(t, app.completed[agents.StageAnalyst])

	view := app.View()
	assert.Contains(t, view, "Run failed")
	assert.Contains(t, app.output.View(), "Analyst stage failed")
}

func TestEscReturnsToEditing(t *testing.T) {
	app := newTestApp(t, &stubClient{})
	app.brief.SetValue("coffee shop")

	update(t, app, key(tea.KeyCtrlS))
	drainRun(t, app)
	require.Equal(t, stateResults, app.state)

	update(t, app, key(tea.KeyEsc))
	assert.Equal(t, stateEditing, app.state)
	assert.Equal(t, "coffee shop", app.brief.Value())
	assert.True(t, app.brief.Focused())
}

func TestKeysIgnoredWhileRunning(t *testing.T) {
	app := newTestApp(t, &stubClient{})
	app.state = stateRunning
	app.brief.SetValue("brief")

	cmd := update(t, app, key(tea.KeyCtrlS))
	assert.Nil(t, cmd)
	assert.Equal(t, "brief", app.brief.Value())
}

func TestCtrlCQuits(t *testing.T) {
	app := newTestApp(t, &stubClient{})
	cmd := update(t, app, key(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestHandleProgress(t *testing.T) {
	app := newTestApp(t, &stubClient{})

	app.handleProgress(pipeline.ProgressEvent{Stage: agents.StageStrategist, State: pipeline.StateStrategizing})
	assert.Equal(t, agents.StageStrategist, app.current)

	app.handleProgress(pipeline.ProgressEvent{Stage: agents.StageStrategist, State: pipeline.StateStrategizing, Completed: true})
	assert.True(t, app.completed[agents.StageStrategist])

	app.handleProgress(pipeline.ProgressEvent{Stage: agents.StagePresenter, State: pipeline.StateDone, Completed: true})
	assert.False(t, app.completed[agents.StagePresenter])
}

func TestResize(t *testing.T) {
	app := newTestApp(t, &stubClient{})
	update(t, app, tea.WindowSizeMsg{Width: 120, Height: 40})

	assert.Equal(t, 116, app.output.Width)
	assert.Equal(t, 40-headerHeight-footerHeight-2, app.output.Height)
}
