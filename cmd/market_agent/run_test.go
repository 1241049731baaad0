package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/market-research/internal/agents"
	"github.com/jonathan/market-research/internal/llm"
	"github.com/jonathan/market-research/internal/pipeline"
)

type stubClient struct {
	err   error
	calls int
}

func (c *stubClient) Generate(_ context.Context, system, _ string, _ float64) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	stage, ok := agents.DefaultCatalog().StageForInstruction(system)
	if !ok {
		return "", &llm.InferenceError{Message: "unexpected instruction"}
	}
	return fmt.Sprintf("%s text", stage), nil
}

func (c *stubClient) Model() string { return "stub" }
func (c *stubClient) Close() error  { return nil }

func newParams(client llm.Client, mode outputMode) (runParams, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return runParams{
		client:       client,
		catalog:      agents.DefaultCatalog(),
		stageTimeout: time.Minute,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		mode:         mode,
		stdout:       &stdout,
		stderr:       &stderr,
	}, &stdout, &stderr
}

func TestReadBrief(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "single line", input: "Coffee shop in Milan\n", want: "Coffee shop in Milan"},
		{name: "stops at blank line", input: "line one\nline two\n\nignored\n", want: "line one\nline two"},
		{name: "whitespace line ends input", input: "line one\n   \nignored", want: "line one"},
		{name: "eof without newline", input: "no newline", want: "no newline"},
		{name: "crlf", input: "windows\r\nline\r\n\r\n", want: "windows\nline"},
		{name: "empty", input: "", want: ""},
		{name: "leading blank line", input: "\nlate brief\n", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readBrief(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveBrief(t *testing.T) {
	t.Cleanup(func() { runBrief, runBriefFile = "", "" })

	runBrief = "from flag"
	got, err := resolveBrief(strings.NewReader("from stdin\n"), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "from flag", got)

	path := filepath.Join(t.TempDir(), "brief.txt")
	require.NoError(t, os.WriteFile(path, []byte("first paragraph\n\nsecond paragraph\n"), 0o644))
	runBrief, runBriefFile = "", path
	got, err = resolveBrief(strings.NewReader("from stdin\n"), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "first paragraph\n\nsecond paragraph\n", got)

	runBriefFile = ""
	got, err = resolveBrief(strings.NewReader("from stdin\n"), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)

	runBriefFile = filepath.Join(t.TempDir(), "missing.txt")
	_, err = resolveBrief(strings.NewReader(""), io.Discard)
	assert.ErrorContains(t, err, "failed to read brief file")
}

func TestRunPipeline_Summary(t *testing.T) {
	client := &stubClient{}
	p, stdout, stderr := newParams(client, outputSummary)

	require.NoError(t, runPipeline(context.Background(), p, "coffee shop"))

	assert.Equal(t, "Presenter text\n", stdout.String())
	assert.Equal(t, agents.NumStages, client.calls)
	for _, step := range []string{
		"Step 1/4: Data Gatherer is working...",
		"Step 2/4: Analyst is working...",
		"Step 3/4: Strategist is working...",
		"Step 4/4: Presenter is working...",
	} {
		assert.Contains(t, stderr.String(), step)
	}
	assert.Contains(t, stderr.String(), "Completed in")
}

func TestRunPipeline_All(t *testing.T) {
	p, stdout, _ := newParams(&stubClient{}, outputAll)

	require.NoError(t, runPipeline(context.Background(), p, "coffee shop"))

	out := stdout.String()
	assert.Contains(t, out, "=== Data Gatherer (research_brief) ===\nData Gatherer text\n")
	assert.Contains(t, out, "=== Presenter (final_presentation) ===\nPresenter text\n")
	assert.Less(t, strings.Index(out, "Analyst text"), strings.Index(out, "Strategist text"))
}

func TestRunPipeline_JSON(t *testing.T) {
	p, stdout, _ := newParams(&stubClient{}, outputJSON)

	require.NoError(t, runPipeline(context.Background(), p, "coffee shop"))

	var got map[string]string
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, map[string]string{
		"research_brief":     "Data Gatherer text",
		"market_analysis":    "Analyst text",
		"strategy_report":    "Strategist text",
		"final_presentation": "Presenter text",
	}, got)
}

func TestRunPipeline_Verbose(t *testing.T) {
	p, _, stderr := newParams(&stubClient{}, outputSummary)
	p.verbose = true

	require.NoError(t, runPipeline(context.Background(), p, "coffee shop"))
	assert.Contains(t, stderr.String(), "ANALYST (market_analysis)")
}

func TestRunPipeline_EmptyBrief(t *testing.T) {
	client := &stubClient{}
	p, stdout, stderr := newParams(client, outputSummary)

	err := runPipeline(context.Background(), p, "  \n ")
	assert.ErrorIs(t, err, pipeline.ErrInvalidBrief)
	assert.Zero(t, client.calls)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), agents.DefaultCatalog().EmptyBriefMessage())
}

func TestRunPipeline_Unavailable(t *testing.T) {
	client := &stubClient{err: &llm.UnavailableError{Message: "cannot reach ollama"}}
	p, stdout, stderr := newParams(client, outputSummary)

	err := runPipeline(context.Background(), p, "coffee shop")
	assert.ErrorIs(t, err, llm.ErrInferenceUnavailable)
	assert.Equal(t, 1, client.calls)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "DATA GATHERER STAGE FAILED")
	assert.Contains(t, stderr.String(), "inference service is running")
}

func TestPrintAgents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printAgents(&buf, agents.DefaultCatalog()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, agents.NumStages+1)
	assert.Contains(t, lines[0], "AGENT")
	assert.Contains(t, lines[1], "Data Gatherer")
	assert.Contains(t, lines[1], "0.4")
	assert.Contains(t, lines[4], "final_presentation")
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, levelFor(true, slog.LevelWarn))
	assert.Equal(t, slog.LevelWarn, levelFor(false, slog.LevelWarn))
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"provider": "gemini", "model": "gemini-2.5-pro", "verbose": true}`), 0o644))

	names := []string{"config", "verbose", "provider"}
	t.Cleanup(func() {
		for _, name := range names {
			f := rootCmd.Flags().Lookup(name)
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})
	t.Setenv("OLLAMA_HOST", "")

	require.NoError(t, rootCmd.ParseFlags([]string{"--config", path, "--verbose=false", "--provider", "ollama"}))
	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)

	assert.False(t, cfg.Verbose)
	assert.Equal(t, "ollama", cfg.Provider)
	assert.Empty(t, cfg.Model)
}
