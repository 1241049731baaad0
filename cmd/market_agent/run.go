package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jonathan/market-research/internal/agents"
	"github.com/jonathan/market-research/internal/llm"
	"github.com/jonathan/market-research/internal/observability"
	"github.com/jonathan/market-research/internal/pipeline"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run the four-stage pipeline on a market brief",
	Long: `Runs Data Gatherer -> Analyst -> Strategist -> Presenter on a market brief and prints the executive summary.

The brief is taken from --brief, --brief-file, or standard input. On standard input the brief ends at the
first empty line (or end of input), so multi-paragraph briefs should be passed with --brief-file.`,
	RunE: runPipelineCmd,
}

var (
	runBrief     string
	runBriefFile string
	runAll       bool
	runJSON      bool
)

func init() {
	runCommand.Flags().StringVarP(&runBrief, "brief", "b", "", "Market brief text")
	runCommand.Flags().StringVarP(&runBriefFile, "brief-file", "f", "", "Path to a file containing the market brief")
	runCommand.Flags().BoolVar(&runAll, "all", false, "Print all four stage outputs, not only the executive summary")
	runCommand.Flags().BoolVar(&runJSON, "json", false, "Print the four outputs as a JSON object")
	runCommand.MarkFlagsMutuallyExclusive("brief", "brief-file")
	runCommand.MarkFlagsMutuallyExclusive("all", "json")

	rootCmd.AddCommand(runCommand)
}

// outputMode selects what a run prints on success
type outputMode int

const (
	outputSummary outputMode = iota
	outputAll
	outputJSON
)

func runPipelineCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	brief, err := resolveBrief(cmd.InOrStdin(), stderr)
	if err != nil {
		return err
	}
	// No backend is contacted for an empty brief
	if strings.TrimSpace(brief) == "" {
		_, _ = fmt.Fprintln(stderr, catalog.EmptyBriefMessage())
		return pipeline.ErrInvalidBrief
	}

	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	mode := outputSummary
	switch {
	case runJSON:
		mode = outputJSON
	case runAll:
		mode = outputAll
	}

	if cfg.Verbose {
		observability.NewPrinter(stderr).PrintRunConfig(cfg.Provider, client.Model(), catalog, cfg.Timeout())
	}

	return runPipeline(ctx, runParams{
		client:       client,
		catalog:      catalog,
		stageTimeout: cfg.Timeout(),
		logger:       newLogger(stderr, levelFor(cfg.Verbose, slog.LevelWarn)),
		verbose:      cfg.Verbose,
		mode:         mode,
		stdout:       cmd.OutOrStdout(),
		stderr:       stderr,
	}, brief)
}

type runParams struct {
	client       llm.Client
	catalog      *agents.Catalog
	stageTimeout time.Duration
	logger       *slog.Logger
	verbose      bool
	mode         outputMode
	stdout       io.Writer
	stderr       io.Writer
}

// runPipeline runs one brief. Progress goes to stderr so stdout carries only the result.
func runPipeline(ctx context.Context, p runParams, brief string) error {
	printer := observability.NewPrinter(p.stderr)

	orchestrator, err := pipeline.New(p.client,
		pipeline.WithCatalog(p.catalog),
		pipeline.WithLogger(p.logger),
		pipeline.WithStageTimeout(p.stageTimeout),
		pipeline.WithProgress(func(e pipeline.ProgressEvent) {
			switch {
			case e.State.Terminal():
			case !e.Completed:
				_, _ = fmt.Fprintf(p.stderr, "Step %d/%d: %s...\n", int(e.Stage)+1, agents.NumStages, e.Message)
			case p.verbose:
				printer.PrintStageOutput(e.Stage, e.Output, e.Elapsed)
			}
		}),
	)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := orchestrator.Run(ctx, brief)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidBrief) {
			_, _ = fmt.Fprintln(p.stderr, p.catalog.EmptyBriefMessage())
			return err
		}
		printer.PrintFailure(err)
		if errors.Is(err, llm.ErrInferenceUnavailable) {
			_, _ = fmt.Fprintln(p.stderr, "Check that the inference service is running and the model is available.")
		}
		return err
	}

	if p.verbose {
		printer.PrintResultSummary(result)
	}
	_, _ = fmt.Fprintf(p.stderr, "Completed in %s\n\n", time.Since(start).Round(time.Millisecond))

	return writeResult(p.stdout, result, p.mode)
}

// writeResult prints a successful run in the requested format
func writeResult(w io.Writer, result *pipeline.Result, mode outputMode) error {
	switch mode {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Map())

	case outputAll:
		for i, stage := range agents.Stages() {
			if i > 0 {
				if _, err := fmt.Fprintln(w); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "=== %s (%s) ===\n%s\n", stage, stage.Key(), result.Get(stage)); err != nil {
				return err
			}
		}
		return nil

	default:
		_, err := fmt.Fprintln(w, result.FinalPresentation)
		return err
	}
}

// resolveBrief returns the brief from --brief, --brief-file or stdin, in that order
func resolveBrief(stdin io.Reader, prompt io.Writer) (string, error) {
	switch {
	case runBrief != "":
		return runBrief, nil
	case runBriefFile != "":
		data, err := os.ReadFile(runBriefFile)
		if err != nil {
			return "", fmt.Errorf("failed to read brief file: %w", err)
		}
		return string(data), nil
	}

	if f, ok := stdin.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		_, _ = fmt.Fprintln(prompt, "Enter the market brief (finish with an empty line):")
	}
	return readBrief(stdin)
}

// readBrief reads lines until the first empty line or end of input.
func readBrief(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			break
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read brief: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}
