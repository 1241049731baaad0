// Package main provides the entry point for the market research pipeline CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jonathan/market-research/internal/config"
	"github.com/jonathan/market-research/internal/llm"
)

var rootCmd = &cobra.Command{
	Use:   "market_agent",
	Short: "Four-stage market research pipeline",
	Long: `Turns a short market brief into a slide-ready executive summary by running four personas in order:
Data Gatherer -> Analyst -> Strategist -> Presenter.

Inference runs against a local Ollama server by default; Gemini and Anthropic are also supported.
Settings come from flags, then the --config file, then built-in defaults. API keys and OLLAMA_HOST
are read from the environment (a .env file is loaded when present).`,
	SilenceUsage: true,
}

// Global flags, shared by every subcommand
var (
	configPath string
	verbose    bool
	provider   string
	model      string
	baseURL    string
	language   string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Print detailed progress and debug logs")
	flags.StringVar(&provider, "provider", "", "Inference backend: ollama, gemini or anthropic")
	flags.StringVarP(&model, "model", "m", "", "Model name (defaults depend on the provider)")
	flags.StringVar(&baseURL, "base-url", "", "Ollama address or API endpoint override (defaults to OLLAMA_HOST for ollama)")
	flags.StringVarP(&language, "language", "l", "", "Persona language: en or it")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the effective configuration. Only flags the user set
// override the config file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var overrides config.Overrides
	flags := cmd.Flags()
	if flags.Changed("provider") {
		overrides.Provider = provider
	}
	if flags.Changed("model") {
		overrides.Model = model
	}
	if flags.Changed("base-url") {
		overrides.BaseURL = baseURL
	}
	if flags.Changed("language") {
		overrides.Language = language
	}
	if flags.Changed("verbose") {
		overrides.Verbose = &verbose
	}

	cfg, err := config.Load(configPath, overrides, os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newClient builds the inference client for cfg
func newClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	llmCfg, err := cfg.LLMConfig()
	if err != nil {
		return nil, err
	}
	client, err := llm.NewClient(ctx, llmCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", llmCfg.Provider, err)
	}
	return client, nil
}

// levelFor returns debug when verbose, else fallback
func levelFor(verbose bool, fallback slog.Level) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return fallback
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !isTerminal(w),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// isTerminal reports whether w is a terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
