package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/market-research/internal/agents"
	"github.com/jonathan/market-research/internal/server"
)

var (
	servePort    int
	serveMaxRuns int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes the pipeline:

  POST /run          run a brief and return the four outputs
  POST /run/stream   same, streaming stage progress as server-sent events
  GET  /agents       list the four personas
  GET  /health       liveness check (does not contact the inference backend)

Rate limits are read from RATE_LIMIT_* environment variables.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config, else 8080)")
	serveCmd.Flags().IntVar(&serveMaxRuns, "max-runs", 0, "Pipeline runs executing at once (default from config, else 2)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("max-runs") {
		cfg.Server.MaxConcurrentRuns = serveMaxRuns
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lang, err := agents.ParseLanguage(cfg.Language)
	if err != nil {
		return err
	}

	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	logger := newLogger(os.Stdout, levelFor(cfg.Verbose, slog.LevelInfo))

	srv, err := server.New(client, server.Config{
		Port:              cfg.Server.Port,
		MaxConcurrentRuns: cfg.Server.MaxConcurrentRuns,
		Language:          lang,
		StageTimeout:      cfg.Timeout(),
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}
