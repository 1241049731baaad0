// Package pipeline runs the four market research stages in order, feeding each
// stage the brief and every earlier output.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/market-research/internal/agents"
	"github.com/jonathan/market-research/internal/llm"
)

// DefaultStageTimeout bounds a single inference call.
const DefaultStageTimeout = 5 * time.Minute

// ProgressEvent reports a state change during a run. Events are observational
// only; nothing a callback does affects the run.
type ProgressEvent struct {
	RunID     string        `json:"run_id"`
	Stage     agents.Stage  `json:"stage"`
	State     State         `json:"state"`
	Completed bool          `json:"completed"` // the stage has produced its output
	Message   string        `json:"message"`
	Output    string        `json:"output,omitempty"`
	Elapsed   time.Duration `json:"-"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Orchestrator runs the pipeline against one inference client. It holds no
// per-run state, so concurrent Run calls are safe when the client is.
type Orchestrator struct {
	client       llm.Client
	catalog      *agents.Catalog
	logger       *slog.Logger
	onProgress   ProgressCallback
	stageTimeout time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCatalog sets the persona catalog (default: English).
func WithCatalog(c *agents.Catalog) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.catalog = c
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithProgress registers a progress callback.
func WithProgress(cb ProgressCallback) Option {
	return func(o *Orchestrator) {
		o.onProgress = cb
	}
}

// WithStageTimeout bounds each inference call. Zero or negative disables the bound.
func WithStageTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.stageTimeout = d
	}
}

// New creates an orchestrator for the given client.
func New(client llm.Client, opts ...Option) (*Orchestrator, error) {
	if client == nil {
		return nil, errors.New("pipeline: inference client is required")
	}

	o := &Orchestrator{
		client:       client,
		catalog:      agents.DefaultCatalog(),
		logger:       slog.Default(),
		stageTimeout: DefaultStageTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Catalog returns the persona catalog in use.
func (o *Orchestrator) Catalog() *agents.Catalog {
	return o.catalog
}

// Run executes the four stages in order and returns their outputs.
// Any stage failure aborts the run; no partial result is returned.
func (o *Orchestrator) Run(ctx context.Context, brief string) (*Result, error) {
	// A blank brief is rejected; any other brief is forwarded as given
	if strings.TrimSpace(brief) == "" {
		return nil, ErrInvalidBrief
	}

	runID := uuid.NewString()
	logger := o.logger.With("run_id", runID, "model", o.client.Model())
	logger.Info("pipeline started", "brief_chars", len(brief))

	start := time.Now()
	outputs := make([]StageOutput, 0, agents.NumStages)

	state := StateIdle
	for _, stage := range agents.Stages() {
		state = state.Next()
		text, err := o.runStage(ctx, logger, runID, stage, state, brief, outputs)
		if err != nil {
			logger.Error("pipeline failed", "stage", stage.String(), "error", err)
			o.emit(ProgressEvent{
				RunID:   runID,
				Stage:   stage,
				State:   StateFailed,
				Message: err.Error(),
				Elapsed: time.Since(start),
			})
			return nil, &StageError{Stage: stage, Err: err}
		}
		outputs = append(outputs, StageOutput{Stage: stage, Text: text})
	}

	result := newResult(outputs)
	result.RunID = runID
	result.Model = o.client.Model()

	elapsed := time.Since(start)
	logger.Info("pipeline completed", "duration", elapsed)
	o.emit(ProgressEvent{
		RunID:     runID,
		Stage:     agents.StagePresenter,
		State:     state.Next(),
		Completed: true,
		Message:   "Pipeline complete",
		Elapsed:   elapsed,
	})

	return result, nil
}

func (o *Orchestrator) runStage(ctx context.Context, logger *slog.Logger, runID string, stage agents.Stage, state State, brief string, prior []StageOutput) (string, error) {
	// Do not start a stage on a context that is already done
	if err := ctx.Err(); err != nil {
		return "", &llm.UnavailableError{Message: "run cancelled", Cause: err}
	}

	profile, err := o.catalog.Profile(stage)
	if err != nil {
		return "", err
	}

	content := buildUserContent(o.catalog, stage, brief, prior)
	logger = logger.With("stage", profile.Name)
	logger.Info("stage started",
		"step", int(stage)+1,
		"temperature", profile.Temperature,
		"prompt_chars", len(content))
	o.emit(ProgressEvent{
		RunID:   runID,
		Stage:   stage,
		State:   state,
		Message: profile.Name + " is working",
	})

	callCtx := ctx
	if o.stageTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.stageTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := o.client.Generate(callCtx, profile.Instruction, content, profile.Temperature)
	elapsed := time.Since(start)
	if err != nil {
		logger.Warn("stage failed", "duration", elapsed, "error", err)
		return "", err
	}

	logger.Info("stage completed", "duration", elapsed, "output_chars", len(text))
	o.emit(ProgressEvent{
		RunID:     runID,
		Stage:     stage,
		State:     state,
		Completed: true,
		Message:   profile.Name + " finished",
		Output:    text,
		Elapsed:   elapsed,
	})
	return text, nil
}

// emit calls the progress callback if configured
func (o *Orchestrator) emit(event ProgressEvent) {
	if o.onProgress != nil {
		o.onProgress(event)
	}
}
