package pipeline

import (
	"errors"
	"fmt"

	"github.com/jonathan/market-research/internal/agents"
)

// ErrInvalidBrief is returned when the brief is empty or whitespace-only.
// No inference call is made.
var ErrInvalidBrief = errors.New("invalid brief: the market brief is empty")

// StageError identifies the stage whose inference call failed. It unwraps to
// the client error, so errors.Is(err, llm.ErrInference) and friends still work.
type StageError struct {
	Stage agents.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
