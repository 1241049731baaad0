package pipeline

import "github.com/jonathan/market-research/internal/agents"

// Result is the output of a successful run: one text per stage.
type Result struct {
	ResearchBrief     string `json:"research_brief"`
	MarketAnalysis    string `json:"market_analysis"`
	StrategyReport    string `json:"strategy_report"`
	FinalPresentation string `json:"final_presentation"`

	// Not part of the result mapping
	RunID string `json:"run_id,omitempty"`
	Model string `json:"model,omitempty"`
}

// StageOutput is the raw text one stage produced during a run.
type StageOutput struct {
	Stage agents.Stage
	Text  string
}

func newResult(outputs []StageOutput) *Result {
	r := &Result{}
	for _, out := range outputs {
		if f := r.field(out.Stage); f != nil {
			*f = out.Text
		}
	}
	return r
}

func (r *Result) field(stage agents.Stage) *string {
	switch stage {
	case agents.StageGatherer:
		return &r.ResearchBrief
	case agents.StageAnalyst:
		return &r.MarketAnalysis
	case agents.StageStrategist:
		return &r.StrategyReport
	case agents.StagePresenter:
		return &r.FinalPresentation
	default:
		return nil
	}
}

// Get returns the output of one stage.
func (r *Result) Get(stage agents.Stage) string {
	if f := r.field(stage); f != nil {
		return *f
	}
	return ""
}

// Map returns the result mapping keyed by stage key. All four keys are always present.
func (r *Result) Map() map[string]string {
	m := make(map[string]string, agents.NumStages)
	for _, stage := range agents.Stages() {
		m[stage.Key()] = r.Get(stage)
	}
	return m
}
