package pipeline

// State is the position of a run in its lifecycle:
//
//	Idle → Gathering → Analyzing → Strategizing → Presenting → Done
//
// Failed is absorbing and reachable from any active state.
type State string

const (
	StateIdle         State = "idle"
	StateGathering    State = "gathering"
	StateAnalyzing    State = "analyzing"
	StateStrategizing State = "strategizing"
	StatePresenting   State = "presenting"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Next returns the state that follows s on success.
// Terminal states return themselves.
func (s State) Next() State {
	switch s {
	case StateIdle:
		return StateGathering
	case StateGathering:
		return StateAnalyzing
	case StateAnalyzing:
		return StateStrategizing
	case StateStrategizing:
		return StatePresenting
	case StatePresenting:
		return StateDone
	default:
		return s
	}
}
