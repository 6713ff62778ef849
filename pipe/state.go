package pipe

import "github.com/kbukum/iterpipe/message"

// State is a step of the run state machine.
type State int

const (
	StateInit State = iota
	StateIterating
	StateDispatchingSequential
	StateDispatchingParallel
	StateAggregating
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateIterating:
		return "ITERATING"
	case StateDispatchingSequential:
		return "DISPATCHING_SEQUENTIAL"
	case StateDispatchingParallel:
		return "DISPATCHING_PARALLEL"
	case StateAggregating:
		return "AGGREGATING"
	case StateDone:
		return "DONE"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError
}

// Outcome labels of a successful run.
const (
	ForwardSuccess          = "success"
	ForwardMaxItemsReached  = "maxItemsReached"
	ForwardStopConditionMet = "stopConditionMet"
)

// Result is the outcome of one run.
type Result struct {
	// Message is the aggregated output. It is nil when the run failed.
	Message *message.Message
	// Forward is the outcome label of a successful run.
	Forward string
	// Count is the number of aggregated entries.
	Count int
	// State is DONE or ERROR.
	State State
	// Partial holds the results preceding the first failed item.
	Partial []string
}
