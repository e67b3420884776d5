package executor

import "fmt"

// State is the lifecycle stage of a build.
type State string

const (
	StateResolving     State = "RESOLVING"
	StateMaterializing State = "MATERIALIZING"
	StateRunning       State = "RUNNING"
	StateAggregated    State = "AGGREGATED"
	StateCancelled     State = "CANCELLED"
)

// IsTerminal reports whether no further transition is possible from s.
func IsTerminal(s State) bool {
	return s == StateAggregated || s == StateCancelled
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateResolving:
		return to == StateMaterializing || to == StateCancelled
	case StateMaterializing:
		return to == StateRunning || to == StateCancelled
	case StateRunning:
		return to == StateAggregated || to == StateCancelled
	default:
		return false
	}
}

// lifecycle tracks the state of a single build. It is owned by the
// goroutine running the build.
type lifecycle struct {
	state   State
	observe func(from, to State)
}

func newLifecycle(observe func(from, to State)) *lifecycle {
	return &lifecycle{state: StateResolving, observe: observe}
}

// Transition moves the build to the next state. The caller supplies the
// expected prior state so skipped stages surface as errors.
func (l *lifecycle) Transition(from, to State) error {
	if l.state != from {
		return fmt.Errorf("invalid transition: expected %s, got %s", from, l.state)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition: %s -> %s", from, to)
	}
	l.state = to
	if l.observe != nil {
		l.observe(from, to)
	}
	return nil
}

// Cancel moves a non-terminal build to CANCELLED.
func (l *lifecycle) Cancel() error {
	if IsTerminal(l.state) {
		return fmt.Errorf("cannot cancel from terminal state %s", l.state)
	}
	return l.Transition(l.state, StateCancelled)
}
