package analysis

import "fmt"

// State of a request inside an adapter
type State string

const (
	StateReceived   State = "received"
	StateDispatched State = "dispatched"
	StateCompleted  State = "completed"
	StateDegraded   State = "degraded"
	StateFailed     State = "failed"
)

var transitions = map[State][]State{
	StateReceived:   {StateDispatched},
	StateDispatched: {StateCompleted, StateDegraded, StateFailed},
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// Transition returns next when s -> next is legal.
func (s State) Transition(next State) (State, error) {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return next, nil
		}
	}
	return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s, next)
}
