package capacity

import (
	"fmt"

	"github.com/paridhisingla/unisync/core"
)

// State is the lifecycle state of an allocation-like entity (room allocation, book issue, seat subscription, enrollment).
// Only StateActive holds a unit of the resource.
type State string

const (
	StatePending  State = "pending"
	StateActive   State = "active"
	StateVacated  State = "vacated"
	StateReturned State = "returned"
	StateExpired  State = "expired"
	StateLost     State = "lost"
)

var transitions = map[State]map[State]struct{}{
	StatePending: {StateActive: {}, StateExpired: {}},
	StateActive:  {StateVacated: {}, StateReturned: {}, StateExpired: {}, StateLost: {}},
	StateVacated:  {},
	StateReturned: {},
	StateExpired:  {},
	StateLost:     {},
}

// CanTransition reports whether an allocation can move from one state to the other.
func CanTransition(from, to State) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// Holds reports whether an allocation in state s counts as used.
func Holds(s State) bool { return s == StateActive }

// Delta is the change to apply to the used counter when moving from one state to the other:
// +1 when entering StateActive, -1 when leaving it.
func Delta(from, to State) int {
	switch {
	case !Holds(from) && Holds(to):
		return 1
	case Holds(from) && !Holds(to):
		return -1
	default:
		return 0
	}
}

// CheckTransition returns an InvalidStateError when the transition is not allowed.
func CheckTransition(resource string, from, to State) error {
	if !CanTransition(from, to) {
		return core.NewInvalidStateError(resource, fmt.Sprintf("cannot go from %s to %s", from, to))
	}
	return nil
}
