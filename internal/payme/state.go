package payme

import (
	"errors"
	"fmt"

	"github.com/biznespilot/payme-merchant/pkg/enums"
)

// State aliases the stored ledger state so handlers and the transition table
// share one closed set of values.
type State = enums.PaymeTransactionState

// stateNone is the state of a transaction that does not exist yet.
const stateNone State = 0

// Event drives a ledger state change.
type Event int

const (
	EventCreate Event = iota + 1
	EventPerform
	EventCancel
)

func (e Event) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventPerform:
		return "perform"
	case EventCancel:
		return "cancel"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

var ErrIllegalTransition = errors.New("illegal payme state transition")

// Transition returns the state reached by applying ev to from. Every pair not
// listed below is rejected.
//
//	none      --create-->  created
//	created   --perform--> completed
//	created   --cancel-->  cancelled
//	completed --cancel-->  cancelled after complete
func Transition(from State, ev Event) (State, error) {
	switch {
	case from == stateNone && ev == EventCreate:
		return enums.PaymeStateCreated, nil
	case from == enums.PaymeStateCreated && ev == EventPerform:
		return enums.PaymeStateCompleted, nil
	case from == enums.PaymeStateCreated && ev == EventCancel:
		return enums.PaymeStateCancelled, nil
	case from == enums.PaymeStateCompleted && ev == EventCancel:
		return enums.PaymeStateCancelledAfterComplete, nil
	}
	return from, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, ev, from)
}
