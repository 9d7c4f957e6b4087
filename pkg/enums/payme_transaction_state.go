package enums

import "fmt"

// PaymeTransactionState is the gateway-facing state number stored in
// payme_transactions.state and sent on the wire.
type PaymeTransactionState int

const (
	PaymeStateCreated                PaymeTransactionState = 1
	PaymeStateCompleted              PaymeTransactionState = 2
	PaymeStateCancelled              PaymeTransactionState = -1
	PaymeStateCancelledAfterComplete PaymeTransactionState = -2
)

// IsValid reports whether the value is one of the four gateway states.
func (s PaymeTransactionState) IsValid() bool {
	switch s {
	case PaymeStateCreated, PaymeStateCompleted, PaymeStateCancelled, PaymeStateCancelledAfterComplete:
		return true
	}
	return false
}

// IsCancelled reports whether the state is either cancellation state.
func (s PaymeTransactionState) IsCancelled() bool {
	return s == PaymeStateCancelled || s == PaymeStateCancelledAfterComplete
}

func (s PaymeTransactionState) String() string {
	switch s {
	case PaymeStateCreated:
		return "created"
	case PaymeStateCompleted:
		return "completed"
	case PaymeStateCancelled:
		return "cancelled"
	case PaymeStateCancelledAfterComplete:
		return "cancelled_after_complete"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}
