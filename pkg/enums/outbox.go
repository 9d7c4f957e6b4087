package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregatePaymentTransaction OutboxAggregateType = "payment_transaction"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePaymentTransaction,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType is the routing key published alongside each event.
type OutboxEventType string

const (
	EventPaymentCompleted OutboxEventType = "payment.completed"
	EventPaymentCancelled OutboxEventType = "payment.cancelled"
)

var validEventTypes = []OutboxEventType{
	EventPaymentCompleted,
	EventPaymentCancelled,
}

// String implements fmt.Stringer.
func (e OutboxEventType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
