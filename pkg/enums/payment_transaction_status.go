package enums

import "fmt"

// PaymentTransactionStatus is the tenant-facing lifecycle of an order payment.
type PaymentTransactionStatus string

const (
	PaymentTransactionPending    PaymentTransactionStatus = "pending"
	PaymentTransactionProcessing PaymentTransactionStatus = "processing"
	PaymentTransactionCompleted  PaymentTransactionStatus = "completed"
	PaymentTransactionCancelled  PaymentTransactionStatus = "cancelled"
)

var validPaymentTransactionStatuses = []PaymentTransactionStatus{
	PaymentTransactionPending,
	PaymentTransactionProcessing,
	PaymentTransactionCompleted,
	PaymentTransactionCancelled,
}

// String implements fmt.Stringer.
func (s PaymentTransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known status.
func (s PaymentTransactionStatus) IsValid() bool {
	for _, candidate := range validPaymentTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsFinal reports whether no further payment activity is expected.
func (s PaymentTransactionStatus) IsFinal() bool {
	return s == PaymentTransactionCompleted || s == PaymentTransactionCancelled
}

// ParsePaymentTransactionStatus converts raw input into PaymentTransactionStatus.
func ParsePaymentTransactionStatus(value string) (PaymentTransactionStatus, error) {
	for _, candidate := range validPaymentTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment transaction status %q", value)
}
