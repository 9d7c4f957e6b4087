package payme

import "fmt"

// Cancel reasons sent by the gateway in CancelTransaction. ReasonTimeout is
// also used locally when a created transaction outlives its timeout.
const (
	ReasonReceiverNotFound = 1
	ReasonDebitError       = 2
	ReasonExecutionError   = 3
	ReasonTimeout          = 4
	ReasonRefund           = 5
	ReasonUnknown          = 10
)

var reasonTexts = map[int]string{
	ReasonReceiverNotFound: "Receiver not found",
	ReasonDebitError:       "Debit operation error",
	ReasonExecutionError:   "Transaction execution error",
	ReasonTimeout:          "Transaction timeout",
	ReasonRefund:           "Refund",
	ReasonUnknown:          "Unknown error",
}

func reasonText(reason int) string {
	if text, ok := reasonTexts[reason]; ok {
		return text
	}
	return reasonTexts[ReasonUnknown]
}

// cancelNote is the human readable note stored on the cancelled order.
func cancelNote(reason int) string {
	return fmt.Sprintf("Payme cancel reason: %d (%s)", reason, reasonText(reason))
}
