package payme

import (
	"errors"
	"fmt"
)

// Code is a Payme merchant API error code. The values are part of the wire
// contract.
type Code int

const (
	CodeInternal              Code = -32400
	CodeInsufficientPrivilege Code = -32504
	CodeInvalidJSONRPC        Code = -32600
	CodeMethodNotFound        Code = -32601
	CodeInvalidAmount         Code = -31001
	CodeTransactionNotFound   Code = -31003
	CodeCouldNotCancel        Code = -31007
	CodeCouldNotPerform       Code = -31008
	CodeInvalidAccount        Code = -31050
)

// Message is the localized error text the gateway shows to the payer.
type Message struct {
	Ru string `json:"ru"`
	Uz string `json:"uz"`
	En string `json:"en"`
}

var messages = map[Code]Message{
	CodeInternal: {
		Ru: "Системная ошибка",
		Uz: "Tizim xatosi",
		En: "System error",
	},
	CodeInsufficientPrivilege: {
		Ru: "Недостаточно привилегий для выполнения метода",
		Uz: "Metodni bajarish uchun imtiyozlar yetarli emas",
		En: "Insufficient privilege to perform this method",
	},
	CodeInvalidJSONRPC: {
		Ru: "Неверный JSON-RPC объект",
		Uz: "JSON-RPC obyekti noto'g'ri",
		En: "Invalid JSON-RPC object",
	},
	CodeMethodNotFound: {
		Ru: "Метод не найден",
		Uz: "Metod topilmadi",
		En: "Method not found",
	},
	CodeInvalidAmount: {
		Ru: "Неверная сумма",
		Uz: "Noto'g'ri summa",
		En: "Invalid amount",
	},
	CodeTransactionNotFound: {
		Ru: "Транзакция не найдена",
		Uz: "Tranzaksiya topilmadi",
		En: "Transaction not found",
	},
	CodeCouldNotCancel: {
		Ru: "Невозможно отменить транзакцию",
		Uz: "Tranzaksiyani bekor qilib bo'lmaydi",
		En: "Unable to cancel transaction",
	},
	CodeCouldNotPerform: {
		Ru: "Невозможно выполнить операцию",
		Uz: "Operatsiyani bajarib bo'lmaydi",
		En: "Unable to perform operation",
	},
	CodeInvalidAccount: {
		Ru: "Заказ не найден",
		Uz: "Buyurtma topilmadi",
		En: "Order not found",
	},
}

// MessageFor returns the localized text for code, falling back to the system
// error text for codes outside the table.
func MessageFor(code Code) Message {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[CodeInternal]
}

// Error is a business or protocol failure reported to the gateway as a
// JSON-RPC error object.
type Error struct {
	Code    Code
	Message Message
	Data    any
	cause   error
}

func NewError(code Code) *Error {
	return &Error{Code: code, Message: MessageFor(code)}
}

// internalError wraps an infrastructure failure as -32400.
func internalError(err error) *Error {
	return &Error{Code: CodeInternal, Message: MessageFor(CodeInternal), cause: err}
}

// WithData attaches the optional data member, used by Payme to point at the
// offending field.
func (e *Error) WithData(data any) *Error {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Data = data
	return &cp
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("payme error %d: %s: %v", e.Code, e.Message.En, e.cause)
	}
	return fmt.Sprintf("payme error %d: %s", e.Code, e.Message.En)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// AsError returns the *Error in err's chain. Any other error becomes -32400.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return internalError(err)
}

func (e *Error) body() *ErrorBody {
	return &ErrorBody{Code: int(e.Code), Message: e.Message, Data: e.Data}
}
