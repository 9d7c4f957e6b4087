package payme

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

type Account struct {
	OrderID string `json:"order_id" validate:"required"`
}

type CheckPerformParams struct {
	Amount  json.Number `json:"amount" validate:"required"`
	Account *Account    `json:"account" validate:"required"`
}

type CreateParams struct {
	ID      string      `json:"id" validate:"required"`
	Time    *int64      `json:"time" validate:"required"`
	Amount  json.Number `json:"amount" validate:"required"`
	Account *Account    `json:"account" validate:"required"`
}

type TransactionParams struct {
	ID string `json:"id" validate:"required"`
}

type CancelParams struct {
	ID     string `json:"id" validate:"required"`
	Reason *int   `json:"reason" validate:"required"`
}

type StatementParams struct {
	From *int64 `json:"from" validate:"required,min=0"`
	To   *int64 `json:"to" validate:"required,min=0"`
}

// decodeParams fills dest from raw. A missing account or order id reports
// -31050 so the gateway shows "order not found" to the payer; every other
// shape problem is -32600.
func decodeParams(raw json.RawMessage, dest any) *Error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(dest); err != nil {
		return NewError(CodeInvalidJSONRPC).WithData("params")
	}
	if err := validate.Struct(dest); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			field := fieldErrs[0].Field()
			if field == "account" || field == "order_id" {
				return NewError(CodeInvalidAccount).WithData("order_id")
			}
			return NewError(CodeInvalidJSONRPC).WithData(field)
		}
		return NewError(CodeInvalidJSONRPC).WithData("params")
	}
	return nil
}

// amountMatches compares the wire amount with the stored tiyin amount exactly.
// Fractional or malformed amounts never match.
func amountMatches(wire json.Number, stored int64) bool {
	amount, err := decimal.NewFromString(wire.String())
	if err != nil {
		return false
	}
	if !amount.IsInteger() {
		return false
	}
	return amount.Equal(decimal.NewFromInt(stored))
}
