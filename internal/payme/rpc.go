package payme

import (
	"bytes"
	"encoding/json"
)

const jsonRPCVersion = "2.0"

var nullID = json.RawMessage("null")

// Method is one of the six merchant API methods.
type Method int

const (
	MethodUnknown Method = iota
	MethodCheckPerformTransaction
	MethodCreateTransaction
	MethodPerformTransaction
	MethodCancelTransaction
	MethodCheckTransaction
	MethodGetStatement
)

var methodNames = map[string]Method{
	"CheckPerformTransaction": MethodCheckPerformTransaction,
	"CreateTransaction":       MethodCreateTransaction,
	"PerformTransaction":      MethodPerformTransaction,
	"CancelTransaction":       MethodCancelTransaction,
	"CheckTransaction":        MethodCheckTransaction,
	"GetStatement":            MethodGetStatement,
}

// ParseMethod resolves the wire method name. Names are case sensitive.
func ParseMethod(name string) (Method, bool) {
	m, ok := methodNames[name]
	return m, ok
}

func (m Method) String() string {
	for name, candidate := range methodNames {
		if candidate == m {
			return name
		}
	}
	return "unknown"
}

// Request is a decoded JSON-RPC call. ID keeps the caller's raw bytes so it
// can be echoed back unchanged.
type Request struct {
	ID     json.RawMessage
	Method string
	Params json.RawMessage
}

// ParseRequest decodes a JSON-RPC call. On failure the returned Request still
// carries whatever id could be recovered, null otherwise.
func ParseRequest(body []byte) (Request, *Error) {
	req := Request{ID: nullID}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil || envelope == nil {
		return req, NewError(CodeInvalidJSONRPC)
	}
	if raw, ok := envelope["id"]; ok && len(raw) > 0 {
		req.ID = raw
	}

	raw, ok := envelope["method"]
	if !ok {
		return req, NewError(CodeInvalidJSONRPC).WithData("method")
	}
	if err := json.Unmarshal(raw, &req.Method); err != nil || req.Method == "" {
		return req, NewError(CodeInvalidJSONRPC).WithData("method")
	}

	params, ok := envelope["params"]
	if !ok || !isObject(params) {
		return req, NewError(CodeInvalidJSONRPC).WithData("params")
	}
	req.Params = params
	return req, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// ErrorBody is the JSON-RPC error member.
type ErrorBody struct {
	Code    int     `json:"code"`
	Message Message `json:"message"`
	Data    any     `json:"data,omitempty"`
}

// Response is the JSON-RPC 2.0 reply envelope. Exactly one of Result and
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
}

func Success(id json.RawMessage, result any) Response {
	return Response{JSONRPC: jsonRPCVersion, ID: echoID(id), Result: result}
}

func Failure(id json.RawMessage, err *Error) Response {
	if err == nil {
		err = NewError(CodeInternal)
	}
	return Response{JSONRPC: jsonRPCVersion, ID: echoID(id), Error: err.body()}
}

func echoID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return nullID
	}
	return id
}
