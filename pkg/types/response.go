package types

// HeaderRequestID carries the per-request correlation id in both directions.
const HeaderRequestID = "X-Request-Id"

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the body of every non JSON-RPC failure.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// HealthReport is returned by the readiness and liveness probes.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
