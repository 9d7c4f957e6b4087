package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	Kind       string `json:"kind"`
	ID         string `json:"id,omitempty"`
	BusinessID string `json:"businessId,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events and
// published verbatim as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored outbox payload.
func DecodeEnvelope(payload []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	err := json.Unmarshal(payload, &env)
	return env, err
}
