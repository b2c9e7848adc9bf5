// Package fanout pushes committed chat events to connected clients and to
// other instances. Delivery is best effort: nothing here can fail a request.
package fanout

import (
	"context"
	"encoding/json"
	"time"
)

const (
	EventMessageCreated       = "message.created"
	EventMessageStatusUpdated = "message.status_updated"
	EventMessageDeleted       = "message.deleted"
	EventMessageEdited        = "message.edited"
)

// Event is one "this happened" notification. Targets are the user ids whose
// connections receive it; they are never sent to clients.
type Event struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"event"`
	MessageID      uint64                 `json:"message_id"`
	ConversationID uint64                 `json:"conversation_id"`
	Targets        []uint64               `json:"targets,omitempty"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	OccurredAt     time.Time              `json:"occurred_at"`
}

// ForClient strips routing data before the event leaves the process.
func (e Event) ForClient() Event {
	e.Targets = nil
	return e
}

// Observer receives every event routed through the Manager.
type Observer interface {
	Name() string
	Update(ctx context.Context, event Event) error
}

// PayloadOf flattens v into the generic map carried by Event. Going through
// JSON keeps the payload identical on every transport.
func PayloadOf(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
