package push

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/trungle-dev/relaychat/internal/model"
)

// Payload is the resolved push payload for one notification, derived
// deterministically from the stored record
type Payload struct {
	NotificationID uuid.UUID
	Title          string
	Body           string
	Type           string
	Data           map[string]string
}

// Dispatcher hands a payload to the external push gateway for one recipient.
// Callers treat delivery as fire-and-forget: a non-nil error is logged, never
// propagated, and never retried synchronously.
type Dispatcher interface {
	Dispatch(ctx context.Context, recipientID uuid.UUID, payload Payload) error
}

// PayloadFrom derives the push payload for a notification
func PayloadFrom(n *model.Notification) Payload {
	p := Payload{
		NotificationID: n.ID,
		Title:          n.Title,
		Body:           n.Message,
		Type:           string(n.Type),
		Data:           map[string]string{},
	}
	if len(n.Data) > 0 {
		if err := json.Unmarshal(n.Data, &p.Data); err != nil {
			// Non-flat payloads ride along under a single key
			p.Data = map[string]string{"data": string(n.Data)}
		}
	}
	p.Data["notification_id"] = n.ID.String()
	p.Data["type"] = string(n.Type)
	return p
}
