package bankfeed

import (
	"encoding/json"
	"errors"
	"fmt"

	"renthub-platform/internal/settlement"
)

var ErrBadEvent = errors.New("bankfeed: malformed gateway event")

// gatewayEvent is the wire shape the payment gateway posts to the webhook.
// Only intent_id is load-bearing; everything else is advisory.
type gatewayEvent struct {
	EventType   string `json:"event_type"`
	IntentID    string `json:"intent_id"`
	Status      string `json:"status"`
	AmountMinor int64  `json:"amount_minor"`
	Description string `json:"description"`
}

// ParsePushEvent decodes a gateway webhook body. Unknown event types are
// accepted; an event without an intent id is not.
func ParsePushEvent(body []byte) (settlement.PushEvent, error) {
	var evt gatewayEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return settlement.PushEvent{}, fmt.Errorf("%w: %v", ErrBadEvent, err)
	}
	if evt.IntentID == "" {
		return settlement.PushEvent{}, fmt.Errorf("%w: missing intent_id", ErrBadEvent)
	}
	return settlement.PushEvent{
		IntentID:    evt.IntentID,
		Status:      evt.Status,
		AmountMinor: evt.AmountMinor,
		Description: evt.Description,
	}, nil
}
