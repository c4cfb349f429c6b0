package patronage

import (
	"splitstream/core/events"
	"splitstream/core/types"
)

const (
	// EventTypeConfigured is emitted when patronage terms are installed.
	EventTypeConfigured = "patronage.configured"
	// EventTypeSubscribed is emitted when a patron opens a subscription.
	EventTypeSubscribed = "patronage.subscribed"
	// EventTypeRenewed is emitted on every successful renewal.
	EventTypeRenewed = "patronage.renewed"
	// EventTypeCancelled is emitted when a patron stops auto-renewal.
	EventTypeCancelled = "patronage.cancelled"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// ConfiguredEvent returns the structured payload for installed terms.
func ConfiguredEvent(contentID string, beneficiary string, monthlyFee string) *types.Event {
	return &types.Event{
		Type: EventTypeConfigured,
		Attributes: map[string]string{
			"contentId":   contentID,
			"beneficiary": beneficiary,
			"monthlyFee":  monthlyFee,
		},
	}
}

// SubscribedEvent returns the structured payload for a new subscription.
func SubscribedEvent(contentID string, patron string, beneficiary string, fee string) *types.Event {
	return &types.Event{
		Type: EventTypeSubscribed,
		Attributes: map[string]string{
			"contentId":   contentID,
			"patron":      patron,
			"beneficiary": beneficiary,
			"fee":         fee,
		},
	}
}

// RenewedEvent returns the structured payload for a renewal.
func RenewedEvent(contentID string, patron string, fee string) *types.Event {
	return &types.Event{
		Type: EventTypeRenewed,
		Attributes: map[string]string{
			"contentId": contentID,
			"patron":    patron,
			"fee":       fee,
		},
	}
}

// CancelledEvent returns the structured payload for a cancellation.
func CancelledEvent(contentID string, patron string) *types.Event {
	return &types.Event{
		Type: EventTypeCancelled,
		Attributes: map[string]string{
			"contentId": contentID,
			"patron":    patron,
		},
	}
}
