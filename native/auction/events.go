package auction

import (
	"strconv"

	"splitstream/core/events"
	"splitstream/core/types"
)

const (
	// EventTypeCreated is emitted when a Dutch auction opens.
	EventTypeCreated = "auction.created"
	// EventTypePurchased is emitted for every access purchase.
	EventTypePurchased = "auction.purchased"
	// EventTypeEnded is emitted when the auction deactivates, either by
	// selling out or by the owner ending it.
	EventTypeEnded = "auction.ended"
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

// CreatedEvent returns the structured payload for an opened auction.
func CreatedEvent(contentID string, startPrice string, floorPrice string, supply uint64) *types.Event {
	return &types.Event{
		Type: EventTypeCreated,
		Attributes: map[string]string{
			"contentId":  contentID,
			"startPrice": startPrice,
			"floorPrice": floorPrice,
			"supply":     strconv.FormatUint(supply, 10),
		},
	}
}

// PurchasedEvent returns the structured payload for an access purchase.
func PurchasedEvent(contentID string, buyer string, price string, sold uint64) *types.Event {
	return &types.Event{
		Type: EventTypePurchased,
		Attributes: map[string]string{
			"contentId": contentID,
			"buyer":     buyer,
			"price":     price,
			"sold":      strconv.FormatUint(sold, 10),
		},
	}
}

// EndedEvent returns the structured payload for auction deactivation.
func EndedEvent(contentID string, reason string) *types.Event {
	return &types.Event{
		Type: EventTypeEnded,
		Attributes: map[string]string{
			"contentId": contentID,
			"reason":    reason,
		},
	}
}
