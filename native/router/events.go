package router

import (
	"strconv"

	"splitstream/core/events"
	"splitstream/core/types"
)

const (
	// EventTypePaymentSettled is emitted once a payment has cleared the
	// settlement ledger.
	EventTypePaymentSettled = "router.payment_settled"
	// EventTypePaymentReverted is emitted when a payment was rolled back
	// after the ledger rejected it.
	EventTypePaymentReverted = "router.payment_reverted"
	// EventTypeFeePolicyUpdated is emitted when the admin replaces the
	// protocol fee policy.
	EventTypeFeePolicyUpdated = "router.fee_policy_updated"
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

// SettledEvent returns the structured payload for a cleared payment.
func SettledEvent(receipt *Receipt) *types.Event {
	if receipt == nil {
		return nil
	}
	return &types.Event{
		Type: EventTypePaymentSettled,
		Attributes: map[string]string{
			"receiptId": receipt.ID,
			"contentId": receipt.ContentID,
			"strategy":  receipt.StrategyID,
			"payer":     types.FormatAddress(receipt.Payer),
			"type":      receipt.Type.String(),
			"gross":     receipt.Gross.String(),
			"fee":       receipt.Fee.String(),
			"net":       receipt.Net.String(),
			"legs":      strconv.Itoa(len(receipt.Legs)),
		},
	}
}

// RevertedEvent returns the structured payload for a rolled-back payment.
func RevertedEvent(contentID string, payer string, reason string) *types.Event {
	return &types.Event{
		Type: EventTypePaymentReverted,
		Attributes: map[string]string{
			"contentId": contentID,
			"payer":     payer,
			"reason":    reason,
		},
	}
}

// FeePolicyUpdatedEvent returns the structured payload for a fee change.
func FeePolicyUpdatedEvent(feeBps uint32, collector string, version uint64) *types.Event {
	return &types.Event{
		Type: EventTypeFeePolicyUpdated,
		Attributes: map[string]string{
			"feeBps":    strconv.FormatUint(uint64(feeBps), 10),
			"collector": collector,
			"version":   strconv.FormatUint(version, 10),
		},
	}
}
