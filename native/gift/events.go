package gift

import (
	"strconv"

	"splitstream/core/events"
	"splitstream/core/types"
)

const (
	// EventTypeEconomyConfigured is emitted when a gift economy is installed.
	EventTypeEconomyConfigured = "gift.economy.configured"
	// EventTypeRewardAccrued is emitted whenever a listener earns reward
	// points. The external reward ledger consumes these.
	EventTypeRewardAccrued = "gift.reward.accrued"
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

// EconomyConfiguredEvent returns the structured payload for a configured economy.
func EconomyConfiguredEvent(contentID string, interval uint64, multiplierBps uint32) *types.Event {
	return &types.Event{
		Type: EventTypeEconomyConfigured,
		Attributes: map[string]string{
			"contentId":     contentID,
			"interval":      strconv.FormatUint(interval, 10),
			"multiplierBps": strconv.FormatUint(uint64(multiplierBps), 10),
		},
	}
}

// RewardAccruedEvent returns the structured payload for a reward accrual.
func RewardAccruedEvent(contentID string, listener string, reward string, early bool) *types.Event {
	return &types.Event{
		Type: EventTypeRewardAccrued,
		Attributes: map[string]string{
			"contentId": contentID,
			"listener":  listener,
			"reward":    reward,
			"early":     strconv.FormatBool(early),
		},
	}
}
