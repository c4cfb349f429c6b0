package payperstream

import (
	"strconv"

	"splitstream/core/events"
	"splitstream/core/types"
)

// EventTypeSplitConfigured is emitted when a royalty split table is installed.
const EventTypeSplitConfigured = "payperstream.split.configured"

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

// SplitConfiguredEvent returns the structured payload for a configured split.
func SplitConfiguredEvent(contentID string, recipients int) *types.Event {
	return &types.Event{
		Type: EventTypeSplitConfigured,
		Attributes: map[string]string{
			"contentId":  contentID,
			"recipients": strconv.Itoa(recipients),
		},
	}
}
