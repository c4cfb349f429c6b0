package content

import (
	"strconv"

	"splitstream/core/events"
	"splitstream/core/types"
)

const (
	// EventTypeContentRegistered is emitted when content enters the registry.
	EventTypeContentRegistered = "content.registered"
	// EventTypeContentRebound is emitted when the owner switches strategies.
	EventTypeContentRebound = "content.rebound"
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

// RegisteredEvent returns the structured payload for a new registration.
func RegisteredEvent(contentID string, owner string, strategyID string) *types.Event {
	return &types.Event{
		Type: EventTypeContentRegistered,
		Attributes: map[string]string{
			"contentId": contentID,
			"owner":     owner,
			"strategy":  strategyID,
		},
	}
}

// ReboundEvent returns the structured payload for a strategy rebind.
func ReboundEvent(contentID string, strategyID string, epoch uint64) *types.Event {
	return &types.Event{
		Type: EventTypeContentRebound,
		Attributes: map[string]string{
			"contentId": contentID,
			"strategy":  strategyID,
			"epoch":     strconv.FormatUint(epoch, 10),
		},
	}
}
