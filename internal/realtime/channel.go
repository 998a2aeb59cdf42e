// Package realtime is the client side of the CRM push channel.
//
// The backend broadcasts entity changes as "data:update" events carrying
// {entityType, entityId, action, data}. Channel abstracts the connection;
// Subscribe wraps a handler registration in a scoped Subscription that
// unregisters itself on Close or when its context ends.
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// EventDataUpdate is the generic "entity changed" event family.
const EventDataUpdate = "data:update"

// Actions carried by data:update events.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ErrAckUnsupported is returned by AwaitSubscribed when the channel cannot
// confirm subscriptions.
var ErrAckUnsupported = errors.New("subscription acknowledgement not supported")

// Event is one decoded push-channel message.
type Event struct {
	Name       string         `json:"-"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Action     string         `json:"action"`
	Data       map[string]any `json:"data"`
}

// Handler receives events for one event name.
type Handler func(Event)

// Channel is the push-channel collaborator.
type Channel interface {
	IsConnected() bool
	// On registers h for name and returns the function that unregisters it.
	On(name string, h Handler) (unsubscribe func())
	Connect(ctx context.Context) error
}

// Acknowledger is implemented by channels that can confirm a subscription is
// live on the server before the caller proceeds.
type Acknowledger interface {
	AwaitSubscribed(ctx context.Context, name string) error
}

type wirePayload struct {
	EntityType string          `json:"entityType"`
	EntityID   json.RawMessage `json:"entityId"`
	Action     string          `json:"action"`
	Data       map[string]any  `json:"data"`
}

// DecodeEvent parses a data:update payload. entityId may be a string or a number.
func DecodeEvent(name string, raw []byte) (Event, error) {
	var p wirePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Event{}, fmt.Errorf("invalid %s payload: %w", name, err)
	}
	ev := Event{Name: name, EntityType: p.EntityType, Action: p.Action, Data: p.Data}

	id := bytes.TrimSpace(p.EntityID)
	if len(id) > 0 {
		var s string
		if err := json.Unmarshal(id, &s); err == nil {
			ev.EntityID = s
		} else {
			var n json.Number
			if err := json.Unmarshal(id, &n); err != nil {
				return Event{}, fmt.Errorf("invalid %s entityId: %s", name, id)
			}
			ev.EntityID = n.String()
		}
	}
	return ev, nil
}
