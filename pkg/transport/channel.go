package transport

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// Lifecycle events dispatched through On alongside wire events.
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
)

var ErrNotConnected = errors.New("channel not connected")

// Handler receives the raw data of one event.
type Handler func(data json.RawMessage)

// Channel is a persistent bidirectional connection to a single endpoint.
//
// Connect never blocks: the outcome is reported as EventConnect or
// EventConnectError. Events of one connection are dispatched sequentially in
// arrival order. Close releases the connection whatever its state and nothing
// from the released connection is dispatched afterwards.
type Channel interface {
	Connect(ctx context.Context)
	Emit(event string, payload any) error
	On(event string, h Handler)
	Close() error
	Connected() bool
}

// handlerSet is the subscription table shared by the implementations.
type handlerSet map[string][]Handler

func (hs handlerSet) add(event string, h Handler) {
	if h == nil {
		return
	}
	hs[event] = append(hs[event], h)
}

func (hs handlerSet) snapshot(event string) []Handler {
	return append([]Handler(nil), hs[event]...)
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}
	return b, nil
}

func reasonPayload(reason string) json.RawMessage {
	b, _ := json.Marshal(reason)
	return b
}
