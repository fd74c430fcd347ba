package transport

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-go-golems/chatsurface/pkg/chat"
)

// MemoryChannel is an in-process Channel. Connect and Deliver dispatch
// synchronously on the caller's goroutine, which keeps tests deterministic;
// callers must not hold locks their handlers take.
type MemoryChannel struct {
	mu          sync.Mutex
	handlers    handlerSet
	connected   bool
	failConnect error
	sent        []chat.Envelope
	connects    int
	closes      int
}

var _ Channel = &MemoryChannel{}

func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{handlers: handlerSet{}}
}

func (m *MemoryChannel) On(event string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers.add(event, h)
}

func (m *MemoryChannel) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// FailNextConnect makes the next Connect report EventConnectError with err.
func (m *MemoryChannel) FailNextConnect(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failConnect = err
}

func (m *MemoryChannel) Connect(_ context.Context) {
	m.mu.Lock()
	if m.connected {
		m.mu.Unlock()
		return
	}
	m.connects++
	if err := m.failConnect; err != nil {
		m.failConnect = nil
		m.mu.Unlock()
		m.dispatch(EventConnectError, reasonPayload(err.Error()))
		return
	}
	m.connected = true
	m.mu.Unlock()
	m.dispatch(EventConnect, nil)
}

func (m *MemoryChannel) Emit(event string, payload any) error {
	data, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.sent = append(m.sent, chat.Envelope{Event: event, Data: data})
	return nil
}

func (m *MemoryChannel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	m.closes++
	return nil
}

// Deliver simulates an inbound event from the peer. It is dropped when the
// channel is not connected.
func (m *MemoryChannel) Deliver(event string, payload any) error {
	data, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	if !m.Connected() {
		return ErrNotConnected
	}
	m.dispatch(event, data)
	return nil
}

// Drop simulates the peer going away.
func (m *MemoryChannel) Drop(reason string) {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return
	}
	m.connected = false
	m.mu.Unlock()
	m.dispatch(EventDisconnect, reasonPayload(reason))
}

// Sent returns the envelopes emitted so far.
func (m *MemoryChannel) Sent() []chat.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]chat.Envelope(nil), m.sent...)
}

// SentEvents returns the envelopes emitted for one event name.
func (m *MemoryChannel) SentEvents(event string) []chat.Envelope {
	var out []chat.Envelope
	for _, env := range m.Sent() {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

func (m *MemoryChannel) Connects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects
}

func (m *MemoryChannel) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

func (m *MemoryChannel) dispatch(event string, data json.RawMessage) {
	m.mu.Lock()
	hs := m.handlers.snapshot(event)
	m.mu.Unlock()
	for _, h := range hs {
		h(data)
	}
}
