package session

import (
	"context"
	"time"
)

type UpdateKind string

const (
	UpdateConnection UpdateKind = "connection"
	UpdateMessage    UpdateKind = "message"
)

// Update tells observers that a session changed. It carries no message content;
// observers read the transcript for that.
type Update struct {
	SessionID string     `json:"session_id"`
	Kind      UpdateKind `json:"kind"`
	State     string     `json:"state,omitempty"`
	MessageID string     `json:"message_id,omitempty"`
	At        time.Time  `json:"at"`
}

// Notifier receives session updates after the session lock is released.
type Notifier interface {
	Notify(ctx context.Context, u Update) error
}

type NotifierFunc func(ctx context.Context, u Update) error

func (f NotifierFunc) Notify(ctx context.Context, u Update) error {
	return f(ctx, u)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Update) error { return nil }
