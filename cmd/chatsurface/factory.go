package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/chatsurface/pkg/actions"
	"github.com/go-go-golems/chatsurface/pkg/config"
	"github.com/go-go-golems/chatsurface/pkg/persistence/chatstore"
	"github.com/go-go-golems/chatsurface/pkg/session"
	"github.com/go-go-golems/chatsurface/pkg/shell"
	"github.com/go-go-golems/chatsurface/pkg/transport"
)

// newSessionFactory builds sessions talking to s.Endpoint. Every session gets
// its own websocket channel and transcript.
func newSessionFactory(s config.Settings, reg *actions.Registry, fx actions.Effects, notifier session.Notifier) shell.Factory {
	return func(ctx context.Context) (*session.Session, error) {
		ch, err := transport.NewWebSocketChannel(transport.WebSocketOptions{
			URL:              s.Endpoint,
			HandshakeTimeout: s.HandshakeTimeout,
			WriteTimeout:     s.WriteTimeout,
		})
		if err != nil {
			return nil, err
		}
		id := session.NewSessionID(time.Now())
		store, err := chatstore.Open(s.Transcript, id)
		if err != nil {
			return nil, errors.Wrap(err, "open transcript")
		}
		sess, err := session.New(session.Options{
			ID:         id,
			Channel:    ch,
			Transcript: store,
			Registry:   reg,
			Effects:    fx,
			Welcome:    s.Welcome,
			Notifier:   notifier,
		})
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		return sess, nil
	}
}
