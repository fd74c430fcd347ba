package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatsurface/pkg/actions"
	"github.com/go-go-golems/chatsurface/pkg/chat"
	"github.com/go-go-golems/chatsurface/pkg/persistence/chatstore"
	"github.com/go-go-golems/chatsurface/pkg/transport"
)

var ErrClosed = errors.New("session closed")

type Options struct {
	// ID defaults to NewSessionID.
	ID      string
	Channel transport.Channel
	// Transcript defaults to an in-memory store. The session closes it.
	Transcript chatstore.TranscriptStore
	Registry   *actions.Registry
	Effects    actions.Effects
	Welcome    chat.Welcome
	Notifier   Notifier
	Now        func() time.Time
}

// Session is one conversation with the remote assistant. It owns its channel
// and transcript. Every state change, inbound or outbound, happens under mu,
// so appends are applied in call order.
type Session struct {
	id         string
	channel    transport.Channel
	transcript chatstore.TranscriptStore
	registry   *actions.Registry
	effects    actions.Effects
	welcome    chat.Welcome
	notifier   Notifier
	now        func() time.Time
	log        zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// lifecycle serializes Open and Close so a channel is never dialed after
	// it was released. Channel handlers never take it.
	lifecycle sync.Mutex

	mu       sync.Mutex
	state    ConnectionState
	closed   bool
	welcomed bool
}

func New(opts Options) (*Session, error) {
	if opts.Channel == nil {
		return nil, errors.New("session: channel is nil")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	id := opts.ID
	if id == "" {
		id = NewSessionID(now())
	}
	transcript := opts.Transcript
	if transcript == nil {
		transcript = chatstore.NewInMemoryTranscriptStore()
	}
	registry := opts.Registry
	if registry == nil {
		registry = actions.NewRegistry("")
	}
	effects := opts.Effects
	if effects == nil {
		effects = actions.SystemEffects{}
	}
	welcome := opts.Welcome
	if welcome.Text == "" {
		welcome = chat.DefaultWelcome()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         id,
		channel:    opts.Channel,
		transcript: transcript,
		registry:   registry,
		effects:    effects,
		welcome:    welcome,
		notifier:   notifier,
		now:        now,
		log:        log.With().Str("component", "session").Str("session_id", id).Logger(),
		ctx:        ctx,
		cancel:     cancel,
		state:      Disconnected,
	}

	s.channel.On(transport.EventConnect, s.onConnect)
	s.channel.On(transport.EventConnectError, s.onConnectError)
	s.channel.On(transport.EventDisconnect, s.onDisconnect)
	s.channel.On(chat.EventReceiveMessage, s.onReceiveMessage)
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CanSend reports whether free text would currently be accepted.
func (s *Session) CanSend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.state == Connected
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Messages returns the transcript in display order.
func (s *Session) Messages(ctx context.Context) ([]chat.Message, error) {
	if s.Closed() {
		return nil, ErrClosed
	}
	msgs, err := s.transcript.All(ctx)
	if err != nil && s.Closed() {
		return nil, ErrClosed
	}
	return msgs, err
}

// Open starts connecting. It returns immediately; the outcome arrives as a
// state change. Opening a connecting or connected session is a no-op, and a
// disconnected or errored session dials again.
func (s *Session) Open(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state == Connecting || s.state == Connected {
		s.mu.Unlock()
		return nil
	}
	s.state = Connecting
	u := s.connectionUpdateLocked()
	s.mu.Unlock()

	s.publish(u)
	s.log.Debug().Msg("opening channel")
	s.channel.Connect(ctx)
	return nil
}

// Close releases the channel and discards the transcript, whatever the
// connection state. It is idempotent.
func (s *Session) Close() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.state = Disconnected
	u := s.connectionUpdateLocked()
	s.mu.Unlock()

	s.cancel()
	chErr := s.channel.Close()
	trErr := s.transcript.Close()
	s.publish(u)
	s.log.Info().Msg("session closed")
	if chErr != nil {
		return errors.Wrap(chErr, "close channel")
	}
	if trErr != nil {
		return errors.Wrap(trErr, "close transcript")
	}
	return nil
}

func (s *Session) onConnect(json.RawMessage) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state = Connected
	updates := []Update{s.connectionUpdateLocked()}
	if err := s.channel.Emit(chat.EventJoin, s.id); err != nil {
		s.log.Warn().Err(err).Msg("join failed")
	}
	if !s.welcomed {
		s.welcomed = true
		welcome := s.welcome.Message(s.now())
		if err := s.transcript.Append(s.ctx, welcome); err != nil {
			s.log.Error().Err(err).Msg("could not append welcome message")
		} else {
			updates = append(updates, s.messageUpdate(welcome))
		}
	}
	s.mu.Unlock()

	s.log.Info().Msg("connected")
	s.publish(updates...)
}

func (s *Session) onConnectError(data json.RawMessage) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state = Errored
	u := s.connectionUpdateLocked()
	s.mu.Unlock()

	s.log.Warn().Str("reason", reason(data)).Msg("connection error")
	s.publish(u)
}

func (s *Session) onDisconnect(data json.RawMessage) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state = Disconnected
	u := s.connectionUpdateLocked()
	s.mu.Unlock()

	s.log.Info().Str("reason", reason(data)).Msg("disconnected")
	s.publish(u)
}

func (s *Session) onReceiveMessage(data json.RawMessage) {
	msg, err := chat.DecodeInbound(data)
	if err != nil {
		s.log.Warn().Err(err).Msg("dropping inbound message")
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if err := s.transcript.Append(s.ctx, msg); err != nil {
		s.mu.Unlock()
		s.log.Error().Err(err).Str("remote_id", msg.RemoteID).Msg("could not append inbound message")
		return
	}
	u := s.messageUpdate(msg)
	s.mu.Unlock()

	s.publish(u)
}

func (s *Session) connectionUpdateLocked() Update {
	return Update{SessionID: s.id, Kind: UpdateConnection, State: s.state.String(), At: s.now()}
}

func (s *Session) messageUpdate(msg chat.Message) Update {
	return Update{SessionID: s.id, Kind: UpdateMessage, MessageID: msg.ID, At: s.now()}
}

func (s *Session) publish(updates ...Update) {
	// the final update of Close is published after s.ctx is cancelled
	ctx := context.WithoutCancel(s.ctx)
	for _, u := range updates {
		if err := s.notifier.Notify(ctx, u); err != nil {
			s.log.Debug().Err(err).Str("kind", string(u.Kind)).Msg("notify failed")
		}
	}
}

func reason(data json.RawMessage) string {
	var r string
	if err := json.Unmarshal(data, &r); err != nil {
		return string(data)
	}
	return r
}
