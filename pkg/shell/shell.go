package shell

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatsurface/pkg/chat"
	"github.com/go-go-golems/chatsurface/pkg/session"
)

type State int

const (
	Closed State = iota
	Open
	OpenMinimized
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case OpenMinimized:
		return "open_minimized"
	default:
		return "unknown"
	}
}

// Factory builds a fresh session, channel included, for every Start from Closed.
type Factory func(ctx context.Context) (*session.Session, error)

// View is a read-only projection of the shell for rendering.
type View struct {
	State      State
	Minimized  bool
	Expanded   bool
	SessionID  string
	Connection session.ConnectionState
	Messages   []chat.Message
	CanSend    bool
}

func (v View) Visible() bool {
	return v.State != Closed
}

// Shell is the surface around one chat session: whether it is shown, minimized
// or expanded, and which session it currently owns.
type Shell struct {
	factory Factory
	log     zerolog.Logger

	mu        sync.Mutex
	sess      *session.Session
	minimized bool
	expanded  bool
}

func New(factory Factory) *Shell {
	return &Shell{
		factory: factory,
		log:     log.With().Str("component", "shell").Logger(),
	}
}

func (s *Shell) stateLocked() State {
	switch {
	case s.sess == nil:
		return Closed
	case s.minimized:
		return OpenMinimized
	default:
		return Open
	}
}

func (s *Shell) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Start shows the chat. From Closed it creates and opens a new session; from an
// open state it only restores a minimized surface.
func (s *Shell) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.sess != nil {
		s.minimized = false
		s.mu.Unlock()
		return nil
	}
	if s.factory == nil {
		s.mu.Unlock()
		return errors.New("shell: no session factory")
	}
	sess, err := s.factory(ctx)
	if err != nil {
		s.mu.Unlock()
		return errors.Wrap(err, "create session")
	}
	s.sess = sess
	s.minimized = false
	s.expanded = false
	s.mu.Unlock()

	s.log.Info().Str("session_id", sess.ID()).Msg("chat started")
	if err := sess.Open(ctx); err != nil {
		return errors.Wrap(err, "open session")
	}
	return nil
}

// Close hides the chat and releases the session. It is idempotent.
func (s *Shell) Close() error {
	s.mu.Lock()
	sess := s.sess
	s.sess = nil
	s.minimized = false
	s.expanded = false
	s.mu.Unlock()

	if sess == nil {
		return nil
	}
	s.log.Info().Str("session_id", sess.ID()).Msg("chat closed")
	return sess.Close()
}

func (s *Shell) ToggleMinimize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return
	}
	s.minimized = !s.minimized
}

// ToggleExpand flips the expanded flag. Expanding a minimized surface also
// restores it.
func (s *Shell) ToggleExpand() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return
	}
	if s.minimized {
		s.minimized = false
		s.expanded = true
		return
	}
	s.expanded = !s.expanded
}

// Session returns the live session, or nil when closed.
func (s *Shell) Session() *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess
}

func (s *Shell) Snapshot(ctx context.Context) (View, error) {
	s.mu.Lock()
	v := View{
		State:     s.stateLocked(),
		Minimized: s.minimized,
		Expanded:  s.expanded,
	}
	sess := s.sess
	s.mu.Unlock()

	if sess == nil {
		v.Connection = session.Disconnected
		return v, nil
	}
	v.SessionID = sess.ID()
	v.Connection = sess.State()
	v.CanSend = sess.CanSend()
	msgs, err := sess.Messages(ctx)
	if err != nil {
		if errors.Is(err, session.ErrClosed) {
			// closed underneath us by a concurrent Close
			return v, nil
		}
		return v, errors.Wrap(err, "read transcript")
	}
	v.Messages = msgs
	return v, nil
}

func (s *Shell) Submit(ctx context.Context, text string) bool {
	sess := s.Session()
	if sess == nil {
		return false
	}
	return sess.SubmitFreeText(ctx, text)
}

func (s *Shell) Select(ctx context.Context, opt chat.QuickOption) {
	if sess := s.Session(); sess != nil {
		sess.SelectOption(ctx, opt)
	}
}

func (s *Shell) OpenAuxLink(ctx context.Context, msg chat.Message) {
	if sess := s.Session(); sess != nil {
		sess.OpenAuxLink(ctx, msg)
	}
}
