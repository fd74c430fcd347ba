package chatstore

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/go-go-golems/chatsurface/pkg/chat"
)

// InMemoryTranscriptStore keeps the transcript in a slice. Append never fails
// on an open store.
type InMemoryTranscriptStore struct {
	mu       sync.Mutex
	messages []chat.Message
	closed   bool
}

var _ TranscriptStore = &InMemoryTranscriptStore{}

func NewInMemoryTranscriptStore() *InMemoryTranscriptStore {
	return &InMemoryTranscriptStore{}
}

func (s *InMemoryTranscriptStore) Append(_ context.Context, msg chat.Message) error {
	if s == nil {
		return errors.New("in-memory transcript store: nil store")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("in-memory transcript store: closed")
	}
	s.messages = append(s.messages, msg.Clone())
	return nil
}

func (s *InMemoryTranscriptStore) All(_ context.Context) ([]chat.Message, error) {
	if s == nil {
		return nil, errors.New("in-memory transcript store: nil store")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out, nil
}

func (s *InMemoryTranscriptStore) Len(_ context.Context) (int, error) {
	if s == nil {
		return 0, errors.New("in-memory transcript store: nil store")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages), nil
}

// Close discards the transcript.
func (s *InMemoryTranscriptStore) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.messages = nil
	return nil
}
