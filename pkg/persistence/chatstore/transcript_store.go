package chatstore

import (
	"context"

	"github.com/go-go-golems/chatsurface/pkg/chat"
)

// TranscriptStore holds the ordered message history of a single session.
//
// It is append-only: entries are returned in append order, never reordered,
// never deduplicated and never mutated. A store belongs to exactly one session
// and is closed with it.
type TranscriptStore interface {
	Append(ctx context.Context, msg chat.Message) error
	All(ctx context.Context) ([]chat.Message, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)
