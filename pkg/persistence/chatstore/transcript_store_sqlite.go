package chatstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/go-go-golems/chatsurface/pkg/chat"
)

// SQLiteTranscriptStore keeps the transcript in SQLite. With the DSN returned by
// SQLiteTranscriptDSNForSession the database lives in memory and disappears on Close.
type SQLiteTranscriptStore struct {
	db *sql.DB
}

var _ TranscriptStore = &SQLiteTranscriptStore{}

func NewSQLiteTranscriptStore(dsn string) (*SQLiteTranscriptStore, error) {
	if dsn == "" {
		return nil, errors.New("sqlite transcript store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite transcript store: open")
	}
	// a shared-cache memory database only survives while a connection holds it
	db.SetMaxOpenConns(1)
	s := &SQLiteTranscriptStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// SQLiteTranscriptDSNForSession returns a DSN for a private in-memory database
// scoped to one session.
func SQLiteTranscriptDSNForSession(sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", errors.New("sqlite transcript store: empty session id")
	}
	return fmt.Sprintf("file:transcript-%s?mode=memory&cache=shared", url.PathEscape(sessionID)), nil
}

func (s *SQLiteTranscriptStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteTranscriptStore) Append(ctx context.Context, msg chat.Message) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite transcript store: db is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if msg.ID == "" {
		return errors.New("sqlite transcript store: message id is empty")
	}
	options, err := json.Marshal(msg.Options)
	if err != nil {
		return errors.Wrap(err, "sqlite transcript store: marshal options")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transcript_messages (
			message_id, remote_id, sender, body, sent_at_ns, options_json, aux_link
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.RemoteID, string(msg.Sender), msg.Body, msg.SentAt.UnixNano(), string(options), msg.AuxLink)
	if err != nil {
		return errors.Wrap(err, "sqlite transcript store: insert message")
	}
	return nil
}

func (s *SQLiteTranscriptStore) All(ctx context.Context) ([]chat.Message, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite transcript store: db is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, remote_id, sender, body, sent_at_ns, options_json, aux_link
		FROM transcript_messages
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite transcript store: query messages")
	}
	defer func() { _ = rows.Close() }()

	out := []chat.Message{}
	for rows.Next() {
		var (
			msg         chat.Message
			sender      string
			sentAtNs    int64
			optionsJSON string
		)
		if err := rows.Scan(&msg.ID, &msg.RemoteID, &sender, &msg.Body, &sentAtNs, &optionsJSON, &msg.AuxLink); err != nil {
			return nil, errors.Wrap(err, "sqlite transcript store: scan message")
		}
		msg.Sender = chat.Sender(sender)
		msg.SentAt = time.Unix(0, sentAtNs).UTC()
		if err := json.Unmarshal([]byte(optionsJSON), &msg.Options); err != nil {
			return nil, errors.Wrapf(err, "sqlite transcript store: unmarshal options of %s", msg.ID)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite transcript store: iterate messages")
	}
	return out, nil
}

func (s *SQLiteTranscriptStore) Len(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("sqlite transcript store: db is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcript_messages`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "sqlite transcript store: count messages")
	}
	return n, nil
}

func (s *SQLiteTranscriptStore) migrate() error {
	if s == nil || s.db == nil {
		return errors.New("sqlite transcript store: db is nil")
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transcript_messages (
		  seq INTEGER PRIMARY KEY AUTOINCREMENT,
		  message_id TEXT NOT NULL,
		  remote_id TEXT NOT NULL DEFAULT '',
		  sender TEXT NOT NULL,
		  body TEXT NOT NULL,
		  sent_at_ns INTEGER NOT NULL,
		  options_json TEXT NOT NULL DEFAULT 'null',
		  aux_link TEXT NOT NULL DEFAULT ''
		);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite transcript store: migrate")
		}
	}
	return nil
}

// Open builds the transcript store for a new session.
func Open(backend string, sessionID string) (TranscriptStore, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendMemory:
		return NewInMemoryTranscriptStore(), nil
	case BackendSQLite:
		dsn, err := SQLiteTranscriptDSNForSession(sessionID)
		if err != nil {
			return nil, err
		}
		return NewSQLiteTranscriptStore(dsn)
	default:
		return nil, errors.Errorf("unknown transcript backend %q", backend)
	}
}
