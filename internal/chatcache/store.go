// Package chatcache is the local chat cache: the last known transcript
// per chat, so a reopened chat renders instantly and the resume flow can
// spot a message that was still streaming when the app closed.
package chatcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/lucentai/lucent-client/internal/message"
)

// CachedChat is one cached transcript.
type CachedChat struct {
	ChatID    string
	Messages  []message.Message
	Streaming bool // an assistant message was still generating at cache time
	UpdatedAt time.Time
}

// Store is the SQLite-backed cache. All methods are safe for concurrent
// use; database/sql handles connection-level locking.
type Store struct {
	db *sql.DB
}

// Open creates the store at the given path, creating parent directories
// and the schema as needed. Pass ":memory:" for an ephemeral cache.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		connStr = "file::memory:?cache=shared"
	} else {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping cache database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache tables: %w", err)
	}

	return s, nil
}

func (s *Store) createTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS cached_chats (
			chat_id    TEXT PRIMARY KEY,
			payload    TEXT NOT NULL,
			streaming  INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

// GetCachedChat returns the cached transcript for a chat, or (nil, nil)
// when the chat has never been cached.
func (s *Store) GetCachedChat(ctx context.Context, chatID string) (*CachedChat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload, streaming, updated_at FROM cached_chats WHERE chat_id = ?`, chatID)

	var payload string
	var streaming bool
	var updatedAt time.Time
	if err := row.Scan(&payload, &streaming, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cached chat: %w", err)
	}

	var messages []message.Message
	if err := json.Unmarshal([]byte(payload), &messages); err != nil {
		return nil, fmt.Errorf("decode cached chat: %w", err)
	}

	return &CachedChat{
		ChatID:    chatID,
		Messages:  messages,
		Streaming: streaming,
		UpdatedAt: updatedAt,
	}, nil
}

// UpsertCachedChat writes the transcript for a chat, replacing any
// previous entry.
func (s *Store) UpsertCachedChat(ctx context.Context, chat CachedChat) error {
	payload, err := json.Marshal(chat.Messages)
	if err != nil {
		return fmt.Errorf("encode cached chat: %w", err)
	}

	updatedAt := chat.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cached_chats (chat_id, payload, streaming, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			payload    = excluded.payload,
			streaming  = excluded.streaming,
			updated_at = excluded.updated_at
	`, chat.ChatID, string(payload), chat.Streaming, updatedAt)
	if err != nil {
		return fmt.Errorf("upsert cached chat: %w", err)
	}
	return nil
}

// DeleteCachedChat removes a chat from the cache.
func (s *Store) DeleteCachedChat(ctx context.Context, chatID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cached_chats WHERE chat_id = ?`, chatID)
	return err
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
