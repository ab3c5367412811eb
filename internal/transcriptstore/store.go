// Package transcriptstore persists completed conversation turns and
// community chat messages in SQLite. The live session never depends on it:
// writes happen after a turn completes and failures are logged, not
// surfaced.
package transcriptstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bloomlabs/bloom-core/internal/config"
	"github.com/bloomlabs/bloom-core/internal/protocol"
)

// TurnRecord is one persisted conversation turn.
type TurnRecord struct {
	ID        int64
	SessionID string
	Speaker   string
	Text      string
	Degraded  bool
	CreatedAt time.Time
}

// Store wraps the SQLite-backed transcript store.
type Store struct {
	db    *sql.DB
	cfg   config.StoreConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the store according to config. Retention mode
// "ephemeral" yields a store whose writes are no-ops.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if err := s.vacuum(ctx); err != nil {
			log.Warn("transcript store vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("transcript store prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    voice TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS turns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    speaker TEXT NOT NULL,
    text TEXT NOT NULL,
    degraded INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_turns_session_created ON turns(session_id, created_at);
CREATE TABLE IF NOT EXISTS chat_messages (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    user_name TEXT NOT NULL,
    body TEXT NOT NULL,
    deleted INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_created ON chat_messages(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) vacuum(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSession makes sure a session row exists before turns reference it.
func (s *Store) EnsureSession(ctx context.Context, sessionID, voice string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(session_id, voice, created_at)
		 VALUES(?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET voice=excluded.voice`,
		sessionID, voice, s.clock().UTC())
	return err
}

// AppendTurn records one completed turn.
func (s *Store) AppendTurn(ctx context.Context, sessionID, speaker, text string, degraded bool) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns(session_id, speaker, text, degraded, created_at) VALUES(?, ?, ?, ?, ?)`,
		sessionID, speaker, text, degraded, s.clock().UTC())
	return err
}

// ListTurns retrieves up to limit turns for a session, oldest first.
func (s *Store) ListTurns(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, speaker, text, degraded, created_at
		 FROM turns WHERE session_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []TurnRecord
	for rows.Next() {
		var t TurnRecord
		var created string
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Speaker, &t.Text, &t.Degraded, &created); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse turn %d created_at: %w", t.ID, err)
		}
		t.CreatedAt = ts
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// InsertChatMessage stores a moderated chat message.
func (s *Store) InsertChatMessage(ctx context.Context, msg protocol.ChatMessage) error {
	if s.db == nil {
		return nil
	}
	created := msg.CreatedAt
	if created.IsZero() {
		created = s.clock()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages(id, user_id, user_name, body, deleted, created_at) VALUES(?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.UserID, msg.UserName, msg.Body, msg.Deleted, created.UTC())
	return err
}

// ListChatMessages retrieves up to limit messages, oldest first.
func (s *Store) ListChatMessages(ctx context.Context, limit int) ([]protocol.ChatMessage, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, user_name, body, deleted, created_at
		 FROM chat_messages ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []protocol.ChatMessage
	for rows.Next() {
		var m protocol.ChatMessage
		var created string
		if err := rows.Scan(&m.ID, &m.UserID, &m.UserName, &m.Body, &m.Deleted, &created); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse chat message %s created_at: %w", m.ID, err)
		}
		m.CreatedAt = ts
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SoftDeleteChatMessage blanks a message in place; only the author may
// delete. Returns sql.ErrNoRows when no matching row was updated.
func (s *Store) SoftDeleteChatMessage(ctx context.Context, id, userID string) error {
	if s.db == nil {
		return nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_messages SET body = 'This message was deleted.', deleted = 1
		 WHERE id = ? AND user_id = ? AND deleted = 0`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Prune applies configured retention.
func (s *Store) Prune(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour).UTC()
		if _, err = tx.ExecContext(ctx, `DELETE FROM turns WHERE created_at < ?`, cutoff); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE created_at < ?`, cutoff); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE created_at < ?`, cutoff); err != nil {
			return err
		}
	}
	if s.cfg.MaxSessions > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id IN (
			SELECT session_id FROM sessions ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxSessions)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
