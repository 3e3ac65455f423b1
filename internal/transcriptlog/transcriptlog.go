// Package transcriptlog persists finished conversation turns to PostgreSQL.
//
// The store is append-only: one row per turn, keyed by a session id assigned
// when the process starts. Failures are reported to the caller but the
// conversation itself never depends on the store being available.
package transcriptlog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the conversation_turns table. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS conversation_turns (
    id         BIGSERIAL PRIMARY KEY,
    session_id TEXT NOT NULL,
    turn_id    BIGINT NOT NULL,
    role       TEXT NOT NULL,
    content    TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_conversation_turns_session ON conversation_turns(session_id, turn_id);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Turn is one persisted conversation turn.
type Turn struct {
	SessionID string
	TurnID    uint64
	Role      string
	Content   string
	CreatedAt time.Time
}

// Store writes conversation turns to PostgreSQL.
type Store struct {
	db        DB
	sessionID string
}

// NewStore creates a store writing under the given session id. The caller is
// responsible for calling [Store.Migrate] to ensure the schema exists before
// the first write.
func NewStore(db DB, sessionID string) *Store {
	return &Store{db: db, sessionID: sessionID}
}

// Migrate executes the [Schema] DDL against the database, creating the
// conversation_turns table and index if they do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("transcriptlog: migrate: %w", err)
	}
	return nil
}

// LogTurn appends one turn to the transcript.
func (s *Store) LogTurn(ctx context.Context, turnID uint64, role, text string) error {
	const query = `
		INSERT INTO conversation_turns (session_id, turn_id, role, content)
		VALUES ($1, $2, $3, $4)`
	if _, err := s.db.Exec(ctx, query, s.sessionID, int64(turnID), role, text); err != nil {
		return fmt.Errorf("transcriptlog: log turn %d: %w", turnID, err)
	}
	return nil
}

// Recent returns up to limit turns of the store's session, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Turn, error) {
	const query = `
		SELECT session_id, turn_id, role, content, created_at
		FROM conversation_turns
		WHERE session_id = $1
		ORDER BY id DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, s.sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("transcriptlog: recent: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t      Turn
			turnID int64
		)
		if err := rows.Scan(&t.SessionID, &turnID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("transcriptlog: recent scan: %w", err)
		}
		t.TurnID = uint64(turnID)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transcriptlog: recent: %w", err)
	}
	return turns, nil
}
