// Package state persists session histories: ordered messages, each carrying
// its execution events in emission order. It is the replay source for batch
// reconstruction; the aggregation core itself never writes here.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/flitsinc/go-transcript/internal/events"
	"github.com/flitsinc/go-transcript/internal/idgen"
	"github.com/flitsinc/go-transcript/internal/session"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EnsureSession creates the session row if it does not exist yet.
func (s *Store) EnsureSession(ctx context.Context, id, title string) (Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Session{}, fmt.Errorf("session id is required")
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO sessions (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		id, nullString(title), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return s.GetSession(ctx, id)
}

func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	var sess Session
	var title sql.NullString
	var createdAtStr, updatedAtStr string
	err := s.db.QueryRowContext(ctx, `SELECT id, title, created_at, updated_at FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &title, &createdAtStr, &updatedAtStr)
	if err == sql.ErrNoRows {
		return Session{}, fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	sess.Title = title.String
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAtStr)
	return sess, nil
}

func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, created_at, updated_at FROM sessions ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var title sql.NullString
		var createdAtStr, updatedAtStr string
		if err := rows.Scan(&sess.ID, &title, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.Title = title.String
		sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAtStr)
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// AppendMessage persists one message and its events at the end of the
// session history. A missing message id gets a generated one. Emission
// order is preserved by monotonic sequence numbers, independent of the
// producer's timestamps.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg session.Message) (session.Message, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return session.Message{}, fmt.Errorf("session id is required")
	}
	if msg.ID == "" {
		msg.ID = idgen.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	contextJSON := ""
	if msg.Context != nil {
		var err error
		contextJSON, err = encodeJSON(msg.Context)
		if err != nil {
			return session.Message{}, fmt.Errorf("encode context snapshot: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return session.Message{}, fmt.Errorf("begin append tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM messages WHERE session_id = ?`, sessionID).Scan(&maxSeq); err != nil {
		return session.Message{}, fmt.Errorf("next message seq: %w", err)
	}
	seq := maxSeq.Int64 + 1

	_, err = tx.ExecContext(ctx, `INSERT INTO messages (id, session_id, seq, role, body, context, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, sessionID, seq, nullString(msg.Role), nullString(msg.Text), nullString(contextJSON), msg.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return session.Message{}, fmt.Errorf("insert message: %w", err)
	}

	for i, ev := range msg.Events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return session.Message{}, fmt.Errorf("encode event %s: %w", ev.ID, err)
		}
		// OR IGNORE keeps the first occurrence when a producer retry re-sends
		// an already-persisted event id, so the rest of the message still
		// lands instead of the whole append failing.
		_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO events (id, session_id, message_id, seq, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			ev.ID, sessionID, msg.ID, i, string(payload), ev.Timestamp.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return session.Message{}, fmt.Errorf("insert event %s: %w", ev.ID, err)
		}
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, now.Format(time.RFC3339Nano), sessionID); err != nil {
		return session.Message{}, fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return session.Message{}, fmt.Errorf("commit append: %w", err)
	}
	return msg, nil
}

// LoadMessages returns the full ordered history of a session for batch
// reconstruction.
func (s *Store) LoadMessages(ctx context.Context, sessionID string) ([]session.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, role, body, context, created_at FROM messages WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var out []session.Message
	for rows.Next() {
		var msg session.Message
		var role, body, contextStr sql.NullString
		var createdAtStr string
		if err := rows.Scan(&msg.ID, &role, &body, &contextStr, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = role.String
		msg.Text = body.String
		msg.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		if contextStr.Valid && contextStr.String != "" {
			var snap events.ContextSnapshot
			if err := json.Unmarshal([]byte(contextStr.String), &snap); err == nil {
				msg.Context = &snap
			}
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	for i := range out {
		evts, err := s.loadEvents(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Events = evts
	}
	return out, nil
}

func (s *Store) loadEvents(ctx context.Context, messageID string) ([]events.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM events WHERE message_id = ? ORDER BY seq ASC`, messageID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev events.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			// A corrupt row must not blank out the rest of the history.
			continue
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func encodeJSON(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
