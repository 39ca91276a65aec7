package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned for lookups of sessions or preference records
// that do not exist.
var ErrNotFound = errors.New("memory: not found")

// Store persists sessions, messages, and preferences in SQLite.
// Nested structures (metadata, the preference document) are stored as
// JSON text columns.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore wraps an open database handle. The schema is created by
// Migrate before first use.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With("store", "memory")}
}

// Migrate creates the session, message, and preference schema.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		title         TEXT NOT NULL DEFAULT '',
		last_activity INTEGER NOT NULL,
		created_at    INTEGER NOT NULL,
		updated_at    INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, last_activity);

	CREATE TABLE IF NOT EXISTS messages (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		metadata   TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);

	CREATE TABLE IF NOT EXISTS preferences (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL UNIQUE,
		data       TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate memory: %w", err)
	}
	return nil
}

// CreateSession inserts a new session row.
func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, title, last_activity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.UserID, sess.Title, sess.LastActivityMs, sess.CreatedAtMs, sess.UpdatedAtMs)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Session loads one session with its messages. Sessions the titler
// has not named yet get a provisional title derived from their first
// user message.
func (s *Store) Session(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, last_activity, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)

	var sess Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Title,
		&sess.LastActivityMs, &sess.CreatedAtMs, &sess.UpdatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	sess.Messages, err = s.SessionMessages(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if sess.Title == "" {
		for _, m := range sess.Messages {
			if m.Role == RoleUser {
				sess.Title = provisionalTitle(m.Content)
				break
			}
		}
	}
	return &sess, nil
}

// LatestSession returns the user's most recently active session with
// its messages, or (nil, nil) when the user has none.
func (s *Store) LatestSession(ctx context.Context, userID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, last_activity, created_at, updated_at
		FROM sessions WHERE user_id = ?
		ORDER BY last_activity DESC LIMIT 1
	`, userID)

	var sess Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Title,
		&sess.LastActivityMs, &sess.CreatedAtMs, &sess.UpdatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest session: %w", err)
	}

	sess.Messages, err = s.SessionMessages(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// UserSessions lists a user's sessions newest-first, without messages.
// Untitled sessions get a provisional title from their first user
// message so listings are never blank.
func (s *Store) UserSessions(ctx context.Context, userID string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.user_id, s.title,
		       COALESCE((SELECT m.content FROM messages m
		                 WHERE m.session_id = s.id AND m.role = 'user'
		                 ORDER BY m.created_at ASC, m.id ASC LIMIT 1), ''),
		       s.last_activity, s.created_at, s.updated_at
		FROM sessions s WHERE s.user_id = ?
		ORDER BY s.last_activity DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var firstUser string
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Title, &firstUser,
			&sess.LastActivityMs, &sess.CreatedAtMs, &sess.UpdatedAtMs); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if sess.Title == "" {
			sess.Title = provisionalTitle(firstUser)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// maxProvisionalRunes caps derived titles at roughly a subject line.
const maxProvisionalRunes = 60

// provisionalTitle collapses a message into a stand-in title for
// sessions the titler has not named yet.
func provisionalTitle(content string) string {
	t := strings.Join(strings.Fields(content), " ")
	if t == "" {
		return ""
	}
	runes := []rune(t)
	if len(runes) > maxProvisionalRunes {
		t = strings.TrimSpace(string(runes[:maxProvisionalRunes])) + "..."
	}
	return t
}

// SetSessionTitle names a session.
func (s *Store) SetSessionTitle(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("set session title: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UntitledSessions returns sessions without a title that have at least
// minMessages stored messages, newest first.
func (s *Store) UntitledSessions(ctx context.Context, minMessages, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.user_id, s.title, s.last_activity, s.created_at, s.updated_at
		FROM sessions s
		WHERE s.title = ''
		  AND (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id) >= ?
		ORDER BY s.last_activity DESC LIMIT ?
	`, minMessages, limit)
	if err != nil {
		return nil, fmt.Errorf("list untitled sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Title,
			&sess.LastActivityMs, &sess.CreatedAtMs, &sess.UpdatedAtMs); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// AppendMessage stores one message and bumps the session's activity in
// the same transaction.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg Message) error {
	var metadata any
	if msg.Metadata != nil {
		data, err := json.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		metadata = string(data)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, sessionID, msg.Role, msg.Content, metadata, msg.CreatedAtMs)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sessions SET last_activity = ?, updated_at = ? WHERE id = ?
	`, msg.CreatedAtMs, msg.CreatedAtMs, sessionID)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return tx.Commit()
}

// SessionMessages loads a session's messages in insertion order.
func (s *Store) SessionMessages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, metadata, created_at
		FROM messages WHERE session_id = ?
		ORDER BY created_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var metadata sql.NullString
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &metadata, &m.CreatedAtMs); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if metadata.Valid && metadata.String != "" {
			var md Metadata
			if err := json.Unmarshal([]byte(metadata.String), &md); err == nil {
				m.Metadata = &md
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMessages removes trimmed messages by id.
func (s *Store) DeleteMessages(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

// Preferences loads a user's preference document.
func (s *Store) Preferences(ctx context.Context, userID string) (*UserPreferences, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM preferences WHERE user_id = ?`, userID)

	var data string
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	var p UserPreferences
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	return &p, nil
}

// CreatePreferences inserts a preference document, assigning an id when
// the caller has not.
func (s *Store) CreatePreferences(ctx context.Context, p *UserPreferences) error {
	if p.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("preference id: %w", err)
		}
		p.ID = id.String()
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO preferences (id, user_id, data, updated_at)
		VALUES (?, ?, ?, ?)
	`, p.ID, p.UserID, string(data), p.UpdatedAtMs)
	if err != nil {
		return fmt.Errorf("insert preferences: %w", err)
	}
	return nil
}

// UpdatePreferences rewrites a user's preference document. Returns
// ErrNotFound when the row has gone missing, so the caller can recreate
// it from the in-memory state.
func (s *Store) UpdatePreferences(ctx context.Context, p *UserPreferences) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE preferences SET data = ?, updated_at = ? WHERE user_id = ?
	`, string(data), p.UpdatedAtMs, p.UserID)
	if err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Counts returns totals for the stats surface.
func (s *Store) Counts(ctx context.Context) (sessions, messages int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&sessions); err != nil {
		return 0, 0, fmt.Errorf("count sessions: %w", err)
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&messages); err != nil {
		return 0, 0, fmt.Errorf("count messages: %w", err)
	}
	return sessions, messages, nil
}
