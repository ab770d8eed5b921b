// Package sqlite provides the durable core.SessionStore backed by an
// embedded SQLite database. WAL mode is enabled for concurrent reads; the
// invocation audit table is keyed by call id so replays collapse into a
// single row.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/printmind/printmind/core"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed core.SessionStore. Writes are serialized per
// session through a keyed mutex; writes for different sessions proceed
// concurrently and rely on the busy timeout for writer contention.
type Store struct {
	conn *sql.DB
	path string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// sessionLock returns the write mutex for one session, creating it on
// first use.
func (s *Store) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

// Open opens (creating if needed) the database at path and applies the
// schema. Parent directories are created automatically.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	store := &Store{conn: conn, path: path, locks: map[string]*sync.Mutex{}}
	if err := store.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	started_at TEXT NOT NULL,
	ended_at TEXT,
	printer_model TEXT NOT NULL DEFAULT '',
	material TEXT NOT NULL DEFAULT '',
	metadata TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS messages (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	call_id TEXT NOT NULL DEFAULT '',
	capability TEXT NOT NULL DEFAULT '',
	tokens_used INTEGER,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);

CREATE TABLE IF NOT EXISTS tool_invocations (
	call_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	seq INTEGER NOT NULL,
	capability TEXT NOT NULL,
	output TEXT,
	success INTEGER NOT NULL,
	elapsed_ms INTEGER NOT NULL,
	error_code TEXT NOT NULL DEFAULT '',
	error_detail TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_invocations_session ON tool_invocations(session_id);
`

func (s *Store) migrate() error {
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// CreateSession implements core.SessionStore.
func (s *Store) CreateSession(sess *core.Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session requires an id")
	}

	metadata, err := json.Marshal(sess.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	lock := s.sessionLock(sess.ID)
	lock.Lock()
	defer lock.Unlock()

	_, err = s.conn.Exec(`
		INSERT INTO sessions (id, user_id, started_at, ended_at, printer_model, material, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, formatTime(sess.StartedAt), nullableTime(sess.EndedAt),
		sess.PrinterModel, sess.Material, string(metadata),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession implements core.SessionStore.
func (s *Store) GetSession(sessionID string) (*core.Session, error) {
	row := s.conn.QueryRow(`
		SELECT id, user_id, started_at, ended_at, printer_model, material, metadata
		FROM sessions WHERE id = ?`, sessionID)

	var (
		sess     core.Session
		started  string
		ended    sql.NullString
		metadata string
	)
	err := row.Scan(&sess.ID, &sess.UserID, &started, &ended, &sess.PrinterModel, &sess.Material, &metadata)
	if err == sql.ErrNoRows {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	if sess.StartedAt, err = parseTime(started); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	sess.EndedAt = parseNullableTime(ended)
	if err := json.Unmarshal([]byte(metadata), &sess.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &sess, nil
}

// EndSession implements core.SessionStore. Idempotent.
func (s *Store) EndSession(sessionID string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	result, err := s.conn.Exec(`
		UPDATE sessions SET ended_at = COALESCE(ended_at, ?) WHERE id = ?`,
		formatTime(time.Now()), sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrSessionNotFound
	}
	return nil
}

// AppendMessage implements core.SessionStore.
func (s *Store) AppendMessage(sessionID string, msg core.Message) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	ended, err := s.sessionEnded(sessionID)
	if err != nil {
		return err
	}
	if ended {
		return core.ErrSessionEnded
	}

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.conn.Exec(`
		INSERT INTO messages (session_id, id, role, content, call_id, capability, tokens_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, msg.ID, msg.Role, msg.Content, msg.CallID, msg.Capability,
		nullableInt(msg.TokensUsed), formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// AppendInvocation implements core.SessionStore. The call_id primary key
// plus INSERT OR IGNORE makes replays a no-op.
func (s *Store) AppendInvocation(sessionID string, res core.CapabilityResult) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.sessionEnded(sessionID); err != nil {
		return err
	}

	output, err := json.Marshal(res.Output)
	if err != nil {
		output = []byte(fmt.Sprintf("%q", fmt.Sprintf("%v", res.Output)))
	}

	timestamp := res.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	var seq int
	row := s.conn.QueryRow(`
		SELECT COALESCE(MAX(seq), 0) + 1 FROM tool_invocations WHERE session_id = ?`, sessionID)
	if err := row.Scan(&seq); err != nil {
		return fmt.Errorf("next invocation seq: %w", err)
	}

	_, err = s.conn.Exec(`
		INSERT OR IGNORE INTO tool_invocations
		(call_id, session_id, seq, capability, output, success, elapsed_ms, error_code, error_detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.CallID, sessionID, seq, res.Name, string(output), boolToInt(res.Success),
		res.Elapsed.Milliseconds(), res.ErrorCode, res.ErrorDetail, formatTime(timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}
	return nil
}

// ReadHistory implements core.SessionStore.
func (s *Store) ReadHistory(sessionID string) ([]core.Message, error) {
	if err := s.requireSession(sessionID); err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(`
		SELECT id, role, content, call_id, capability, tokens_used, created_at
		FROM messages WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []core.Message
	for rows.Next() {
		var (
			msg     core.Message
			tokens  sql.NullInt64
			created string
		)
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.CallID, &msg.Capability, &tokens, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if tokens.Valid {
			v := int(tokens.Int64)
			msg.TokensUsed = &v
		}
		if msg.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parse message created_at: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ReadInvocations implements core.SessionStore.
func (s *Store) ReadInvocations(sessionID string) ([]core.CapabilityResult, error) {
	if err := s.requireSession(sessionID); err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(`
		SELECT call_id, capability, output, success, elapsed_ms, error_code, error_detail, created_at
		FROM tool_invocations WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	var results []core.CapabilityResult
	for rows.Next() {
		var (
			res       core.CapabilityResult
			output    sql.NullString
			success   int
			elapsedMS int64
			created   string
		)
		if err := rows.Scan(&res.CallID, &res.Name, &output, &success, &elapsedMS, &res.ErrorCode, &res.ErrorDetail, &created); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		res.Success = success != 0
		res.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if output.Valid && output.String != "" {
			var decoded any
			if err := json.Unmarshal([]byte(output.String), &decoded); err == nil {
				res.Output = decoded
			} else {
				res.Output = output.String
			}
		}
		if res.Timestamp, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parse invocation created_at: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// sessionEnded reports whether the session exists and has ended.
func (s *Store) sessionEnded(sessionID string) (bool, error) {
	var ended sql.NullString
	row := s.conn.QueryRow(`SELECT ended_at FROM sessions WHERE id = ?`, sessionID)
	err := row.Scan(&ended)
	if err == sql.ErrNoRows {
		return false, core.ErrSessionNotFound
	}
	if err != nil {
		return false, fmt.Errorf("query session state: %w", err)
	}
	return ended.Valid, nil
}

func (s *Store) requireSession(sessionID string) error {
	_, err := s.sessionEnded(sessionID)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
