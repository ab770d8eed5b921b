package core

import (
	"errors"
	"sync"
	"time"
)

// ErrSessionNotFound is returned by stores when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionEnded is returned when appending to a session that was ended.
var ErrSessionEnded = errors.New("session already ended")

// Session is a conversational container with fixed context captured at
// start (owning user, printer profile, material). It is immutable once
// ended except for the append-only message relation, which stores enforce.
type Session struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	StartedAt    time.Time         `json:"started_at"`
	EndedAt      *time.Time        `json:"ended_at,omitempty"`
	PrinterModel string            `json:"printer_model,omitempty"`
	Material     string            `json:"material,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`

	mu sync.RWMutex
}

// NewSession creates a session with the given id and owner.
func NewSession(id, userID string) *Session {
	return &Session{
		ID:        id,
		UserID:    userID,
		StartedAt: time.Now().UTC(),
		Metadata:  map[string]string{},
	}
}

// Ended reports whether the session has been explicitly ended.
func (s *Session) Ended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.EndedAt != nil
}

// End marks the session ended. Ending twice is a no-op.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EndedAt == nil {
		now := time.Now().UTC()
		s.EndedAt = &now
	}
}

// Meta returns the metadata value for key, if present.
func (s *Session) Meta(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.Metadata[key]
	return v, ok
}

// SetMeta sets a metadata key on a session that has not ended.
func (s *Session) SetMeta(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EndedAt != nil {
		return
	}
	if s.Metadata == nil {
		s.Metadata = map[string]string{}
	}
	s.Metadata[key] = value
}

// Clone returns a deep copy safe for independent reads.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:           s.ID,
		UserID:       s.UserID,
		StartedAt:    s.StartedAt,
		PrinterModel: s.PrinterModel,
		Material:     s.Material,
		Metadata:     make(map[string]string, len(s.Metadata)),
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		clone.EndedAt = &t
	}
	for k, v := range s.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}

// SessionStore persists sessions, their ordered message logs and the
// capability invocation audit trail.
//
// Contract:
//   - Append order must match call order per session.
//   - AppendInvocation is idempotent on CallID: replaying the same
//     correlation id yields exactly one stored record.
//   - Writes for one session are serialized; writes for different sessions
//     may proceed concurrently.
type SessionStore interface {
	// CreateSession registers a new session. The id must be unused.
	CreateSession(sess *Session) error

	// GetSession returns the session or ErrSessionNotFound.
	GetSession(sessionID string) (*Session, error)

	// EndSession marks the session ended. Idempotent.
	EndSession(sessionID string) error

	// AppendMessage appends one message to the session's conversation log.
	AppendMessage(sessionID string, msg Message) error

	// AppendInvocation records one capability invocation for audit.
	// A second write with the same CallID is a no-op.
	AppendInvocation(sessionID string, res CapabilityResult) error

	// ReadHistory returns the session's messages in append order.
	ReadHistory(sessionID string) ([]Message, error)

	// ReadInvocations returns the session's audit records in append order.
	ReadInvocations(sessionID string) ([]CapabilityResult, error)
}
