package session

import (
	"fmt"
	"sync"

	"github.com/printmind/printmind/core"
)

// record bundles everything stored for one session.
type record struct {
	sess        *core.Session
	messages    []core.Message
	invocations []core.CapabilityResult
	seenCalls   map[string]bool
}

// InMemory is a thread-safe in-process core.SessionStore. Message and
// invocation logs are append-only; AppendInvocation is idempotent on
// CallID. Data does not survive process restarts.
type InMemory struct {
	mu      sync.RWMutex
	records map[string]*record
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{records: make(map[string]*record)}
}

// CreateSession implements core.SessionStore.
func (s *InMemory) CreateSession(sess *core.Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session requires an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[sess.ID]; exists {
		return fmt.Errorf("session %q already exists", sess.ID)
	}
	s.records[sess.ID] = &record{
		sess:      sess.Clone(),
		seenCalls: map[string]bool{},
	}
	return nil
}

// GetSession implements core.SessionStore.
func (s *InMemory) GetSession(sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return rec.sess.Clone(), nil
}

// EndSession implements core.SessionStore. Ending twice is a no-op.
func (s *InMemory) EndSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return core.ErrSessionNotFound
	}
	rec.sess.End()
	return nil
}

// AppendMessage implements core.SessionStore. Appends to an ended session
// fail with core.ErrSessionEnded.
func (s *InMemory) AppendMessage(sessionID string, msg core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return core.ErrSessionNotFound
	}
	if rec.sess.Ended() {
		return core.ErrSessionEnded
	}
	rec.messages = append(rec.messages, msg)
	return nil
}

// AppendInvocation implements core.SessionStore. A replay of an already
// recorded CallID leaves the log unchanged.
func (s *InMemory) AppendInvocation(sessionID string, res core.CapabilityResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return core.ErrSessionNotFound
	}
	if res.CallID != "" && rec.seenCalls[res.CallID] {
		return nil
	}
	if res.CallID != "" {
		rec.seenCalls[res.CallID] = true
	}
	rec.invocations = append(rec.invocations, res)
	return nil
}

// ReadHistory implements core.SessionStore.
func (s *InMemory) ReadHistory(sessionID string) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	out := make([]core.Message, len(rec.messages))
	copy(out, rec.messages)
	return out, nil
}

// ReadInvocations implements core.SessionStore.
func (s *InMemory) ReadInvocations(sessionID string) ([]core.CapabilityResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	out := make([]core.CapabilityResult, len(rec.invocations))
	copy(out, rec.invocations)
	return out, nil
}
