package oracle

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a scripted Oracle for tests and local development. Decisions and
// completions are consumed in order; when a script runs out the zero value
// (a malformed decision / empty completion) is returned. Safe for
// concurrent use.
type Mock struct {
	mu          sync.Mutex
	decisions   []Decision
	decisionErr []error
	completions []string
	requests    []Request
	prompts     []string
}

// NewMock creates an empty scripted oracle.
func NewMock() *Mock { return &Mock{} }

// QueueDecision appends a decision to the script.
func (m *Mock) QueueDecision(d Decision) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, d)
	m.decisionErr = append(m.decisionErr, nil)
	return m
}

// QueueError appends a transport-level failure to the script.
func (m *Mock) QueueError(err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, Decision{})
	m.decisionErr = append(m.decisionErr, err)
	return m
}

// QueueCompletion appends a Complete response to the script.
func (m *Mock) QueueCompletion(text string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions = append(m.completions, text)
	return m
}

// Decide implements Oracle by consuming the next scripted decision.
func (m *Mock) Decide(ctx context.Context, req Request) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.decisions) == 0 {
		return Decision{}, nil
	}
	d, err := m.decisions[0], m.decisionErr[0]
	m.decisions, m.decisionErr = m.decisions[1:], m.decisionErr[1:]
	if err != nil {
		return Decision{}, fmt.Errorf("mock oracle: %w", err)
	}
	return d, nil
}

// Complete implements Oracle by consuming the next scripted completion.
func (m *Mock) Complete(ctx context.Context, system, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if len(m.completions) == 0 {
		return "", nil
	}
	text := m.completions[0]
	m.completions = m.completions[1:]
	return text, nil
}

// Requests returns a copy of the Decide requests seen so far.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Prompts returns a copy of the Complete prompts seen so far.
func (m *Mock) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}
