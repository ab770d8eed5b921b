package capability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/printmind/printmind/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// auditStore records invocations like a real store would, idempotent on
// CallID. Only the methods the invoker touches do anything useful.
type auditStore struct {
	mu          sync.Mutex
	invocations []core.CapabilityResult
	seen        map[string]bool
}

func newAuditStore() *auditStore {
	return &auditStore{seen: map[string]bool{}}
}

func (s *auditStore) CreateSession(sess *core.Session) error { return nil }
func (s *auditStore) GetSession(id string) (*core.Session, error) {
	return nil, core.ErrSessionNotFound
}
func (s *auditStore) EndSession(id string) error                      { return nil }
func (s *auditStore) AppendMessage(id string, msg core.Message) error { return nil }

func (s *auditStore) AppendInvocation(id string, res core.CapabilityResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[res.CallID] {
		return nil
	}
	s.seen[res.CallID] = true
	s.invocations = append(s.invocations, res)
	return nil
}

func (s *auditStore) ReadHistory(id string) ([]core.Message, error) { return nil, nil }

func (s *auditStore) ReadInvocations(id string) ([]core.CapabilityResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.CapabilityResult, len(s.invocations))
	copy(out, s.invocations)
	return out, nil
}

func emptySchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func TestInvokeSuccess(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(NewFunc("greet", "", emptySchema(),
		func(ctx context.Context, args map[string]any) (any, error) {
			return "hello", nil
		})))

	store := newAuditStore()
	inv := NewInvoker(registry, store, InvokerConfig{})

	res := inv.Invoke(context.Background(), "s1", core.CapabilityCall{ID: "c1", Name: "greet", Arguments: "{}"})

	assert.True(t, res.Success)
	assert.Equal(t, "hello", res.Output)
	assert.Equal(t, "c1", res.CallID)
	assert.Empty(t, res.ErrorCode)
	assert.False(t, res.Timestamp.IsZero())

	audited, err := store.ReadInvocations("s1")
	require.NoError(t, err)
	require.Len(t, audited, 1)
	assert.Equal(t, "c1", audited[0].CallID)
}

func TestInvokeUnknownCapability(t *testing.T) {
	store := newAuditStore()
	inv := NewInvoker(NewRegistry(), store, InvokerConfig{})

	res := inv.Invoke(context.Background(), "s1", core.CapabilityCall{ID: "c1", Name: "nope"})

	assert.False(t, res.Success)
	assert.Equal(t, core.ErrCodeUnknownCapability, res.ErrorCode)

	audited, _ := store.ReadInvocations("s1")
	require.Len(t, audited, 1, "unknown calls are audited too")
}

func TestInvokeMalformedArguments(t *testing.T) {
	registry := NewRegistry()
	var called atomic.Bool
	require.NoError(t, registry.Register(NewFunc("strict", "", emptySchema(),
		func(ctx context.Context, args map[string]any) (any, error) {
			called.Store(true)
			return nil, nil
		})))

	inv := NewInvoker(registry, newAuditStore(), InvokerConfig{})

	res := inv.Invoke(context.Background(), "s1", core.CapabilityCall{ID: "c1", Name: "strict", Arguments: "not json"})

	assert.False(t, res.Success)
	assert.Equal(t, core.ErrCodeValidation, res.ErrorCode)
	assert.False(t, called.Load(), "handler must not run on malformed arguments")
}

func TestInvokeValidationNotRetried(t *testing.T) {
	registry := NewRegistry()
	var calls atomic.Int32
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string"},
		},
		"required": []string{"path"},
	}
	require.NoError(t, registry.RegisterWithPolicy(NewFunc("read_file", "", schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			calls.Add(1)
			return nil, nil
		}), Policy{MaxRetries: 3, RetryBackoff: time.Millisecond}))

	inv := NewInvoker(registry, newAuditStore(), InvokerConfig{})

	res := inv.Invoke(context.Background(), "s1", core.CapabilityCall{ID: "c1", Name: "read_file", Arguments: "{}"})

	assert.Equal(t, core.ErrCodeValidation, res.ErrorCode)
	assert.Equal(t, int32(0), calls.Load())
}

func TestInvokeRetriesTransientFailure(t *testing.T) {
	registry := NewRegistry()
	var attempts atomic.Int32
	require.NoError(t, registry.RegisterWithPolicy(NewFunc("flaky", "", emptySchema(),
		func(ctx context.Context, args map[string]any) (any, error) {
			if attempts.Add(1) == 1 {
				return nil, fmt.Errorf("backend unreachable: %w", ErrTransient)
			}
			return "ok", nil
		}), Policy{MaxRetries: 1, RetryBackoff: time.Millisecond}))

	inv := NewInvoker(registry, newAuditStore(), InvokerConfig{})

	res := inv.Invoke(context.Background(), "s1", core.CapabilityCall{ID: "c1", Name: "flaky", Arguments: "{}"})

	assert.True(t, res.Success)
	assert.Equal(t, "ok", res.Output)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestInvokeRetriesExhausted(t *testing.T) {
	registry := NewRegistry()
	var attempts atomic.Int32
	require.NoError(t, registry.RegisterWithPolicy(NewFunc("down", "", emptySchema(),
		func(ctx context.Context, args map[string]any) (any, error) {
			attempts.Add(1)
			return nil, fmt.Errorf("still down: %w", ErrTransient)
		}), Policy{MaxRetries: 2, RetryBackoff: time.Millisecond}))

	inv := NewInvoker(registry, newAuditStore(), InvokerConfig{})

	res := inv.Invoke(context.Background(), "s1", core.CapabilityCall{ID: "c1", Name: "down", Arguments: "{}"})

	assert.False(t, res.Success)
	assert.Equal(t, core.ErrCodeExecution, res.ErrorCode)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestInvokeDeterministicFailureNotRetried(t *testing.T) {
	registry := NewRegistry()
	var attempts atomic.Int32
	require.NoError(t, registry.RegisterWithPolicy(NewFunc("broken", "", emptySchema(),
		func(ctx context.Context, args map[string]any) (any, error) {
			attempts.Add(1)
			return nil, errors.New("unsupported format")
		}), Policy{MaxRetries: 3, RetryBackoff: time.Millisecond}))

	inv := NewInvoker(registry, newAuditStore(), InvokerConfig{})

	res := inv.Invoke(context.Background(), "s1", core.CapabilityCall{ID: "c1", Name: "broken", Arguments: "{}"})

	assert.False(t, res.Success)
	assert.Equal(t, core.ErrCodeExecution, res.ErrorCode)
	assert.Equal(t, int32(1), attempts.Load(), "errors not marked transient run once")
}

func TestInvokeTimeout(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterWithPolicy(NewFunc("slow", "", emptySchema(),
		func(ctx context.Context, args map[string]any) (any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return "too late", nil
			}
		}), Policy{Timeout: 20 * time.Millisecond, MaxRetries: 0, RetryBackoff: time.Millisecond}))

	inv := NewInvoker(registry, newAuditStore(), InvokerConfig{})

	start := time.Now()
	res := inv.Invoke(context.Background(), "s1", core.CapabilityCall{ID: "c1", Name: "slow", Arguments: "{}"})

	assert.False(t, res.Success)
	assert.Equal(t, core.ErrCodeTimeout, res.ErrorCode)
	assert.Less(t, time.Since(start), time.Second)
}

func TestInvokeRecoversFromPanic(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterWithPolicy(NewFunc("boom", "", emptySchema(),
		func(ctx context.Context, args map[string]any) (any, error) {
			panic("kaboom")
		}), Policy{MaxRetries: 0}))

	inv := NewInvoker(registry, newAuditStore(), InvokerConfig{})

	res := inv.Invoke(context.Background(), "s1", core.CapabilityCall{ID: "c1", Name: "boom", Arguments: "{}"})

	assert.False(t, res.Success)
	assert.Equal(t, core.ErrCodeExecution, res.ErrorCode)
	assert.Contains(t, res.ErrorDetail, "kaboom")
}

func TestInvokeAllPreservesOrder(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(NewFunc("echo", "", emptySchema(),
		func(ctx context.Context, args map[string]any) (any, error) {
			return args["v"], nil
		})))

	inv := NewInvoker(registry, newAuditStore(), InvokerConfig{MaxParallel: 2})

	calls := []core.CapabilityCall{
		{ID: "c1", Name: "echo", Arguments: `{"v":"one"}`},
		{ID: "c2", Name: "missing", Arguments: "{}"},
		{ID: "c3", Name: "echo", Arguments: `{"v":"three"}`},
	}

	results := inv.InvokeAll(context.Background(), "s1", calls)

	require.Len(t, results, 3)
	assert.Equal(t, "c1", results[0].CallID)
	assert.Equal(t, "one", results[0].Output)
	assert.Equal(t, core.ErrCodeUnknownCapability, results[1].ErrorCode)
	assert.Equal(t, "three", results[2].Output)
}

func TestInvokeAllJoinsMixedOutcomes(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(NewFunc("fast", "", emptySchema(),
		func(ctx context.Context, args map[string]any) (any, error) {
			return args["v"], nil
		})))
	require.NoError(t, registry.RegisterWithPolicy(NewFunc("stuck", "", emptySchema(),
		func(ctx context.Context, args map[string]any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}), Policy{Timeout: 30 * time.Millisecond, MaxRetries: 0, RetryBackoff: time.Millisecond}))

	store := newAuditStore()
	inv := NewInvoker(registry, store, InvokerConfig{})

	calls := []core.CapabilityCall{
		{ID: "c1", Name: "fast", Arguments: `{"v":"first"}`},
		{ID: "c2", Name: "stuck", Arguments: "{}"},
		{ID: "c3", Name: "fast", Arguments: `{"v":"third"}`},
	}

	results := inv.InvokeAll(context.Background(), "s1", calls)

	// The batch joins on all three: one timed out, the other two succeeded.
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.Equal(t, "first", results[0].Output)
	assert.False(t, results[1].Success)
	assert.Equal(t, core.ErrCodeTimeout, results[1].ErrorCode)
	assert.True(t, results[2].Success)
	assert.Equal(t, "third", results[2].Output)

	audited, err := store.ReadInvocations("s1")
	require.NoError(t, err)
	assert.Len(t, audited, 3, "every call in the batch is audited, failed or not")
}

func TestInvokeAuditIdempotentOnReplay(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(NewFunc("greet", "", emptySchema(),
		func(ctx context.Context, args map[string]any) (any, error) {
			return "hello", nil
		})))

	store := newAuditStore()
	inv := NewInvoker(registry, store, InvokerConfig{})

	call := core.CapabilityCall{ID: "same-id", Name: "greet", Arguments: "{}"}
	inv.Invoke(context.Background(), "s1", call)
	inv.Invoke(context.Background(), "s1", call)

	audited, _ := store.ReadInvocations("s1")
	assert.Len(t, audited, 1)
}
