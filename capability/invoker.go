package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/printmind/printmind/core"
	"github.com/printmind/printmind/logging"
)

// InvokerConfig configures the parallel invoker.
type InvokerConfig struct {
	// MaxParallel bounds concurrent calls within one batch. 0 or less
	// means no explicit limit.
	MaxParallel int
	// Logger receives invocation lifecycle events. Nil disables logging.
	Logger logging.Logger
}

// Invoker executes capability calls proposed by the oracle. Every call
// produces exactly one core.CapabilityResult, success or not; transport of
// failure happens inside the result, never as a Go error, so one bad call
// cannot abort its batch. Each completed invocation is appended to the
// session's audit trail before the result is returned.
type Invoker struct {
	registry *Registry
	store    core.SessionStore
	cfg      InvokerConfig
	logger   logging.Logger
}

// NewInvoker creates an invoker over the given registry and session store.
func NewInvoker(registry *Registry, store core.SessionStore, cfg InvokerConfig) *Invoker {
	return &Invoker{
		registry: registry,
		store:    store,
		cfg:      cfg,
		logger:   logging.OrNoOp(cfg.Logger),
	}
}

// Invoke runs a single capability call to completion under the registered
// policy: arguments are validated first (fail fast, no retry), each attempt
// runs under the policy timeout, and transient failures (attempt timeouts
// and ErrTransient-marked errors) are retried with a fixed backoff. Panics
// in capability code are recovered and reported as execution errors.
func (inv *Invoker) Invoke(ctx context.Context, sessionID string, call core.CapabilityCall) core.CapabilityResult {
	start := time.Now()

	result := inv.run(ctx, call)
	result.Elapsed = time.Since(start)
	result.Timestamp = time.Now().UTC()

	inv.logger.Info(
		"capability.call.executed",
		"session_id", sessionID,
		"capability", call.Name,
		"call_id", call.ID,
		"success", result.Success,
		"error_code", result.ErrorCode,
		"duration_ms", result.Elapsed.Milliseconds(),
	)

	if err := inv.store.AppendInvocation(sessionID, result); err != nil {
		inv.logger.Error(
			"capability.audit.error",
			"session_id", sessionID,
			"call_id", call.ID,
			"error", err.Error(),
		)
	}

	return result
}

// InvokeAll executes a batch of calls, possibly in parallel, and returns
// results in the order of the incoming calls.
func (inv *Invoker) InvokeAll(ctx context.Context, sessionID string, calls []core.CapabilityCall) []core.CapabilityResult {
	n := len(calls)
	if n == 0 {
		return nil
	}

	// Fast path: single call, execute inline.
	if n == 1 {
		return []core.CapabilityResult{inv.Invoke(ctx, sessionID, calls[0])}
	}

	maxPar := inv.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	results := make([]core.CapabilityResult, n)
	sem := make(chan struct{}, maxPar)
	var wg sync.WaitGroup

	for i := range calls {
		if ctx.Err() != nil {
			results[i] = cancelledResult(calls[i], ctx.Err())
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, call core.CapabilityCall) {
			defer wg.Done()
			defer func() { <-sem }()

			if ctx.Err() != nil {
				results[idx] = cancelledResult(call, ctx.Err())
				return
			}
			results[idx] = inv.Invoke(ctx, sessionID, call)
		}(i, calls[i])
	}

	wg.Wait()
	return results
}

// run produces the result body without timing or audit concerns.
func (inv *Invoker) run(ctx context.Context, call core.CapabilityCall) core.CapabilityResult {
	result := core.CapabilityResult{CallID: call.ID, Name: call.Name}

	handler, policy, ok := inv.registry.Lookup(call.Name)
	if !ok {
		result.ErrorCode = core.ErrCodeUnknownCapability
		result.ErrorDetail = fmt.Sprintf("capability %q is not registered", call.Name)
		return result
	}

	args, err := decodeArgs(call.Arguments)
	if err != nil {
		result.ErrorCode = core.ErrCodeValidation
		result.ErrorDetail = fmt.Sprintf("arguments are not a JSON object: %v", err)
		return result
	}

	inv.logger.Debug("capability.call.start", "capability", call.Name, "call_id", call.ID)

	attempts := policy.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return cancelledResult(call, ctx.Err())
			case <-time.After(policy.RetryBackoff):
			}
			inv.logger.Debug(
				"capability.call.retry",
				"capability", call.Name,
				"call_id", call.ID,
				"attempt", attempt+1,
			)
		}

		output, attemptErr := inv.attempt(ctx, handler, args, policy.Timeout)
		if attemptErr == nil {
			result.Output = output
			result.Success = true
			result.ErrorCode = ""
			result.ErrorDetail = ""
			return result
		}

		result.ErrorCode, result.ErrorDetail = classify(call.Name, attemptErr)

		// Only attempt timeouts and failures explicitly marked transient
		// are retried; everything else is deterministic.
		if !retryable(attemptErr) {
			return result
		}
		if ctx.Err() != nil {
			return result
		}
	}

	return result
}

// attempt runs one bounded execution of the capability with panic safety.
func (inv *Invoker) attempt(ctx context.Context, handler Capability, args map[string]any, timeout time.Duration) (any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		output any
		err    error
	}

	done := make(chan outcome, 1)
	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				out = outcome{err: panicError(handler.Name(), r)}
				inv.logger.Error("capability.call.panic", "capability", handler.Name(), "recover", fmt.Sprintf("%v", r))
			}
			done <- out
		}()
		out.output, out.err = handler.Call(attemptCtx, args)
	}()

	select {
	case out := <-done:
		return out.output, out.err
	case <-attemptCtx.Done():
		// The goroutine may still be running; its result is discarded.
		return nil, attemptCtx.Err()
	}
}

// decodeArgs parses the call's JSON argument payload. An empty payload is
// treated as an empty object so no-argument capabilities stay callable.
func decodeArgs(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// retryable reports whether a fresh attempt can plausibly succeed: the
// attempt deadline expired, or the error is wrapped with ErrTransient.
func retryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}

// classify maps an attempt error onto the audit error code taxonomy.
func classify(name string, err error) (code, detail string) {
	var capErr *Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return core.ErrCodeTimeout, fmt.Sprintf("capability %q exceeded its deadline", name)
	case errors.Is(err, context.Canceled):
		return core.ErrCodeTimeout, fmt.Sprintf("capability %q was cancelled", name)
	case errors.As(err, &capErr):
		if capErr.Code == "" {
			return core.ErrCodeExecution, capErr.Message
		}
		return capErr.Code, capErr.Message
	default:
		return core.ErrCodeExecution, err.Error()
	}
}

func cancelledResult(call core.CapabilityCall, cause error) core.CapabilityResult {
	detail := "invocation cancelled"
	if cause != nil {
		detail = cause.Error()
	}
	return core.CapabilityResult{
		CallID:      call.ID,
		Name:        call.Name,
		ErrorCode:   core.ErrCodeTimeout,
		ErrorDetail: detail,
		Timestamp:   time.Now().UTC(),
	}
}

func panicError(name string, r any) error {
	return &Error{
		Capability: name,
		Message:    fmt.Sprintf("panic: %v\n%s", r, debug.Stack()),
		Code:       core.ErrCodeExecution,
	}
}
