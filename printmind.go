// Package printmind provides a high-level façade over the agent
// orchestration engine: a capability registry, the turn supervisor and the
// strict decomposition pipeline, wired to a session store and an oracle
// provider. Most applications interact with this package by:
//  1. Creating an Engine via New() (optionally overriding the defaults)
//  2. Registering capabilities (or using the built-in set)
//  3. Starting a session and calling ProcessTurn / ProcessTurnStrict
//
// All defaults are safe for local development: in-memory session store,
// no-op logger, empty capability set. Production deployments supply a
// durable store, a real oracle provider and the capability wiring they
// need.
package printmind

import (
	"context"
	"fmt"

	"github.com/printmind/printmind/capability"
	"github.com/printmind/printmind/core"
	"github.com/printmind/printmind/logging"
	"github.com/printmind/printmind/oracle"
	"github.com/printmind/printmind/pipeline"
	"github.com/printmind/printmind/session"
	"github.com/printmind/printmind/supervisor"
)

// Options configures the Engine.
type Options struct {
	// Oracle is the reasoning provider. Required.
	Oracle oracle.Oracle

	// SessionStore defaults to an in-memory implementation.
	SessionStore core.SessionStore

	// Logger defaults to the no-op logger.
	Logger logging.Logger

	// MaxRounds bounds capability rounds per supervised turn. Default 4.
	MaxRounds int

	// MaxParallelCalls bounds concurrent capability calls per round.
	// 0 means unlimited.
	MaxParallelCalls int

	// PipelineRetries bounds respond/verify cycles in strict mode.
	// Default 2.
	PipelineRetries int

	// QualityThreshold is the strict-mode pass bar. Default 7.0.
	QualityThreshold float64
}

// Engine aggregates the orchestration pieces behind a small API surface.
type Engine struct {
	opts     Options
	registry *capability.Registry
	invoker  *capability.Invoker
	sup      *supervisor.Supervisor
	pipe     *pipeline.Pipeline
	store    core.SessionStore
	logger   logging.Logger
}

// New creates an Engine. Capabilities must be registered before the first
// turn; the registry freezes lazily on first use.
func New(optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{
		SessionStore:     session.NewInMemory(),
		Logger:           logging.NoOpLogger{},
		MaxRounds:        4,
		PipelineRetries:  2,
		QualityThreshold: 7.0,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Oracle == nil {
		return nil, fmt.Errorf("printmind: an oracle provider is required")
	}

	registry := capability.NewRegistry()
	invoker := capability.NewInvoker(registry, opts.SessionStore, capability.InvokerConfig{
		MaxParallel: opts.MaxParallelCalls,
		Logger:      opts.Logger,
	})

	sup := supervisor.New(opts.Oracle, registry, invoker, opts.SessionStore, func(o *supervisor.Options) {
		o.MaxRounds = opts.MaxRounds
		o.Logger = opts.Logger
	})

	pipe := pipeline.New(opts.Oracle, invoker, opts.SessionStore, func(o *pipeline.Options) {
		o.MaxRetries = opts.PipelineRetries
		o.PassThreshold = opts.QualityThreshold
		o.Logger = opts.Logger
	})

	return &Engine{
		opts:     opts,
		registry: registry,
		invoker:  invoker,
		sup:      sup,
		pipe:     pipe,
		store:    opts.SessionStore,
		logger:   logging.OrNoOp(opts.Logger),
	}, nil
}

// RegisterCapability adds a capability with the default policy.
func (e *Engine) RegisterCapability(c capability.Capability) error {
	return e.registry.Register(c)
}

// RegisterCapabilityWithPolicy adds a capability with an explicit policy.
func (e *Engine) RegisterCapabilityWithPolicy(c capability.Capability, p capability.Policy) error {
	return e.registry.RegisterWithPolicy(c, p)
}

// Registry exposes the capability registry, mainly for inspection.
func (e *Engine) Registry() *capability.Registry {
	return e.registry
}

// StartSession creates a new session and returns its id.
func (e *Engine) StartSession(userID string, optFns ...func(s *core.Session)) (string, error) {
	sess := core.NewSession(core.NewID(), userID)
	for _, fn := range optFns {
		fn(sess)
	}
	if err := e.store.CreateSession(sess); err != nil {
		return "", err
	}
	e.logger.Info("session.start", "session_id", sess.ID, "user_id", userID)
	return sess.ID, nil
}

// EndSession marks the session ended. Idempotent.
func (e *Engine) EndSession(sessionID string) error {
	e.logger.Info("session.end", "session_id", sessionID)
	return e.store.EndSession(sessionID)
}

// History returns the session's conversation log.
func (e *Engine) History(sessionID string) ([]core.Message, error) {
	return e.store.ReadHistory(sessionID)
}

// Invocations returns the session's capability audit trail.
func (e *Engine) Invocations(sessionID string) ([]core.CapabilityResult, error) {
	return e.store.ReadInvocations(sessionID)
}

// ProcessTurn runs one supervised turn: the oracle plans, capabilities
// run, and a final answer is produced within the round budget.
func (e *Engine) ProcessTurn(ctx context.Context, sessionID, userMessage string) (supervisor.TurnResult, error) {
	e.freeze()
	return e.sup.ProcessTurn(ctx, sessionID, userMessage)
}

// ProcessTurnStrict runs one strict-mode turn through the decomposition
// pipeline with the quality gate.
func (e *Engine) ProcessTurnStrict(ctx context.Context, sessionID, userMessage string) (pipeline.StrictResult, error) {
	e.freeze()
	return e.pipe.ProcessTurnStrict(ctx, sessionID, userMessage)
}

// freeze seals the registry before the first turn. Freeze is idempotent.
func (e *Engine) freeze() {
	e.registry.Freeze()
}
