// Package supervisor drives one conversational turn through its state
// machine: the oracle plans, proposed capability calls are dispatched and
// joined, results feed the next planning round, and after a bounded number
// of rounds the oracle is forced to consolidate an answer from whatever it
// has. The supervisor owns turn persistence; the oracle stays stateless.
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/printmind/printmind/capability"
	"github.com/printmind/printmind/core"
	"github.com/printmind/printmind/logging"
	"github.com/printmind/printmind/oracle"
)

// State names one phase of a turn.
type State string

const (
	StateAwaitingPlan         State = "awaiting_plan"
	StateAwaitingCapabilities State = "awaiting_capabilities"
	StateConsolidating        State = "consolidating"
	StateDone                 State = "done"
)

// consolidateDirective is sent when the round budget runs out.
const consolidateDirective = "You have used all available capability rounds. " +
	"Answer the user's question now using only the information already gathered. " +
	"Do not request any further capability calls."

// fallbackAnswer is the last resort when the oracle cannot produce text.
const fallbackAnswer = "I was unable to produce a reliable answer this time. " +
	"Please rephrase the question or try again."

// Options configures the supervisor.
type Options struct {
	// MaxRounds bounds planning/dispatch cycles per turn. Default 4.
	MaxRounds int
	// TurnTimeout bounds the whole turn. Default 120s.
	TurnTimeout time.Duration
	// Logger receives turn lifecycle events. Nil disables logging.
	Logger logging.Logger
}

// TurnResult is the outcome of one completed turn.
type TurnResult struct {
	// FinalAnswer is always non-empty for a non-error return.
	FinalAnswer string
	// Results are the capability results gathered across all rounds, in
	// dispatch order.
	Results []core.CapabilityResult
	// Rounds is the number of capability rounds that ran.
	Rounds int
	// TokensUsed aggregates provider-reported usage when available.
	TokensUsed *int
}

// Supervisor runs turns against one oracle, registry and store.
type Supervisor struct {
	oracleSvc oracle.Oracle
	registry  *capability.Registry
	invoker   *capability.Invoker
	store     core.SessionStore
	opts      Options
	logger    logging.Logger
}

// New creates a supervisor.
func New(o oracle.Oracle, registry *capability.Registry, invoker *capability.Invoker, store core.SessionStore, optFns ...func(*Options)) *Supervisor {
	opts := Options{
		MaxRounds:   4,
		TurnTimeout: 120 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = 4
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = 120 * time.Second
	}

	return &Supervisor{
		oracleSvc: o,
		registry:  registry,
		invoker:   invoker,
		store:     store,
		opts:      opts,
		logger:    logging.OrNoOp(opts.Logger),
	}
}

// ProcessTurn runs one full turn for the session. The user message is
// persisted first; every capability result is persisted as it lands; the
// final answer is persisted last. A context or turn-timeout cancellation
// stops new rounds but never undoes persisted results.
func (s *Supervisor) ProcessTurn(ctx context.Context, sessionID, userMessage string) (TurnResult, error) {
	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		return TurnResult{}, err
	}
	if sess.Ended() {
		return TurnResult{}, core.ErrSessionEnded
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.TurnTimeout)
	defer cancel()

	if err := s.store.AppendMessage(sessionID, core.NewUserMessage(userMessage)); err != nil {
		return TurnResult{}, fmt.Errorf("persist user message: %w", err)
	}

	history, err := s.store.ReadHistory(sessionID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("read history: %w", err)
	}

	descriptors := s.registry.Descriptors()

	var (
		result      TurnResult
		totalTokens int
		sawTokens   bool
		state       = StateAwaitingPlan
		planRetried bool
	)

	s.logger.Info("turn.start", "session_id", sessionID, "capabilities", len(descriptors))

	for state != StateDone {
		switch state {
		case StateAwaitingPlan:
			decision, err := s.oracleSvc.Decide(ctx, oracle.Request{
				History:      history,
				Capabilities: descriptors,
			})
			if err != nil {
				if ctx.Err() == nil {
					return TurnResult{}, fmt.Errorf("oracle decide: %w", err)
				}
				s.logger.Warn("turn.timeout", "session_id", sessionID, "rounds", result.Rounds)
				result.FinalAnswer = fallbackAnswer
				state = StateDone
				break
			}
			if decision.TokensUsed != nil {
				totalTokens += *decision.TokensUsed
				sawTokens = true
			}

			switch decision.Kind() {
			case oracle.DecisionFinal:
				result.FinalAnswer = decision.FinalAnswer
				state = StateDone
			case oracle.DecisionCalls:
				if result.Rounds >= s.opts.MaxRounds {
					state = StateConsolidating
					break
				}
				state = StateAwaitingCapabilities
				history = s.dispatchRound(ctx, sessionID, decision.Calls, history, &result)
				if result.Rounds >= s.opts.MaxRounds {
					state = StateConsolidating
				} else {
					state = StateAwaitingPlan
				}
			default: // malformed
				s.logger.Warn("turn.plan.malformed", "session_id", sessionID, "retried", planRetried)
				if planRetried {
					result.FinalAnswer = fallbackAnswer
					state = StateDone
					break
				}
				planRetried = true
			}

		case StateConsolidating:
			decision, err := s.oracleSvc.Decide(ctx, oracle.Request{
				History:   history,
				Directive: consolidateDirective,
				FinalOnly: true,
			})
			if err != nil || decision.FinalAnswer == "" {
				if err != nil {
					s.logger.Warn("turn.consolidate.error", "session_id", sessionID, "error", err.Error())
				}
				result.FinalAnswer = fallbackAnswer
			} else {
				result.FinalAnswer = decision.FinalAnswer
				if decision.TokensUsed != nil {
					totalTokens += *decision.TokensUsed
					sawTokens = true
				}
			}
			state = StateDone
		}

		if ctx.Err() != nil && state != StateDone {
			s.logger.Warn("turn.timeout", "session_id", sessionID, "rounds", result.Rounds)
			result.FinalAnswer = fallbackAnswer
			state = StateDone
		}
	}

	if sawTokens {
		result.TokensUsed = &totalTokens
	}

	answer := core.NewAssistantMessage(result.FinalAnswer)
	answer.TokensUsed = result.TokensUsed
	if err := s.store.AppendMessage(sessionID, answer); err != nil {
		return TurnResult{}, fmt.Errorf("persist answer: %w", err)
	}

	s.logger.Info(
		"turn.done",
		"session_id", sessionID,
		"rounds", result.Rounds,
		"results", len(result.Results),
	)
	return result, nil
}

// dispatchRound runs one batch of capability calls, persists the tool
// messages and returns the extended history.
func (s *Supervisor) dispatchRound(ctx context.Context, sessionID string, calls []core.CapabilityCall, history []core.Message, result *TurnResult) []core.Message {
	s.logger.Info(
		"turn.round.dispatch",
		"session_id", sessionID,
		"round", result.Rounds+1,
		"calls", len(calls),
	)

	results := s.invoker.InvokeAll(ctx, sessionID, calls)
	result.Results = append(result.Results, results...)
	result.Rounds++

	for _, res := range results {
		msg := core.NewToolMessage(res.CallID, res.Name, encodeResult(res))
		if err := s.store.AppendMessage(sessionID, msg); err != nil {
			s.logger.Error("turn.round.persist.error", "session_id", sessionID, "call_id", res.CallID, "error", err.Error())
		}
		history = append(history, msg)
	}
	return history
}

// encodeResult renders a capability result for the oracle's consumption.
// Failures are encoded with their error code so the oracle can route
// around them instead of hallucinating success.
func encodeResult(res core.CapabilityResult) string {
	if res.Success {
		encoded, err := json.Marshal(res.Output)
		if err != nil {
			return fmt.Sprintf("%v", res.Output)
		}
		return string(encoded)
	}
	encoded, _ := json.Marshal(map[string]string{
		"error":  res.ErrorCode,
		"detail": res.ErrorDetail,
	})
	return string(encoded)
}
