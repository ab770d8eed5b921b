package oracle

import (
	"context"
	"strings"

	"github.com/printmind/printmind/core"
)

// Request is the full input for one oracle decision. The oracle retains no
// state between calls; any context it needs must be present here.
type Request struct {
	// History is the session's conversation so far, oldest first.
	History []core.Message
	// Capabilities describes what the oracle may ask the engine to invoke.
	Capabilities []core.Descriptor
	// Directive is extra guidance for this call only (e.g. the forced
	// consolidation instruction "answer with what you have").
	Directive string
	// FinalOnly asks for a textual answer; proposed capability calls will
	// not be honored by the caller.
	FinalOnly bool
}

// DecisionKind discriminates the Decision variant.
type DecisionKind int

const (
	// DecisionMalformed means the oracle returned neither an answer nor
	// any capability call. Callers treat it as a failed plan.
	DecisionMalformed DecisionKind = iota
	// DecisionFinal means the oracle produced a final textual answer.
	DecisionFinal
	// DecisionCalls means the oracle proposed one or more capability calls.
	DecisionCalls
)

// Decision is the tagged-variant result of one oracle call: exactly one of
// a final answer or an ordered list of capability call proposals. A calls
// decision wins over accompanying text, matching provider tool-use
// semantics where text alongside tool calls is interstitial reasoning.
type Decision struct {
	FinalAnswer string
	Calls       []core.CapabilityCall
	// TokensUsed carries provider-reported usage when available.
	TokensUsed *int
}

// Kind returns the variant of this decision.
func (d Decision) Kind() DecisionKind {
	switch {
	case len(d.Calls) > 0:
		return DecisionCalls
	case strings.TrimSpace(d.FinalAnswer) != "":
		return DecisionFinal
	default:
		return DecisionMalformed
	}
}

// Oracle is the external reasoning service consumed by the supervisor and
// pipeline. Decide must complete or fail within the deadline carried by ctx.
type Oracle interface {
	// Decide returns the oracle's next-step decision for the request.
	Decide(ctx context.Context, req Request) (Decision, error)

	// Complete runs a single free-form generation with no capability
	// surface, used by the pipeline stages (decompose, respond, simplify,
	// verify). system may be empty.
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// NewDecision assembles a Decision from provider output, assigning
// correlation ids to calls that arrived without one.
func NewDecision(text string, calls []core.CapabilityCall, tokensUsed *int) Decision {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = core.NewID()
		}
	}
	return Decision{FinalAnswer: text, Calls: calls, TokensUsed: tokensUsed}
}
