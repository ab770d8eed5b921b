package core

import "time"

// Error codes attached to failed capability results and surfaced errors.
// They form the engine's error taxonomy; the supervisor and pipeline branch
// on codes, never on error strings.
const (
	// ErrCodeValidation marks malformed capability input. Local, never retried.
	ErrCodeValidation = "VALIDATION_ERROR"
	// ErrCodeTimeout marks an upstream that was too slow. Retried per policy.
	ErrCodeTimeout = "TIMEOUT_ERROR"
	// ErrCodeUnknownCapability marks a call to a name absent from the registry.
	// The synthetic failure is fed back to the oracle so it can recover.
	ErrCodeUnknownCapability = "UNKNOWN_CAPABILITY"
	// ErrCodeExecution marks a capability handle that returned an error.
	ErrCodeExecution = "EXECUTION_ERROR"
	// ErrCodePlanMalformed marks an oracle decision that could not be parsed.
	ErrCodePlanMalformed = "ORACLE_PLAN_MALFORMED"
	// ErrCodeQualityShortfall marks a pipeline answer below the quality gate
	// after all retries; it is returned flagged, never silently.
	ErrCodeQualityShortfall = "QUALITY_SHORTFALL"
)

// CapabilityCall is a proposed invocation produced by the reasoning oracle.
// It is ephemeral: consumed by the invoker within the turn that produced it.
type CapabilityCall struct {
	ID        string `json:"id"`                  // correlation id linking call to result
	Name      string `json:"name"`                // registered capability name
	Arguments string `json:"arguments,omitempty"` // JSON-encoded input payload
}

// CapabilityResult is the uniform outcome envelope for one capability call.
// The invoker never raises past its boundary; success and every failure mode
// arrive as a result so the supervisor can reason about partial failure.
type CapabilityResult struct {
	CallID      string        `json:"call_id"`
	Name        string        `json:"name"`
	Output      any           `json:"output,omitempty"`
	Success     bool          `json:"success"`
	Elapsed     time.Duration `json:"elapsed"`
	ErrorCode   string        `json:"error_code,omitempty"`
	ErrorDetail string        `json:"error_detail,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Descriptor is the oracle-facing description of a registered capability.
// Parameters holds a minimal JSON-Schema object for the input payload.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
