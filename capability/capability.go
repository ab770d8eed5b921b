package capability

import (
	"context"
	"errors"
	"fmt"

	"github.com/printmind/printmind/core"
	"github.com/printmind/printmind/internal/util"
)

// Capability is a named, schema-described operation the oracle may request.
//
// Implementations should:
//   - Use descriptive snake_case names
//   - Define a JSON schema for their parameters
//   - Be safe for concurrent use; the invoker may run calls in parallel
type Capability interface {
	// Name returns the unique identifier for this capability.
	Name() string

	// Description returns a human-readable description provided to the
	// oracle so it knows when to use the capability.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the capability with already-validated arguments. The
	// context carries the invoker's per-call deadline.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ValidationError reports an argument that failed schema validation.
type ValidationError = util.ValidationError

// ErrTransient marks a failure worth retrying under the capability's
// policy. Capabilities wrap I/O errors with it when a fresh attempt can
// plausibly succeed:
//
//	return nil, fmt.Errorf("printer unreachable: %w", capability.ErrTransient)
//
// Failures not marked transient (and not timeouts) are treated as
// deterministic and reported after the first attempt.
var ErrTransient = errors.New("transient capability failure")

// Error represents a failure during capability execution.
type Error struct {
	Capability string `json:"capability"`
	Message    string `json:"message"`
	Code       string `json:"code"`
	Details    any    `json:"details,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("capability error [%s] in %s: %s", e.Code, e.Capability, e.Message)
	}
	return fmt.Sprintf("capability error in %s: %s", e.Capability, e.Message)
}

// Unwrap exposes the underlying error so sentinel checks (ErrTransient,
// context errors) survive the normalization in Func.Call.
func (e *Error) Unwrap() error { return e.cause }

// NewError creates an Error with the specified details.
func NewError(capability, message, code string) *Error {
	return &Error{
		Capability: capability,
		Message:    message,
		Code:       code,
	}
}

// Func is a generic adapter that exposes a plain Go function as a
// Capability. It validates supplied arguments against the declared schema
// before execution and normalizes failures to *Error with consistent codes:
// VALIDATION_ERROR for schema mismatch, EXECUTION_ERROR for other errors,
// custom codes preserved when the function returns *Error directly.
//
// A Func has no mutable state after construction and is safe for
// concurrent use.
type Func struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args map[string]any) (any, error)
}

// NewFunc constructs a Func from an explicit schema and function.
func NewFunc(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *Func {
	return &Func{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFuncFromStruct derives the parameter schema from a struct using
// reflection, a convenience for simple argument containers.
func NewFuncFromStruct(
	name, description string,
	structType any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *Func {
	return NewFunc(name, description, util.SchemaFromStruct(structType), fn)
}

// Name returns the unique capability name used in call routing.
func (f *Func) Name() string { return f.name }

// Description returns the description exposed to the oracle.
func (f *Func) Description() string { return f.description }

// Parameters returns the JSON schema describing expected arguments.
func (f *Func) Parameters() map[string]any { return f.parameters }

// Call validates args against the declared schema, then invokes the
// underlying function. Failures are wrapped (or passed through) as *Error.
func (f *Func) Call(ctx context.Context, args map[string]any) (any, error) {
	if err := util.ValidateArgs(args, f.parameters); err != nil {
		return nil, &Error{
			Capability: f.name,
			Message:    err.Error(),
			Code:       core.ErrCodeValidation,
		}
	}

	result, err := f.fn(ctx, args)
	if err != nil {
		var capErr *Error
		if errors.As(err, &capErr) {
			return nil, capErr
		}
		return nil, &Error{
			Capability: f.name,
			Message:    err.Error(),
			Code:       core.ErrCodeExecution,
			cause:      err,
		}
	}

	return result, nil
}
