// Package capability implements the function calling subsystem that lets
// the engine invoke structured capabilities (knowledge search, file
// analysis, hardware control) with schema validated arguments, consistent
// error handling and per-capability execution policies.
//
// The package has two halves: Registry holds the immutable capability set
// advertised to the oracle, and Invoker executes proposed calls under the
// registered Policy (timeout, retries) with panic recovery and an audit
// write per completed invocation. Built-in capabilities live in the
// knowledge, gcode, vision and printer subpackages.
package capability
