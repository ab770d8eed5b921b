// Package logging provides a tiny abstraction over slog so the engine can
// depend on a minimal interface (Logger) while callers plug in any
// structured logger. Components log dotted lowercase event names with
// key/value pairs ("capability.call.start", "turn.round.complete") and
// default to NoOpLogger when constructed with a nil logger.
package logging
