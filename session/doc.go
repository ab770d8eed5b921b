// Package session provides persistence for sessions, their append-only
// conversation logs and the capability invocation audit trail. InMemory is
// the default store for tests and ephemeral use; the sqlite subpackage
// provides the durable implementation behind the same core.SessionStore
// interface.
package session
