// Package core defines the shared data model of the printmind orchestration
// engine: conversation messages, sessions, capability calls and results, the
// capability descriptor surface shown to the reasoning oracle, and the
// SessionStore persistence contract. Higher layers (capability, supervisor,
// pipeline) depend only on these types, keeping the orchestration core free
// of provider and storage concerns.
package core
