package capability

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/printmind/printmind/core"
)

// Policy bounds the execution of a single capability's invocations.
type Policy struct {
	// Timeout is the per-attempt deadline. Zero means DefaultTimeout.
	Timeout time.Duration
	// MaxRetries is the number of additional attempts after a transient
	// failure or timeout. Validation and unknown-capability failures are
	// never retried.
	MaxRetries int
	// RetryBackoff is the fixed delay between attempts.
	RetryBackoff time.Duration
}

// DefaultPolicy is applied when a capability is registered without one.
var DefaultPolicy = Policy{
	Timeout:      30 * time.Second,
	MaxRetries:   1,
	RetryBackoff: 500 * time.Millisecond,
}

type entry struct {
	capability Capability
	policy     Policy
}

// Registry holds the capability set advertised to the oracle. Registration
// happens during engine construction; Freeze makes the set immutable so
// concurrent turns can read it without locking discipline on the caller's
// side. Names are unique; a duplicate registration is an error.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	frozen  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a capability under its name with the default policy.
func (r *Registry) Register(c Capability) error {
	return r.RegisterWithPolicy(c, DefaultPolicy)
}

// RegisterWithPolicy adds a capability with an explicit execution policy.
// Zero policy fields fall back to the defaults, except MaxRetries where
// zero is meaningful and kept.
func (r *Registry) RegisterWithPolicy(c Capability, p Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("registry is frozen, cannot register %q", c.Name())
	}
	if c.Name() == "" {
		return fmt.Errorf("capability has empty name")
	}
	if _, exists := r.entries[c.Name()]; exists {
		return fmt.Errorf("capability %q already registered", c.Name())
	}

	if p.Timeout <= 0 {
		p.Timeout = DefaultPolicy.Timeout
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.RetryBackoff <= 0 {
		p.RetryBackoff = DefaultPolicy.RetryBackoff
	}

	r.entries[c.Name()] = entry{capability: c, policy: p}
	return nil
}

// Freeze seals the registry; further Register calls fail.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Lookup returns the capability and its policy, or false when unknown.
func (r *Registry) Lookup(name string) (Capability, Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.capability, e.policy, ok
}

// Descriptors returns the advertised capability descriptors sorted by name,
// so the oracle sees a stable surface across calls.
func (r *Registry) Descriptors() []core.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]core.Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		descriptors = append(descriptors, core.Descriptor{
			Name:        e.capability.Name(),
			Description: e.capability.Description(),
			Parameters:  e.capability.Parameters(),
		})
	}
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Name < descriptors[j].Name })
	return descriptors
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
