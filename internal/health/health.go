// Package health aggregates named subsystem probes for the health endpoint.
package health

import (
	"context"
	"sync"
	"time"
)

// checkTimeout caps any single probe so a hung dependency cannot stall
// the whole endpoint.
const checkTimeout = 2 * time.Second

// Status is the outcome of one subsystem probe.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Probe checks one subsystem. A nil error means healthy; the error text
// becomes the status detail otherwise.
type Probe func(ctx context.Context) error

// Registry holds named probes and runs them on demand.
type Registry struct {
	mu     sync.RWMutex
	names  []string
	probes map[string]Probe
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{probes: make(map[string]Probe)}
}

// Register adds a probe under a stable name. Re-registering a name
// replaces the previous probe.
func (r *Registry) Register(name string, p Probe) {
	r.mu.Lock()
	if _, exists := r.probes[name]; !exists {
		r.names = append(r.names, name)
	}
	r.probes[name] = p
	r.mu.Unlock()
}

// Check runs every probe in registration order. The aggregate is healthy
// only when all probes pass.
func (r *Registry) Check(ctx context.Context) (bool, []Status) {
	r.mu.RLock()
	names := make([]string, len(r.names))
	copy(names, r.names)
	probes := make(map[string]Probe, len(r.probes))
	for k, v := range r.probes {
		probes[k] = v
	}
	r.mu.RUnlock()

	healthy := true
	out := make([]Status, 0, len(names))
	for _, name := range names {
		st := Status{Name: name, Healthy: true}

		pctx, cancel := context.WithTimeout(ctx, checkTimeout)
		if err := probes[name](pctx); err != nil {
			st.Healthy = false
			st.Detail = err.Error()
			healthy = false
		}
		cancel()

		out = append(out, st)
	}
	return healthy, out
}
