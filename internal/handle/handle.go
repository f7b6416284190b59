// Package handle is the process-wide registry of simulation cores.
//
// A host program (driver, foreign binding) manages several independent
// cores at once by opaque integer handles. This registry is the only
// process-wide mutable state in the module: every capability table,
// clock, and component lives inside the Core the handle points at.
//
// The registry also carries the auto-reset contract: Run on a dirty
// core first resets it to its last checkpoint date, so a caller can
// never silently continue from an inconsistent intermediate state. The
// engine layer itself does not enforce this; it is caller policy, and
// this package is the caller the contract was written for.
package handle

import (
	"log/slog"
	"sync"

	"github.com/roach88/tellus/internal/engine"
)

// Registry maps integer handles to live cores.
//
// Thread-safety covers the registry itself (create/lookup/destroy from
// any goroutine). Driving one core from two call sites at once remains
// illegal, same as everywhere else in the module.
type Registry struct {
	mu    sync.Mutex
	next  int
	cores map[int]*engine.Core
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{next: 1, cores: make(map[int]*engine.Core)}
}

// defaultRegistry serves the package-level functions; a host that
// wants isolation can carry its own Registry instead.
var defaultRegistry = NewRegistry()

// Create registers a core and returns its handle.
func (r *Registry) Create(c *engine.Core) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.next
	r.next++
	r.cores[h] = c
	slog.Debug("core handle created", "handle", h, "run", c.Name())
	return h
}

// Get returns the core for a handle. A handle that was never created,
// or whose core was destroyed, fails with INVALID_HANDLE.
func (r *Registry) Get(h int) (*engine.Core, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.cores[h]
	if !ok {
		return nil, engine.NewInvalidHandleError(h)
	}
	return c, nil
}

// Active reports whether a handle currently points at a live core.
func (r *Registry) Active(h int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cores[h]
	return ok
}

// Destroy shuts the core down and removes the handle. Destroying an
// unknown handle fails with INVALID_HANDLE; the shutdown error, if
// any, is returned after the handle is already gone.
func (r *Registry) Destroy(h int) error {
	r.mu.Lock()
	c, ok := r.cores[h]
	if ok {
		delete(r.cores, h)
	}
	r.mu.Unlock()

	if !ok {
		return engine.NewInvalidHandleError(h)
	}
	slog.Debug("core handle destroyed", "handle", h, "run", c.Name())
	return c.ShutDownCore()
}

// Len returns the number of live cores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cores)
}

// Run advances the core behind h to date t, auto-resetting first when
// the core is dirty. The reset target is the core's last reset date,
// the newest checkpoint the caller has anchored.
func (r *Registry) Run(h int, t float64) error {
	c, err := r.Get(h)
	if err != nil {
		return err
	}

	if c.Dirty() {
		target := c.LastResetDate()
		slog.Info("auto-resetting dirty core before run", "handle", h, "date", target)
		if err := c.Reset(target); err != nil {
			return err
		}
	}
	return c.Run(t)
}

// Create registers a core in the default registry.
func Create(c *engine.Core) int { return defaultRegistry.Create(c) }

// Get looks a handle up in the default registry.
func Get(h int) (*engine.Core, error) { return defaultRegistry.Get(h) }

// Active reports liveness in the default registry.
func Active(h int) bool { return defaultRegistry.Active(h) }

// Destroy removes a handle from the default registry.
func Destroy(h int) error { return defaultRegistry.Destroy(h) }

// Run drives a handle in the default registry with auto-reset.
func Run(h int, t float64) error { return defaultRegistry.Run(h, t) }
