package sidecar

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDuplicate is returned when a service already has a recorded process.
	ErrDuplicate = errors.New("sidecar already registered")
	// ErrClosed is returned when adding to a registry that has been torn down.
	ErrClosed = errors.New("sidecar registry closed")
)

// Registry records the sidecars owned by the application. It is safe for
// concurrent use by the startup and shutdown paths.
type Registry struct {
	mu     sync.Mutex
	procs  map[string]*Process
	order  []string
	closed bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[string]*Process)}
}

// Add records p under its service name. If the registry has already been
// torn down, p is terminated immediately so it cannot outlive the app.
func (r *Registry) Add(p *Process) error {
	if p == nil {
		return errors.New("sidecar process is nil")
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		p.Terminate()
		return fmt.Errorf("add %s: %w", p.Name(), ErrClosed)
	}
	if _, exists := r.procs[p.Name()]; exists {
		r.mu.Unlock()
		return fmt.Errorf("add %s: %w", p.Name(), ErrDuplicate)
	}
	r.procs[p.Name()] = p
	r.order = append(r.order, p.Name())
	r.mu.Unlock()
	return nil
}

// Get returns the process recorded for name.
func (r *Registry) Get(name string) (*Process, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.procs[name]
	return p, ok
}

// Len returns the number of recorded processes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// Processes returns recorded processes in spawn order.
func (r *Registry) Processes() []*Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Process, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.procs[name])
	}
	return out
}

// TerminateAll kills and reaps every recorded process in reverse spawn
// order, so the backend goes before the inference daemon it talks to. Only
// the first call does any work; it returns the processes it terminated.
func (r *Registry) TerminateAll() []*Process {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	procs := make([]*Process, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		procs = append(procs, r.procs[r.order[i]])
	}
	r.mu.Unlock()

	for _, p := range procs {
		p.Terminate()
	}
	return procs
}
