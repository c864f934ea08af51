// File: port/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Registry issues weak, non-owning handles to input ports. The
// read-before-write link stores a handle, never a pointer: a torn-down
// target simply stops resolving and the output port treats donation as
// unavailable, so a dangling link can never be dereferenced.

package port

import (
	"sync"

	"github.com/google/uuid"
)

// Handle identifies a registered input port. The zero Handle resolves to
// nothing.
type Handle = uuid.UUID

// Registry maps handles to live input ports.
type Registry struct {
	mu     sync.RWMutex
	inputs map[Handle]*InputPort
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{inputs: make(map[Handle]*InputPort)}
}

// Add registers an input port and returns its handle.
func (r *Registry) Add(p *InputPort) Handle {
	h := uuid.New()
	r.mu.Lock()
	r.inputs[h] = p
	r.mu.Unlock()
	return h
}

// Remove deregisters a handle. Outstanding links to it resolve to
// nothing from then on.
func (r *Registry) Remove(h Handle) {
	r.mu.Lock()
	delete(r.inputs, h)
	r.mu.Unlock()
}

// Lookup resolves a handle to its input port.
func (r *Registry) Lookup(h Handle) (*InputPort, bool) {
	r.mu.RLock()
	p, ok := r.inputs[h]
	r.mu.RUnlock()
	return p, ok
}
