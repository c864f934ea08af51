// File: buffer/token.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TokenManager is a Manager specialization used purely as a credit pool:
// each unit is one permit to have an asynchronous message in flight.
// Acquire consumes a credit when a message is posted; the credit travels
// with the message and returns to the pool when the consumer pops it.
// At the capacity ceiling Acquire blocks the producer, which is the
// message backpressure effect.

package buffer

import (
	"go.uber.org/zap"

	"github.com/momentics/flowport/api"
)

// tokenSlabSize keeps token slabs minimal; tokens carry no payload.
const tokenSlabSize = 1

// TokenManager bounds the number of outstanding asynchronous messages.
type TokenManager struct {
	m *Manager
}

// NewTokenManager builds a credit pool with the given capacity.
func NewTokenManager(capacity int, log *zap.Logger) *TokenManager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &TokenManager{
		m: NewManager(Config{Quantum: tokenSlabSize, Capacity: capacity}, log),
	}
}

// Acquire checks out one credit, blocking at the ceiling until a consumer
// returns one. The credit is released back by calling Release on the
// returned buffer.
func (t *TokenManager) Acquire() (*ManagedBuffer, error) {
	return t.m.Checkout()
}

// Empty reports whether no ready credit remains. Exposed so schedulers
// can avoid dispatching a worker that would immediately stall.
func (t *TokenManager) Empty() bool { return t.m.Empty() }

// Stats returns a snapshot of credit accounting.
func (t *TokenManager) Stats() api.ManagerStats { return t.m.Stats() }

// Close frees the credit pool and wakes blocked producers.
func (t *TokenManager) Close() { t.m.Close() }
