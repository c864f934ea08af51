// File: buffer/manager.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Manager supplies a bounded, reusable stream of managed buffers sized to
// a configured allocation quantum. Checkout happens on the owning port's
// producer goroutine; release arrives from arbitrary consumer goroutines,
// so the ready queue is lock-guarded with the lock scoped to queue
// mutation only, never held across buffer content access.

package buffer

import (
	"sync"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/flowport/api"
)

// DefaultQuantum is the allocation size used when a config leaves it zero.
const DefaultQuantum = 64 * 1024

// DefaultCapacity bounds the pool when a config leaves it zero.
const DefaultCapacity = 16

// Config tunes one manager instance.
type Config struct {
	// Quantum is the slab size of every pooled allocation. Requests at or
	// below the quantum are served from the pool; larger requests get an
	// exact-size one-off allocation.
	Quantum int

	// Capacity is the ceiling on pooled allocations. Checkout from an
	// empty pool grows it up to this ceiling; beyond it, checkout blocks
	// until a consumer releases a buffer. This stall is the backpressure
	// mechanism, not an error.
	Capacity int
}

func (c Config) withDefaults() Config {
	if c.Quantum <= 0 {
		c.Quantum = DefaultQuantum
	}
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	return c
}

// Manager owns a FIFO of ready slabs plus the count checked out.
// Invariant: ready + checkedOut == total <= capacity.
type Manager struct {
	mu         sync.Mutex
	cond       *sync.Cond
	ready      *queue.Queue // of *ManagedBuffer
	total      int
	checkedOut int
	closed     bool

	quantum  int
	capacity int
	log      *zap.Logger
}

// NewManager builds a manager. Slabs are allocated lazily on first
// checkout, not up front.
func NewManager(cfg Config, log *zap.Logger) *Manager {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		ready:    queue.New(),
		quantum:  cfg.Quantum,
		capacity: cfg.Capacity,
		log:      log,
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Quantum returns the pooled slab size in bytes.
func (m *Manager) Quantum() int { return m.quantum }

// Empty reports whether no ready buffer remains. Scheduler readiness
// checks poll this; an empty pool is not an error.
func (m *Manager) Empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready.Length() == 0
}

// Checkout pops the front ready buffer, growing the pool by one quantum
// slab when empty and under capacity. At the ceiling it blocks until a
// consumer releases a buffer or the manager closes. The returned buffer
// carries one reference owned by the caller.
func (m *Manager) Checkout() (*ManagedBuffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if m.closed {
			return nil, api.ErrManagerClosed
		}
		if m.ready.Length() > 0 {
			b := m.ready.Remove().(*ManagedBuffer)
			m.checkedOut++
			b.refs.Store(1)
			return b, nil
		}
		if m.total < m.capacity {
			slab, free, err := allocSlab(m.quantum)
			if err != nil {
				return nil, err
			}
			m.total++
			m.checkedOut++
			m.log.Debug("buffer pool grew",
				zap.Int("quantum", m.quantum),
				zap.Int("total", m.total),
				zap.Int("capacity", m.capacity))
			return newManagedBuffer(slab, m, free), nil
		}
		// Pool ceiling reached: stall until a release arrives.
		m.cond.Wait()
	}
}

// CheckoutOversize serves a request exceeding the quantum with an
// exact-size allocation that bypasses the pool: at zero references it is
// freed, not recycled.
func (m *Manager) CheckoutOversize(size int) (*ManagedBuffer, error) {
	if size <= 0 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "oversize checkout of non-positive size").
			WithContext("size", size)
	}
	slab, free, err := allocSlab(size)
	if err != nil {
		return nil, err
	}
	m.log.Debug("oversize allocation bypassed pool",
		zap.Int("size", size), zap.Int("quantum", m.quantum))
	return newManagedBuffer(slab, nil, free), nil
}

// push returns a zero-reference buffer to the ready queue. Called from
// ManagedBuffer.Release on whichever goroutine dropped the last
// reference.
func (m *Manager) push(b *ManagedBuffer) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if b.free != nil {
			b.free(b.slab)
		}
		return
	}
	m.ready.Add(b)
	m.checkedOut--
	m.cond.Signal()
	m.mu.Unlock()
}

// Stats returns a snapshot of pool accounting.
func (m *Manager) Stats() api.ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return api.ManagerStats{
		Ready:      m.ready.Length(),
		CheckedOut: m.checkedOut,
		Total:      m.total,
		Capacity:   m.capacity,
	}
}

// Close frees all ready slabs and wakes blocked checkouts, which then
// fail with ErrManagerClosed. Buffers still checked out are freed when
// their last reference drops.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for m.ready.Length() > 0 {
		b := m.ready.Remove().(*ManagedBuffer)
		if b.free != nil {
			b.free(b.slab)
		}
		m.total--
	}
	m.cond.Broadcast()
	m.mu.Unlock()
}
