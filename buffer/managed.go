// File: buffer/managed.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ManagedBuffer is one pool-owned allocation with an atomic reference
// count. At zero references the allocation is pushed back onto its owning
// manager's ready queue rather than freed; the manager owns the backing
// memory for the life of the connection. The count must be atomically
// inspectable because producer and consumer sides retain and release from
// different goroutines, and buffer donation depends on observing an exact
// count of one.

package buffer

import "sync/atomic"

// ManagedBuffer backs one or more chunks over a single slab.
type ManagedBuffer struct {
	slab  []byte
	refs  atomic.Int32
	owner *Manager
	free  func([]byte)
}

func newManagedBuffer(slab []byte, owner *Manager, free func([]byte)) *ManagedBuffer {
	b := &ManagedBuffer{slab: slab, owner: owner, free: free}
	b.refs.Store(1)
	return b
}

// Bytes returns the full backing slab.
func (b *ManagedBuffer) Bytes() []byte { return b.slab }

// Size returns the slab size in bytes.
func (b *ManagedBuffer) Size() int { return len(b.slab) }

// Chunk returns a full-slab view with the given element width.
func (b *ManagedBuffer) Chunk(elemSize int) Chunk {
	return Chunk{data: b.slab, elemSize: elemSize, managed: b}
}

// Retain increments the reference count. Must be called before handing a
// chunk over this allocation to another holder.
func (b *ManagedBuffer) Retain() {
	if b == nil {
		return
	}
	b.refs.Add(1)
}

// Release decrements the reference count. At zero the allocation returns
// to its owning manager, or is freed when it has none (one-off oversize
// allocations). Every holder must call Release exactly once.
func (b *ManagedBuffer) Release() {
	if b == nil {
		return
	}
	n := b.refs.Add(-1)
	switch {
	case n == 0:
		if b.owner != nil {
			b.owner.push(b)
		} else if b.free != nil {
			b.free(b.slab)
		}
	case n < 0:
		panic("flowport: managed buffer released below zero references")
	}
}

// RefCount returns the current reference count. The donation precondition
// reads this: a count of exactly one means the observing holder is the
// sole owner and may transfer the allocation without copying.
func (b *ManagedBuffer) RefCount() int32 {
	if b == nil {
		return 0
	}
	return b.refs.Load()
}
