// File: buffer/chunk.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Chunk is the unit of stream data exchanged between ports: a sliceable
// view over a contiguous byte region, tagged with an element size and
// sharing the reference count of its backing managed allocation.
// All slicing is O(1) and never copies.

package buffer

import "github.com/momentics/flowport/api"

// Chunk is a view over a byte range of one allocation. The zero Chunk is
// empty and valid. Chunks are values; copies share the same backing
// allocation and the same reference count. Holders that keep a chunk
// beyond the scope they received it in must Retain it.
type Chunk struct {
	data     []byte
	off      int
	elemSize int
	managed  *ManagedBuffer
}

// NewChunk wraps externally owned memory in a chunk. The resulting chunk
// has no managed allocation: Retain and Release are no-ops and the memory
// is never returned to any pool.
func NewChunk(data []byte, elemSize int) Chunk {
	return Chunk{data: data, elemSize: elemSize}
}

// Bytes returns the chunk's current window. The window is writable by the
// producing side until the chunk has been forwarded.
func (c Chunk) Bytes() []byte { return c.data }

// Length returns the window length in bytes.
func (c Chunk) Length() int { return len(c.data) }

// Elements returns the window length in whole elements.
func (c Chunk) Elements() int {
	if c.elemSize <= 0 {
		return 0
	}
	return len(c.data) / c.elemSize
}

// ElemSize returns the element width in bytes, zero when untyped.
func (c Chunk) ElemSize() int { return c.elemSize }

// Offset returns the window's start offset within the backing allocation.
func (c Chunk) Offset() int { return c.off }

// Managed returns the backing managed allocation, nil for external memory.
func (c Chunk) Managed() *ManagedBuffer { return c.managed }

// Empty reports whether the window holds no bytes.
func (c Chunk) Empty() bool { return len(c.data) == 0 }

// Slice returns the [from, to) byte sub-window. The result shares the
// backing allocation without adjusting its reference count.
func (c Chunk) Slice(from, to int) Chunk {
	if from < 0 || to > len(c.data) || from > to {
		panic(api.ContractViolation("chunk slice [%d:%d) out of window of %d bytes", from, to, len(c.data)))
	}
	return Chunk{
		data:     c.data[from:to],
		off:      c.off + from,
		elemSize: c.elemSize,
		managed:  c.managed,
	}
}

// PopFront drops n bytes from the front of the window.
func (c Chunk) PopFront(n int) Chunk {
	return c.Slice(n, len(c.data))
}

// WithElemSize returns the same window retyped to a new element width.
func (c Chunk) WithElemSize(elemSize int) Chunk {
	c.elemSize = elemSize
	return c
}

// Retain adds one reference to the backing allocation. No-op for
// external memory.
func (c Chunk) Retain() {
	if c.managed != nil {
		c.managed.Retain()
	}
}

// Release drops one reference to the backing allocation. At zero the
// allocation returns to its owning manager. No-op for external memory.
func (c Chunk) Release() {
	if c.managed != nil {
		c.managed.Release()
	}
}

// SameAllocation reports whether two chunks are views over the same
// managed allocation.
func (c Chunk) SameAllocation(other Chunk) bool {
	return c.managed != nil && c.managed == other.managed
}

// Overlaps reports whether the two windows share bytes of the same
// allocation. Used to catch double-forwarding of produced bytes.
func (c Chunk) Overlaps(other Chunk) bool {
	if !c.SameAllocation(other) || c.Empty() || other.Empty() {
		return false
	}
	return c.off < other.off+other.Length() && other.off < c.off+c.Length()
}
