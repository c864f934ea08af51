// File: internal/concurrency/queue.go
// Package concurrency provides the bounded lock-free queue used for
// cross-goroutine port delivery.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// MPMC bounded queue using per-cell sequence numbers, based on the
// pattern by Dmitry Vyukov. Enqueue happens on the producing port's
// goroutine, dequeue on the consuming port's; sequence numbers keep the
// handoff FIFO per producer without a lock on either side.

package concurrency

import "sync/atomic"

const cacheLinePad = 64

type cell[T any] struct {
	sequence atomic.Uint64
	data     T
}

// Queue is a bounded MPMC queue; capacity is rounded up to a power of two.
type Queue[T any] struct {
	head  uint64
	_     [cacheLinePad]byte
	tail  uint64
	_     [cacheLinePad]byte
	mask  uint64
	cells []cell[T]
}

// NewQueue creates a queue with at least the requested capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 2 {
		capacity = 2
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	q := &Queue[T]{
		mask:  uint64(size - 1),
		cells: make([]cell[T], size),
	}
	for i := range q.cells {
		q.cells[i].sequence.Store(uint64(i))
	}
	return q
}

// Enqueue adds val; returns false when full.
func (q *Queue[T]) Enqueue(val T) bool {
	for {
		tail := atomic.LoadUint64(&q.tail)
		index := tail & q.mask
		c := &q.cells[index]
		seq := c.sequence.Load()
		dif := int64(seq) - int64(tail)

		if dif == 0 {
			if atomic.CompareAndSwapUint64(&q.tail, tail, tail+1) {
				c.data = val
				c.sequence.Store(tail + 1)
				return true
			}
		} else if dif < 0 {
			return false // full
		}
		// tail moved, retry
	}
}

// Dequeue removes and returns an item; ok false when empty.
func (q *Queue[T]) Dequeue() (item T, ok bool) {
	for {
		head := atomic.LoadUint64(&q.head)
		index := head & q.mask
		c := &q.cells[index]
		seq := c.sequence.Load()
		dif := int64(seq) - int64(head+1)

		if dif == 0 {
			if atomic.CompareAndSwapUint64(&q.head, head, head+1) {
				item = c.data
				var zero T
				c.data = zero
				c.sequence.Store(head + q.mask + 1)
				return item, true
			}
		} else if dif < 0 {
			var zero T
			return zero, false // empty
		}
		// head moved, retry
	}
}

// Len returns the approximate number of queued items.
func (q *Queue[T]) Len() int {
	tail := atomic.LoadUint64(&q.tail)
	head := atomic.LoadUint64(&q.head)
	if tail < head {
		return 0
	}
	return int(tail - head)
}
