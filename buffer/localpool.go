// File: buffer/localpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// LocalPool is a small per-port cache of recently used chunks. It lives
// entirely on the owning port's producer goroutine, so it takes no locks;
// hitting it avoids manager-lock contention on the common path.

package buffer

// LocalPool caches size-matched chunks for one port. Not safe for
// concurrent use; ownership is the producer goroutine's alone.
type LocalPool struct {
	chunks []Chunk
	depth  int
}

// DefaultLocalDepth bounds the cache when a config leaves it zero.
const DefaultLocalDepth = 4

// NewLocalPool builds a cache holding at most depth chunks.
func NewLocalPool(depth int) *LocalPool {
	if depth <= 0 {
		depth = DefaultLocalDepth
	}
	return &LocalPool{depth: depth}
}

// Get removes and returns the first cached chunk with at least minBytes
// capacity whose allocation is exclusively held. Shared chunks stay
// cached until their other holders release them.
func (p *LocalPool) Get(minBytes int) (Chunk, bool) {
	for i, c := range p.chunks {
		if c.Length() < minBytes {
			continue
		}
		if mb := c.Managed(); mb != nil && mb.RefCount() != 1 {
			continue
		}
		p.chunks = append(p.chunks[:i], p.chunks[i+1:]...)
		return c, true
	}
	return Chunk{}, false
}

// Store caches a chunk the port no longer needs. The chunk's reference
// transfers to the pool; when full, the oldest entry is released to make
// room.
func (p *LocalPool) Store(c Chunk) {
	if c.Empty() {
		c.Release()
		return
	}
	if len(p.chunks) >= p.depth {
		old := p.chunks[0]
		p.chunks = p.chunks[1:]
		old.Release()
	}
	p.chunks = append(p.chunks, c)
}

// Len returns the number of cached chunks.
func (p *LocalPool) Len() int { return len(p.chunks) }

// Drain releases every cached chunk. Called on port teardown.
func (p *LocalPool) Drain() {
	for _, c := range p.chunks {
		c.Release()
	}
	p.chunks = nil
}
