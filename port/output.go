// File: port/output.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// OutputPort orchestrates the output side of one connection: it exposes
// the current writable buffer, commits production, forwards chunks,
// labels and messages to subscribers, accounts message credit and
// implements read-before-write buffer donation.
//
// All producer-side state is single-writer: the external scheduler
// guarantees at most one goroutine runs the owning worker's processing
// step at a time, so no lock guards it. Cross-goroutine interaction is
// confined to the managers' return queues and the subscribers' delivery
// queues.

package port

import (
	"sync/atomic"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/flowport/api"
	"github.com/momentics/flowport/buffer"
)

// OutputConfig describes one output port. Identity fields are immutable
// after construction except the alias.
type OutputConfig struct {
	Index  int
	Name   string
	Alias  string
	DType  api.DType
	Domain string

	// Signal marks an event-signaling port: it carries no stream, its
	// buffer is always empty and its element count always zero.
	Signal bool

	// LocalDepth bounds the port's local chunk cache.
	LocalDepth int
}

// OutputPort is the producer endpoint of a connection. Not safe for
// concurrent producers; the scheduler enforces single-writer access per
// cycle. Counter reads and the activity flag are safe from any
// goroutine.
type OutputPort struct {
	index    int
	name     string
	alias    string
	dtype    api.DType
	domain   string
	isSignal bool

	// per-cycle state, producer goroutine only
	buf     buffer.Chunk
	pending int
	reserve int

	postedLabels  []api.Label
	postedBuffers *queue.Queue // of buffer.Chunk awaiting delivery

	totalElements atomic.Uint64
	totalBuffers  atomic.Uint64
	totalLabels   atomic.Uint64
	totalMessages atomic.Uint64
	workEvents    atomic.Uint64

	mgr    *buffer.Manager
	local  *buffer.LocalPool
	tokens *buffer.TokenManager

	subs []*InputPort

	reg *Registry
	rbw Handle

	log *zap.Logger
}

// NewOutputPort builds an output port over its exclusively owned buffer
// and token managers. Nil managers get defaults; reg may be nil when no
// read-before-write link will ever be configured. The working buffer is
// armed by the first Flush, which the scheduler issues before the first
// processing step.
func NewOutputPort(cfg OutputConfig, mgr *buffer.Manager, tokens *buffer.TokenManager, reg *Registry, log *zap.Logger) *OutputPort {
	if log == nil {
		log = zap.NewNop()
	}
	if mgr == nil {
		mgr = buffer.NewManager(buffer.Config{}, log)
	}
	if tokens == nil {
		tokens = buffer.NewTokenManager(0, log)
	}
	if !cfg.Signal && cfg.DType.Size <= 0 {
		cfg.DType = api.DType{Name: "byte", Size: 1}
	}
	return &OutputPort{
		index:         cfg.Index,
		name:          cfg.Name,
		alias:         cfg.Alias,
		dtype:         cfg.DType,
		domain:        cfg.Domain,
		isSignal:      cfg.Signal,
		postedBuffers: queue.New(),
		mgr:           mgr,
		local:         buffer.NewLocalPool(cfg.LocalDepth),
		tokens:        tokens,
		reg:           reg,
		log:           log,
	}
}

// Index returns the port's index number, -1 when it has none.
func (o *OutputPort) Index() int { return o.index }

// Name returns the port's name identifier.
func (o *OutputPort) Name() string { return o.name }

// Alias returns the displayable alias, falling back to the name.
func (o *OutputPort) Alias() string {
	if o.alias == "" {
		return o.name
	}
	return o.alias
}

// SetAlias sets the displayable alias.
func (o *OutputPort) SetAlias(alias string) { o.alias = alias }

// DType returns the element type descriptor.
func (o *OutputPort) DType() api.DType { return o.dtype }

// Domain returns the buffer domain tag negotiated for this port.
func (o *OutputPort) Domain() string { return o.domain }

// IsSignal reports whether the port exists purely for event signaling.
func (o *OutputPort) IsSignal() bool { return o.isSignal }

// Subscribe attaches a downstream input port. Wiring happens before
// execution; the port never owns its subscribers.
func (o *OutputPort) Subscribe(sub *InputPort) {
	o.subs = append(o.subs, sub)
}

// SetReadBeforeWrite links an upstream input port by registry handle.
// When the link's preconditions hold at acquisition time the input's
// buffer is donated instead of copied. The zero handle clears the link.
func (o *OutputPort) SetReadBeforeWrite(h Handle) { o.rbw = h }

// SetReserve records the minimum element count the port should keep
// available. Advisory: the scheduler's readiness policy reads it, and
// refill honors it, but GetBuffer still returns exactly what was asked.
func (o *OutputPort) SetReserve(numElements int) {
	if numElements < 0 {
		panic(api.ContractViolation("negative reserve on port %q", o.name))
	}
	o.reserve = numElements
}

// Reserve returns the advisory reserve requirement.
func (o *OutputPort) Reserve() int { return o.reserve }

// Buffer returns the writable region of the working buffer. Always empty
// for signal ports.
func (o *OutputPort) Buffer() buffer.Chunk {
	if o.isSignal {
		return buffer.Chunk{}
	}
	return o.buf.PopFront(o.pending * o.dtype.Size)
}

// Elements returns the writable element count of the working buffer.
func (o *OutputPort) Elements() int {
	if o.isSignal {
		return 0
	}
	return o.buf.Elements() - o.pending
}

// Produce commits numElements as sent to subscribers. The elements stay
// pending until the cycle close-out flushes them as one buffer event.
// Producing more than Elements(), or producing bytes already posted with
// PostBuffer this cycle, is a caller defect.
func (o *OutputPort) Produce(numElements int) {
	if numElements < 0 || numElements > o.Elements() {
		panic(api.ContractViolation("produce of %d elements with %d available on port %q",
			numElements, o.Elements(), o.name))
	}
	if numElements > 0 && o.postedBuffers.Length() > 0 {
		region := o.buf.Slice(o.pending*o.dtype.Size, (o.pending+numElements)*o.dtype.Size)
		for i := 0; i < o.postedBuffers.Length(); i++ {
			if o.postedBuffers.Get(i).(buffer.Chunk).Overlaps(region) {
				panic(api.ContractViolation("produce of elements already posted this cycle on port %q", o.name))
			}
		}
	}
	o.pending += numElements
	o.totalElements.Add(uint64(numElements))
	o.workEvents.Add(1)
}

// PopElements removes numElements from the front of the working buffer
// without forwarding them and without touching the cumulative counters.
// The reclaimed region is returned retained so the caller can use the
// port-owned memory for non-stream purposes, typically a message
// payload. Call before Produce within a cycle.
func (o *OutputPort) PopElements(numElements int) buffer.Chunk {
	if o.isSignal {
		panic(api.ContractViolation("pop elements on signal port %q", o.name))
	}
	if o.pending > 0 {
		panic(api.ContractViolation("pop elements after produce in the same cycle on port %q", o.name))
	}
	if numElements < 0 || numElements > o.Elements() {
		panic(api.ContractViolation("pop of %d elements with %d available on port %q",
			numElements, o.Elements(), o.name))
	}
	popped := o.buf.Slice(0, numElements*o.dtype.Size)
	popped.Retain()
	o.buf = o.buf.PopFront(numElements * o.dtype.Size)
	o.workEvents.Add(1)
	return popped
}

// PopBuffer removes numBytes from the front of the working buffer.
//
// Deprecated: use PopElements.
func (o *OutputPort) PopBuffer(numBytes int) buffer.Chunk {
	if o.isSignal {
		panic(api.ContractViolation("pop buffer on signal port %q", o.name))
	}
	return o.PopElements(numBytes / o.dtype.Size)
}

// GetBuffer returns a chunk with capacity for at least numElements.
// Resolution order: read-before-write donation when the link's
// preconditions hold, then the local chunk cache, then a quantum slab
// from the manager, then an exact-size one-off for requests beyond the
// quantum. An empty pool is never an error; only the allocator failing
// is.
func (o *OutputPort) GetBuffer(numElements int) (buffer.Chunk, error) {
	if o.isSignal {
		panic(api.ContractViolation("get buffer on signal port %q", o.name))
	}
	if numElements < 0 {
		panic(api.ContractViolation("get buffer of negative size on port %q", o.name))
	}
	return o.acquire(numElements)
}

func (o *OutputPort) acquire(numElements int) (buffer.Chunk, error) {
	minBytes := numElements * o.dtype.Size

	if o.rbw != (Handle{}) && o.reg != nil {
		if donor, ok := o.reg.Lookup(o.rbw); ok {
			if c, ok := donor.DonateBuffer(minBytes, o.dtype.Size); ok {
				return c, nil
			}
		}
		// Donation unavailable: best-effort optimization, fall through.
	}

	if c, ok := o.local.Get(minBytes); ok {
		return c.WithElemSize(o.dtype.Size), nil
	}

	if minBytes <= o.mgr.Quantum() {
		mb, err := o.mgr.Checkout()
		if err != nil {
			return buffer.Chunk{}, err
		}
		return mb.Chunk(o.dtype.Size), nil
	}

	mb, err := o.mgr.CheckoutOversize(minBytes)
	if err != nil {
		return buffer.Chunk{}, err
	}
	return mb.Chunk(o.dtype.Size), nil
}

// PostBuffer forwards an externally supplied chunk to subscribers as if
// produced. The caller's reference transfers to the port. Forwarding
// bytes already committed with Produce in this cycle double-counts the
// same memory and is rejected as a caller defect.
func (o *OutputPort) PostBuffer(c buffer.Chunk) {
	if o.isSignal {
		panic(api.ContractViolation("post buffer on signal port %q", o.name))
	}
	if o.pending > 0 && c.Overlaps(o.buf.Slice(0, o.pending*o.dtype.Size)) {
		panic(api.ContractViolation("posted buffer overlaps elements produced this cycle on port %q", o.name))
	}
	c = c.WithElemSize(o.dtype.Size)
	o.totalBuffers.Add(1)
	o.totalElements.Add(uint64(c.Elements()))
	o.workEvents.Add(1)
	o.postedBuffers.Add(c)
}

// PostLabel posts a label to subscribers, anchored at the port's current
// cumulative element offset. The label is delivered alongside the stream
// data it is anchored to, at the next cycle close-out; the counter
// increments immediately.
func (o *OutputPort) PostLabel(l api.Label) {
	l.Index += o.totalElements.Load()
	o.totalLabels.Add(1)
	o.workEvents.Add(1)
	o.postedLabels = append(o.postedLabels, l)
}

// PostMessage wraps a value opaquely and posts it to every subscriber.
// One token credit is consumed per message; at credit exhaustion the
// call blocks until a consumer pops a message downstream. The message
// counter increments on every call, before the credit outcome.
func (o *OutputPort) PostMessage(v any) error {
	o.totalMessages.Add(1)
	o.workEvents.Add(1)

	tok, err := o.tokens.Acquire()
	if err != nil {
		return err
	}
	if len(o.subs) == 0 {
		tok.Release()
		return nil
	}
	msg := api.WrapMessage(v)
	for i := 1; i < len(o.subs); i++ {
		tok.Retain()
	}
	for _, sub := range o.subs {
		sub.deliver(delivery{kind: deliverMessage, msg: msg, token: tok})
	}
	return nil
}

// Flush performs the cycle close-out: pending labels are delivered, the
// produced front of the working buffer goes out as one buffer event,
// posted buffers follow in order, and the working buffer refills. The
// scheduler calls Flush once before the first processing step and after
// every step.
func (o *OutputPort) Flush() error {
	for _, l := range o.postedLabels {
		o.fanoutLabel(l)
	}
	o.postedLabels = o.postedLabels[:0]

	if o.pending > 0 {
		n := o.pending * o.dtype.Size
		front := o.buf.Slice(0, n)
		front.Retain()
		o.buf = o.buf.PopFront(n)
		o.pending = 0
		o.totalBuffers.Add(1)
		o.fanoutChunk(front)
	}

	for o.postedBuffers.Length() > 0 {
		c := o.postedBuffers.Remove().(buffer.Chunk)
		o.fanoutChunk(c)
	}

	return o.refill()
}

// fanoutChunk delivers one chunk to every subscriber. It consumes one
// reference and hands each subscriber its own. Every reference must
// exist before the first delivery: a subscriber may consume and release
// on its own goroutine before the loop reaches the next one, and a count
// that touches zero mid-loop returns the slab to the manager while it is
// still being handed out.
func (o *OutputPort) fanoutChunk(c buffer.Chunk) {
	if len(o.subs) == 0 {
		c.Release()
		return
	}
	for i := 1; i < len(o.subs); i++ {
		c.Retain()
	}
	for _, sub := range o.subs {
		sub.deliver(delivery{kind: deliverBuffer, chunk: c})
	}
}

func (o *OutputPort) fanoutLabel(l api.Label) {
	for _, sub := range o.subs {
		sub.deliver(delivery{kind: deliverLabel, label: l})
	}
}

// refill replaces the working buffer when it is exhausted or has dropped
// below the reserve. A remainder below the reserve goes to the local
// cache; its capacity returns to the manager once every reference drops.
// With a read-before-write link configured, donation is checked first on
// every refill and a successful donation displaces the current working
// buffer into the local cache.
func (o *OutputPort) refill() error {
	if o.isSignal {
		return nil
	}
	if o.rbw != (Handle{}) && o.reg != nil {
		if donor, ok := o.reg.Lookup(o.rbw); ok {
			if c, ok := donor.DonateBuffer(0, o.dtype.Size); ok {
				if o.buf.Elements() > 0 {
					o.local.Store(o.buf)
				} else {
					o.buf.Release()
				}
				o.buf = c
				return nil
			}
		}
	}
	avail := o.buf.Elements()
	if avail > 0 && avail >= o.reserve {
		return nil
	}
	if avail > 0 {
		o.local.Store(o.buf)
	} else {
		o.buf.Release()
	}
	o.buf = buffer.Chunk{}

	want := o.reserve
	if want == 0 {
		want = o.mgr.Quantum() / o.dtype.Size
	}
	c, err := o.acquire(want)
	if err != nil {
		return err
	}
	o.buf = c
	return nil
}

// TotalElements returns the cumulative element count.
func (o *OutputPort) TotalElements() uint64 { return o.totalElements.Load() }

// TotalBuffers returns the cumulative buffer-forward event count.
func (o *OutputPort) TotalBuffers() uint64 { return o.totalBuffers.Load() }

// TotalLabels returns the cumulative posted label count.
func (o *OutputPort) TotalLabels() uint64 { return o.totalLabels.Load() }

// TotalMessages returns the cumulative posted message count.
func (o *OutputPort) TotalMessages() uint64 { return o.totalMessages.Load() }

// Stats returns a snapshot of the port's cumulative counters. Safe from
// any goroutine.
func (o *OutputPort) Stats() api.PortStats {
	return api.PortStats{
		TotalElements: o.totalElements.Load(),
		TotalBuffers:  o.totalBuffers.Load(),
		TotalLabels:   o.totalLabels.Load(),
		TotalMessages: o.totalMessages.Load(),
	}
}

// PoolStats returns a snapshot of the owned buffer manager.
func (o *OutputPort) PoolStats() api.ManagerStats { return o.mgr.Stats() }

// TokenStats returns a snapshot of the owned token manager.
func (o *OutputPort) TokenStats() api.ManagerStats { return o.tokens.Stats() }

// Active reports whether the port saw any activity since the last reset.
// The scheduler reads this for idle and deadlock detection.
func (o *OutputPort) Active() bool { return o.workEvents.Load() > 0 }

// ResetActivity clears the activity flag.
func (o *OutputPort) ResetActivity() { o.workEvents.Store(0) }

// Close releases the working buffer, the local cache and both owned
// managers. Chunks already delivered downstream stay valid until their
// holders release them.
func (o *OutputPort) Close() {
	o.buf.Release()
	o.buf = buffer.Chunk{}
	o.pending = 0
	for o.postedBuffers.Length() > 0 {
		o.postedBuffers.Remove().(buffer.Chunk).Release()
	}
	o.local.Drain()
	o.mgr.Close()
	o.tokens.Close()
}
