// File: port/input.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// InputPort is the subscriber endpoint of a connection. Deliveries arrive
// on the producing port's goroutine through a bounded lock-free queue;
// everything behind Poll is consumer-local state touched only by the
// owning worker's goroutine.

package port

import (
	"runtime"

	"go.uber.org/zap"

	"github.com/momentics/flowport/api"
	"github.com/momentics/flowport/buffer"
	"github.com/momentics/flowport/internal/concurrency"
)

// DefaultQueueDepth bounds a subscriber's delivery queue when the config
// leaves it zero.
const DefaultQueueDepth = 1024

// InputConfig describes one input port.
type InputConfig struct {
	Index      int
	Name       string
	DType      api.DType
	QueueDepth int
}

type inboundMessage struct {
	msg   api.Message
	token *buffer.ManagedBuffer
}

// InputPort receives buffers, labels and messages from one or more
// upstream output ports.
type InputPort struct {
	index int
	name  string
	dtype api.DType

	queue *concurrency.Queue[delivery]
	log   *zap.Logger

	// consumer-local, single reader
	held          []buffer.Chunk
	labels        []api.Label
	msgs          []inboundMessage
	totalConsumed uint64
}

// NewInputPort builds an input port.
func NewInputPort(cfg InputConfig, log *zap.Logger) *InputPort {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultQueueDepth
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &InputPort{
		index: cfg.Index,
		name:  cfg.Name,
		dtype: cfg.DType,
		queue: concurrency.NewQueue[delivery](cfg.QueueDepth),
		log:   log,
	}
}

// Index returns the port's index number.
func (p *InputPort) Index() int { return p.index }

// Name returns the port's name identifier.
func (p *InputPort) Name() string { return p.name }

// DType returns the port's element type descriptor.
func (p *InputPort) DType() api.DType { return p.dtype }

// deliver enqueues one item from the producer goroutine, spinning while
// the subscriber's queue is full. The stall resolves when the consumer
// polls; backpressure, not failure.
func (p *InputPort) deliver(d delivery) {
	for !p.queue.Enqueue(d) {
		runtime.Gosched()
	}
}

// Poll drains pending deliveries into consumer-local state. Must be
// called from the owning worker's goroutine, normally at the start of
// each processing step.
func (p *InputPort) Poll() {
	for {
		d, ok := p.queue.Dequeue()
		if !ok {
			return
		}
		switch d.kind {
		case deliverBuffer:
			p.held = append(p.held, d.chunk)
		case deliverLabel:
			p.labels = append(p.labels, d.label)
		case deliverMessage:
			p.msgs = append(p.msgs, inboundMessage{msg: d.msg, token: d.token})
		}
	}
}

// Buffer returns the front held chunk, empty when nothing is pending.
func (p *InputPort) Buffer() buffer.Chunk {
	if len(p.held) == 0 {
		return buffer.Chunk{}
	}
	return p.held[0]
}

// Elements returns the element count of the front held chunk.
func (p *InputPort) Elements() int {
	return p.Buffer().Elements()
}

// TotalConsumed returns the cumulative number of consumed elements.
func (p *InputPort) TotalConsumed() uint64 { return p.totalConsumed }

// Consume drops numElements from the front held chunk, releasing the
// chunk's reference once it is fully consumed. Consuming more than is
// held is a caller defect.
func (p *InputPort) Consume(numElements int) {
	if numElements == 0 {
		return
	}
	if numElements < 0 || numElements > p.Elements() {
		panic(api.ContractViolation("consume of %d elements with %d held on port %q",
			numElements, p.Elements(), p.name))
	}
	c := p.held[0].PopFront(numElements * p.dtype.Size)
	p.totalConsumed += uint64(numElements)
	if c.Empty() {
		p.held[0].Release()
		p.held = p.held[1:]
		return
	}
	p.held[0] = c
}

// HasMessage reports whether a message is waiting.
func (p *InputPort) HasMessage() bool { return len(p.msgs) > 0 }

// PopMessage removes and returns the front message, returning its token
// credit to the upstream pool. Popping with no message waiting is a
// caller defect.
func (p *InputPort) PopMessage() api.Message {
	if len(p.msgs) == 0 {
		panic(api.ContractViolation("pop message on empty port %q", p.name))
	}
	m := p.msgs[0]
	p.msgs = p.msgs[1:]
	m.token.Release()
	return m.msg
}

// Labels returns the labels received and not yet removed, in delivery
// order. Indexes are absolute element offsets in the upstream stream.
func (p *InputPort) Labels() []api.Label { return p.labels }

// RemoveLabel removes the first label equal in identity and anchor to l.
func (p *InputPort) RemoveLabel(l api.Label) {
	for i, have := range p.labels {
		if have.ID == l.ID && have.Index == l.Index {
			p.labels = append(p.labels[:i], p.labels[i+1:]...)
			return
		}
	}
}

// DonateBuffer transfers the front held chunk to the caller when the
// read-before-write preconditions hold: matching element size, enough
// bytes, and the input port holding the sole reference. The held
// elements count as consumed and the reference moves to the caller
// without touching the count. Any miss returns ok false; never an error.
func (p *InputPort) DonateBuffer(minBytes, elemSize int) (buffer.Chunk, bool) {
	if len(p.held) == 0 {
		return buffer.Chunk{}, false
	}
	c := p.held[0]
	mb := c.Managed()
	if mb == nil || c.ElemSize() != elemSize || c.Length() < minBytes {
		return buffer.Chunk{}, false
	}
	if mb.RefCount() != 1 {
		return buffer.Chunk{}, false
	}
	p.held = p.held[1:]
	p.totalConsumed += uint64(c.Elements())
	return c, true
}

// Close drains the delivery queue and releases every held reference.
func (p *InputPort) Close() {
	p.Poll()
	for _, c := range p.held {
		c.Release()
	}
	p.held = nil
	for _, m := range p.msgs {
		m.token.Release()
	}
	p.msgs = nil
	p.labels = nil
}
