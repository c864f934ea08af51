// File: api/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared value types exchanged between ports: element type descriptors,
// stream labels and opaque messages. These are leaf types with no behavior
// beyond construction and inspection, so every package may depend on them.

package api

// DType describes the element type carried by one stream connection.
// Size is the element width in bytes; a stream buffer's length is always
// a whole multiple of it. Signal and message-only ports use a zero DType.
type DType struct {
	Name string
	Size int
}

// Elements returns how many whole elements fit in length bytes.
func (d DType) Elements(length int) int {
	if d.Size <= 0 {
		return 0
	}
	return length / d.Size
}

// IsZero reports whether the descriptor carries no stream type, which is
// the case for signal and message-only ports.
func (d DType) IsZero() bool {
	return d.Size == 0
}

// Label is out-of-band metadata anchored to an absolute element offset in
// a stream. The producing port sets Index to its cumulative stream position
// when the label is posted; subscribers observe labels alongside the data
// they are anchored to, never ahead of it.
type Label struct {
	ID    string
	Data  any
	Index uint64
	Width int
}

// Message wraps an arbitrary value for asynchronous delivery. The core
// never inspects the value; it only moves it between ports under the
// token-credit accounting that bounds in-flight messages.
type Message struct {
	value any
}

// WrapMessage wraps v opaquely for posting to a port.
func WrapMessage(v any) Message {
	return Message{value: v}
}

// Unwrap returns the wrapped value.
func (m Message) Unwrap() any {
	return m.value
}

// PortStats is a snapshot of one output port's cumulative counters.
// Counters are monotonic and never reset for the life of the port.
type PortStats struct {
	TotalElements uint64
	TotalBuffers  uint64
	TotalLabels   uint64
	TotalMessages uint64
}

// ManagerStats is a snapshot of one buffer or token manager.
// Ready+CheckedOut == Total holds at every observable point.
type ManagerStats struct {
	Ready      int
	CheckedOut int
	Total      int
	Capacity   int
}
