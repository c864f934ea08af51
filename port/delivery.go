// File: port/delivery.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package port

import (
	"github.com/momentics/flowport/api"
	"github.com/momentics/flowport/buffer"
)

type deliveryKind uint8

const (
	deliverBuffer deliveryKind = iota
	deliverLabel
	deliverMessage
)

// delivery is one ordered item handed from an output port to a
// subscriber: a stream chunk, an anchored label, or a message with the
// token credit that travels with it. A single queue per subscriber keeps
// the per-port FIFO ordering guarantee across all three kinds.
type delivery struct {
	kind  deliveryKind
	chunk buffer.Chunk
	label api.Label
	msg   api.Message
	token *buffer.ManagedBuffer
}
