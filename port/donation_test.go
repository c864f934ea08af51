package port_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/momentics/flowport/api"
	"github.com/momentics/flowport/buffer"
	"github.com/momentics/flowport/port"
)

// donationFixture wires upstream -> in, and out reading-before-writing
// from in. The upstream quantum matches one full transfer so forwarded
// chunks arrive sole-referenced.
type donationFixture struct {
	upstream *port.OutputPort
	in       *port.InputPort
	out      *port.OutputPort
	reg      *port.Registry
	handle   port.Handle
}

func newDonationFixture(t *testing.T, transferBytes int) *donationFixture {
	t.Helper()
	log := zap.NewNop()
	reg := port.NewRegistry()

	upstream := port.NewOutputPort(port.OutputConfig{Name: "upstream", DType: u32},
		buffer.NewManager(buffer.Config{Quantum: transferBytes, Capacity: 4}, log),
		buffer.NewTokenManager(2, log), nil, log)
	in := port.NewInputPort(port.InputConfig{Name: "in", DType: u32}, log)
	upstream.Subscribe(in)

	out := port.NewOutputPort(port.OutputConfig{Name: "out", DType: u32},
		buffer.NewManager(buffer.Config{Quantum: 4096, Capacity: 4}, log),
		buffer.NewTokenManager(2, log), reg, log)
	handle := reg.Add(in)
	out.SetReadBeforeWrite(handle)

	t.Cleanup(func() {
		in.Close()
		upstream.Close()
		out.Close()
	})
	return &donationFixture{upstream: upstream, in: in, out: out, reg: reg, handle: handle}
}

// sendUpstream produces one full slab of patterned data and delivers it.
func (f *donationFixture) sendUpstream(t *testing.T) {
	t.Helper()
	require.NoError(t, f.upstream.Flush())
	w := f.upstream.Buffer()
	for i := range w.Bytes() {
		w.Bytes()[i] = byte(i)
	}
	f.upstream.Produce(w.Elements())
	require.NoError(t, f.upstream.Flush())
	f.in.Poll()
}

func TestDonationRoundTrip(t *testing.T) {
	f := newDonationFixture(t, 1024)
	f.sendUpstream(t)

	held := f.in.Buffer()
	require.Equal(t, 256, held.Elements())
	require.EqualValues(t, 1, held.Managed().RefCount())

	got, err := f.out.GetBuffer(256)
	require.NoError(t, err)

	// same allocation, identical bytes, and the input no longer holds it
	require.Same(t, held.Managed(), got.Managed())
	require.Equal(t, held.Bytes(), got.Bytes())
	require.EqualValues(t, 1, got.Managed().RefCount())
	require.Equal(t, 0, f.in.Elements())
	require.EqualValues(t, 256, f.in.TotalConsumed())

	got.Release()
}

func TestDonationSkippedWhenChunkShared(t *testing.T) {
	f := newDonationFixture(t, 1024)
	f.sendUpstream(t)

	held := f.in.Buffer()
	held.Retain() // a second holder appears
	defer held.Release()

	got, err := f.out.GetBuffer(256)
	require.NoError(t, err)
	require.NotSame(t, held.Managed(), got.Managed())
	// the input keeps its buffer; the fallback path served the request
	require.Equal(t, 256, f.in.Elements())
	got.Release()
}

func TestDonationSkippedOnElementSizeMismatch(t *testing.T) {
	log := zap.NewNop()
	reg := port.NewRegistry()

	u16 := api.DType{Name: "uint16", Size: 2}
	upstream := port.NewOutputPort(port.OutputConfig{Name: "upstream", DType: u16},
		buffer.NewManager(buffer.Config{Quantum: 1024, Capacity: 2}, log),
		buffer.NewTokenManager(2, log), nil, log)
	defer upstream.Close()
	in := port.NewInputPort(port.InputConfig{Name: "in", DType: u16}, log)
	defer in.Close()
	upstream.Subscribe(in)

	out := port.NewOutputPort(port.OutputConfig{Name: "out", DType: u32},
		buffer.NewManager(buffer.Config{Quantum: 4096, Capacity: 2}, log),
		buffer.NewTokenManager(2, log), reg, log)
	defer out.Close()
	out.SetReadBeforeWrite(reg.Add(in))

	require.NoError(t, upstream.Flush())
	upstream.Produce(upstream.Elements())
	require.NoError(t, upstream.Flush())
	in.Poll()

	held := in.Buffer()
	got, err := out.GetBuffer(16)
	require.NoError(t, err)
	require.NotSame(t, held.Managed(), got.Managed())
	require.Equal(t, 512, in.Elements())
	got.Release()
}

func TestDonationSkippedWhenRequestTooLarge(t *testing.T) {
	f := newDonationFixture(t, 1024)
	f.sendUpstream(t)

	got, err := f.out.GetBuffer(512) // held chunk has only 256 elements
	require.NoError(t, err)
	require.NotSame(t, f.in.Buffer().Managed(), got.Managed())
	require.Equal(t, 256, f.in.Elements())
	got.Release()
}

func TestDonationSkippedAfterTargetTornDown(t *testing.T) {
	f := newDonationFixture(t, 1024)
	f.sendUpstream(t)

	f.reg.Remove(f.handle)

	got, err := f.out.GetBuffer(256)
	require.NoError(t, err)
	require.NotSame(t, f.in.Buffer().Managed(), got.Managed())
	require.Equal(t, 256, f.in.Elements())
	got.Release()
}

func TestDonationArmsWorkingBufferOnRefill(t *testing.T) {
	f := newDonationFixture(t, 1024)
	f.sendUpstream(t)

	held := f.in.Buffer()
	require.NoError(t, f.out.Flush())

	// the working buffer is the donated allocation with the bytes intact
	w := f.out.Buffer()
	require.Same(t, held.Managed(), w.Managed())
	require.Equal(t, held.Bytes(), w.Bytes())
	require.Equal(t, 0, f.in.Elements())

	// produced in place, the data reaches downstream without a copy
	sink := port.NewInputPort(port.InputConfig{Name: "sink", DType: u32}, zap.NewNop())
	defer sink.Close()
	f.out.Subscribe(sink)
	f.out.Produce(256)
	require.NoError(t, f.out.Flush())
	sink.Poll()
	require.Same(t, held.Managed(), sink.Buffer().Managed())
	require.Equal(t, 256, sink.Elements())
}

func TestClearedLinkStopsDonation(t *testing.T) {
	f := newDonationFixture(t, 1024)
	f.sendUpstream(t)

	f.out.SetReadBeforeWrite(port.Handle{})
	got, err := f.out.GetBuffer(256)
	require.NoError(t, err)
	require.Equal(t, 256, f.in.Elements())
	got.Release()
}
