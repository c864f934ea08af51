package buffer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/flowport/buffer"
)

func TestTokenManagerBoundsOutstandingCredits(t *testing.T) {
	tm := buffer.NewTokenManager(4, nil)
	defer tm.Close()

	var credits []*buffer.ManagedBuffer
	for i := 0; i < 4; i++ {
		tok, err := tm.Acquire()
		require.NoError(t, err)
		credits = append(credits, tok)
	}
	require.True(t, tm.Empty())
	require.Equal(t, 4, tm.Stats().CheckedOut)

	// the fifth acquire stalls until a consumer returns a credit
	got := make(chan *buffer.ManagedBuffer, 1)
	go func() {
		tok, err := tm.Acquire()
		if err == nil {
			got <- tok
		}
	}()

	select {
	case <-got:
		t.Fatal("acquire beyond token capacity must stall")
	case <-time.After(50 * time.Millisecond):
	}

	credits[0].Release()

	select {
	case tok := <-got:
		tok.Release()
	case <-time.After(time.Second):
		t.Fatal("released credit did not unblock the producer")
	}

	for _, tok := range credits[1:] {
		tok.Release()
	}
	require.Equal(t, 0, tm.Stats().CheckedOut)
}
