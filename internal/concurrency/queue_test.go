package concurrency_test

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/flowport/internal/concurrency"
)

func TestQueueFIFOSingleProducer(t *testing.T) {
	q := concurrency.NewQueue[int](8)
	for i := 0; i < 8; i++ {
		require.True(t, q.Enqueue(i))
	}
	require.False(t, q.Enqueue(99), "queue at capacity must refuse")

	for i := 0; i < 8; i++ {
		v, ok := q.Dequeue()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	_, ok := q.Dequeue()
	require.False(t, ok)
}

func TestQueueCapacityRoundsUp(t *testing.T) {
	q := concurrency.NewQueue[int](5)
	for i := 0; i < 8; i++ {
		require.True(t, q.Enqueue(i))
	}
	require.False(t, q.Enqueue(8))
}

func TestQueueConcurrentTransfer(t *testing.T) {
	const (
		producers = 4
		perProd   = 10000
	)
	q := concurrency.NewQueue[int](1024)

	var sum atomic.Int64
	var got atomic.Int64
	var g errgroup.Group

	for p := 0; p < producers; p++ {
		p := p
		g.Go(func() error {
			for i := 0; i < perProd; i++ {
				v := p*perProd + i
				for !q.Enqueue(v) {
				}
				sum.Add(int64(v))
			}
			return nil
		})
	}

	done := make(chan struct{})
	g.Go(func() error {
		received := 0
		for received < producers*perProd {
			if v, ok := q.Dequeue(); ok {
				got.Add(int64(v))
				received++
			}
		}
		close(done)
		return nil
	})

	require.NoError(t, g.Wait())
	<-done
	require.Equal(t, sum.Load(), got.Load())
	require.Equal(t, 0, q.Len())
}
