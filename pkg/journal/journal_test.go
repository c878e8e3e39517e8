package journal

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestJournal() *Journal {
	return New(WithFlushDelay(0))
}

func TestAddItemThenBarrierDrainsQueue(t *testing.T) {
	j := newTestJournal()
	j.Mount()
	defer j.Shutdown()

	require.NoError(t, j.AddItem([]byte("a")))
	require.NoError(t, j.AddItem([]byte("b")))

	require.NoError(t, j.CommitBarrier())

	require.Equal(t, 0, j.Len())
}

func TestBarrierBlocksUntilWorkerCatchesUp(t *testing.T) {
	j := New(WithFlushDelay(20 * time.Millisecond))
	j.Mount()
	defer j.Shutdown()

	for i := 0; i < 5; i++ {
		require.NoError(t, j.AddItem([]byte{byte(i)}))
	}

	start := time.Now()
	require.NoError(t, j.CommitBarrier())
	elapsed := time.Since(start)

	// 5 data entries + the barrier itself, each costing the flush delay.
	require.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	require.Equal(t, 0, j.Len())
}

func TestConcurrentProducersSingleBarrier(t *testing.T) {
	j := newTestJournal()
	j.Mount()
	defer j.Shutdown()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = j.AddItem([]byte{byte(i)})
		}(i)
	}
	wg.Wait()

	require.NoError(t, j.CommitBarrier())
	require.Equal(t, 0, j.Len())
}

func TestShutdownSignalsStrandedBarrier(t *testing.T) {
	// Flush delay long enough that Shutdown races a barrier still queued.
	j := New(WithFlushDelay(200 * time.Millisecond))
	j.Mount()

	// Fill the queue so the barrier enqueued below is still pending when
	// Shutdown is invoked.
	for i := 0; i < 3; i++ {
		require.NoError(t, j.AddItem([]byte{byte(i)}))
	}

	done := make(chan struct{})
	go func() {
		_ = j.CommitBarrier()
		close(done)
	}()

	// Give the barrier a moment to enqueue, then shut down while it is
	// still waiting in line.
	time.Sleep(10 * time.Millisecond)
	j.Shutdown()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("barrier waiter was never signaled on shutdown")
	}
}

func TestAddItemAfterShutdownFails(t *testing.T) {
	j := newTestJournal()
	j.Mount()
	j.Shutdown()

	require.ErrorIs(t, j.AddItem([]byte("x")), ErrShuttingDown)
	require.ErrorIs(t, j.CommitBarrier(), ErrShuttingDown)
}
