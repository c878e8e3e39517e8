// Package journal implements the write-ahead log queue: a single
// background worker drains a FIFO of metadata entries, and a barrier
// primitive lets a producer block until everything enqueued ahead of it
// (plus the barrier itself) has been consumed.
//
// Ported from the reference implementation's xfs_trans.c, with one
// deliberate correction: on Shutdown, any barrier entries still queued are
// signaled before being discarded, so a caller blocked in CommitBarrier
// can never deadlock against a shutting-down journal.
package journal

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ironwood-labs/xfsim/pkg/elog"
)

// ErrShuttingDown is returned by AddItem/CommitBarrier once Shutdown has
// been called.
var ErrShuttingDown = errors.New("journal: shutting down")

// DefaultFlushDelay is the synthetic per-entry flush latency the worker
// sleeps for, matching the reference implementation's 100ms usleep. Tests
// override it via WithFlushDelay to run at full speed.
const DefaultFlushDelay = 100 * time.Millisecond

// barrierSync is a one-shot notify/await handle. It is owned by the
// waiting producer and released once the wait returns.
type barrierSync struct {
	mu       sync.Mutex
	cond     *sync.Cond
	signaled bool
}

func newBarrierSync() *barrierSync {
	b := &barrierSync{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *barrierSync) signal() {
	b.mu.Lock()
	b.signaled = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

func (b *barrierSync) wait() {
	b.mu.Lock()
	for !b.signaled {
		b.cond.Wait()
	}
	b.mu.Unlock()
}

// entryKind distinguishes the two kinds of journal entry.
type entryKind int

const (
	kindData entryKind = iota
	kindBarrier
)

type entry struct {
	kind    entryKind
	payload []byte       // owned copy, kindData only
	sync    *barrierSync // kindBarrier only
}

// Journal is a FIFO queue of entries consumed by one background worker,
// with barrier-fence support.
type Journal struct {
	log        elog.Logger
	flushDelay time.Duration

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []entry
	running bool
	wg      sync.WaitGroup
}

// Option configures a Journal at construction time.
type Option func(*Journal)

// WithFlushDelay overrides the simulated per-entry flush latency.
func WithFlushDelay(d time.Duration) Option {
	return func(j *Journal) { j.flushDelay = d }
}

// WithLogger attaches a logger. Defaults to a no-op logger.
func WithLogger(log elog.Logger) Option {
	return func(j *Journal) { j.log = log }
}

// New constructs a Journal. The background worker is not started until
// Mount is called.
func New(opts ...Option) *Journal {
	j := &Journal{
		log:        elog.Nop{},
		flushDelay: DefaultFlushDelay,
	}
	j.cond = sync.NewCond(&j.mu)
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Mount starts the background worker goroutine. Calling Mount again
// without an intervening Shutdown is not supported (see spec §9).
func (j *Journal) Mount() {
	j.mu.Lock()
	j.running = true
	j.mu.Unlock()

	j.wg.Add(1)
	go j.run()
}

// AddItem copies data into an owned entry, appends it to the queue, and
// wakes the worker. Entries are consumed strictly in FIFO order.
func (j *Journal) AddItem(data []byte) error {
	owned := make([]byte, len(data))
	copy(owned, data)

	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return ErrShuttingDown
	}
	j.queue = append(j.queue, entry{kind: kindData, payload: owned})
	j.mu.Unlock()
	j.cond.Signal()
	return nil
}

// CommitBarrier enqueues a barrier and blocks until the worker has
// consumed every entry enqueued before it, including the barrier itself.
func (j *Journal) CommitBarrier() error {
	b := newBarrierSync()

	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return ErrShuttingDown
	}
	j.queue = append(j.queue, entry{kind: kindBarrier, sync: b})
	j.mu.Unlock()
	j.cond.Signal()

	b.wait()
	return nil
}

// Len returns the current number of pending entries. Purely advisory: by
// the time the caller observes it, the count may already be stale.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.queue)
}

func (j *Journal) run() {
	defer j.wg.Done()

	for {
		j.mu.Lock()
		for len(j.queue) == 0 && j.running {
			j.cond.Wait()
		}

		if !j.running && len(j.queue) == 0 {
			j.mu.Unlock()
			return
		}

		if len(j.queue) == 0 {
			j.mu.Unlock()
			continue
		}

		e := j.queue[0]
		j.queue = j.queue[1:]
		j.mu.Unlock()

		j.process(e)
	}
}

func (j *Journal) process(e entry) {
	if j.flushDelay > 0 {
		time.Sleep(j.flushDelay)
	}

	switch e.kind {
	case kindBarrier:
		j.log.Debugf("journal: barrier flushed, signaling waiter")
		e.sync.signal()
	case kindData:
		j.log.Debugf("journal: flushed %d byte entry", len(e.payload))
	}
}

// Shutdown stops the worker and drains any residual queue. Barrier entries
// still queued are signaled before being dropped, so no waiter is ever
// stranded (Design Notes §9, open question 5).
func (j *Journal) Shutdown() {
	j.mu.Lock()
	j.running = false
	remaining := j.queue
	j.queue = nil
	j.mu.Unlock()

	j.cond.Broadcast()
	j.wg.Wait()

	for _, e := range remaining {
		if e.kind == kindBarrier {
			e.sync.signal()
		}
	}
}
