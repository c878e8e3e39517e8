// Package alloc implements the per-allocation-group free-space manager: a
// first-fit bitmap allocator guarded by one mutex per AG, so independent
// AGs never contend with each other. AllocBlocks and FreeBlocks journal a
// metadata entry before releasing the lock; InitAlloc, which runs at
// format time, writes the AGF without journaling.
package alloc

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/ironwood-labs/xfsim/pkg/blockdev"
	"github.com/ironwood-labs/xfsim/pkg/elog"
	"github.com/ironwood-labs/xfsim/pkg/journal"
	"github.com/ironwood-labs/xfsim/pkg/xfs"
)

// ErrInvalidAG is returned for an out-of-range AG id.
var ErrInvalidAG = errors.New("alloc: invalid allocation group")

// group holds one AG's exclusive lock. The lock guards the
// read-modify-write-back cycle of that AG's AGF header; it is never held
// across a blocking journal call beyond the enqueue itself.
type group struct {
	mu sync.Mutex
}

// Allocator manages free space across all allocation groups of a device.
type Allocator struct {
	dev *blockdev.Device
	jnl *journal.Journal
	log elog.Logger

	groups [xfs.NumAGs]group
}

// New returns an Allocator operating against dev, journaling metadata
// changes through jnl.
func New(dev *blockdev.Device, jnl *journal.Journal, log elog.Logger) *Allocator {
	if log == nil {
		log = elog.Nop{}
	}
	return &Allocator{dev: dev, jnl: jnl, log: log}
}

func (a *Allocator) checkAG(agID int) error {
	if agID < 0 || agID >= xfs.NumAGs {
		return ErrInvalidAG
	}
	return nil
}

func (a *Allocator) readAGF(agID int) (xfs.AGF, error) {
	buf := make([]byte, xfs.AGFSize)
	if err := a.dev.Read(xfs.AGFOffset(agID), buf); err != nil {
		return xfs.AGF{}, errors.Wrapf(err, "alloc: reading AGF for ag %d", agID)
	}
	return xfs.DecodeAGF(buf), nil
}

func (a *Allocator) writeAGF(agID int, agf xfs.AGF) error {
	if err := a.dev.Write(xfs.AGFOffset(agID), agf.Encode()); err != nil {
		return errors.Wrapf(err, "alloc: writing AGF for ag %d", agID)
	}
	return nil
}

// InitAlloc finalizes the free-space bitmap for a freshly formatted AG:
// slots 0-1 (AGF/AGI) used, the rest free, with agf_freeblks/agf_longest
// reconciled to the bitmap's real capacity.
func (a *Allocator) InitAlloc(agID int) error {
	if err := a.checkAG(agID); err != nil {
		return err
	}

	g := &a.groups[agID]
	g.mu.Lock()
	defer g.mu.Unlock()

	agf, err := a.readAGF(agID)
	if err != nil {
		return err
	}

	for i := range agf.Bitmap {
		if i < xfs.ReservedSlots {
			agf.Bitmap[i] = 1
		} else {
			agf.Bitmap[i] = 0
		}
	}
	agf.FreeBlocks = xfs.UsableSlots
	agf.Longest = xfs.UsableSlots

	if err := a.writeAGF(agID, agf); err != nil {
		return err
	}

	a.log.Debugf("alloc: ag %d initialized, %d free slots", agID, agf.FreeBlocks)
	return nil
}

// AllocBlocks scans ag's bitmap first-fit for count contiguous free slots,
// marks them used, and returns the starting slot index. It returns 0 (an
// always-reserved, thus never-valid, slot) if no run of that size fits.
func (a *Allocator) AllocBlocks(agID int, count int) (int, error) {
	if err := a.checkAG(agID); err != nil {
		return 0, err
	}
	if count <= 0 {
		return 0, errors.New("alloc: count must be positive")
	}

	g := &a.groups[agID]
	g.mu.Lock()
	defer g.mu.Unlock()

	agf, err := a.readAGF(agID)
	if err != nil {
		return 0, err
	}

	start := -1
	limit := xfs.BitmapSlots - count + 1
	for i := xfs.ReservedSlots; i < limit; {
		blocker := -1
		for j := 0; j < count; j++ {
			if agf.Bitmap[i+j] != 0 {
				blocker = j
				break
			}
		}
		if blocker < 0 {
			start = i
			break
		}
		i += blocker + 1
	}

	if start < 0 {
		a.log.Debugf("alloc: ag %d has no run of %d free slots", agID, count)
		return 0, nil
	}

	for j := 0; j < count; j++ {
		agf.Bitmap[start+j] = 1
	}
	agf.FreeBlocks -= uint32(count)
	if agf.FreeBlocks > 0 {
		agf.Longest = agf.FreeBlocks
	} else {
		agf.Longest = 0
	}

	if err := a.writeAGF(agID, agf); err != nil {
		return 0, err
	}

	a.journalMeta(agID, "alloc", start, count)

	a.log.Debugf("alloc: ag %d allocated %d block(s) at slot %d", agID, count, start)
	return start, nil
}

// FreeBlocks marks count slots starting at start as free again in ag. The
// range is clamped to the bitmap's capacity.
func (a *Allocator) FreeBlocks(agID int, start int, count int) error {
	if err := a.checkAG(agID); err != nil {
		return err
	}
	if count <= 0 {
		return errors.New("alloc: count must be positive")
	}

	g := &a.groups[agID]
	g.mu.Lock()
	defer g.mu.Unlock()

	agf, err := a.readAGF(agID)
	if err != nil {
		return err
	}

	end := start + count
	if end > xfs.BitmapSlots {
		end = xfs.BitmapSlots
	}
	freed := 0
	for i := start; i < end; i++ {
		if i < 0 || i >= xfs.BitmapSlots {
			continue
		}
		if agf.Bitmap[i] != 0 {
			agf.Bitmap[i] = 0
			freed++
		}
	}
	agf.FreeBlocks += uint32(freed)
	if uint32(count) > agf.Longest {
		agf.Longest = uint32(count)
	}

	if err := a.writeAGF(agID, agf); err != nil {
		return err
	}

	a.journalMeta(agID, "free", start, count)

	a.log.Debugf("alloc: ag %d freed %d block(s) at slot %d", agID, freed, start)
	return nil
}

// FreeBlockCount returns the AGF's recorded free-block count for agID.
func (a *Allocator) FreeBlockCount(agID int) (uint32, error) {
	if err := a.checkAG(agID); err != nil {
		return 0, err
	}
	g := &a.groups[agID]
	g.mu.Lock()
	defer g.mu.Unlock()

	agf, err := a.readAGF(agID)
	if err != nil {
		return 0, err
	}
	return agf.FreeBlocks, nil
}

// AGFSnapshot returns a copy of agID's current AGF header, for read-only
// inspection (ag_summary, agf shell commands).
func (a *Allocator) AGFSnapshot(agID int) (xfs.AGF, error) {
	if err := a.checkAG(agID); err != nil {
		return xfs.AGF{}, err
	}
	g := &a.groups[agID]
	g.mu.Lock()
	defer g.mu.Unlock()
	return a.readAGF(agID)
}

// journalMeta enqueues a best-effort metadata trace entry for op on agID.
// A journal enqueue failure is logged, not surfaced: spec §7 classifies it
// as the rare AllocError case and leaves propagation to callers who care,
// but the allocator's own state is already durable on disk by this point.
func (a *Allocator) journalMeta(agID int, op string, start, count int) {
	payload := []byte{byte(agID), 0, 0, 0}
	payload = append(payload, []byte(op)...)
	_ = start
	_ = count
	if err := a.jnl.AddItem(payload); err != nil {
		a.log.Warnf("alloc: failed to journal %s on ag %d: %v", op, agID, err)
	}
}
