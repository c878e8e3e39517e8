// Package fsim composes the block device, AG allocator, journal, inode
// table, and extent-mapped file I/O into one filesystem value with an
// explicit lifetime, replacing the reference implementation's global
// statics (Design Notes §9, "Global singletons").
package fsim

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ironwood-labs/xfsim/pkg/alloc"
	"github.com/ironwood-labs/xfsim/pkg/blockdev"
	"github.com/ironwood-labs/xfsim/pkg/elog"
	"github.com/ironwood-labs/xfsim/pkg/fileio"
	"github.com/ironwood-labs/xfsim/pkg/inode"
	"github.com/ironwood-labs/xfsim/pkg/journal"
	"github.com/ironwood-labs/xfsim/pkg/xfs"
)

// ErrAlreadyMounted is returned by Mount when called twice without an
// intervening Shutdown (spec §9: "repeated mounts ... not supported").
var ErrAlreadyMounted = errors.New("fsim: already mounted")

// ErrNotMounted is returned by Write when the filesystem is not mounted.
// The direct journal accessors (AddJournalItem, CommitBarrier) report the
// journal's own ErrShuttingDown instead.
var ErrNotMounted = errors.New("fsim: not mounted")

// Filesystem is the top-level value a caller formats, mounts, and drives.
type Filesystem struct {
	log elog.Logger

	dev     *blockdev.Device
	journal *journal.Journal
	alloc   *alloc.Allocator
	table   *inode.Table
	io      *fileio.FileIO

	flushDelayOverride *time.Duration
	mounted            bool
}

// Option configures a Filesystem at construction time.
type Option func(*Filesystem)

// WithLogger attaches a logger used by every subsystem.
func WithLogger(log elog.Logger) Option {
	return func(fs *Filesystem) { fs.log = log }
}

// WithFlushDelay overrides the journal's simulated flush latency, for
// tests that want the worker to drain instantly.
func WithFlushDelay(d time.Duration) Option {
	return func(fs *Filesystem) { fs.flushDelayOverride = &d }
}

// New returns an unformatted Filesystem.
func New(opts ...Option) *Filesystem {
	fs := &Filesystem{log: elog.Nop{}}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Format initializes a size-byte device, writes the superblock and AG
// headers, and finalizes each AG's free-space bitmap. It does not start
// the journal worker; call Mount for that.
func (fs *Filesystem) Format(size int64) error {
	fs.dev = blockdev.New()
	if err := fs.dev.Init(size); err != nil {
		return errors.Wrap(err, "fsim: format")
	}

	jopts := []journal.Option{journal.WithLogger(fs.log)}
	if fs.flushDelayOverride != nil {
		jopts = append(jopts, journal.WithFlushDelay(*fs.flushDelayOverride))
	}
	fs.journal = journal.New(jopts...)
	fs.alloc = alloc.New(fs.dev, fs.journal, fs.log)
	fs.table = inode.New()
	fs.io = fileio.New(fs.dev, fs.alloc, fs.journal, fs.table, fs.log)

	if err := fs.writeHeaders(size); err != nil {
		return err
	}

	for ag := 0; ag < xfs.NumAGs; ag++ {
		if err := fs.alloc.InitAlloc(ag); err != nil {
			return errors.Wrapf(err, "fsim: init_alloc ag %d", ag)
		}
	}

	fs.log.Infof("fsim: formatted %d byte device across %d AGs", size, xfs.NumAGs)
	return nil
}

func (fs *Filesystem) writeHeaders(size int64) error {
	dataBlocks := uint64(size / xfs.BlockSize)

	sb := xfs.SuperBlock{
		Magic:      xfs.SBMagicNumber,
		BlockSize:  xfs.BlockSize,
		DataBlocks: dataBlocks,
		AGCount:    xfs.NumAGs,
		VersionNum: xfs.VersionNumber,
		UUID:       uuidBytes(),
	}
	if err := fs.dev.Write(0, sb.Encode()); err != nil {
		return errors.Wrap(err, "fsim: write superblock")
	}

	for ag := 0; ag < xfs.NumAGs; ag++ {
		agf := xfs.AGF{
			Magic:      xfs.AGFMagicNumber,
			Length:     xfs.BitmapSlots,
			FreeBlocks: xfs.UsableSlots,
			Longest:    xfs.UsableSlots,
		}
		if err := fs.dev.Write(xfs.AGFOffset(ag), agf.Encode()); err != nil {
			return errors.Wrapf(err, "fsim: write agf %d", ag)
		}

		agi := xfs.AGI{Magic: xfs.AGIMagicNumber}
		if err := fs.dev.Write(xfs.AGIOffset(ag), agi.Encode()); err != nil {
			return errors.Wrapf(err, "fsim: write agi %d", ag)
		}
	}

	return nil
}

func uuidBytes() [16]byte {
	var out [16]byte
	id := uuid.New()
	copy(out[:], id[:])
	return out
}

// Mount starts the journal's background worker. Calling Mount twice
// without an intervening Shutdown returns ErrAlreadyMounted.
func (fs *Filesystem) Mount() error {
	if fs.mounted {
		return ErrAlreadyMounted
	}
	fs.journal.Mount()
	fs.mounted = true
	fs.log.Infof("fsim: mounted")
	return nil
}

// Shutdown stops the journal worker, signaling any stranded barrier
// waiters, and releases the backing device buffer.
func (fs *Filesystem) Shutdown() {
	if fs.mounted {
		fs.journal.Shutdown()
		fs.mounted = false
	}
	if fs.dev != nil {
		fs.dev.Destroy()
	}
	fs.log.Infof("fsim: shut down")
}

// CreateFile creates a new named inode and returns its inode number.
func (fs *Filesystem) CreateFile(name string) (uint64, error) {
	return fs.table.CreateNamed(name)
}

// Write writes buf to inodeNum at offset.
func (fs *Filesystem) Write(inodeNum uint64, buf []byte, offset int64) (int, error) {
	if !fs.mounted {
		return 0, ErrNotMounted
	}
	return fs.io.Write(inodeNum, buf, offset)
}

// Read reads into buf from inodeNum at offset.
func (fs *Filesystem) Read(inodeNum uint64, buf []byte, offset int64) (int, error) {
	return fs.io.Read(inodeNum, buf, offset)
}

// Inode returns the table's own record for inodeNum (not a copy), for
// inspection.
func (fs *Filesystem) Inode(inodeNum uint64) (*inode.Inode, error) {
	return fs.table.LookupByNum(inodeNum)
}

// InodeByName looks up an inode by its name.
func (fs *Filesystem) InodeByName(name string) (*inode.Inode, error) {
	return fs.table.LookupByName(name)
}

// ListFiles returns every inode currently in the table.
func (fs *Filesystem) ListFiles() []inode.Entry {
	return fs.table.ListAll()
}

// AGSummary returns a snapshot of one AG's free-space header.
func (fs *Filesystem) AGSummary(agID int) (xfs.AGF, error) {
	return fs.alloc.AGFSnapshot(agID)
}

// JournalQueueLength returns the journal's current advisory queue length.
func (fs *Filesystem) JournalQueueLength() int {
	return fs.journal.Len()
}

// CommitBarrier exposes the journal barrier for direct shell testing
// (spec §6's barrier_test command).
func (fs *Filesystem) CommitBarrier() error {
	return fs.journal.CommitBarrier()
}

// AddJournalItem exposes raw journal enqueue for direct shell testing.
func (fs *Filesystem) AddJournalItem(data []byte) error {
	return fs.journal.AddItem(data)
}
