// Package inode implements the flat in-memory inode table and its
// name index — the simplified stand-in for a real directory structure,
// which spec §1 puts out of scope ("a flat mapping from name to inode
// number").
package inode

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// MaxExtents is the fixed per-inode extent-list capacity.
const MaxExtents = 16

// MaxInodes is the fixed capacity of the inode table.
const MaxInodes = 128

// MaxNameLength is the longest name a CreateNamed call will accept.
const MaxNameLength = 63

// ErrExtentLimit is returned when an inode already holds MaxExtents
// extents and another is appended.
var ErrExtentLimit = errors.New("inode: extent limit reached")

// ErrTableFull is returned when the inode table has no free slots left.
var ErrTableFull = errors.New("inode: table full")

// ErrNotFound is returned by lookups that find nothing.
var ErrNotFound = errors.New("inode: not found")

// ErrNameTooLong is returned by CreateNamed when name exceeds MaxNameLength.
var ErrNameTooLong = errors.New("inode: name too long")

// Extent is one contiguous run of physical blocks mapped to a contiguous
// logical block range, AG-relative (see DESIGN.md open question 3).
type Extent struct {
	LogicalStart  int64
	PhysicalStart int64
	AG            int
	BlockCount    int64
}

// Covers reports whether logical block l falls within this extent.
func (e Extent) Covers(l int64) bool {
	return l >= e.LogicalStart && l < e.LogicalStart+e.BlockCount
}

// Inode is a fixed-capacity per-file metadata record.
type Inode struct {
	Num   uint64
	Mode  uint16
	UID   uint32
	GID   uint32
	Nlink uint32
	Size  int64

	ExtentCount int
	Extents     [MaxExtents]Extent
}

// FindExtent returns the first extent covering logical block l, or nil.
func (ino *Inode) FindExtent(l int64) *Extent {
	for i := 0; i < ino.ExtentCount; i++ {
		if ino.Extents[i].Covers(l) {
			return &ino.Extents[i]
		}
	}
	return nil
}

// AppendExtent adds e to the inode's extent list, failing with
// ErrExtentLimit once MaxExtents is reached.
func (ino *Inode) AppendExtent(e Extent) error {
	if ino.ExtentCount >= MaxExtents {
		return ErrExtentLimit
	}
	ino.Extents[ino.ExtentCount] = e
	ino.ExtentCount++
	return nil
}

// Table is the flat inode array plus its name index. Inode 0 is the
// sentinel "nonexistent" entry; real inodes start at 1.
type Table struct {
	mu sync.Mutex

	maxInodeNum uint64
	inodes      map[uint64]*Inode
	names       map[uint64]string
	byName      map[string]uint64
}

// New returns an empty, ready-to-use Table.
func New() *Table {
	return &Table{
		inodes: make(map[uint64]*Inode),
		names:  make(map[uint64]string),
		byName: make(map[string]uint64),
	}
}

// CreateNamed allocates a new inode, names it (or auto-names it
// unnamed_<n> if name is empty), and returns its inode number.
func (t *Table) CreateNamed(name string) (uint64, error) {
	if len(name) > MaxNameLength {
		return 0, ErrNameTooLong
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.maxInodeNum >= MaxInodes-1 {
		return 0, ErrTableFull
	}

	t.maxInodeNum++
	num := t.maxInodeNum

	if name == "" {
		name = fmt.Sprintf("unnamed_%d", num)
	}

	t.inodes[num] = &Inode{Num: num, Nlink: 1}
	t.names[num] = name
	t.byName[name] = num

	return num, nil
}

// LookupByNum returns the inode with the given number.
func (t *Table) LookupByNum(num uint64) (*Inode, error) {
	if num == 0 {
		return nil, ErrNotFound
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	ino, ok := t.inodes[num]
	if !ok {
		return nil, ErrNotFound
	}
	return ino, nil
}

// NumByName returns the inode number associated with name.
func (t *Table) NumByName(name string) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	num, ok := t.byName[name]
	if !ok {
		return 0, ErrNotFound
	}
	return num, nil
}

// LookupByName returns the inode associated with name.
func (t *Table) LookupByName(name string) (*Inode, error) {
	num, err := t.NumByName(name)
	if err != nil {
		return nil, err
	}
	return t.LookupByNum(num)
}

// NameOf returns the name recorded for inode num.
func (t *Table) NameOf(num uint64) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	name, ok := t.names[num]
	if !ok {
		return "", ErrNotFound
	}
	return name, nil
}

// Entry pairs an inode number with its name, for ListAll.
type Entry struct {
	Num  uint64
	Name string
}

// ListAll returns every inode currently in the table, ordered by inode
// number.
func (t *Table) ListAll() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := make([]Entry, 0, len(t.inodes))
	for num, name := range t.names {
		entries = append(entries, Entry{Num: num, Name: name})
	}
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].Num > entries[j].Num; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
	return entries
}

// WithInode runs fn with exclusive access to the inode numbered num,
// holding the table-wide lock for the duration. This is how fileio
// satisfies spec §5's requirement that extent-list mutation (and, for
// consistency, inode reads racing against it) have exclusive access to
// the inode: the reference treats the table as effectively single-writer,
// and a coarse table-wide lock is the simplest implementation that
// actually serializes concurrent writers to the same inode.
func (t *Table) WithInode(num uint64, fn func(*Inode) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ino, ok := t.inodes[num]
	if !ok {
		return ErrNotFound
	}
	return fn(ino)
}
