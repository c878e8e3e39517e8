package inode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateNamedAssignsSequentialNumbers(t *testing.T) {
	tbl := New()

	n1, err := tbl.CreateNamed("a.txt")
	require.NoError(t, err)
	require.Equal(t, uint64(1), n1)

	n2, err := tbl.CreateNamed("b.txt")
	require.NoError(t, err)
	require.Equal(t, uint64(2), n2)
}

func TestCreateNamedAutoNames(t *testing.T) {
	tbl := New()

	n, err := tbl.CreateNamed("")
	require.NoError(t, err)

	name, err := tbl.NameOf(n)
	require.NoError(t, err)
	require.Equal(t, "unnamed_1", name)
}

func TestLookupByNameAndNum(t *testing.T) {
	tbl := New()
	n, err := tbl.CreateNamed("a.txt")
	require.NoError(t, err)

	byName, err := tbl.LookupByName("a.txt")
	require.NoError(t, err)
	require.Equal(t, n, byName.Num)

	byNum, err := tbl.LookupByNum(n)
	require.NoError(t, err)
	require.Equal(t, byName, byNum)
}

func TestLookupNonexistentInodeZero(t *testing.T) {
	tbl := New()
	_, err := tbl.LookupByNum(0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNameTooLong(t *testing.T) {
	tbl := New()
	long := make([]byte, MaxNameLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err := tbl.CreateNamed(string(long))
	require.ErrorIs(t, err, ErrNameTooLong)
}

func TestListAllOrderedByNumber(t *testing.T) {
	tbl := New()
	_, _ = tbl.CreateNamed("c")
	_, _ = tbl.CreateNamed("a")
	_, _ = tbl.CreateNamed("b")

	entries := tbl.ListAll()
	require.Len(t, entries, 3)
	for i := 0; i < len(entries)-1; i++ {
		require.Less(t, entries[i].Num, entries[i+1].Num)
	}
}

func TestAppendExtentRespectsLimit(t *testing.T) {
	ino := &Inode{}
	for i := 0; i < MaxExtents; i++ {
		require.NoError(t, ino.AppendExtent(Extent{LogicalStart: int64(i), BlockCount: 1}))
	}
	require.ErrorIs(t, ino.AppendExtent(Extent{LogicalStart: MaxExtents, BlockCount: 1}), ErrExtentLimit)
}

func TestFindExtentCoversRange(t *testing.T) {
	ino := &Inode{}
	require.NoError(t, ino.AppendExtent(Extent{LogicalStart: 5, PhysicalStart: 100, BlockCount: 3}))

	require.Nil(t, ino.FindExtent(4))
	require.NotNil(t, ino.FindExtent(5))
	require.NotNil(t, ino.FindExtent(7))
	require.Nil(t, ino.FindExtent(8))
}

func TestWithInodeExclusiveAccess(t *testing.T) {
	tbl := New()
	n, err := tbl.CreateNamed("x")
	require.NoError(t, err)

	err = tbl.WithInode(n, func(ino *Inode) error {
		ino.Size = 42
		return nil
	})
	require.NoError(t, err)

	ino, err := tbl.LookupByNum(n)
	require.NoError(t, err)
	require.Equal(t, int64(42), ino.Size)
}
