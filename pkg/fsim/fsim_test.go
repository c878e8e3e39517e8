package fsim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ironwood-labs/xfsim/pkg/inode"
	"github.com/ironwood-labs/xfsim/pkg/xfs"
)

func newTestFS(t *testing.T) *Filesystem {
	t.Helper()
	fs := New(WithFlushDelay(0))
	require.NoError(t, fs.Format(int64(xfs.NumAGs)*xfs.AGSize))
	require.NoError(t, fs.Mount())
	t.Cleanup(fs.Shutdown)
	return fs
}

func TestFormatMountCreateWriteRead(t *testing.T) {
	fs := newTestFS(t)

	num, err := fs.CreateFile("a.txt")
	require.NoError(t, err)

	n, err := fs.Write(num, []byte("hello"), 0)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = fs.Read(num, buf, 0)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))

	ino, err := fs.Inode(num)
	require.NoError(t, err)
	require.Equal(t, int64(5), ino.Size)
	require.Equal(t, 1, ino.ExtentCount)
	require.Equal(t, int64(1), ino.Extents[0].BlockCount)
}

func TestDoubleMountFails(t *testing.T) {
	fs := New(WithFlushDelay(0))
	require.NoError(t, fs.Format(int64(xfs.NumAGs)*xfs.AGSize))
	require.NoError(t, fs.Mount())
	defer fs.Shutdown()

	require.ErrorIs(t, fs.Mount(), ErrAlreadyMounted)
}

func TestBarrierDrainsPriorEntriesBeforeDataWrite(t *testing.T) {
	fs := New(WithFlushDelay(30 * time.Millisecond))
	require.NoError(t, fs.Format(int64(xfs.NumAGs)*xfs.AGSize))
	require.NoError(t, fs.Mount())
	defer fs.Shutdown()

	require.NoError(t, fs.AddJournalItem([]byte("pre-1")))
	require.NoError(t, fs.AddJournalItem([]byte("pre-2")))

	num, err := fs.CreateFile("b.txt")
	require.NoError(t, err)

	start := time.Now()
	n, err := fs.Write(num, []byte("data"), 0)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	elapsed := time.Since(start)

	// The write's own barrier can only be released after "pre-1", "pre-2",
	// the allocation's metadata entry, and the write's barrier itself have
	// all been drained by the worker.
	require.GreaterOrEqual(t, elapsed, 4*30*time.Millisecond)
	require.Zero(t, fs.JournalQueueLength())
}

func TestConcurrentAllocationAcrossAGs(t *testing.T) {
	fs := newTestFS(t)

	type result struct {
		ag   int
		free uint32
	}

	done := make(chan result, xfs.NumAGs)
	for ag := 0; ag < xfs.NumAGs; ag++ {
		ag := ag
		go func() {
			num, err := fs.CreateFile("")
			if err != nil {
				done <- result{ag: ag}
				return
			}
			for i := 0; i < 100; i++ {
				_, _ = fs.Write(num, []byte{byte(i)}, int64(i)*xfs.BlockSize)
			}
			agf, _ := fs.AGSummary(ag)
			done <- result{ag: ag, free: agf.FreeBlocks}
		}()
	}

	var total uint32
	for i := 0; i < xfs.NumAGs; i++ {
		<-done
	}
	for ag := 0; ag < xfs.NumAGs; ag++ {
		agf, err := fs.AGSummary(ag)
		require.NoError(t, err)
		total += agf.FreeBlocks
	}

	// Each of the NumAGs inodes attempted 100 single-block writes at logical
	// offsets 0..99*BlockSize. Only the first MaxExtents of them map a
	// block; every later write fails with ErrExtentLimit and returns its
	// freshly allocated block to its AG. The aggregate free-block drop
	// across all AGs is therefore NumAGs*MaxExtents, regardless of which
	// inode drove which AG's allocations.
	require.Equal(t, uint32(xfs.NumAGs*xfs.UsableSlots-xfs.NumAGs*inode.MaxExtents), total)
}
