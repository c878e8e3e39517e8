package xfs

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func TestSuperBlockEncodeDecodeRoundTrip(t *testing.T) {
	id := uuid.New()
	var raw [16]byte
	copy(raw[:], id[:])

	want := SuperBlock{
		Magic:      SBMagicNumber,
		BlockSize:  BlockSize,
		DataBlocks: NumAGs * AGBlocks,
		AGCount:    NumAGs,
		VersionNum: VersionNumber,
		UUID:       raw,
	}

	got := DecodeSuperBlock(want.Encode())
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("superblock round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestAGFEncodeDecodeRoundTrip(t *testing.T) {
	want := AGF{
		Magic:      AGFMagicNumber,
		Length:     BitmapSlots,
		FreeBlocks: UsableSlots,
		Longest:    UsableSlots,
	}
	want.Bitmap[0] = 1
	want.Bitmap[1] = 1
	want.Bitmap[500] = 1

	got := DecodeAGF(want.Encode())
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("agf round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestAGIEncodeDecodeRoundTrip(t *testing.T) {
	want := AGI{Magic: AGIMagicNumber, Count: 3, Root: 2, FreeCount: 1}

	got := DecodeAGI(want.Encode())
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("agi round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestOffsetArithmetic(t *testing.T) {
	if got := AGOffset(2); got != 2*AGSize {
		t.Errorf("AGOffset(2) = %d, want %d", got, 2*AGSize)
	}
	if got := AGFOffset(2); got != AGOffset(2) {
		t.Errorf("AGFOffset(2) = %d, want %d", got, AGOffset(2))
	}
	if got := AGIOffset(2); got != AGOffset(2)+BlockSize {
		t.Errorf("AGIOffset(2) = %d, want %d", got, AGOffset(2)+BlockSize)
	}
}
