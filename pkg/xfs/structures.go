// Package xfs defines the on-disk layout of the simulated filesystem: the
// superblock, per-AG free-space (AGF) and inode (AGI) headers, their magic
// numbers, and the byte-offset arithmetic that locates them on the
// simulated block device.
package xfs

import "encoding/binary"

const (
	// SBMagicNumber identifies the superblock record ("XFSB").
	SBMagicNumber = 0x58465342
	// AGFMagicNumber identifies an AG free-space header ("XAGF").
	AGFMagicNumber = 0x58414746
	// AGIMagicNumber identifies an AG inode header ("XAGI").
	AGIMagicNumber = 0x58414749

	// VersionNumber is the on-disk format version this simulator writes.
	VersionNumber = 4

	// BlockSize is the fixed block size in bytes.
	BlockSize = 4096
	// NumAGs is the fixed allocation group count.
	NumAGs = 10
	// AGSize is the fixed byte size of one allocation group (10 MiB).
	AGSize = 10 * 1024 * 1024
	// AGBlocks is AGSize expressed in blocks.
	AGBlocks = AGSize / BlockSize
	// BitmapSlots is the number of bitmap entries the allocator manages
	// per AG. See DESIGN.md open question 1: chosen equal to AGF.Length
	// so the reconciled free-block count is internally consistent.
	BitmapSlots = 2400
	// ReservedSlots is the number of low bitmap slots permanently used by
	// the AGF/AGI headers themselves (slots 0 and 1).
	ReservedSlots = 2
	// UsableSlots is BitmapSlots minus the reserved header slots.
	UsableSlots = BitmapSlots - ReservedSlots

	agfOffsetInAG = 0
	agiOffsetInAG = BlockSize
)

// AGOffset returns the absolute byte offset of allocation group id on the
// simulated device.
func AGOffset(agID int) int64 {
	return int64(agID) * AGSize
}

// AGFOffset returns the absolute byte offset of the AGF header for agID.
func AGFOffset(agID int) int64 {
	return AGOffset(agID) + agfOffsetInAG
}

// AGIOffset returns the absolute byte offset of the AGI header for agID.
func AGIOffset(agID int) int64 {
	return AGOffset(agID) + agiOffsetInAG
}

// SuperBlock is the device-wide descriptor written at byte 0.
type SuperBlock struct {
	Magic       uint32
	BlockSize   uint32
	DataBlocks  uint64
	AGCount     uint32
	VersionNum  uint32
	UUID        [16]byte
}

// superBlockSize is the fixed encoded length of a SuperBlock record.
const superBlockSize = 4 + 4 + 8 + 4 + 4 + 16

// Encode serializes sb into its fixed-width little-endian on-disk form.
func (sb *SuperBlock) Encode() []byte {
	buf := make([]byte, superBlockSize)
	binary.LittleEndian.PutUint32(buf[0:], sb.Magic)
	binary.LittleEndian.PutUint32(buf[4:], sb.BlockSize)
	binary.LittleEndian.PutUint64(buf[8:], sb.DataBlocks)
	binary.LittleEndian.PutUint32(buf[16:], sb.AGCount)
	binary.LittleEndian.PutUint32(buf[20:], sb.VersionNum)
	copy(buf[24:40], sb.UUID[:])
	return buf
}

// DecodeSuperBlock parses a SuperBlock from its on-disk form.
func DecodeSuperBlock(buf []byte) SuperBlock {
	var sb SuperBlock
	sb.Magic = binary.LittleEndian.Uint32(buf[0:])
	sb.BlockSize = binary.LittleEndian.Uint32(buf[4:])
	sb.DataBlocks = binary.LittleEndian.Uint64(buf[8:])
	sb.AGCount = binary.LittleEndian.Uint32(buf[16:])
	sb.VersionNum = binary.LittleEndian.Uint32(buf[20:])
	copy(sb.UUID[:], buf[24:40])
	return sb
}

// SuperBlockSize returns the encoded length of a SuperBlock record.
func SuperBlockSize() int { return superBlockSize }

// AGF is the per-AG free-space header: magic, AG length in blocks, free
// block count, the (approximate) longest free run, and the slot bitmap.
type AGF struct {
	Magic      uint32
	Length     uint32
	FreeBlocks uint32
	Longest    uint32
	Bitmap     [BitmapSlots]byte // 0 = free, 1 = used
}

// agfHeaderSize is the encoded length of the AGF fields preceding the
// bitmap (magic, length, freeblocks, longest).
const agfHeaderSize = 4 + 4 + 4 + 4

// AGFSize is the fixed encoded length of an AGF record, header + bitmap.
const AGFSize = agfHeaderSize + BitmapSlots

// Encode serializes agf into its on-disk form.
func (agf *AGF) Encode() []byte {
	buf := make([]byte, AGFSize)
	binary.LittleEndian.PutUint32(buf[0:], agf.Magic)
	binary.LittleEndian.PutUint32(buf[4:], agf.Length)
	binary.LittleEndian.PutUint32(buf[8:], agf.FreeBlocks)
	binary.LittleEndian.PutUint32(buf[12:], agf.Longest)
	copy(buf[agfHeaderSize:], agf.Bitmap[:])
	return buf
}

// DecodeAGF parses an AGF from its on-disk form.
func DecodeAGF(buf []byte) AGF {
	var agf AGF
	agf.Magic = binary.LittleEndian.Uint32(buf[0:])
	agf.Length = binary.LittleEndian.Uint32(buf[4:])
	agf.FreeBlocks = binary.LittleEndian.Uint32(buf[8:])
	agf.Longest = binary.LittleEndian.Uint32(buf[12:])
	copy(agf.Bitmap[:], buf[agfHeaderSize:agfHeaderSize+BitmapSlots])
	return agf
}

// AGI is the per-AG inode header.
type AGI struct {
	Magic     uint32
	Count     uint32
	Root      uint32
	FreeCount uint32
}

// AGISize is the fixed encoded length of an AGI record.
const AGISize = 4 + 4 + 4 + 4

// Encode serializes agi into its on-disk form.
func (agi *AGI) Encode() []byte {
	buf := make([]byte, AGISize)
	binary.LittleEndian.PutUint32(buf[0:], agi.Magic)
	binary.LittleEndian.PutUint32(buf[4:], agi.Count)
	binary.LittleEndian.PutUint32(buf[8:], agi.Root)
	binary.LittleEndian.PutUint32(buf[12:], agi.FreeCount)
	return buf
}

// DecodeAGI parses an AGI from its on-disk form.
func DecodeAGI(buf []byte) AGI {
	var agi AGI
	agi.Magic = binary.LittleEndian.Uint32(buf[0:])
	agi.Count = binary.LittleEndian.Uint32(buf[4:])
	agi.Root = binary.LittleEndian.Uint32(buf[8:])
	agi.FreeCount = binary.LittleEndian.Uint32(buf[12:])
	return agi
}
