package dmgimage

import "fmt"

// ChunkType is the compression tag stored in a mish chunk record. Values match
// the real on-disk encoding used by Apple's UDIF format (see constants.go in
// the teacher's dmg handler).
type ChunkType uint32

const (
	ChunkZero       ChunkType = 0x00000000
	ChunkRaw        ChunkType = 0x00000001
	ChunkIgnore     ChunkType = 0x00000002
	ChunkComment    ChunkType = 0x7FFFFFFE
	ChunkZlib       ChunkType = 0x80000005
	ChunkTerminator ChunkType = 0xFFFFFFFF
)

// String implements fmt.Stringer for diagnostics.
func (t ChunkType) String() string {
	switch t {
	case ChunkZero:
		return "Zero"
	case ChunkRaw:
		return "Raw"
	case ChunkIgnore:
		return "Ignore"
	case ChunkComment:
		return "Comment"
	case ChunkZlib:
		return "Zlib"
	case ChunkTerminator:
		return "Terminator"
	default:
		return fmt.Sprintf("Unknown(0x%08x)", uint32(t))
	}
}

// recognized reports whether t is one of the chunk types this reader
// understands as a data-bearing chunk (spec.md §3: ZERO, IGNORE, RAW, ZLIB).
func (t ChunkType) recognized() bool {
	switch t {
	case ChunkZero, ChunkIgnore, ChunkRaw, ChunkZlib:
		return true
	default:
		return false
	}
}

// Chunk is one compressed-data record within a BlockDescriptor's chunk list.
type Chunk struct {
	Type        ChunkType
	Comment     uint32
	StartSector uint64 // relative to the owning block
	SectorCount uint64

	// CompressedOffset is absolute within the backing region: the on-disk,
	// block-relative offset already shifted by the trailer's data-fork offset
	// at parse time (spec.md §4.2's normalization).
	CompressedOffset uint64
	CompressedLength uint64
}
