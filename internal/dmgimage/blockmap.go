package dmgimage

import (
	"fmt"
	"sort"

	"howett.net/plist"
)

// mishMagic is the 4-byte magic at the start of each binary mish block record.
const mishMagic = 0x6D697368 // "mish"

const (
	mishHeaderSize = 0xD0 // bytes before the chunk record array
	mishChunkSize  = 40   // bytes per chunk record
)

// BlockDescriptor is one mish entry: a contiguous sector range made of chunks.
// Mirrors spec.md §3's Block Descriptor.
type BlockDescriptor struct {
	Version        uint32
	StartSector    uint64
	SectorCount    uint64
	DataForkBias   uint64
	BuffersNeeded  uint32
	DescriptorID   uint32
	Checksum       checksumRecord
	Chunks         []Chunk
	Name           string // advisory, from the plist's Name/CFName key
}

// plistRoot mirrors the on-disk property list structure (spec.md §4.2):
// a root dict with a resource-fork dict containing a blkx array.
type plistRoot struct {
	ResourceFork struct {
		Blkx []blkxEntry `plist:"blkx"`
	} `plist:"resource-fork"`
}

type blkxEntry struct {
	ID     string `plist:"ID"`
	Name   string `plist:"Name"`
	CFName string `plist:"CFName,omitempty"`
	Data   []byte `plist:"Data"`
}

// parseBlockMap decodes the XML descriptor and every embedded mish block,
// producing the flat ordered block-descriptor sequence spec.md §4.2 describes.
// trailer carries the data-fork bounds every chunk's compressed range is
// cross-validated against.
func parseBlockMap(xmlData []byte, trailer *Trailer) ([]BlockDescriptor, error) {
	var root plistRoot
	if _, err := plist.Unmarshal(xmlData, &root); err != nil {
		return nil, fmt.Errorf("%w: plist decode: %v", ErrMalformedDescriptor, err)
	}
	if len(root.ResourceFork.Blkx) == 0 {
		return nil, fmt.Errorf("%w: no blkx entries in resource-fork", ErrMalformedDescriptor)
	}

	blocks := make([]BlockDescriptor, 0, len(root.ResourceFork.Blkx))
	for _, entry := range root.ResourceFork.Blkx {
		name := entry.Name
		if name == "" {
			name = entry.CFName
		}

		block, err := parseMishBlock(entry.Data, trailer)
		if err != nil {
			return nil, err
		}
		block.Name = name
		blocks = append(blocks, block)
	}

	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].StartSector < blocks[j].StartSector
	})

	if err := validateCoverage(blocks, trailer.SectorCount); err != nil {
		return nil, err
	}

	return blocks, nil
}

// parseMishBlock decodes one binary mish record and its chunk list, per
// spec.md §4.2's exact byte layout, normalizing and validating every chunk.
func parseMishBlock(data []byte, trailer *Trailer) (BlockDescriptor, error) {
	if len(data) < mishHeaderSize {
		return BlockDescriptor{}, fmt.Errorf("%w: mish record too short (%d bytes)", ErrMalformedDescriptor, len(data))
	}
	if getBE32(data, 0x00) != mishMagic {
		return BlockDescriptor{}, fmt.Errorf("%w: bad mish magic", ErrMalformedDescriptor)
	}

	block := BlockDescriptor{
		Version:       getBE32(data, 0x04),
		StartSector:   getBE64(data, 0x08),
		SectorCount:   getBE64(data, 0x10),
		DataForkBias:  getBE64(data, 0x18),
		BuffersNeeded: getBE32(data, 0x20),
		DescriptorID:  getBE32(data, 0x24),
	}
	block.Checksum.Type = getBE32(data, 0x40)
	block.Checksum.NumBits = getBE32(data, 0x44)
	copy(block.Checksum.Data[:], data[0x48:0x48+len(block.Checksum.Data)])

	chunkCount := getBE32(data, 0xCC)
	need := mishHeaderSize + int(chunkCount)*mishChunkSize
	if need > len(data) {
		return BlockDescriptor{}, fmt.Errorf("%w: mish record too short for %d chunks", ErrMalformedDescriptor, chunkCount)
	}

	// The stored chunk slice holds only data-bearing chunks (ZERO, IGNORE, RAW,
	// ZLIB) in on-disk order; COMMENT records are advisory and dropped, and the
	// TERMINATOR is checked for but not retained, the way the teacher's
	// File.Parse skips MethodComment and stops at MethodEnd.
	chunks := make([]Chunk, 0, chunkCount)
	var sectorSum uint64
	sawTerminator := false

	for i := uint32(0); i < chunkCount; i++ {
		off := mishHeaderSize + int(i)*mishChunkSize
		chunk := Chunk{
			Type:             ChunkType(getBE32(data, off+0x00)),
			Comment:          getBE32(data, off+0x04),
			StartSector:      getBE64(data, off+0x08),
			SectorCount:      getBE64(data, off+0x10),
			CompressedOffset: getBE64(data, off+0x18),
			CompressedLength: getBE64(data, off+0x20),
		}

		if chunk.Type == ChunkTerminator {
			if i != chunkCount-1 {
				return BlockDescriptor{}, fmt.Errorf("%w: terminator is not the last chunk record", ErrMalformedDescriptor)
			}
			sawTerminator = true
			break
		}
		if chunk.Type == ChunkComment {
			continue
		}
		if !chunk.Type.recognized() {
			return BlockDescriptor{}, fmt.Errorf("%w: chunk type %s", ErrUnsupported, chunk.Type)
		}

		if _, ok := MulU64(chunk.SectorCount, SectorSize); !ok {
			return BlockDescriptor{}, fmt.Errorf("%w: chunk byte size overflow", ErrOverflow)
		}

		if chunk.StartSector != sectorSum {
			return BlockDescriptor{}, fmt.Errorf("%w: chunk gap/overlap at relative sector %d (chunk starts at %d)", ErrMalformedDescriptor, sectorSum, chunk.StartSector)
		}

		if chunk.Type == ChunkRaw || chunk.Type == ChunkZlib {
			shifted, ok := AddU64(chunk.CompressedOffset, trailer.DataForkOffset)
			if !ok {
				return BlockDescriptor{}, fmt.Errorf("%w: compressed offset overflow", ErrOverflow)
			}
			chunk.CompressedOffset = shifted

			top, ok := AddU64(chunk.CompressedOffset, chunk.CompressedLength)
			if !ok {
				return BlockDescriptor{}, fmt.Errorf("%w: compressed range overflow", ErrOverflow)
			}
			dataForkTop, ok := AddU64(trailer.DataForkOffset, trailer.DataForkLength)
			if !ok {
				return BlockDescriptor{}, fmt.Errorf("%w: data fork range overflow", ErrOverflow)
			}
			if chunk.CompressedOffset < trailer.DataForkOffset || top > dataForkTop {
				return BlockDescriptor{}, fmt.Errorf("%w: chunk compressed range outside data fork", ErrMalformedDescriptor)
			}
		}

		sectorSum += chunk.SectorCount
		chunks = append(chunks, chunk)
	}

	if !sawTerminator {
		return BlockDescriptor{}, fmt.Errorf("%w: chunk list missing terminator", ErrMalformedDescriptor)
	}
	if sectorSum != block.SectorCount {
		return BlockDescriptor{}, fmt.Errorf("%w: chunk sectors (%d) != block sector count (%d)", ErrMalformedDescriptor, sectorSum, block.SectorCount)
	}

	block.Chunks = chunks
	return block, nil
}

// validateCoverage checks that the union of every block's sector range tiles
// [0, sectorCount) with no gaps or overlaps (spec.md §8 invariant 2), resolving
// the contiguity open question as strict (see DESIGN.md).
func validateCoverage(blocks []BlockDescriptor, sectorCount uint64) error {
	var cursor uint64
	for _, b := range blocks {
		if b.StartSector != cursor {
			return fmt.Errorf("%w: block gap/overlap at sector %d (block starts at %d)", ErrMalformedDescriptor, cursor, b.StartSector)
		}
		top, ok := AddU64(b.StartSector, b.SectorCount)
		if !ok {
			return fmt.Errorf("%w: block sector range overflow", ErrOverflow)
		}
		cursor = top
	}
	if cursor != sectorCount {
		return fmt.Errorf("%w: blocks cover %d sectors, trailer declares %d", ErrMalformedDescriptor, cursor, sectorCount)
	}
	return nil
}
