package dmgimage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// SectorSize is fixed by the DMG format (spec.md §3).
const SectorSize = 512

// Read fills dst with the bytes covering [lba, lba+len(dst)/SectorSize)
// sectors, actually, in bytes: it fills exactly len(dst) bytes starting at
// the given LBA, which need not be sector-aligned in length. Precondition:
// lba < c.SectorCount(). Implements the chunk-iteration loop of spec.md §4.4.
func (c *Context) Read(lba uint64, dst []byte) error {
	if lba >= c.sectorCount {
		return fmt.Errorf("%w: lba %d >= sector count %d", ErrPrecondition, lba, c.sectorCount)
	}

	curLBA := lba
	remaining := uint64(len(dst))
	cursor := 0

	for remaining > 0 {
		blockIdx, chunkIdx, err := c.locate(curLBA)
		if err != nil {
			return err
		}
		block := &c.blocks[blockIdx]
		chunk := &block.Chunks[chunkIdx]

		chunkAbsStart := block.StartSector + chunk.StartSector
		lbaOffsetInChunk := curLBA - chunkAbsStart
		sectorsLeftInChunk := chunk.SectorCount - lbaOffsetInChunk

		chunkTotalBytes, ok := MulU64(chunk.SectorCount, SectorSize)
		if !ok {
			return fmt.Errorf("%w: chunk total bytes overflow", ErrOverflow)
		}
		byteOffsetInChunk, ok := MulU64(lbaOffsetInChunk, SectorSize)
		if !ok {
			return fmt.Errorf("%w: byte offset overflow", ErrOverflow)
		}
		bytesLeftInChunk := chunkTotalBytes - byteOffsetInChunk

		take := remaining
		if bytesLeftInChunk < take {
			take = bytesLeftInChunk
		}

		if err := c.materialize(blockIdx, chunkIdx, chunk, byteOffsetInChunk, take, dst[cursor:cursor+int(take)]); err != nil {
			return err
		}

		remaining -= take
		cursor += int(take)
		// Advance by the sectors remaining in the chunk, not by the bytes just
		// written. spec.md §4.4 requires this exact shape; it only agrees with
		// a byte-accurate advance when take == bytesLeftInChunk, which is always
		// true except on the last, partial iteration, where the loop exits
		// before the mismatch would matter.
		curLBA += sectorsLeftInChunk
	}

	return nil
}

// materialize produces take bytes of chunk's decompressed content starting at
// byteOffset, into dst, dispatching on chunk type per spec.md §4.4.
func (c *Context) materialize(blockIdx, chunkIdx int, chunk *Chunk, byteOffset, take uint64, dst []byte) error {
	switch chunk.Type {
	case ChunkZero, ChunkIgnore:
		for i := range dst {
			dst[i] = 0
		}
		return nil

	case ChunkRaw:
		start, ok := AddU64(chunk.CompressedOffset, byteOffset)
		if !ok {
			return fmt.Errorf("%w: raw read offset overflow", ErrOverflow)
		}
		raw, err := c.region.ReadAt(start, take)
		if err != nil {
			return fmt.Errorf("%w: raw chunk read: %v", ErrBackingIO, err)
		}
		copy(dst, raw)
		return nil

	case ChunkZlib:
		decompressed, err := c.decompressChunk(blockIdx, chunkIdx, chunk)
		if err != nil {
			return err
		}
		if byteOffset+take > uint64(len(decompressed)) {
			return fmt.Errorf("%w: decompressed chunk shorter than requested range", ErrDecompression)
		}
		copy(dst, decompressed[byteOffset:byteOffset+take])
		return nil

	default:
		logUnsupported(chunk.Type)
		return fmt.Errorf("%w: chunk type %s", ErrUnsupported, chunk.Type)
	}
}

// decompressChunk returns the fully decompressed bytes of a ZLIB chunk,
// consulting (and populating) the last-decompressed-chunk cache first. The
// scratch buffer used for the compressed input is scoped to this call and
// released on every exit path, including failure (spec.md §9).
func (c *Context) decompressChunk(blockIdx, chunkIdx int, chunk *Chunk) ([]byte, error) {
	key := chunkCacheKey{block: blockIdx, chunk: chunkIdx}
	if c.decompressed != nil {
		if cached, ok := c.decompressed.Get(key); ok {
			return cached, nil
		}
	}

	chunkTotalBytes, ok := MulU64(chunk.SectorCount, SectorSize)
	if !ok {
		return nil, fmt.Errorf("%w: chunk total bytes overflow", ErrOverflow)
	}

	compressed, err := c.region.ReadAt(chunk.CompressedOffset, chunk.CompressedLength)
	if err != nil {
		return nil, fmt.Errorf("%w: reading compressed chunk: %v", ErrBackingIO, err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: opening zlib stream: %v", ErrDecompression, err)
	}
	defer zr.Close()

	decompressed := make([]byte, chunkTotalBytes)
	n, err := io.ReadFull(zr, decompressed)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("%w: zlib decompress: %v", ErrDecompression, err)
	}
	if uint64(n) != chunkTotalBytes {
		return nil, fmt.Errorf("%w: decompressed %d bytes, want %d", ErrDecompression, n, chunkTotalBytes)
	}

	// Confirm the stream does not produce more bytes than declared.
	var extra [1]byte
	if m, _ := zr.Read(extra[:]); m > 0 {
		return nil, fmt.Errorf("%w: decompressed chunk longer than declared size", ErrDecompression)
	}

	if c.decompressed != nil {
		c.decompressed.Add(key, decompressed)
	}

	return decompressed, nil
}
