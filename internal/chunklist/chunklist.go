// Package chunklist is the concrete collaborator behind dmgimage's verifier
// adapter (spec.md §4.5): given the backing region, it hashes each declared
// chunk and compares against a list of expected digests. Chunklist parsing
// and verification are explicitly out of scope for the core reader. This
// package exists only so the adapter has something real to call, the way the
// teacher's dmg.Handler delegates its own CRC verification to a Checksum
// helper rather than inlining it.
package chunklist

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/deploymenttheory/go-dmgcore/internal/dmgimage"
)

// Entry is one chunklist record: the byte range it covers and the expected
// digest of that range.
type Entry struct {
	Offset uint64
	Length uint64
	Digest [32]byte
}

// Chunklist is a parsed list of expected per-range digests, hashed with
// SHA3-256 (golang.org/x/crypto/sha3, the algorithm the teacher's processor
// package already uses for its own content hashing).
type Chunklist struct {
	Entries []Entry
}

// Parse decodes a simple binary chunklist: a big-endian uint32 entry count
// followed by, per entry, offset (u64), length (u64), digest (32 bytes).
func Parse(data []byte) (*Chunklist, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("chunklist: data too short for header")
	}
	count := binary.BigEndian.Uint32(data)
	const entrySize = 8 + 8 + 32
	need := 4 + int(count)*entrySize
	if need > len(data) {
		return nil, fmt.Errorf("chunklist: data too short for %d entries", count)
	}

	entries := make([]Entry, count)
	for i := uint32(0); i < count; i++ {
		off := 4 + int(i)*entrySize
		e := Entry{
			Offset: binary.BigEndian.Uint64(data[off:]),
			Length: binary.BigEndian.Uint64(data[off+8:]),
		}
		copy(e.Digest[:], data[off+16:off+16+32])
		entries[i] = e
	}

	return &Chunklist{Entries: entries}, nil
}

// Verify implements dmgimage.ChunklistVerifier: it re-hashes every declared
// range from region and compares against the recorded digest. A single
// mismatch fails the whole verification, matching spec.md §4.5's pass/fail
// contract.
func (c *Chunklist) Verify(region dmgimage.Region) (bool, error) {
	for _, e := range c.Entries {
		data, err := region.ReadAt(e.Offset, e.Length)
		if err != nil {
			return false, fmt.Errorf("chunklist: reading range [%d,%d): %w", e.Offset, e.Offset+e.Length, err)
		}
		if sha3.Sum256(data) != e.Digest {
			return false, nil
		}
	}
	return true, nil
}
