// Package ramdisk provides a concrete backing region for dmgimage.Region: a
// byte-addressable store split across fixed-size extents, the way a real
// UEFI RAM-disk allocator hands out physically discontiguous pages rather
// than one contiguous buffer. This is the "Backing Region" / "allocator"
// collaborator that spec.md marks as external to the core reader; dmgimage
// only ever consumes it through the Region and Allocator interfaces.
package ramdisk

import (
	"fmt"

	"github.com/deploymenttheory/go-dmgcore/internal/dmgimage"
)

// defaultExtentSize mirrors the kind of page granularity a real RAM-disk
// allocator works in. It is a whole number of 512-byte sectors; tests pass
// small, unaligned extent sizes explicitly to exercise cross-extent reads.
const defaultExtentSize = 1 << 20 // 1 MiB

// ExtentTable is a Region backed by a sequence of independently allocated
// byte slices ("extents"). It implements dmgimage.Region and io.Closer.
type ExtentTable struct {
	extentSize uint64
	size       uint64
	extents    [][]byte
	closed     bool
}

// newExtentTable allocates an ExtentTable of the given total size, split into
// extentSize-sized chunks (the last one possibly shorter).
func newExtentTable(size, extentSize uint64) *ExtentTable {
	if extentSize == 0 {
		extentSize = defaultExtentSize
	}

	t := &ExtentTable{extentSize: extentSize, size: size}
	remaining := size
	for remaining > 0 {
		n := extentSize
		if n > remaining {
			n = remaining
		}
		t.extents = append(t.extents, make([]byte, n))
		remaining -= n
	}
	return t
}

// Size implements dmgimage.Region.
func (t *ExtentTable) Size() uint64 {
	return t.size
}

// ReadAt implements dmgimage.Region, gathering bytes across extent
// boundaries as needed.
func (t *ExtentTable) ReadAt(offset, length uint64) ([]byte, error) {
	if t.closed {
		return nil, fmt.Errorf("ramdisk: read from closed extent table")
	}

	end, ok := addOK(offset, length)
	if !ok || end > t.size {
		return nil, fmt.Errorf("ramdisk: read [%d,%d) out of bounds (size %d)", offset, end, t.size)
	}

	out := make([]byte, length)
	filled := uint64(0)
	pos := offset

	for filled < length {
		extentIdx := pos / t.extentSize
		extentOff := pos % t.extentSize
		extent := t.extents[extentIdx]

		n := uint64(len(extent)) - extentOff
		remaining := length - filled
		if n > remaining {
			n = remaining
		}

		copy(out[filled:filled+n], extent[extentOff:extentOff+n])
		filled += n
		pos += n
	}

	return out, nil
}

// WriteAt is used only by loaders populating the table; it is not part of
// dmgimage.Region, which is read-only from the core's perspective.
func (t *ExtentTable) WriteAt(offset uint64, data []byte) error {
	if t.closed {
		return fmt.Errorf("ramdisk: write to closed extent table")
	}

	end, ok := addOK(offset, uint64(len(data)))
	if !ok || end > t.size {
		return fmt.Errorf("ramdisk: write [%d,%d) out of bounds (size %d)", offset, end, t.size)
	}

	written := 0
	pos := offset
	for written < len(data) {
		extentIdx := pos / t.extentSize
		extentOff := pos % t.extentSize
		extent := t.extents[extentIdx]

		n := uint64(len(extent)) - extentOff
		remaining := uint64(len(data) - written)
		if n > remaining {
			n = remaining
		}

		copy(extent[extentOff:extentOff+n], data[written:written+int(n)])
		written += int(n)
		pos += n
	}

	return nil
}

// Close releases the extents. Safe to call more than once.
func (t *ExtentTable) Close() error {
	t.extents = nil
	t.closed = true
	return nil
}

func addOK(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}

// Allocator allocates ExtentTables of a fixed extent granularity.
type Allocator struct {
	ExtentSize uint64
}

// Allocate implements dmgimage.Allocator.
func (a Allocator) Allocate(size uint64) (dmgimage.Region, error) {
	return newExtentTable(size, a.ExtentSize), nil
}
