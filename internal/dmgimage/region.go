package dmgimage

import "io"

// Region is the backing byte-addressable store the core reads from. It is the
// "RAM-disk extent table" collaborator: opaque, read-only from the core's point
// of view, and not assumed to be one contiguous buffer. A real implementation
// may be a scatter-gather table of allocated extents.
type Region interface {
	// ReadAt returns exactly length bytes starting at offset, or an error if the
	// range is not satisfiable.
	ReadAt(offset, length uint64) ([]byte, error)

	// Size reports the total addressable length of the region.
	Size() uint64
}

// Allocator creates and releases Regions. A concrete allocator lives outside
// this package (internal/ramdisk); the core only ever consumes the interface.
type Allocator interface {
	Allocate(size uint64) (Region, error)
}

// closeRegion releases region if it holds resources worth releasing.
func closeRegion(region Region) error {
	if closer, ok := region.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
