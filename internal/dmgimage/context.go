package dmgimage

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/deploymenttheory/go-dmgcore/internal/logger"
)

// chunkCacheDefaultSize bounds the last-decompressed-chunk cache (spec.md
// §4.4/§9: caching is an optional accelerator, never required for correctness,
// so this stays small).
const chunkCacheDefaultSize = 8

// chunkCacheKey identifies a decompressed chunk by its position in the flat
// block map.
type chunkCacheKey struct {
	block int
	chunk int
}

// Context is the core handle: it owns the parsed block map and holds a
// borrowed reference to the backing region. Mirrors spec.md §3's Context and
// the teacher's Handler.
type Context struct {
	region      Region
	ownsRegion  bool
	sectorCount uint64
	blocks      []BlockDescriptor

	decompressed *lru.Cache[chunkCacheKey, []byte]
}

// Option configures optional, non-semantic behavior of a Context (cache
// sizing and the like). The zero value of every Option-bearing constructor
// matches spec.md's defaults.
type Option func(*contextOptions)

type contextOptions struct {
	cacheSize int
}

// WithChunkCacheSize overrides the default last-decompressed-chunk cache
// size (spec.md §4.4/§9 treats caching as a pure accelerator, so any
// positive size is valid). Non-positive values fall back to the default.
func WithChunkCacheSize(n int) Option {
	return func(o *contextOptions) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}

// NewContextFromRegion is the first construction path of spec.md §4.6: build a
// context directly from an already-populated region of the given size.
func NewContextFromRegion(region Region, size uint64, opts ...Option) (*Context, error) {
	trailer, err := parseTrailer(region, size)
	if err != nil {
		return nil, err
	}

	xmlData, err := region.ReadAt(trailer.XMLOffset, trailer.XMLLength)
	if err != nil {
		return nil, fmt.Errorf("%w: reading xml descriptor: %v", ErrBackingIO, err)
	}

	blocks, err := parseBlockMap(xmlData, trailer)
	if err != nil {
		return nil, err
	}

	options := contextOptions{cacheSize: chunkCacheDefaultSize}
	for _, opt := range opts {
		opt(&options)
	}

	cache, err := lru.New[chunkCacheKey, []byte](options.cacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which the options
		// default above never produces; keep the check rather than ignoring
		// the error return.
		return nil, fmt.Errorf("dmgimage: allocating chunk cache: %w", err)
	}

	return &Context{
		region:       region,
		sectorCount:  trailer.SectorCount,
		blocks:       blocks,
		decompressed: cache,
	}, nil
}

// FileLoader is the second construction path's collaborator: it populates a
// freshly allocated region from an external file source. A concrete
// implementation lives in internal/ramdisk; the core only consumes this
// interface. spec.md describes this helper explicitly as outside the core's
// own scope.
type FileLoader interface {
	Load(allocator Allocator, size uint64) (Region, error)
}

// NewContextFromFile is the second construction path of spec.md §4.6: allocate
// a region sized to the file, load the file's bytes into it, then delegate to
// NewContextFromRegion. The region is released if any later step fails.
func NewContextFromFile(loader FileLoader, allocator Allocator, size uint64, opts ...Option) (*Context, error) {
	region, err := loader.Load(allocator, size)
	if err != nil {
		return nil, fmt.Errorf("%w: loading file into region: %v", ErrBackingIO, err)
	}

	ctx, err := NewContextFromRegion(region, size, opts...)
	if err != nil {
		_ = closeRegion(region)
		return nil, err
	}

	ctx.ownsRegion = true
	return ctx, nil
}

// SectorCount returns the total number of 512-byte sectors addressable
// through Read.
func (c *Context) SectorCount() uint64 {
	return c.sectorCount
}

// BlockCount returns the number of parsed block descriptors, for diagnostics.
func (c *Context) BlockCount() int {
	return len(c.blocks)
}

// Close releases the block map. Safe to call on a context that never finished
// construction. It never closes the backing region; use CloseFile for a
// context created from a file.
func (c *Context) Close() {
	c.blocks = nil
	if c.decompressed != nil {
		c.decompressed.Purge()
	}
}

// CloseFile additionally releases the backing region, for a context created
// with NewContextFromFile. Mirrors the teacher's Handler teardown plus the
// original's OcAppleDiskImageFreeFile, which frees the RAM disk after freeing
// the context.
func (c *Context) CloseFile() error {
	c.Close()
	if !c.ownsRegion || c.region == nil {
		return nil
	}
	err := closeRegion(c.region)
	c.region = nil
	return err
}

// logUnsupported is the one self-logging case spec.md §7 allows: an
// unrecognized chunk type encountered outside parse time (parse
// already rejects these, but Read keeps the log site for symmetry with the
// teacher's decoder registry diagnostics).
func logUnsupported(chunkType ChunkType) {
	logger.Warningf("dmgimage: unsupported chunk type encountered at read time: %s", chunkType)
}
