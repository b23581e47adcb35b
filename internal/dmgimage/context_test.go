package dmgimage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContextFromRegionReportsCounts(t *testing.T) {
	ctx := testContext(t, [][]fixtureChunk{
		{{chunkType: ChunkZero, sectors: 4}},
		{{chunkType: ChunkRaw, sectors: 2, raw: sectorsOf(2, 0x01)}},
	})

	assert.Equal(t, uint64(6), ctx.SectorCount())
	assert.Equal(t, 2, ctx.BlockCount())
}

func TestContextCloseIsIdempotent(t *testing.T) {
	ctx := testContext(t, [][]fixtureChunk{
		{{chunkType: ChunkZero, sectors: 2}},
	})

	ctx.Close()
	assert.NotPanics(t, func() { ctx.Close() })
}

func TestWithChunkCacheSizeOverridesDefault(t *testing.T) {
	region, _, err := buildImage([][]fixtureChunk{
		{{chunkType: ChunkZlib, sectors: 2, raw: sectorsOf(2, 0x01)}},
		{{chunkType: ChunkZlib, sectors: 2, raw: sectorsOf(2, 0x02)}},
	})
	require.NoError(t, err)

	ctx, err := NewContextFromRegion(region, region.Size(), WithChunkCacheSize(1))
	require.NoError(t, err)

	require.NoError(t, ctx.Read(0, make([]byte, SectorSize*2)))
	require.NoError(t, ctx.Read(2, make([]byte, SectorSize*2)))

	// Cache bounded to size 1: only the most recently decompressed chunk stays.
	assert.Equal(t, 1, ctx.decompressed.Len())
	_, ok := ctx.decompressed.Get(chunkCacheKey{block: 1, chunk: 0})
	assert.True(t, ok)
}

type stubLoader struct {
	region Region
}

func (s stubLoader) Load(allocator Allocator, size uint64) (Region, error) {
	return s.region, nil
}

func TestNewContextFromFileDelegatesToRegion(t *testing.T) {
	region, _, err := buildImage([][]fixtureChunk{
		{{chunkType: ChunkZero, sectors: 2}},
	})
	require.NoError(t, err)

	ctx, err := NewContextFromFile(stubLoader{region: region}, nil, region.Size())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ctx.SectorCount())
	assert.NoError(t, ctx.CloseFile())
}
