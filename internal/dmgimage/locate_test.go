package dmgimage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T, chunkGroups [][]fixtureChunk) *Context {
	t.Helper()
	region, _, err := buildImage(chunkGroups)
	require.NoError(t, err)

	ctx, err := NewContextFromRegion(region, region.Size())
	require.NoError(t, err)
	return ctx
}

func TestLocateFindsCorrectBlockAndChunk(t *testing.T) {
	ctx := testContext(t, [][]fixtureChunk{
		{
			{chunkType: ChunkZero, sectors: 2},
			{chunkType: ChunkRaw, sectors: 3, raw: sectorsOf(3, 0x11)},
		},
		{
			{chunkType: ChunkZlib, sectors: 5, raw: sectorsOf(5, 0x22)},
		},
	})

	cases := []struct {
		lba           uint64
		wantBlock     int
		wantChunkType ChunkType
	}{
		{0, 0, ChunkZero},
		{1, 0, ChunkZero},
		{2, 0, ChunkRaw},
		{4, 0, ChunkRaw},
		{5, 1, ChunkZlib},
		{9, 1, ChunkZlib},
	}

	for _, c := range cases {
		bi, ci, err := ctx.locate(c.lba)
		require.NoError(t, err)
		assert.Equal(t, c.wantBlock, bi, "lba %d", c.lba)
		assert.Equal(t, c.wantChunkType, ctx.blocks[bi].Chunks[ci].Type, "lba %d", c.lba)
	}
}

func TestLocateRejectsOutOfRangeLBA(t *testing.T) {
	ctx := testContext(t, [][]fixtureChunk{
		{{chunkType: ChunkZero, sectors: 4}},
	})

	_, _, err := ctx.locate(4)
	assert.ErrorIs(t, err, ErrPrecondition)
}
