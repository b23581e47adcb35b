package dmgimage

import (
	"fmt"
	"sort"
)

// locate finds the indices of the (block, chunk) pair covering absolute
// sector lba. Blocks are kept sorted by start sector and tile the address
// space with no gaps (validateCoverage enforces this at parse time); each
// block's own chunks are likewise sorted and contiguous. Both searches here
// are binary, the speedup spec.md §4.3 explicitly allows over the
// linear-scan semantics it defines correctness in terms of.
func (c *Context) locate(lba uint64) (blockIdx, chunkIdx int, err error) {
	blocks := c.blocks
	bi := sort.Search(len(blocks), func(i int) bool {
		return blocks[i].StartSector+blocks[i].SectorCount > lba
	})
	if bi >= len(blocks) || lba < blocks[bi].StartSector {
		return 0, 0, fmt.Errorf("%w: lba %d not covered by any block", ErrPrecondition, lba)
	}

	relLBA := lba - blocks[bi].StartSector
	chunks := blocks[bi].Chunks
	ci := sort.Search(len(chunks), func(j int) bool {
		return chunks[j].StartSector+chunks[j].SectorCount > relLBA
	})
	if ci >= len(chunks) || relLBA < chunks[ci].StartSector {
		return 0, 0, fmt.Errorf("%w: lba %d not covered by any chunk in block", ErrPrecondition, lba)
	}

	return bi, ci, nil
}
