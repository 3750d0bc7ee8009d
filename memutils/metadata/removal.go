package metadata

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/vkngwrapper/vmsim/memutils"
	"golang.org/x/exp/slices"
)

// ReleaseType indicates where in its block a released miniblock was found
type ReleaseType uint32

const (
	// ReleaseFirst indicates that the first miniblock of a block was released. If it was also
	// the only miniblock, the block was removed.
	ReleaseFirst ReleaseType = iota
	// ReleaseLast indicates that the last miniblock of a multi-miniblock block was released
	ReleaseLast
	// ReleaseInterior indicates that a miniblock in the middle of a block was released and the
	// block was split in two
	ReleaseInterior
)

var releaseTypeMapping = map[ReleaseType]string{
	ReleaseFirst:    "First",
	ReleaseLast:     "Last",
	ReleaseInterior: "Interior",
}

func (t ReleaseType) String() string {
	return releaseTypeMapping[t]
}

// Release frees the miniblock that begins exactly at address and returns its buffer to storage.
// Addresses inside a miniblock but not at its start are rejected with memutils.ErrNotFound.
//
// Releasing a block's first miniblock moves the block's start forward, and an emptied block is
// removed. Releasing an interior miniblock splits the block: the miniblocks before the released
// one stay in the original block and the ones after it form a new block immediately after it.
func (d *Directory) Release(address uint64) (ReleaseType, error) {
	blockIndex, block := d.FindBlock(address)
	if block == nil {
		return 0, cerrors.Wrapf(memutils.ErrNotFound, "release 0x%X", address)
	}

	index, miniblock := block.FindMiniblockByExactStart(address)
	if miniblock == nil {
		return 0, cerrors.Wrapf(memutils.ErrNotFound, "release 0x%X inside block 0x%X - 0x%X", address, block.Start(), block.End())
	}

	var releaseType ReleaseType
	switch {
	case index == 0:
		releaseType = ReleaseFirst
		block.miniblocks.RemoveAt(0)

		if block.MiniblockCount() == 0 {
			d.blocks = slices.Delete(d.blocks, blockIndex, blockIndex+1)
		}
	case index == block.MiniblockCount()-1:
		releaseType = ReleaseLast
		block.miniblocks.RemoveAt(index)
	default:
		releaseType = ReleaseInterior

		tail := &Block{miniblocks: block.miniblocks.SplitAt(index + 1)}
		block.miniblocks.RemoveAt(index)
		d.blocks = slices.Insert(d.blocks, blockIndex+1, tail)
	}

	d.totalOccupied -= miniblock.size
	d.starts.Delete(miniblock.start)
	d.storage.Free(miniblock.buffer)
	miniblock.buffer = nil

	memutils.DebugValidate(d)
	return releaseType, nil
}
