package arena

import (
	"github.com/vkngwrapper/vmsim/memutils"
	"github.com/vkngwrapper/vmsim/memutils/metadata"
)

// MiniblockSnapshot describes one miniblock at the time Snapshot was called
type MiniblockSnapshot struct {
	Start      uint64
	End        uint64
	Permission memutils.Permission
}

// BlockSnapshot describes one block and its miniblocks at the time Snapshot was called
type BlockSnapshot struct {
	Start      uint64
	End        uint64
	Miniblocks []MiniblockSnapshot
}

// Snapshot is a point-in-time copy of the arena's layout, in address order. It shares no memory
// with the arena.
type Snapshot struct {
	Capacity       uint64
	FreeBytes      uint64
	BlockCount     int
	MiniblockCount int
	Blocks         []BlockSnapshot
}

// Snapshot copies the arena's current layout
func (a *Arena) Snapshot() Snapshot {
	snapshot := Snapshot{
		Capacity:       a.directory.Capacity(),
		FreeBytes:      a.directory.FreeSize(),
		BlockCount:     a.directory.BlockCount(),
		MiniblockCount: a.directory.MiniblockCount(),
		Blocks:         make([]BlockSnapshot, 0, a.directory.BlockCount()),
	}

	_ = a.directory.VisitAllRegions(func(blockIndex int, start, size uint64, miniblock *metadata.Miniblock, free bool) error {
		if free {
			return nil
		}

		if blockIndex == len(snapshot.Blocks) {
			block := a.directory.Block(blockIndex)
			snapshot.Blocks = append(snapshot.Blocks, BlockSnapshot{
				Start:      block.Start(),
				End:        block.End(),
				Miniblocks: make([]MiniblockSnapshot, 0, block.MiniblockCount()),
			})
		}

		out := &snapshot.Blocks[blockIndex]
		out.Miniblocks = append(out.Miniblocks, MiniblockSnapshot{
			Start:      start,
			End:        start + size,
			Permission: miniblock.Permission(),
		})
		return nil
	})

	return snapshot
}
