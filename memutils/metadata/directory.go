package metadata

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/vmsim/memutils"
	"golang.org/x/exp/slices"
)

// Directory is the address-range bookkeeping for a single arena. It keeps an ordered sequence
// of non-overlapping blocks, each owning a contiguous run of miniblocks, and tracks the sum of
// all reserved bytes.
//
// After every successful operation the following hold:
//   - Blocks are sorted by start address and do not overlap or touch: two blocks that would
//     touch are always merged into one.
//   - The miniblocks of each block are contiguous, without gaps or overlaps.
//   - Every block has at least one miniblock.
//   - Every range lies within [0, Capacity()).
//
// Directory is not safe for concurrent use.
type Directory struct {
	capacity      uint64
	totalOccupied uint64
	blocks        []*Block
	storage       Storage

	// miniblock start address -> miniblock size
	starts *swiss.Map[uint64, uint64]
}

var _ memutils.Validatable = &Directory{}

// NewDirectory creates an empty Directory covering [0, capacity). Miniblock buffers are obtained
// from storage; if storage is nil, HeapStorage is used.
func NewDirectory(capacity uint64, storage Storage) *Directory {
	if storage == nil {
		storage = HeapStorage{}
	}

	return &Directory{
		capacity: capacity,
		storage:  storage,
		starts:   swiss.NewMap[uint64, uint64](42),
	}
}

// Capacity is the size in bytes of the address space managed by the directory
func (d *Directory) Capacity() uint64 { return d.capacity }

// OccupiedSize is the number of bytes currently covered by miniblocks
func (d *Directory) OccupiedSize() uint64 { return d.totalOccupied }

// FreeSize is the number of bytes not covered by any miniblock
func (d *Directory) FreeSize() uint64 { return d.capacity - d.totalOccupied }

// BlockCount is the number of blocks in the directory
func (d *Directory) BlockCount() int { return len(d.blocks) }

// Block retrieves the block at the provided index, in address order
func (d *Directory) Block(index int) *Block { return d.blocks[index] }

// MiniblockCount returns the number of miniblocks across all blocks
func (d *Directory) MiniblockCount() int {
	return d.starts.Count()
}

// IsEmpty will return true if no ranges are reserved
func (d *Directory) IsEmpty() bool { return len(d.blocks) == 0 }

// FindBlock retrieves the block whose range contains address, along with its index. If no block
// contains address, -1 and nil are returned.
func (d *Directory) FindBlock(address uint64) (int, *Block) {
	index := d.searchBlocks(address)
	if index < len(d.blocks) && d.blocks[index].Contains(address) {
		return index, d.blocks[index]
	}

	return -1, nil
}

// searchBlocks returns the index of the first block that ends after address
func (d *Directory) searchBlocks(address uint64) int {
	index, _ := slices.BinarySearchFunc(d.blocks, address, compareRange[*Block])
	return index
}

// FindMiniblock retrieves the miniblock that begins exactly at address, along with its owning
// block and its index within that block. If no miniblock begins at address, nil, -1 and nil
// are returned.
func (d *Directory) FindMiniblock(address uint64) (*Block, int, *Miniblock) {
	if _, ok := d.starts.Get(address); !ok {
		return nil, -1, nil
	}

	_, block := d.FindBlock(address)
	if block == nil {
		return nil, -1, nil
	}

	index, miniblock := block.FindMiniblockByExactStart(address)
	if miniblock == nil {
		return nil, -1, nil
	}

	return block, index, miniblock
}

// Protect replaces the permission mask of the miniblock that begins exactly at address
func (d *Directory) Protect(address uint64, permission memutils.Permission) error {
	_, _, miniblock := d.FindMiniblock(address)
	if miniblock == nil {
		return cerrors.Wrapf(memutils.ErrNotFound, "protect 0x%X", address)
	}

	miniblock.permission = permission & memutils.PermissionMask
	return nil
}

// Validate performs internal consistency checks on the directory. When the directory is functioning
// correctly, it should not be possible for this method to return an error.
func (d *Directory) Validate() error {
	var sumSize uint64
	var miniblockCount int
	var previousEnd uint64

	for index, block := range d.blocks {
		err := block.Validate()
		if err != nil {
			return errors.Wrapf(err, "block at index %d", index)
		}

		if index > 0 && block.Start() <= previousEnd {
			return errors.Errorf("block at index %d starts at 0x%X, which does not leave a gap after the previous block ending at 0x%X", index, block.Start(), previousEnd)
		}

		if block.End() > d.capacity || block.End() < block.Start() {
			return errors.Errorf("block at index %d ends at 0x%X, past the capacity 0x%X", index, block.End(), d.capacity)
		}

		for _, miniblock := range block.miniblocks.items {
			size, ok := d.starts.Get(miniblock.start)
			if !ok {
				return errors.Errorf("miniblock at 0x%X is missing from the start index", miniblock.start)
			}
			if size != miniblock.size {
				return errors.Errorf("start index reports size %d for miniblock at 0x%X, which has size %d", size, miniblock.start, miniblock.size)
			}
		}

		sumSize += block.Size()
		miniblockCount += block.MiniblockCount()
		previousEnd = block.End()
	}

	if miniblockCount != d.starts.Count() {
		return errors.Errorf("counted %d miniblocks, but the start index holds %d", miniblockCount, d.starts.Count())
	}

	if sumSize != d.totalOccupied {
		return errors.Errorf("the directory reports %d occupied bytes, but its blocks add up to %d", d.totalOccupied, sumSize)
	}

	return nil
}

// VisitAllRegions will call the provided callback once for each miniblock and each unreserved gap
// in the arena, in address order. For gaps, miniblock is nil and free is true. blockIndex is the
// index of the block owning the miniblock, or the index of the block following the gap.
func (d *Directory) VisitAllRegions(handleRegion func(blockIndex int, start, size uint64, miniblock *Miniblock, free bool) error) error {
	var lastOffset uint64

	for blockIndex, block := range d.blocks {
		if lastOffset < block.Start() {
			err := handleRegion(blockIndex, lastOffset, block.Start()-lastOffset, nil, true)
			if err != nil {
				return err
			}
		}

		for _, miniblock := range block.miniblocks.items {
			err := handleRegion(blockIndex, miniblock.start, miniblock.size, miniblock, false)
			if err != nil {
				return err
			}
		}

		lastOffset = block.End()
	}

	if lastOffset < d.capacity {
		return handleRegion(len(d.blocks), lastOffset, d.capacity-lastOffset, nil, true)
	}

	return nil
}

// AddStatistics sums this directory's occupancy into the provided memutils.Statistics object
func (d *Directory) AddStatistics(stats *memutils.Statistics) {
	stats.BlockCount += len(d.blocks)
	stats.MiniblockCount += d.MiniblockCount()
	stats.CapacityBytes += d.capacity
	stats.OccupiedBytes += d.totalOccupied
}

// AddDetailedStatistics sums this directory's occupancy, miniblock sizes and gap sizes into the
// provided memutils.DetailedStatistics object
func (d *Directory) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.BlockCount += len(d.blocks)
	stats.CapacityBytes += d.capacity

	_ = d.VisitAllRegions(func(blockIndex int, start, size uint64, miniblock *Miniblock, free bool) error {
		if free {
			stats.AddGap(size)
		} else {
			stats.AddMiniblock(size)
		}

		return nil
	})
}

// BlockJsonData populates a json object with summary information about this directory
func (d *Directory) BlockJsonData(json *jwriter.ObjectState) {
	json.Name("TotalBytes").Int(int(d.capacity))
	json.Name("FreeBytes").Int(int(d.FreeSize()))
	json.Name("Blocks").Int(len(d.blocks))
	json.Name("Miniblocks").Int(d.MiniblockCount())
}

// PrintDetailedMap writes every block and its miniblocks into a json array
func (d *Directory) PrintDetailedMap(json *jwriter.ObjectState) {
	blocks := json.Name("BlockList").Array()
	defer blocks.End()

	for _, block := range d.blocks {
		blockObj := blocks.Object()
		blockObj.Name("Start").Int(int(block.Start()))
		blockObj.Name("End").Int(int(block.End()))

		miniblocks := blockObj.Name("Miniblocks").Array()
		for _, miniblock := range block.miniblocks.items {
			obj := miniblocks.Object()
			obj.Name("Start").Int(int(miniblock.start))
			obj.Name("End").Int(int(miniblock.End()))
			obj.Name("Permission").String(miniblock.permission.String())
			obj.End()
		}
		miniblocks.End()

		blockObj.End()
	}
}

// Clear instantly releases every miniblock and block, returning all buffers to storage
func (d *Directory) Clear() {
	for _, block := range d.blocks {
		for _, miniblock := range block.miniblocks.items {
			d.storage.Free(miniblock.buffer)
			miniblock.buffer = nil
		}
		block.miniblocks = miniblockList{}
	}

	d.blocks = nil
	d.totalOccupied = 0
	d.starts = swiss.NewMap[uint64, uint64](42)
}
