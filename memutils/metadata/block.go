package metadata

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

type addressRange interface {
	Contains(address uint64) bool
	End() uint64
}

// compareRange orders an address against a sorted run of disjoint ranges. A range that ends at or
// before the address sorts before it, so a failed search yields the first range ending after it.
func compareRange[T addressRange](r T, address uint64) int {
	if r.Contains(address) {
		return 0
	}
	if r.End() <= address {
		return -1
	}
	return 1
}

// Block is a maximal contiguous run of miniblocks. Its start address is the start of its first
// miniblock and its size is the sum of its miniblocks' sizes. A block always owns at least one
// miniblock.
type Block struct {
	miniblocks miniblockList
}

func newBlock(miniblock *Miniblock) *Block {
	block := &Block{}
	block.miniblocks.Append(miniblock)
	return block
}

// Start is the first address covered by the block
func (b *Block) Start() uint64 { return b.miniblocks.First().start }

// Size is the number of bytes covered by the block
func (b *Block) Size() uint64 { return b.miniblocks.size }

// End is the first address past the block
func (b *Block) End() uint64 { return b.miniblocks.Last().End() }

// Contains returns true if address falls inside [Start, End)
func (b *Block) Contains(address uint64) bool {
	return address >= b.Start() && address < b.End()
}

// MiniblockCount is the number of miniblocks in the block
func (b *Block) MiniblockCount() int { return b.miniblocks.Len() }

// Miniblock retrieves the miniblock at the provided index, in address order
func (b *Block) Miniblock(index int) *Miniblock { return b.miniblocks.items[index] }

// FindMiniblockByRange retrieves the miniblock whose range contains address, along with its
// index in the block. If no miniblock contains address, -1 and nil are returned.
func (b *Block) FindMiniblockByRange(address uint64) (int, *Miniblock) {
	items := b.miniblocks.items
	index, found := slices.BinarySearchFunc(items, address, compareRange[*Miniblock])
	if !found {
		return -1, nil
	}

	return index, items[index]
}

// FindMiniblockByExactStart retrieves the miniblock that begins exactly at address, along with
// its index in the block. If no miniblock begins at address, -1 and nil are returned.
func (b *Block) FindMiniblockByExactStart(address uint64) (int, *Miniblock) {
	index, miniblock := b.FindMiniblockByRange(address)
	if miniblock == nil || miniblock.start != address {
		return -1, nil
	}

	return index, miniblock
}

// Validate verifies that the block's miniblocks are contiguous and accounted for
func (b *Block) Validate() error {
	err := b.miniblocks.Validate()
	if err != nil {
		return errors.Wrapf(err, "invalid block")
	}

	return nil
}
