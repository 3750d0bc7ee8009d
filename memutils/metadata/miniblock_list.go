package metadata

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// miniblockList is the ordered sequence of miniblocks owned by a single block, along with
// the sum of their sizes
type miniblockList struct {
	items []*Miniblock
	size  uint64
}

func (l *miniblockList) Len() int { return len(l.items) }

func (l *miniblockList) First() *Miniblock { return l.items[0] }

func (l *miniblockList) Last() *Miniblock { return l.items[len(l.items)-1] }

func (l *miniblockList) Prepend(miniblock *Miniblock) {
	l.items = slices.Insert(l.items, 0, miniblock)
	l.size += miniblock.size
}

func (l *miniblockList) Append(miniblock *Miniblock) {
	l.items = append(l.items, miniblock)
	l.size += miniblock.size
}

// Concat moves every miniblock of other onto the end of this list, leaving other empty
func (l *miniblockList) Concat(other *miniblockList) {
	l.items = append(l.items, other.items...)
	l.size += other.size

	other.items = nil
	other.size = 0
}

// RemoveAt unlinks the miniblock at index and returns it
func (l *miniblockList) RemoveAt(index int) *Miniblock {
	miniblock := l.items[index]
	l.items = slices.Delete(l.items, index, index+1)
	l.size -= miniblock.size
	return miniblock
}

// SplitAt truncates the list to the miniblocks before index and returns a new list holding
// the miniblocks from index onward
func (l *miniblockList) SplitAt(index int) miniblockList {
	var tail miniblockList
	tail.items = slices.Clone(l.items[index:])
	for _, miniblock := range tail.items {
		tail.size += miniblock.size
	}

	clear(l.items[index:])
	l.items = l.items[:index]
	l.size -= tail.size

	return tail
}

// Validate verifies that the list is non-empty, contiguous, and that its cached size matches
// the sum of its miniblocks
func (l *miniblockList) Validate() error {
	if len(l.items) == 0 {
		return errors.New("miniblock list is empty")
	}

	var sumSize uint64
	offset := l.items[0].start
	for index, miniblock := range l.items {
		if miniblock.size == 0 {
			return errors.Errorf("miniblock at index %d has a size of 0", index)
		}

		if miniblock.start != offset {
			return errors.Errorf("miniblock at index %d starts at 0x%X, but the previous miniblock ended at 0x%X", index, miniblock.start, offset)
		}

		if uint64(len(miniblock.buffer)) != miniblock.size {
			return errors.Errorf("miniblock at index %d has size %d but a buffer of %d bytes", index, miniblock.size, len(miniblock.buffer))
		}

		sumSize += miniblock.size
		offset = miniblock.End()
	}

	if sumSize != l.size {
		return errors.Errorf("miniblock list reports a size of %d, but its miniblocks add up to %d", l.size, sumSize)
	}

	return nil
}
