package memutils

import "math"

// Statistics holds the basic occupancy counters of an arena
type Statistics struct {
	BlockCount     int
	MiniblockCount int
	CapacityBytes  uint64
	OccupiedBytes  uint64
}

func (s *Statistics) Clear() {
	s.BlockCount = 0
	s.MiniblockCount = 0
	s.CapacityBytes = 0
	s.OccupiedBytes = 0
}

// FreeBytes is the number of bytes of the arena that are not covered by any miniblock
func (s *Statistics) FreeBytes() uint64 {
	return s.CapacityBytes - s.OccupiedBytes
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.BlockCount += other.BlockCount
	s.MiniblockCount += other.MiniblockCount
	s.CapacityBytes += other.CapacityBytes
	s.OccupiedBytes += other.OccupiedBytes
}

// DetailedStatistics extends Statistics with size extremes for miniblocks and for the unreserved
// gaps between blocks
type DetailedStatistics struct {
	Statistics
	GapCount         int
	MiniblockSizeMin uint64
	MiniblockSizeMax uint64
	GapSizeMin       uint64
	GapSizeMax       uint64
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.GapCount = 0
	s.MiniblockSizeMin = math.MaxUint64
	s.MiniblockSizeMax = 0
	s.GapSizeMin = math.MaxUint64
	s.GapSizeMax = 0
}

func (s *DetailedStatistics) AddGap(size uint64) {
	s.GapCount++

	if size < s.GapSizeMin {
		s.GapSizeMin = size
	}

	if size > s.GapSizeMax {
		s.GapSizeMax = size
	}
}

func (s *DetailedStatistics) AddMiniblock(size uint64) {
	s.MiniblockCount++
	s.OccupiedBytes += size

	if size < s.MiniblockSizeMin {
		s.MiniblockSizeMin = size
	}

	if size > s.MiniblockSizeMax {
		s.MiniblockSizeMax = size
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.GapCount += other.GapCount

	if other.GapSizeMin < s.GapSizeMin {
		s.GapSizeMin = other.GapSizeMin
	}

	if other.GapSizeMax > s.GapSizeMax {
		s.GapSizeMax = other.GapSizeMax
	}

	if other.MiniblockSizeMin < s.MiniblockSizeMin {
		s.MiniblockSizeMin = other.MiniblockSizeMin
	}

	if other.MiniblockSizeMax > s.MiniblockSizeMax {
		s.MiniblockSizeMax = other.MiniblockSizeMax
	}
}
