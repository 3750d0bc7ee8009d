package metadata

import "github.com/vkngwrapper/vmsim/memutils"

// Miniblock is the smallest unit of reserved memory: a contiguous byte range with its own
// permission mask and backing buffer. Miniblocks are created by Directory.Reserve and
// destroyed by Directory.Release or Directory.Clear.
type Miniblock struct {
	start      uint64
	size       uint64
	permission memutils.Permission
	buffer     []byte
}

func newMiniblock(start uint64, buffer []byte) *Miniblock {
	return &Miniblock{
		start:      start,
		size:       uint64(len(buffer)),
		permission: memutils.PermissionDefault,
		buffer:     buffer,
	}
}

// Start is the first address covered by the miniblock
func (m *Miniblock) Start() uint64 { return m.start }

// Size is the number of bytes covered by the miniblock
func (m *Miniblock) Size() uint64 { return m.size }

// End is the first address past the miniblock
func (m *Miniblock) End() uint64 { return m.start + m.size }

// Permission is the miniblock's current access mask
func (m *Miniblock) Permission() memutils.Permission { return m.permission }

// Contains returns true if address falls inside [Start, End)
func (m *Miniblock) Contains(address uint64) bool {
	return address >= m.start && address < m.End()
}

// ReadAt copies bytes from the miniblock buffer, beginning offset bytes into the miniblock, into p.
// It returns the number of bytes copied, which is the smaller of len(p) and the bytes remaining
// in the miniblock.
func (m *Miniblock) ReadAt(p []byte, offset uint64) int {
	if offset >= m.size {
		return 0
	}
	return copy(p, m.buffer[offset:])
}

// WriteAt copies p into the miniblock buffer, beginning offset bytes into the miniblock. It returns
// the number of bytes copied.
func (m *Miniblock) WriteAt(p []byte, offset uint64) int {
	if offset >= m.size {
		return 0
	}
	return copy(m.buffer[offset:], p)
}
