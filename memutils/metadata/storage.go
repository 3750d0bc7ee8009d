package metadata

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/vkngwrapper/vmsim/memutils"
)

//go:generate mockgen -source storage.go -destination ./mocks/mock_storage.go -package mock_metadata

// Storage provides the byte buffers that back miniblocks. The directory treats a buffer as an
// opaque container: it asks for one when a miniblock is created and hands it back when the
// miniblock is released. Buffers returned from Allocate must be exactly size bytes long and
// zero-filled.
type Storage interface {
	Allocate(size uint64) ([]byte, error)
	Free(buffer []byte)
}

// DefaultMaxBufferSize is the largest single buffer HeapStorage will allocate when no limit is set
const DefaultMaxBufferSize uint64 = 1 << 30

// HeapStorage is a Storage that allocates buffers from the Go heap
type HeapStorage struct {
	// MaxBufferSize is the largest buffer Allocate will attempt. Larger requests fail with
	// memutils.ErrStorage. Zero means DefaultMaxBufferSize.
	MaxBufferSize uint64
}

var _ Storage = HeapStorage{}

func (s HeapStorage) Allocate(size uint64) ([]byte, error) {
	limit := s.MaxBufferSize
	if limit == 0 {
		limit = DefaultMaxBufferSize
	}

	if size > limit {
		return nil, cerrors.Wrapf(memutils.ErrStorage, "buffer of %d bytes exceeds the heap storage limit of %d bytes", size, limit)
	}

	return make([]byte, size), nil
}

func (s HeapStorage) Free(buffer []byte) {}
