package metadata_test

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/vmsim/memutils"
	"github.com/vkngwrapper/vmsim/memutils/metadata"
	mock_metadata "github.com/vkngwrapper/vmsim/memutils/metadata/mocks"
	"go.uber.org/mock/gomock"
)

func TestStorageLifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	storage := mock_metadata.NewMockStorage(ctrl)

	first := make([]byte, 10)
	second := make([]byte, 20)
	storage.EXPECT().Allocate(uint64(10)).Return(first, nil)
	storage.EXPECT().Allocate(uint64(20)).Return(second, nil)

	directory := metadata.NewDirectory(100, storage)
	_, err := directory.Reserve(0, 10)
	require.NoError(t, err)
	_, err = directory.Reserve(10, 20)
	require.NoError(t, err)

	storage.EXPECT().Free(first)
	_, err = directory.Release(0)
	require.NoError(t, err)

	storage.EXPECT().Free(second)
	directory.Clear()
	require.True(t, directory.IsEmpty())
}

func TestStorageFailureLeavesDirectoryUnchanged(t *testing.T) {
	ctrl := gomock.NewController(t)
	storage := mock_metadata.NewMockStorage(ctrl)

	storage.EXPECT().Allocate(uint64(10)).Return(make([]byte, 10), nil)
	storage.EXPECT().Allocate(uint64(5)).Return(nil, errors.New("out of host memory"))

	directory := metadata.NewDirectory(100, storage)
	_, err := directory.Reserve(0, 10)
	require.NoError(t, err)

	_, err = directory.Reserve(10, 5)
	require.Error(t, err)
	require.True(t, errors.Is(err, memutils.ErrStorage))
	require.Contains(t, err.Error(), "out of host memory")

	require.Equal(t, 1, directory.MiniblockCount())
	require.Equal(t, uint64(10), directory.OccupiedSize())
	require.NoError(t, directory.Validate())
}

func TestStorageShortBuffer(t *testing.T) {
	ctrl := gomock.NewController(t)
	storage := mock_metadata.NewMockStorage(ctrl)

	short := make([]byte, 3)
	storage.EXPECT().Allocate(uint64(8)).Return(short, nil)
	storage.EXPECT().Free(short)

	directory := metadata.NewDirectory(100, storage)
	_, err := directory.Reserve(0, 8)
	require.True(t, errors.Is(err, memutils.ErrStorage))
	require.True(t, directory.IsEmpty())
}

func TestHeapStorageLimit(t *testing.T) {
	directory := metadata.NewDirectory(100, metadata.HeapStorage{MaxBufferSize: 16})

	_, err := directory.Reserve(0, 16)
	require.NoError(t, err)

	_, err = directory.Reserve(16, 17)
	require.True(t, errors.Is(err, memutils.ErrStorage))

	require.Equal(t, 1, directory.MiniblockCount())
	require.Equal(t, uint64(16), directory.OccupiedSize())
	require.NoError(t, directory.Validate())
}

func TestHeapStorageDefaultLimit(t *testing.T) {
	directory := metadata.NewDirectory(math.MaxUint64, nil)

	_, err := directory.Reserve(0, 1<<50)
	require.True(t, errors.Is(err, memutils.ErrStorage))
	require.True(t, directory.IsEmpty())

	_, err = directory.Reserve(math.MaxUint64-metadata.DefaultMaxBufferSize-1, metadata.DefaultMaxBufferSize+1)
	require.True(t, errors.Is(err, memutils.ErrStorage))
	require.True(t, directory.IsEmpty())
	require.NoError(t, directory.Validate())
}
