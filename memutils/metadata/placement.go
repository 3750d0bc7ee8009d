package metadata

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/vkngwrapper/vmsim/memutils"
	"golang.org/x/exp/slices"
)

// PlacementType indicates how a new range will be joined to the directory. It is returned in
// PlacementRequest from CreatePlacementRequest.
type PlacementType uint32

const (
	// PlacementNewBlock indicates that the range touches no existing block and will become a
	// new block with a single miniblock
	PlacementNewBlock PlacementType = iota
	// PlacementPrepend indicates that the range ends exactly where a block starts and will be
	// added as that block's first miniblock
	PlacementPrepend
	// PlacementAppend indicates that the range starts exactly where a block ends, without reaching
	// the following block, and will be added as that block's last miniblock
	PlacementAppend
	// PlacementBridge indicates that the range exactly fills the gap between two blocks. It will be
	// appended to the first block, and the second block's miniblocks will be moved onto the first.
	PlacementBridge
)

var placementTypeMapping = map[PlacementType]string{
	PlacementNewBlock: "NewBlock",
	PlacementPrepend:  "Prepend",
	PlacementAppend:   "Append",
	PlacementBridge:   "Bridge",
}

func (t PlacementType) String() string {
	return placementTypeMapping[t]
}

// PlacementRequest is returned from Directory.CreatePlacementRequest and describes where and how
// the directory intends to place a new range. It can be committed with Directory.Place.
type PlacementRequest struct {
	// Address is the start of the new range
	Address uint64
	// Size is the number of bytes in the new range
	Size uint64
	// Type identifies how the range joins the existing blocks
	Type PlacementType
	// BlockIndex is the index of the block the range joins. For PlacementBridge it is the lower of
	// the two blocks being merged, and for PlacementNewBlock it is the index the new block will occupy.
	BlockIndex int
}

// CreatePlacementRequest classifies the range [address, address+size) against the current blocks
// without changing anything. It fails with memutils.ErrInvalidSize for an empty range,
// memutils.ErrOutOfBounds (as memutils.ErrAddressOutOfBounds or memutils.ErrEndOutOfBounds) when
// the range does not fit in the arena, and memutils.ErrOverlap when any byte of the range is
// already reserved.
func (d *Directory) CreatePlacementRequest(address, size uint64) (PlacementRequest, error) {
	if size == 0 {
		return PlacementRequest{}, cerrors.Wrapf(memutils.ErrInvalidSize, "reserve at 0x%X", address)
	}

	if address >= d.capacity {
		return PlacementRequest{}, cerrors.Wrapf(memutils.ErrAddressOutOfBounds, "reserve at 0x%X in an arena of 0x%X bytes", address, d.capacity)
	}

	if size > d.capacity-address {
		return PlacementRequest{}, cerrors.Wrapf(memutils.ErrEndOutOfBounds, "reserve of %d bytes at 0x%X in an arena of 0x%X bytes", size, address, d.capacity)
	}

	end := address + size
	request := PlacementRequest{
		Address: address,
		Size:    size,
	}

	// Every block before index ends at or before address
	index := d.searchBlocks(address)
	if index < len(d.blocks) && d.blocks[index].Start() < end {
		block := d.blocks[index]
		return PlacementRequest{}, cerrors.Wrapf(memutils.ErrOverlap, "range 0x%X - 0x%X collides with block 0x%X - 0x%X", address, end, block.Start(), block.End())
	}

	touchesPrevious := index > 0 && d.blocks[index-1].End() == address
	touchesNext := index < len(d.blocks) && d.blocks[index].Start() == end

	switch {
	case touchesPrevious && touchesNext:
		request.Type = PlacementBridge
		request.BlockIndex = index - 1
	case touchesPrevious:
		request.Type = PlacementAppend
		request.BlockIndex = index - 1
	case touchesNext:
		request.Type = PlacementPrepend
		request.BlockIndex = index
	default:
		request.Type = PlacementNewBlock
		request.BlockIndex = index
	}

	return request, nil
}

// Place commits a PlacementRequest, creating a miniblock with PermissionDefault and a zero-filled
// buffer. It returns an error without changing anything if the request no longer matches the
// directory, or if storage could not provide a buffer.
func (d *Directory) Place(request PlacementRequest) error {
	current, err := d.CreatePlacementRequest(request.Address, request.Size)
	if err != nil {
		return err
	}
	if current != request {
		return cerrors.Newf("placement request %+v is stale, the directory would now place this range as %+v", request, current)
	}

	buffer, err := d.storage.Allocate(request.Size)
	if err != nil {
		return cerrors.Wrapf(cerrors.Mark(err, memutils.ErrStorage), "allocate %d bytes", request.Size)
	}
	if uint64(len(buffer)) != request.Size {
		d.storage.Free(buffer)
		return cerrors.Wrapf(memutils.ErrStorage, "storage returned %d bytes when %d were requested", len(buffer), request.Size)
	}

	miniblock := newMiniblock(request.Address, buffer)

	switch request.Type {
	case PlacementNewBlock:
		d.blocks = slices.Insert(d.blocks, request.BlockIndex, newBlock(miniblock))
	case PlacementPrepend:
		d.blocks[request.BlockIndex].miniblocks.Prepend(miniblock)
	case PlacementAppend:
		d.blocks[request.BlockIndex].miniblocks.Append(miniblock)
	case PlacementBridge:
		block := d.blocks[request.BlockIndex]
		next := d.blocks[request.BlockIndex+1]

		block.miniblocks.Append(miniblock)
		block.miniblocks.Concat(&next.miniblocks)
		d.blocks = slices.Delete(d.blocks, request.BlockIndex+1, request.BlockIndex+2)
	}

	d.totalOccupied += request.Size
	d.starts.Put(request.Address, request.Size)

	memutils.DebugValidate(d)
	return nil
}

// Reserve creates and commits a placement for [address, address+size) in one step. The committed
// request is returned so callers can report how the range was placed.
func (d *Directory) Reserve(address, size uint64) (PlacementRequest, error) {
	request, err := d.CreatePlacementRequest(address, size)
	if err != nil {
		return PlacementRequest{}, err
	}

	return request, d.Place(request)
}
