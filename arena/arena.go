package arena

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/vmsim/memutils"
	"github.com/vkngwrapper/vmsim/memutils/metadata"
	"golang.org/x/exp/slog"
)

// Arena is a simulated address space of fixed capacity. Ranges are reserved as miniblocks, which
// are grouped into blocks whenever they are adjacent. Bytes can be read and written through
// miniblocks according to their permissions.
//
// Arena is not safe for concurrent use: every operation runs to completion before the next one
// may begin.
type Arena struct {
	logger      *slog.Logger
	createFlags CreateFlags
	directory   *metadata.Directory
}

var _ memutils.Validatable = &Arena{}

// Capacity is the size in bytes of the arena's address space
func (a *Arena) Capacity() uint64 { return a.directory.Capacity() }

// Directory exposes the arena's block directory for inspection
func (a *Arena) Directory() *metadata.Directory { return a.directory }

// Validate performs internal consistency checks on the arena's directory
func (a *Arena) Validate() error {
	return a.directory.Validate()
}

func (a *Arena) validateAfterOperation(operation string) error {
	if a.createFlags&CreateValidateAfterOperation == 0 {
		return nil
	}

	err := a.directory.Validate()
	if err != nil {
		a.logger.LogAttrs(context.Background(), slog.LevelError, "arena failed validation",
			slog.String("Operation", operation),
			slog.Any("error", err),
		)
		return errors.Wrapf(err, "arena failed validation after %s", operation)
	}

	return nil
}

// Reserve maps the range [address, address+size) as a new miniblock with read and write
// permission and a zero-filled buffer. The miniblock joins any block it touches.
//
// Fails with memutils.ErrInvalidSize, memutils.ErrOutOfBounds or memutils.ErrOverlap without
// changing the arena.
func (a *Arena) Reserve(address, size uint64) error {
	request, err := a.directory.Reserve(address, size)
	if err != nil {
		return err
	}

	a.logger.Debug("Arena::Reserve",
		slog.Uint64("Address", address),
		slog.Uint64("Size", size),
		slog.String("Placement", request.Type.String()),
		slog.Int("BlockIndex", request.BlockIndex),
	)

	return a.validateAfterOperation("reserve")
}

// Release unmaps the miniblock that begins exactly at address. Fails with memutils.ErrNotFound
// if no miniblock begins there.
func (a *Arena) Release(address uint64) error {
	releaseType, err := a.directory.Release(address)
	if err != nil {
		return err
	}

	a.logger.Debug("Arena::Release",
		slog.Uint64("Address", address),
		slog.String("Position", releaseType.String()),
		slog.Int("BlockCount", a.directory.BlockCount()),
	)

	return a.validateAfterOperation("release")
}

// Protect replaces the permission mask of the miniblock that begins exactly at address. Fails
// with memutils.ErrNotFound if no miniblock begins there.
func (a *Arena) Protect(address uint64, permission memutils.Permission) error {
	err := a.directory.Protect(address, permission)
	if err != nil {
		return err
	}

	a.logger.Debug("Arena::Protect",
		slog.Uint64("Address", address),
		slog.String("Permission", permission.String()),
	)

	return nil
}

// accessRange locates the block and miniblock containing address and computes how many bytes
// of the requested length can be reached before the end of that block
func (a *Arena) accessRange(address, length uint64) (*metadata.Block, int, uint64, bool, error) {
	_, block := a.directory.FindBlock(address)
	if block == nil {
		return nil, -1, 0, false, errors.Wrapf(memutils.ErrAddress, "access at 0x%X", address)
	}

	index, _ := block.FindMiniblockByRange(address)

	available := block.End() - address
	if length > available {
		return block, index, available, true, nil
	}

	return block, index, length, false, nil
}

// checkPermissions verifies that every miniblock touched by [address, address+length), starting
// with the miniblock at index, passes allowed
func checkPermissions(block *metadata.Block, index int, address, length uint64, allowed func(memutils.Permission) bool) error {
	if length == 0 {
		return nil
	}

	end := address + length
	for i := index; i < block.MiniblockCount(); i++ {
		miniblock := block.Miniblock(i)
		if miniblock.Start() >= end {
			break
		}

		if !allowed(miniblock.Permission()) {
			return errors.Wrapf(memutils.ErrPermission, "miniblock 0x%X - 0x%X is %s", miniblock.Start(), miniblock.End(), miniblock.Permission())
		}
	}

	return nil
}

// Read returns up to size bytes beginning at address. Reads walk forward across the contiguous
// miniblocks of the block containing address but never past the end of that block: if fewer than
// size bytes remain in the block, the read is clamped to what remains and clamped is returned
// as true. The returned slice length is the number of bytes actually read.
//
// Fails with memutils.ErrAddress if address is not inside a miniblock, and with
// memutils.ErrPermission if any touched miniblock lacks read permission. No bytes are
// returned on failure.
func (a *Arena) Read(address, size uint64) (data []byte, clamped bool, err error) {
	block, index, length, clamped, err := a.accessRange(address, size)
	if err != nil {
		return nil, false, err
	}

	err = checkPermissions(block, index, address, length, memutils.Permission.CanRead)
	if err != nil {
		return nil, false, err
	}

	if clamped {
		a.logger.Warn("read was clamped to the end of the block",
			slog.Uint64("Address", address),
			slog.Uint64("Requested", size),
			slog.Uint64("Read", length),
		)
	}

	data = make([]byte, length)
	var done uint64
	for i := index; done < length; i++ {
		miniblock := block.Miniblock(i)
		done += uint64(miniblock.ReadAt(data[done:], address+done-miniblock.Start()))
	}

	return data, clamped, nil
}

// Write copies data into the arena beginning at address. Writes walk forward across the
// contiguous miniblocks of the block containing address but never past the end of that block:
// if data is longer than the bytes remaining in the block, only the bytes that fit are written
// and clamped is returned as true. Bytes past the end of data are left untouched.
//
// Fails with memutils.ErrAddress if address is not inside a miniblock, and with
// memutils.ErrPermission if any touched miniblock denies writes. Nothing is written on failure.
func (a *Arena) Write(address uint64, data []byte) (written int, clamped bool, err error) {
	block, index, length, clamped, err := a.accessRange(address, uint64(len(data)))
	if err != nil {
		return 0, false, err
	}

	err = checkPermissions(block, index, address, length, memutils.Permission.CanWrite)
	if err != nil {
		return 0, false, err
	}

	if clamped {
		a.logger.Warn("write was clamped to the end of the block",
			slog.Uint64("Address", address),
			slog.Int("Requested", len(data)),
			slog.Uint64("Written", length),
		)
	}

	var done uint64
	for i := index; done < length; i++ {
		miniblock := block.Miniblock(i)
		done += uint64(miniblock.WriteAt(data[done:length], address+done-miniblock.Start()))
	}

	return int(done), clamped, nil
}

// Destroy releases every block, miniblock and buffer in the arena. The arena is empty but
// still usable afterward.
func (a *Arena) Destroy() {
	if !a.directory.IsEmpty() {
		_ = a.directory.VisitAllRegions(func(blockIndex int, start, size uint64, miniblock *metadata.Miniblock, free bool) error {
			if free {
				return nil
			}

			a.logger.LogAttrs(context.Background(), slog.LevelDebug, "releasing miniblock at teardown",
				slog.Int("Block", blockIndex),
				slog.Uint64("Start", start),
				slog.Uint64("Size", size),
				slog.String("Permission", miniblock.Permission().String()),
			)
			return nil
		})
	}

	a.directory.Clear()
	a.logger.Debug("Arena::Destroy", slog.Uint64("Capacity", a.directory.Capacity()))
}
