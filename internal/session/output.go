package session

import (
	"fmt"
	"io"

	"github.com/vkngwrapper/vmsim/arena"
)

const (
	msgInvalidCommand          = "Invalid command. Please try again."
	msgCouldNotAllocate        = "This zone could not be allocated"
	msgAddressOutOfBounds      = "The allocated address is outside the size of arena"
	msgEndOutOfBounds          = "The end address is past the size of the arena"
	msgAlreadyAllocated        = "This zone was already allocated."
	msgInvalidFree             = "Invalid address for free."
	msgInvalidRead             = "Invalid address for read."
	msgInvalidReadPermissions  = "Invalid permissions for read."
	msgInvalidWrite            = "Invalid address for write."
	msgInvalidWritePermissions = "Invalid permissions for write."
	msgInvalidProtect          = "Invalid address for mprotect."

	msgReadClamped  = "Warning: size was bigger than the block size. Reading %d characters.\n"
	msgWriteClamped = "Warning: size was bigger than the block size. Writing %d characters.\n"
)

func (s *Session) println(line string) {
	_, _ = fmt.Fprintln(s.out, line)
}

func (s *Session) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

func (s *Session) eprintln(line string) {
	if s.errOut == nil {
		return
	}
	_, _ = fmt.Fprintln(s.errOut, line)
}

// writeMap prints the arena layout in the PMAP text format. Blocks and miniblocks are numbered
// from 1.
func writeMap(w io.Writer, snapshot arena.Snapshot) {
	fmt.Fprintf(w, "Total memory: 0x%X bytes\n", snapshot.Capacity)
	fmt.Fprintf(w, "Free memory: 0x%X bytes\n", snapshot.FreeBytes)
	fmt.Fprintf(w, "Number of allocated blocks: %d\n", snapshot.BlockCount)
	fmt.Fprintf(w, "Number of allocated miniblocks: %d\n", snapshot.MiniblockCount)

	for i, block := range snapshot.Blocks {
		fmt.Fprintf(w, "\nBlock %d begin\n", i+1)
		fmt.Fprintf(w, "Zone: 0x%X - 0x%X\n", block.Start, block.End)
		for j, miniblock := range block.Miniblocks {
			fmt.Fprintf(w, "Miniblock %d:\t\t0x%X\t\t-\t\t0x%X\t\t| %s\n", j+1, miniblock.Start, miniblock.End, miniblock.Permission)
		}
		fmt.Fprintf(w, "Block %d end\n", i+1)
	}
}
