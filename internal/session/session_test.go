package session_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/vmsim/arena"
	"github.com/vkngwrapper/vmsim/internal/session"
)

func runScript(t *testing.T, script string, options session.Options) (string, string) {
	t.Helper()

	var out, errOut bytes.Buffer
	s := session.New(nil, strings.NewReader(script), &out, &errOut, options)
	require.NoError(t, s.Run())

	return out.String(), errOut.String()
}

func TestRoundTripAndMap(t *testing.T) {
	out, errOut := runScript(t, `ALLOC_ARENA 100
ALLOC_BLOCK 0 10
ALLOC_BLOCK 10 10
WRITE 5 8 abcdefgh
READ 5 8
PMAP
DEALLOC_ARENA
`, session.Options{ArenaFlags: arena.CreateValidateAfterOperation})

	require.Empty(t, errOut)
	require.Equal(t, "abcdefgh\n"+
		"Total memory: 0x64 bytes\n"+
		"Free memory: 0x50 bytes\n"+
		"Number of allocated blocks: 1\n"+
		"Number of allocated miniblocks: 2\n"+
		"\nBlock 1 begin\n"+
		"Zone: 0x0 - 0x14\n"+
		"Miniblock 1:\t\t0x0\t\t-\t\t0xA\t\t| RW-\n"+
		"Miniblock 2:\t\t0xA\t\t-\t\t0x14\t\t| RW-\n"+
		"Block 1 end\n", out)
}

func TestErrorMessages(t *testing.T) {
	out, _ := runScript(t, `ALLOC_ARENA 64
ALLOC_BLOCK 64 1
ALLOC_BLOCK 60 8
ALLOC_BLOCK 0 10
ALLOC_BLOCK 5 10
FREE_BLOCK 5
READ 20 1
WRITE 30 3 xyz
MPROTECT 5 PROT_READ
MPROTECT 0 PROT_READ | PROT_EXEC
WRITE 0 2 hi
MPROTECT 0 PROT_NONE
READ 0 2
BOGUS
DEALLOC_ARENA
`, session.Options{})

	require.Equal(t, strings.Join([]string{
		"The allocated address is outside the size of arena",
		"The end address is past the size of the arena",
		"This zone was already allocated.",
		"Invalid address for free.",
		"Invalid address for read.",
		"Invalid address for write.",
		"Invalid address for mprotect.",
		"Invalid permissions for write.",
		"Invalid permissions for read.",
		"Invalid command. Please try again.",
	}, "\n")+"\n", out)
}

func TestClampWarnings(t *testing.T) {
	out, _ := runScript(t, `ALLOC_ARENA 100
ALLOC_BLOCK 0 4
WRITE 0 6 abcdef
READ 0 10
DEALLOC_ARENA
`, session.Options{})

	require.Equal(t, "Warning: size was bigger than the block size. Writing 4 characters.\n"+
		"Warning: size was bigger than the block size. Reading 4 characters.\n"+
		"abcd\n", out)
}

func TestWritePayloadSpansLines(t *testing.T) {
	out, _ := runScript(t, "ALLOC_ARENA 32\nALLOC_BLOCK 0 16\nWRITE 0 7 ab\ncd e\nREAD 0 7\nDEALLOC_ARENA\n", session.Options{})

	require.Equal(t, "ab\ncd e\n", out)
}

func TestCommandsBeforeArena(t *testing.T) {
	out, _ := runScript(t, `READ 0 1
WRITE 0 4 PMAP
ALLOC_ARENA 16
PMAP
DEALLOC_ARENA
`, session.Options{})

	require.Equal(t, "Invalid command. Please try again.\n"+
		"Invalid command. Please try again.\n"+
		"Total memory: 0x10 bytes\n"+
		"Free memory: 0x10 bytes\n"+
		"Number of allocated blocks: 0\n"+
		"Number of allocated miniblocks: 0\n", out)
}

func TestFreeSplitsBlock(t *testing.T) {
	out, _ := runScript(t, `ALLOC_ARENA 48
ALLOC_BLOCK 0 16
ALLOC_BLOCK 16 16
ALLOC_BLOCK 32 16
FREE_BLOCK 16
MPROTECT 32 PROT_READ
PMAP
`, session.Options{})

	require.Equal(t, "Total memory: 0x30 bytes\n"+
		"Free memory: 0x10 bytes\n"+
		"Number of allocated blocks: 2\n"+
		"Number of allocated miniblocks: 2\n"+
		"\nBlock 1 begin\n"+
		"Zone: 0x0 - 0x10\n"+
		"Miniblock 1:\t\t0x0\t\t-\t\t0x10\t\t| RW-\n"+
		"Block 1 end\n"+
		"\nBlock 2 begin\n"+
		"Zone: 0x20 - 0x30\n"+
		"Miniblock 1:\t\t0x20\t\t-\t\t0x30\t\t| R--\n"+
		"Block 2 end\n", out)
}

func TestInvalidNumbers(t *testing.T) {
	out, _ := runScript(t, "ALLOC_ARENA abc\nALLOC_ARENA 8\nALLOC_BLOCK 0 -1\nPMAP\n", session.Options{})

	require.Equal(t, "Invalid command. Please try again.\n"+
		"Invalid command. Please try again.\n"+
		"Total memory: 0x8 bytes\n"+
		"Free memory: 0x8 bytes\n"+
		"Number of allocated blocks: 0\n"+
		"Number of allocated miniblocks: 0\n", out)
}

func TestAllocationFailuresGoToErrorStream(t *testing.T) {
	out, errOut := runScript(t, "ALLOC_ARENA 0\nALLOC_ARENA 8\nALLOC_BLOCK 0 0\nDEALLOC_ARENA\n", session.Options{})

	require.Empty(t, out)
	require.Equal(t, "This zone could not be allocated\nThis zone could not be allocated\n", errOut)
}

func TestReallocatingArenaStartsOver(t *testing.T) {
	out, _ := runScript(t, `ALLOC_ARENA 16
ALLOC_BLOCK 0 8
ALLOC_ARENA 32
PMAP
`, session.Options{})

	require.Equal(t, "Total memory: 0x20 bytes\n"+
		"Free memory: 0x20 bytes\n"+
		"Number of allocated blocks: 0\n"+
		"Number of allocated miniblocks: 0\n", out)
}

func TestDeallocStopsSession(t *testing.T) {
	out, _ := runScript(t, "ALLOC_ARENA 16\nDEALLOC_ARENA\nPMAP\n", session.Options{})

	require.Empty(t, out)
}

func TestJSONMap(t *testing.T) {
	out, _ := runScript(t, `ALLOC_ARENA 64
ALLOC_BLOCK 8 8
MPROTECT 8 PROT_READ|PROT_WRITE|PROT_EXEC
PMAP
`, session.Options{JSONOutput: true})

	require.JSONEq(t, `{
		"Total": {
			"BlockCount": 1,
			"MiniblockCount": 1,
			"CapacityBytes": 64,
			"OccupiedBytes": 8,
			"FreeBytes": 56,
			"GapCount": 2,
			"MiniblockSizeMin": 8,
			"MiniblockSizeMax": 8,
			"GapSizeMin": 8,
			"GapSizeMax": 48
		},
		"DetailedMap": {
			"TotalBytes": 64,
			"FreeBytes": 56,
			"Blocks": 1,
			"Miniblocks": 1,
			"BlockList": [
				{"Start": 8, "End": 16, "Miniblocks": [
					{"Start": 8, "End": 16, "Permission": "RWX"}
				]}
			]
		}
	}`, out)
}

func TestHugeBlockReportsAllocationFailure(t *testing.T) {
	out, errOut := runScript(t, `ALLOC_ARENA 9223372036854775807
ALLOC_BLOCK 0 1125899906842624
ALLOC_BLOCK 0 16
PMAP
DEALLOC_ARENA
`, session.Options{})

	require.Equal(t, "This zone could not be allocated\n", errOut)
	require.Equal(t, "Total memory: 0x7FFFFFFFFFFFFFFF bytes\n"+
		"Free memory: 0x7FFFFFFFFFFFFFEF bytes\n"+
		"Number of allocated blocks: 1\n"+
		"Number of allocated miniblocks: 1\n"+
		"\nBlock 1 begin\n"+
		"Zone: 0x0 - 0x10\n"+
		"Miniblock 1:\t\t0x0\t\t-\t\t0x10\t\t| RW-\n"+
		"Block 1 end\n", out)
}

func TestOversizedArenaReportsAllocationFailure(t *testing.T) {
	out, errOut := runScript(t, "ALLOC_ARENA 18446744073709551615\nPMAP\nDEALLOC_ARENA\n", session.Options{JSONOutput: true})

	require.Equal(t, "This zone could not be allocated\n", errOut)
	require.Equal(t, "Invalid command. Please try again.\n", out)
}
