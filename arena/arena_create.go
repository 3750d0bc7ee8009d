package arena

import (
	"io"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/vmsim/memutils"
	"github.com/vkngwrapper/vmsim/memutils/metadata"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific arena behaviors to activate or deactivate
type CreateFlags int32

const (
	// CreateValidateAfterOperation runs the full directory consistency check after every
	// successful reserve and release. A failed check is logged and returned as an error. This is
	// expensive and intended for diagnostics; builds with the debug_mem_utils tag panic on the
	// same checks regardless of this flag.
	CreateValidateAfterOperation CreateFlags = 1 << iota
)

var createFlagsMapping = map[CreateFlags]string{
	CreateValidateAfterOperation: "CreateValidateAfterOperation",
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for flag := CreateFlags(1); flag != 0 && flag <= f; flag <<= 1 {
		if f&flag == 0 {
			continue
		}

		name, known := createFlagsMapping[flag]
		if !known {
			name = "Unknown"
		}
		names = append(names, name)
	}

	return strings.Join(names, "|")
}

// MaxCapacity is the largest arena capacity New accepts. Every address and size in the arena
// then fits in an int, which is how statistics and maps report them.
const MaxCapacity uint64 = math.MaxInt64

// CreateOptions contains the settings used to create an arena
type CreateOptions struct {
	// Capacity is the size in bytes of the simulated address space. It must be greater than 0
	// and no larger than MaxCapacity.
	Capacity uint64
	// Flags indicates specific arena behaviors to activate or deactivate
	Flags CreateFlags
	// Storage provides the buffers backing each miniblock. It can be left nil, in which case
	// buffers are allocated from the Go heap.
	Storage metadata.Storage
}

// New creates a new, empty Arena
//
// logger - Receives debug output for every operation and warnings for clamped reads and writes.
// If nil, log output is discarded.
//
// options - The arena's capacity and optional behavior
func New(logger *slog.Logger, options CreateOptions) (*Arena, error) {
	if options.Capacity == 0 {
		return nil, errors.Wrap(memutils.ErrInvalidSize, "arena capacity")
	}
	if options.Capacity > MaxCapacity {
		return nil, errors.Wrapf(memutils.ErrInvalidSize, "arena capacity %d exceeds the maximum of %d", options.Capacity, MaxCapacity)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	arena := &Arena{
		logger:      logger,
		createFlags: options.Flags,
		directory:   metadata.NewDirectory(options.Capacity, options.Storage),
	}

	logger.Debug("Arena::New",
		slog.Uint64("Capacity", options.Capacity),
		slog.String("Flags", options.Flags.String()),
	)

	return arena, nil
}
