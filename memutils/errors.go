package memutils

import "github.com/cockroachdb/errors"

// ErrOutOfBounds is the error kind returned when a requested range does not fit inside the arena.
var ErrOutOfBounds error = errors.New("range is outside the arena")

// ErrAddressOutOfBounds is returned when the start address of a requested range is at or past
// the end of the arena. It wraps ErrOutOfBounds.
var ErrAddressOutOfBounds error = errors.Wrap(ErrOutOfBounds, "start address is outside the arena")

// ErrEndOutOfBounds is returned when a requested range begins inside the arena but ends past it.
// It wraps ErrOutOfBounds.
var ErrEndOutOfBounds error = errors.Wrap(ErrOutOfBounds, "end address is past the end of the arena")

// ErrInvalidSize is returned when a range or arena of size zero is requested
var ErrInvalidSize error = errors.New("size must be greater than 0")

// ErrOverlap is returned when a requested range collides with a range that is already reserved
var ErrOverlap error = errors.New("range overlaps an allocated range")

// ErrAddress is returned from reads and writes when the address does not fall inside any miniblock
var ErrAddress error = errors.New("address is not inside an allocated miniblock")

// ErrNotFound is returned from releases and permission changes when the address is not the exact
// start of a miniblock
var ErrNotFound error = errors.New("address is not the start of a miniblock")

// ErrPermission is returned when a read or write touches a miniblock that lacks the required permission
var ErrPermission error = errors.New("miniblock permissions do not allow this access")

// ErrStorage is returned when the buffer storage could not provide memory for a new miniblock
var ErrStorage error = errors.New("could not allocate a miniblock buffer")
