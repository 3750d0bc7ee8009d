package memutils

import "strings"

// Permission is the access mask of a single miniblock. It is a three-bit set over
// PermissionRead, PermissionWrite and PermissionExec, so every valid value lies in 0-7.
type Permission uint8

const (
	// PermissionExec marks a miniblock as executable. Nothing in the simulator executes memory,
	// but the flag is tracked and reported.
	PermissionExec Permission = 1 << iota
	// PermissionWrite allows writes to the miniblock
	PermissionWrite
	// PermissionRead allows reads from the miniblock
	PermissionRead

	// PermissionNone denies all access
	PermissionNone Permission = 0
	// PermissionDefault is the permission every newly reserved miniblock receives
	PermissionDefault = PermissionRead | PermissionWrite
	// PermissionMask covers every meaningful permission bit
	PermissionMask = PermissionRead | PermissionWrite | PermissionExec
)

var permissionTokens = map[string]Permission{
	"PROT_NONE":  PermissionNone,
	"PROT_READ":  PermissionRead,
	"PROT_WRITE": PermissionWrite,
	"PROT_EXEC":  PermissionExec,
}

// String renders the permission as an rwx triple in R, W, X order, e.g. "RW-"
func (p Permission) String() string {
	var sb strings.Builder
	sb.Grow(3)

	if p&PermissionRead != 0 {
		sb.WriteByte('R')
	} else {
		sb.WriteByte('-')
	}

	if p&PermissionWrite != 0 {
		sb.WriteByte('W')
	} else {
		sb.WriteByte('-')
	}

	if p&PermissionExec != 0 {
		sb.WriteByte('X')
	} else {
		sb.WriteByte('-')
	}

	return sb.String()
}

// Has returns true if every bit of flag is present in p
func (p Permission) Has(flag Permission) bool {
	return p&flag == flag
}

// CanRead returns true if bytes may be read from a miniblock carrying this permission
func (p Permission) CanRead() bool {
	return p.Has(PermissionRead)
}

// CanWrite returns true if bytes may be written to a miniblock carrying this permission.
// The masks ---, --X, R-- and R-X are the ones that deny writes.
func (p Permission) CanWrite() bool {
	switch p & PermissionMask {
	case PermissionNone,
		PermissionExec,
		PermissionRead,
		PermissionRead | PermissionExec:
		return false
	}

	return true
}

// ParsePermission converts a list of protection tokens such as "PROT_READ | PROT_WRITE" into a
// Permission. Tokens may be separated by spaces and/or '|'. Recognized tokens are combined as a
// union. PROT_NONE and any unrecognized token reset the mask accumulated so far to PermissionNone,
// so "PROT_READ PROT_NONE" is PermissionNone while "PROT_NONE PROT_READ" is PermissionRead.
func ParsePermission(spec string) Permission {
	fields := strings.FieldsFunc(spec, func(r rune) bool {
		return r == ' ' || r == '|' || r == '\t'
	})

	perm := PermissionNone
	for _, field := range fields {
		flag, known := permissionTokens[field]
		if !known || flag == PermissionNone {
			perm = PermissionNone
			continue
		}

		perm |= flag
	}

	return perm
}
