// Package stackerr defines the error taxonomy shared by every
// hdf-stack component: table, arena, container, stack, construct and
// verify all wrap one of these sentinels so callers can distinguish
// failure kinds with errors.Is instead of parsing messages.
package stackerr

import "errors"

// Kinds of failure a caller can test for with errors.Is. These mirror
// the original C++ HdfStack's practice of raising a single
// std::string/FormatString exception per failure site: a short
// sentinel plus a formatted message carrying the offending indices.
var (
	// ErrRange is returned when an identifier or table index falls
	// outside the table's current bounds.
	ErrRange = errors.New("index out of range")

	// ErrAbsent is returned when an entity (superpixel, segment,
	// body, plane) is syntactically in range but does not exist.
	ErrAbsent = errors.New("entity does not exist")

	// ErrPolicy is returned when a mutation would violate the
	// zero-segment/zero-body reservation or the single-plane
	// constraint on non-zero segments.
	ErrPolicy = errors.New("policy violation")

	// ErrCorruption is returned when the engine detects an internal
	// inconsistency: a missing list terminator or a container version
	// mismatch. Duplicate arena owners found during compaction are
	// reported as warning strings, not as this error.
	ErrCorruption = errors.New("data corruption")

	// ErrFormat is returned when a container file or text input
	// cannot be parsed.
	ErrFormat = errors.New("malformed input")

	// ErrIO is returned when the underlying file cannot be opened,
	// read, or written.
	ErrIO = errors.New("i/o failure")
)
