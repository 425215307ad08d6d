// Package ringlog implements a persistent, fixed-capacity ring log: an
// append-mostly record store backed by a pre-sized file. Storage never
// grows after initialization; new entries overwrite the oldest entries
// once the ring fills. Producers append entries in fragments then commit;
// consumers peek at the oldest entry, then acknowledge to advance past it.
//
// All public operations on a *Registry serialize on one mutual-exclusion
// capability (see internal/platform), mirroring the single
// process-wide critical section the design specifies: exactly one task
// runs inside the engine at a time, and read_head/write_tail/has_unread
// are mutually exclusive with each other.
package ringlog

import "errors"

// Sentinel errors. Registry routes an unknown log name and a file size
// mismatch at Init to Capability.Abort; the sentinels for those let
// internal helpers and tests assert on them before the abort boundary.
// ErrCapacityTooSmall is returned (wrapped) from Registry.Init, and
// ErrEmpty and ErrClosed are returned from ordinary operations.
var (
	// ErrUnknownLog indicates a name not present in the registry. The
	// registry is static once built, so this is always a programmer
	// error (fatal, per design §7 class 3).
	ErrUnknownLog = errors.New("ringlog: unknown log name")

	// ErrFileSizeMismatch indicates a log file's length does not equal
	// its configured capacity at init (fatal, design §7 class 1).
	ErrFileSizeMismatch = errors.New("ringlog: file size does not match configured capacity")

	// ErrCapacityTooSmall indicates a configured log_capacity is no larger
	// than the 4-byte file header plus one 2-byte entry length field.
	ErrCapacityTooSmall = errors.New("ringlog: log_capacity too small")

	// ErrEmpty is returned by ReadHead when the log has no unread entry
	// (ReadHeadSuccess on an empty log is a no-op returning nil). Empty
	// reads are a normal, expected condition (not a corruption or
	// programmer error), so callers surface it as an ordinary error
	// rather than aborting.
	ErrEmpty = errors.New("ringlog: log is empty")

	// ErrClosed is returned by Registry operations after Deinit has run
	// (HasUnread reports false instead).
	ErrClosed = errors.New("ringlog: closed")
)
