// Package platform provides the capability surface that the ring log engine
// is built against: mutual exclusion, fatal abort, and lifecycle hooks. Two
// backings are provided, mirroring the two targets the original design was
// meant to run on — a full POSIX host and a constrained embedded scheduler.
package platform

import (
	"github.com/go-kit/log"
)

// Capability is the abstract set of operations the ring log engine needs
// from its host: mutual exclusion around the single global critical
// section, a way to terminate on unrecoverable programmer error, and
// lifecycle hooks around both.
type Capability interface {
	// Init prepares the capability for use. Called once before any log
	// operation runs.
	Init() error

	// Deinit releases any resource held by the capability. Called once,
	// after every log has been closed.
	Deinit() error

	// TakeMutex blocks until the caller holds exclusive access to the
	// single global critical section.
	TakeMutex()

	// FreeMutex releases exclusive access taken by TakeMutex. Must be
	// called exactly once per successful TakeMutex, on every exit path.
	FreeMutex()

	// Abort terminates the current process. It never returns. The
	// registry invokes it only for programmer-error conditions: an
	// unknown log name, an uninitialized registry, and a log file whose
	// size does not match its configured capacity.
	Abort(reason string)
}

// Logger is satisfied by go-kit/log.Logger; kept as a local alias so
// callers in this package don't need to import go-kit directly just to
// reference the type.
type Logger = log.Logger
