package platform

import (
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// semaphore backs Capability with a 1-buffered channel used as a binary
// semaphore. This models the "preemptive-task semaphore" backing used on
// the embedded target: Init places the single token in the channel,
// acquiring the mutex receives it, releasing it sends it back, and exactly
// one task may hold the token at a time.
type semaphore struct {
	token  chan struct{}
	logger log.Logger
}

// NewSemaphore returns a Capability backed by a single-token channel
// semaphore, standing in for an embedded preemptive-task scheduler's
// primitive. logger may be nil, in which case diagnostics are discarded.
func NewSemaphore(logger log.Logger) Capability {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &semaphore{
		token:  make(chan struct{}, 1),
		logger: logger,
	}
}

func (s *semaphore) Init() error {
	// Prime the token so the first TakeMutex succeeds immediately.
	select {
	case s.token <- struct{}{}:
	default:
	}
	return nil
}

func (s *semaphore) Deinit() error {
	select {
	case <-s.token:
	default:
	}
	return nil
}

func (s *semaphore) TakeMutex() { <-s.token }
func (s *semaphore) FreeMutex() { s.token <- struct{}{} }

func (s *semaphore) Abort(reason string) {
	level.Error(s.logger).Log("msg", "fatal error, aborting", "reason", reason)
	os.Exit(2)
}
