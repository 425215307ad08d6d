package platform

import (
	"os"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// hostMutex backs Capability with a plain sync.Mutex. This is the "host
// thread mutex" backing described for full POSIX hosts: one OS-level
// process, multiple goroutines standing in for the original's tasks.
type hostMutex struct {
	mu     sync.Mutex
	logger log.Logger
}

// NewHostMutex returns a Capability backed by a host-thread mutex. logger
// may be nil, in which case diagnostics are discarded.
func NewHostMutex(logger log.Logger) Capability {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &hostMutex{logger: logger}
}

func (h *hostMutex) Init() error   { return nil }
func (h *hostMutex) Deinit() error { return nil }

func (h *hostMutex) TakeMutex() { h.mu.Lock() }
func (h *hostMutex) FreeMutex() { h.mu.Unlock() }

func (h *hostMutex) Abort(reason string) {
	level.Error(h.logger).Log("msg", "fatal error, aborting", "reason", reason)
	os.Exit(2)
}
