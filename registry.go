package ringlog

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/immutable"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/slices"

	"github.com/menhirsys/ringlog/internal/platform"
	"github.com/menhirsys/ringlog/internal/regdb"
)

// Registry is the explicit context object design §9 asks for in place of
// a package-level global: a table of open logs, keyed by name, built from
// a Config and guarded by a single Capability (the "one process-wide
// mutex" of design §5). Exactly one task runs inside the registry's
// operations at a time.
type Registry struct {
	cfg     Config
	cap     platform.Capability
	logger  log.Logger
	metrics *ringMetrics
	reg     prometheus.Registerer

	regDBPath string
	regDB     *regdb.DB

	names []string     // configured log names, in config order
	table atomic.Value // *immutable.SortedMap[string, *Log]
	open  atomic.Bool
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithCapability overrides the default host-mutex Capability (e.g. to use
// the semaphore-backed one, or a test double).
func WithCapability(c platform.Capability) Option {
	return func(r *Registry) { r.cap = c }
}

// WithLogger sets the go-kit logger used for diagnostics.
func WithLogger(l log.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithRegisterer sets the prometheus registerer metrics are registered
// against. Defaults to a fresh prometheus.NewRegistry() private to this
// Registry; pass prometheus.DefaultRegisterer explicitly to expose
// ringlog's metrics on a process-wide /metrics endpoint.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Registry) { r.reg = reg }
}

// WithRegDB enables the bbolt-backed configuration-drift sidecar at path.
func WithRegDB(path string) Option {
	return func(r *Registry) { r.regDBPath = path }
}

// NewRegistry constructs a Registry from cfg. Init must be called before
// any log operation. Each Registry gets its own private prometheus
// registry by default, so constructing more than one (e.g. in tests)
// never collides on duplicate collector names; use WithRegisterer to
// register against a shared one instead.
func NewRegistry(cfg Config, opts ...Option) *Registry {
	r := &Registry{
		cfg:    cfg,
		cap:    platform.NewHostMutex(nil),
		logger: log.NewNopLogger(),
		reg:    prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.names = make([]string, 0, len(cfg.Logs))
	for _, spec := range cfg.Logs {
		r.names = append(r.names, spec.Name)
	}
	return r
}

// Init implements design §4.3 init(): for each configured log, open or
// create its file, pre-filling and writing a fresh header as needed,
// reload its cached header otherwise, and reset in-progress tail state.
func (r *Registry) Init() error {
	if err := r.cap.Init(); err != nil {
		return fmt.Errorf("ringlog: capability init: %w", err)
	}
	r.cap.TakeMutex()
	defer r.cap.FreeMutex()

	r.metrics = newRingMetrics(r.reg)

	capacity, err := capacityPerLog(r.cfg.PartitionSize, len(r.cfg.Logs))
	if err != nil {
		return err
	}

	if r.regDBPath != "" {
		db, err := regdb.Open(r.regDBPath)
		if err != nil {
			return err
		}
		r.regDB = db
	}

	table := &immutable.SortedMap[string, *Log]{}
	for _, spec := range r.cfg.Logs {
		if err := r.checkDrift(spec.Name, capacity); err != nil {
			return err
		}

		path := filepath.Join(r.cfg.Dir, spec.Name)
		l, err := openOrCreate(spec.Name, path, int64(capacity), r.cfg.FillerByte, r.logger, r.metrics)
		if err != nil {
			if errors.Is(err, ErrFileSizeMismatch) {
				r.cap.Abort(fmt.Sprintf("ringlog: init log %q: %v", spec.Name, err))
			}
			return fmt.Errorf("ringlog: init log %q: %w", spec.Name, err)
		}
		table = table.Set(spec.Name, l)

		if r.regDB != nil {
			if err := r.regDB.Put(spec.Name, regdb.Entry{
				Capacity:   capacity,
				FillerByte: r.cfg.FillerByte,
				CreatedAt:  time.Now(),
			}); err != nil {
				return fmt.Errorf("ringlog: record regdb entry for %q: %w", spec.Name, err)
			}
		}
	}

	r.table.Store(table)
	r.open.Store(true)
	level.Info(r.logger).Log("msg", "registry initialized", "logs", len(r.names))
	return nil
}

// checkDrift refuses to (re)initialize a log whose compiled-in capacity
// differs from what the bbolt sidecar recorded it as last time, rather
// than silently reinterpreting the existing ring file under a new
// log_capacity.
func (r *Registry) checkDrift(name string, capacity uint32) error {
	if r.regDB == nil {
		return nil
	}
	prev, found, err := r.regDB.Get(name)
	if err != nil {
		return fmt.Errorf("ringlog: regdb lookup for %q: %w", name, err)
	}
	if found && prev.Capacity != capacity {
		return fmt.Errorf("ringlog: log %q configured capacity %d differs from previously initialized capacity %d", name, capacity, prev.Capacity)
	}
	return nil
}

// Names returns the configured log names in lexical order, regardless of
// the order they appeared in Config.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	slices.Sort(out)
	return out
}

// lookup finds the named log or aborts: a registry miss is always a
// programmer error (design §7 class 3, the registry is static).
func (r *Registry) lookup(name string) *Log {
	table, _ := r.table.Load().(*immutable.SortedMap[string, *Log])
	if table == nil {
		r.cap.Abort("ringlog: registry not initialized")
		return nil
	}
	l, ok := table.Get(name)
	if !ok {
		r.cap.Abort(fmt.Sprintf("%s: %q", ErrUnknownLog, name))
		return nil
	}
	return l
}

func (r *Registry) checkClosed() error {
	if !r.open.Load() {
		return ErrClosed
	}
	return nil
}

// WriteTail appends n bytes to name's in-progress tail entry (design §4.3
// write_tail).
func (r *Registry) WriteTail(name string, payload []byte) error {
	if err := r.checkClosed(); err != nil {
		return err
	}
	r.cap.TakeMutex()
	defer r.cap.FreeMutex()
	return r.lookup(name).WriteTail(payload)
}

// WriteTailComplete commits name's in-progress tail entry (design §4.3
// write_tail_complete).
func (r *Registry) WriteTailComplete(name string) error {
	if err := r.checkClosed(); err != nil {
		return err
	}
	r.cap.TakeMutex()
	defer r.cap.FreeMutex()
	return r.lookup(name).WriteTailComplete()
}

// HasUnread reports whether name has at least one undelivered entry
// (design §4.3 has_unread).
func (r *Registry) HasUnread(name string) bool {
	if r.checkClosed() != nil {
		return false
	}
	r.cap.TakeMutex()
	defer r.cap.FreeMutex()
	return r.lookup(name).HasUnread()
}

// ReadHead streams name's head entry into dst (design §4.3 read_head).
func (r *Registry) ReadHead(name string, dst []byte, cursor *int) (int, error) {
	if err := r.checkClosed(); err != nil {
		return 0, err
	}
	r.cap.TakeMutex()
	defer r.cap.FreeMutex()
	return r.lookup(name).ReadHead(dst, cursor)
}

// ReadHeadSuccess advances name past its head entry (design §4.3
// read_head_success).
func (r *Registry) ReadHeadSuccess(name string) error {
	if err := r.checkClosed(); err != nil {
		return err
	}
	r.cap.TakeMutex()
	defer r.cap.FreeMutex()
	return r.lookup(name).ReadHeadSuccess()
}

// Deinit closes every open log file and releases the mutex lifecycle
// (design §4.3 deinit). It does not overwrite or sync file contents.
func (r *Registry) Deinit() error {
	r.cap.TakeMutex()
	table, _ := r.table.Load().(*immutable.SortedMap[string, *Log])
	var firstErr error
	if table != nil {
		it := table.Iterator()
		for !it.Done() {
			_, l, _ := it.Next()
			if err := l.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	r.open.Store(false)
	if r.regDB != nil {
		if err := r.regDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.cap.FreeMutex()

	if err := r.cap.Deinit(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
