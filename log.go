package ringlog

import (
	"fmt"
	"os"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/menhirsys/ringlog/internal/ringio"
)

// tailState is the per-log entry-in-progress state machine from design §4.4:
// idle (no tail in progress), building (appending successfully so far), or
// poisoned (a wrap-write failed; further WriteTail calls are no-ops until
// the next WriteTailComplete).
type tailState int

const (
	tailIdle tailState = iota
	tailBuilding
	tailPoisoned
)

// Log is one ring log's open file plus its cached header and in-progress
// tail state. A Log's methods are not safe for concurrent use; callers
// (normally a *Registry) must serialize access via a Capability mutex.
type Log struct {
	name       string
	path       string
	file       *os.File
	fd         int
	capacity   int64 // log_capacity, including the 4-byte header
	fillerByte byte

	hdr header // cached, authoritative in-memory header

	tail          tailState
	tailEndOffset int64 // ring offset one past the last byte appended so far
	tailLen       int   // running length of the in-progress entry

	logger  log.Logger
	metrics *ringMetrics
}

// maxEntryPayload is the largest payload a single entry on a log of the
// given capacity could ever hold. Per design §9, an entry exactly filling
// the usable ring would land tail back on head at commit, aliasing the
// empty state and making has_unread report false for an entry that was
// never read. One byte of the usable ring is reserved as slack so the
// largest legal entry always leaves tail one short of head.
func maxEntryPayload(capacity int64) int64 {
	return capacity - ringio.HeaderLen - 2 - 1
}

// openOrCreate opens path, creating and pre-filling it if it doesn't
// exist, per design §4.3 init(). capacity is log_capacity including the
// 4-byte header; it must be larger than the header plus one entry length
// field (HeaderLen+2 bytes).
func openOrCreate(name, path string, capacity int64, fillerByte byte, logger log.Logger, metrics *ringMetrics) (*Log, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if capacity <= ringio.HeaderLen+2 {
		return nil, fmt.Errorf("%w: capacity=%d", ErrCapacityTooSmall, capacity)
	}

	_, statErr := os.Stat(path)
	created := os.IsNotExist(statErr)

	flags := os.O_RDWR
	if created {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return nil, fmt.Errorf("ringlog: open %s: %w", path, err)
	}

	l := &Log{
		name:       name,
		path:       path,
		file:       f,
		fd:         int(f.Fd()),
		capacity:   capacity,
		fillerByte: fillerByte,
		logger:     log.With(logger, "log", name),
		metrics:    metrics,
	}

	if created {
		if err := l.initFresh(); err != nil {
			f.Close()
			os.Remove(path)
			return nil, err
		}
		level.Info(l.logger).Log("msg", "created ring log", "capacity", capacity)
	} else {
		if err := l.reload(); err != nil {
			f.Close()
			return nil, err
		}
		level.Info(l.logger).Log("msg", "reopened ring log", "head", l.hdr.head, "tail", l.hdr.tail)
	}

	return l, nil
}

// initFresh writes a fresh header (head = tail = HeaderLen) and pre-fills
// the ring region with fillerByte, one byte at a time. The byte
// granularity is deliberate: it avoids relying on sparse-file support and
// gives flash wear-levelling a predictable write pattern (design §4.3).
func (l *Log) initFresh() error {
	l.hdr = header{head: ringio.HeaderLen, tail: ringio.HeaderLen}

	buf := make([]byte, ringio.HeaderLen)
	l.hdr.encode(buf)
	if err := ringio.FullWriteAt(l.fd, buf, 0); err != nil {
		return fmt.Errorf("ringlog: write initial header: %w", err)
	}

	fillLen := l.capacity - ringio.HeaderLen
	if err := ringio.FillByteAt(l.fd, l.fillerByte, int(fillLen), ringio.HeaderLen); err != nil {
		return fmt.Errorf("ringlog: pre-fill: %w", err)
	}

	return l.verifySize()
}

// reload reopens an existing file: verifies its length matches the
// configured capacity exactly (a mismatch is fatal, design §7 class 1)
// and loads the cached header.
func (l *Log) reload() error {
	if err := l.verifySize(); err != nil {
		return err
	}
	buf := make([]byte, ringio.HeaderLen)
	if err := ringio.FullReadAt(l.fd, buf, 0); err != nil {
		return fmt.Errorf("ringlog: read header: %w", err)
	}
	l.hdr = decodeHeader(buf)
	if err := ringio.ValidateOffset(int64(l.hdr.head), l.capacity); err != nil {
		return fmt.Errorf("ringlog: corrupt head: %w", err)
	}
	if err := ringio.ValidateOffset(int64(l.hdr.tail), l.capacity); err != nil {
		return fmt.Errorf("ringlog: corrupt tail: %w", err)
	}
	return nil
}

func (l *Log) verifySize() error {
	fi, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("ringlog: stat: %w", err)
	}
	if fi.Size() != l.capacity {
		return fmt.Errorf("%w: file=%d configured=%d", ErrFileSizeMismatch, fi.Size(), l.capacity)
	}
	return nil
}

func (l *Log) writeHeader() error {
	buf := make([]byte, ringio.HeaderLen)
	l.hdr.encode(buf)
	return ringio.FullWriteAt(l.fd, buf, 0)
}

// HasUnread reports whether a subsequent ReadHead/ReadHeadSuccess would
// deliver and advance past at least one entry (design §4.3 has_unread).
func (l *Log) HasUnread() bool {
	return !l.hdr.empty()
}

// WriteTail appends payload to the log's in-progress tail entry, starting
// or continuing it as needed. It does not advance the on-disk tail;
// partially-written entries are invisible to readers until
// WriteTailComplete (design §4.3 write_tail). A call that would take the
// entry past maxEntryPayload poisons it, so WriteTailComplete discards it.
func (l *Log) WriteTail(payload []byte) error {
	start := time.Now()
	defer func() { l.metrics.observeAppend(time.Since(start)) }()

	if l.tail == tailPoisoned {
		return nil
	}

	entrySoFar := 0
	if l.tail == tailBuilding {
		entrySoFar = l.tailLen
	}
	if int64(entrySoFar+len(payload)) > maxEntryPayload(l.capacity) {
		l.tail = tailPoisoned
		return nil
	}

	pos := l.tailEndOffset
	if l.tail == tailIdle {
		// Start a new entry: write a placeholder 2-byte length as an
		// entry-mode write (eviction may fire), then remember where the
		// payload begins.
		placeholder := make([]byte, 2)
		entryLen(0).encode(placeholder)
		newPos, newHead, err := ringio.WriteWrap(l.fd, l.capacity, int64(l.hdr.tail), true, int64(l.hdr.head), int64(l.hdr.tail), placeholder, len(placeholder), l.evict)
		if err != nil {
			l.tail = tailPoisoned
			return nil
		}
		if newHead != int64(l.hdr.head) {
			l.hdr.head = uint16(newHead)
		}
		l.tail = tailBuilding
		l.tailLen = 0
		pos = newPos
	}

	if len(payload) > 0 {
		newPos, newHead, err := ringio.WriteWrap(l.fd, l.capacity, pos, true, int64(l.hdr.head), int64(l.hdr.tail), payload, len(payload), l.evict)
		if err != nil {
			l.tail = tailPoisoned
			return nil
		}
		if newHead != int64(l.hdr.head) {
			l.hdr.head = uint16(newHead)
		}
		pos = newPos
	}

	l.tailEndOffset = pos
	l.tailLen += len(payload)
	l.metrics.appends.Inc()
	l.metrics.bytesWritten.Add(float64(len(payload)))
	return nil
}

// evict implements the design's write-wrap eviction protocol: decode the
// victim entry's length at victimOffset, skip past its payload via
// ReadWrap (itself header-skipping and wrap-aware), persist the resulting
// offset as the new on-disk head (tail unchanged), and return it.
func (l *Log) evict(victimOffset int64) (int64, error) {
	lenBuf := make([]byte, 2)
	afterLen, err := ringio.ReadWrap(l.fd, l.capacity, victimOffset, lenBuf, 2)
	if err != nil {
		return 0, fmt.Errorf("ringlog: evict: read victim length: %w", err)
	}
	victimLen := int(decodeEntryLen(lenBuf))

	newHead, err := ringio.ReadWrap(l.fd, l.capacity, afterLen, nil, victimLen)
	if err != nil {
		return 0, fmt.Errorf("ringlog: evict: skip victim payload: %w", err)
	}

	l.hdr.head = uint16(newHead)
	if err := l.writeHeader(); err != nil {
		return 0, fmt.Errorf("ringlog: evict: persist header: %w", err)
	}
	l.metrics.entriesEvicted.Inc()
	level.Debug(l.logger).Log("msg", "evicted oldest entry", "newHead", newHead)
	return newHead, nil
}

// WriteTailComplete commits the in-progress tail entry, or discards it if
// the last WriteTail failed (design §4.3 write_tail_complete). It is a
// no-op if no tail is in progress.
func (l *Log) WriteTailComplete() error {
	if l.tail == tailIdle {
		return nil
	}

	failed := l.tail == tailPoisoned
	startOffset := l.hdr.tail
	l.tail = tailIdle

	if failed {
		l.metrics.abandonedTails.Inc()
		level.Debug(l.logger).Log("msg", "discarding abandoned tail entry")
		return nil
	}

	// Rewrite the length prefix in place, non-entry-mode (no eviction:
	// this space was already allocated by the earlier placeholder write).
	lenBuf := make([]byte, 2)
	entryLen(l.tailLen).encode(lenBuf)
	if _, _, err := ringio.WriteWrap(l.fd, l.capacity, int64(startOffset), false, 0, 0, lenBuf, len(lenBuf), nil); err != nil {
		return fmt.Errorf("ringlog: commit: rewrite length: %w", err)
	}

	// An entry that ends exactly on the start of an older entry would make
	// the new tail equal head, which reads as an empty log: evict that
	// older entry first.
	if l.hdr.head != startOffset && int64(l.hdr.head) == l.tailEndOffset {
		if _, err := l.evict(int64(l.hdr.head)); err != nil {
			return fmt.Errorf("ringlog: commit: %w", err)
		}
	}

	l.hdr.tail = uint16(l.tailEndOffset)
	if err := l.writeHeader(); err != nil {
		return fmt.Errorf("ringlog: commit: persist header: %w", err)
	}
	l.metrics.commits.Inc()
	l.updateUtilization()
	return nil
}

// ReadHead streams the current head entry in fragments into dst,
// returning the number of bytes delivered this call (0 means the entry is
// fully delivered). cursor is caller-owned: the number of payload bytes
// already delivered for this entry (design §4.3 read_head).
func (l *Log) ReadHead(dst []byte, cursor *int) (int, error) {
	start := time.Now()
	defer func() { l.metrics.observeRead(time.Since(start)) }()

	if l.hdr.empty() {
		return 0, ErrEmpty
	}

	lenBuf := make([]byte, 2)
	afterLen, err := ringio.ReadWrap(l.fd, l.capacity, int64(l.hdr.head), lenBuf, 2)
	if err != nil {
		return 0, fmt.Errorf("ringlog: read head length: %w", err)
	}
	total := int(decodeEntryLen(lenBuf))

	remaining := total - *cursor
	if remaining <= 0 {
		return 0, nil
	}

	pos, err := ringio.ReadWrap(l.fd, l.capacity, afterLen, nil, *cursor)
	if err != nil {
		return 0, fmt.Errorf("ringlog: skip delivered prefix: %w", err)
	}

	n := len(dst)
	if n > remaining {
		n = remaining
	}
	if _, err := ringio.ReadWrap(l.fd, l.capacity, pos, dst[:n], n); err != nil {
		return 0, fmt.Errorf("ringlog: read head payload: %w", err)
	}

	*cursor += n
	l.metrics.entryBytesRead.Add(float64(n))
	return n, nil
}

// ReadHeadSuccess advances past the current head entry (design §4.3
// read_head_success). It is a no-op, logged at debug level, if the log is
// empty.
func (l *Log) ReadHeadSuccess() error {
	if l.hdr.empty() {
		level.Debug(l.logger).Log("msg", "read_head_success on empty log, ignoring")
		return nil
	}

	lenBuf := make([]byte, 2)
	afterLen, err := ringio.ReadWrap(l.fd, l.capacity, int64(l.hdr.head), lenBuf, 2)
	if err != nil {
		return fmt.Errorf("ringlog: read head length: %w", err)
	}
	total := int(decodeEntryLen(lenBuf))

	newHead, err := ringio.ReadWrap(l.fd, l.capacity, afterLen, nil, total)
	if err != nil {
		return fmt.Errorf("ringlog: skip delivered entry: %w", err)
	}

	l.hdr.head = uint16(newHead)
	if err := l.writeHeader(); err != nil {
		return fmt.Errorf("ringlog: persist head advance: %w", err)
	}
	l.metrics.entriesDelivered.Inc()
	l.updateUtilization()
	return nil
}

func (l *Log) updateUtilization() {
	usable := float64(l.capacity - ringio.HeaderLen)
	occupied := float64(int64(l.hdr.tail) - int64(l.hdr.head))
	if occupied < 0 {
		occupied += usable
	}
	l.metrics.ringUtilization.WithLabelValues(l.name).Set(occupied / usable)
}

// MaxPayload returns the largest payload a single entry on this log could
// ever hold.
func (l *Log) MaxPayload() int64 {
	return maxEntryPayload(l.capacity)
}

// Close closes the log's underlying file. It does not overwrite or sync
// file contents (design §4.3 deinit: "does not overwrite or sync").
func (l *Log) Close() error {
	return l.file.Close()
}
