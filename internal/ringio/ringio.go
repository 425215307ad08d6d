// Package ringio implements the byte-level I/O primitives the ring log
// format is built on: retry-on-interrupt full reads/writes at an absolute
// offset, bounds checking against the ring capacity, and the wrap-aware
// stream engine that skips the in-file header and wraps at the ring
// boundary.
//
// Reads and writes are positioned (pread/pwrite) rather than
// seek-then-read/write: the original design threads a single current file
// position through seek_abs, but nothing in the ring log's concurrency
// model (single writer, single mutex) depends on shared fd position, and
// positioned I/O removes an entire class of "did something else move the
// cursor" bugs. The bounds check seek_abs performs is kept as
// ValidateOffset, which is applied to the head and tail read back from an
// existing file; ReadWrap and WriteWrap do not call it, and return an
// error for a non-empty transfer that starts at or past capacity.
package ringio

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// HeaderLen is the size in bytes of the on-disk (head, tail) header that
// precedes every ring region.
const HeaderLen = 4

// ErrShortRead is returned when the underlying file reaches EOF before the
// requested number of bytes have been read.
var ErrShortRead = errors.New("ringio: unexpected end of file")

// ValidateOffset verifies 0 <= off < capacity and returns an error naming
// the offset and range otherwise. Its caller in the log manager reports
// that error as a corrupt header, and initialization fails.
func ValidateOffset(off, capacity int64) error {
	if off < 0 || off >= capacity {
		return fmt.Errorf("ringio: offset %d out of range [0,%d)", off, capacity)
	}
	return nil
}

// FullReadAt reads exactly len(buf) bytes from fd starting at off, looping
// on partial reads and retrying on EINTR. It fails with ErrShortRead on
// premature EOF.
func FullReadAt(fd int, buf []byte, off int64) error {
	read := 0
	for read < len(buf) {
		n, err := unix.Pread(fd, buf[read:], off+int64(read))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("ringio: pread: %w", err)
		}
		if n == 0 {
			return ErrShortRead
		}
		read += n
	}
	return nil
}

// FullWriteAt writes exactly len(buf) bytes to fd starting at off, looping
// on partial writes and retrying on EINTR.
func FullWriteAt(fd int, buf []byte, off int64) error {
	written := 0
	for written < len(buf) {
		n, err := unix.Pwrite(fd, buf[written:], off+int64(written))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("ringio: pwrite: %w", err)
		}
		written += n
	}
	return nil
}

// FillByteAt writes n copies of b to fd starting at off, one byte at a
// time, retrying on EINTR. This is used only for the initial ring
// pre-fill: the byte granularity is deliberate (see Log.initFresh), so it is
// kept distinct from FullWriteAt rather than building a filled buffer and
// writing it in one call.
func FillByteAt(fd int, b byte, n int, off int64) error {
	one := [1]byte{b}
	for i := 0; i < n; i++ {
		if err := FullWriteAt(fd, one[:], off+int64(i)); err != nil {
			return err
		}
	}
	return nil
}

// advance computes the next ring offset after off, wrapping directly from
// capacity-1 to HeaderLen (skipping the header region 0..HeaderLen-1,
// which is only ever transiently visited at the instant of wraparound).
func advance(off, capacity int64) int64 {
	off++
	if off >= capacity {
		off = 0
	}
	if off < HeaderLen {
		off = HeaderLen
	}
	return off
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
