package ringlog

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T, capacity int64) *Log {
	t.Helper()
	dir := t.TempDir()
	l, err := openOrCreate("log_a", filepath.Join(dir, "log_a"), capacity, 0, nil, newRingMetrics(nil))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func writeEntry(t *testing.T, l *Log, fragments ...string) {
	t.Helper()
	for _, f := range fragments {
		require.NoError(t, l.WriteTail([]byte(f)))
	}
	require.NoError(t, l.WriteTailComplete())
}

func readEntry(t *testing.T, l *Log) string {
	t.Helper()
	var cursor int
	buf := make([]byte, 8)
	var out []byte
	for {
		n, err := l.ReadHead(buf, &cursor)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		out = append(out, buf[:n]...)
	}
	require.NoError(t, l.ReadHeadSuccess())
	return string(out)
}

func TestThreeSmallEntries(t *testing.T) {
	l := newTestLog(t, 160)

	writeEntry(t, l, "one")
	require.True(t, l.HasUnread())
	writeEntry(t, l, "two")
	writeEntry(t, l, "three")

	require.Equal(t, "one", readEntry(t, l))
	require.Equal(t, "two", readEntry(t, l))
	require.Equal(t, "three", readEntry(t, l))
	require.False(t, l.HasUnread())
}

func TestFragmentedAppend(t *testing.T) {
	l := newTestLog(t, 160)

	writeEntry(t, l, "a", "bb", "ccc", "dddd", "eeeee")
	require.Equal(t, "abbcccddddeeeee", readEntry(t, l))
	require.False(t, l.HasUnread())
}

func TestEviction(t *testing.T) {
	l := newTestLog(t, 160)

	var written []string
	for i := 0; i < 20; i++ {
		payload := fmt.Sprintf("%020d", i)
		writeEntry(t, l, payload)
		written = append(written, payload)
		require.True(t, l.HasUnread())
	}

	var delivered []string
	for l.HasUnread() {
		delivered = append(delivered, readEntry(t, l))
	}

	// The delivered sequence must be a contiguous suffix of what was
	// written, in order, per I2.
	require.True(t, len(delivered) <= len(written))
	suffix := written[len(written)-len(delivered):]
	require.Equal(t, suffix, delivered)
}

func TestMaxSizeSingleEntry(t *testing.T) {
	const capacity = 160
	l := newTestLog(t, capacity)

	maxPayload := l.MaxPayload()
	payload := make([]byte, maxPayload)
	for i := range payload {
		payload[i] = byte('A' + i%26)
	}
	writeEntry(t, l, string(payload))

	require.True(t, l.HasUnread())
	got := readEntry(t, l)
	require.Equal(t, string(payload), got)
	require.False(t, l.HasUnread())
}

func TestAbandonedEntry(t *testing.T) {
	l := newTestLog(t, 160)

	require.NoError(t, l.WriteTail([]byte("aaaaa")))
	l.tail = tailPoisoned // simulate a failed in-progress write_tail
	require.NoError(t, l.WriteTailComplete())
	require.False(t, l.HasUnread())

	writeEntry(t, l, "ok")
	require.Equal(t, "ok", readEntry(t, l))
	require.False(t, l.HasUnread())
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log_a")
	metrics := newRingMetrics(nil)

	l, err := openOrCreate("log_a", path, 160, 0, nil, metrics)
	require.NoError(t, err)
	writeEntry(t, l, "one")
	writeEntry(t, l, "two")
	writeEntry(t, l, "three")
	require.NoError(t, l.Close())

	reopened, err := openOrCreate("log_a", path, 160, 0, nil, metrics)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, "one", readEntry(t, reopened))
	require.Equal(t, "two", readEntry(t, reopened))
	require.Equal(t, "three", readEntry(t, reopened))
	require.False(t, reopened.HasUnread())
}

func TestWriteTailCompleteWithoutWriteTailIsNoOp(t *testing.T) {
	l := newTestLog(t, 160)
	require.NoError(t, l.WriteTailComplete())
	require.False(t, l.HasUnread())
}

func TestReadHeadWithoutAckIsIdempotent(t *testing.T) {
	l := newTestLog(t, 160)
	writeEntry(t, l, "hello")

	var c1, c2 int
	buf1 := make([]byte, 8)
	buf2 := make([]byte, 8)
	n1, err := l.ReadHead(buf1, &c1)
	require.NoError(t, err)
	n2, err := l.ReadHead(buf2, &c2)
	require.NoError(t, err)
	require.Equal(t, n1, n2)
	require.Equal(t, buf1[:n1], buf2[:n2])
}

func TestFileSizeMismatchIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log_a")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o600))

	_, err := openOrCreate("log_a", path, 160, 0, nil, newRingMetrics(nil))
	require.ErrorIs(t, err, ErrFileSizeMismatch)
}

func TestCapacityTooSmall(t *testing.T) {
	dir := t.TempDir()
	_, err := openOrCreate("log_a", filepath.Join(dir, "log_a"), ringHeaderAndEntryFloor, 0, nil, newRingMetrics(nil))
	require.ErrorIs(t, err, ErrCapacityTooSmall)
}

const ringHeaderAndEntryFloor = 6 // HeaderLen(4) + entry length field(2), the boundary openOrCreate rejects
