package ringlog

import (
	"math/rand"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/require"
)

// TestRandomFragmentedAppendsRoundTrip exercises I2/I3 against random
// commit sequences with random payload lengths and random fragment sizes:
// every committed entry must read back byte-for-byte, and the delivered
// order must match commit order.
func TestRandomFragmentedAppendsRoundTrip(t *testing.T) {
	const capacity = 4096 // large enough that no eviction occurs in this test
	l := newTestLog(t, capacity)

	f := fuzz.NewWithSeed(42)
	rng := rand.New(rand.NewSource(7))

	var want []string
	for i := 0; i < 25; i++ {
		total := rng.Intn(40) + 1
		payload := make([]byte, total)
		for i := range payload {
			f.Fuzz(&payload[i])
		}

		// Split into a random number of fragments summing to total.
		nFrags := rng.Intn(5) + 1
		offset := 0
		for frag := 0; frag < nFrags && offset < total; frag++ {
			remaining := total - offset
			size := remaining
			if frag < nFrags-1 {
				size = rng.Intn(remaining) + 1
			}
			require.NoError(t, l.WriteTail(payload[offset:offset+size]))
			offset += size
		}
		require.NoError(t, l.WriteTailComplete())
		want = append(want, string(payload))
	}

	for _, expected := range want {
		got := readEntry(t, l)
		require.Equal(t, expected, got)
	}
	require.False(t, l.HasUnread())
}

// TestRandomEvictionKeepsContiguousSuffix exercises I2 under forced
// eviction: with a small capacity, random-sized entries are written until
// many evictions have happened, then the delivered sequence must be a
// contiguous, in-order, duplicate-free suffix of what was written.
func TestRandomEvictionKeepsContiguousSuffix(t *testing.T) {
	const capacity = 200
	l := newTestLog(t, capacity)
	rng := rand.New(rand.NewSource(99))

	var written []string
	for i := 0; i < 50; i++ {
		n := rng.Intn(15) + 1
		payload := make([]byte, n)
		for j := range payload {
			payload[j] = byte('a' + (i+j)%26)
		}
		require.NoError(t, l.WriteTail(payload))
		require.NoError(t, l.WriteTailComplete())
		written = append(written, string(payload))
	}

	var delivered []string
	for l.HasUnread() {
		delivered = append(delivered, readEntry(t, l))
	}

	require.LessOrEqual(t, len(delivered), len(written))
	suffix := written[len(written)-len(delivered):]
	require.Equal(t, suffix, delivered)
}
