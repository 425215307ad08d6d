package regdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "regdb.bolt"))
	require.NoError(t, err)
	defer db.Close()

	want := Entry{Capacity: 160, FillerByte: 0xAB, CreatedAt: time.Unix(1700000000, 0)}
	require.NoError(t, db.Put("log_a", want))

	got, found, err := db.Get("log_a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, want.Capacity, got.Capacity)
	require.Equal(t, want.FillerByte, got.FillerByte)
	require.True(t, want.CreatedAt.Equal(got.CreatedAt))
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "regdb.bolt"))
	require.NoError(t, err)
	defer db.Close()

	_, found, err := db.Get("nope")
	require.NoError(t, err)
	require.False(t, found)
}

func TestPutOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "regdb.bolt"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put("log_a", Entry{Capacity: 100}))
	require.NoError(t, db.Put("log_a", Entry{Capacity: 200}))

	got, found, err := db.Get("log_a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint32(200), got.Capacity)
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "regdb.bolt")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Put("log_a", Entry{Capacity: 160}))
	require.NoError(t, db.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, found, err := reopened.Get("log_a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint32(160), got.Capacity)
}
