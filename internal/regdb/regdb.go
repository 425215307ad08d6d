// Package regdb is a small bbolt-backed sidecar store that remembers what
// each configured log was last initialized with (capacity, filler byte,
// and the time of that initialization). It does not participate in the ring log format itself —
// the compiled-in Config remains the sole authority on which logs exist —
// it only lets Registry.Init detect and refuse a capacity change that
// would silently reinterpret an existing ring file.
package regdb

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("ringlog_logs")

// Entry records what a log was last initialized with.
type Entry struct {
	Capacity   uint32
	FillerByte byte
	CreatedAt  time.Time
}

// DB wraps a bbolt database recording one Entry per configured log name.
type DB struct {
	bolt *bolt.DB
}

// Open opens (creating if necessary) the sidecar database at path.
func Open(path string) (*DB, error) {
	b, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("regdb: open %s: %w", path, err)
	}
	err = b.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("regdb: init bucket: %w", err)
	}
	return &DB{bolt: b}, nil
}

// Close closes the underlying bbolt database.
func (d *DB) Close() error {
	return d.bolt.Close()
}

// Get returns the recorded entry for name, and whether one was found.
func (d *DB) Get(name string) (Entry, bool, error) {
	var e Entry
	found := false
	err := d.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		v := b.Get([]byte(name))
		if v == nil {
			return nil
		}
		found = true
		var err error
		e, err = decodeEntry(v)
		return err
	})
	return e, found, err
}

// Put records or overwrites the entry for name.
func (d *DB) Put(name string, e Entry) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put([]byte(name), encodeEntry(e))
	})
}

func encodeEntry(e Entry) []byte {
	buf := make([]byte, 4+1+8)
	binary.LittleEndian.PutUint32(buf[0:4], e.Capacity)
	buf[4] = e.FillerByte
	binary.LittleEndian.PutUint64(buf[5:13], uint64(e.CreatedAt.Unix()))
	return buf
}

func decodeEntry(b []byte) (Entry, error) {
	if len(b) < 13 {
		return Entry{}, fmt.Errorf("regdb: corrupt entry (%d bytes)", len(b))
	}
	return Entry{
		Capacity:   binary.LittleEndian.Uint32(b[0:4]),
		FillerByte: b[4],
		CreatedAt:  time.Unix(int64(binary.LittleEndian.Uint64(b[5:13])), 0),
	}, nil
}
