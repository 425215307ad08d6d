package ringlog

import "encoding/binary"

// header is the on-disk 4-byte (head:u16, tail:u16) prefix of a log file,
// little-endian, per the design's on-disk format (§3/§6).
type header struct {
	head uint16
	tail uint16
}

func decodeHeader(b []byte) header {
	return header{
		head: binary.LittleEndian.Uint16(b[0:2]),
		tail: binary.LittleEndian.Uint16(b[2:4]),
	}
}

func (h header) encode(b []byte) {
	binary.LittleEndian.PutUint16(b[0:2], h.head)
	binary.LittleEndian.PutUint16(b[2:4], h.tail)
}

func (h header) empty() bool { return h.head == h.tail }

// entryLen is the 2-byte little-endian length field preceding an entry's
// payload.
type entryLen uint16

func decodeEntryLen(b []byte) entryLen {
	return entryLen(binary.LittleEndian.Uint16(b[0:2]))
}

func (l entryLen) encode(b []byte) {
	binary.LittleEndian.PutUint16(b[0:2], uint16(l))
}
