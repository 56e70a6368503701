package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/notedex/core"
)

// Key prefixes for different data types
const (
	noteRecordPrefix     = "notrec"
	noteRecordDatePrefix = "notrecd"
)

// makeNoteRecordKey generates a key for a note record by ID.
// The ID is written in BigEndian order so that iterating the record prefix
// visits records in ascending ID order.
func makeNoteRecordKey(id core.ID) []byte {
	prefix := noteRecordPrefix + ":"
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeNoteDateKey generates a composite key for the date index.
// Format: prefix:timestamp:id
func makeNoteDateKey(timestamp time.Time, id core.ID) []byte {
	prefix := noteRecordDatePrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 16 // 8 bytes for timestamp + 8 bytes for ID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialNoteDateKey generates a partial key for date range queries.
// Format: prefix:timestamp
func makePartialNoteDateKey(timestamp time.Time) []byte {
	prefix := noteRecordDatePrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8 // 8 bytes for timestamp
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	return buf
}

// makeCheckpointKey generates a key for maintenance job checkpoints.
func makeCheckpointKey(kind string) []byte {
	return []byte(fmt.Sprintf("%s:chkpt", kind))
}
