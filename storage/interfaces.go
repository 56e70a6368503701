package storage

import (
	"context"
	"time"

	"github.com/poiesic/notedex/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// NoteRepository provides durable storage for note records.
type NoteRepository interface {
	Repository
	// PutNoteRecord stores a record, replacing any previous record with
	// the same ID in a single atomic write. Readers never observe a
	// partially updated record.
	PutNoteRecord(ctx context.Context, record *core.NoteRecord) error

	// GetNoteRecord retrieves a single note record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetNoteRecord(ctx context.Context, id core.ID) (*core.NoteRecord, error)

	// GetNoteRecords retrieves multiple note records by their IDs.
	// Returns only the records that exist (no error for missing records).
	GetNoteRecords(ctx context.Context, ids ...core.ID) ([]*core.NoteRecord, error)

	// DeleteNoteRecords removes note records by their IDs.
	// Also removes associated indices.
	// Returns ErrNotFound if any record doesn't exist.
	DeleteNoteRecords(ctx context.Context, ids ...core.ID) error

	// GetNoteRecordsByDateRange retrieves note records within a time range.
	// Returns records where start <= Timestamp < end, ordered by timestamp.
	GetNoteRecordsByDateRange(ctx context.Context, start, end time.Time) ([]*core.NoteRecord, error)

	// GetRecentNoteRecords retrieves the N most recent note records, ordered
	// by timestamp descending. Returns up to limit records.
	GetRecentNoteRecords(ctx context.Context, limit int) ([]*core.NoteRecord, error)

	// ForEachNoteRecord visits every stored record in ascending ID order.
	// Iteration stops at the first error returned by fn, which is passed
	// through to the caller.
	ForEachNoteRecord(ctx context.Context, fn func(record *core.NoteRecord) error) error

	// CountNoteRecords returns the number of stored note records.
	CountNoteRecords(ctx context.Context) (int, error)
}

// CheckpointRepository persists progress markers for long-running
// maintenance jobs so they can resume after interruption.
type CheckpointRepository interface {
	// SaveCheckpoint stores the checkpoint for its kind, replacing any
	// previous checkpoint of the same kind.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a kind.
	// Returns (nil, nil) when no checkpoint exists.
	LoadCheckpoint(ctx context.Context, kind string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint for a kind, if present.
	DeleteCheckpoint(ctx context.Context, kind string) error
}

// VectorIndex provides approximate nearest neighbour search over the
// embedding slots of stored notes. Each field is a separate logical index;
// a note appears in a field's index only while it carries that embedding.
type VectorIndex interface {
	// Upsert inserts or replaces the vector indexed for (id, field).
	Upsert(ctx context.Context, id core.ID, field core.Field, vector []float32) error

	// Remove drops the vector indexed for (id, field). Removing an
	// absent entry is not an error.
	Remove(ctx context.Context, id core.ID, field core.Field) error

	// Search returns up to k neighbours of the query vector within a
	// field's index, ordered by ascending cosine distance. An empty
	// index yields an empty result, not an error.
	Search(ctx context.Context, field core.Field, query []float32, k int) ([]core.Neighbor, error)

	// Len reports the number of vectors currently indexed for a field.
	Len(field core.Field) int

	// Close releases index resources.
	Close() error
}
