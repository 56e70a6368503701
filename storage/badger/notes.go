package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/notedex/core"
	"github.com/poiesic/notedex/storage"
)

// NoteRepository implements storage.NoteRepository for BadgerDB.
type NoteRepository struct {
	backend *Backend
}

var _ storage.NoteRepository = (*NoteRepository)(nil)

// NewNoteRepository creates a new NoteRepository.
func NewNoteRepository(backend *Backend) *NoteRepository {
	return &NoteRepository{
		backend: backend,
	}
}

// Close releases repository resources. The backend is shared and closed by
// its owner.
func (r *NoteRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *NoteRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// PutNoteRecord stores a record, replacing any previous record with the
// same ID. Record write and date index maintenance happen in one
// transaction, so readers never observe a half-updated note.
func (r *NoteRepository) PutNoteRecord(ctx context.Context, record *core.NoteRecord) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeNoteRecordKey(record.Id)

		// Read old record to detect a timestamp change
		old, err := r.readNoteRecord(tx, key)
		if err != nil {
			return err
		}

		value := storage.MarshalNoteRecord(record)
		if err := tx.Set(key, value); err != nil {
			return err
		}

		if old != nil && !old.Timestamp.Equal(record.Timestamp) {
			oldDateKey := makeNoteDateKey(old.Timestamp, old.Id)
			if err := tx.Delete(oldDateKey); err != nil {
				return err
			}
		}
		if old == nil || !old.Timestamp.Equal(record.Timestamp) {
			dateKey := makeNoteDateKey(record.Timestamp, record.Id)
			if err := tx.Set(dateKey, storage.MarshalID(record.Id)); err != nil {
				return err
			}
		}

		return tx.Commit()
	}, true)
}

// DeleteNoteRecords removes note records by their IDs.
func (r *NoteRepository) DeleteNoteRecords(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeNoteRecordKey(id)

			// Read record to get metadata for index cleanup
			record, err := r.readNoteRecord(tx, key)
			if err != nil {
				return err
			}
			if record == nil {
				return storage.ErrNotFound
			}

			// Delete from date index
			dateKey := makeNoteDateKey(record.Timestamp, record.Id)
			if err := tx.Delete(dateKey); err != nil {
				return err
			}

			// Delete primary record
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetNoteRecord retrieves a single note record by ID.
func (r *NoteRepository) GetNoteRecord(ctx context.Context, id core.ID) (*core.NoteRecord, error) {
	var result *core.NoteRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeNoteRecordKey(id)
		var err error
		result, err = r.readNoteRecord(tx, key)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetNoteRecords retrieves multiple note records by their IDs.
func (r *NoteRepository) GetNoteRecords(ctx context.Context, ids ...core.ID) ([]*core.NoteRecord, error) {
	var result []*core.NoteRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeNoteRecordKey(id)
			record, err := r.readNoteRecord(tx, key)
			if err != nil {
				return err
			}
			if record != nil {
				result = append(result, record)
			}
		}
		return nil
	}, false)
	return result, err
}

// GetNoteRecordsByDateRange retrieves note records within a time range.
func (r *NoteRepository) GetNoteRecordsByDateRange(ctx context.Context, start, end time.Time) ([]*core.NoteRecord, error) {
	if start.Equal(end) {
		end = start.Add(1 * time.Microsecond)
	}

	var results []*core.NoteRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		startKey := makePartialNoteDateKey(start)
		endKey := makePartialNoteDateKey(end)
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		for iter.Seek(startKey); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if slices.Compare(key, endKey) > 0 {
				break
			}

			// Read the ID from the index
			var recordID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				recordID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			// Look up the full record
			recordKey := makeNoteRecordKey(recordID)
			record, err := r.readNoteRecord(tx, recordKey)
			if err != nil {
				return err
			}
			if record != nil {
				results = append(results, record)
			}
		}
		return nil
	}, false)

	return results, err
}

// GetRecentNoteRecords retrieves the N most recent note records, ordered by
// timestamp descending.
func (r *NoteRepository) GetRecentNoteRecords(ctx context.Context, limit int) ([]*core.NoteRecord, error) {
	var results []*core.NoteRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Use reverse iterator to get most recent records first
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true

		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek to the last possible key in the date index
		startKey := makePartialNoteDateKey(time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC))

		prefix := []byte(noteRecordDatePrefix + ":")

		count := 0
		for iter.Seek(startKey); iter.Valid() && count < limit; iter.Next() {
			key := iter.Item().Key()

			// Check if we're still in the date index
			if len(key) < len(prefix) || slices.Compare(key[:len(prefix)], prefix) != 0 {
				break
			}

			// Read the ID from the index
			var recordID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				recordID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			// Look up the full record
			recordKey := makeNoteRecordKey(recordID)
			record, err := r.readNoteRecord(tx, recordKey)
			if err != nil {
				return err
			}
			if record != nil {
				results = append(results, record)
				count++
			}
		}
		return nil
	}, false)

	return results, err
}

// ForEachNoteRecord visits every stored record in ascending ID order.
// Record keys embed the ID in BigEndian, so prefix order is ID order.
func (r *NoteRepository) ForEachNoteRecord(ctx context.Context, fn func(record *core.NoteRecord) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(noteRecordPrefix + ":")

		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			var record *core.NoteRecord
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalNoteRecord(val)
				return err
			}); err != nil {
				return err
			}
			if record == nil {
				continue
			}
			if err := fn(record); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// CountNoteRecords returns the number of stored note records.
func (r *NoteRepository) CountNoteRecords(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(noteRecordPrefix + ":")
		opts.PrefetchValues = false

		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// readNoteRecord reads a note record from the transaction.
func (r *NoteRepository) readNoteRecord(tx *badger.Txn, key []byte) (*core.NoteRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var record *core.NoteRecord
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = storage.UnmarshalNoteRecord(val)
		return unmarshalErr
	})
	return record, err
}
