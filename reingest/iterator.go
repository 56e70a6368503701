// Copyright 2026 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reingest

import (
	"context"

	"github.com/poiesic/notedex/core"
	"github.com/poiesic/notedex/storage"
)

const (
	// DefaultBatchSize is the default number of records delivered per batch
	DefaultBatchSize = 100
)

// RecordIterator walks every stored note in ascending id order and delivers
// them in batches, so a pass over a large store never holds more than one
// batch in memory.
type RecordIterator struct {
	notes     storage.NoteRepository
	batchSize int
}

// NewRecordIterator creates a new record iterator.
// batchSize: number of records per batch (must be > 0)
func NewRecordIterator(notes storage.NoteRepository, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &RecordIterator{
		notes:     notes,
		batchSize: batchSize,
	}
}

// ForEach streams batches to fn, starting with the first note whose id is
// greater than after. Pass zero to start from the beginning. Iteration
// stops on the first error from fn; context cancellation is checked
// between batches.
func (it *RecordIterator) ForEach(ctx context.Context, after core.ID, fn func([]*core.NoteRecord) error) error {
	batch := make([]*core.NoteRecord, 0, it.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		full := batch
		batch = make([]*core.NoteRecord, 0, it.batchSize)
		return fn(full)
	}

	err := it.notes.ForEachNoteRecord(ctx, func(record *core.NoteRecord) error {
		if record.Id <= after {
			return nil
		}
		batch = append(batch, record)
		if len(batch) == it.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}

	return flush()
}
