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
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/notedex/core"
	"github.com/poiesic/notedex/ingestion"
	"github.com/poiesic/notedex/storage"
)

// CheckpointKind is the checkpoint namespace reingestion passes save under.
const CheckpointKind = "reingest"

// Config holds configuration for a reingestion pass.
type Config struct {
	// BatchSize is the number of notes fetched and checkpointed together
	BatchSize int

	// ReportInterval is how often to report progress (number of notes)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for transient failures
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reingester re-runs the ingestion pipeline over every stored note, so a
// model or OCR engine upgrade propagates into the vectors and transcripts.
// Progress is checkpointed per batch; an interrupted pass resumes where it
// stopped.
type Reingester struct {
	notes       storage.NoteRepository
	checkpoints storage.CheckpointRepository
	pipeline    *ingestion.Pipeline
	config      *Config
	progress    io.Writer
	iterator    *RecordIterator
}

// NewReingester creates a new reingester.
// progress: where to write progress output (typically os.Stderr)
func NewReingester(
	notes storage.NoteRepository,
	checkpoints storage.CheckpointRepository,
	pipeline *ingestion.Pipeline,
	config *Config,
	progress io.Writer,
) (*Reingester, error) {
	if notes == nil {
		return nil, ErrNoteRepositoryRequired
	}
	if checkpoints == nil {
		return nil, ErrCheckpointRepositoryRequired
	}
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reingester{
		notes:       notes,
		checkpoints: checkpoints,
		pipeline:    pipeline,
		config:      config,
		progress:    progress,
		iterator:    NewRecordIterator(notes, config.BatchSize),
	}, nil
}

// Run executes the reingestion pass.
//
// Per-note failures do not stop the pass: notes whose source image cannot
// be read keep their stored state and are reported in the aggregated error.
// The pass aborts only on cancellation or storage errors, leaving the
// checkpoint in place so the next run resumes after the last completed
// batch. A pass that reaches the end of the store clears its checkpoint.
func (r *Reingester) Run(ctx context.Context) error {
	total, err := r.notes.CountNoteRecords(ctx)
	if err != nil {
		return fmt.Errorf("counting notes: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No notes found in database (0 records)\n")
		return nil
	}

	after := core.ID(0)
	checkpoint, err := r.checkpoints.LoadCheckpoint(ctx, CheckpointKind)
	if err != nil {
		return fmt.Errorf("loading checkpoint: %w", err)
	}
	if checkpoint != nil {
		after = checkpoint.LastID
		fmt.Fprintf(r.progress, "Resuming reingestion after note %d\n", after)
	}

	fmt.Fprintf(r.progress, "Starting reingestion of %d notes (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	var (
		processed int
		missing   int
		failures  []error
	)

	err = r.iterator.ForEach(ctx, after, func(batch []*core.NoteRecord) error {
		for _, record := range batch {
			switch err := r.refresh(ctx, record); {
			case err == nil:
			case errors.Is(err, core.ErrImageLoad):
				missing++
				failures = append(failures, fmt.Errorf("note %d (%s): %w", record.Id, record.ImagePath, err))
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				failures = append(failures, fmt.Errorf("note %d: %w", record.Id, err))
			}
			processed++
			tracker.Increment(1)
		}

		mark := &core.Checkpoint{
			Kind:      CheckpointKind,
			LastID:    batch[len(batch)-1].Id,
			UpdatedAt: time.Now().UTC(),
		}
		if err := r.checkpoints.SaveCheckpoint(ctx, mark); err != nil {
			return fmt.Errorf("saving checkpoint: %w", err)
		}
		return nil
	})
	if err != nil {
		// Checkpoint stays put; the next run resumes here.
		return err
	}

	if err := r.checkpoints.DeleteCheckpoint(ctx, CheckpointKind); err != nil {
		return fmt.Errorf("clearing checkpoint: %w", err)
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	rate := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(processed) / secs
	}
	fmt.Fprintf(r.progress, "Reingestion complete. Processed %d notes in %v (%.1f notes/sec)\n",
		processed, elapsed.Round(time.Second), rate)
	if len(failures) > 0 {
		fmt.Fprintf(r.progress, "%d notes kept their stored state (%d missing images)\n",
			len(failures), missing)
	}

	return errors.Join(failures...)
}

// refresh re-runs ingestion for a single note. An unreadable source image
// is permanent (the file moved or was corrupted since the original scan)
// and skips the retry budget; other failures are retried with backoff.
func (r *Reingester) refresh(ctx context.Context, record *core.NoteRecord) error {
	var loadErr error
	err := RetryWithBackoff(ctx, func() error {
		_, err := r.pipeline.Reingest(ctx, record.Id, record.ImagePath)
		if errors.Is(err, core.ErrImageLoad) {
			loadErr = err
			return nil
		}
		return err
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		return err
	}
	return loadErr
}
