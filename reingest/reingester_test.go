package reingest

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/poiesic/notedex/ai"
	"github.com/poiesic/notedex/ai/mock"
	"github.com/poiesic/notedex/core"
	"github.com/poiesic/notedex/ingestion"
	"github.com/poiesic/notedex/storage"
	"github.com/poiesic/notedex/storage/ann"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reingestDims() core.Dims {
	return core.Dims{Visual: 3, Clip: 4, VisualText: 5, TextA: 6, TextB: 6}
}

func unitVec(dim int) []float32 {
	vec := make([]float32, dim)
	vec[0] = 1
	return vec
}

// writeScan writes a small PNG and returns its path.
func writeScan(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 64, 48))))
	require.NoError(t, f.Close())
	return path
}

type reingestFixture struct {
	notes       storage.NoteRepository
	checkpoints storage.CheckpointRepository
	index       *ann.Index
	gateway     *mock.MockGateway
	reingester  *Reingester
	out         *bytes.Buffer
}

func newReingestFixture(t *testing.T, config *Config) *reingestFixture {
	t.Helper()

	notes, checkpoints := setupTestStore(t)

	index, err := ann.New(ann.Config{Dims: reingestDims()})
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	gateway := mock.NewMockGateway()
	gateway.ImageDims = map[ai.ModelKind]int{
		ai.ModelVisual:     reingestDims().Visual,
		ai.ModelClip:       reingestDims().Clip,
		ai.ModelVisualText: reingestDims().VisualText,
	}
	gateway.TextDim = reingestDims().TextA

	pipeline, err := ingestion.NewPipeline(notes, index, gateway,
		ingestion.WithDims(reingestDims()), ingestion.WithPoolSize(2))
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	if config == nil {
		config = &Config{
			BatchSize:      3,
			ReportInterval: 3,
			MaxRetries:     2,
			RetryDelay:     5 * time.Millisecond,
		}
	}

	out := &bytes.Buffer{}
	reingester, err := NewReingester(notes, checkpoints, pipeline, config, out)
	require.NoError(t, err)

	return &reingestFixture{
		notes:       notes,
		checkpoints: checkpoints,
		index:       index,
		gateway:     gateway,
		reingester:  reingester,
		out:         out,
	}
}

// seedScans stores n bare records backed by real image files, returned in
// ascending id order.
func (f *reingestFixture) seedScans(t *testing.T, n int) []*core.NoteRecord {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	records := make([]*core.NoteRecord, 0, n)
	for i := 0; i < n; i++ {
		path := writeScan(t, dir, fmt.Sprintf("scan-%03d.png", i))
		record := &core.NoteRecord{
			Id:        core.IDFromPath(path),
			ImagePath: path,
			Timestamp: time.Now().UTC(),
		}
		require.NoError(t, f.notes.PutNoteRecord(ctx, record))
		records = append(records, record)
	}
	slices.SortFunc(records, func(a, b *core.NoteRecord) int {
		return cmp.Compare(a.Id, b.Id)
	})
	return records
}

func TestNewReingester(t *testing.T) {
	f := newReingestFixture(t, nil)
	pipeline := f.reingester.pipeline

	t.Run("nil note repository", func(t *testing.T) {
		_, err := NewReingester(nil, f.checkpoints, pipeline, nil, nil)
		assert.Equal(t, ErrNoteRepositoryRequired, err)
	})

	t.Run("nil checkpoint repository", func(t *testing.T) {
		_, err := NewReingester(f.notes, nil, pipeline, nil, nil)
		assert.Equal(t, ErrCheckpointRepositoryRequired, err)
	})

	t.Run("nil pipeline", func(t *testing.T) {
		_, err := NewReingester(f.notes, f.checkpoints, nil, nil, nil)
		assert.Equal(t, ErrPipelineRequired, err)
	})

	t.Run("nil config and progress fall back to defaults", func(t *testing.T) {
		r, err := NewReingester(f.notes, f.checkpoints, pipeline, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().BatchSize, r.config.BatchSize)
		assert.NotNil(t, r.progress)
	})
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Greater(t, config.BatchSize, 0, "batch size should be positive")
	assert.Greater(t, config.ReportInterval, 0, "report interval should be positive")
	assert.Greater(t, config.MaxRetries, 0, "max retries should be positive")
	assert.Greater(t, config.RetryDelay, time.Duration(0), "retry delay should be positive")
}

func TestReingester_Run(t *testing.T) {
	f := newReingestFixture(t, nil)
	ctx := context.Background()

	records := f.seedScans(t, 10)

	require.NoError(t, f.reingester.Run(ctx))

	for _, rec := range records {
		stored, err := f.notes.GetNoteRecord(ctx, rec.Id)
		require.NoError(t, err)
		assert.Equal(t, 5, stored.PresentFields().Count(), "note %d should carry all five vectors", rec.Id)
		assert.NotEmpty(t, stored.OcrTextA)
		assert.NotEmpty(t, stored.OcrTextB)
	}
	assert.Equal(t, 10, f.index.Len(core.FieldVisual))
	assert.Equal(t, 10, f.index.Len(core.FieldTextB))

	// A finished pass leaves no checkpoint behind.
	cp, err := f.checkpoints.LoadCheckpoint(ctx, CheckpointKind)
	require.NoError(t, err)
	assert.Nil(t, cp)

	output := f.out.String()
	assert.Contains(t, output, "Progress:")
	assert.Contains(t, output, "10/10")
	assert.Contains(t, output, "Reingestion complete")
}

func TestReingester_EmptyStore(t *testing.T) {
	f := newReingestFixture(t, nil)

	require.NoError(t, f.reingester.Run(context.Background()))
	assert.Contains(t, f.out.String(), "0 records")
}

func TestReingester_MissingImageSkipped(t *testing.T) {
	f := newReingestFixture(t, nil)
	ctx := context.Background()

	records := f.seedScans(t, 4)
	victim := records[1]
	require.NoError(t, os.Remove(victim.ImagePath))

	err := f.reingester.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrImageLoad)
	assert.Contains(t, err.Error(), victim.ImagePath)

	for _, rec := range records {
		stored, gerr := f.notes.GetNoteRecord(ctx, rec.Id)
		require.NoError(t, gerr)
		if rec.Id == victim.Id {
			assert.Equal(t, 0, stored.PresentFields().Count(), "unreadable note keeps its stored state")
		} else {
			assert.Equal(t, 5, stored.PresentFields().Count())
		}
	}

	// The pass still reached the end of the store.
	cp, cerr := f.checkpoints.LoadCheckpoint(ctx, CheckpointKind)
	require.NoError(t, cerr)
	assert.Nil(t, cp)

	assert.Contains(t, f.out.String(), "missing images")
}

func TestReingester_ResumesFromCheckpoint(t *testing.T) {
	f := newReingestFixture(t, nil)
	ctx := context.Background()

	records := f.seedScans(t, 5)

	// As if an earlier pass stopped after the second note.
	require.NoError(t, f.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		Kind:      CheckpointKind,
		LastID:    records[1].Id,
		UpdatedAt: time.Now().UTC(),
	}))

	require.NoError(t, f.reingester.Run(ctx))

	for i, rec := range records {
		stored, err := f.notes.GetNoteRecord(ctx, rec.Id)
		require.NoError(t, err)
		if i <= 1 {
			assert.Equal(t, 0, stored.PresentFields().Count(), "notes before the checkpoint stay untouched")
		} else {
			assert.Equal(t, 5, stored.PresentFields().Count())
		}
	}

	assert.Contains(t, f.out.String(), "Resuming reingestion")
}

func TestReingester_ContextCancellation(t *testing.T) {
	f := newReingestFixture(t, &Config{
		BatchSize:      2,
		ReportInterval: 2,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
	})

	records := f.seedScans(t, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Abort while the second batch is in flight.
	trigger := records[2].ImagePath
	f.gateway.EmbedImageFunc = func(fctx context.Context, img *ai.Image, kind ai.ModelKind) ([]float32, error) {
		if img.Path == trigger {
			cancel()
			return nil, fctx.Err()
		}
		switch kind {
		case ai.ModelClip:
			return unitVec(reingestDims().Clip), nil
		case ai.ModelVisualText:
			return unitVec(reingestDims().VisualText), nil
		default:
			return unitVec(reingestDims().Visual), nil
		}
	}

	err := f.reingester.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// The completed first batch left a resumable checkpoint.
	cp, cerr := f.checkpoints.LoadCheckpoint(context.Background(), CheckpointKind)
	require.NoError(t, cerr)
	require.NotNil(t, cp)
	assert.Equal(t, records[1].Id, cp.LastID)
}
