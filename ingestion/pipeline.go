package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/notedex/ai"
	"github.com/poiesic/notedex/core"
	"github.com/poiesic/notedex/storage"
)

// Plausible bounds for a scanned note. Violations are logged, never fatal:
// thumbnail-sized scans still embed, they just embed badly.
const (
	minImageDim = 32
	maxImageDim = 16384
)

// Pipeline turns a note image into a stored NoteRecord: it fans the image
// out to the embedding models and OCR engines, assembles whatever they
// produce, and persists the result in a single atomic write.
//
// Only the initial image load is fatal. Every derivation is best effort;
// a failed model or engine leaves its slot absent and the run continues.
// A Pipeline is safe for concurrent use.
type Pipeline struct {
	notes    storage.NoteRepository
	index    storage.VectorIndex
	gateway  ai.Gateway
	pool     *ants.Pool
	dims     core.Dims
	observer ProgressObserver
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent derivations.
// The pool is shared across runs, so it also caps the number of in-flight
// model calls when several images are ingested at once.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}

		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithObserver sets the progress observer notified during each run.
// Default is a no-op observer.
func WithObserver(observer ProgressObserver) Option {
	return func(p *Pipeline) error {
		if observer == nil {
			observer = noopObserver{}
		}
		p.observer = observer
		return nil
	}
}

// WithDims overrides the expected dimensionality of each embedding field.
// Default is core.DefaultDims().
func WithDims(dims core.Dims) Option {
	return func(p *Pipeline) error {
		for _, f := range core.Fields() {
			if dims.Of(f) < 1 {
				return fmt.Errorf("dimension for %s must be positive", f)
			}
		}
		p.dims = dims
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	notes storage.NoteRepository,
	index storage.VectorIndex,
	gateway ai.Gateway,
	opts ...Option,
) (*Pipeline, error) {
	if notes == nil {
		return nil, ErrNoteRepositoryRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	if gateway == nil {
		return nil, ErrGatewayRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	// Create pipeline with defaults
	p := &Pipeline{
		notes:    notes,
		index:    index,
		gateway:  gateway,
		pool:     pool,
		dims:     core.DefaultDims(),
		observer: noopObserver{},
		logger:   slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Ingest processes the image at path and stores the resulting record.
// The record ID is derived from the path, so ingesting the same path again
// replaces the previous record wholesale.
//
// Returns the stored record. The only fatal failures are an unreadable or
// undecodable image (wrapped core.ErrImageLoad), context cancellation, and
// a storage error on the final write.
func (p *Pipeline) Ingest(ctx context.Context, path string) (*core.NoteRecord, error) {
	return p.run(ctx, core.IDFromPath(path), path)
}

// Reingest re-derives every slot for an existing record, keeping its ID.
// Used by maintenance jobs after a model upgrade.
func (p *Pipeline) Reingest(ctx context.Context, id core.ID, path string) (*core.NoteRecord, error) {
	return p.run(ctx, id, path)
}

func (p *Pipeline) run(ctx context.Context, id core.ID, imagePath string) (*core.NoteRecord, error) {
	sink := newProgressSink(p.observer)

	img, err := ai.LoadImage(imagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrImageLoad, err)
	}
	sink.report(StageLoad, fmt.Sprintf("loaded %s %dx%d", img.Format, img.Width, img.Height))

	if img.Width < minImageDim || img.Height < minImageDim ||
		img.Width > maxImageDim || img.Height > maxImageDim {
		p.logger.Warn("unusual image dimensions",
			"path", imagePath, "width", img.Width, "height", img.Height)
		sink.report(StageLoad, fmt.Sprintf("unusual dimensions %dx%d", img.Width, img.Height))
	}

	record := &core.NoteRecord{
		Id:        id,
		ImagePath: imagePath,
		Timestamp: time.Now().UTC(),
	}

	// Each derivation writes only its own record slots, and the join below
	// happens before anything reads them, so the record needs no lock.
	var wg sync.WaitGroup

	for _, task := range []struct {
		kind  ai.ModelKind
		field core.Field
		stage Stage
	}{
		{ai.ModelVisual, core.FieldVisual, StageVisual},
		{ai.ModelClip, core.FieldClip, StageClip},
		{ai.ModelVisualText, core.FieldVisualText, StageVisualText},
	} {
		p.submit(&wg, imagePath, func() {
			if embedErr := p.embedImageField(ctx, img, task.kind, task.field, record); embedErr != nil {
				p.logger.Warn("image embedding failed",
					"field", task.field.String(), "path", imagePath, "err", embedErr)
				sink.report(task.stage, task.field.String()+" embedding failed")
				return
			}
			sink.report(task.stage, task.field.String()+" embedding stored")
		})
	}

	p.submit(&wg, imagePath, func() { p.runOcrChain(ctx, img, ai.EngineA, record, sink) })
	p.submit(&wg, imagePath, func() { p.runOcrChain(ctx, img, ai.EngineB, record, sink) })

	wg.Wait()

	// A cancelled run persists nothing, even when some derivations finished.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := p.persist(ctx, record); err != nil {
		return nil, err
	}
	sink.report(StagePersist, fmt.Sprintf("stored note %d with fields %s", record.Id, record.PresentFields()))

	return record, nil
}

// submit schedules task on the shared pool and tracks it in wg.
// A pool rejection counts as a failed derivation, not a failed run.
func (p *Pipeline) submit(wg *sync.WaitGroup, path string, task func()) {
	wg.Add(1)
	if err := p.pool.Submit(func() {
		defer wg.Done()
		task()
	}); err != nil {
		wg.Done()
		p.logger.Warn("worker pool rejected derivation", "path", path, "err", err)
	}
}

// embedImageField fills one visual slot. On error the slot stays absent.
func (p *Pipeline) embedImageField(ctx context.Context, img *ai.Image, kind ai.ModelKind, field core.Field, record *core.NoteRecord) error {
	vec, err := p.gateway.EmbedImage(ctx, img, kind)
	if err != nil {
		return err
	}
	if err := core.ValidateVector(field, vec, p.dims.Of(field)); err != nil {
		return err
	}
	record.SetEmbedding(field, vec)
	return nil
}

// runOcrChain recognizes text with one engine, then embeds the transcript.
// The transcript and confidence are kept even when the embedding step
// fails, so a note can match by stored text without a text vector.
func (p *Pipeline) runOcrChain(ctx context.Context, img *ai.Image, engine ai.EngineKind, record *core.NoteRecord, sink *progressSink) {
	field := core.FieldTextA
	if engine == ai.EngineB {
		field = core.FieldTextB
	}

	recognized, err := p.gateway.RecognizeText(ctx, img, engine)
	if err != nil {
		p.logger.Warn("text recognition failed",
			"engine", engine.String(), "path", img.Path, "err", err)
		sink.report(StageOCR, engine.String()+" recognition failed")
		sink.report(StageTextEmbed, engine.String()+" chain abandoned")
		return
	}

	text := core.NormalizeText(recognized.Text)
	if engine == ai.EngineA {
		record.OcrTextA = text
		record.OcrConfidenceA = recognized.Confidence
	} else {
		record.OcrTextB = text
		record.OcrConfidenceB = recognized.Confidence
	}
	sink.report(StageOCR, engine.String()+" recognized")

	if text == "" {
		sink.report(StageTextEmbed, engine.String()+" transcript empty, nothing to embed")
		return
	}

	vec, err := p.gateway.EmbedText(ctx, text)
	if err != nil {
		p.logger.Warn("transcript embedding failed",
			"engine", engine.String(), "path", img.Path, "err", err)
		sink.report(StageTextEmbed, engine.String()+" transcript kept without embedding")
		return
	}
	if err := core.ValidateVector(field, vec, p.dims.Of(field)); err != nil {
		p.logger.Warn("transcript embedding rejected",
			"engine", engine.String(), "path", img.Path, "err", err)
		sink.report(StageTextEmbed, engine.String()+" transcript kept without embedding")
		return
	}
	record.SetEmbedding(field, vec)
	sink.report(StageTextEmbed, engine.String()+" transcript embedded")
}

// persist writes the record, then brings the vector index in line with it.
// The record store is authoritative; the index is derived state rebuilt
// from it at open, so index sync failures are logged, not returned.
func (p *Pipeline) persist(ctx context.Context, record *core.NoteRecord) error {
	if err := p.notes.PutNoteRecord(ctx, record); err != nil {
		return fmt.Errorf("persisting note %d: %w", record.Id, err)
	}

	for _, field := range core.Fields() {
		if record.HasEmbedding(field) {
			if err := p.index.Upsert(ctx, record.Id, field, record.Embedding(field)); err != nil {
				p.logger.Warn("vector index upsert failed",
					"field", field.String(), "note", record.Id, "err", err)
			}
			continue
		}
		if err := p.index.Remove(ctx, record.Id, field); err != nil {
			p.logger.Warn("vector index remove failed",
				"field", field.String(), "note", record.Id, "err", err)
		}
	}

	return nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
