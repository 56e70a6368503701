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


package notedex

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/notedex/ai"
	"github.com/poiesic/notedex/ai/openai"
	"github.com/poiesic/notedex/ai/vision"
	"github.com/poiesic/notedex/core"
	"github.com/poiesic/notedex/ingestion"
	"github.com/poiesic/notedex/reingest"
	"github.com/poiesic/notedex/search"
	"github.com/poiesic/notedex/storage"
	"github.com/poiesic/notedex/storage/ann"
	"github.com/poiesic/notedex/storage/badger"
)

// Database bundles the note store, the vector index, the model gateway and
// the pipelines built on them behind a single handle.
type Database struct {
	backend     *badger.Backend
	notes       storage.NoteRepository
	checkpoints storage.CheckpointRepository
	index       *ann.Index
	gateway     ai.Gateway
	pipeline    *ingestion.Pipeline
	searcher    *search.Searcher
	dims        core.Dims
	logger      *slog.Logger
}

// Option configures a Database.
type Option func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	gateway  ai.Gateway
	dims     core.Dims
	useHNSW  bool
	poolSize int
	inMemory bool
	logger   *slog.Logger
}

// WithAIConfig configures the model services the gateway talks to.
// Ignored when a gateway is injected with WithGateway.
func WithAIConfig(config *ai.Config) Option {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithGateway substitutes a ready-made model gateway, bypassing service
// construction entirely. Useful for tests and offline seeding.
func WithGateway(gateway ai.Gateway) Option {
	return func(o *databaseOptions) {
		o.gateway = gateway
	}
}

// WithDims overrides the expected embedding dimensions.
func WithDims(dims core.Dims) Option {
	return func(o *databaseOptions) {
		o.dims = dims
	}
}

// WithHNSW switches the vector index from exact flat search to HNSW graphs.
// Worth it above roughly 100k notes.
func WithHNSW() Option {
	return func(o *databaseOptions) {
		o.useHNSW = true
	}
}

// WithPoolSize sets the ingestion worker pool size.
func WithPoolSize(size int) Option {
	return func(o *databaseOptions) {
		o.poolSize = size
	}
}

// WithLogger sets the logger shared by the database and its pipelines.
func WithLogger(logger *slog.Logger) Option {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// WithInMemory keeps the whole store in memory. Nothing touches disk and
// the path passed to Open is ignored.
func WithInMemory() Option {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// Open opens (or creates) the database at path and wires the components
// around it. The vector index lives in memory only, so Open replays every
// stored vector into it; opening a large store does proportional work.
func Open(path string, opts ...Option) (*Database, error) {
	// Apply options
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
		dims:     core.DefaultDims(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(path, options.inMemory)
	if err != nil {
		return nil, err
	}

	notes := badger.NewNoteRepository(backend)
	checkpoints := badger.NewCheckpointRepository(backend)

	index, err := ann.New(ann.Config{Dims: options.dims, UseHNSW: options.useHNSW})
	if err != nil {
		notes.Close()
		backend.Close()
		return nil, err
	}

	gateway := options.gateway
	if gateway == nil {
		gateway, err = newGateway(options.aiConfig)
		if err != nil {
			index.Close()
			notes.Close()
			backend.Close()
			return nil, err
		}
	}

	if err := rebuildIndex(context.Background(), notes, index); err != nil {
		index.Close()
		notes.Close()
		backend.Close()
		return nil, err
	}

	pipelineOpts := []ingestion.Option{
		ingestion.WithDims(options.dims),
		ingestion.WithLogger(options.logger),
	}
	if options.poolSize > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithPoolSize(options.poolSize))
	}
	pipeline, err := ingestion.NewPipeline(notes, index, gateway, pipelineOpts...)
	if err != nil {
		index.Close()
		notes.Close()
		backend.Close()
		return nil, err
	}

	searcher, err := search.NewSearcher(notes, index, gateway,
		search.WithDims(options.dims), search.WithLogger(options.logger))
	if err != nil {
		pipeline.Release()
		index.Close()
		notes.Close()
		backend.Close()
		return nil, err
	}

	return &Database{
		backend:     backend,
		notes:       notes,
		checkpoints: checkpoints,
		index:       index,
		gateway:     gateway,
		pipeline:    pipeline,
		searcher:    searcher,
		dims:        options.dims,
		logger:      options.logger,
	}, nil
}

// newGateway builds the production gateway from service configuration.
func newGateway(config *ai.Config) (ai.Gateway, error) {
	images, err := vision.NewClient(config)
	if err != nil {
		return nil, err
	}
	texts, err := openai.NewEmbedder(config)
	if err != nil {
		return nil, err
	}
	transcriber, err := openai.NewTranscriber(config)
	if err != nil {
		return nil, err
	}
	return ai.NewGateway(images, texts, transcriber), nil
}

// rebuildIndex replays every stored vector into the in-memory index.
func rebuildIndex(ctx context.Context, notes storage.NoteRepository, index *ann.Index) error {
	return notes.ForEachNoteRecord(ctx, func(record *core.NoteRecord) error {
		for _, field := range record.PresentFields().Fields() {
			if err := index.Upsert(ctx, record.Id, field, record.Embedding(field)); err != nil {
				return fmt.Errorf("indexing note %d field %s: %w", record.Id, field, err)
			}
		}
		return nil
	})
}

// Close releases the pipelines, the index and the storage backend.
func (db *Database) Close() error {
	db.pipeline.Release()

	if err := db.index.Close(); err != nil {
		db.logger.Error("error closing vector index", "err", err)
	}

	if err := db.notes.Close(); err != nil {
		db.logger.Error("error closing note repository", "err", err)
		return err
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Ingest runs the full ingestion pipeline over one scanned image and
// returns the persisted record.
func (db *Database) Ingest(ctx context.Context, imagePath string) (*core.NoteRecord, error) {
	return db.pipeline.Ingest(ctx, imagePath)
}

// Reingest recomputes one note's derived state from its image, keeping the
// note id stable.
func (db *Database) Reingest(ctx context.Context, id core.ID, imagePath string) (*core.NoteRecord, error) {
	return db.pipeline.Reingest(ctx, id, imagePath)
}

// ReingestAll re-runs ingestion over every stored note, resuming from the
// last checkpoint when a previous pass was interrupted. Progress output
// goes to progress when non-nil. A nil config uses reingest.DefaultConfig.
func (db *Database) ReingestAll(ctx context.Context, config *reingest.Config, progress io.Writer) error {
	reingester, err := reingest.NewReingester(db.notes, db.checkpoints, db.pipeline, config, progress)
	if err != nil {
		return err
	}
	return reingester.Run(ctx)
}

// SearchImage loads the image at path and retrieves matching notes.
func (db *Database) SearchImage(ctx context.Context, imagePath string) ([]core.Match, error) {
	img, err := ai.LoadImage(imagePath)
	if err != nil {
		return nil, err
	}
	return db.searcher.ByImage(ctx, img)
}

// SearchText retrieves notes matching a free-text query.
func (db *Database) SearchText(ctx context.Context, query string) ([]core.Match, error) {
	return db.searcher.ByText(ctx, query)
}

// SimilarToNote retrieves notes similar to an already-stored note.
func (db *Database) SimilarToNote(ctx context.Context, id core.ID) ([]core.Match, error) {
	return db.searcher.SimilarToNote(ctx, id)
}

// NearDuplicates finds probable re-scans of the same physical page.
func (db *Database) NearDuplicates(ctx context.Context, id core.ID, k int) ([]core.Match, error) {
	return db.searcher.NearDuplicates(ctx, id, k)
}

// GetNote returns one stored record.
func (db *Database) GetNote(ctx context.Context, id core.ID) (*core.NoteRecord, error) {
	return db.notes.GetNoteRecord(ctx, id)
}

// DeleteNote removes a note's record and its index entries. The record
// goes first: a query racing the delete sees a stale index hit and drops
// it when the record fails to load.
func (db *Database) DeleteNote(ctx context.Context, id core.ID) error {
	if err := db.notes.DeleteNoteRecords(ctx, id); err != nil {
		return err
	}
	for _, field := range core.Fields() {
		if err := db.index.Remove(ctx, id, field); err != nil {
			db.logger.Warn("removing index entry", "id", id, "field", field.String(), "err", err)
		}
	}
	return nil
}

// Stats reports the stored note count and per-field index sizes.
type Stats struct {
	Notes   int
	Vectors map[core.Field]int
}

// Stats counts stored notes and indexed vectors.
func (db *Database) Stats(ctx context.Context) (*Stats, error) {
	count, err := db.notes.CountNoteRecords(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{
		Notes:   count,
		Vectors: make(map[core.Field]int, len(core.Fields())),
	}
	for _, field := range core.Fields() {
		stats.Vectors[field] = db.index.Len(field)
	}
	return stats, nil
}

func (db *Database) NoteRepository() storage.NoteRepository {
	return db.notes
}

func (db *Database) CheckpointRepository() storage.CheckpointRepository {
	return db.checkpoints
}

func (db *Database) VectorIndex() storage.VectorIndex {
	return db.index
}

// NewIngestionPipeline builds an extra pipeline over the database's
// components, for callers that need their own observer or pool sizing.
// The caller owns the pipeline and must Release it.
func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{
		ingestion.WithDims(db.dims),
		ingestion.WithLogger(db.logger),
	}
	return ingestion.NewPipeline(db.notes, db.index, db.gateway, append(base, opts...)...)
}

// NewSearcher builds an extra searcher over the database's components, for
// callers that need non-default tuning.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	base := []search.Option{
		search.WithDims(db.dims),
		search.WithLogger(db.logger),
	}
	return search.NewSearcher(db.notes, db.index, db.gateway, append(base, opts...)...)
}
