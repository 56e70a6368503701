package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/poiesic/notedex/ai"
	"github.com/poiesic/notedex/core"
	"github.com/poiesic/notedex/fusion"
	"github.com/poiesic/notedex/storage"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPerFieldK is how many neighbours each field index is asked for.
	DefaultPerFieldK = 10

	// DefaultDuplicateCutoff is the visual cosine distance below which two
	// scans count as copies of the same note.
	DefaultDuplicateCutoff = 0.05
)

// errEmptyTranscript marks an OCR chain that ran but read nothing.
// It is reported to monitors as a derivation outcome, not returned to callers.
var errEmptyTranscript = errors.New("empty transcript")

// Searcher ranks stored notes against image and text queries by fusing
// per-field nearest-neighbour evidence. A Searcher is safe for concurrent use.
type Searcher struct {
	notes     storage.NoteRepository
	index     storage.VectorIndex
	gateway   ai.Gateway
	dims      core.Dims
	perFieldK int
	dupCutoff float64
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithPerFieldK sets how many neighbours each field index returns before
// threshold filtering. Default is DefaultPerFieldK.
func WithPerFieldK(k int) Option {
	return func(s *Searcher) error {
		if k < 1 {
			k = DefaultPerFieldK
		}
		s.perFieldK = k
		return nil
	}
}

// WithDuplicateCutoff sets the visual distance bound used by NearDuplicates.
// Default is DefaultDuplicateCutoff.
func WithDuplicateCutoff(cutoff float64) Option {
	return func(s *Searcher) error {
		if cutoff <= 0 {
			cutoff = DefaultDuplicateCutoff
		}
		s.dupCutoff = cutoff
		return nil
	}
}

// WithDims overrides the expected dimensionality of each embedding field.
// Default is core.DefaultDims().
func WithDims(dims core.Dims) Option {
	return func(s *Searcher) error {
		for _, f := range core.Fields() {
			if dims.Of(f) < 1 {
				return fmt.Errorf("dimension for %s must be positive", f)
			}
		}
		s.dims = dims
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	notes storage.NoteRepository,
	index storage.VectorIndex,
	gateway ai.Gateway,
	opts ...Option,
) (*Searcher, error) {
	if notes == nil {
		return nil, ErrNoteRepositoryRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	if gateway == nil {
		return nil, ErrGatewayRequired
	}

	s := &Searcher{
		notes:     notes,
		index:     index,
		gateway:   gateway,
		dims:      core.DefaultDims(),
		perFieldK: DefaultPerFieldK,
		dupCutoff: DefaultDuplicateCutoff,
		logger:    slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// ByImage ranks stored notes against a query image.
// Returns matches ordered by ascending fused score.
func (s *Searcher) ByImage(ctx context.Context, img *ai.Image) ([]core.Match, error) {
	return s.ByImageWithMonitor(ctx, img, nil)
}

// ByImageWithMonitor ranks stored notes against a query image with monitoring.
// The monitor receives callbacks at each stage of the query.
//
// CLIP is the anchor signal: if its derivation fails the query returns an
// empty result and a nil error rather than ranking on weak evidence. The
// three other signals degrade individually.
func (s *Searcher) ByImageWithMonitor(ctx context.Context, img *ai.Image, monitor SearchMonitor) ([]core.Match, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start("image:" + img.Path)

	vectors, err := s.deriveImageSignals(ctx, img, monitor)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("clip query derivation failed", "path", img.Path, "err", err)
		monitor.PrimarySignalMissing(err)
		monitor.Finish(nil)
		return []core.Match{}, nil
	}

	return s.fuseAndRank(ctx, vectors, monitor)
}

// ByText ranks stored notes against a free-text query.
func (s *Searcher) ByText(ctx context.Context, query string) ([]core.Match, error) {
	return s.ByTextWithMonitor(ctx, query, nil)
}

// ByTextWithMonitor ranks stored notes against a free-text query with
// monitoring. The query is embedded once and searched against both
// transcript fields. The text embedding is the anchor signal here: if it
// fails, the result is empty with a nil error.
func (s *Searcher) ByTextWithMonitor(ctx context.Context, query string, monitor SearchMonitor) ([]core.Match, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start("text:" + query)

	text := core.NormalizeText(query)
	if text == "" {
		return nil, ErrEmptyQuery
	}

	vec, err := s.gateway.EmbedText(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("query text embedding failed", "err", err)
		monitor.PrimarySignalMissing(err)
		monitor.Finish(nil)
		return []core.Match{}, nil
	}

	vectors := make([][]float32, len(core.Fields()))
	var invalid error
	for _, field := range []core.Field{core.FieldTextA, core.FieldTextB} {
		if vErr := core.ValidateVector(field, vec, s.dims.Of(field)); vErr != nil {
			s.logger.Warn("query embedding does not fit field", "field", field.String(), "err", vErr)
			monitor.SignalDerived(field, vErr)
			invalid = vErr
			continue
		}
		vectors[field] = vec
		monitor.SignalDerived(field, nil)
	}

	if vectors[core.FieldTextA] == nil && vectors[core.FieldTextB] == nil {
		monitor.PrimarySignalMissing(invalid)
		monitor.Finish(nil)
		return []core.Match{}, nil
	}

	return s.fuseAndRank(ctx, vectors, monitor)
}

// SimilarToNote ranks stored notes against an existing note, using its
// stored vectors as query signals. The note itself is excluded.
func (s *Searcher) SimilarToNote(ctx context.Context, id core.ID) ([]core.Match, error) {
	return s.SimilarToNoteWithMonitor(ctx, id, nil)
}

// SimilarToNoteWithMonitor is SimilarToNote with stage callbacks.
// Returns storage.ErrNotFound when the note does not exist. A note with no
// stored vectors yields an empty result.
func (s *Searcher) SimilarToNoteWithMonitor(ctx context.Context, id core.ID, monitor SearchMonitor) ([]core.Match, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(fmt.Sprintf("note:%d", id))

	record, err := s.notes.GetNoteRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(core.Fields()))
	for _, field := range core.QueryFields() {
		if record.HasEmbedding(field) {
			vectors[field] = record.Embedding(field)
			monitor.SignalDerived(field, nil)
		}
	}

	return s.fuseAndRank(ctx, vectors, monitor, id)
}

// NearDuplicates finds stored notes whose full-image embedding sits within
// the duplicate cutoff of the given note. The score on each match is the
// raw visual distance; no fusion is involved. The note itself is excluded.
func (s *Searcher) NearDuplicates(ctx context.Context, id core.ID, k int) ([]core.Match, error) {
	record, err := s.notes.GetNoteRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.HasEmbedding(core.FieldVisual) {
		s.logger.Warn("note has no visual embedding to scan for duplicates", "note", id)
		return []core.Match{}, nil
	}
	if k < 1 {
		k = s.perFieldK
	}

	// One extra neighbour because the probe matches itself at distance zero.
	hits, err := s.index.Search(ctx, core.FieldVisual, record.Embedding(core.FieldVisual), k+1)
	if err != nil {
		return nil, fmt.Errorf("visual lookup: %w", err)
	}

	ids := make([]core.ID, 0, len(hits))
	distances := make(map[core.ID]float64, len(hits))
	for _, hit := range hits {
		if hit.Id == id || float64(hit.Distance) >= s.dupCutoff {
			continue
		}
		ids = append(ids, hit.Id)
		distances[hit.Id] = float64(hit.Distance)
	}
	if len(ids) > k {
		ids = ids[:k]
	}
	if len(ids) == 0 {
		return []core.Match{}, nil
	}

	records, err := s.notes.GetNoteRecords(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("retrieving duplicate records: %w", err)
	}

	matches := make([]core.Match, 0, len(records))
	for _, rec := range records {
		matches = append(matches, core.Match{
			Record:    rec,
			Score:     distances[rec.Id],
			Breakdown: map[core.Field]float64{core.FieldVisual: distances[rec.Id]},
		})
	}
	sortMatches(matches)
	return matches, nil
}

// deriveImageSignals computes the four query vectors for an image query.
// The returned error is non-nil only when the CLIP signal failed; the other
// derivations degrade to absent vectors, recorded through the monitor.
func (s *Searcher) deriveImageSignals(ctx context.Context, img *ai.Image, monitor SearchMonitor) ([][]float32, error) {
	vectors := make([][]float32, len(core.Fields()))
	derivErrs := make([]error, len(core.Fields()))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		vec, err := s.gateway.EmbedImage(gctx, img, ai.ModelClip)
		if err == nil {
			err = core.ValidateVector(core.FieldClip, vec, s.dims.Of(core.FieldClip))
		}
		if err != nil {
			// The anchor signal failed, so the sibling derivations are
			// cancelled rather than finished for nothing.
			return err
		}
		vectors[core.FieldClip] = vec
		return nil
	})

	g.Go(func() error {
		vec, err := s.gateway.EmbedImage(gctx, img, ai.ModelVisualText)
		if err == nil {
			err = core.ValidateVector(core.FieldVisualText, vec, s.dims.Of(core.FieldVisualText))
		}
		if err != nil {
			derivErrs[core.FieldVisualText] = err
			return nil
		}
		vectors[core.FieldVisualText] = vec
		return nil
	})

	g.Go(func() error {
		vectors[core.FieldTextA], derivErrs[core.FieldTextA] = s.deriveTextSignal(gctx, img, ai.EngineA, core.FieldTextA)
		return nil
	})

	g.Go(func() error {
		vectors[core.FieldTextB], derivErrs[core.FieldTextB] = s.deriveTextSignal(gctx, img, ai.EngineB, core.FieldTextB)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, field := range core.QueryFields() {
		if derivErrs[field] != nil {
			s.logger.Warn("query signal derivation failed",
				"field", field.String(), "path", img.Path, "err", derivErrs[field])
		}
		monitor.SignalDerived(field, derivErrs[field])
	}

	return vectors, nil
}

// deriveTextSignal runs one OCR chain against the query image.
func (s *Searcher) deriveTextSignal(ctx context.Context, img *ai.Image, engine ai.EngineKind, field core.Field) ([]float32, error) {
	recognized, err := s.gateway.RecognizeText(ctx, img, engine)
	if err != nil {
		return nil, err
	}

	text := core.NormalizeText(recognized.Text)
	if text == "" {
		return nil, errEmptyTranscript
	}

	vec, err := s.gateway.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := core.ValidateVector(field, vec, s.dims.Of(field)); err != nil {
		return nil, err
	}
	return vec, nil
}

// fuseAndRank is the shared back half of every fused query: per-field
// neighbour lookups in parallel, per-field threshold filtering, fusion,
// record retrieval, and the deterministic final ordering. Candidates in
// skip never appear in the output.
func (s *Searcher) fuseAndRank(ctx context.Context, vectors [][]float32, monitor SearchMonitor, skip ...core.ID) ([]core.Match, error) {
	fieldHits := make([][]core.Neighbor, len(core.Fields()))

	var wg sync.WaitGroup
	for _, field := range core.QueryFields() {
		if vectors[field] == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := s.index.Search(ctx, field, vectors[field], s.perFieldK)
			if err != nil {
				s.logger.Warn("field lookup failed", "field", field.String(), "err", err)
				return
			}
			fieldHits[field] = hits
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Per-field threshold before fusion: a hit too far away for its own
	// field never becomes evidence, whatever other fields say about it.
	evidence := make(map[core.ID]map[core.Field]float64)
	for _, field := range core.QueryFields() {
		hits := fieldHits[field]
		if hits == nil {
			continue
		}
		monitor.FieldSearched(field, hits)

		kept := make([]core.Neighbor, 0, len(hits))
		for _, hit := range hits {
			if !fusion.WithinFieldThreshold(float64(hit.Distance)) {
				continue
			}
			kept = append(kept, hit)
			ev := evidence[hit.Id]
			if ev == nil {
				ev = make(map[core.Field]float64, len(core.QueryFields()))
				evidence[hit.Id] = ev
			}
			ev[field] = float64(hit.Distance)
		}
		monitor.FieldFiltered(field, kept)
	}

	scores := make(map[core.ID]float64, len(evidence))
	for id, ev := range evidence {
		if slices.Contains(skip, id) {
			continue
		}
		score := fusion.Fuse(ev)
		monitor.CandidateFused(id, score, ev)
		if fusion.WithinThreshold(score) {
			scores[id] = score
		}
	}

	if len(scores) == 0 {
		monitor.Finish(nil)
		return []core.Match{}, nil
	}

	ids := make([]core.ID, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}

	// Candidates deleted since their index entry was written drop out here.
	records, err := s.notes.GetNoteRecords(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("retrieving candidate records: %w", err)
	}

	matches := make([]core.Match, 0, len(records))
	for _, record := range records {
		matches = append(matches, core.Match{
			Record:    record,
			Score:     scores[record.Id],
			Breakdown: evidence[record.Id],
		})
	}
	sortMatches(matches)

	monitor.Finish(matches)
	return matches, nil
}

// sortMatches orders ascending by score, then by id so equal scores rank
// deterministically.
func sortMatches(matches []core.Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score < matches[j].Score
		}
		return matches[i].Record.Id < matches[j].Record.Id
	})
}
