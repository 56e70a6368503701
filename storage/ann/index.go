package ann

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/vecgo"
	"github.com/poiesic/notedex/core"
	"github.com/poiesic/notedex/storage"
)

// Config controls how the per-field indexes are built.
type Config struct {
	// Dims gives the expected dimension of each embedding field.
	Dims core.Dims

	// UseHNSW switches from exact flat search to graph-based ANN.
	// Worth it above roughly 100k notes.
	UseHNSW bool

	// M is the HNSW connectivity parameter. Zero means the vecgo default.
	M int

	// EFConstruction is the HNSW build-time exploration factor.
	// Zero means the vecgo default.
	EFConstruction int

	// RandomSeed makes HNSW construction deterministic when non-zero.
	RandomSeed int64
}

// DefaultConfig returns a flat-index configuration with default dimensions.
func DefaultConfig() Config {
	return Config{
		Dims: core.DefaultDims(),
	}
}

// Index implements storage.VectorIndex with one vecgo index per field.
type Index struct {
	mu      sync.RWMutex
	indexes map[core.Field]*vecgo.Vecgo[core.ID]
	handles map[core.Field]map[core.ID]uint64
	dims    core.Dims
}

var _ storage.VectorIndex = (*Index)(nil)

// New builds the per-field indexes described by cfg.
func New(cfg Config) (*Index, error) {
	idx := &Index{
		indexes: make(map[core.Field]*vecgo.Vecgo[core.ID], len(core.Fields())),
		handles: make(map[core.Field]map[core.ID]uint64, len(core.Fields())),
		dims:    cfg.Dims,
	}

	for _, field := range core.Fields() {
		dim := cfg.Dims.Of(field)
		if dim <= 0 {
			return nil, fmt.Errorf("ann: field %s has invalid dimension %d", field, dim)
		}

		var (
			vg  *vecgo.Vecgo[core.ID]
			err error
		)
		if cfg.UseHNSW {
			builder := vecgo.HNSW[core.ID](dim).Cosine()
			if cfg.M > 0 {
				builder = builder.M(cfg.M)
			}
			if cfg.EFConstruction > 0 {
				builder = builder.EFConstruction(cfg.EFConstruction)
			}
			if cfg.RandomSeed != 0 {
				builder = builder.RandomSeed(cfg.RandomSeed)
			}
			vg, err = builder.Build()
		} else {
			vg, err = vecgo.Flat[core.ID](dim).Cosine().Build()
		}
		if err != nil {
			return nil, fmt.Errorf("ann: building %s index: %w", field, err)
		}

		idx.indexes[field] = vg
		idx.handles[field] = make(map[core.ID]uint64)
	}

	return idx, nil
}

// Upsert inserts or replaces the vector indexed for (id, field).
func (x *Index) Upsert(ctx context.Context, id core.ID, field core.Field, vector []float32) error {
	if err := x.check(field, vector); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	vg := x.indexes[field]
	item := vecgo.VectorWithData[core.ID]{Vector: vector, Data: id}

	if handle, ok := x.handles[field][id]; ok {
		if err := vg.Update(ctx, handle, item); err != nil {
			return fmt.Errorf("ann: updating %s vector for note %d: %w", field, id, err)
		}
		return nil
	}

	handle, err := vg.Insert(ctx, item)
	if err != nil {
		return fmt.Errorf("ann: inserting %s vector for note %d: %w", field, id, err)
	}
	x.handles[field][id] = handle
	return nil
}

// Remove drops the vector indexed for (id, field). Removing an absent
// entry is not an error.
func (x *Index) Remove(ctx context.Context, id core.ID, field core.Field) error {
	if !field.Valid() {
		return fmt.Errorf("%w: %d", core.ErrUnknownField, field)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	handle, ok := x.handles[field][id]
	if !ok {
		return nil
	}
	if err := x.indexes[field].Delete(ctx, handle); err != nil {
		return fmt.Errorf("ann: removing %s vector for note %d: %w", field, id, err)
	}
	delete(x.handles[field], id)
	return nil
}

// Search returns up to k neighbours of the query vector within a field's
// index, ordered by ascending cosine distance.
func (x *Index) Search(ctx context.Context, field core.Field, query []float32, k int) ([]core.Neighbor, error) {
	if err := x.check(field, query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	vg := x.indexes[field]
	x.mu.RUnlock()

	results, err := vg.KNNSearch(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("ann: searching %s index: %w", field, err)
	}

	neighbors := make([]core.Neighbor, 0, len(results))
	for _, res := range results {
		// vecgo's cosine mode reports squared L2 over unit vectors,
		// which is 2*(1 - cos). Halve it to get cosine distance.
		neighbors = append(neighbors, core.Neighbor{
			Id:       res.Data,
			Distance: res.Distance / 2,
		})
	}
	return neighbors, nil
}

// Len reports the number of vectors currently indexed for a field.
func (x *Index) Len(field core.Field) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.handles[field])
}

// Close releases index resources.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	var firstErr error
	for _, vg := range x.indexes {
		if err := vg.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (x *Index) check(field core.Field, vector []float32) error {
	if !field.Valid() {
		return fmt.Errorf("%w: %d", core.ErrUnknownField, field)
	}
	if want := x.dims.Of(field); len(vector) != want {
		return fmt.Errorf("%w: field %s expects %d dimensions, got %d", storage.ErrDimensionMismatch, field, want, len(vector))
	}
	return nil
}
