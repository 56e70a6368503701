package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is derived from the source image path so that re-ingesting the same
// file always lands on the same record.
type ID uint64

// IDFromPath generates a deterministic ID from an image path using BLAKE2b hashing.
// This ensures that ingesting the same path twice overwrites one record
// instead of creating a duplicate.
func IDFromPath(path string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(path))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Field identifies one of the embedding slots carried by a NoteRecord.
type Field uint8

const (
	// FieldVisual is the full-image visual embedding used for
	// near-duplicate detection.
	FieldVisual Field = iota
	// FieldClip is the CLIP image embedding, the primary retrieval signal.
	FieldClip
	// FieldVisualText is the OCR-specialized visual embedding, produced by
	// a text-recognition-oriented vision model.
	FieldVisualText
	// FieldTextA is the full text embedding of the primary OCR transcription.
	FieldTextA
	// FieldTextB is the full text embedding of the secondary OCR transcription.
	FieldTextB

	fieldCount
)

var fieldNames = [fieldCount]string{"visual", "clip", "visualText", "textA", "textB"}

func (f Field) String() string {
	if !f.Valid() {
		return fmt.Sprintf("field(%d)", uint8(f))
	}
	return fieldNames[f]
}

// Valid reports whether f names a known embedding slot.
func (f Field) Valid() bool {
	return f < fieldCount
}

// Fields returns all embedding fields in canonical order.
func Fields() []Field {
	return []Field{FieldVisual, FieldClip, FieldVisualText, FieldTextA, FieldTextB}
}

// QueryFields returns the fields consulted by fused retrieval, in canonical
// order. FieldVisual is excluded: it only serves near-duplicate detection.
func QueryFields() []Field {
	return []Field{FieldClip, FieldVisualText, FieldTextA, FieldTextB}
}

// FieldSet is a bitset over Field values. The zero value is the empty set.
type FieldSet uint8

// NewFieldSet builds a set containing the given fields.
func NewFieldSet(fields ...Field) FieldSet {
	var s FieldSet
	for _, f := range fields {
		s = s.With(f)
	}
	return s
}

// With returns a copy of s that also contains f.
func (s FieldSet) With(f Field) FieldSet {
	return s | 1<<f
}

// Without returns a copy of s with f removed.
func (s FieldSet) Without(f Field) FieldSet {
	return s &^ (1 << f)
}

// Has reports whether f is a member of the set.
func (s FieldSet) Has(f Field) bool {
	return s&(1<<f) != 0
}

// Count returns the number of fields in the set.
func (s FieldSet) Count() int {
	return bits.OnesCount8(uint8(s))
}

// Fields returns the members of the set in canonical order.
func (s FieldSet) Fields() []Field {
	out := make([]Field, 0, s.Count())
	for f := Field(0); f < fieldCount; f++ {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s FieldSet) String() string {
	if s == 0 {
		return "none"
	}
	parts := make([]string, 0, s.Count())
	for _, f := range s.Fields() {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, "+")
}

// Dims holds the expected dimensionality of each embedding field.
type Dims struct {
	Visual     int
	Clip       int
	VisualText int
	TextA      int
	TextB      int
}

// DefaultDims returns the dimensionalities of the stock model lineup.
func DefaultDims() Dims {
	return Dims{
		Visual:     1280,
		Clip:       512,
		VisualText: 384,
		TextA:      768,
		TextB:      768,
	}
}

// Of returns the expected dimension for f, or 0 for an unknown field.
func (d Dims) Of(f Field) int {
	switch f {
	case FieldVisual:
		return d.Visual
	case FieldClip:
		return d.Clip
	case FieldVisualText:
		return d.VisualText
	case FieldTextA:
		return d.TextA
	case FieldTextB:
		return d.TextB
	default:
		return 0
	}
}

// NoteRecord is the durable unit of storage: one scanned note image together
// with every embedding and transcription derived from it. Each embedding
// slot is independently optional; an empty slice means the corresponding
// derivation failed or has not run yet.
type NoteRecord struct {
	Id        ID
	ImagePath string

	VisualEmbedding     []float32 // Baseline full-image embedding
	ClipEmbedding       []float32 // CLIP image embedding
	VisualTextEmbedding []float32 // OCR-specialized visual embedding
	TextEmbeddingA      []float32 // Text embedding of the primary transcription
	TextEmbeddingB      []float32 // Text embedding of the secondary transcription

	OcrTextA       string  // Primary OCR transcription
	OcrConfidenceA float32 // Mean line confidence of the primary engine, 0 when absent
	OcrTextB       string  // Secondary OCR transcription
	OcrConfidenceB float32 // Self-reported confidence of the secondary engine, 0 when absent

	Timestamp time.Time // When the note was ingested
}

// Embedding returns the vector stored in the given slot, or nil for an
// unknown field.
func (r *NoteRecord) Embedding(f Field) []float32 {
	switch f {
	case FieldVisual:
		return r.VisualEmbedding
	case FieldClip:
		return r.ClipEmbedding
	case FieldVisualText:
		return r.VisualTextEmbedding
	case FieldTextA:
		return r.TextEmbeddingA
	case FieldTextB:
		return r.TextEmbeddingB
	default:
		return nil
	}
}

// SetEmbedding stores vec in the given slot. Unknown fields are ignored.
func (r *NoteRecord) SetEmbedding(f Field, vec []float32) {
	switch f {
	case FieldVisual:
		r.VisualEmbedding = vec
	case FieldClip:
		r.ClipEmbedding = vec
	case FieldVisualText:
		r.VisualTextEmbedding = vec
	case FieldTextA:
		r.TextEmbeddingA = vec
	case FieldTextB:
		r.TextEmbeddingB = vec
	}
}

// HasEmbedding reports whether the given slot holds a vector.
func (r *NoteRecord) HasEmbedding(f Field) bool {
	return len(r.Embedding(f)) > 0
}

// PresentFields returns the set of slots that hold a vector.
func (r *NoteRecord) PresentFields() FieldSet {
	var s FieldSet
	for _, f := range Fields() {
		if r.HasEmbedding(f) {
			s = s.With(f)
		}
	}
	return s
}

// Neighbor is a single approximate-nearest-neighbor hit for one field.
type Neighbor struct {
	Id       ID
	Distance float32
}

// Match represents a fused retrieval result. Breakdown records the
// per-field cosine distances that contributed to Score.
type Match struct {
	Record    *NoteRecord
	Score     float64
	Breakdown map[Field]float64
}

// Checkpoint records maintenance progress so interrupted jobs can resume.
// Kind distinguishes independent maintenance jobs from one another.
type Checkpoint struct {
	Kind      string
	LastID    ID
	UpdatedAt time.Time
}
