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


package core

import (
	"fmt"
	"math"
	"time"
)

// Embedding norms are accepted within this tolerance of unit length.
// Anything outside means the upstream model skipped normalization.
const (
	NormMin = 0.99
	NormMax = 1.01
)

// VectorNorm returns the L2 norm of vec.
func VectorNorm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// ValidateVector validates an embedding destined for the given field.
//
// Validation rules:
//   - f must name a known slot
//   - len(vec) must equal dim
//   - the L2 norm must be within [NormMin, NormMax]
//
// An empty vec is rejected with ErrWrongDimension: absence is expressed by
// not storing the slot at all, never by a zero-length vector.
func ValidateVector(f Field, vec []float32, dim int) error {
	if !f.Valid() {
		return fmt.Errorf("%w: value %d", ErrUnknownField, f)
	}

	if len(vec) != dim {
		return fmt.Errorf("%w: field %s has %d values, want %d", ErrWrongDimension, f, len(vec), dim)
	}

	norm := VectorNorm(vec)
	if norm < NormMin || norm > NormMax {
		return fmt.Errorf("%w: field %s has norm %.4f", ErrNotNormalized, f, norm)
	}

	return nil
}

// ValidateNoteRecord validates a NoteRecord according to domain rules.
//
// Validation rules:
//   - ImagePath must not be empty
//   - Timestamp must not be in the future
//   - every present embedding must match its configured dimension and be
//     unit length
//
// NOT validated (independently optional):
//   - absent embedding slots
//   - OCR texts and confidences (a failed engine leaves them empty)
func ValidateNoteRecord(record *NoteRecord, dims Dims) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidNoteRecord)
	}

	if record.ImagePath == "" {
		return fmt.Errorf("%w: %w", ErrInvalidNoteRecord, ErrEmptyImagePath)
	}

	if !IsValidTimestamp(record.Timestamp) {
		return fmt.Errorf("%w: %w", ErrInvalidNoteRecord, ErrInvalidTimestamp)
	}

	for _, f := range Fields() {
		if !record.HasEmbedding(f) {
			continue
		}
		if err := ValidateVector(f, record.Embedding(f), dims.Of(f)); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidNoteRecord, err)
		}
	}

	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
