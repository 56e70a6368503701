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

import "errors"

// Domain validation errors
var (
	// ErrInvalidNoteRecord indicates a NoteRecord failed validation.
	ErrInvalidNoteRecord = errors.New("invalid note record")

	// ErrEmptyImagePath indicates the ImagePath field is empty.
	ErrEmptyImagePath = errors.New("image path cannot be empty")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")

	// ErrUnknownField indicates a Field value outside the known slots.
	ErrUnknownField = errors.New("unknown embedding field")

	// ErrWrongDimension indicates an embedding whose length does not match
	// the configured dimensionality of its field.
	ErrWrongDimension = errors.New("embedding has wrong dimension")

	// ErrNotNormalized indicates an embedding whose L2 norm is not
	// within tolerance of unit length.
	ErrNotNormalized = errors.New("embedding is not unit length")

	// ErrImageLoad indicates the source image could not be read or decoded.
	// It is the only unrecoverable ingestion failure.
	ErrImageLoad = errors.New("image load failed")
)
