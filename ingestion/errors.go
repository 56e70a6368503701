package ingestion

import "errors"

var (
	// ErrNoteRepositoryRequired is returned when a note repository is not provided.
	ErrNoteRepositoryRequired = errors.New("note repository required")

	// ErrVectorIndexRequired is returned when a vector index is not provided.
	ErrVectorIndexRequired = errors.New("vector index required")

	// ErrGatewayRequired is returned when a model gateway is not provided.
	ErrGatewayRequired = errors.New("model gateway required")
)
