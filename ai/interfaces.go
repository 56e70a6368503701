package ai

import "context"

// Gateway is the single model-service surface consumed by the ingestion and
// query pipelines. Implementations must be thread-safe for concurrent use.
//
// All returned vectors are pre-normalized to unit length by the backing
// service; callers validate the norm but never re-normalize.
type Gateway interface {
	// EmbedImage generates a vector embedding for an image using the given
	// model kind. Returns an error if the embedding generation fails.
	EmbedImage(ctx context.Context, img *Image, kind ModelKind) ([]float32, error)

	// RecognizeText runs one OCR engine against the image and returns its
	// transcription with a confidence score. The two engines fail
	// independently; an error from one says nothing about the other.
	RecognizeText(ctx context.Context, img *Image, engine EngineKind) (RecognizedText, error)

	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ImageModel is the vision side of the gateway: image embeddings across all
// model kinds plus the primary OCR engine.
// Implementations must be thread-safe for concurrent use.
type ImageModel interface {
	// EmbedImage generates a vector embedding for an image using the given
	// model kind.
	EmbedImage(ctx context.Context, img *Image, kind ModelKind) ([]float32, error)

	// RecognizeText runs the primary OCR engine against the image.
	RecognizeText(ctx context.Context, img *Image) (RecognizedText, error)
}

// TextEmbedder generates vector embeddings from text.
// Implementations must be thread-safe for concurrent use.
type TextEmbedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Transcriber is the secondary OCR engine.
// Implementations must be thread-safe for concurrent use.
type Transcriber interface {
	// Transcribe reads the text content of the image and reports a
	// self-assessed confidence.
	Transcribe(ctx context.Context, img *Image) (RecognizedText, error)
}
