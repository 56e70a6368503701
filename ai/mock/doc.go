// Package mock provides a test double implementation of the ai.Gateway.
//
// MockGateway lets tests run without the vision sidecar or any
// OpenAI-compatible service, with controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	gw := mock.NewMockGateway()
//	vec, err := gw.EmbedImage(ctx, img, ai.ModelClip)
//
//	// Custom behavior injection
//	gw.RecognizeTextFunc = func(ctx context.Context, img *ai.Image, engine ai.EngineKind) (ai.RecognizedText, error) {
//	    return ai.RecognizedText{}, errors.New("engine offline")
//	}
//
//	// Check call counts
//	count := gw.EmbedImageCalls()
//
// # Default Behavior
//
// Without injected functions, every method succeeds deterministically:
// embeddings are unit vectors derived from a hash of the input (the same
// image and model kind always produce the same vector), and each OCR engine
// returns a canned per-engine transcription. This makes ingestion
// idempotence directly testable.
package mock
