package ai

import "fmt"

// ModelKind selects which image embedding model the gateway runs.
type ModelKind int

const (
	// ModelVisual is the baseline full-image feature extractor.
	ModelVisual ModelKind = iota + 1
	// ModelClip is the CLIP-style image-text aligned model.
	ModelClip
	// ModelVisualText is the OCR-specialized visual model, tuned for
	// images of handwriting and printed text.
	ModelVisualText
)

func (k ModelKind) String() string {
	switch k {
	case ModelVisual:
		return "visual"
	case ModelClip:
		return "clip"
	case ModelVisualText:
		return "visual_text"
	default:
		return fmt.Sprintf("model(%d)", int(k))
	}
}

// Valid reports whether k names a known model kind.
func (k ModelKind) Valid() bool {
	return k >= ModelVisual && k <= ModelVisualText
}

// EngineKind selects one of the two independent OCR engines.
type EngineKind int

const (
	// EngineA is the primary OCR engine, a dedicated text recognition
	// model served by the vision sidecar.
	EngineA EngineKind = iota + 1
	// EngineB is the secondary OCR engine, a general vision LLM asked to
	// transcribe the image.
	EngineB
)

func (k EngineKind) String() string {
	switch k {
	case EngineA:
		return "engineA"
	case EngineB:
		return "engineB"
	default:
		return fmt.Sprintf("engine(%d)", int(k))
	}
}

// RecognizedText is one OCR engine's reading of an image.
type RecognizedText struct {
	// Text is the transcription. May be empty when the engine ran
	// successfully but found nothing to read.
	Text string

	// Confidence is the engine's own estimate of transcription quality in
	// [0,1]. Engines compute it differently; values are comparable within
	// one engine, not across engines.
	Confidence float32
}
