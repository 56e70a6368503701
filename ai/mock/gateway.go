package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"path/filepath"
	"sync"

	"github.com/poiesic/notedex/ai"
)

// MockGateway is a test double for ai.Gateway.
// It allows custom behavior injection via function fields; methods without
// an injected function fall back to deterministic defaults.
type MockGateway struct {
	// EmbedImageFunc is called by EmbedImage if set.
	EmbedImageFunc func(ctx context.Context, img *ai.Image, kind ai.ModelKind) ([]float32, error)

	// RecognizeTextFunc is called by RecognizeText if set.
	RecognizeTextFunc func(ctx context.Context, img *ai.Image, engine ai.EngineKind) (ai.RecognizedText, error)

	// EmbedTextFunc is called by EmbedText if set.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// ImageDims sets the default vector dimensionality per model kind.
	ImageDims map[ai.ModelKind]int

	// TextDim sets the default text vector dimensionality.
	TextDim int

	mu              sync.Mutex
	embedImageCalls int
	recognizeCalls  int
	embedTextCalls  int
}

var _ ai.Gateway = (*MockGateway)(nil)

// NewMockGateway creates a mock gateway with default deterministic behavior
// and production dimensionalities.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		ImageDims: map[ai.ModelKind]int{
			ai.ModelVisual:     1280,
			ai.ModelClip:       512,
			ai.ModelVisualText: 384,
		},
		TextDim: 768,
	}
}

// EmbedImage returns a deterministic unit vector derived from the image
// path and model kind.
func (m *MockGateway) EmbedImage(ctx context.Context, img *ai.Image, kind ai.ModelKind) ([]float32, error) {
	m.mu.Lock()
	m.embedImageCalls++
	fn := m.EmbedImageFunc
	dim := m.ImageDims[kind]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, img, kind)
	}

	if dim == 0 {
		return nil, fmt.Errorf("mock gateway: no dimensionality for model kind %s", kind)
	}
	return generateDeterministicVector(img.Path+":"+kind.String(), dim), nil
}

// RecognizeText returns a canned per-engine transcription derived from the
// image file name.
func (m *MockGateway) RecognizeText(ctx context.Context, img *ai.Image, engine ai.EngineKind) (ai.RecognizedText, error) {
	m.mu.Lock()
	m.recognizeCalls++
	fn := m.RecognizeTextFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, img, engine)
	}

	confidence := float32(0.9)
	if engine == ai.EngineB {
		confidence = 0.75
	}
	return ai.RecognizedText{
		Text:       fmt.Sprintf("notes from %s read by %s", filepath.Base(img.Path), engine),
		Confidence: confidence,
	}, nil
}

// EmbedText returns a deterministic unit vector derived from the text.
func (m *MockGateway) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.embedTextCalls++
	fn := m.EmbedTextFunc
	dim := m.TextDim
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}

	return generateDeterministicVector(text, dim), nil
}

// EmbedImageCalls returns the number of EmbedImage invocations.
func (m *MockGateway) EmbedImageCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedImageCalls
}

// RecognizeTextCalls returns the number of RecognizeText invocations.
func (m *MockGateway) RecognizeTextCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recognizeCalls
}

// EmbedTextCalls returns the number of EmbedText invocations.
func (m *MockGateway) EmbedTextCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedTextCalls
}

// CallCount returns the total number of gateway invocations.
func (m *MockGateway) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedImageCalls + m.recognizeCalls + m.embedTextCalls
}

// Reset clears call counts and injected functions.
func (m *MockGateway) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedImageCalls = 0
	m.recognizeCalls = 0
	m.embedTextCalls = 0
	m.EmbedImageFunc = nil
	m.RecognizeTextFunc = nil
	m.EmbedTextFunc = nil
}

// generateDeterministicVector creates a unit-length embedding vector from a
// seed string. It uses an FNV hash so the same seed always produces the
// same vector.
func generateDeterministicVector(seed string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(seed))
	state := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		// Simple pseudo-random generation based on seed and index
		state = state*1664525 + 1013904223 // LCG constants
		vector[i] = float32(state%1000)/1000.0 - 0.5
	}

	// Normalize to unit length
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares > 0 {
		inv := float32(1.0 / math.Sqrt(sumSquares))
		for i := range vector {
			vector[i] *= inv
		}
	}

	return vector
}
