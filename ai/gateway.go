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


package ai

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownEngine indicates an EngineKind outside the two known engines.
var ErrUnknownEngine = errors.New("unknown ocr engine")

// gateway composes the backend services behind the Gateway interface.
type gateway struct {
	images      ImageModel
	texts       TextEmbedder
	transcriber Transcriber
}

var _ Gateway = (*gateway)(nil)

// NewGateway composes the vision and text services into a single Gateway.
// EngineA requests are dispatched to the image model's OCR, EngineB to the
// transcriber.
//
// Returns the Gateway interface to enforce abstraction.
func NewGateway(images ImageModel, texts TextEmbedder, transcriber Transcriber) Gateway {
	return &gateway{
		images:      images,
		texts:       texts,
		transcriber: transcriber,
	}
}

// EmbedImage generates an image embedding using the given model kind.
func (g *gateway) EmbedImage(ctx context.Context, img *Image, kind ModelKind) ([]float32, error) {
	return g.images.EmbedImage(ctx, img, kind)
}

// RecognizeText runs the selected OCR engine against the image.
func (g *gateway) RecognizeText(ctx context.Context, img *Image, engine EngineKind) (RecognizedText, error) {
	switch engine {
	case EngineA:
		return g.images.RecognizeText(ctx, img)
	case EngineB:
		return g.transcriber.Transcribe(ctx, img)
	default:
		return RecognizedText{}, fmt.Errorf("%w: %d", ErrUnknownEngine, engine)
	}
}

// EmbedText generates a text embedding.
func (g *gateway) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return g.texts.EmbedText(ctx, text)
}
