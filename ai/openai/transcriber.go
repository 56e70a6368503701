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


package openai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/poiesic/notedex/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Transcriber implements ai.Transcriber using a vision-capable chat model.
// It is the secondary OCR engine: slower and less literal than a dedicated
// recognition model, but far better on messy handwriting.
type Transcriber struct {
	client llms.Model
	logger *slog.Logger
}

var _ ai.Transcriber = (*Transcriber)(nil)

// transcription is the JSON shape requested from the model.
type transcription struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
}

// newTranscriber is an internal constructor that returns the concrete type.
func newTranscriber(config *ai.Config) (*Transcriber, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Create OpenAI client configured for vision chat
	client, err := openai.New(
		openai.WithBaseURL(config.TranscriptionHost),
		openai.WithToken(config.Token),
		openai.WithModel(config.TranscriptionModel),
	)
	if err != nil {
		return nil, err
	}

	return &Transcriber{
		client: client,
		logger: slog.Default().With("component", "openai-transcriber"),
	}, nil
}

// NewTranscriber creates a new transcriber using the provided configuration.
//
// Returns ai.Transcriber interface to enforce abstraction.
func NewTranscriber(config *ai.Config) (ai.Transcriber, error) {
	return newTranscriber(config)
}

// Transcribe asks the vision model to read the image and reports the text
// with the model's self-assessed confidence.
func (t *Transcriber) Transcribe(ctx context.Context, img *ai.Image) (ai.RecognizedText, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(buildTranscriptionPrompt()),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(img.MimeType(), img.Data),
				llms.TextPart(transcriptionRequest),
			},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var result transcription
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := t.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			t.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return ai.RecognizedText{}, err
		}

		if len(response.Choices) < 1 {
			t.logger.Warn("no choices returned from model")
			return ai.RecognizedText{}, errors.New("transcription model returned no choices")
		}

		result, err = parseTranscription(response.Choices[0].Content)
		if err != nil {
			lastErr = err
			t.logger.Warn("error parsing transcription response",
				"attempt", attempt+1,
				"err", err)
			continue
		}

		// Success
		lastErr = nil
		break
	}

	if lastErr != nil {
		t.logger.Error("failed to parse transcription after retries", "err", lastErr)
		return ai.RecognizedText{}, lastErr
	}

	return ai.RecognizedText{
		Text:       strings.TrimSpace(result.Text),
		Confidence: clampConfidence(result.Confidence),
	}, nil
}

// parseTranscription extracts the transcription payload from a raw model
// response, stripping markdown fences and repairing common JSON slips.
func parseTranscription(raw string) (transcription, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	text = repairJSON(text)

	var result transcription
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return transcription{}, err
	}
	return result, nil
}

// clampConfidence forces a model-reported confidence into [0,1].
func clampConfidence(c float32) float32 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
