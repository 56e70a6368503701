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


package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/poiesic/notedex/ai"
)

// Client implements ai.ImageModel against the vision sidecar's JSON API.
type Client struct {
	host   string
	client *http.Client
	logger *slog.Logger
}

var _ ai.ImageModel = (*Client)(nil)

// embedRequest is the sidecar /embed request format.
type embedRequest struct {
	Model string `json:"model"`
	Image string `json:"image"` // base64-encoded original bytes
}

// embedResponse is the sidecar /embed response format.
type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// ocrRequest is the sidecar /ocr request format.
type ocrRequest struct {
	Image string `json:"image"`
}

// ocrResponse is the sidecar /ocr response format. Confidence is the mean
// per-line recognition confidence.
type ocrResponse struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
}

// newClient is an internal constructor that returns the concrete type.
func newClient(config *ai.Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		host: config.VisionHost,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		logger: slog.Default().With("component", "vision-client"),
	}, nil
}

// NewClient creates a sidecar client using the provided configuration.
//
// Returns ai.ImageModel interface to enforce abstraction.
func NewClient(config *ai.Config) (ai.ImageModel, error) {
	return newClient(config)
}

// EmbedImage requests an image embedding from the given model kind.
func (c *Client) EmbedImage(ctx context.Context, img *ai.Image, kind ai.ModelKind) ([]float32, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("embed image: unknown model kind %d", int(kind))
	}

	c.logger.Debug("requesting image embedding", "model", kind, "path", img.Path)

	var resp embedResponse
	req := embedRequest{
		Model: kind.String(),
		Image: base64.StdEncoding.EncodeToString(img.Data),
	}
	if err := c.post(ctx, "/embed", req, &resp); err != nil {
		c.logger.Error("image embedding failed", "model", kind, "err", err)
		return nil, err
	}

	if len(resp.Embedding) == 0 {
		return nil, errors.New("vision sidecar returned empty embedding")
	}
	return resp.Embedding, nil
}

// RecognizeText runs the sidecar's OCR engine against the image.
func (c *Client) RecognizeText(ctx context.Context, img *ai.Image) (ai.RecognizedText, error) {
	c.logger.Debug("requesting ocr", "path", img.Path)

	var resp ocrResponse
	req := ocrRequest{
		Image: base64.StdEncoding.EncodeToString(img.Data),
	}
	if err := c.post(ctx, "/ocr", req, &resp); err != nil {
		c.logger.Error("ocr failed", "err", err)
		return ai.RecognizedText{}, err
	}

	return ai.RecognizedText{Text: resp.Text, Confidence: resp.Confidence}, nil
}

// Ping validates the sidecar is reachable without running inference.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("vision sidecar: failed to create ping request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("vision sidecar: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vision sidecar: ping returned status %d", resp.StatusCode)
	}
	return nil
}

// post sends one JSON request and decodes the JSON response into out.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("vision sidecar error (status %d): failed to read response", resp.StatusCode)
		}
		return fmt.Errorf("vision sidecar error (status %d): %s", resp.StatusCode, string(b))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
