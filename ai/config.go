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
	"errors"
	"strings"
	"time"
)

// Config holds configuration for the model service backends.
type Config struct {
	// VisionHost is the base URL of the vision sidecar serving image
	// embeddings and the primary OCR engine.
	// Example: "http://localhost:9090"
	VisionHost string

	// EmbeddingHost is the base URL for the text embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// TranscriptionHost is the base URL for the vision-LLM transcription
	// service API (the secondary OCR engine).
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	TranscriptionHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// TranscriptionModel is the vision-capable model identifier used for
	// secondary transcription.
	// Example: "qwen2.5vl:7b", "gpt-4o-mini"
	TranscriptionModel string

	// Token authenticates against the OpenAI-compatible services. Local
	// servers usually accept any value.
	Token string

	// Timeout bounds each vision sidecar request.
	Timeout time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithVisionHost sets the vision sidecar host URL.
func WithVisionHost(host string) ConfigOption {
	return func(c *Config) {
		c.VisionHost = host
	}
}

// WithEmbeddingHost sets the text embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithTranscriptionHost sets the transcription service host URL.
func WithTranscriptionHost(host string) ConfigOption {
	return func(c *Config) {
		c.TranscriptionHost = host
	}
}

// WithEmbeddingModel sets the text embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithTranscriptionModel sets the transcription model identifier.
func WithTranscriptionModel(model string) ConfigOption {
	return func(c *Config) {
		c.TranscriptionModel = model
	}
}

// WithToken sets the API token for the OpenAI-compatible services.
func WithToken(token string) ConfigOption {
	return func(c *Config) {
		c.Token = token
	}
}

// WithTimeout sets the per-request timeout for the vision sidecar.
func WithTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// DefaultConfig returns a Config with sensible defaults for local model
// services. The embedding and transcription services share a host by
// default.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		VisionHost:         "http://localhost:9090",
		EmbeddingHost:      defaultHost,
		TranscriptionHost:  defaultHost,
		EmbeddingModel:     "embeddinggemma",
		TranscriptionModel: "qwen2.5vl:7b",
		Token:              "none",
		Timeout:            2 * time.Minute,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
// This is the recommended way to create a Config with custom settings.
//
// Example:
//   cfg := NewConfig(
//       WithVisionHost("http://localhost:9090"),
//       WithEmbeddingModel("text-embedding-3-small"),
//   )
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It automatically adds the /v1 suffix to the OpenAI-compatible hosts if
// missing (Ollama, LocalAI, vLLM, etc). The vision sidecar host is used
// verbatim apart from trailing-slash trimming: its API is not
// OpenAI-shaped.
func (c *Config) Normalize() {
	c.VisionHost = strings.TrimSuffix(c.VisionHost, "/")

	// Ensure EmbeddingHost ends with /v1 for OpenAI-compatible APIs
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
		c.EmbeddingHost = c.EmbeddingHost + "/v1"
	}
	// Ensure TranscriptionHost ends with /v1 for OpenAI-compatible APIs
	if c.TranscriptionHost != "" && !strings.HasSuffix(c.TranscriptionHost, "/v1") {
		c.TranscriptionHost = strings.TrimSuffix(c.TranscriptionHost, "/")
		c.TranscriptionHost = c.TranscriptionHost + "/v1"
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	// Normalize first to ensure hosts are in correct format
	c.Normalize()

	if c.VisionHost == "" {
		return errors.New("ai config: VisionHost is required")
	}
	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.TranscriptionHost == "" {
		return errors.New("ai config: TranscriptionHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.TranscriptionModel == "" {
		return errors.New("ai config: TranscriptionModel is required")
	}
	if c.Timeout <= 0 {
		return errors.New("ai config: Timeout must be positive")
	}
	return nil
}
