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


// Package ai provides abstractions for the model services used in Notedex.
//
// This package defines the Gateway consumed by ingestion and search: image
// embeddings across three model kinds, text recognition across two
// independent OCR engines, and text embeddings. It follows the dependency
// inversion principle, allowing the core domain and business logic to
// depend on abstractions rather than concrete implementations.
//
// # Design Principles
//
// The package is designed around a small set of interfaces:
//
//   - Gateway: the single surface the pipelines call
//   - ImageModel: image embeddings plus the primary OCR engine
//   - TextEmbedder: text embeddings
//   - Transcriber: the secondary OCR engine
//
// Every vector returned through the Gateway is already L2-normalized by the
// backing model service. Callers validate but never re-normalize.
//
// # Implementation Packages
//
// The ai package includes three implementation sub-packages:
//
//   - ai/vision: HTTP client for the local vision sidecar (image embeddings
//     and the primary OCR engine)
//   - ai/openai: OpenAI-compatible text embeddings and vision-LLM
//     transcription (the secondary OCR engine)
//   - ai/mock: Test doubles for unit testing without model services
//
// # Constructor Return Type Pattern
//
// Public constructors (vision.NewClient, openai.NewEmbedder,
// openai.NewTranscriber, NewGateway) return INTERFACE types to enforce
// abstraction and prevent accidental coupling to concrete implementations.
//
//	gw := ai.NewGateway(imageModel, textEmbedder, transcriber) // returns ai.Gateway
//
// Test utility constructors (mock.NewMockGateway) return CONCRETE types to
// enable behavior injection via function fields and call-count assertions.
//
// # Usage Example
//
//	config := ai.NewConfig(
//	    ai.WithVisionHost("http://localhost:9090"),
//	    ai.WithEmbeddingHost("http://localhost:11434"),
//	)
//	imageModel, err := vision.NewClient(config)
//	embedder, err := openai.NewEmbedder(config)
//	transcriber, err := openai.NewTranscriber(config)
//	gw := ai.NewGateway(imageModel, embedder, transcriber)
//
//	img, err := ai.LoadImage("/scans/note-001.png")
//	vec, err := gw.EmbedImage(ctx, img, ai.ModelClip)
package ai
