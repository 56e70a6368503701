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


// Package openai provides model services backed by OpenAI-compatible APIs.
//
// This package implements the ai.TextEmbedder and ai.Transcriber interfaces
// using the langchaingo library to communicate with OpenAI or
// OpenAI-compatible services (such as Ollama, LocalAI, or vLLM).
//
// The Transcriber is the secondary OCR engine: it sends the note image to a
// vision-capable chat model and asks for a JSON transcription with a
// self-assessed confidence. LLMs are unreliable JSON emitters, so responses
// go through fence stripping, mechanical repair, and bounded retries.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithEmbeddingHost("http://localhost:11434"), // /v1 added automatically
//	    ai.WithEmbeddingModel("embeddinggemma"),
//	    ai.WithTranscriptionModel("qwen2.5vl:7b"),
//	)
//
//	embedder, err := openai.NewEmbedder(config)
//	transcriber, err := openai.NewTranscriber(config)
//
//	vec, err := embedder.EmbedText(ctx, "sample text")
//	reading, err := transcriber.Transcribe(ctx, img)
package openai
