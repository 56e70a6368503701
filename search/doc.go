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


// Package search ranks stored notes against image, text, and note queries.
//
// The Searcher type implements a staged fused-retrieval algorithm:
//   - Query signals are derived per field (CLIP and document embeddings for
//     images, OCR transcripts re-embedded as text, or a note's stored vectors)
//   - Each derived signal is searched against its own vector index
//   - Per-field hits are threshold-filtered, then fused into a single score
//     per candidate by distance-weighted combination
//
// CLIP is the anchor signal for image queries: when it cannot be derived the
// query returns no matches rather than ranking on weak evidence. Every other
// signal degrades gracefully. Results are ordered by ascending fused score
// with note id as the tie-break, so a query over unchanged data is
// deterministic.
package search
