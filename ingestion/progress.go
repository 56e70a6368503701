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


package ingestion

import (
	"log/slog"
	"sync"
)

// Stage identifies a unit of ingestion work for progress reporting.
type Stage int

const (
	// StageLoad is the initial image read and decode.
	StageLoad Stage = iota + 1
	// StageVisual is the baseline visual embedding derivation.
	StageVisual
	// StageClip is the CLIP-style embedding derivation.
	StageClip
	// StageVisualText is the OCR-specialized visual embedding derivation.
	StageVisualText
	// StageOCR covers text recognition for both engines.
	StageOCR
	// StageTextEmbed covers transcript embedding for both OCR chains.
	StageTextEmbed
	// StagePersist is the final record write and index sync.
	StagePersist
)

func (s Stage) String() string {
	switch s {
	case StageLoad:
		return "load"
	case StageVisual:
		return "visual"
	case StageClip:
		return "clip"
	case StageVisualText:
		return "visual_text"
	case StageOCR:
		return "ocr"
	case StageTextEmbed:
		return "text_embed"
	case StagePersist:
		return "persist"
	default:
		return "unknown"
	}
}

// fraction maps a stage to its nominal completion point in [0, 1].
func (s Stage) fraction() float32 {
	switch s {
	case StageLoad:
		return 0.10
	case StageVisual:
		return 0.25
	case StageClip:
		return 0.40
	case StageVisualText:
		return 0.55
	case StageOCR:
		return 0.70
	case StageTextEmbed:
		return 0.85
	case StagePersist:
		return 1.0
	default:
		return 0
	}
}

// ProgressObserver receives ingestion progress events. Fractions are
// non-decreasing within one run. Events are delivered synchronously, so
// implementations must return quickly. Purely informational: observers
// cannot influence the pipeline.
type ProgressObserver interface {
	Progress(stage Stage, fraction float32, message string)
}

type noopObserver struct{}

var _ ProgressObserver = noopObserver{}

func (noopObserver) Progress(Stage, float32, string) {}

// LogObserver writes progress events to a slog logger.
type LogObserver struct {
	logger *slog.Logger
}

var _ ProgressObserver = (*LogObserver)(nil)

// NewLogObserver creates a LogObserver. A nil logger means slog.Default().
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

// Progress implements ProgressObserver.
func (o *LogObserver) Progress(stage Stage, fraction float32, message string) {
	o.logger.Info("ingestion progress",
		"stage", stage.String(),
		"fraction", fraction,
		"message", message)
}

// progressSink serializes observer delivery for one run. Derivation
// stages complete in arbitrary order, so fractions are clamped to the
// running maximum before delivery.
type progressSink struct {
	mu       sync.Mutex
	observer ProgressObserver
	max      float32
}

func newProgressSink(observer ProgressObserver) *progressSink {
	if observer == nil {
		observer = noopObserver{}
	}
	return &progressSink{observer: observer}
}

func (s *progressSink) report(stage Stage, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fraction := stage.fraction()
	if fraction < s.max {
		fraction = s.max
	} else {
		s.max = fraction
	}
	s.observer.Progress(stage, fraction, message)
}
