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


package fusion

import (
	"github.com/poiesic/notedex/core"
)

const (
	// FieldThreshold is the per-field cosine distance cutoff. A candidate
	// whose distance for a field is not strictly below it contributes no
	// evidence for that field.
	FieldThreshold = 0.2

	// Threshold is the global cutoff on the fused score. Only candidates
	// strictly below it appear in ranked output; a score of exactly
	// Threshold is excluded.
	Threshold = 0.2

	// NoEvidenceScore is returned when the evidence map is empty. It sits
	// far above Threshold so such candidates can never rank.
	NoEvidenceScore = 1.0
)

// weightTable maps each multi-field evidence subset to its weight vector.
// Weights within a row always sum to 1.0. Singleton subsets are not listed:
// a lone field always carries weight 1.0. Missing fields never trigger
// re-normalization; each subset carries its own hand-picked weights.
var weightTable = map[core.FieldSet]map[core.Field]float64{
	core.NewFieldSet(core.FieldClip, core.FieldTextA, core.FieldTextB, core.FieldVisualText): {
		core.FieldClip:       0.30,
		core.FieldTextA:      0.25,
		core.FieldTextB:      0.20,
		core.FieldVisualText: 0.25,
	},
	core.NewFieldSet(core.FieldClip, core.FieldTextA, core.FieldVisualText): {
		core.FieldClip:       0.35,
		core.FieldTextA:      0.35,
		core.FieldVisualText: 0.30,
	},
	core.NewFieldSet(core.FieldClip, core.FieldTextA, core.FieldTextB): {
		core.FieldClip:  0.35,
		core.FieldTextA: 0.40,
		core.FieldTextB: 0.25,
	},
	core.NewFieldSet(core.FieldClip, core.FieldTextB, core.FieldVisualText): {
		core.FieldClip:       0.35,
		core.FieldTextB:      0.30,
		core.FieldVisualText: 0.35,
	},
	core.NewFieldSet(core.FieldClip, core.FieldTextA): {
		core.FieldClip:  0.40,
		core.FieldTextA: 0.60,
	},
	core.NewFieldSet(core.FieldClip, core.FieldTextB): {
		core.FieldClip:  0.40,
		core.FieldTextB: 0.60,
	},
	core.NewFieldSet(core.FieldClip, core.FieldVisualText): {
		core.FieldClip:       0.50,
		core.FieldVisualText: 0.50,
	},
	core.NewFieldSet(core.FieldTextA, core.FieldTextB, core.FieldVisualText): {
		core.FieldTextA:      0.35,
		core.FieldTextB:      0.25,
		core.FieldVisualText: 0.40,
	},
	core.NewFieldSet(core.FieldTextA, core.FieldTextB): {
		core.FieldTextA: 0.55,
		core.FieldTextB: 0.45,
	},
	core.NewFieldSet(core.FieldTextA, core.FieldVisualText): {
		core.FieldTextA:      0.50,
		core.FieldVisualText: 0.50,
	},
	core.NewFieldSet(core.FieldTextB, core.FieldVisualText): {
		core.FieldTextB:      0.50,
		core.FieldVisualText: 0.50,
	},
}

var querySet = core.NewFieldSet(core.QueryFields()...)

// Weights returns the weight vector applied to the given evidence subset.
// Singleton subsets yield a single weight of 1.0. The empty set, and any
// subset containing fields outside retrieval, yields nil.
func Weights(set core.FieldSet) map[core.Field]float64 {
	if set&^querySet != 0 {
		return nil
	}
	if set.Count() == 1 {
		return map[core.Field]float64{set.Fields()[0]: 1.0}
	}
	return weightTable[set]
}

// Fuse collapses a per-field evidence map into one score. Evidence keys
// outside the four retrieval fields are ignored. An empty evidence map
// yields NoEvidenceScore.
//
// Fuse is deterministic: it performs no I/O, reads no clocks, and depends
// only on its argument.
func Fuse(evidence map[core.Field]float64) float64 {
	var set core.FieldSet
	for _, f := range core.QueryFields() {
		if _, ok := evidence[f]; ok {
			set = set.With(f)
		}
	}

	if set.Count() == 0 {
		return NoEvidenceScore
	}

	weights := Weights(set)
	if weights == nil {
		return NoEvidenceScore
	}

	// Summation order is fixed so identical evidence always produces a
	// bit-identical score.
	var score float64
	for _, f := range set.Fields() {
		score += weights[f] * evidence[f]
	}
	return score
}

// WithinThreshold reports whether a fused score qualifies for ranked
// output. The comparison is strict: exactly Threshold is excluded.
func WithinThreshold(score float64) bool {
	return score < Threshold
}

// WithinFieldThreshold reports whether a single field distance counts as
// evidence. The comparison is strict: exactly FieldThreshold is excluded.
func WithinFieldThreshold(distance float64) bool {
	return distance < FieldThreshold
}
