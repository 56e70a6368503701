package ingestion

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageString(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageLoad, "load"},
		{StageVisual, "visual"},
		{StageClip, "clip"},
		{StageVisualText, "visual_text"},
		{StageOCR, "ocr"},
		{StageTextEmbed, "text_embed"},
		{StagePersist, "persist"},
		{Stage(99), "unknown"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.stage.String())
	}
}

func TestStageFractionsAscend(t *testing.T) {
	stages := []Stage{StageLoad, StageVisual, StageClip, StageVisualText, StageOCR, StageTextEmbed, StagePersist}

	last := float32(0)
	for _, stage := range stages {
		f := stage.fraction()
		assert.Greater(t, f, last, "stage %s", stage)
		assert.LessOrEqual(t, f, float32(1.0))
		last = f
	}
	assert.Equal(t, float32(1.0), StagePersist.fraction())
	assert.Zero(t, Stage(99).fraction())
}

func TestProgressSink_ClampsToMax(t *testing.T) {
	obs := &recordingObserver{}
	sink := newProgressSink(obs)

	// Derivations finish out of order; fractions must not move backwards.
	sink.report(StageOCR, "ocr done")
	sink.report(StageVisual, "visual done")
	sink.report(StagePersist, "stored")

	events := obs.snapshot()
	require.Len(t, events, 3)

	assert.Equal(t, StageOCR, events[0].stage)
	assert.Equal(t, float32(0.70), events[0].fraction)

	// The late visual event keeps its stage but is clamped to the max.
	assert.Equal(t, StageVisual, events[1].stage)
	assert.Equal(t, float32(0.70), events[1].fraction)

	assert.Equal(t, float32(1.0), events[2].fraction)
}

func TestProgressSink_NilObserver(t *testing.T) {
	sink := newProgressSink(nil)
	assert.NotPanics(t, func() {
		sink.report(StageLoad, "loaded")
		sink.report(StagePersist, "stored")
	})
}

func TestNewLogObserver(t *testing.T) {
	obs := NewLogObserver(nil)
	require.NotNil(t, obs)

	quiet := NewLogObserver(slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NotPanics(t, func() {
		quiet.Progress(StageLoad, 0.10, "loaded")
	})
}
