package storage

import (
	"testing"
	"time"

	"github.com/poiesic/notedex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"path-based ID", core.IDFromPath("/scans/2026/note-0042.png")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.Error(t, err)
}

func TestMarshalUnmarshalNoteRecord(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("fully populated record", func(t *testing.T) {
		original := &core.NoteRecord{
			Id:                  core.IDFromPath("/scans/full.png"),
			ImagePath:           "/scans/full.png",
			VisualEmbedding:     []float32{0.6, 0.8},
			ClipEmbedding:       []float32{1.0, 0.0},
			VisualTextEmbedding: []float32{0.0, 1.0},
			TextEmbeddingA:      []float32{0.8, 0.6},
			TextEmbeddingB:      []float32{0.6, -0.8},
			OcrTextA:            "milk, eggs, flour",
			OcrConfidenceA:      0.91,
			OcrTextB:            "milk, eggs, flour",
			OcrConfidenceB:      0.87,
			Timestamp:           now,
		}

		data := MarshalNoteRecord(original)
		require.NotEmpty(t, data)

		decoded, err := UnmarshalNoteRecord(data)
		require.NoError(t, err)
		require.NotNil(t, decoded)

		assert.Equal(t, original.Id, decoded.Id)
		assert.Equal(t, original.ImagePath, decoded.ImagePath)
		assert.Equal(t, original.OcrTextA, decoded.OcrTextA)
		assert.Equal(t, original.OcrConfidenceA, decoded.OcrConfidenceA)
		assert.Equal(t, original.OcrTextB, decoded.OcrTextB)
		assert.Equal(t, original.OcrConfidenceB, decoded.OcrConfidenceB)
		assert.True(t, original.Timestamp.Equal(decoded.Timestamp))
		for _, f := range core.Fields() {
			assert.Equal(t, original.Embedding(f), decoded.Embedding(f), f.String())
		}
	})

	// Absent slots must stay absent after a round trip; HasEmbedding is how
	// every downstream consumer decides which indexes a note belongs to.
	t.Run("sparse record keeps slots absent", func(t *testing.T) {
		original := &core.NoteRecord{
			Id:            core.ID(7),
			ImagePath:     "/scans/sparse.png",
			ClipEmbedding: []float32{0.0, 1.0},
			Timestamp:     now,
		}

		decoded, err := UnmarshalNoteRecord(MarshalNoteRecord(original))
		require.NoError(t, err)

		assert.True(t, decoded.HasEmbedding(core.FieldClip))
		for _, f := range []core.Field{core.FieldVisual, core.FieldVisualText, core.FieldTextA, core.FieldTextB} {
			assert.False(t, decoded.HasEmbedding(f), "slot %s should remain absent", f)
		}
		assert.Empty(t, decoded.OcrTextA)
		assert.Empty(t, decoded.OcrTextB)
	})

	t.Run("unicode transcription", func(t *testing.T) {
		original := &core.NoteRecord{
			Id:        core.ID(8),
			ImagePath: "/scans/unicode.png",
			OcrTextA:  "Vergiss nicht: Milch kaufen — 世界 🌍",
			Timestamp: now,
		}

		decoded, err := UnmarshalNoteRecord(MarshalNoteRecord(original))
		require.NoError(t, err)
		assert.Equal(t, original.OcrTextA, decoded.OcrTextA)
	})
}

func TestUnmarshalNoteRecord_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"invalid data", []byte{0xFF, 0xFF, 0xFF}},
		{"partial data", []byte{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalNoteRecord(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestMarshalUnmarshalCheckpoint(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	original := &core.Checkpoint{
		Kind:      "reingest",
		LastID:    core.ID(12345),
		UpdatedAt: now,
	}

	data := MarshalCheckpoint(original)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalCheckpoint(data)
	require.NoError(t, err)
	assert.Equal(t, original.Kind, decoded.Kind)
	assert.Equal(t, original.LastID, decoded.LastID)
	assert.True(t, original.UpdatedAt.Equal(decoded.UpdatedAt))
}
