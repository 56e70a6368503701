package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTranscription(t *testing.T) {
	tests := []struct {
		name           string
		raw            string
		wantText       string
		wantConfidence float32
		wantErr        bool
	}{
		{
			name:           "clean json",
			raw:            `{"text": "buy milk\ncall dentist", "confidence": 0.92}`,
			wantText:       "buy milk\ncall dentist",
			wantConfidence: 0.92,
		},
		{
			name: "fenced json",
			raw: "```json\n" +
				`{"text": "meeting at 3pm", "confidence": 0.8}` +
				"\n```",
			wantText:       "meeting at 3pm",
			wantConfidence: 0.8,
		},
		{
			name:           "fenced without language tag",
			raw:            "```\n{\"text\": \"hello\", \"confidence\": 1}\n```",
			wantText:       "hello",
			wantConfidence: 1,
		},
		{
			name:           "missing opening quote on key",
			raw:            `{text": "hello", confidence": 0.5}`,
			wantText:       "hello",
			wantConfidence: 0.5,
		},
		{
			name:           "surrounding whitespace",
			raw:            "\n\n  {\"text\": \"x\", \"confidence\": 0.3}  \n",
			wantText:       "x",
			wantConfidence: 0.3,
		},
		{
			name:           "empty page",
			raw:            `{"text": "", "confidence": 0.0}`,
			wantText:       "",
			wantConfidence: 0,
		},
		{
			name:    "prose instead of json",
			raw:     "The image shows a handwritten shopping list.",
			wantErr: true,
		},
		{
			name:    "truncated json",
			raw:     `{"text": "partial`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTranscription(tt.raw)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantText, got.Text)
			assert.InDelta(t, tt.wantConfidence, got.Confidence, 1e-6)
		})
	}
}

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "valid json untouched",
			input: `{"text": "a, b: c", "confidence": 0.5}`,
			want:  `{"text": "a, b: c", "confidence": 0.5}`,
		},
		{
			name:  "missing opening quote after brace",
			input: `{text": "x"}`,
			want:  `{"text": "x"}`,
		},
		{
			name:  "missing opening quote after comma",
			input: `{"text": "x", confidence": 0.5}`,
			want:  `{"text": "x", "confidence": 0.5}`,
		},
		{
			name:  "commas inside values survive",
			input: `{"text": "one, two, three"}`,
			want:  `{"text": "one, two, three"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, repairJSON(tt.input))
		})
	}
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, float32(0), clampConfidence(-0.3))
	assert.Equal(t, float32(0.4), clampConfidence(0.4))
	assert.Equal(t, float32(1), clampConfidence(1.7))
}
