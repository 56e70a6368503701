package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:9090", cfg.VisionHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.TranscriptionHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, "qwen2.5vl:7b", cfg.TranscriptionModel)
	assert.Equal(t, "none", cfg.Token)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.NotNil(t, cfg)
		// Should have default values
		assert.Equal(t, "http://localhost:9090", cfg.VisionHost)
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	t.Run("with custom vision host", func(t *testing.T) {
		cfg := NewConfig(WithVisionHost("http://gpu-box:9090"))

		assert.Equal(t, "http://gpu-box:9090", cfg.VisionHost)
	})

	t.Run("with separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithTranscriptionHost("http://vlm:9090/v1"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://vlm:9090/v1", cfg.TranscriptionHost)
	})

	t.Run("with custom models", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingModel("text-embedding-3-small"),
			WithTranscriptionModel("gpt-4o-mini"),
		)

		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
		assert.Equal(t, "gpt-4o-mini", cfg.TranscriptionModel)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithVisionHost("http://custom:9191"),
			WithEmbeddingModel("custom-embed"),
			WithToken("secret"),
			WithTimeout(30*time.Second),
		)

		assert.Equal(t, "http://custom:9191", cfg.VisionHost)
		assert.Equal(t, "custom-embed", cfg.EmbeddingModel)
		assert.Equal(t, "secret", cfg.Token)
		assert.Equal(t, 30*time.Second, cfg.Timeout)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name                  string
		visionHost            string
		embeddingHost         string
		transcriptionHost     string
		expectedVision        string
		expectedEmbedding     string
		expectedTranscription string
	}{
		{
			name:                  "already canonical",
			visionHost:            "http://localhost:9090",
			embeddingHost:         "http://localhost:11434/v1",
			transcriptionHost:     "http://localhost:11434/v1",
			expectedVision:        "http://localhost:9090",
			expectedEmbedding:     "http://localhost:11434/v1",
			expectedTranscription: "http://localhost:11434/v1",
		},
		{
			name:                  "missing /v1",
			visionHost:            "http://localhost:9090",
			embeddingHost:         "http://localhost:11434",
			transcriptionHost:     "http://localhost:11434",
			expectedVision:        "http://localhost:9090",
			expectedEmbedding:     "http://localhost:11434/v1",
			expectedTranscription: "http://localhost:11434/v1",
		},
		{
			name:                  "trailing slashes",
			visionHost:            "http://localhost:9090/",
			embeddingHost:         "http://localhost:11434/",
			transcriptionHost:     "http://localhost:11434/",
			expectedVision:        "http://localhost:9090",
			expectedEmbedding:     "http://localhost:11434/v1",
			expectedTranscription: "http://localhost:11434/v1",
		},
		{
			name:                  "vision host never gets /v1",
			visionHost:            "http://gpu-box:9090",
			embeddingHost:         "http://embed:8080",
			transcriptionHost:     "http://vlm:9090/v1",
			expectedVision:        "http://gpu-box:9090",
			expectedEmbedding:     "http://embed:8080/v1",
			expectedTranscription: "http://vlm:9090/v1",
		},
		{
			name:                  "empty hosts",
			visionHost:            "",
			embeddingHost:         "",
			transcriptionHost:     "",
			expectedVision:        "",
			expectedEmbedding:     "",
			expectedTranscription: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				VisionHost:        tt.visionHost,
				EmbeddingHost:     tt.embeddingHost,
				TranscriptionHost: tt.transcriptionHost,
			}

			cfg.Normalize()

			assert.Equal(t, tt.expectedVision, cfg.VisionHost)
			assert.Equal(t, tt.expectedEmbedding, cfg.EmbeddingHost)
			assert.Equal(t, tt.expectedTranscription, cfg.TranscriptionHost)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			VisionHost:         "http://localhost:9090",
			EmbeddingHost:      "http://localhost:11434",
			TranscriptionHost:  "http://localhost:11434",
			EmbeddingModel:     "embeddinggemma",
			TranscriptionModel: "qwen2.5vl:7b",
			Token:              "none",
			Timeout:            time.Minute,
		}
	}

	t.Run("valid config", func(t *testing.T) {
		cfg := valid()

		err := cfg.Validate()
		assert.NoError(t, err)

		// Should also normalize
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://localhost:11434/v1", cfg.TranscriptionHost)
	})

	t.Run("missing vision host", func(t *testing.T) {
		cfg := valid()
		cfg.VisionHost = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "VisionHost")
	})

	t.Run("missing embedding host", func(t *testing.T) {
		cfg := valid()
		cfg.EmbeddingHost = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingHost")
	})

	t.Run("missing transcription host", func(t *testing.T) {
		cfg := valid()
		cfg.TranscriptionHost = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "TranscriptionHost")
	})

	t.Run("missing embedding model", func(t *testing.T) {
		cfg := valid()
		cfg.EmbeddingModel = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingModel")
	})

	t.Run("missing transcription model", func(t *testing.T) {
		cfg := valid()
		cfg.TranscriptionModel = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "TranscriptionModel")
	})

	t.Run("non-positive timeout", func(t *testing.T) {
		cfg := valid()
		cfg.Timeout = 0

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "Timeout")
	})
}

func TestConfigOptions(t *testing.T) {
	t.Run("WithVisionHost", func(t *testing.T) {
		cfg := &Config{}
		opt := WithVisionHost("http://test:9090")
		opt(cfg)

		assert.Equal(t, "http://test:9090", cfg.VisionHost)
	})

	t.Run("WithEmbeddingHost", func(t *testing.T) {
		cfg := &Config{}
		opt := WithEmbeddingHost("http://test:8080/v1")
		opt(cfg)

		assert.Equal(t, "http://test:8080/v1", cfg.EmbeddingHost)
	})

	t.Run("WithTranscriptionHost", func(t *testing.T) {
		cfg := &Config{}
		opt := WithTranscriptionHost("http://test:9090/v1")
		opt(cfg)

		assert.Equal(t, "http://test:9090/v1", cfg.TranscriptionHost)
	})

	t.Run("WithEmbeddingModel", func(t *testing.T) {
		cfg := &Config{}
		opt := WithEmbeddingModel("test-model")
		opt(cfg)

		assert.Equal(t, "test-model", cfg.EmbeddingModel)
	})

	t.Run("WithTranscriptionModel", func(t *testing.T) {
		cfg := &Config{}
		opt := WithTranscriptionModel("test-vlm")
		opt(cfg)

		assert.Equal(t, "test-vlm", cfg.TranscriptionModel)
	})

	t.Run("WithToken", func(t *testing.T) {
		cfg := &Config{}
		opt := WithToken("tok")
		opt(cfg)

		assert.Equal(t, "tok", cfg.Token)
	})

	t.Run("WithTimeout", func(t *testing.T) {
		cfg := &Config{}
		opt := WithTimeout(45 * time.Second)
		opt(cfg)

		assert.Equal(t, 45*time.Second, cfg.Timeout)
	})
}

func TestConfigValidate_Integration(t *testing.T) {
	// Test that NewConfig produces a valid configuration
	cfg := NewConfig()
	err := cfg.Validate()
	require.NoError(t, err)

	// Test that DefaultConfig produces a valid configuration
	cfg = DefaultConfig()
	err = cfg.Validate()
	require.NoError(t, err)
}
