package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/notedex/ai"
)

func testConfig(host string) *ai.Config {
	return ai.NewConfig(
		ai.WithVisionHost(host),
		ai.WithTimeout(5*time.Second),
	)
}

func TestClient_EmbedImage(t *testing.T) {
	img := &ai.Image{Path: "/scans/a.png", Data: []byte("fake-png-bytes"), Format: "png"}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/embed", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "clip", req.Model)

		decoded, err := base64.StdEncoding.DecodeString(req.Image)
		require.NoError(t, err)
		assert.Equal(t, img.Data, decoded)

		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.6, 0.8}})
	}))
	defer server.Close()

	client, err := newClient(testConfig(server.URL))
	require.NoError(t, err)

	vec, err := client.EmbedImage(context.Background(), img, ai.ModelClip)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.6, 0.8}, vec)
}

func TestClient_EmbedImage_Errors(t *testing.T) {
	t.Run("unknown model kind", func(t *testing.T) {
		client, err := newClient(testConfig("http://localhost:1"))
		require.NoError(t, err)

		_, err = client.EmbedImage(context.Background(), &ai.Image{}, ai.ModelKind(99))
		assert.Error(t, err)
	})

	t.Run("non-200 response surfaces body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client, err := newClient(testConfig(server.URL))
		require.NoError(t, err)

		_, err = client.EmbedImage(context.Background(), &ai.Image{Data: []byte("x")}, ai.ModelVisual)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
		assert.Contains(t, err.Error(), "model not loaded")
	})

	t.Run("empty embedding is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(embedResponse{})
		}))
		defer server.Close()

		client, err := newClient(testConfig(server.URL))
		require.NoError(t, err)

		_, err = client.EmbedImage(context.Background(), &ai.Image{Data: []byte("x")}, ai.ModelVisual)
		assert.Error(t, err)
	})

	t.Run("cancelled context aborts the request", func(t *testing.T) {
		started := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			close(started)
			<-r.Context().Done()
		}))
		defer server.Close()

		client, err := newClient(testConfig(server.URL))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-started
			cancel()
		}()

		_, err = client.EmbedImage(ctx, &ai.Image{Data: []byte("x")}, ai.ModelVisual)
		assert.Error(t, err)
	})
}

func TestClient_RecognizeText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ocr", r.URL.Path)

		var req ocrRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Image)

		json.NewEncoder(w).Encode(ocrResponse{Text: "buy milk", Confidence: 0.87})
	}))
	defer server.Close()

	client, err := newClient(testConfig(server.URL))
	require.NoError(t, err)

	got, err := client.RecognizeText(context.Background(), &ai.Image{Data: []byte("scan")})
	require.NoError(t, err)
	assert.Equal(t, "buy milk", got.Text)
	assert.InDelta(t, 0.87, got.Confidence, 1e-6)
}

func TestClient_RecognizeText_EmptyPage(t *testing.T) {
	// An empty transcription is a valid result, not an error.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ocrResponse{Text: "", Confidence: 0})
	}))
	defer server.Close()

	client, err := newClient(testConfig(server.URL))
	require.NoError(t, err)

	got, err := client.RecognizeText(context.Background(), &ai.Image{Data: []byte("blank")})
	require.NoError(t, err)
	assert.Empty(t, got.Text)
}

func TestClient_Ping(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/healthz", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client, err := newClient(testConfig(server.URL))
		require.NoError(t, err)
		assert.NoError(t, client.Ping(context.Background()))
	})

	t.Run("unhealthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client, err := newClient(testConfig(server.URL))
		require.NoError(t, err)
		assert.Error(t, client.Ping(context.Background()))
	})
}
