package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/clinote/internal/metrics"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func candidateResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}},
			"finishReason": "STOP",
		}},
	}
}

func TestHTTPCollaborator_Generate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, http.StatusOK, candidateResponse(`{"nombre":"Ana"}`))
	}))
	defer srv.Close()

	h := NewHTTPCollaborator(HTTPConfig{BaseURL: srv.URL + "/", Model: "gemini-test", APIKey: "k-123"}, nil, nil)
	out, err := h.Generate(context.Background(), Request{
		Instructions: "Extrae",
		Payload:      "Ana, 30 años",
		Schema:       map[string]any{"type": "OBJECT"},
	})

	require.NoError(t, err)
	assert.Equal(t, `{"nombre":"Ana"}`, out)
	assert.Equal(t, "/v1beta/models/gemini-test:generateContent", gotPath)
	assert.Equal(t, "k-123", gotKey)
	assert.Equal(t, "application/json", gotBody.GenerationConfig.ResponseMimeType)
	require.Len(t, gotBody.Contents, 1)
	assert.Equal(t, "Extrae\n\nAna, 30 años", gotBody.Contents[0].Parts[0].Text)
}

func TestHTTPCollaborator_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": map[string]any{"code": 500, "message": "internal"}})
		}},
		{"no candidates", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"candidates": []any{}})
		}},
		{"empty text", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, candidateResponse("  "))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			h := NewHTTPCollaborator(HTTPConfig{BaseURL: srv.URL, Model: "m", APIKey: "k"}, nil, nil)
			_, err := h.Generate(context.Background(), Request{})
			assert.Error(t, err)
		})
	}
}

func TestHTTPCollaborator_NoAPIKey(t *testing.T) {
	h := NewHTTPCollaborator(HTTPConfig{BaseURL: "http://127.0.0.1:1", Model: "m"}, nil, nil)
	_, err := h.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestHTTPCollaborator_BreakerOpensWithoutRetrying(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{})
	}))
	defer srv.Close()

	m := metrics.New()
	h := NewHTTPCollaborator(HTTPConfig{
		BaseURL:            srv.URL,
		Model:              "m",
		APIKey:             "k",
		BreakerMaxFailures: 2,
		BreakerOpenTimeout: time.Minute,
	}, nil, m)

	for i := 0; i < 4; i++ {
		_, err := h.Generate(context.Background(), Request{})
		assert.Error(t, err)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "open breaker short-circuits, and nothing is retried")
	assert.Equal(t, "open", h.State())
}

func TestHTTPCollaborator_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeJSON(w, http.StatusOK, candidateResponse(`{}`))
	}))
	defer srv.Close()

	h := NewHTTPCollaborator(HTTPConfig{BaseURL: srv.URL, Model: "m", APIKey: "k", Timeout: 20 * time.Millisecond}, nil, nil)
	_, err := h.Generate(context.Background(), Request{})
	assert.Error(t, err)
}
