package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ptolemies/internal/config"
	"ptolemies/internal/model"
)

func TestEmbedTextSendsBearerToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("expected Authorization header Bearer secret, got %q", got)
		}
		resp := map[string]interface{}{"data": []map[string]interface{}{{"embedding": []float32{0.1, 0.2}}}}
		b, _ := json.Marshal(resp)
		w.Write(b)
	}))
	defer ts.Close()

	cfg := config.EmbeddingConfig{Endpoint: ts.URL, Model: "m", APIKey: "secret"}
	out, err := EmbedText(context.Background(), cfg, []string{"x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || len(out[0]) != 2 {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestEmbedTextClassifiesRateLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer ts.Close()

	cfg := config.EmbeddingConfig{Endpoint: ts.URL, Model: "m"}
	_, err := EmbedText(context.Background(), cfg, []string{"x"})
	if model.KindOf(err) != model.ErrEmbedRateLimited {
		t.Fatalf("expected ErrEmbedRateLimited, got %v", err)
	}
}

func TestEmbedTextClassifiesServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	cfg := config.EmbeddingConfig{Endpoint: ts.URL, Model: "m"}
	_, err := EmbedText(context.Background(), cfg, []string{"x"})
	if model.KindOf(err) != model.ErrEmbedUnavailable {
		t.Fatalf("expected ErrEmbedUnavailable, got %v", err)
	}
}

func TestEmbedTextClassifiesClientError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	cfg := config.EmbeddingConfig{Endpoint: ts.URL, Model: "m"}
	_, err := EmbedText(context.Background(), cfg, []string{"x"})
	if model.KindOf(err) != model.ErrEmbedRejected {
		t.Fatalf("expected ErrEmbedRejected, got %v", err)
	}
}

func TestEmbedTextMismatchedCountIsRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{"data": []map[string]interface{}{{"embedding": []float32{0.1}}}}
		b, _ := json.Marshal(resp)
		w.Write(b)
	}))
	defer ts.Close()

	cfg := config.EmbeddingConfig{Endpoint: ts.URL, Model: "m"}
	_, err := EmbedText(context.Background(), cfg, []string{"x", "y"})
	if model.KindOf(err) != model.ErrEmbedRejected {
		t.Fatalf("expected ErrEmbedRejected, got %v", err)
	}
}
