// Package embedding implements the HTTP transport for C1's embedding
// adapter: request/response marshaling against an OpenAI-style embeddings
// endpoint, classified into model.ErrorKind so callers can decide whether
// to retry.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ptolemies/internal/config"
	"ptolemies/internal/model"
)

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedText calls cfg.Endpoint with a batch of texts and returns one
// embedding per input, in order. HTTP status codes are classified per
// §7's error taxonomy: 429 -> EmbedRateLimited, other 4xx ->
// EmbedRejected, 5xx/network failures -> EmbedUnavailable.
func EmbedText(ctx context.Context, cfg config.EmbeddingConfig, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(embedRequest{Model: cfg.Model, Input: inputs})
	if err != nil {
		return nil, model.NewError(model.ErrEmbedRejected, "encoding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, model.NewError(model.ErrEmbedRejected, "building request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, model.NewError(model.ErrEmbedUnavailable, "embedding endpoint unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewError(model.ErrEmbedUnavailable, "reading embedding response", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, model.NewError(model.ErrEmbedRateLimited, string(raw), nil)
	case resp.StatusCode >= 500:
		return nil, model.NewError(model.ErrEmbedUnavailable, fmt.Sprintf("status %d: %s", resp.StatusCode, raw), nil)
	case resp.StatusCode >= 400:
		return nil, model.NewError(model.ErrEmbedRejected, fmt.Sprintf("status %d: %s", resp.StatusCode, raw), nil)
	}

	var parsed embedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, model.NewError(model.ErrEmbedRejected, "malformed embedding response", err)
	}
	if len(parsed.Data) != len(inputs) {
		return nil, model.NewError(model.ErrEmbedRejected,
			fmt.Sprintf("embedding count mismatch: got %d want %d", len(parsed.Data), len(inputs)), nil)
	}
	out := make([][]float32, len(parsed.Data))
	for i := range parsed.Data {
		out[i] = parsed.Data[i].Embedding
	}
	return out, nil
}

// CheckReachability probes the endpoint with a minimal request.
func CheckReachability(ctx context.Context, cfg config.EmbeddingConfig) error {
	_, err := EmbedText(ctx, cfg, []string{"ping"})
	return err
}
