package embedder

import (
	"context"
	"testing"

	"ptolemies/internal/config"
)

func configDeterministic() config.EmbeddingConfig {
	return config.EmbeddingConfig{Provider: "deterministic", Dimension: 32}
}

func TestDeterministicEmbedderIsReproducible(t *testing.T) {
	e := NewDeterministic(32, true, 7)
	a, err := e.EmbedBatch(context.Background(), []string{"hello world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := e.EmbedBatch(context.Background(), []string{"hello world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a[0]) != 32 || len(b[0]) != 32 {
		t.Fatalf("expected dimension 32, got %d and %d", len(a[0]), len(b[0]))
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("expected identical vectors across calls, diverged at %d", i)
		}
	}
}

func TestDeterministicEmbedderDistinguishesInputs(t *testing.T) {
	e := NewDeterministic(32, true, 0)
	vecs, err := e.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	same := true
	for i := range vecs[0] {
		if vecs[0][i] != vecs[1][i] {
			same = false
			break
		}
	}
	if same {
		t.Error("expected different inputs to produce different vectors")
	}
}

func TestDeterministicEmbedderNormalizes(t *testing.T) {
	e := NewDeterministic(16, true, 0)
	vecs, err := e.EmbedBatch(context.Background(), []string{"a longer sentence to hash"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sum float64
	for _, x := range vecs[0] {
		sum += float64(x) * float64(x)
	}
	if sum < 0.99 || sum > 1.01 {
		t.Errorf("expected unit-length vector, got squared norm %f", sum)
	}
}

func TestNewSelectsProviderByConfig(t *testing.T) {
	ctx := context.Background()
	e := New(configDeterministic())
	if e.Name() != "deterministic" {
		t.Fatalf("expected deterministic provider, got %s", e.Name())
	}
	if err := e.Ping(ctx); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}
