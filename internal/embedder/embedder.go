// Package embedder implements C1: the pluggable embedding-provider
// adapter. It wraps internal/embedding's HTTP client with a global
// concurrency semaphore and a per-process rate limiter, and offers a
// deterministic hash-based backend for tests and offline operation.
package embedder

import (
	"context"
	"hash/fnv"
	"math"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"ptolemies/internal/config"
	"ptolemies/internal/embedding"
)

// Embedder converts text into embedding vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Dimension() int
	Ping(ctx context.Context) error
}

// New constructs the configured embedder: "deterministic" or an empty
// provider for the offline hash-based backend, anything else for the
// networked HTTP adapter.
func New(cfg config.EmbeddingConfig) Embedder {
	if cfg.Provider == "deterministic" || cfg.Provider == "" {
		return NewDeterministic(cfg.Dimension, true, 0)
	}
	return newClient(cfg)
}

// clientEmbedder calls a remote embedding endpoint, bounding in-flight
// requests with a semaphore (§5's concurrency model) and pacing calls with
// a single token-bucket limiter sized from cfg.RequestsPerSecond. The
// limiter is shared by all calls; there is no per-key rate limit.
type clientEmbedder struct {
	cfg       config.EmbeddingConfig
	batchSize int
	sem       *semaphore.Weighted
	limiter   *rate.Limiter
}

func newClient(cfg config.EmbeddingConfig) Embedder {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}
	maxConcurrency := int64(cfg.MaxConcurrency)
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &clientEmbedder{
		cfg:       cfg,
		batchSize: batchSize,
		sem:       semaphore.NewWeighted(maxConcurrency),
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c *clientEmbedder) Name() string   { return c.cfg.Model }
func (c *clientEmbedder) Dimension() int { return c.cfg.Dimension }

func (c *clientEmbedder) Ping(ctx context.Context) error {
	return embedding.CheckReachability(ctx, c.cfg)
}

func (c *clientEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var out [][]float32
	for i := 0; i < len(texts); i += c.batchSize {
		end := i + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.call(ctx, texts[i:end])
		if err != nil {
			return out, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (c *clientEmbedder) call(ctx context.Context, batch []string) ([][]float32, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return embedding.EmbedText(ctx, c.cfg, batch)
}

// deterministicEmbedder hashes byte 3-grams into a fixed-size vector with
// no network calls, for tests and offline/demo operation.
type deterministicEmbedder struct {
	dim       int
	normalize bool
	seed      uint64
}

// NewDeterministic constructs a deterministic embedder. If normalize is
// true, output vectors are L2-normalized (needed for cosine similarity
// consumers that assume unit-length vectors).
func NewDeterministic(dim int, normalize bool, seed uint64) Embedder {
	if dim <= 0 {
		dim = 64
	}
	return &deterministicEmbedder{dim: dim, normalize: normalize, seed: seed}
}

func (d *deterministicEmbedder) Name() string            { return "deterministic" }
func (d *deterministicEmbedder) Dimension() int           { return d.dim }
func (d *deterministicEmbedder) Ping(_ context.Context) error { return nil }

func (d *deterministicEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = d.embedOne(t)
	}
	return out, nil
}

func (d *deterministicEmbedder) embedOne(s string) []float32 {
	v := make([]float32, d.dim)
	b := []byte(s)
	if len(b) == 0 {
		return v
	}
	if len(b) < 3 {
		hashInto(d.seed, b, v)
	} else {
		for i := 0; i <= len(b)-3; i++ {
			hashInto(d.seed, b[i:i+3], v)
		}
	}
	if d.normalize {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		if sum > 0 {
			inv := float32(1.0 / math.Sqrt(sum))
			for i := range v {
				v[i] *= inv
			}
		}
	}
	return v
}

func hashInto(seed uint64, gram []byte, v []float32) {
	h := fnv.New64a()
	if seed != 0 {
		var tmp [8]byte
		for i := 0; i < 8; i++ {
			tmp[i] = byte(seed >> (8 * i))
		}
		_, _ = h.Write(tmp[:])
	}
	_, _ = h.Write(gram)
	hv := h.Sum64()
	idx := int(hv % uint64(len(v)))
	w := float32(int32(hv>>32)) / float32(1<<31)
	v[idx] += w
}
