package vector

import (
	"context"
	"math"
	"sort"
	"sync"

	"ptolemies/internal/model"
)

type entry struct {
	vector   []float32
	metadata map[string]string
}

// memoryStore is a brute-force in-memory cosine search, the default
// backend (config.VectorStoreConfig.Backend == "memory").
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewMemory() Store {
	return &memoryStore{entries: make(map[string]entry)}
}

func (m *memoryStore) Upsert(_ context.Context, chunkID string, vec []float32, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]float32, len(vec))
	copy(cp, vec)
	m.entries[chunkID] = entry{vector: cp, metadata: copyMetadata(metadata)}
	return nil
}

func (m *memoryStore) Delete(_ context.Context, chunkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, chunkID)
	return nil
}

func (m *memoryStore) SimilaritySearch(_ context.Context, vec []float32, k int, filter Filter, threshold float64) ([]Result, error) {
	if len(vec) == 0 {
		return nil, model.NewError(model.ErrInvalidQuery, "empty query vector", nil)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 {
		k = 10
	}
	qnorm := l2norm(vec)
	results := make([]Result, 0, len(m.entries))
	for id, e := range m.entries {
		if !matches(e.metadata, filter) {
			continue
		}
		score := cosine(vec, e.vector, qnorm)
		if score <= threshold {
			continue
		}
		results = append(results, Result{
			ChunkID:  id,
			Score:    score,
			Metadata: copyMetadata(e.metadata),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *memoryStore) Close() error { return nil }

func matches(md map[string]string, f Filter) bool {
	if len(f) == 0 {
		return true
	}
	for k, v := range f {
		if md[k] != v {
			return false
		}
	}
	return true
}

func copyMetadata(md map[string]string) map[string]string {
	if md == nil {
		return nil
	}
	cp := make(map[string]string, len(md))
	for k, v := range md {
		cp[k] = v
	}
	return cp
}

func l2norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func cosine(a, b []float32, anorm float64) float64 {
	if anorm == 0 {
		anorm = l2norm(a)
	}
	bnorm := l2norm(b)
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	return dot(a, b) / (anorm * bnorm)
}
