package vector

import (
	"context"
	"math"
	"sync"

	"github.com/coder/hnsw"

	"ptolemies/internal/model"
)

// hnswStore is an in-memory, approximate-nearest-neighbor backend for
// larger corpora where brute-force cosine search (memoryStore) would be
// too slow. The underlying coder/hnsw graph only indexes vectors, so
// metadata lives in a side map keyed by the same internal uint64 key.
type hnswStore struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]

	idMap    map[string]uint64
	keyMap   map[uint64]string
	metadata map[uint64]map[string]string
	nextKey  uint64
}

// NewHNSW constructs an HNSW-backed store. ef controls search breadth
// (higher = more accurate, slower); m controls graph connectivity.
func NewHNSW(m, efSearch int) Store {
	if m <= 0 {
		m = 16
	}
	if efSearch <= 0 {
		efSearch = 20
	}
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = m
	graph.EfSearch = efSearch
	graph.Ml = 0.25

	return &hnswStore{
		graph:    graph,
		idMap:    make(map[string]uint64),
		keyMap:   make(map[uint64]string),
		metadata: make(map[uint64]map[string]string),
	}
}

func (s *hnswStore) Upsert(_ context.Context, chunkID string, vec []float32, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.idMap[chunkID]; ok {
		// Lazy deletion: the coder/hnsw graph has no safe remove path for
		// its last node, so orphan the old mapping rather than mutate the
		// graph in place.
		delete(s.keyMap, existing)
		delete(s.metadata, existing)
	}

	key := s.nextKey
	s.nextKey++

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeInPlace(normalized)

	s.graph.Add(hnsw.MakeNode(key, normalized))
	s.idMap[chunkID] = key
	s.keyMap[key] = chunkID
	s.metadata[key] = copyMetadata(metadata)
	return nil
}

func (s *hnswStore) Delete(_ context.Context, chunkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.idMap[chunkID]; ok {
		delete(s.keyMap, key)
		delete(s.metadata, key)
		delete(s.idMap, chunkID)
	}
	return nil
}

func (s *hnswStore) SimilaritySearch(_ context.Context, vec []float32, k int, filter Filter, threshold float64) ([]Result, error) {
	if len(vec) == 0 {
		return nil, model.NewError(model.ErrInvalidQuery, "empty query vector", nil)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 {
		k = 10
	}
	if s.graph.Len() == 0 {
		return nil, nil
	}

	query := make([]float32, len(vec))
	copy(query, vec)
	normalizeInPlace(query)

	// Over-fetch to compensate for orphaned (lazily-deleted) nodes and
	// post-hoc metadata filtering that the graph itself can't apply.
	oversample := k * 4
	if oversample < k {
		oversample = k
	}
	nodes := s.graph.Search(query, oversample)

	results := make([]Result, 0, len(nodes))
	for _, n := range nodes {
		chunkID, ok := s.keyMap[n.Key]
		if !ok {
			continue
		}
		md := s.metadata[n.Key]
		if !matches(md, filter) {
			continue
		}
		distance := s.graph.Distance(query, n.Value)
		score := cosineScoreFromDistance(distance)
		if score <= threshold {
			continue
		}
		results = append(results, Result{
			ChunkID:  chunkID,
			Score:    score,
			Metadata: copyMetadata(md),
		})
		if len(results) >= k {
			break
		}
	}
	return results, nil
}

func (s *hnswStore) Close() error { return nil }

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

func cosineScoreFromDistance(distance float32) float64 {
	return 1.0 - float64(distance)
}
