package vector

import (
	"context"
	"testing"
)

func TestMemoryStoreReturnsClosestFirst(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_ = s.Upsert(ctx, "a", []float32{1, 0, 0}, map[string]string{"source_id": "s1"})
	_ = s.Upsert(ctx, "b", []float32{0, 1, 0}, map[string]string{"source_id": "s1"})
	_ = s.Upsert(ctx, "c", []float32{0.9, 0.1, 0}, map[string]string{"source_id": "s2"})

	results, err := s.SimilaritySearch(ctx, []float32{1, 0, 0}, 2, nil, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ChunkID != "a" {
		t.Errorf("expected closest match 'a' first, got %s", results[0].ChunkID)
	}
}

func TestMemoryStoreAppliesMetadataFilter(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	_ = s.Upsert(ctx, "a", []float32{1, 0}, map[string]string{"source_id": "s1"})
	_ = s.Upsert(ctx, "b", []float32{1, 0}, map[string]string{"source_id": "s2"})

	results, err := s.SimilaritySearch(ctx, []float32{1, 0}, 10, Filter{"source_id": "s2"}, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].ChunkID != "b" {
		t.Fatalf("expected only 'b' to match filter, got %v", results)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	_ = s.Upsert(ctx, "a", []float32{1, 0}, nil)
	_ = s.Delete(ctx, "a")
	results, err := s.SimilaritySearch(ctx, []float32{1, 0}, 10, nil, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results after delete, got %v", results)
	}
}

// TestMemoryStoreExcludesExactThreshold covers the boundary rule that a
// result scoring exactly at the threshold is excluded, not included.
func TestMemoryStoreExcludesExactThreshold(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	_ = s.Upsert(ctx, "a", []float32{1, 0}, nil)

	results, err := s.SimilaritySearch(ctx, []float32{1, 0}, 10, nil, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected exact-threshold match to be excluded, got %v", results)
	}

	results, err = s.SimilaritySearch(ctx, []float32{1, 0}, 10, nil, 0.999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected above-threshold match to be included, got %v", results)
	}
}

func TestHNSWStoreFindsClosestMatch(t *testing.T) {
	s := NewHNSW(16, 40)
	ctx := context.Background()

	_ = s.Upsert(ctx, "a", []float32{1, 0, 0}, map[string]string{"tag": "x"})
	_ = s.Upsert(ctx, "b", []float32{0, 1, 0}, map[string]string{"tag": "y"})
	_ = s.Upsert(ctx, "c", []float32{0.95, 0.05, 0}, map[string]string{"tag": "x"})

	results, err := s.SimilaritySearch(ctx, []float32{1, 0, 0}, 1, nil, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].ChunkID != "a" {
		t.Fatalf("expected 'a' as closest match, got %v", results)
	}
}

func TestHNSWStoreUpsertOverwritesViaLazyDeletion(t *testing.T) {
	s := NewHNSW(16, 40)
	ctx := context.Background()
	_ = s.Upsert(ctx, "a", []float32{1, 0}, map[string]string{"tag": "v1"})
	_ = s.Upsert(ctx, "a", []float32{1, 0}, map[string]string{"tag": "v2"})

	results, err := s.SimilaritySearch(ctx, []float32{1, 0}, 10, nil, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected a single live entry for 'a' after re-upsert, got %d", len(results))
	}
	if results[0].Metadata["tag"] != "v2" {
		t.Errorf("expected latest metadata to win, got %v", results[0].Metadata)
	}
}

// TestHNSWStoreExcludesExactThreshold mirrors the in-memory backend's
// exact-threshold boundary rule.
func TestHNSWStoreExcludesExactThreshold(t *testing.T) {
	s := NewHNSW(16, 40)
	ctx := context.Background()
	_ = s.Upsert(ctx, "a", []float32{1, 0}, nil)

	results, err := s.SimilaritySearch(ctx, []float32{1, 0}, 10, nil, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected exact-threshold match to be excluded, got %v", results)
	}
}
