package graph

import (
	"context"
	"testing"

	"ptolemies/internal/model"
)

func TestMemoryStoreNeighbors(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	_ = s.UpsertNode(ctx, Node{ID: "doc-1"})
	_ = s.UpsertNode(ctx, Node{ID: "chunk-1"})
	_ = s.UpsertEdge(ctx, Edge{Source: "doc-1", Kind: "DOCUMENTS", Target: "chunk-1"})

	neighbors, err := s.Neighbors(ctx, "doc-1", "DOCUMENTS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(neighbors) != 1 || neighbors[0] != "chunk-1" {
		t.Fatalf("expected [chunk-1], got %v", neighbors)
	}
}

func TestMemoryStoreTraverseRespectsMaxDepth(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	_ = s.UpsertEdge(ctx, Edge{Source: "a", Kind: "RELATED_TO", Target: "b"})
	_ = s.UpsertEdge(ctx, Edge{Source: "b", Kind: "RELATED_TO", Target: "c"})
	_ = s.UpsertEdge(ctx, Edge{Source: "c", Kind: "RELATED_TO", Target: "d"})

	hops, err := s.Traverse(ctx, "a", []string{"RELATED_TO"}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := map[string]bool{}
	for _, h := range hops {
		ids[h.NodeID] = true
	}
	if !ids["a"] || !ids["b"] || !ids["c"] {
		t.Errorf("expected a,b,c reached within depth 2, got %v", hops)
	}
	if ids["d"] {
		t.Errorf("expected d unreached beyond depth 2, got %v", hops)
	}
}

func TestMemoryStoreShortestPath(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	_ = s.UpsertEdge(ctx, Edge{Source: "a", Kind: "RELATED_TO", Target: "b"})
	_ = s.UpsertEdge(ctx, Edge{Source: "b", Kind: "RELATED_TO", Target: "c"})
	_ = s.UpsertEdge(ctx, Edge{Source: "a", Kind: "RELATED_TO", Target: "c"})

	path, err := s.ShortestPath(ctx, "a", "c", []string{"RELATED_TO"}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(path) != 2 || path[1].NodeID != "c" {
		t.Fatalf("expected direct 2-hop path a->c, got %v", path)
	}
}

func TestMemoryStoreShortestPathReturnsNoPath(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	_ = s.UpsertEdge(ctx, Edge{Source: "a", Kind: "RELATED_TO", Target: "b"})

	_, err := s.ShortestPath(ctx, "a", "z", []string{"RELATED_TO"}, 5)
	if model.KindOf(err) != model.ErrNoPath {
		t.Fatalf("expected ErrNoPath, got %v", err)
	}
}

func TestWouldCreateCycleDetectsDirectCycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	_ = s.UpsertEdge(ctx, Edge{Source: "react", Kind: "DEPENDS_ON", Target: "react-dom", FrameworkID: "fw1"})

	cyclic, err := s.WouldCreateCycle(ctx, "fw1", "react-dom", "react")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cyclic {
		t.Error("expected adding react-dom->react to be flagged as a cycle")
	}
}

func TestWouldCreateCycleScopesPerFramework(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	_ = s.UpsertEdge(ctx, Edge{Source: "react", Kind: "DEPENDS_ON", Target: "react-dom", FrameworkID: "fw1"})

	cyclic, err := s.WouldCreateCycle(ctx, "fw2", "react-dom", "react")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cyclic {
		t.Error("expected cycle check scoped to fw2 to ignore fw1's edge")
	}
}

func TestUpsertEdgeMergesStrengthAndEvidence(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	_ = s.UpsertEdge(ctx, Edge{Source: "concept:hooks", Kind: "APPEARS_IN", Target: "chunk-1", Strength: 0.4, EvidenceCount: 1})
	_ = s.UpsertEdge(ctx, Edge{Source: "concept:hooks", Kind: "APPEARS_IN", Target: "chunk-1", Strength: 1, EvidenceCount: 1})

	neighbors, err := s.Neighbors(ctx, "concept:hooks", "APPEARS_IN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(neighbors) != 1 || neighbors[0] != "chunk-1" {
		t.Fatalf("expected a single merged edge to chunk-1, got %v", neighbors)
	}

	m := s.(*memoryStore)
	edge := m.out[edgeKey{src: "concept:hooks", kind: "APPEARS_IN"}]["chunk-1"]
	if edge.Strength != 1 {
		t.Errorf("expected merged strength to take the max (1), got %v", edge.Strength)
	}
	if edge.EvidenceCount != 2 {
		t.Errorf("expected merged evidence count to sum (2), got %d", edge.EvidenceCount)
	}
}

func TestDeleteNodeRemovesEdgesInBothDirections(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	_ = s.UpsertNode(ctx, Node{ID: "doc-1", Labels: []string{"Document"}})
	_ = s.UpsertNode(ctx, Node{ID: "chunk-1", Labels: []string{"Chunk"}})
	_ = s.UpsertNode(ctx, Node{ID: "concept:hooks", Labels: []string{"Concept"}})
	_ = s.UpsertEdge(ctx, Edge{Source: "doc-1", Kind: "APPEARS_IN", Target: "chunk-1", Strength: 1, EvidenceCount: 1})
	_ = s.UpsertEdge(ctx, Edge{Source: "chunk-1", Kind: "CONTAINS_CONCEPT", Target: "concept:hooks", Strength: 1, EvidenceCount: 1})
	_ = s.UpsertEdge(ctx, Edge{Source: "concept:hooks", Kind: "APPEARS_IN", Target: "chunk-1", Strength: 1, EvidenceCount: 1})

	if err := s.DeleteNode(ctx, "chunk-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok, _ := s.GetNode(ctx, "chunk-1"); ok {
		t.Error("expected chunk-1 node to be removed")
	}
	docNeighbors, _ := s.Neighbors(ctx, "doc-1", "APPEARS_IN")
	if len(docNeighbors) != 0 {
		t.Errorf("expected doc-1's APPEARS_IN edge to chunk-1 to be gone, got %v", docNeighbors)
	}
	conceptNeighbors, _ := s.Neighbors(ctx, "concept:hooks", "APPEARS_IN")
	if len(conceptNeighbors) != 0 {
		t.Errorf("expected concept:hooks's APPEARS_IN edge to chunk-1 to be gone, got %v", conceptNeighbors)
	}

	if err := s.DeleteNode(ctx, "missing-node"); err != nil {
		t.Errorf("expected deleting a missing node to be a no-op, got %v", err)
	}
}
