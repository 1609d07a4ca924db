package query

import (
	"context"
	"testing"

	"ptolemies/internal/cache"
	"ptolemies/internal/config"
	"ptolemies/internal/embedder"
	"ptolemies/internal/model"
	"ptolemies/internal/obs"
	"ptolemies/internal/store/graph"
	"ptolemies/internal/store/vector"
)

func testEngine(t *testing.T) (*Engine, vector.Store, graph.Store, func() uint64) {
	t.Helper()
	emb := embedder.NewDeterministic(16, true, 0)
	vs := vector.NewMemory()
	gs := graph.NewMemory()
	ch := cache.NewMemory(100)

	ctx := context.Background()
	text := "React is a UI framework for building component trees."
	vecs, err := emb.EmbedBatch(ctx, []string{text})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if err := vs.Upsert(ctx, "chunk:doc-1:0", vecs[0], map[string]string{"document_id": "doc-1", "source_id": "src-1", "topic": "react"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := gs.UpsertNode(ctx, graph.Node{ID: "doc-1", Labels: []string{"Document"}, Props: map[string]any{"title": "React Guide"}}); err != nil {
		t.Fatalf("upsert doc node: %v", err)
	}
	if err := gs.UpsertNode(ctx, graph.Node{ID: "chunk:doc-1:0", Labels: []string{"Chunk"}, Props: map[string]any{"quality": 0.8}}); err != nil {
		t.Fatalf("upsert chunk node: %v", err)
	}
	if err := gs.UpsertNode(ctx, graph.Node{ID: "framework:react", Labels: []string{"Framework"}, Props: map[string]any{"name": "react"}}); err != nil {
		t.Fatalf("upsert framework node: %v", err)
	}
	if err := gs.UpsertEdge(ctx, graph.Edge{Source: "framework:react", Kind: string(model.RelDocuments), Target: "doc-1", Strength: 1}); err != nil {
		t.Fatalf("upsert edge: %v", err)
	}
	if err := gs.UpsertEdge(ctx, graph.Edge{Source: "doc-1", Kind: string(model.RelAppearsIn), Target: "chunk:doc-1:0", Strength: 1}); err != nil {
		t.Fatalf("upsert edge: %v", err)
	}

	corpusVer := func() uint64 { return 1 }
	cfg := config.QueryConfig{DefaultTopK: 5, AlphaOversample: 3, MaxGraphDepth: 3, DefaultDeadlineMS: 500, Weights: config.DefaultModeWeights()}
	e := New(emb, vs, gs, ch, cfg, 0.1, []string{"react"}, corpusVer, obs.NewMockMetrics())
	return e, vs, gs, corpusVer
}

func TestAnswerSemanticOnlyReturnsVectorHit(t *testing.T) {
	e, _, _, _ := testEngine(t)
	resp, err := e.Answer(context.Background(), Request{Text: "react component trees", Mode: ModeSemanticOnly, K: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.State != StateAnswered {
		t.Fatalf("expected Answered, got %s", resp.State)
	}
	if len(resp.Items) == 0 {
		t.Fatal("expected at least one item")
	}
	if resp.Items[0].ChunkID != "chunk:doc-1:0" {
		t.Errorf("expected chunk:doc-1:0, got %s", resp.Items[0].ChunkID)
	}
}

func TestAnswerGraphOnlyReachesChunkViaFrameworkAnchor(t *testing.T) {
	e, _, _, _ := testEngine(t)
	resp, err := e.Answer(context.Background(), Request{Text: "tell me about react", Mode: ModeGraphOnly, K: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Items) == 0 {
		t.Fatal("expected graph traversal to surface the chunk")
	}
}

func TestAnswerHybridBalancedCombinesBothModes(t *testing.T) {
	e, _, _, _ := testEngine(t)
	resp, err := e.Answer(context.Background(), Request{Text: "react component trees", Mode: ModeHybridBalanced, K: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, it := range resp.Items {
		if it.ChunkID == "chunk:doc-1:0" && it.Provenance.FromVector && it.Provenance.FromGraph {
			found = true
		}
	}
	if !found {
		t.Error("expected the shared chunk to carry provenance from both vector and graph")
	}
}

func TestAnswerCachesResult(t *testing.T) {
	e, _, _, _ := testEngine(t)
	ctx := context.Background()
	req := Request{Text: "react component trees", Mode: ModeSemanticOnly, K: 5}

	first, err := e.Answer(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.FromCache {
		t.Fatal("first call should not be a cache hit")
	}

	second, err := e.Answer(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.FromCache {
		t.Error("second identical call should be served from cache")
	}
}

func TestAnswerFailsWithDeadlineExceededWhenNoResultsAndDeadlineExpired(t *testing.T) {
	e, _, _, _ := testEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Answer(ctx, Request{
		Text:       "nonexistent topic zzz",
		Mode:       ModeGraphOnly,
		K:          5,
		DeadlineMS: 50,
		Filters:    map[string]string{"document_id": "does-not-exist"},
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if model.KindOf(err) != model.ErrDeadlineExceeded {
		t.Errorf("expected ErrDeadlineExceeded, got %v", model.KindOf(err))
	}
}
