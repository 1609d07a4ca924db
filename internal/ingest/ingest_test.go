package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"ptolemies/internal/cache"
	"ptolemies/internal/chunker"
	"ptolemies/internal/config"
	"ptolemies/internal/embedder"
	"ptolemies/internal/model"
	"ptolemies/internal/obs"
	"ptolemies/internal/store/graph"
	"ptolemies/internal/store/vector"
)

func testOrchestrator() *Orchestrator {
	cfg := config.ChunkingConfig{MinTokens: 5, MaxTokens: 40, OverlapTokens: 2, MaxTopics: 4, Frameworks: []string{"React"}}
	return New(chunker.New(cfg), embedder.NewDeterministic(16, true, 0), vector.NewMemory(), graph.NewMemory(), cache.NewMemory(10), obs.NewMockMetrics())
}

func sampleDoc(id, hash string) *model.Document {
	return &model.Document{
		ID:          id,
		SourceID:    "src-1",
		URL:         "https://example.com/" + id,
		Title:       "Example",
		ContentType: "text/markdown",
		RawHash:     hash,
		FetchedAt:   time.Now(),
		Content:     "# Intro\n\nReact is a UI framework used for building component trees with hooks and state.\n\nIt pairs well with a build tool and a router for navigation.",
	}
}

func TestIngestDocumentCommitsNewDocument(t *testing.T) {
	o := testOrchestrator()
	res := o.IngestDocument(context.Background(), sampleDoc("doc-1", "hash-a"))
	if res.Outcome != OutcomeCommitted {
		t.Fatalf("expected committed, got %s (err=%v)", res.Outcome, res.Err)
	}
	if len(res.ChunkIDs) == 0 {
		t.Fatal("expected at least one chunk id")
	}
	if res.CorpusVersion != 1 {
		t.Errorf("expected corpus version 1, got %d", res.CorpusVersion)
	}
}

func TestIngestDocumentSkipsUnchangedHash(t *testing.T) {
	o := testOrchestrator()
	ctx := context.Background()
	doc := sampleDoc("doc-1", "hash-a")

	first := o.IngestDocument(ctx, doc)
	if first.Outcome != OutcomeCommitted {
		t.Fatalf("expected first ingest committed, got %s", first.Outcome)
	}

	second := o.IngestDocument(ctx, doc)
	if second.Outcome != OutcomeSkipped {
		t.Fatalf("expected skip on unchanged hash, got %s (err=%v)", second.Outcome, second.Err)
	}
	if o.CorpusVersion() != 1 {
		t.Errorf("expected corpus version to stay at 1 after skip, got %d", o.CorpusVersion())
	}
}

func TestIngestDocumentReingestsOnChangedHash(t *testing.T) {
	o := testOrchestrator()
	ctx := context.Background()

	first := o.IngestDocument(ctx, sampleDoc("doc-1", "hash-a"))
	if first.Outcome != OutcomeCommitted {
		t.Fatalf("expected first ingest committed, got %s", first.Outcome)
	}

	changed := sampleDoc("doc-1", "hash-b")
	changed.Content += "\n\nAdditional paragraph describing routing and state management in more depth."
	second := o.IngestDocument(ctx, changed)
	if second.Outcome != OutcomeCommitted {
		t.Fatalf("expected reingest committed on changed hash, got %s (err=%v)", second.Outcome, second.Err)
	}
	if second.CorpusVersion <= first.CorpusVersion {
		t.Errorf("expected corpus version to advance, first=%d second=%d", first.CorpusVersion, second.CorpusVersion)
	}
}

func TestIngestDocumentRejectsEmptyContent(t *testing.T) {
	o := testOrchestrator()
	doc := sampleDoc("doc-empty", "hash-x")
	doc.Content = "   "
	res := o.IngestDocument(context.Background(), doc)
	if res.Outcome != OutcomeFailed {
		t.Fatalf("expected failed outcome for empty content, got %s", res.Outcome)
	}
	if model.KindOf(res.Err) != model.ErrExtractionEmpty {
		t.Errorf("expected ErrExtractionEmpty, got %v", model.KindOf(res.Err))
	}
}

func TestIngestDocumentIsolatesPerDocumentFailure(t *testing.T) {
	o := testOrchestrator()
	ctx := context.Background()

	bad := sampleDoc("doc-bad", "hash-1")
	bad.ContentType = "application/octet-stream"
	badRes := o.IngestDocument(ctx, bad)
	if badRes.Outcome != OutcomeFailed {
		t.Fatalf("expected bad document to fail, got %s", badRes.Outcome)
	}

	good := sampleDoc("doc-good", "hash-2")
	goodRes := o.IngestDocument(ctx, good)
	if goodRes.Outcome != OutcomeCommitted {
		t.Fatalf("expected good document to still commit after a prior failure, got %s (err=%v)", goodRes.Outcome, goodRes.Err)
	}
}

// TestIngestDocumentRemovesStaleChunksFromGraphAndVectorStore covers the
// chunk-count-shrink scenario: a reingest that produces fewer chunks than
// before must leave no trace of the dropped chunks in either store, not
// just the vector one.
func TestIngestDocumentRemovesStaleChunksFromGraphAndVectorStore(t *testing.T) {
	o := testOrchestrator()
	ctx := context.Background()

	paragraphs := []string{
		"React components and hooks let a team compose interactive user interfaces out of small reusable pieces with local state and side effects.",
		"The router handles client side navigation between screens and keeps the address bar synchronized with whatever view is currently on display.",
		"A build tool bundles modules, transpiles newer syntax, and serves a fast incremental rebuild loop during local development sessions.",
		"State management libraries centralize application data so unrelated components can read and update shared values without prop drilling everywhere.",
		"Testing utilities render components in isolation and simulate user interaction to catch regressions before they reach production traffic.",
	}

	full := sampleDoc("doc-shrink", "hash-a")
	full.Content = strings.Join(paragraphs, "\n\n")
	first := o.IngestDocument(ctx, full)
	if first.Outcome != OutcomeCommitted {
		t.Fatalf("expected first ingest committed, got %s (err=%v)", first.Outcome, first.Err)
	}
	if len(first.ChunkIDs) != 5 {
		t.Fatalf("expected 5 chunks from 5 paragraphs, got %d", len(first.ChunkIDs))
	}

	shrunk := sampleDoc("doc-shrink", "hash-b")
	shrunk.Content = strings.Join(paragraphs[:3], "\n\n")
	second := o.IngestDocument(ctx, shrunk)
	if second.Outcome != OutcomeCommitted {
		t.Fatalf("expected reingest committed, got %s (err=%v)", second.Outcome, second.Err)
	}
	if len(second.ChunkIDs) != 3 {
		t.Fatalf("expected 3 chunks after shrinking to 3 paragraphs, got %d", len(second.ChunkIDs))
	}

	kept := make(map[string]bool, len(second.ChunkIDs))
	for _, id := range second.ChunkIDs {
		kept[id] = true
	}
	stale := make([]string, 0, 2)
	for _, id := range first.ChunkIDs {
		if !kept[id] {
			stale = append(stale, id)
		}
	}
	if len(stale) != 2 {
		t.Fatalf("expected 2 stale chunk ids, got %d", len(stale))
	}

	for _, id := range stale {
		if _, ok, _ := o.graphs.GetNode(ctx, id); ok {
			t.Errorf("expected stale chunk node %s to be removed from the graph", id)
		}
	}

	hops, err := o.graphs.Traverse(ctx, "doc-shrink", []string{string(model.RelAppearsIn)}, 1)
	if err != nil {
		t.Fatalf("unexpected traverse error: %v", err)
	}
	remaining := 0
	for _, h := range hops {
		if h.NodeID == "doc-shrink" {
			continue
		}
		remaining++
		for _, id := range stale {
			if h.NodeID == id {
				t.Errorf("expected APPEARS_IN edge to stale chunk %s to be gone", id)
			}
		}
	}
	if remaining != 3 {
		t.Errorf("expected 3 live APPEARS_IN edges from the document, got %d", remaining)
	}

	vecs, err := o.embedder.EmbedBatch(ctx, []string{"probe"})
	if err != nil || len(vecs) == 0 {
		t.Fatalf("unexpected embed error: %v", err)
	}
	results, err := o.vectors.SimilaritySearch(ctx, vecs[0], 50, vector.Filter{"document_id": "doc-shrink"}, -1)
	if err != nil {
		t.Fatalf("unexpected search error: %v", err)
	}
	for _, r := range results {
		for _, id := range stale {
			if r.ChunkID == id {
				t.Errorf("expected stale chunk %s to be removed from the vector store", id)
			}
		}
	}
}
