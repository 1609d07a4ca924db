// Package ingest implements C7: the orchestrator that composes the
// crawler, chunker, embedder, and dual-store knowledge layer into a single
// per-document ingestion pipeline with idempotency, cross-reference
// maintenance, and isolated per-document failure. Each stage is timed and
// instrumented; a raw-hash check skips unchanged documents, and a
// changed-hash reingest rolls stale chunks out of both stores by ordinal
// range.
package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ptolemies/internal/cache"
	"ptolemies/internal/chunker"
	"ptolemies/internal/embedder"
	"ptolemies/internal/logging"
	"ptolemies/internal/model"
	"ptolemies/internal/obs"
	"ptolemies/internal/retry"
	"ptolemies/internal/store/graph"
	"ptolemies/internal/store/vector"
)

// Outcome classifies how a single document ingestion concluded.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeCommitted Outcome = "committed"
	OutcomeFailed    Outcome = "failed"
)

// Result reports the outcome of ingesting a single document.
type Result struct {
	DocumentID    string
	Outcome       Outcome
	ChunkIDs      []string
	CorpusVersion uint64
	Err           error
}

// Progress is emitted on the orchestrator's progress channel as each
// document finishes, so a caller driving a batch crawl can report status
// without blocking on the whole run.
type Progress struct {
	DocumentID string
	Outcome    Outcome
	NumChunks  int
	Err        error
}

// Orchestrator composes C6's output through C5, C1, C3, and C4.
type Orchestrator struct {
	chunker  *chunker.Chunker
	embedder embedder.Embedder
	vectors  vector.Store
	graphs   graph.Store
	cache    cache.Cache
	metrics  obs.Metrics
	logger   zerolog.Logger

	retryOpts retry.Options

	mu        sync.Mutex
	docLocks  map[string]*sync.Mutex
	corpusVer uint64
}

// New constructs an Orchestrator over the given collaborators. cache may
// be nil when cache invalidation on commit is not desired (e.g. a
// one-shot backfill tool).
func New(c *chunker.Chunker, e embedder.Embedder, vs vector.Store, gs graph.Store, ch cache.Cache, metrics obs.Metrics) *Orchestrator {
	return &Orchestrator{
		chunker:   c,
		embedder:  e,
		vectors:   vs,
		graphs:    gs,
		cache:     ch,
		metrics:   metrics,
		logger:    logging.Named("ingest"),
		retryOpts: retry.DefaultOptions(),
		docLocks:  make(map[string]*sync.Mutex),
	}
}

// CorpusVersion returns the current corpus version, bumped on every
// successful commit.
func (o *Orchestrator) CorpusVersion() uint64 {
	return atomic.LoadUint64(&o.corpusVer)
}

// IngestDocument runs the full per-document contract of §4.7: idempotency
// check, chunk+score, embed, upsert to C3, upsert to C4, delete stale
// chunks, and commit a corpus-version bump. Per-document failure is
// isolated: IngestDocument never panics and always returns a Result, even
// on failure, so a batch driver can continue past one bad document.
func (o *Orchestrator) IngestDocument(ctx context.Context, doc *model.Document) Result {
	lock := o.lockFor(doc.ID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	res := Result{DocumentID: doc.ID}
	defer func() {
		o.metrics.ObserveHistogram("ingest_document_duration_seconds", time.Since(start).Seconds(), map[string]string{
			"outcome": string(res.Outcome),
		})
	}()

	existing, hasExisting, err := o.graphs.GetNode(ctx, doc.ID)
	if err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		o.metrics.IncCounter("ingest_document_failed_total", nil)
		return res
	}
	if hasExisting {
		if prevHash, ok := existing.Props["doc_hash"].(string); ok && prevHash == doc.RawHash {
			res.Outcome = OutcomeSkipped
			o.metrics.IncCounter("ingest_document_skipped_total", nil)
			return res
		}
	}

	chunks, err := o.chunker.Chunk(doc)
	if err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		o.metrics.IncCounter("ingest_document_failed_total", nil)
		return res
	}

	newChunkIDs, err := o.indexAndLink(ctx, doc, chunks)
	if err != nil {
		o.rollback(ctx, doc.ID, newChunkIDs)
		res.Outcome, res.Err = OutcomeFailed, err
		o.metrics.IncCounter("ingest_document_failed_total", nil)
		return res
	}

	staleIDs, err := o.staleChunkIDs(ctx, doc.ID, newChunkIDs)
	if err == nil {
		for _, id := range staleIDs {
			_ = o.vectors.Delete(ctx, id)
			if err := o.graphs.DeleteNode(ctx, id); err != nil {
				o.logger.Warn().Str("doc_id", doc.ID).Str("chunk_id", id).Err(err).Msg("stale chunk node delete failed")
			}
		}
	}

	ver := atomic.AddUint64(&o.corpusVer, 1)
	if o.cache != nil {
		_ = o.cache.InvalidatePrefix(ctx, "query:")
	}

	res.Outcome = OutcomeCommitted
	res.ChunkIDs = newChunkIDs
	res.CorpusVersion = ver
	o.metrics.IncCounter("ingest_document_committed_total", nil)
	o.logger.Info().Str("doc_id", doc.ID).Int("num_chunks", len(newChunkIDs)).Uint64("corpus_version", ver).Msg("document committed")
	return res
}

// indexAndLink performs steps 2-3 of §4.7: embed and upsert chunks to the
// vector store, then upsert the Document/Chunk graph and their
// CONTAINS_CONCEPT/APPEARS_IN/DOCUMENTS edges. It returns the chunk ids
// written so far even on error, so the caller can roll them back.
func (o *Orchestrator) indexAndLink(ctx context.Context, doc *model.Document, chunks []*model.Chunk) ([]string, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var vecs [][]float32
	err := retry.Do(ctx, o.retryOpts, func(ctx context.Context) error {
		var e error
		vecs, e = o.embedder.EmbedBatch(ctx, texts)
		return e
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(chunks))
	for i, c := range chunks {
		md := map[string]string{
			"source_id":    doc.SourceID,
			"document_id":  doc.ID,
			"framework_id": c.FrameworkID,
		}
		if len(c.Topics) > 0 {
			md["topic"] = c.Topics[0]
		}
		upsertErr := retry.Do(ctx, o.retryOpts, func(ctx context.Context) error {
			return o.vectors.Upsert(ctx, c.ID, vecs[i], md)
		})
		if upsertErr != nil {
			return ids, upsertErr
		}
		ids = append(ids, c.ID)
	}

	if err := o.upsertGraph(ctx, doc, chunks); err != nil {
		return ids, err
	}
	return ids, nil
}

// upsertGraph performs step 3's graph half: each Chunk node plus its
// CONTAINS_CONCEPT/APPEARS_IN edges for extracted topics, a DOCUMENTS edge
// from the source's declared framework, and finally the Document node.
// The Document node carries doc_hash, so it is written last: a failure in
// an earlier step leaves the previous hash in place and the next attempt
// is not skipped as unchanged.
func (o *Orchestrator) upsertGraph(ctx context.Context, doc *model.Document, chunks []*model.Chunk) error {
	for _, c := range chunks {
		chunkNode := graph.Node{
			ID:     c.ID,
			Labels: []string{"Chunk"},
			Props: map[string]any{
				"document_id": doc.ID,
				"ordinal":     c.Ordinal,
				"quality":     c.Quality,
			},
		}
		if err := retry.Do(ctx, o.retryOpts, func(ctx context.Context) error { return o.graphs.UpsertNode(ctx, chunkNode) }); err != nil {
			return err
		}
		docEdge := graph.Edge{Source: doc.ID, Kind: string(model.RelAppearsIn), Target: c.ID, Strength: 1, EvidenceCount: 1}
		if err := retry.Do(ctx, o.retryOpts, func(ctx context.Context) error { return o.graphs.UpsertEdge(ctx, docEdge) }); err != nil {
			return err
		}
		for _, topic := range c.Topics {
			conceptID := "concept:" + topic
			conceptNode := graph.Node{ID: conceptID, Labels: []string{"Concept"}, Props: map[string]any{"canonical_name": topic, "category": "topic"}}
			if err := retry.Do(ctx, o.retryOpts, func(ctx context.Context) error { return o.graphs.UpsertNode(ctx, conceptNode) }); err != nil {
				return err
			}
			edge := graph.Edge{Source: c.ID, Kind: string(model.RelContainsConcept), Target: conceptID, Strength: 1, EvidenceCount: 1}
			if err := retry.Do(ctx, o.retryOpts, func(ctx context.Context) error { return o.graphs.UpsertEdge(ctx, edge) }); err != nil {
				return err
			}
			// Reverse edge so a query-time concept anchor can reach the
			// chunk without a second store round trip in the opposite
			// direction (§4.8's GRAPH_ONLY mode starts from anchors, not
			// from chunks).
			reverse := graph.Edge{Source: conceptID, Kind: string(model.RelAppearsIn), Target: c.ID, Strength: 1, EvidenceCount: 1}
			if err := retry.Do(ctx, o.retryOpts, func(ctx context.Context) error { return o.graphs.UpsertEdge(ctx, reverse) }); err != nil {
				return err
			}
		}
	}

	if doc.SourceID != "" {
		frameworkNode := graph.Node{ID: "framework:" + doc.SourceID, Labels: []string{"Framework"}, Props: map[string]any{"name": doc.SourceID}}
		if err := retry.Do(ctx, o.retryOpts, func(ctx context.Context) error { return o.graphs.UpsertNode(ctx, frameworkNode) }); err != nil {
			return err
		}
		edge := graph.Edge{Source: frameworkNode.ID, Kind: string(model.RelDocuments), Target: doc.ID, Strength: 1, EvidenceCount: 1}
		if err := retry.Do(ctx, o.retryOpts, func(ctx context.Context) error { return o.graphs.UpsertEdge(ctx, edge) }); err != nil {
			return err
		}
	}

	docNode := graph.Node{
		ID:     doc.ID,
		Labels: []string{"Document"},
		Props: map[string]any{
			"source_id": doc.SourceID,
			"url":       doc.URL,
			"title":     doc.Title,
			"doc_hash":  doc.RawHash,
		},
	}
	return retry.Do(ctx, o.retryOpts, func(ctx context.Context) error { return o.graphs.UpsertNode(ctx, docNode) })
}

// staleChunkIDs returns chunk ids previously linked to doc that are absent
// from the new chunk set, so step 4 of §4.7 can delete them from both the
// vector store and the graph: their Chunk nodes and every edge touching
// them (APPEARS_IN from the document, CONTAINS_CONCEPT and the reverse
// APPEARS_IN to any concept) are removed via graph.Store.DeleteNode.
func (o *Orchestrator) staleChunkIDs(ctx context.Context, docID string, newIDs []string) ([]string, error) {
	hops, err := o.graphs.Traverse(ctx, docID, []string{string(model.RelAppearsIn)}, 1)
	if err != nil {
		return nil, err
	}
	keep := make(map[string]bool, len(newIDs))
	for _, id := range newIDs {
		keep[id] = true
	}
	var stale []string
	for _, h := range hops {
		if h.NodeID == docID {
			continue
		}
		if !keep[h.NodeID] {
			stale = append(stale, h.NodeID)
		}
	}
	return stale, nil
}

// rollback undoes the vector-store half of a failed indexAndLink call, per
// §4.7's "partial success is not committed" policy: cross-store
// consistency is restored to the document's prior state by removing the
// vector rows written during this attempt. Graph writes are idempotent
// upserts scoped to this document's ids, so a subsequent successful
// ingestion attempt simply overwrites them.
func (o *Orchestrator) rollback(ctx context.Context, docID string, chunkIDs []string) {
	for _, id := range chunkIDs {
		if err := o.vectors.Delete(ctx, id); err != nil {
			o.logger.Warn().Str("doc_id", docID).Str("chunk_id", id).Err(err).Msg("rollback delete failed")
		}
	}
}

func (o *Orchestrator) lockFor(docID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.docLocks[docID]
	if !ok {
		l = &sync.Mutex{}
		o.docLocks[docID] = l
	}
	return l
}
