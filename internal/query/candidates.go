package query

import (
	"context"
	"time"

	"ptolemies/internal/model"
	"ptolemies/internal/store/graph"
	"ptolemies/internal/store/vector"
)

// graphHit is a candidate discovered via traversal, carrying the depth at
// which it was reached so fuse() can compute a decayed contribution.
type graphHit struct {
	chunkID string
	depth   int
}

// subDeadlineFraction bounds the concurrent sub-operations' deadline
// below the parent query's, so a slow sub-operation is cancelled with
// room left for the parent to still assemble a partial response. All
// sub-operations share one sub-context at this fraction of the remaining
// time; there is no separate per-sub-operation deadline or weight.
const subDeadlineFraction = 0.85

// dispatch runs the sub-operations named by plan.Mode concurrently via a
// goroutine+buffered-channel fan-out, and joins them synchronously.
// deadlineHit reports whether any sub-operation's context expired before
// it finished.
func (e *Engine) dispatch(ctx context.Context, plan Plan) (vecHits []vector.Result, gHits []graphHit, deadlineHit bool) {
	runVector := plan.Mode == ModeSemanticOnly || plan.Mode == ModeHybridBalanced || plan.Mode == ModeConceptExpansion
	runGraph := plan.Mode == ModeGraphOnly || plan.Mode == ModeHybridBalanced || plan.Mode == ModeConceptExpansion

	subCtx, cancel := subDeadline(ctx)
	defer cancel()

	type vecOut struct {
		hits []vector.Result
		err  error
	}
	type graphOut struct {
		hits []graphHit
		err  error
	}

	var vecCh chan vecOut
	var graphCh chan graphOut

	if runVector {
		vecCh = make(chan vecOut, 1)
		go func() {
			hits, err := e.vectorCandidates(subCtx, plan)
			vecCh <- vecOut{hits: hits, err: err}
		}()
	}
	if runGraph {
		graphCh = make(chan graphOut, 1)
		go func() {
			hits, err := e.graphCandidates(subCtx, plan)
			graphCh <- graphOut{hits: hits, err: err}
		}()
	}

	if runVector {
		out := <-vecCh
		vecHits = out.hits
	}
	if runGraph {
		out := <-graphCh
		gHits = out.hits
	}
	deadlineHit = subCtx.Err() != nil

	if plan.Mode == ModeConceptExpansion {
		expanded := e.expandConcepts(subCtx, plan, gHits)
		if len(expanded) > 0 {
			more, err := e.vectorCandidates(subCtx, plan.withTopicFilter(expanded))
			if err == nil {
				vecHits = mergeVectorHits(vecHits, more)
			}
		}
	}
	return vecHits, gHits, deadlineHit
}

func subDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(float64(remaining)*subDeadlineFraction))
}

func (e *Engine) vectorCandidates(ctx context.Context, plan Plan) ([]vector.Result, error) {
	vec, err := e.embedder.EmbedBatch(ctx, []string{plan.Text})
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, nil
	}
	return e.vectors.SimilaritySearch(ctx, vec[0], plan.VecK, plan.Filters, e.threshold)
}

// graphCandidates traverses from every anchor up to plan.MaxDepth
// following the relationship kinds named in §4.8 (DOCUMENTS,
// CONTAINS_CONCEPT, RELATED_TO), then resolves the shortest path from
// each anchor to every discovered Chunk node to recover its depth for the
// fusion stage's decay-based contribution.
func (e *Engine) graphCandidates(ctx context.Context, plan Plan) ([]graphHit, error) {
	// §4.8 names DOCUMENTS, CONTAINS_CONCEPT, and RELATED_TO for this
	// traversal; APPEARS_IN is included too because the ingestion
	// orchestrator (internal/ingest) stores Document->Chunk and
	// Concept->Chunk edges under that kind, and "project to
	// documents/chunks" requires following them to actually reach a
	// Chunk node from a Framework or Concept anchor.
	kinds := []string{string(model.RelDocuments), string(model.RelContainsConcept), string(model.RelRelatedTo), string(model.RelAppearsIn)}
	best := map[string]int{}

	for _, anchor := range plan.Anchors {
		hops, err := e.graphs.Traverse(ctx, anchor, kinds, plan.MaxDepth)
		if err != nil {
			continue
		}
		for _, hop := range hops {
			if hop.NodeID == anchor {
				continue
			}
			path, err := e.graphs.ShortestPath(ctx, anchor, hop.NodeID, kinds, plan.MaxDepth)
			if err != nil {
				continue
			}
			depth := len(path) - 1
			if depth <= 0 {
				continue
			}
			if cur, ok := best[hop.NodeID]; !ok || depth < cur {
				best[hop.NodeID] = depth
			}
		}
	}

	hits := make([]graphHit, 0, len(best))
	for id, depth := range best {
		node, ok, err := e.graphs.GetNode(ctx, id)
		if err != nil || !ok {
			continue
		}
		if !hasLabel(node, "Chunk") {
			continue
		}
		hits = append(hits, graphHit{chunkID: id, depth: depth})
	}
	return hits, nil
}

// expandConcepts performs CONCEPT_EXPANSION's extra hop: from every
// Chunk reached via the graph, follow CONTAINS_CONCEPT one more step to
// collect concept topic names for an augmented vector re-search filter.
func (e *Engine) expandConcepts(ctx context.Context, plan Plan, hits []graphHit) []string {
	seen := map[string]bool{}
	var topics []string
	for _, h := range hits {
		neighbors, err := e.graphs.Neighbors(ctx, h.chunkID, string(model.RelContainsConcept))
		if err != nil {
			continue
		}
		for _, n := range neighbors {
			node, ok, err := e.graphs.GetNode(ctx, n)
			if err != nil || !ok {
				continue
			}
			name, _ := node.Props["canonical_name"].(string)
			if name != "" && !seen[name] {
				seen[name] = true
				topics = append(topics, name)
			}
		}
	}
	return topics
}

func hasLabel(n graph.Node, label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

func (p Plan) withTopicFilter(topics []string) Plan {
	if len(topics) == 0 {
		return p
	}
	cp := Plan{Text: p.Text, Mode: p.Mode, K: p.K, VecK: p.VecK, Weights: p.Weights, Anchors: p.Anchors, MaxDepth: p.MaxDepth}
	cp.Filters = make(map[string]string, len(p.Filters)+1)
	for k, v := range p.Filters {
		cp.Filters[k] = v
	}
	cp.Filters["topic"] = topics[0]
	return cp
}

func mergeVectorHits(base, more []vector.Result) []vector.Result {
	seen := make(map[string]bool, len(base))
	for _, r := range base {
		seen[r.ChunkID] = true
	}
	out := append([]vector.Result{}, base...)
	for _, r := range more {
		if !seen[r.ChunkID] {
			out = append(out, r)
			seen[r.ChunkID] = true
		}
	}
	return out
}
