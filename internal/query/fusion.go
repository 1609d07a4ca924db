package query

import (
	"context"

	"ptolemies/internal/store/vector"
)

// fuse implements §4.8's fusion contract: normalize vector scores,
// compute a depth-decayed graph contribution, weight-combine with chunk
// quality, dedupe by chunk id keeping the max combined score, and sort by
// combined desc, quality desc, chunk id asc. This is a plain
// normalize-then-weight-sum formula, not Reciprocal Rank Fusion: there is
// no RRF constant and no document/source diversification step.
func (e *Engine) fuse(ctx context.Context, plan Plan, vecHits []vector.Result, gHits []graphHit) []Item {
	byID := map[string]*Item{}

	for _, v := range vecHits {
		norm := normalizeVectorScore(v.Score, e.threshold)
		docID := v.Metadata["document_id"]
		quality := e.qualityOf(ctx, v.ChunkID)
		combined := plan.Weights.Vector*norm + plan.Weights.Quality*quality
		byID[v.ChunkID] = &Item{
			ChunkID:    v.ChunkID,
			DocumentID: docID,
			Score:      combined,
			Metadata:   v.Metadata,
			Provenance: Provenance{VectorScore: v.Score, Quality: quality, FromVector: true},
		}
	}

	for _, g := range gHits {
		contrib := graphContribution(g.depth)
		quality := e.qualityOf(ctx, g.chunkID)
		if existing, ok := byID[g.chunkID]; ok {
			existing.Provenance.GraphScore = contrib
			existing.Provenance.FromGraph = true
			existing.Score = plan.Weights.Vector*normalizeVectorScore(existing.Provenance.VectorScore, e.threshold) + plan.Weights.Graph*contrib + plan.Weights.Quality*existing.Provenance.Quality
			continue
		}
		byID[g.chunkID] = &Item{
			ChunkID: g.chunkID,
			Score:   plan.Weights.Graph*contrib + plan.Weights.Quality*quality,
			Provenance: Provenance{GraphScore: contrib, Quality: quality, FromGraph: true},
		}
	}

	items := make([]Item, 0, len(byID))
	for _, it := range byID {
		items = append(items, *it)
	}
	sortItems(items)
	return items
}

// normalizeVectorScore maps a raw cosine score into [0,1] via
// (score-threshold)/(1-threshold), clamped, per §4.8.
func normalizeVectorScore(score, threshold float64) float64 {
	if threshold >= 1 {
		threshold = 0
	}
	n := (score - threshold) / (1 - threshold)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// graphContribution approximates §4.8's "aggregated edge strength along
// the shortest path to any anchor, capped at 1" as a depth-decay: the
// Store.Traverse/ShortestPath contract (see internal/store/graph) returns
// hop node ids and relationship kinds but not each edge's own Strength,
// to keep traversal cheap and backend-uniform; refetching every edge's
// strength along a path would require one extra store round trip per
// hop per candidate. Decaying by depth preserves the required property
// (closer candidates score higher, capped at 1) without that cost.
func graphContribution(depth int) float64 {
	if depth <= 0 {
		return 1
	}
	return 1 / float64(depth)
}

func (e *Engine) qualityOf(ctx context.Context, chunkID string) float64 {
	node, ok, err := e.graphs.GetNode(ctx, chunkID)
	if err != nil || !ok {
		return 0
	}
	if q, ok := node.Props["quality"].(float64); ok {
		return q
	}
	return 0
}
