// Package query implements C8: the hybrid query engine that fuses vector
// search, graph traversal, and a result cache within a deadline. A request
// is planned, dispatched across a goroutine+channel fan-out of vector and
// graph sub-operations bounded by a sub-deadline, fused into ranked items,
// and cached, following a four-mode planner (semantic-only, graph-only,
// hybrid-balanced, concept-expansion) over vector, graph, and quality
// contributions.
package query

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"ptolemies/internal/cache"
	"ptolemies/internal/config"
	"ptolemies/internal/embedder"
	"ptolemies/internal/logging"
	"ptolemies/internal/model"
	"ptolemies/internal/obs"
	"ptolemies/internal/store/graph"
	"ptolemies/internal/store/vector"
)

// Mode selects which sub-operations the planner dispatches, per §4.8.
type Mode string

const (
	ModeSemanticOnly     Mode = "SEMANTIC_ONLY"
	ModeGraphOnly        Mode = "GRAPH_ONLY"
	ModeHybridBalanced   Mode = "HYBRID_BALANCED"
	ModeConceptExpansion Mode = "CONCEPT_EXPANSION"
)

// State is the query's position in §4.8's state machine: Planned ->
// Dispatched -> Fusing -> Answered | Failed | Partial.
type State string

const (
	StatePlanned    State = "Planned"
	StateDispatched State = "Dispatched"
	StateFusing     State = "Fusing"
	StateAnswered   State = "Answered"
	StateFailed     State = "Failed"
	StatePartial    State = "Partial"
)

// Request is a single incoming query.
type Request struct {
	Text       string
	Filters    vector.Filter
	K          int
	Mode       Mode
	DeadlineMS int
}

// Provenance records which sub-operations contributed to an item and
// their raw (pre-fusion) scores.
type Provenance struct {
	VectorScore  float64
	GraphScore   float64
	Quality      float64
	FromVector   bool
	FromGraph    bool
}

// Item is one fused, ranked result.
type Item struct {
	ChunkID     string
	DocumentID  string
	Score       float64
	Provenance  Provenance
	Metadata    map[string]string
}

// Response is the answer to a Request.
type Response struct {
	State     State
	Items     []Item
	Partial   bool
	FromCache bool
}

// Engine answers Requests by composing C1 (embed), C3 (vector search), C4
// (graph traversal), and C2 (cache).
type Engine struct {
	embedder embedder.Embedder
	vectors  vector.Store
	graphs   graph.Store
	cache    cache.Cache
	metrics  obs.Metrics
	logger   zerolog.Logger

	cfg        config.QueryConfig
	threshold  float64
	frameworks []string
	corpusVer  func() uint64
}

// New constructs an Engine. corpusVersion, when non-nil, is consulted on
// every cache fingerprint so ingestion commits naturally invalidate
// stale fingerprints without an explicit cache flush.
func New(e embedder.Embedder, vs vector.Store, gs graph.Store, ch cache.Cache, qcfg config.QueryConfig, vectorThreshold float64, frameworks []string, corpusVersion func() uint64, metrics obs.Metrics) *Engine {
	if qcfg.DefaultTopK <= 0 {
		qcfg.DefaultTopK = 10
	}
	if qcfg.AlphaOversample <= 0 {
		qcfg.AlphaOversample = 3
	}
	if qcfg.MaxGraphDepth <= 0 {
		qcfg.MaxGraphDepth = 3
	}
	if qcfg.DefaultDeadlineMS <= 0 {
		qcfg.DefaultDeadlineMS = 200
	}
	if qcfg.Weights == nil {
		qcfg.Weights = config.DefaultModeWeights()
	}
	if corpusVersion == nil {
		corpusVersion = func() uint64 { return 0 }
	}
	return &Engine{
		embedder:   e,
		vectors:    vs,
		graphs:     gs,
		cache:      ch,
		metrics:    metrics,
		logger:     logging.Named("query"),
		cfg:        qcfg,
		threshold:  vectorThreshold,
		frameworks: frameworks,
		corpusVer:  corpusVersion,
	}
}

// Answer runs the full planner -> dispatch -> fuse -> cache pipeline of
// §4.8. It never returns an error for a partially-succeeded deadline; it
// instead sets Response.Partial and State accordingly. It only returns an
// error when the overall deadline expires before any sub-operation
// produced results, per §4.8's DeadlineExceeded policy.
func (e *Engine) Answer(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	if req.K <= 0 {
		req.K = e.cfg.DefaultTopK
	}
	if req.Mode == "" {
		req.Mode = ModeHybridBalanced
	}
	deadlineMS := req.DeadlineMS
	if deadlineMS <= 0 {
		deadlineMS = e.cfg.DefaultDeadlineMS
	}

	plan := e.buildPlan(req)

	deadline := time.Duration(deadlineMS) * time.Millisecond
	qctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	fingerprint := fingerprintFor(plan, e.corpusVer())
	if e.cache != nil {
		if raw, ok, _ := e.cache.Get(qctx, fingerprint); ok {
			if resp, ok := decodeResponse(raw); ok {
				resp.FromCache = true
				e.metrics.IncCounter("query_cache_hit_total", map[string]string{"mode": string(req.Mode)})
				return resp, nil
			}
		}
	}
	e.metrics.IncCounter("query_cache_miss_total", map[string]string{"mode": string(req.Mode)})

	e.logger.Debug().Str("mode", string(req.Mode)).Str("text", req.Text).Msg("query planned")

	vecCandidates, graphCandidates, deadlineHit := e.dispatch(qctx, plan)

	if len(vecCandidates) == 0 && len(graphCandidates) == 0 {
		if deadlineHit {
			e.metrics.IncCounter("query_failed_total", map[string]string{"reason": "deadline_exceeded"})
			return Response{State: StateFailed}, model.NewError(model.ErrDeadlineExceeded, "query deadline expired before any results", nil)
		}
	}

	items := e.fuse(qctx, plan, vecCandidates, graphCandidates)
	if len(items) > req.K {
		items = items[:req.K]
	}

	resp := Response{Items: items}
	if deadlineHit {
		resp.Partial = true
		resp.State = StatePartial
	} else {
		resp.State = StateAnswered
	}

	if !resp.Partial && e.cache != nil {
		if raw, ok := encodeResponse(resp); ok {
			ttl := time.Duration(e.cfg.DefaultDeadlineMS) * time.Millisecond * 50
			_ = e.cache.Set(ctx, fingerprint, raw, ttl)
		}
	}

	e.metrics.ObserveHistogram("query_duration_seconds", time.Since(start).Seconds(), map[string]string{
		"mode":  string(req.Mode),
		"state": string(resp.State),
	})
	return resp, nil
}

func sortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if items[i].Provenance.Quality != items[j].Provenance.Quality {
			return items[i].Provenance.Quality > items[j].Provenance.Quality
		}
		return items[i].ChunkID < items[j].ChunkID
	})
}
