package graph

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"ptolemies/internal/model"
)

// postgresStore persists nodes/edges as JSONB rows and re-implements
// traversal/shortest-path/cycle-detection in Go over a bounded fan-out
// query per hop, rather than a recursive SQL CTE, so the bounded-depth
// and per-framework-scoping semantics stay identical to the memory
// backend.
type postgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (Store, error) {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS graph_nodes (
			id TEXT PRIMARY KEY,
			labels TEXT[] NOT NULL DEFAULT '{}',
			props JSONB NOT NULL DEFAULT '{}'::jsonb
		)`,
		`CREATE TABLE IF NOT EXISTS graph_edges (
			id BIGSERIAL PRIMARY KEY,
			source TEXT NOT NULL,
			kind TEXT NOT NULL,
			target TEXT NOT NULL,
			strength DOUBLE PRECISION NOT NULL DEFAULT 0,
			evidence_count INT NOT NULL DEFAULT 0,
			framework_id TEXT NOT NULL DEFAULT '',
			UNIQUE(source, kind, target)
		)`,
		`CREATE INDEX IF NOT EXISTS graph_edges_src_kind ON graph_edges(source, kind)`,
		`CREATE INDEX IF NOT EXISTS graph_edges_dst_kind ON graph_edges(target, kind)`,
	}
	for _, stmt := range ddl {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, model.NewError(model.ErrStoreUnavailable, "creating graph schema", err)
		}
	}
	return &postgresStore{pool: pool}, nil
}

func (p *postgresStore) UpsertNode(ctx context.Context, n Node) error {
	if n.Props == nil {
		n.Props = map[string]any{}
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO graph_nodes (id, labels, props) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET labels = EXCLUDED.labels, props = EXCLUDED.props`,
		n.ID, n.Labels, n.Props)
	if err != nil {
		return model.NewError(model.ErrStoreUnavailable, "upserting graph node", err)
	}
	return nil
}

// UpsertEdge merges into any existing edge between the same (source,
// kind, target) rather than overwriting it: strength takes GREATEST of
// the two (an edge only gets more confident, never less) and
// evidence_count accumulates by sum (per §4.5, repeated co-occurrence is
// additional evidence for the same relationship).
func (p *postgresStore) UpsertEdge(ctx context.Context, e Edge) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO graph_edges (source, kind, target, strength, evidence_count, framework_id)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (source, kind, target) DO UPDATE SET
  strength = GREATEST(graph_edges.strength, EXCLUDED.strength),
  evidence_count = graph_edges.evidence_count + EXCLUDED.evidence_count,
  framework_id = EXCLUDED.framework_id`,
		e.Source, e.Kind, e.Target, e.Strength, e.EvidenceCount, e.FrameworkID)
	if err != nil {
		return model.NewError(model.ErrStoreUnavailable, "upserting graph edge", err)
	}
	return nil
}

func (p *postgresStore) GetNode(ctx context.Context, id string) (Node, bool, error) {
	row := p.pool.QueryRow(ctx, `SELECT labels, props FROM graph_nodes WHERE id = $1`, id)
	var labels []string
	var props map[string]any
	if err := row.Scan(&labels, &props); err != nil {
		return Node{}, false, nil
	}
	return Node{ID: id, Labels: labels, Props: props}, true, nil
}

func (p *postgresStore) Neighbors(ctx context.Context, id, kind string) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT target FROM graph_edges WHERE source = $1 AND kind = $2 ORDER BY target`, id, kind)
	if err != nil {
		return nil, model.NewError(model.ErrStoreUnavailable, "querying neighbors", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var dst string
		if err := rows.Scan(&dst); err != nil {
			return nil, model.NewError(model.ErrStoreCorrupt, "scanning neighbor row", err)
		}
		out = append(out, dst)
	}
	return out, rows.Err()
}

func (p *postgresStore) fanOut(ctx context.Context, id string, kinds []string) ([]Edge, error) {
	query := `SELECT source, kind, target, strength, evidence_count, framework_id FROM graph_edges WHERE source = $1`
	args := []any{id}
	if len(kinds) > 0 {
		query += ` AND kind = ANY($2)`
		args = append(args, kinds)
	}
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, model.NewError(model.ErrStoreUnavailable, "fan-out query", err)
	}
	defer rows.Close()
	var out []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Source, &e.Kind, &e.Target, &e.Strength, &e.EvidenceCount, &e.FrameworkID); err != nil {
			return nil, model.NewError(model.ErrStoreCorrupt, "scanning edge row", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *postgresStore) Traverse(ctx context.Context, start string, kinds []string, maxDepth int) ([]PathHop, error) {
	if maxDepth < 0 {
		maxDepth = 0
	}
	visited := map[string]bool{start: true}
	hops := []PathHop{{NodeID: start}}
	frontier := []string{start}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			edges, err := p.fanOut(ctx, id, kinds)
			if err != nil {
				return nil, err
			}
			sort.Slice(edges, func(i, j int) bool { return edges[i].Target < edges[j].Target })
			for _, e := range edges {
				if visited[e.Target] {
					continue
				}
				visited[e.Target] = true
				hops = append(hops, PathHop{NodeID: e.Target, Kind: e.Kind})
				next = append(next, e.Target)
			}
		}
		frontier = next
	}
	return hops, nil
}

func (p *postgresStore) ShortestPath(ctx context.Context, from, to string, kinds []string, maxDepth int) ([]PathHop, error) {
	if from == to {
		return []PathHop{{NodeID: from}}, nil
	}
	type queued struct {
		id   string
		path []PathHop
	}
	visited := map[string]bool{from: true}
	queue := []queued{{id: from, path: []PathHop{{NodeID: from}}}}

	for depth := 0; depth < maxDepth && len(queue) > 0; depth++ {
		var nextQueue []queued
		for _, q := range queue {
			edges, err := p.fanOut(ctx, q.id, kinds)
			if err != nil {
				return nil, err
			}
			sort.Slice(edges, func(i, j int) bool { return edges[i].Target < edges[j].Target })
			for _, e := range edges {
				if visited[e.Target] {
					continue
				}
				visited[e.Target] = true
				path := append(append([]PathHop{}, q.path...), PathHop{NodeID: e.Target, Kind: e.Kind})
				if e.Target == to {
					return path, nil
				}
				nextQueue = append(nextQueue, queued{id: e.Target, path: path})
			}
		}
		queue = nextQueue
	}
	return nil, model.NewError(model.ErrNoPath, "no path found within max depth", nil)
}

func (p *postgresStore) WouldCreateCycle(ctx context.Context, frameworkID, src, dst string) (bool, error) {
	if src == dst {
		return true, nil
	}
	visited := map[string]bool{dst: true}
	frontier := []string{dst}

	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			edges, err := p.fanOut(ctx, id, []string{"DEPENDS_ON"})
			if err != nil {
				return false, err
			}
			for _, e := range edges {
				if e.FrameworkID != frameworkID {
					continue
				}
				if e.Target == src {
					return true, nil
				}
				if !visited[e.Target] {
					visited[e.Target] = true
					next = append(next, e.Target)
				}
			}
		}
		frontier = next
	}
	return false, nil
}

// DeleteNode removes id's node row and every edge row naming it as
// source or target.
func (p *postgresStore) DeleteNode(ctx context.Context, id string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM graph_edges WHERE source = $1 OR target = $1`, id); err != nil {
		return model.NewError(model.ErrStoreUnavailable, "deleting graph edges", err)
	}
	if _, err := p.pool.Exec(ctx, `DELETE FROM graph_nodes WHERE id = $1`, id); err != nil {
		return model.NewError(model.ErrStoreUnavailable, "deleting graph node", err)
	}
	return nil
}

func (p *postgresStore) Close() error {
	p.pool.Close()
	return nil
}
