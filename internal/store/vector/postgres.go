package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"ptolemies/internal/model"
)

// postgresStore is a pgvector-backed Store, for corpora too large for the
// in-memory backends.
type postgresStore struct {
	pool      *pgxpool.Pool
	table     string
	dimension int
	metric    string
}

// NewPostgres wires a pgvector-backed store. table defaults to
// "chunk_embeddings"; metric is one of "cosine" (default), "l2", "ip".
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, table string, dimension int, metric string) (Store, error) {
	if table == "" {
		table = "chunk_embeddings"
	}
	if metric == "" {
		metric = "cosine"
	}
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return nil, model.NewError(model.ErrStoreUnavailable, "enabling pgvector extension", err)
	}
	vecType := "vector"
	if dimension > 0 {
		vecType = fmt.Sprintf("vector(%d)", dimension)
	}
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  chunk_id TEXT PRIMARY KEY,
  embedding %s,
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb
);`, table, vecType)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return nil, model.NewError(model.ErrStoreUnavailable, "creating embeddings table", err)
	}
	return &postgresStore{pool: pool, table: table, dimension: dimension, metric: strings.ToLower(metric)}, nil
}

func (p *postgresStore) Upsert(ctx context.Context, chunkID string, vec []float32, metadata map[string]string) error {
	query := fmt.Sprintf(`
INSERT INTO %s (chunk_id, embedding, metadata) VALUES ($1, $2::vector, $3)
ON CONFLICT (chunk_id) DO UPDATE SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata`, p.table)
	_, err := p.pool.Exec(ctx, query, chunkID, vectorLiteral(vec), metadata)
	if err != nil {
		return model.NewError(model.ErrStoreUnavailable, "upserting embedding", err)
	}
	return nil
}

func (p *postgresStore) Delete(ctx context.Context, chunkID string) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE chunk_id = $1`, p.table), chunkID)
	if err != nil {
		return model.NewError(model.ErrStoreUnavailable, "deleting embedding", err)
	}
	return nil
}

// SimilaritySearch orders candidates by distance-operator proximity in an
// inner query, then filters to score > threshold and takes the top k in an
// outer query: the threshold cut has to happen before LIMIT, or a
// below-threshold row could occupy one of the k slots.
func (p *postgresStore) SimilaritySearch(ctx context.Context, vec []float32, k int, filter Filter, threshold float64) ([]Result, error) {
	if len(vec) == 0 {
		return nil, model.NewError(model.ErrInvalidQuery, "empty query vector", nil)
	}
	if k <= 0 {
		k = 10
	}
	op, scoreExpr := "<=>", "1 - (embedding <=> $1::vector)"
	switch p.metric {
	case "l2", "euclidean":
		op, scoreExpr = "<->", "-(embedding <-> $1::vector)"
	case "ip", "dot":
		op, scoreExpr = "<#>", "-(embedding <#> $1::vector)"
	}

	args := []any{vectorLiteral(vec)}
	where := ""
	if len(filter) > 0 {
		args = append(args, map[string]string(filter))
		where = fmt.Sprintf("WHERE metadata @> $%d", len(args))
	}
	inner := fmt.Sprintf(`SELECT chunk_id, %s AS score, metadata FROM %s %s ORDER BY embedding %s $1::vector`,
		scoreExpr, p.table, where, op)

	args = append(args, threshold)
	thresholdPos := len(args)
	args = append(args, k)
	kPos := len(args)
	query := fmt.Sprintf(`SELECT chunk_id, score, metadata FROM (%s) sub WHERE score > $%d ORDER BY score DESC LIMIT $%d`,
		inner, thresholdPos, kPos)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, model.NewError(model.ErrStoreUnavailable, "similarity search query", err)
	}
	defer rows.Close()

	out := make([]Result, 0, k)
	for rows.Next() {
		var r Result
		var md map[string]string
		if err := rows.Scan(&r.ChunkID, &r.Score, &md); err != nil {
			return nil, model.NewError(model.ErrStoreCorrupt, "scanning similarity row", err)
		}
		r.Metadata = md
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewError(model.ErrStoreUnavailable, "iterating similarity rows", err)
	}
	return out, nil
}

func (p *postgresStore) Close() error {
	p.pool.Close()
	return nil
}

func vectorLiteral(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", x)
	}
	b.WriteByte(']')
	return b.String()
}
