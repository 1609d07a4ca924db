package vector

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"ptolemies/internal/model"
)

// originalIDField carries the caller's chunk ID in the point payload,
// since Qdrant point IDs must be UUIDs or unsigned integers.
const originalIDField = "_chunk_id"

// qdrantStore is a Qdrant-backed Store for corpora needing a managed,
// horizontally-scalable ANN index. Collection bootstrap derives a
// deterministic UUID from each chunk ID since Qdrant point IDs must be
// UUIDs or unsigned integers.
type qdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string
}

// NewQdrant dials dsn (e.g. "http://localhost:6334?api_key=...") and
// ensures the named collection exists with the given dimension/metric.
func NewQdrant(ctx context.Context, dsn, collection string, dimension int, metric string) (Store, error) {
	if collection == "" {
		return nil, model.NewError(model.ErrInvalidQuery, "qdrant collection name is required", nil)
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, model.NewError(model.ErrStoreUnavailable, "parsing qdrant dsn", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, model.NewError(model.ErrStoreUnavailable, "invalid qdrant port", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, model.NewError(model.ErrStoreUnavailable, "creating qdrant client", err)
	}
	q := &qdrantStore{client: client, collection: collection, dimension: dimension, metric: strings.ToLower(metric)}
	if err := q.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return q, nil
}

func (q *qdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return model.NewError(model.ErrStoreUnavailable, "checking qdrant collection", err)
	}
	if exists {
		return nil
	}
	var distance qdrant.Distance
	switch q.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	default:
		distance = qdrant.Distance_Cosine
	}
	if q.dimension <= 0 {
		return model.NewError(model.ErrInvalidQuery, "qdrant backend requires a positive dimension", nil)
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: distance,
		}),
	})
	if err != nil {
		return model.NewError(model.ErrStoreUnavailable, "creating qdrant collection", err)
	}
	return nil
}

func (q *qdrantStore) pointUUID(chunkID string) string {
	if _, err := uuid.Parse(chunkID); err == nil {
		return chunkID
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

func (q *qdrantStore) Upsert(ctx context.Context, chunkID string, vec []float32, metadata map[string]string) error {
	pointUUID := q.pointUUID(chunkID)
	payload := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		payload[k] = v
	}
	if pointUUID != chunkID {
		payload[originalIDField] = chunkID
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(pointUUID),
			Vectors: qdrant.NewVectorsDense(cp),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return model.NewError(model.ErrStoreUnavailable, "qdrant upsert", err)
	}
	return nil
}

func (q *qdrantStore) Delete(ctx context.Context, chunkID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(q.pointUUID(chunkID))),
	})
	if err != nil {
		return model.NewError(model.ErrStoreUnavailable, "qdrant delete", err)
	}
	return nil
}

func (q *qdrantStore) SimilaritySearch(ctx context.Context, vec []float32, k int, filter Filter, threshold float64) ([]Result, error) {
	if len(vec) == 0 {
		return nil, model.NewError(model.ErrInvalidQuery, "empty query vector", nil)
	}
	if k <= 0 {
		k = 10
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)

	var qf *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for key, val := range filter {
			must = append(must, qdrant.NewMatch(key, val))
		}
		qf = &qdrant.Filter{Must: must}
	}
	limit := uint64(k)
	scoreThreshold := float32(threshold)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(cp),
		Limit:          &limit,
		Filter:         qf,
		ScoreThreshold: &scoreThreshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, model.NewError(model.ErrStoreUnavailable, "qdrant query", err)
	}

	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		// Qdrant's own score_threshold cutoff is inclusive; re-check here so
		// a point scoring exactly at threshold is excluded regardless.
		if float64(hit.Score) <= threshold {
			continue
		}
		pointUUID := hit.Id.GetUuid()
		if pointUUID == "" {
			pointUUID = hit.Id.String()
		}
		metadata := make(map[string]string)
		var chunkID string
		if hit.Payload != nil {
			for k, v := range hit.Payload {
				if k == originalIDField {
					chunkID = v.GetStringValue()
					continue
				}
				metadata[k] = v.GetStringValue()
			}
		}
		if chunkID == "" {
			chunkID = pointUUID
		}
		out = append(out, Result{ChunkID: chunkID, Score: float64(hit.Score), Metadata: metadata})
	}
	return out, nil
}

func (q *qdrantStore) Close() error {
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("closing qdrant client: %w", err)
	}
	return nil
}
