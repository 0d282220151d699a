// Package qdrant adapts the vectorindex.Index contract onto a Qdrant
// collection over gRPC, adapted from the teacher's qdrant_vector.go:
// same DSN-parsing, deterministic-UUID-for-non-UUID-ids, and payload
// original-id-preservation scheme, generalized to batch upsert/delete and a
// Count operation the teacher's backend didn't need.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"castingai/internal/vectorindex"
)

// payloadIDField stores the original caller-supplied id when it isn't
// itself a valid UUID, since Qdrant point ids must be a UUID or uint64.
const payloadIDField = "_original_id"

// Index is a Qdrant-backed vectorindex.Index.
type Index struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string
}

// New parses dsn (host[:port] with optional ?api_key=), ensures the target
// collection exists with the right vector size/distance metric, and returns
// a ready Index.
func New(dsn, collection string, dimensions int, metric string) (*Index, error) {
	if collection == "" {
		return nil, fmt.Errorf("qdrant: collection name is required")
	}
	if !strings.Contains(dsn, "://") {
		dsn = "//" + dsn
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("qdrant: parse dsn: %w", err)
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
		return nil, fmt.Errorf("qdrant: invalid port in dsn: %w", err)
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
		return nil, fmt.Errorf("qdrant: create client: %w", err)
	}

	idx := &Index{
		client:     client,
		collection: collection,
		dimension:  dimensions,
		metric:     strings.ToLower(strings.TrimSpace(metric)),
	}
	if err := idx.ensureCollection(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("qdrant: ensure collection: %w", err)
	}
	return idx, nil
}

func (idx *Index) ensureCollection(ctx context.Context) error {
	exists, err := idx.client.CollectionExists(ctx, idx.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	var distance qdrant.Distance
	switch idx.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	case "manhattan":
		distance = qdrant.Distance_Manhattan
	default:
		distance = qdrant.Distance_Cosine
	}
	if idx.dimension <= 0 {
		return fmt.Errorf("qdrant requires dimensions > 0")
	}
	return idx.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: idx.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(idx.dimension),
			Distance: distance,
		}),
	})
}

func pointUUID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func (idx *Index) Upsert(ctx context.Context, records []vectorindex.Record) error {
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		uuidStr := pointUUID(r.ID)
		metaAny := make(map[string]any, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			metaAny[k] = v
		}
		if uuidStr != r.ID {
			metaAny[payloadIDField] = r.ID
		}
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuidStr),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(metaAny),
		})
	}
	_, err := idx.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: idx.collection,
		Points:         points,
	})
	return err
}

func (idx *Index) Delete(ctx context.Context, ids []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(pointUUID(id)))
	}
	_, err := idx.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: idx.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	return err
}

func (idx *Index) Search(ctx context.Context, query []float32, k int, filter vectorindex.Filter) ([]vectorindex.Match, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(query))
	copy(vec, query)

	var qf *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			must = append(must, qdrant.NewMatch(k, v))
		}
		qf = &qdrant.Filter{Must: must}
	}

	limit := uint64(k)
	hits, err := idx.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: idx.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         qf,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	out := make([]vectorindex.Match, 0, len(hits))
	for _, hit := range hits {
		uuidStr := hit.Id.GetUuid()
		if uuidStr == "" {
			uuidStr = hit.Id.String()
		}
		metadata := make(map[string]string)
		originalID := ""
		if hit.Payload != nil {
			for k, v := range hit.Payload {
				if k == payloadIDField {
					originalID = v.GetStringValue()
					continue
				}
				metadata[k] = v.GetStringValue()
			}
		}
		id := originalID
		if id == "" {
			id = uuidStr
		}
		out = append(out, vectorindex.Match{ID: id, Score: float64(hit.Score), Metadata: metadata})
	}
	return out, nil
}

func (idx *Index) Count(ctx context.Context) (int, error) {
	info, err := idx.client.GetCollectionInfo(ctx, idx.collection)
	if err != nil {
		return 0, err
	}
	return int(info.GetPointsCount()), nil
}

func (idx *Index) Close() error {
	return idx.client.Close()
}
