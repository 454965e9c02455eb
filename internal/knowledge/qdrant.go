package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/entity"
)

const qdrantUpsertBatch = 256

// QdrantIndex keeps vectors in a Qdrant collection. The point id is the
// vector position, so the collection must only be written through this
// index.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dim        int
	count      int
}

var _ VectorIndex = &QdrantIndex{}

// qdrantMarker is what Save writes locally in place of the vectors.
type qdrantMarker struct {
	Collection string `json:"collection"`
	Dimension  int    `json:"dimension"`
	Count      int    `json:"count"`
}

func NewQdrantIndex(ctx context.Context, host string, port int, collection string, dim int) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}

	q := &QdrantIndex{client: client, collection: collection, dim: dim}
	if err := q.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return q, nil
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func (q *QdrantIndex) Dimension() int {
	return q.dim
}

func (q *QdrantIndex) Len() int {
	return q.count
}

func (q *QdrantIndex) Add(ctx context.Context, vectors [][]float32) error {
	if err := checkDimensions(q.dim, q.count, vectors); err != nil {
		return err
	}

	wait := true
	for start := 0; start < len(vectors); start += qdrantUpsertBatch {
		end := min(start+qdrantUpsertBatch, len(vectors))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			pos := q.count + i
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(uint64(pos)),
				Vectors: qdrant.NewVectors(vectors[i]...),
				Payload: qdrant.NewValueMap(map[string]any{"position": pos}),
			})
		}

		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Wait:           &wait,
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("upsert points %d-%d: %w", q.count+start, q.count+end, err)
		}
	}

	q.count += len(vectors)
	return nil
}

// Search converts Qdrant's Euclid distance into squared L2 so both
// backends score alike.
func (q *QdrantIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != q.dim {
		return nil, &entity.DimensionMismatchError{Expected: q.dim, Got: len(query), Position: -1}
	}
	k = min(k, q.count)
	if k <= 0 {
		return nil, nil
	}

	limit := uint64(k)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("query qdrant: %w", err)
	}

	out := make([]Neighbor, 0, len(hits))
	for _, hit := range hits {
		pos := int(hit.GetId().GetNum())
		if pos >= q.count {
			continue
		}
		out = append(out, Neighbor{Position: pos, Distance: hit.GetScore() * hit.GetScore()})
	}
	slices.SortStableFunc(out, func(a, b Neighbor) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	return out, nil
}

func (q *QdrantIndex) Reset(ctx context.Context) error {
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return fmt.Errorf("drop collection %s: %w", q.collection, err)
	}
	q.count = 0
	return q.ensureCollection(ctx)
}

func (q *QdrantIndex) Save(w io.Writer) error {
	return json.NewEncoder(w).Encode(qdrantMarker{
		Collection: q.collection,
		Dimension:  q.dim,
		Count:      q.count,
	})
}

// Load trusts the collection's point count over the marker's: points may
// have been written after the last save.
func (q *QdrantIndex) Load(ctx context.Context, r io.Reader) error {
	var marker qdrantMarker
	if err := json.NewDecoder(r).Decode(&marker); err != nil {
		return fmt.Errorf("decode qdrant marker: %w", err)
	}
	if marker.Dimension != q.dim {
		return &entity.DimensionMismatchError{Expected: q.dim, Got: marker.Dimension, Position: -1}
	}
	if marker.Collection != q.collection {
		return fmt.Errorf("index was saved for collection %q, configured %q", marker.Collection, q.collection)
	}

	exact := true
	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          &exact,
	})
	if err != nil {
		return fmt.Errorf("count points: %w", err)
	}
	if int(count) != marker.Count {
		ctxzap.Warn(ctx, "qdrant point count differs from saved index",
			zap.Int("saved", marker.Count),
			zap.Uint64("collection", count),
		)
	}
	q.count = int(count)
	return nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	existing, err := q.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	if slices.Contains(existing, q.collection) {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dim),
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}
	return nil
}
