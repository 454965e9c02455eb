package manual

import (
	"context"

	"github.com/futig/manual-assistant/internal/entity"
)

type KnowledgeStore interface {
	Manifests() []entity.SourceManifest
	Manifest(sourceID string) (entity.SourceManifest, bool)
	Delete(ctx context.Context, sourceID string) (entity.SourceManifest, error)
	Clear(ctx context.Context) error
	Rebuild(ctx context.Context) error
	Stats() entity.DatabaseStats
	Verify() entity.VerifyReport
	IsEmpty() bool
}

type Ingester interface {
	Ingest(ctx context.Context, doc entity.Document) (entity.SourceManifest, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, filter entity.SearchFilter, k int) ([]entity.RetrievedChunk, error)
}
