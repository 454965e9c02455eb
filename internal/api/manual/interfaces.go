package manual

import (
	"context"

	"github.com/futig/manual-assistant/internal/entity"
)

type ManualUsecase interface {
	Upload(ctx context.Context, filename string, content []byte, meta entity.ManualMetadata) (*entity.UploadResult, error)
	Delete(ctx context.Context, sourceID string) (*entity.DeleteResult, error)
	List() []entity.ManualSummary
	Brands() []string
	Models(brand string) []string
	Stats() entity.DatabaseStats
	Verify(ctx context.Context) entity.VerifyReport
	Clear(ctx context.Context) error
	Rebuild(ctx context.Context) error
	DebugSearch(ctx context.Context, req *entity.DebugSearchRequest) ([]entity.SearchPreview, error)
	Download(sourceID string) (*entity.ManualFile, error)
}
