package chat

import (
	"context"

	"github.com/futig/manual-assistant/internal/entity"
)

type ChatUsecase interface {
	Chat(ctx context.Context, req *entity.ChatRequest) (*entity.ChatResponse, error)
	Summarize(ctx context.Context, req *entity.SummarizeRequest) (*entity.SummarizeResponse, error)
	History(ctx context.Context, sessionID string, limit int) (*entity.SessionHistory, error)
	Stats(ctx context.Context, sessionID string) (*entity.MemoryStats, error)
	Export(ctx context.Context, sessionID string, format entity.ResultFormat) (*entity.ExportFile, error)
	ClearMemory(ctx context.Context, sessionID string) error
}
