package builder

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/agent"
	"github.com/futig/manual-assistant/internal/config"
	"github.com/futig/manual-assistant/internal/ingest"
	"github.com/futig/manual-assistant/internal/integration/embedding"
	"github.com/futig/manual-assistant/internal/integration/llm"
	"github.com/futig/manual-assistant/internal/integration/translation"
	"github.com/futig/manual-assistant/internal/integration/warranty"
	"github.com/futig/manual-assistant/internal/knowledge"
	"github.com/futig/manual-assistant/internal/memory"
	"github.com/futig/manual-assistant/internal/pkg/formatter"
	"github.com/futig/manual-assistant/internal/pkg/tokens"
	"github.com/futig/manual-assistant/internal/pkg/validator"
	"github.com/futig/manual-assistant/internal/repository"
	"github.com/futig/manual-assistant/internal/retrieval"
	"github.com/futig/manual-assistant/internal/usecase/chat"
	"github.com/futig/manual-assistant/internal/usecase/manual"
)

// knowledgeBase is everything that reads or writes the manual library.
type knowledgeBase struct {
	store    *knowledge.Store
	engine   *retrieval.Engine
	manualUC *manual.ManualUsecase
	closers  []func() error
}

// conversation is the agent and the session memory it talks through.
type conversation struct {
	sessions *memory.Sessions
	chatUC   *chat.ChatUsecase
	db       *pgxpool.Pool
}

// setupKnowledge builds the embedder, vector index, document store,
// ingestion pipeline and retrieval engine, and loads the persisted library.
func setupKnowledge(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*knowledgeBase, error) {
	var provider embedding.Provider
	if cfg.EnableMocks {
		logger.Info("Using mock embedding connector")
		provider = embedding.NewMockConnector(cfg.EmbeddingCfg.Dimensions, logger)
	} else {
		provider = embedding.NewConnector(cfg.EmbeddingCfg, logger)
	}

	embedder := embedding.NewEmbedder(provider, embedding.BatchConfig{
		Size:         cfg.IngestCfg.BatchSize,
		MinSize:      cfg.IngestCfg.MinBatchSize,
		Growth:       cfg.IngestCfg.BatchGrowth,
		Pause:        cfg.IngestCfg.BatchPause,
		QueryTimeout: cfg.EmbeddingCfg.QueryTimeout,
	})

	kb := &knowledgeBase{}

	var index knowledge.VectorIndex
	switch cfg.IndexCfg.Backend {
	case config.IndexBackendQdrant:
		qdrant, err := knowledge.NewQdrantIndex(ctx,
			cfg.IndexCfg.QdrantHost,
			cfg.IndexCfg.QdrantPort,
			cfg.IndexCfg.QdrantCollection,
			embedder.Dimensions(),
		)
		if err != nil {
			return nil, fmt.Errorf("connect qdrant: %w", err)
		}
		kb.closers = append(kb.closers, qdrant.Close)
		index = qdrant
	default:
		index = knowledge.NewFlatIndex(embedder.Dimensions())
	}
	logger.Info("Vector index initialized",
		zap.String("backend", cfg.IndexCfg.Backend),
		zap.Int("dimensions", embedder.Dimensions()),
		zap.String("model", embedder.Model()),
	)

	kb.store = knowledge.NewStore(cfg.VectorDBPath, index, embedder)
	if err := kb.store.Load(ctx); err != nil {
		_ = kb.close()
		return nil, fmt.Errorf("load knowledge base: %w", err)
	}
	stats := kb.store.Stats()
	logger.Info("Knowledge base loaded",
		zap.String("path", cfg.VectorDBPath),
		zap.Int("manuals", stats.TotalManuals),
		zap.Int("chunks", stats.TotalChunks),
		zap.Bool("needs_rebuild", stats.NeedsRebuild),
	)

	counter := tokens.NewCounter()
	pipeline := ingest.NewPipeline(
		ingest.NewExtractor(cfg.IngestCfg.PDFToTextPath),
		ingest.NewSplitter(
			ingest.WithChunkSize(cfg.IngestCfg.ChunkSize),
			ingest.WithChunkOverlap(cfg.IngestCfg.ChunkOverlap),
		),
		embedder,
		kb.store,
		counter,
	)

	kb.engine = retrieval.NewEngine(kb.store, embedder, retrieval.WithTopK(cfg.RetrievalCfg.TopK))

	kb.manualUC = manual.NewUsecase(
		kb.store,
		pipeline,
		kb.engine,
		validator.NewValidator(cfg.FileUploadCfg),
		cfg.FileUploadCfg.Folder,
		cfg.RetrievalCfg.TopK,
	)

	return kb, nil
}

// setupConversation builds the language services, session memory and the
// agent on top of the knowledge base. A configured database backs the
// session memory with the durable turn log.
func setupConversation(
	ctx context.Context,
	cfg *config.Config,
	kb *knowledgeBase,
	logger *zap.Logger,
) (*conversation, error) {
	var completer llm.Completer
	var backend translation.Backend

	if cfg.EnableMocks {
		logger.Info("Using mock connectors for external services")
		completer = llm.NewMockConnector(logger)
		if cfg.TranslationCfg.Enabled {
			backend = translation.NewMockConnector(logger)
		}
	} else {
		logger.Info("Using real connectors for external services")
		completer = llm.NewConnector(cfg.LLMCfg, logger)
		if cfg.TranslationCfg.Enabled {
			backend = translation.NewConnector(cfg.TranslationCfg, logger)
		}
	}

	conv := &conversation{}

	var turns memory.TurnRepository
	if cfg.DatabaseURL != "" {
		db, err := openTurnLog(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		conv.db = db
		turns = repository.NewTurnPostgres(db)
	} else {
		logger.Info("DATABASE_URL not set, conversation memory is in-process only")
	}

	conv.sessions = memory.NewSessions(memory.Config{
		MaxHistory:                     cfg.MemoryCfg.MaxHistory,
		PruneIndexes:                   cfg.MemoryCfg.PruneIndexes,
		WarrantyRepromptOnDeviceChange: cfg.MemoryCfg.WarrantyRepromptOnDeviceChange,
	}, cfg.MemoryCfg.SessionTTL, cfg.MemoryCfg.CleanupInterval, turns)

	service := llm.NewService(completer, tokens.NewCounter(), llm.ServiceConfig{
		MaxTokens:          cfg.LLMCfg.MaxTokens,
		Temperature:        cfg.LLMCfg.Temperature,
		ContextTokenBudget: cfg.LLMCfg.ContextTokenBudget,
	})

	chatAgent := agent.New(
		kb.engine,
		service,
		warranty.NewAgent(kb.engine, cfg.WarrantyCfg.DefaultMonths),
		conv.sessions,
		agent.WithTopK(cfg.RetrievalCfg.TopK),
	)

	conv.chatUC = chat.NewUsecase(
		chatAgent,
		translation.NewTranslator(backend),
		service,
		conv.sessions,
		formatter.NewFactory(),
		validator.NewValidator(cfg.FileUploadCfg),
	)
	logger.Info("Use cases initialized")

	return conv, nil
}

func (kb *knowledgeBase) close() error {
	var err error
	for _, c := range kb.closers {
		err = multierr.Append(err, c())
	}
	return err
}

func (c *conversation) close() {
	if c.db != nil {
		c.db.Close()
	}
}
