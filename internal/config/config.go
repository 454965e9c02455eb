package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	pkgRetry "github.com/futig/manual-assistant/internal/pkg/retry"
)

const (
	IndexBackendFlat   = "flat"
	IndexBackendQdrant = "qdrant"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerAddr      string        `env:"SERVER_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Database configuration. An empty URL disables the durable turn log.
	DatabaseURL         string        `env:"DATABASE_URL"`
	DBMaxConns          int           `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns          int           `env:"DB_MIN_CONNS" envDefault:"1"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// External service configurations
	EmbeddingCfg   EmbeddingConfig   `envPrefix:"EMBEDDING_"`
	LLMCfg         LLMConfig         `envPrefix:"LLM_"`
	TranslationCfg TranslationConfig `envPrefix:"TRANSLATION_"`

	// Knowledge base configuration
	VectorDBPath string          `env:"VECTOR_DB_PATH" envDefault:"./vector_db"`
	IndexCfg     IndexConfig     `envPrefix:"INDEX_"`
	IngestCfg    IngestConfig    `envPrefix:"INGEST_"`
	RetrievalCfg RetrievalConfig `envPrefix:"RETRIEVAL_"`

	MemoryCfg   MemoryConfig   `envPrefix:"MEMORY_"`
	WarrantyCfg WarrantyConfig `envPrefix:"WARRANTY_"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// File upload configuration
	FileUploadCfg FileUploadConfig `envPrefix:"UPLOAD_"`

	// Mock configuration
	EnableMocks bool `env:"ENABLE_MOCKS" envDefault:"false"`

	// Telegram bot configuration (only read by the telegram binary)
	TelegramCfg TelegramConfig `envPrefix:"TELEGRAM_"`

	// Environment (set from flag, not from env var)
	Environment string
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken           string        `env:"BOT_TOKEN"`
	UpdateTimeout      int           `env:"UPDATE_TIMEOUT" envDefault:"60"`
	MaxConcurrentUsers int           `env:"MAX_CONCURRENT_USERS" envDefault:"50"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"20"`
	RateLimitBurst     int           `env:"RATE_LIMIT_BURST" envDefault:"5"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

type HTTPClientConfig struct {
	RequestTimeout time.Duration `env:"TIMEOUT" envDefault:"60s"`
	Token          string        `env:"TOKEN"`
	// AuthHeader sends the token in a custom header (Azure uses "api-key")
	// instead of a bearer Authorization header.
	AuthHeader string `env:"AUTH_HEADER"`
	Url        string `env:"SERVICE_URL" envDefault:"https://api.openai.com/v1"`
}

type EmbeddingConfig struct {
	HTTPClientConfig
	Endpoint          string               `env:"ENDPOINT" envDefault:"/embeddings"`
	Model             string               `env:"MODEL" envDefault:"text-embedding-3-small"`
	Dimensions        int                  `env:"DIMENSIONS" envDefault:"1536"`
	RequestsPerSecond float64              `env:"REQUESTS_PER_SECOND" envDefault:"5"`
	Burst             int                  `env:"BURST" envDefault:"1"`
	QueryTimeout      time.Duration        `env:"QUERY_TIMEOUT" envDefault:"30s"`
	Retry             pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type LLMConfig struct {
	HTTPClientConfig
	Endpoint           string               `env:"ENDPOINT" envDefault:"/chat/completions"`
	Model              string               `env:"MODEL" envDefault:"gpt-4o-mini"`
	Temperature        float64              `env:"TEMPERATURE" envDefault:"0.3"`
	MaxTokens          int                  `env:"MAX_TOKENS" envDefault:"500"`
	ContextTokenBudget int                  `env:"CONTEXT_TOKEN_BUDGET" envDefault:"6000"`
	Retry              pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type TranslationConfig struct {
	HTTPClientConfig
	Enabled  bool                 `env:"ENABLED" envDefault:"false"`
	Endpoint string               `env:"ENDPOINT" envDefault:"/translate"`
	Retry    pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

// IndexConfig selects the Vector Index implementation.
type IndexConfig struct {
	Backend          string `env:"BACKEND" envDefault:"flat"`
	QdrantHost       string `env:"QDRANT_HOST" envDefault:"localhost"`
	QdrantPort       int    `env:"QDRANT_PORT" envDefault:"6334"`
	QdrantCollection string `env:"QDRANT_COLLECTION" envDefault:"manual_chunks"`
}

type IngestConfig struct {
	ChunkSize     int           `env:"CHUNK_SIZE" envDefault:"1000"`
	ChunkOverlap  int           `env:"CHUNK_OVERLAP" envDefault:"200"`
	BatchSize     int           `env:"BATCH_SIZE" envDefault:"75"`
	MinBatchSize  int           `env:"MIN_BATCH_SIZE" envDefault:"25"`
	BatchGrowth   int           `env:"BATCH_GROWTH" envDefault:"10"`
	BatchPause    time.Duration `env:"BATCH_PAUSE" envDefault:"50ms"`
	PDFToTextPath string        `env:"PDFTOTEXT_PATH" envDefault:"pdftotext"`
}

type RetrievalConfig struct {
	TopK int `env:"TOP_K" envDefault:"4"`
}

type MemoryConfig struct {
	MaxHistory                     int           `env:"MAX_HISTORY" envDefault:"100"`
	SessionTTL                     time.Duration `env:"SESSION_TTL" envDefault:"2h"`
	CleanupInterval                time.Duration `env:"CLEANUP_INTERVAL" envDefault:"10m"`
	PruneIndexes                   bool          `env:"PRUNE_INDEXES" envDefault:"false"`
	WarrantyRepromptOnDeviceChange bool          `env:"WARRANTY_REPROMPT_ON_DEVICE_CHANGE" envDefault:"false"`
}

type WarrantyConfig struct {
	DefaultMonths int `env:"DEFAULT_MONTHS" envDefault:"12"`
}

// FileUploadConfig holds file upload limits
type FileUploadConfig struct {
	Folder      string `env:"FOLDER" envDefault:"./uploads"`
	MaxFileSize int64  `env:"MAX_FILE_SIZE" envDefault:"16777216"` // 16 MiB
}

// LoadConfig reads the -env flag and loads configuration for it.
func LoadConfig() (*Config, error) {
	envFlag := flag.String("env", "local", "Environment to run (local, prod, or custom)")
	flag.Parse()

	return Load(*envFlag)
}

// Load loads .env.<environment> if present, then parses the process
// environment.
func Load(environment string) (*Config, error) {
	envFile := getEnvFile(environment)
	// In containerized/prod environments variables are usually set externally.
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.Environment = environment

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// IsProduction reports whether the process runs in the prod environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "prod" || c.Environment == "production"
}

func validateConfig(cfg *Config) error {
	var errs []string

	if !cfg.EnableMocks {
		if cfg.EmbeddingCfg.Token == "" {
			errs = append(errs, "EMBEDDING_TOKEN is required unless ENABLE_MOCKS=true")
		}
		if cfg.LLMCfg.Token == "" {
			errs = append(errs, "LLM_TOKEN is required unless ENABLE_MOCKS=true")
		}
	}

	if cfg.EmbeddingCfg.Dimensions < 1 {
		errs = append(errs, fmt.Sprintf("EMBEDDING_DIMENSIONS must be positive, got %d", cfg.EmbeddingCfg.Dimensions))
	}

	if cfg.IndexCfg.Backend != IndexBackendFlat && cfg.IndexCfg.Backend != IndexBackendQdrant {
		errs = append(errs, fmt.Sprintf("INDEX_BACKEND must be %q or %q, got %q", IndexBackendFlat, IndexBackendQdrant, cfg.IndexCfg.Backend))
	}

	if cfg.IngestCfg.ChunkSize < 1 {
		errs = append(errs, fmt.Sprintf("INGEST_CHUNK_SIZE must be positive, got %d", cfg.IngestCfg.ChunkSize))
	}
	if cfg.IngestCfg.ChunkOverlap < 0 || cfg.IngestCfg.ChunkOverlap >= cfg.IngestCfg.ChunkSize {
		errs = append(errs, fmt.Sprintf("INGEST_CHUNK_OVERLAP must be in [0, INGEST_CHUNK_SIZE), got %d", cfg.IngestCfg.ChunkOverlap))
	}
	if cfg.IngestCfg.MinBatchSize < 1 || cfg.IngestCfg.MinBatchSize > cfg.IngestCfg.BatchSize {
		errs = append(errs, fmt.Sprintf("INGEST_MIN_BATCH_SIZE must be between 1 and INGEST_BATCH_SIZE(%d), got %d", cfg.IngestCfg.BatchSize, cfg.IngestCfg.MinBatchSize))
	}

	if cfg.RetrievalCfg.TopK < 1 {
		errs = append(errs, fmt.Sprintf("RETRIEVAL_TOP_K must be positive, got %d", cfg.RetrievalCfg.TopK))
	}

	if cfg.MemoryCfg.MaxHistory < 1 {
		errs = append(errs, fmt.Sprintf("MEMORY_MAX_HISTORY must be positive, got %d", cfg.MemoryCfg.MaxHistory))
	}

	if cfg.FileUploadCfg.MaxFileSize < 1 {
		errs = append(errs, fmt.Sprintf("UPLOAD_MAX_FILE_SIZE must be positive, got %d", cfg.FileUploadCfg.MaxFileSize))
	}

	if cfg.DatabaseURL != "" {
		if cfg.DBMaxConns < 1 || cfg.DBMaxConns > 200 {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS must be between 1 and 200, got %d", cfg.DBMaxConns))
		}
		if cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
			errs = append(errs, fmt.Sprintf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS(%d), got %d", cfg.DBMaxConns, cfg.DBMinConns))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ValidateTelegram checks the settings only the telegram frontend needs.
func (c *Config) ValidateTelegram() error {
	var errs []string
	if c.TelegramCfg.BotToken == "" {
		errs = append(errs, "TELEGRAM_BOT_TOKEN is required")
	}
	if c.TelegramCfg.RateLimitPerMinute < 1 || c.TelegramCfg.RateLimitPerMinute > 60 {
		errs = append(errs, fmt.Sprintf("TELEGRAM_RATE_LIMIT_PER_MINUTE must be between 1 and 60, got %d", c.TelegramCfg.RateLimitPerMinute))
	}
	if c.TelegramCfg.RateLimitBurst < 1 || c.TelegramCfg.RateLimitBurst > 20 {
		errs = append(errs, fmt.Sprintf("TELEGRAM_RATE_LIMIT_BURST must be between 1 and 20, got %d", c.TelegramCfg.RateLimitBurst))
	}
	if len(errs) > 0 {
		return fmt.Errorf("telegram configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getEnvFile(environment string) string {
	switch environment {
	case "prod", "production":
		return ".env.prod"
	case "local", "dev", "development":
		return ".env.local"
	default:
		return fmt.Sprintf(".env.%s", environment)
	}
}
