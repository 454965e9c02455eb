package entity

import (
	"strconv"
	"time"
)

const (
	UnknownValue    = "Unknown"
	DefaultLanguage = "en"
)

// Chunk is a bounded span of manual text, the unit of indexing and retrieval.
type Chunk struct {
	ID                string    `json:"id"`
	Text              string    `json:"text"`
	SourceID          string    `json:"source_id"`
	Filename          string    `json:"filename"`
	Brand             string    `json:"brand"`
	Model             string    `json:"model"`
	ProductType       string    `json:"product_type"`
	Year              string    `json:"year"`
	Language          string    `json:"language"`
	Page              int       `json:"page"`
	ChunkIndexOnPage  int       `json:"chunk"`
	TotalChunksInPage int       `json:"total_chunks_in_page"`
	IsStartOfPage     bool      `json:"is_start_of_page"`
	IsEndOfPage       bool      `json:"is_end_of_page"`
	PreviewBefore     string    `json:"prev_chunk_preview,omitempty"`
	PreviewAfter      string    `json:"next_chunk_preview,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// ChunkRange is a half-open [Start, End) slice of the chunk sequence.
type ChunkRange struct {
	Start int `json:"start_idx"`
	End   int `json:"end_idx"`
}

func (r ChunkRange) Len() int {
	return r.End - r.Start
}

// Within reports whether the range addresses a sequence of n chunks.
func (r ChunkRange) Within(n int) bool {
	return r.Start >= 0 && r.Start <= r.End && r.End <= n
}

// SourceManifest describes one ingested manual.
type SourceManifest struct {
	SourceID    string `json:"file_id"`
	Filename    string `json:"filename"`
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	ProductType string `json:"product_type"`
	Language    string `json:"language"`
	Year        string `json:"year"`
	// ChunkRange is flattened into start_idx/end_idx.
	ChunkRange
	ChunkCount    int       `json:"num_chunks"`
	PageCount     int       `json:"num_pages"`
	ChunksPerPage []int     `json:"chunks_per_page"`
	TotalTokens   int       `json:"total_tokens"`
	IsDeleted     bool      `json:"is_deleted,omitempty"`
	CreatedAt     time.Time `json:"timestamp"`
}

// ManualMetadata is the caller-supplied description of a manual.
type ManualMetadata struct {
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	ProductType string `json:"product_type"`
	Year        string `json:"year"`
	Language    string `json:"language"`
}

// WithDefaults fills blank fields.
func (m ManualMetadata) WithDefaults(now time.Time) ManualMetadata {
	if m.Brand == "" {
		m.Brand = UnknownValue
	}
	if m.Model == "" {
		m.Model = UnknownValue
	}
	if m.ProductType == "" {
		m.ProductType = UnknownValue
	}
	if m.Year == "" {
		m.Year = strconv.Itoa(now.Year())
	}
	if m.Language == "" {
		m.Language = DefaultLanguage
	}
	return m
}

// Document is a raw manual ready for ingestion.
type Document struct {
	Filename string
	Content  []byte
	Metadata ManualMetadata
}

// Page is the extracted text of one manual page (1-based number).
type Page struct {
	Number int
	Text   string
}

// SearchHit is a chunk with its distance to the query (lower is closer).
type SearchHit struct {
	Position int     `json:"-"`
	Chunk    Chunk   `json:"chunk"`
	Score    float32 `json:"score"`
}

// RetrievedChunk is a ranked retrieval result with neighbour context.
type RetrievedChunk struct {
	Chunk         Chunk   `json:"chunk"`
	Score         float32 `json:"score"`
	ContextBefore string  `json:"context_before,omitempty"`
	ContextAfter  string  `json:"context_after,omitempty"`
}

// SearchFilter restricts retrieval to manuals with exact brand/model.
type SearchFilter struct {
	Brand string `json:"brand,omitempty"`
	Model string `json:"model,omitempty"`
}

func (f SearchFilter) IsStrict() bool {
	return f.Brand != "" || f.Model != ""
}

// ManualSummary is the per-manual entry in listings and stats.
type ManualSummary struct {
	SourceID    string    `json:"file_id"`
	Filename    string    `json:"filename"`
	Brand       string    `json:"brand"`
	Model       string    `json:"model"`
	ProductType string    `json:"product_type,omitempty"`
	Year        string    `json:"year,omitempty"`
	Language    string    `json:"language"`
	ChunkCount  int       `json:"num_chunks"`
	PageCount   int       `json:"num_pages"`
	CreatedAt   time.Time `json:"timestamp"`
}

// DatabaseStats summarises the knowledge base.
type DatabaseStats struct {
	TotalChunks         int             `json:"total_documents"`
	TotalManuals        int             `json:"total_manuals"`
	IndexSize           int             `json:"index_size"`
	ChunksByLanguage    map[string]int  `json:"documents_by_language"`
	EmbeddingModel      string          `json:"embedding_model"`
	EmbeddingDimensions int             `json:"embedding_dimensions"`
	NeedsRebuild        bool            `json:"needs_rebuild"`
	IsEmpty             bool            `json:"is_empty"`
	Manuals             []ManualSummary `json:"manuals"`
}

// VerifyReport is the outcome of a consistency check.
type VerifyReport struct {
	IsEmpty      bool          `json:"is_empty"`
	IsConsistent bool          `json:"is_consistent"`
	Stats        DatabaseStats `json:"stats"`
}

// UploadResult is returned by manual upload.
type UploadResult struct {
	Manual  ManualSummary `json:"manual"`
	Cached  bool          `json:"cached"`
	Message string        `json:"message"`
}

// DeleteResult is returned by manual deletion.
type DeleteResult struct {
	Deleted       ManualSummary `json:"deleted_info"`
	DatabaseEmpty bool          `json:"database_empty"`
	Message       string        `json:"message"`
}

// DuplicateManualError carries the manual that already uses a filename.
type DuplicateManualError struct {
	Existing ManualSummary
}

func (e *DuplicateManualError) Error() string {
	return ErrDuplicateFilename.Error() + ": " + e.Existing.Filename
}

func (e *DuplicateManualError) Unwrap() error {
	return ErrDuplicateFilename
}

// ToSummary converts a manifest for listings.
func (m *SourceManifest) ToSummary() ManualSummary {
	return ManualSummary{
		SourceID:    m.SourceID,
		Filename:    m.Filename,
		Brand:       m.Brand,
		Model:       m.Model,
		ProductType: m.ProductType,
		Year:        m.Year,
		Language:    m.Language,
		ChunkCount:  m.ChunkCount,
		PageCount:   m.PageCount,
		CreatedAt:   m.CreatedAt,
	}
}

// DebugSearchRequest runs retrieval outside of a conversation.
type DebugSearchRequest struct {
	Query string `json:"query"`
	Brand string `json:"brand"`
	Model string `json:"model"`
	TopK  int    `json:"top_k"`
}

// SearchPreview is one ranked retrieval result in a debug search.
type SearchPreview struct {
	Rank     int     `json:"rank"`
	Brand    string  `json:"brand"`
	Model    string  `json:"model"`
	Filename string  `json:"filename"`
	Page     int     `json:"page"`
	Score    float32 `json:"score"`
	Preview  string  `json:"preview"`
}

// ManualFile is a stored manual ready for download.
type ManualFile struct {
	Filename string
	Path     string
}

type ListManualsResponse struct {
	Files []ManualSummary `json:"files"`
}

type BrandsResponse struct {
	Brands []string `json:"brands"`
}

type ModelsResponse struct {
	Models []string `json:"models"`
}

type DebugSearchResponse struct {
	Query   string          `json:"query"`
	Results []SearchPreview `json:"results"`
}

// StatusResponse acknowledges an operation without a payload.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
