package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/entity"
)

const (
	previewLength = 100
	idPrefixBytes = 8 * 1024
)

type PageExtractor interface {
	Pages(ctx context.Context, filename string, content []byte) ([]entity.Page, error)
}

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

type SourceStore interface {
	Add(ctx context.Context, manifest entity.SourceManifest, chunks []entity.Chunk, vectors [][]float32) (entity.SourceManifest, error)
}

type TokenCounter interface {
	Count(text string) int
}

// Pipeline turns a manual into chunks, embeds them and stores the result.
type Pipeline struct {
	extractor PageExtractor
	splitter  *Splitter
	embedder  Embedder
	store     SourceStore
	tokens    TokenCounter
	now       func() time.Time
}

func NewPipeline(extractor PageExtractor, splitter *Splitter, embedder Embedder, store SourceStore, tokens TokenCounter) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		splitter:  splitter,
		embedder:  embedder,
		store:     store,
		tokens:    tokens,
		now:       time.Now,
	}
}

// Ingest stores doc as a new source. The returned error may be a
// *entity.SaveError, in which case the manifest is valid and the source is
// searchable.
func (p *Pipeline) Ingest(ctx context.Context, doc entity.Document) (entity.SourceManifest, error) {
	now := p.now()
	meta := doc.Metadata.WithDefaults(now)
	filename := filepath.Base(doc.Filename)

	pages, err := p.extractor.Pages(ctx, filename, doc.Content)
	if err != nil {
		return entity.SourceManifest{}, fmt.Errorf("extract %s: %w", filename, err)
	}
	ctxzap.Info(ctx, "manual pages extracted", zap.String("filename", filename), zap.Int("pages", len(pages)))

	sourceID := SourceID(doc.Content, now)
	chunks, perPage := p.BuildChunks(pages, sourceID, filename, meta, now)
	if len(chunks) == 0 {
		return entity.SourceManifest{}, entity.ErrEmptyDocument
	}

	texts := make([]string, len(chunks))
	totalTokens := 0
	for i, c := range chunks {
		texts[i] = c.Text
		totalTokens += p.tokens.Count(c.Text)
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return entity.SourceManifest{}, fmt.Errorf("embed chunks: %w", err)
	}

	manifest := entity.SourceManifest{
		SourceID:      sourceID,
		Filename:      filename,
		Brand:         meta.Brand,
		Model:         meta.Model,
		ProductType:   meta.ProductType,
		Language:      meta.Language,
		Year:          meta.Year,
		ChunkCount:    len(chunks),
		PageCount:     len(pages),
		ChunksPerPage: perPage,
		TotalTokens:   totalTokens,
		CreatedAt:     now,
	}

	stored, err := p.store.Add(ctx, manifest, chunks, vectors)
	var saveErr *entity.SaveError
	if err != nil && !errors.As(err, &saveErr) {
		return entity.SourceManifest{}, fmt.Errorf("store chunks: %w", err)
	}

	ctxzap.Info(ctx, "manual ingested",
		zap.String("file_id", stored.SourceID),
		zap.String("filename", filename),
		zap.Int("chunks", stored.ChunkCount),
		zap.Int("total_tokens", totalTokens),
	)
	return stored, err
}

// BuildChunks normalises and splits every page. Each chunk carries its page
// position and previews of its neighbours on the same page. The second
// result is the chunk count of each page.
func (p *Pipeline) BuildChunks(pages []entity.Page, sourceID, filename string, meta entity.ManualMetadata, now time.Time) ([]entity.Chunk, []int) {
	var chunks []entity.Chunk
	perPage := make([]int, len(pages))

	for i, page := range pages {
		texts := p.splitter.Split(NormalizePage(page.Text))
		perPage[i] = len(texts)

		for j, text := range texts {
			c := entity.Chunk{
				ID:                uuid.NewString(),
				Text:              text,
				SourceID:          sourceID,
				Filename:          filename,
				Brand:             meta.Brand,
				Model:             meta.Model,
				ProductType:       meta.ProductType,
				Year:              meta.Year,
				Language:          meta.Language,
				Page:              page.Number,
				ChunkIndexOnPage:  j + 1,
				TotalChunksInPage: len(texts),
				IsStartOfPage:     j == 0,
				IsEndOfPage:       j == len(texts)-1,
				Timestamp:         now,
			}
			if j > 0 {
				c.PreviewBefore = lastRunes(texts[j-1], previewLength)
			}
			if j < len(texts)-1 {
				c.PreviewAfter = firstRunes(texts[j+1], previewLength)
			}
			chunks = append(chunks, c)
		}
	}
	return chunks, perPage
}

// SourceID derives a source id from the start of the content and the
// ingestion time, so re-uploading identical bytes yields a new id.
func SourceID(content []byte, at time.Time) string {
	h := md5.New()
	h.Write(content[:min(len(content), idPrefixBytes)])
	h.Write([]byte(at.Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil))
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func lastRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
