package manual

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/entity"
	"github.com/futig/manual-assistant/internal/knowledge"
	"github.com/futig/manual-assistant/internal/pkg/validator"
)

const previewLength = 200

// ManualUsecase implements manual library management
type ManualUsecase struct {
	// mu serialises library changes so duplicate checks see prior uploads.
	mu sync.Mutex

	store     KnowledgeStore
	ingester  Ingester
	retriever Retriever
	validator *validator.Validator
	uploadDir string
	topK      int
	now       func() time.Time
}

// NewUsecase creates a new manual use case
func NewUsecase(
	store KnowledgeStore,
	ingester Ingester,
	retriever Retriever,
	validator *validator.Validator,
	uploadDir string,
	topK int,
) *ManualUsecase {
	return &ManualUsecase{
		store:     store,
		ingester:  ingester,
		retriever: retriever,
		validator: validator,
		uploadDir: uploadDir,
		topK:      topK,
		now:       time.Now,
	}
}

// Upload stores and ingests a manual. A filename already in the library is
// rejected with *entity.DuplicateManualError; a manual with the same brand,
// model and language is returned as cached without re-ingesting.
func (uc *ManualUsecase) Upload(
	ctx context.Context,
	filename string,
	content []byte,
	meta entity.ManualMetadata,
) (*entity.UploadResult, error) {
	if err := uc.validator.ValidateUpload(filename, int64(len(content))); err != nil {
		return nil, err
	}
	if err := uc.validator.ValidateManualMetadata(&meta); err != nil {
		return nil, err
	}

	name := validator.SanitizeFilename(filename)
	if name == "" {
		return nil, fmt.Errorf("%w: filename %q", entity.ErrInvalidFile, filename)
	}
	meta = meta.WithDefaults(uc.now())

	uc.mu.Lock()
	defer uc.mu.Unlock()

	manifests := uc.store.Manifests()
	if existing, ok := findByFilename(manifests, name); ok {
		return nil, &entity.DuplicateManualError{Existing: existing.ToSummary()}
	}
	if existing, ok := findByIdentity(manifests, meta); ok {
		ctxzap.Info(ctx, "manual already in library",
			zap.String("file_id", existing.SourceID),
			zap.String("brand", meta.Brand),
			zap.String("model", meta.Model),
			zap.String("language", meta.Language),
		)
		return &entity.UploadResult{
			Manual:  existing.ToSummary(),
			Cached:  true,
			Message: fmt.Sprintf("Manual already exists in database: %s", existing.Filename),
		}, nil
	}

	path, err := uc.saveFile(name, content)
	if err != nil {
		return nil, fmt.Errorf("save uploaded file: %w", err)
	}

	manifest, err := uc.ingester.Ingest(ctx, entity.Document{
		Filename: name,
		Content:  content,
		Metadata: meta,
	})
	if err = knowledge.AcceptPartialSave(ctx, err); err != nil {
		// A failed save still leaves the manual in the library, so its file stays.
		var saveErr *entity.SaveError
		if !errors.As(err, &saveErr) {
			uc.removeFile(ctx, path)
		}
		return nil, fmt.Errorf("ingest manual: %w", err)
	}

	ctxzap.Info(ctx, "manual uploaded",
		zap.String("file_id", manifest.SourceID),
		zap.String("filename", name),
		zap.Int("chunks", manifest.ChunkCount),
	)

	return &entity.UploadResult{
		Manual:  manifest.ToSummary(),
		Message: fmt.Sprintf("Successfully uploaded and processed %s", name),
	}, nil
}

// Delete removes a manual from the library and the upload folder.
func (uc *ManualUsecase) Delete(ctx context.Context, sourceID string) (*entity.DeleteResult, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	deleted, err := uc.store.Delete(ctx, sourceID)
	if errors.Is(err, entity.ErrManualNotFound) {
		return nil, err
	}
	if err = knowledge.AcceptPartialSave(ctx, err); err != nil {
		return nil, fmt.Errorf("delete manual %s: %w", sourceID, err)
	}

	uc.removeFile(ctx, filepath.Join(uc.uploadDir, deleted.Filename))

	return &entity.DeleteResult{
		Deleted:       deleted.ToSummary(),
		DatabaseEmpty: uc.store.IsEmpty(),
		Message:       deleteMessage(deleted),
	}, nil
}

func (uc *ManualUsecase) List() []entity.ManualSummary {
	manifests := uc.store.Manifests()
	out := make([]entity.ManualSummary, 0, len(manifests))
	for i := range manifests {
		out = append(out, manifests[i].ToSummary())
	}
	return out
}

// Brands returns the sorted distinct brands in the library.
func (uc *ManualUsecase) Brands() []string {
	return distinct(uc.store.Manifests(), func(m entity.SourceManifest) (string, bool) {
		return m.Brand, true
	})
}

// Models returns the sorted distinct models, optionally for one brand.
func (uc *ManualUsecase) Models(brand string) []string {
	return distinct(uc.store.Manifests(), func(m entity.SourceManifest) (string, bool) {
		return m.Model, brand == "" || m.Brand == brand
	})
}

func (uc *ManualUsecase) Stats() entity.DatabaseStats {
	return uc.store.Stats()
}

func (uc *ManualUsecase) Verify(ctx context.Context) entity.VerifyReport {
	report := uc.store.Verify()
	if !report.IsConsistent {
		ctxzap.Warn(ctx, "knowledge base is inconsistent",
			zap.Int("chunks", report.Stats.TotalChunks),
			zap.Int("index_size", report.Stats.IndexSize),
		)
	}
	return report
}

// Clear drops every manual from the knowledge base. Uploaded files are kept.
func (uc *ManualUsecase) Clear(ctx context.Context) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if err := knowledge.AcceptPartialSave(ctx, uc.store.Clear(ctx)); err != nil {
		return fmt.Errorf("clear knowledge base: %w", err)
	}
	return nil
}

// Rebuild re-embeds every stored chunk.
func (uc *ManualUsecase) Rebuild(ctx context.Context) error {
	if err := knowledge.AcceptPartialSave(ctx, uc.store.Rebuild(ctx)); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	return nil
}

// DebugSearch runs retrieval for a bare query and returns ranked previews.
func (uc *ManualUsecase) DebugSearch(ctx context.Context, req *entity.DebugSearchRequest) ([]entity.SearchPreview, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("%w: query", entity.ErrMissingField)
	}
	k := req.TopK
	if k <= 0 {
		k = uc.topK
	}

	docs, err := uc.retriever.Retrieve(ctx, req.Query, entity.SearchFilter{Brand: req.Brand, Model: req.Model}, k)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	previews := make([]entity.SearchPreview, 0, len(docs))
	for i, d := range docs {
		previews = append(previews, entity.SearchPreview{
			Rank:     i + 1,
			Brand:    d.Chunk.Brand,
			Model:    d.Chunk.Model,
			Filename: d.Chunk.Filename,
			Page:     d.Chunk.Page,
			Score:    d.Score,
			Preview:  preview(d.Chunk.Text, previewLength),
		})
	}
	return previews, nil
}

// Download locates the stored file of a manual.
func (uc *ManualUsecase) Download(sourceID string) (*entity.ManualFile, error) {
	manifest, ok := uc.store.Manifest(sourceID)
	if !ok {
		return nil, entity.ErrManualNotFound
	}

	path := filepath.Join(uc.uploadDir, manifest.Filename)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: file %s is not in the upload folder", entity.ErrManualNotFound, manifest.Filename)
		}
		return nil, fmt.Errorf("stat %s: %w", manifest.Filename, err)
	}

	return &entity.ManualFile{Filename: manifest.Filename, Path: path}, nil
}
