package manual

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/futig/manual-assistant/internal/config"
	"github.com/futig/manual-assistant/internal/entity"
	"github.com/futig/manual-assistant/internal/pkg/validator"
)

type stubStore struct {
	manifests []entity.SourceManifest
	deleteErr error
	cleared   bool
}

func (s *stubStore) Manifests() []entity.SourceManifest { return s.manifests }

func (s *stubStore) Manifest(sourceID string) (entity.SourceManifest, bool) {
	for _, m := range s.manifests {
		if m.SourceID == sourceID {
			return m, true
		}
	}
	return entity.SourceManifest{}, false
}

func (s *stubStore) Delete(_ context.Context, sourceID string) (entity.SourceManifest, error) {
	for i, m := range s.manifests {
		if m.SourceID == sourceID {
			s.manifests = append(s.manifests[:i], s.manifests[i+1:]...)
			return m, s.deleteErr
		}
	}
	return entity.SourceManifest{}, entity.ErrManualNotFound
}

func (s *stubStore) Clear(context.Context) error {
	s.cleared = true
	s.manifests = nil
	return nil
}

func (s *stubStore) Rebuild(context.Context) error { return nil }

func (s *stubStore) Stats() entity.DatabaseStats {
	return entity.DatabaseStats{TotalManuals: len(s.manifests)}
}

func (s *stubStore) Verify() entity.VerifyReport {
	return entity.VerifyReport{IsConsistent: true, IsEmpty: len(s.manifests) == 0}
}

func (s *stubStore) IsEmpty() bool { return len(s.manifests) == 0 }

type stubIngester struct {
	docs []entity.Document
	err  error
}

func (s *stubIngester) Ingest(_ context.Context, doc entity.Document) (entity.SourceManifest, error) {
	if s.err != nil {
		return entity.SourceManifest{}, s.err
	}
	s.docs = append(s.docs, doc)
	return entity.SourceManifest{
		SourceID:   "new",
		Filename:   doc.Filename,
		Brand:      doc.Metadata.Brand,
		Model:      doc.Metadata.Model,
		Language:   doc.Metadata.Language,
		ChunkCount: 3,
	}, nil
}

// libraryIngester adds every ingested manual to the store after a delay.
type libraryIngester struct {
	store *stubStore
	delay time.Duration
	calls int
}

func (s *libraryIngester) Ingest(_ context.Context, doc entity.Document) (entity.SourceManifest, error) {
	s.calls++
	time.Sleep(s.delay)
	m := entity.SourceManifest{
		SourceID: fmt.Sprintf("new-%d", s.calls),
		Filename: doc.Filename,
		Brand:    doc.Metadata.Brand,
		Model:    doc.Metadata.Model,
		Language: doc.Metadata.Language,
	}
	s.store.manifests = append(s.store.manifests, m)
	return m, nil
}

type stubRetriever struct {
	filter entity.SearchFilter
	k      int
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, filter entity.SearchFilter, k int) ([]entity.RetrievedChunk, error) {
	s.filter, s.k = filter, k
	return []entity.RetrievedChunk{
		{Chunk: entity.Chunk{Text: "Replace the filter monthly.", Brand: "Acme", Model: "X1", Page: 2, Filename: "x1.pdf"}, Score: 0.1},
	}, nil
}

func library() []entity.SourceManifest {
	return []entity.SourceManifest{
		{SourceID: "a", Filename: "acme_x1.pdf", Brand: "Acme", Model: "X1", Language: "en"},
		{SourceID: "b", Filename: "acme_x2.pdf", Brand: "Acme", Model: "X2", Language: "en"},
		{SourceID: "c", Filename: "bosch.pdf", Brand: "Bosch", Model: "S4", Language: "de"},
	}
}

type fixture struct {
	uc        *ManualUsecase
	store     *stubStore
	ingester  *stubIngester
	retriever *stubRetriever
	dir       string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     &stubStore{manifests: library()},
		ingester:  &stubIngester{},
		retriever: &stubRetriever{},
		dir:       t.TempDir(),
	}
	v := validator.NewValidator(config.FileUploadConfig{Folder: f.dir, MaxFileSize: 1024})
	f.uc = NewUsecase(f.store, f.ingester, f.retriever, v, f.dir, 4)
	return f
}

func testContext(t *testing.T) context.Context {
	return ctxzap.ToContext(context.Background(), zaptest.NewLogger(t))
}

func TestUpload(t *testing.T) {
	ctx := testContext(t)

	t.Run("duplicate filename", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.uc.Upload(ctx, "acme_x1.pdf", []byte("data"), entity.ManualMetadata{Brand: "Other"})

		var dup *entity.DuplicateManualError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "a", dup.Existing.SourceID)
		assert.ErrorIs(t, err, entity.ErrDuplicateFilename)
		assert.Empty(t, f.ingester.docs)
	})

	t.Run("same brand model and language is cached", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.uc.Upload(ctx, "acme_x1_v2.pdf", []byte("data"), entity.ManualMetadata{Brand: "Acme", Model: "X1"})
		require.NoError(t, err)
		assert.True(t, res.Cached)
		assert.Equal(t, "a", res.Manual.SourceID)
		assert.Empty(t, f.ingester.docs)
	})

	t.Run("new manual is saved and ingested", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.uc.Upload(ctx, "my manual.txt", []byte("Replace the filter monthly."), entity.ManualMetadata{Brand: "Acme", Model: "X9"})
		require.NoError(t, err)
		assert.False(t, res.Cached)
		assert.Equal(t, "my_manual.txt", res.Manual.Filename)

		require.Len(t, f.ingester.docs, 1)
		assert.Equal(t, "en", f.ingester.docs[0].Metadata.Language)
		assert.Equal(t, entity.UnknownValue, f.ingester.docs[0].Metadata.ProductType)
		assert.FileExists(t, filepath.Join(f.dir, "my_manual.txt"))
	})

	t.Run("failed ingestion removes the file", func(t *testing.T) {
		f := newFixture(t)
		f.ingester.err = entity.ErrEmptyDocument
		_, err := f.uc.Upload(ctx, "empty.txt", []byte(" "), entity.ManualMetadata{})
		assert.ErrorIs(t, err, entity.ErrEmptyDocument)
		assert.NoFileExists(t, filepath.Join(f.dir, "empty.txt"))
	})

	t.Run("failed save keeps the file", func(t *testing.T) {
		f := newFixture(t)
		f.ingester.err = &entity.SaveError{Failed: entity.AllArtifacts, Err: errors.New("disk full")}
		_, err := f.uc.Upload(ctx, "kept.txt", []byte("Replace the filter monthly."), entity.ManualMetadata{Brand: "Acme", Model: "X9"})

		var saveErr *entity.SaveError
		require.ErrorAs(t, err, &saveErr)
		assert.FileExists(t, filepath.Join(f.dir, "kept.txt"))
	})

	t.Run("invalid extension", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.uc.Upload(ctx, "manual.exe", []byte("x"), entity.ManualMetadata{})
		assert.ErrorIs(t, err, entity.ErrInvalidExtension)
	})

	t.Run("too large", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.uc.Upload(ctx, "big.txt", make([]byte, 2048), entity.ManualMetadata{})
		assert.ErrorIs(t, err, entity.ErrFileTooLarge)
	})
}

func TestUpload_ConcurrentSameFile(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t)
	ingester := &libraryIngester{store: f.store, delay: 20 * time.Millisecond}
	f.uc.ingester = ingester

	const uploads = 4
	errs := make([]error, uploads)
	var wg sync.WaitGroup
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.uc.Upload(ctx, "same.pdf", []byte("data"), entity.ManualMetadata{Brand: "Acme", Model: "Z1"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var dup *entity.DuplicateManualError
		assert.ErrorAs(t, err, &dup)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, ingester.calls)

	stored := 0
	for _, m := range f.store.manifests {
		if m.Filename == "same.pdf" {
			stored++
		}
	}
	assert.Equal(t, 1, stored)
}

func TestDelete(t *testing.T) {
	ctx := testContext(t)

	t.Run("removes manual and file", func(t *testing.T) {
		f := newFixture(t)
		path := filepath.Join(f.dir, "bosch.pdf")
		require.NoError(t, os.WriteFile(path, []byte("pdf"), 0o644))

		res, err := f.uc.Delete(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, "Successfully deleted bosch.pdf (brand: Bosch, model: S4)", res.Message)
		assert.False(t, res.DatabaseEmpty)
		assert.NoFileExists(t, path)
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.uc.Delete(ctx, "missing")
		assert.ErrorIs(t, err, entity.ErrManualNotFound)
	})

	t.Run("partial save is accepted", func(t *testing.T) {
		f := newFixture(t)
		f.store.deleteErr = &entity.SaveError{Failed: []entity.Artifact{entity.ArtifactIndex}, Err: errors.New("disk full")}
		_, err := f.uc.Delete(ctx, "a")
		assert.NoError(t, err)
	})

	t.Run("total save failure is reported", func(t *testing.T) {
		f := newFixture(t)
		f.store.deleteErr = &entity.SaveError{Failed: entity.AllArtifacts, Err: errors.New("read-only")}
		_, err := f.uc.Delete(ctx, "a")
		var saveErr *entity.SaveError
		assert.ErrorAs(t, err, &saveErr)
	})
}

func TestBrandsAndModels(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{"Acme", "Bosch"}, f.uc.Brands())
	assert.Equal(t, []string{"S4", "X1", "X2"}, f.uc.Models(""))
	assert.Equal(t, []string{"X1", "X2"}, f.uc.Models("Acme"))
	assert.Empty(t, f.uc.Models("Nobody"))
}

func TestDebugSearch(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t)

	_, err := f.uc.DebugSearch(ctx, &entity.DebugSearchRequest{})
	assert.ErrorIs(t, err, entity.ErrMissingField)

	previews, err := f.uc.DebugSearch(ctx, &entity.DebugSearchRequest{Query: "filter", Brand: "Acme", Model: "X1"})
	require.NoError(t, err)
	require.Len(t, previews, 1)
	assert.Equal(t, 1, previews[0].Rank)
	assert.Equal(t, "Replace the filter monthly.", previews[0].Preview)
	assert.Equal(t, entity.SearchFilter{Brand: "Acme", Model: "X1"}, f.retriever.filter)
	assert.Equal(t, 4, f.retriever.k)
}

func TestDownload(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.Download("missing")
	assert.ErrorIs(t, err, entity.ErrManualNotFound)

	_, err = f.uc.Download("a")
	assert.ErrorIs(t, err, entity.ErrManualNotFound, "manifest without a stored file")

	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "acme_x1.pdf"), []byte("pdf"), 0o644))
	file, err := f.uc.Download("a")
	require.NoError(t, err)
	assert.Equal(t, "acme_x1.pdf", file.Filename)
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.uc.Clear(testContext(t)))
	assert.True(t, f.store.cleared)
	assert.Empty(t, f.uc.List())
}
