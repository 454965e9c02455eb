package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/futig/manual-assistant/internal/entity"
)

const testDim = 3

// letterEmbedder maps a text to (len, vowels, spaces).
type letterEmbedder struct {
	err   error
	calls int
}

func (e *letterEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = textVector(t)
	}
	return out, nil
}

func (e *letterEmbedder) Model() string { return "letters" }

func textVector(t string) []float32 {
	var vowels, spaces float32
	for _, r := range t {
		switch r {
		case 'a', 'e', 'i', 'o', 'u':
			vowels++
		case ' ':
			spaces++
		}
	}
	return []float32{float32(len(t)), vowels, spaces}
}

func testSource(id string, texts ...string) (entity.SourceManifest, []entity.Chunk, [][]float32) {
	chunks := make([]entity.Chunk, len(texts))
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		chunks[i] = entity.Chunk{ID: id + "-" + t, Text: t, SourceID: id, Page: 1, ChunkIndexOnPage: i + 1}
		vectors[i] = textVector(t)
	}
	return entity.SourceManifest{SourceID: id, Filename: id + ".pdf", Brand: "Acme", Model: id}, chunks, vectors
}

func newTestStore(t *testing.T) (*Store, context.Context, *letterEmbedder) {
	t.Helper()
	emb := &letterEmbedder{}
	ctx := ctxzap.ToContext(context.Background(), zaptest.NewLogger(t))
	return NewStore(t.TempDir(), NewFlatIndex(testDim), emb), ctx, emb
}

func addSource(t *testing.T, ctx context.Context, s *Store, id string, texts ...string) entity.SourceManifest {
	t.Helper()
	m, chunks, vectors := testSource(id, texts...)
	added, err := s.Add(ctx, m, chunks, vectors)
	require.NoError(t, err)
	return added
}

func TestStore_Add(t *testing.T) {
	s, ctx, _ := newTestStore(t)

	a := addSource(t, ctx, s, "a", "one", "two")
	b := addSource(t, ctx, s, "b", "three", "four", "five")

	assert.Equal(t, entity.ChunkRange{Start: 0, End: 2}, a.ChunkRange)
	assert.Equal(t, entity.ChunkRange{Start: 2, End: 5}, b.ChunkRange)
	assert.Equal(t, 3, b.ChunkCount)
	assert.Equal(t, 5, s.Len())
	assert.Equal(t, 5, s.index.Len())
	assert.True(t, s.Verify().IsConsistent)

	t.Run("dimension mismatch leaves store untouched", func(t *testing.T) {
		m, chunks, _ := testSource("c", "six")
		_, err := s.Add(ctx, m, chunks, [][]float32{{1, 2}})

		var dimErr *entity.DimensionMismatchError
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, 5, s.Len())
		assert.Equal(t, 5, s.index.Len())
		_, ok := s.Manifest("c")
		assert.False(t, ok)
	})

	t.Run("chunk and vector counts must match", func(t *testing.T) {
		m, chunks, _ := testSource("d", "seven")
		_, err := s.Add(ctx, m, chunks, nil)
		assert.ErrorIs(t, err, entity.ErrInvalidParameter)
	})

	t.Run("duplicate source id", func(t *testing.T) {
		m, chunks, vectors := testSource("a", "again")
		_, err := s.Add(ctx, m, chunks, vectors)
		assert.ErrorIs(t, err, entity.ErrInvalidParameter)
	})
}

func TestStore_Search(t *testing.T) {
	s, ctx, _ := newTestStore(t)
	addSource(t, ctx, s, "a", "replace the filter monthly", "x")

	hits, err := s.Search(ctx, textVector("replace the filter monthly"), 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "replace the filter monthly", hits[0].Chunk.Text)
	assert.Equal(t, float32(0), hits[0].Score)
	assert.LessOrEqual(t, hits[0].Score, hits[1].Score)
}

func TestStore_Delete(t *testing.T) {
	s, ctx, emb := newTestStore(t)
	addSource(t, ctx, s, "a", "aa", "ab")
	addSource(t, ctx, s, "b", "ba", "bb", "bc")
	addSource(t, ctx, s, "c", "ca")

	deleted, err := s.Delete(ctx, "b")
	require.NoError(t, err)

	assert.Equal(t, "b", deleted.SourceID)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 3, s.index.Len())
	assert.Equal(t, 1, emb.calls)

	c, ok := s.Manifest("c")
	require.True(t, ok)
	assert.Equal(t, entity.ChunkRange{Start: 2, End: 3}, c.ChunkRange)
	a, _ := s.Manifest("a")
	assert.Equal(t, entity.ChunkRange{Start: 0, End: 2}, a.ChunkRange)

	chunks, err := s.Chunks("c")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "ca", chunks[0].Text)

	hits, err := s.Search(ctx, textVector("bb"), 3)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "b", h.Chunk.SourceID)
	}

	t.Run("unknown source", func(t *testing.T) {
		_, err := s.Delete(ctx, "missing")
		assert.ErrorIs(t, err, entity.ErrManualNotFound)
	})

	t.Run("embedding failure mutates nothing", func(t *testing.T) {
		emb.err = errors.New("provider down")
		defer func() { emb.err = nil }()

		_, err := s.Delete(ctx, "a")
		require.Error(t, err)
		_, ok := s.Manifest("a")
		assert.True(t, ok)
		assert.Equal(t, 3, s.Len())
		assert.Equal(t, 3, s.index.Len())
	})

	t.Run("last source leaves an empty store", func(t *testing.T) {
		_, err := s.Delete(ctx, "a")
		require.NoError(t, err)
		_, err = s.Delete(ctx, "c")
		require.NoError(t, err)
		assert.True(t, s.IsEmpty())
	})
}

func TestStore_PersistAndLoad(t *testing.T) {
	s, ctx, emb := newTestStore(t)
	addSource(t, ctx, s, "a", "aa", "ab")
	addSource(t, ctx, s, "b", "ba")

	for _, name := range []string{IndexFile, ChunksFile, ManifestsFile} {
		assert.FileExists(t, filepath.Join(s.dir, name))
	}

	t.Run("round trip", func(t *testing.T) {
		loaded := NewStore(s.dir, NewFlatIndex(testDim), emb)
		require.NoError(t, loaded.Load(ctx))

		assert.Equal(t, s.Manifests(), loaded.Manifests())
		assert.Equal(t, 3, loaded.Len())
		assert.False(t, loaded.NeedsRebuild())
		assert.True(t, loaded.Verify().IsConsistent)
	})

	t.Run("missing directory is an empty store", func(t *testing.T) {
		loaded := NewStore(filepath.Join(t.TempDir(), "nothing"), NewFlatIndex(testDim), emb)
		require.NoError(t, loaded.Load(ctx))
		assert.True(t, loaded.IsEmpty())
	})

	t.Run("dimension change needs rebuild", func(t *testing.T) {
		loaded := NewStore(s.dir, NewFlatIndex(testDim+1), emb)
		require.NoError(t, loaded.Load(ctx))
		assert.True(t, loaded.NeedsRebuild())
		assert.Equal(t, 0, loaded.Stats().IndexSize)
		assert.False(t, loaded.Verify().IsConsistent)
	})

	t.Run("missing index rebuilt on next add", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{ChunksFile, ManifestsFile} {
			data, err := os.ReadFile(filepath.Join(s.dir, name))
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
		}

		loaded := NewStore(dir, NewFlatIndex(testDim), emb)
		require.NoError(t, loaded.Load(ctx))
		require.True(t, loaded.NeedsRebuild())

		addSource(t, ctx, loaded, "c", "ca")
		assert.False(t, loaded.NeedsRebuild())
		assert.Equal(t, 4, loaded.index.Len())
		assert.True(t, loaded.Verify().IsConsistent)
	})

	t.Run("manifest range out of bounds is dropped", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{IndexFile, ChunksFile} {
			data, err := os.ReadFile(filepath.Join(s.dir, name))
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
		}
		manifests := map[string]entity.SourceManifest{}
		for _, m := range s.Manifests() {
			manifests[m.SourceID] = m
		}
		b := manifests["b"]
		b.End = 10
		manifests["b"] = b
		data, err := json.Marshal(manifests)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestsFile), data, 0o644))

		loaded := NewStore(dir, NewFlatIndex(testDim), emb)
		require.NoError(t, loaded.Load(ctx))
		require.Len(t, loaded.Manifests(), 1)
		assert.Equal(t, "a", loaded.Manifests()[0].SourceID)

		_, err = loaded.Delete(ctx, "b")
		assert.ErrorIs(t, err, entity.ErrManualNotFound)
		_, err = loaded.Delete(ctx, "a")
		assert.NoError(t, err)
	})

	t.Run("corrupt chunk file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ChunksFile), []byte("{"), 0o644))
		loaded := NewStore(dir, NewFlatIndex(testDim), emb)
		assert.Error(t, loaded.Load(ctx))
	})
}

func TestStore_SaveFailure(t *testing.T) {
	ctx := ctxzap.ToContext(context.Background(), zaptest.NewLogger(t))
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s := NewStore(filepath.Join(blocker, "db"), NewFlatIndex(testDim), &letterEmbedder{})
	m, chunks, vectors := testSource("a", "aa")
	added, err := s.Add(ctx, m, chunks, vectors)

	var saveErr *entity.SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.True(t, saveErr.Total())
	assert.Error(t, AcceptPartialSave(ctx, err))

	assert.Equal(t, "a", added.SourceID)
	assert.Equal(t, 1, s.Len())
}

func TestAcceptPartialSave(t *testing.T) {
	ctx := ctxzap.ToContext(context.Background(), zaptest.NewLogger(t))

	partial := &entity.SaveError{Failed: []entity.Artifact{entity.ArtifactChunks}, Err: errors.New("disk full")}
	assert.NoError(t, AcceptPartialSave(ctx, partial))

	other := errors.New("boom")
	assert.Equal(t, other, AcceptPartialSave(ctx, other))
	assert.NoError(t, AcceptPartialSave(ctx, nil))
}

func TestStore_Clear(t *testing.T) {
	s, ctx, emb := newTestStore(t)
	addSource(t, ctx, s, "a", "aa")

	require.NoError(t, s.Clear(ctx))
	assert.True(t, s.IsEmpty())
	assert.Empty(t, s.Manifests())

	loaded := NewStore(s.dir, NewFlatIndex(testDim), emb)
	require.NoError(t, loaded.Load(ctx))
	assert.True(t, loaded.IsEmpty())
	assert.True(t, loaded.Verify().IsConsistent)
}
