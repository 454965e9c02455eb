package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/entity"
)

// Embedder re-embeds stored chunks during a rebuild.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Store owns the chunk sequence, the source manifests and the vector index,
// and keeps them positionally aligned: chunk i is vector i. Writers hold the
// lock through rebuild and save, so a search never sees a half-applied
// mutation.
type Store struct {
	mu           sync.RWMutex
	dir          string
	index        VectorIndex
	embedder     Embedder
	chunks       []entity.Chunk
	manifests    map[string]entity.SourceManifest
	needsRebuild bool
}

func NewStore(dir string, index VectorIndex, embedder Embedder) *Store {
	return &Store{
		dir:       dir,
		index:     index,
		embedder:  embedder,
		manifests: make(map[string]entity.SourceManifest),
	}
}

// Load reads the persisted triple. Missing files mean an empty store. An
// index that cannot be read, or whose size differs from the chunk count,
// marks the store as needing a rebuild instead of failing. Manifests whose
// chunk range falls outside the chunk sequence are dropped.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var chunks []entity.Chunk
	if _, err := readJSON(s.path(ChunksFile), &chunks); err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}
	manifests := make(map[string]entity.SourceManifest)
	if _, err := readJSON(s.path(ManifestsFile), &manifests); err != nil {
		return fmt.Errorf("load manifests: %w", err)
	}

	if err := s.loadIndex(ctx); err != nil {
		ctxzap.Warn(ctx, "vector index not loaded, starting with an empty index", zap.Error(err))
		if resetErr := s.index.Reset(ctx); resetErr != nil {
			return fmt.Errorf("reset index: %w", resetErr)
		}
	}

	for id, m := range manifests {
		if !m.Within(len(chunks)) {
			ctxzap.Warn(ctx, "dropping manifest with chunk range out of bounds",
				zap.String("file_id", id),
				zap.Int("start_idx", m.Start),
				zap.Int("end_idx", m.End),
				zap.Int("chunks", len(chunks)),
			)
			delete(manifests, id)
		}
	}

	s.chunks = chunks
	s.manifests = manifests
	s.needsRebuild = s.index.Len() != len(s.chunks)

	if s.needsRebuild {
		ctxzap.Warn(ctx, "index size does not match chunk count, rebuild required",
			zap.Int("index_size", s.index.Len()),
			zap.Int("chunks", len(s.chunks)),
		)
	}
	ctxzap.Info(ctx, "knowledge base loaded",
		zap.Int("chunks", len(s.chunks)),
		zap.Int("manuals", len(s.manifests)),
		zap.Int("index_size", s.index.Len()),
	)
	return nil
}

func (s *Store) loadIndex(ctx context.Context) error {
	f, err := os.Open(s.path(IndexFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	return s.index.Load(ctx, f)
}

// Add appends a source's chunks and vectors and records its manifest with
// the chunk range it landed on. Nothing changes if the vectors are rejected.
func (s *Store) Add(ctx context.Context, manifest entity.SourceManifest, chunks []entity.Chunk, vectors [][]float32) (entity.SourceManifest, error) {
	if len(chunks) != len(vectors) {
		return entity.SourceManifest{}, fmt.Errorf("%w: %d chunks but %d vectors", entity.ErrInvalidParameter, len(chunks), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.manifests[manifest.SourceID]; ok {
		return entity.SourceManifest{}, fmt.Errorf("%w: source id %s already stored", entity.ErrInvalidParameter, manifest.SourceID)
	}

	if s.needsRebuild {
		if err := s.rebuildLocked(ctx); err != nil {
			return entity.SourceManifest{}, fmt.Errorf("rebuild before add: %w", err)
		}
	}

	if err := s.index.Add(ctx, vectors); err != nil {
		return entity.SourceManifest{}, fmt.Errorf("add vectors: %w", err)
	}

	manifest.Start = len(s.chunks)
	manifest.End = manifest.Start + len(chunks)
	manifest.ChunkCount = len(chunks)
	s.chunks = append(s.chunks, chunks...)
	s.manifests[manifest.SourceID] = manifest

	ctxzap.Info(ctx, "source added",
		zap.String("file_id", manifest.SourceID),
		zap.String("filename", manifest.Filename),
		zap.Int("start_idx", manifest.Start),
		zap.Int("end_idx", manifest.End),
	)
	return manifest, s.saveLocked(ctx)
}

// Delete removes a source's chunk range, shifts later ranges left and
// rebuilds the index from the remaining chunks. The rebuild's embeddings
// are computed before anything is mutated.
func (s *Store) Delete(ctx context.Context, sourceID string) (entity.SourceManifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted, ok := s.manifests[sourceID]
	if !ok {
		return entity.SourceManifest{}, entity.ErrManualNotFound
	}
	if !deleted.Within(len(s.chunks)) {
		return entity.SourceManifest{}, fmt.Errorf("%w: chunk range [%d, %d) of %s outside %d chunks",
			entity.ErrInvalidParameter, deleted.Start, deleted.End, sourceID, len(s.chunks))
	}

	remaining := make([]entity.Chunk, 0, len(s.chunks)-deleted.Len())
	remaining = append(remaining, s.chunks[:deleted.Start]...)
	remaining = append(remaining, s.chunks[deleted.End:]...)

	if err := s.reindex(ctx, remaining); err != nil {
		return entity.SourceManifest{}, err
	}

	removed := deleted.Len()
	s.chunks = remaining
	delete(s.manifests, sourceID)
	for id, m := range s.manifests {
		if m.Start > deleted.Start {
			m.Start -= removed
			m.End -= removed
			s.manifests[id] = m
		}
	}

	ctxzap.Info(ctx, "source deleted",
		zap.String("file_id", sourceID),
		zap.Int("removed_chunks", removed),
		zap.Int("remaining_chunks", len(s.chunks)),
	)
	return deleted, s.saveLocked(ctx)
}

// Rebuild re-embeds every chunk and replaces the index.
func (s *Store) Rebuild(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rebuildLocked(ctx); err != nil {
		return err
	}
	return s.saveLocked(ctx)
}

func (s *Store) rebuildLocked(ctx context.Context) error {
	ctxzap.Info(ctx, "rebuilding vector index", zap.Int("chunks", len(s.chunks)))
	return s.reindex(ctx, s.chunks)
}

// reindex replaces the index contents with embeddings of chunks. A failure
// after the reset leaves the store flagged for rebuild.
func (s *Store) reindex(ctx context.Context, chunks []entity.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var vectors [][]float32
	if len(texts) > 0 {
		var err error
		vectors, err = s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks for rebuild: %w", err)
		}
	}

	if err := s.index.Reset(ctx); err != nil {
		s.needsRebuild = true
		return fmt.Errorf("reset index: %w", err)
	}
	if err := s.index.Add(ctx, vectors); err != nil {
		s.needsRebuild = true
		return fmt.Errorf("add rebuilt vectors: %w", err)
	}
	s.needsRebuild = false
	return nil
}

// Clear drops all sources, removes the persisted files and saves an empty
// state.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Reset(ctx); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	s.chunks = nil
	s.manifests = make(map[string]entity.SourceManifest)
	s.needsRebuild = false

	for _, name := range []string{IndexFile, ChunksFile, ManifestsFile} {
		if err := removeIfExists(s.path(name)); err != nil {
			ctxzap.Warn(ctx, "could not remove knowledge base file", zap.String("file", name), zap.Error(err))
		}
	}

	ctxzap.Info(ctx, "knowledge base cleared")
	return s.saveLocked(ctx)
}

// Search returns up to k chunks nearest to vector, ascending by squared L2
// distance. Index positions without a chunk are skipped.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]entity.SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	neighbors, err := s.index.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	hits := make([]entity.SearchHit, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Position < 0 || n.Position >= len(s.chunks) {
			continue
		}
		hits = append(hits, entity.SearchHit{
			Position: n.Position,
			Chunk:    s.chunks[n.Position],
			Score:    n.Distance,
		})
	}
	return hits, nil
}

// Len is the number of stored chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *Store) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isEmptyLocked()
}

func (s *Store) isEmptyLocked() bool {
	return len(s.chunks) == 0 && len(s.manifests) == 0 && s.index.Len() == 0
}

func (s *Store) NeedsRebuild() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.needsRebuild
}

func (s *Store) Manifest(sourceID string) (entity.SourceManifest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.manifests[sourceID]
	return m, ok
}

// Manifests returns all manifests ordered by chunk range.
func (s *Store) Manifests() []entity.SourceManifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifestsLocked()
}

func (s *Store) manifestsLocked() []entity.SourceManifest {
	out := make([]entity.SourceManifest, 0, len(s.manifests))
	for _, m := range s.manifests {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}

// Chunks returns a copy of a source's chunks.
func (s *Store) Chunks(sourceID string) ([]entity.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.manifests[sourceID]
	if !ok {
		return nil, entity.ErrManualNotFound
	}
	if m.Start < 0 || m.End > len(s.chunks) || m.Start > m.End {
		return nil, fmt.Errorf("manifest %s range [%d,%d) outside %d chunks", sourceID, m.Start, m.End, len(s.chunks))
	}
	return append([]entity.Chunk(nil), s.chunks[m.Start:m.End]...), nil
}

func (s *Store) Stats() entity.DatabaseStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsLocked()
}

func (s *Store) statsLocked() entity.DatabaseStats {
	byLanguage := make(map[string]int)
	for _, c := range s.chunks {
		lang := c.Language
		if lang == "" {
			lang = entity.DefaultLanguage
		}
		byLanguage[lang]++
	}

	manifests := s.manifestsLocked()
	summaries := make([]entity.ManualSummary, 0, len(manifests))
	for i := range manifests {
		summaries = append(summaries, manifests[i].ToSummary())
	}

	return entity.DatabaseStats{
		TotalChunks:         len(s.chunks),
		TotalManuals:        len(s.manifests),
		IndexSize:           s.index.Len(),
		ChunksByLanguage:    byLanguage,
		EmbeddingModel:      s.embedder.Model(),
		EmbeddingDimensions: s.index.Dimension(),
		NeedsRebuild:        s.needsRebuild,
		IsEmpty:             s.isEmptyLocked(),
		Manuals:             summaries,
	}
}

// Verify reports whether the index and chunk sequence agree.
func (s *Store) Verify() entity.VerifyReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := s.statsLocked()
	consistent := stats.TotalChunks == stats.IndexSize && stats.IsEmpty == (stats.TotalChunks == 0)
	return entity.VerifyReport{
		IsEmpty:      stats.IsEmpty,
		IsConsistent: consistent,
		Stats:        stats,
	}
}

// saveLocked writes the three artifacts independently. Any failure is
// reported as *entity.SaveError; in-memory state is kept either way.
func (s *Store) saveLocked(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &entity.SaveError{Failed: entity.AllArtifacts, Err: fmt.Errorf("create %s: %w", s.dir, err)}
	}

	writers := map[entity.Artifact]func() error{
		entity.ArtifactIndex: func() error {
			return writeFileAtomic(s.path(IndexFile), func(w io.Writer) error {
				return s.index.Save(w)
			})
		},
		entity.ArtifactChunks: func() error {
			chunks := s.chunks
			if chunks == nil {
				chunks = []entity.Chunk{}
			}
			return writeJSONAtomic(s.path(ChunksFile), chunks)
		},
		entity.ArtifactManifests: func() error {
			return writeJSONAtomic(s.path(ManifestsFile), s.manifests)
		},
	}

	var (
		failed []entity.Artifact
		errs   error
	)
	for _, artifact := range entity.AllArtifacts {
		if err := writers[artifact](); err != nil {
			failed = append(failed, artifact)
			errs = multierr.Append(errs, fmt.Errorf("save %s: %w", artifact, err))
		}
	}
	if len(failed) == 0 {
		ctxzap.Debug(ctx, "knowledge base saved", zap.String("dir", s.dir))
		return nil
	}
	return &entity.SaveError{Failed: failed, Err: errs}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// AcceptPartialSave logs a save that lost some but not all artifacts and
// returns nil for it. Any other error is returned unchanged.
func AcceptPartialSave(ctx context.Context, err error) error {
	var saveErr *entity.SaveError
	if !errors.As(err, &saveErr) || saveErr.Total() {
		return err
	}
	ctxzap.Warn(ctx, "knowledge base partially saved", zap.Error(saveErr))
	return nil
}
