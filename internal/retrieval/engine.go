package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/entity"
)

const (
	strictOversample = 10
	globalOversample = 50
	globalPoolCap    = 200
	candidateFactor  = 3
	dedupPrefix      = 200
	DefaultTopK      = 4
)

type Searcher interface {
	Search(ctx context.Context, vector []float32, k int) ([]entity.SearchHit, error)
	Manifests() []entity.SourceManifest
	Len() int
}

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) []float32
}

// Engine runs filtered similarity search with re-ranking over the store.
type Engine struct {
	store    Searcher
	embedder QueryEmbedder
	strict   Scorer
	global   Scorer
	topK     int
}

type Option func(*Engine)

// WithScorers replaces the scorers of the filtered and unfiltered paths.
func WithScorers(strict, global Scorer) Option {
	return func(e *Engine) {
		e.strict = strict
		e.global = global
	}
}

func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

func NewEngine(store Searcher, embedder QueryEmbedder, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		embedder: embedder,
		strict:   NewProgramScorer(),
		global:   NewMatchScorer(),
		topK:     DefaultTopK,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type candidate struct {
	hit   entity.SearchHit
	score float32
}

// Retrieve returns up to k chunks for query. A brand or model filter is
// strict: only chunks of manuals matching it exactly are returned, and no
// match means no results.
func (e *Engine) Retrieve(ctx context.Context, query string, filter entity.SearchFilter, k int) ([]entity.RetrievedChunk, error) {
	if k <= 0 {
		k = e.topK
	}
	filter.Brand = strings.TrimSpace(filter.Brand)
	filter.Model = strings.TrimSpace(filter.Model)

	total := e.store.Len()
	if total == 0 {
		ctxzap.Debug(ctx, "retrieval skipped, knowledge base is empty")
		return nil, nil
	}

	var (
		keep   func(sourceID string) bool
		pool   int
		scorer Scorer
	)
	if filter.IsStrict() {
		allowed := matchingSources(e.store.Manifests(), filter)
		if len(allowed) == 0 {
			ctxzap.Info(ctx, "no manuals match filter",
				zap.String("brand", filter.Brand),
				zap.String("model", filter.Model),
			)
			return nil, nil
		}
		keep = func(id string) bool { return allowed[id] }
		pool = min(k*strictOversample, total)
		scorer = e.strict
	} else {
		deleted := deletedSources(e.store.Manifests())
		keep = func(id string) bool { return !deleted[id] }
		pool = min(k*globalOversample, total, globalPoolCap)
		scorer = e.global
	}

	vector := e.embedder.EmbedQuery(ctx, query)
	hits, err := e.store.Search(ctx, vector, pool)
	if err != nil {
		return nil, fmt.Errorf("search store: %w", err)
	}

	candidates := make([]candidate, 0, len(hits))
	for _, h := range hits {
		if !keep(h.Chunk.SourceID) {
			continue
		}
		candidates = append(candidates, candidate{
			hit:   h,
			score: scorer.Score(h.Score, query, h.Chunk.Text),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score < candidates[j].score
	})

	results := selectResults(candidates, k)

	ctxzap.Debug(ctx, "retrieval completed",
		zap.Bool("strict", filter.IsStrict()),
		zap.Int("pool", pool),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// selectResults takes up to k candidates from the best k*3, skipping any
// whose opening text repeats an earlier one.
func selectResults(candidates []candidate, k int) []entity.RetrievedChunk {
	limit := min(len(candidates), k*candidateFactor)
	seen := make(map[string]struct{}, limit)
	results := make([]entity.RetrievedChunk, 0, k)

	for _, c := range candidates[:limit] {
		key := prefix(c.hit.Chunk.Text, dedupPrefix)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		results = append(results, entity.RetrievedChunk{
			Chunk:         c.hit.Chunk,
			Score:         c.score,
			ContextBefore: c.hit.Chunk.PreviewBefore,
			ContextAfter:  c.hit.Chunk.PreviewAfter,
		})
		if len(results) >= k {
			break
		}
	}
	return results
}

func matchingSources(manifests []entity.SourceManifest, filter entity.SearchFilter) map[string]bool {
	out := make(map[string]bool)
	for _, m := range manifests {
		if m.IsDeleted {
			continue
		}
		if filter.Brand != "" && strings.TrimSpace(m.Brand) != filter.Brand {
			continue
		}
		if filter.Model != "" && strings.TrimSpace(m.Model) != filter.Model {
			continue
		}
		out[m.SourceID] = true
	}
	return out
}

func deletedSources(manifests []entity.SourceManifest) map[string]bool {
	out := make(map[string]bool)
	for _, m := range manifests {
		if m.IsDeleted {
			out[m.SourceID] = true
		}
	}
	return out
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
