package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/entity"
)

// TurnRepository is the durable turn log. Turns are returned oldest first.
type TurnRepository interface {
	AppendTurn(ctx context.Context, sessionID string, turn entity.Turn) error
	ListTurns(ctx context.Context, sessionID string, limit int) ([]entity.Turn, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Sessions keeps one Memory per session id. Idle sessions expire from the
// cache; with a repository, an expired session is rebuilt from its stored
// turns on next use.
type Sessions struct {
	mu    sync.Mutex
	cfg   Config
	cache *cache.Cache
	repo  TurnRepository
}

func NewSessions(cfg Config, ttl, cleanupInterval time.Duration, repo TurnRepository) *Sessions {
	return &Sessions{
		cfg:   cfg,
		cache: cache.New(ttl, cleanupInterval),
		repo:  repo,
	}
}

// Get returns the session's memory, creating it when needed.
func (s *Sessions) Get(ctx context.Context, sessionID string) (*Memory, error) {
	mem, _, err := s.load(ctx, sessionID, true)
	return mem, err
}

// Lookup returns the memory of a known session or ErrSessionNotFound.
func (s *Sessions) Lookup(ctx context.Context, sessionID string) (*Memory, error) {
	mem, found, err := s.load(ctx, sessionID, false)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, entity.ErrSessionNotFound
	}
	return mem, nil
}

func (s *Sessions) load(ctx context.Context, sessionID string, create bool) (*Memory, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.cache.Get(sessionID); ok {
		mem := v.(*Memory)
		s.cache.SetDefault(sessionID, mem)
		return mem, true, nil
	}

	mem := New(s.cfg)
	found := false
	if s.repo != nil {
		turns, err := s.repo.ListTurns(ctx, sessionID, mem.cfg.MaxHistory)
		if err != nil {
			return nil, false, fmt.Errorf("list turns: %w", err)
		}
		for _, t := range turns {
			mem.Append(t)
		}
		found = len(turns) > 0
		if found {
			ctxzap.Info(ctx, "session memory restored",
				zap.String("session_id", sessionID),
				zap.Int("turns", len(turns)),
			)
		}
	}

	if !found && !create {
		return nil, false, nil
	}
	s.cache.SetDefault(sessionID, mem)
	return mem, found, nil
}

// Record adds a turn to the session's memory and appends it to the turn
// log. A turn log failure is logged and does not fail the call. A memory
// whose session was cleared meanwhile is left as is, so the session is not
// brought back.
func (s *Sessions) Record(ctx context.Context, sessionID string, mem *Memory, input, response string, meta entity.TurnMetadata) entity.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mem.isDiscarded() {
		ctxzap.Info(ctx, "session cleared before the turn was recorded",
			zap.String("session_id", sessionID),
		)
		return entity.Turn{Timestamp: mem.now(), UserInput: input, Response: response, Metadata: meta}
	}

	turn := mem.AddTurn(input, response, meta)
	s.cache.SetDefault(sessionID, mem)

	if s.repo != nil {
		if err := s.repo.AppendTurn(ctx, sessionID, turn); err != nil {
			ctxzap.Warn(ctx, "failed to persist conversation turn",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}
	return turn
}

// Clear forgets the session's memory and stored turns.
func (s *Sessions) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.cache.Get(sessionID); ok {
		mem := v.(*Memory)
		mem.Clear()
		mem.discard()
	}
	s.cache.Delete(sessionID)

	if s.repo != nil {
		if err := s.repo.DeleteSession(ctx, sessionID); err != nil {
			return fmt.Errorf("delete stored turns: %w", err)
		}
	}
	return nil
}

// Active is the number of sessions currently cached.
func (s *Sessions) Active() int {
	return s.cache.ItemCount()
}
