package state

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

// ErrNotFound is returned when a chat has no stored preferences.
var ErrNotFound = errors.New("telegram preferences not found")

// Preferences are per-chat hints passed to every conversation turn.
type Preferences struct {
	Brand     string    `json:"brand,omitempty"`
	Model     string    `json:"model,omitempty"`
	Language  string    `json:"language,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Storage defines the interface for telegram preference persistence
type Storage interface {
	Get(ctx context.Context, chatID int64) (*Preferences, error)
	Set(ctx context.Context, chatID int64, prefs *Preferences) error
	Delete(ctx context.Context, chatID int64) error
}

// CacheStorage keeps preferences in memory and drops chats idle for ttl.
type CacheStorage struct {
	cache *cache.Cache
}

var _ Storage = &CacheStorage{}

func NewCacheStorage(ttl, cleanupInterval time.Duration) *CacheStorage {
	return &CacheStorage{cache: cache.New(ttl, cleanupInterval)}
}

func (s *CacheStorage) Get(_ context.Context, chatID int64) (*Preferences, error) {
	v, ok := s.cache.Get(key(chatID))
	if !ok {
		return nil, ErrNotFound
	}
	prefs := *v.(*Preferences)
	return &prefs, nil
}

func (s *CacheStorage) Set(_ context.Context, chatID int64, prefs *Preferences) error {
	stored := *prefs
	s.cache.SetDefault(key(chatID), &stored)
	return nil
}

func (s *CacheStorage) Delete(_ context.Context, chatID int64) error {
	s.cache.Delete(key(chatID))
	return nil
}

func key(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
