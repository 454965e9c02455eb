package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const preferencesKey contextKey = "preferences"

// PreferencesFromContext retrieves Preferences from context if available
func PreferencesFromContext(ctx context.Context) (*Preferences, bool) {
	prefs, ok := ctx.Value(preferencesKey).(*Preferences)
	return prefs, ok
}

// ContextWithPreferences attaches Preferences to context for request-scoped caching
func ContextWithPreferences(ctx context.Context, prefs *Preferences) context.Context {
	return context.WithValue(ctx, preferencesKey, prefs)
}

// SessionID maps a Telegram chat to its conversation session.
func SessionID(chatID int64) string {
	return "tg-" + strconv.FormatInt(chatID, 10)
}

// Manager manages telegram chat preferences
type Manager struct {
	storage Storage
	now     func() time.Time
}

// NewManager creates a new state manager
func NewManager(storage Storage) *Manager {
	return &Manager{
		storage: storage,
		now:     time.Now,
	}
}

// Preferences returns stored preferences, or empty ones for a new chat.
// Preferences cached in ctx take precedence.
func (m *Manager) Preferences(ctx context.Context, chatID int64) (*Preferences, error) {
	if prefs, ok := PreferencesFromContext(ctx); ok {
		return prefs, nil
	}

	prefs, err := m.storage.Get(ctx, chatID)
	if errors.Is(err, ErrNotFound) {
		return &Preferences{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get telegram preferences from storage: %w", err)
	}
	return prefs, nil
}

// Update applies fn to the chat's preferences and saves the result.
func (m *Manager) Update(ctx context.Context, chatID int64, fn func(*Preferences)) (*Preferences, error) {
	prefs, err := m.storage.Get(ctx, chatID)
	if errors.Is(err, ErrNotFound) {
		prefs = &Preferences{}
	} else if err != nil {
		return nil, fmt.Errorf("get telegram preferences from storage: %w", err)
	}

	fn(prefs)
	prefs.Brand = strings.TrimSpace(prefs.Brand)
	prefs.Model = strings.TrimSpace(prefs.Model)
	prefs.Language = strings.ToLower(strings.TrimSpace(prefs.Language))
	prefs.UpdatedAt = m.now()

	if err := m.storage.Set(ctx, chatID, prefs); err != nil {
		return nil, fmt.Errorf("save telegram preferences to storage: %w", err)
	}
	return prefs, nil
}

// Reset removes the chat's preferences.
func (m *Manager) Reset(ctx context.Context, chatID int64) error {
	if err := m.storage.Delete(ctx, chatID); err != nil {
		return fmt.Errorf("delete telegram preferences from storage: %w", err)
	}
	return nil
}
