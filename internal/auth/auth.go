// Package auth holds the authenticated user identity, persisted in durable
// key-value storage so a restart keeps the session. The OAuth exchange itself
// happens elsewhere; this layer only stores its outcome.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/procureflow/assistant/internal/storage"
)

const userKey = "auth_user"

// User is the authenticated user's profile.
type User struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Picture  string `json:"picture,omitempty"`
}

// DisplayID picks the identifier used to scope backend sessions.
func (u *User) DisplayID() string {
	if u.Email != "" {
		return u.Email
	}
	if u.FullName != "" {
		return u.FullName
	}
	return "guest"
}

// Manager holds the current user and mirrors it to storage. There is one
// authenticated identity per process instance.
type Manager struct {
	mu      sync.RWMutex
	store   storage.KV
	logger  *slog.Logger
	current *User
}

// NewManager creates a manager over the given store.
func NewManager(store storage.KV, logger *slog.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// Load reads the stored profile at startup. A missing profile means logged
// out; a corrupt one is discarded and removed from storage.
func (m *Manager) Load(ctx context.Context) error {
	raw, err := m.store.Get(ctx, userKey)
	if err == storage.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read stored user: %w", err)
	}

	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		m.logger.Warn("discarding corrupt stored user profile", slog.String("error", err.Error()))
		return m.store.Delete(ctx, userKey)
	}

	m.mu.Lock()
	m.current = &user
	m.mu.Unlock()
	return nil
}

// Login stores the profile and makes it current.
func (m *Manager) Login(ctx context.Context, user User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := m.store.Set(ctx, userKey, string(raw)); err != nil {
		return fmt.Errorf("failed to persist user: %w", err)
	}

	m.mu.Lock()
	m.current = &user
	m.mu.Unlock()
	return nil
}

// Logout clears the current user and removes the stored profile.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	return m.store.Delete(ctx, userKey)
}

// Current returns the authenticated user, or nil when logged out.
func (m *Manager) Current() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil
	}
	user := *m.current
	return &user
}
