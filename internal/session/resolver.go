// Package session maps local conversation IDs to backend-issued session IDs,
// persisting the mapping so a conversation can be resumed.
package session

import (
	"context"
	"fmt"

	"github.com/procureflow/assistant/internal/storage"
)

const keyPrefix = "adk_session_"

// Creator issues new backend sessions.
type Creator interface {
	CreateSession(ctx context.Context, userID string) (string, error)
}

// CreationError means the backend session could not be created or persisted.
// It propagates to the caller; no retry is attempted at this layer.
type CreationError struct {
	Err error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("failed to create backend session: %v", e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}

// Resolver is a read-through cache over the durable session mapping. Two
// near-simultaneous first messages for the same new local ID can race and
// each create a session; the last stored value wins. That is accepted, not
// an exactly-once guarantee.
type Resolver struct {
	store  storage.KV
	client Creator
}

// NewResolver creates a resolver over the given store and session creator.
func NewResolver(store storage.KV, client Creator) *Resolver {
	return &Resolver{store: store, client: client}
}

// Resolve returns the backend session ID for localID, creating and persisting
// one on first contact. The stored mapping is never regenerated once set.
func (r *Resolver) Resolve(ctx context.Context, localID, userID string) (string, error) {
	key := keyPrefix + localID

	stored, err := r.store.Get(ctx, key)
	if err == nil {
		return stored, nil
	}
	if err != storage.ErrNotFound {
		return "", fmt.Errorf("failed to read session mapping: %w", err)
	}

	sessionID, err := r.client.CreateSession(ctx, userID)
	if err != nil {
		return "", &CreationError{Err: err}
	}

	if err := r.store.Set(ctx, key, sessionID); err != nil {
		return "", &CreationError{Err: err}
	}

	return sessionID, nil
}

// Forget drops the stored mapping for localID, if any.
func (r *Resolver) Forget(ctx context.Context, localID string) error {
	return r.store.Delete(ctx, keyPrefix+localID)
}
