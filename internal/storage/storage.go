// Package storage defines the durable key-value port used for session
// mappings and the authenticated user profile.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by KV.Get when the key has no stored value.
var ErrNotFound = errors.New("storage: key not found")

// KV is a durable key-value store. Values are opaque strings; callers own
// the key layout and any serialization of structured values.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
