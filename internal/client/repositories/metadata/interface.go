// Package metadata is the client's durable key/value store. The session
// keeps its token and screen name here between runs.
package metadata

import (
	"context"
)

type Repository interface {
	// Get returns the value under key; ok is false when there is none.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// SetMany upserts all pairs atomically.
	SetMany(ctx context.Context, values map[string]string) error
	// Delete removes the keys atomically. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	List(ctx context.Context) (map[string]string, error)
}
