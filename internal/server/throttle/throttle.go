// Package throttle counts failed attempts per key and tells callers when a
// key has used up its allowance for the current window.
package throttle

import (
	"context"
	"strings"
	"time"
)

// Limiter records attempts against a key. Hit reports whether the attempt
// may proceed and, when it may not, how long until it can.
type Limiter interface {
	Hit(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
	Clear(ctx context.Context, key string) error
}

// LoginKey builds the key for login attempts: the lowercased email plus the
// client address.
func LoginKey(email, ip string) string {
	return "login:" + strings.ToLower(strings.TrimSpace(email)) + "|" + ip
}

// Nop never throttles.
type Nop struct{}

func (Nop) Hit(context.Context, string) (bool, time.Duration, error) { return true, 0, nil }

func (Nop) Clear(context.Context, string) error { return nil }
