// Package cache stores computed views keyed by view name and window.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/prompt-general/healthscore/internal/window"
)

// Cache is a byte-oriented key/value backend with expiry.
type Cache interface {
	// Get returns the stored bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeletePrefix removes every key starting with prefix and returns how
	// many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Ping(ctx context.Context) error
}

// Key builds "<namespace>:<view>:<start|all>:<end|all>".
func Key(namespace, view string, w window.Window) string {
	start, end := w.Key()
	return strings.Join([]string{namespace, view, start, end}, ":")
}
