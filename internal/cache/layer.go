package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/prompt-general/healthscore/internal/metrics"
	"github.com/prompt-general/healthscore/internal/window"
)

// LayerOptions configures a Layer.
type LayerOptions struct {
	Namespace string
	// TTL holds the expiry per view; views missing from it use DefaultTTL.
	TTL        map[string]time.Duration
	DefaultTTL time.Duration
	// OpTimeout bounds each backend call. Zero means no extra bound.
	OpTimeout time.Duration
	// ComputeTimeout bounds a shared computation, which outlives the callers
	// waiting on it. Zero selects defaultComputeTimeout.
	ComputeTimeout time.Duration
}

const defaultComputeTimeout = time.Minute

// Layer puts a Cache in front of view computations. Backend failures are
// logged and counted, then the view is computed directly.
type Layer struct {
	backend Cache
	opts    LayerOptions
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewLayer(backend Cache, opts LayerOptions, m *metrics.Metrics, logger *slog.Logger) *Layer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Namespace == "" {
		opts.Namespace = "healthscore"
	}
	if opts.ComputeTimeout <= 0 {
		opts.ComputeTimeout = defaultComputeTimeout
	}
	return &Layer{
		backend: backend,
		opts:    opts,
		metrics: m,
		logger:  logger,
	}
}

// Key returns the cache key of view over w.
func (l *Layer) Key(view string, w window.Window) string {
	return Key(l.opts.Namespace, view, w)
}

// TTL returns the expiry used for view.
func (l *Layer) TTL(view string) time.Duration {
	if ttl, ok := l.opts.TTL[view]; ok {
		return ttl
	}
	return l.opts.DefaultTTL
}

// GetOrCompute returns the JSON encoding of view over w, from the backend when
// present, otherwise from compute. Concurrent misses on one key share a single
// computation. The returned slice must not be modified.
func (l *Layer) GetOrCompute(ctx context.Context, view string, w window.Window, compute func(context.Context) (any, error)) ([]byte, error) {
	key := l.Key(view, w)

	data, found, err := l.get(ctx, key)
	if err != nil {
		l.metrics.CacheError("get")
		l.logger.Warn("cache get failed, computing directly",
			slog.String("view", view), slog.String("key", key), slog.String("err", err.Error()))
	} else if found {
		l.metrics.CacheHit(view)
		return data, nil
	}
	l.metrics.CacheMiss(view)

	// The flight is detached from the caller that started it so the other
	// waiters are not failed by its cancellation. Each caller still returns
	// as soon as its own context is done.
	ch := l.group.DoChan(key, func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.opts.ComputeTimeout)
		defer cancel()

		started := time.Now()
		value, err := compute(cctx)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", view, err)
		}
		l.metrics.ObserveCompute(view, time.Since(started))

		if err := l.set(cctx, key, payload, l.TTL(view)); err != nil {
			l.metrics.CacheError("set")
			l.logger.Warn("cache set failed",
				slog.String("view", view), slog.String("key", key), slog.String("err", err.Error()))
		}
		return payload, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// ClearAll removes every key in the namespace.
func (l *Layer) ClearAll(ctx context.Context) (int, error) {
	return l.deletePrefix(ctx, l.opts.Namespace+":")
}

// ClearPrefix removes every window variant of view.
func (l *Layer) ClearPrefix(ctx context.Context, view string) (int, error) {
	return l.deletePrefix(ctx, l.opts.Namespace+":"+view+":")
}

func (l *Layer) Ping(ctx context.Context) error {
	ctx, cancel := l.opCtx(ctx)
	defer cancel()
	return l.backend.Ping(ctx)
}

func (l *Layer) deletePrefix(ctx context.Context, prefix string) (int, error) {
	ctx, cancel := l.opCtx(ctx)
	defer cancel()
	n, err := l.backend.DeletePrefix(ctx, prefix)
	if err != nil {
		l.metrics.CacheError("delete")
		return n, fmt.Errorf("clear %q: %w", prefix, err)
	}
	l.logger.Info("cache cleared", slog.String("prefix", prefix), slog.Int("removed", n))
	return n, nil
}

func (l *Layer) get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := l.opCtx(ctx)
	defer cancel()
	return l.backend.Get(ctx, key)
}

func (l *Layer) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := l.opCtx(ctx)
	defer cancel()
	return l.backend.Set(ctx, key, value, ttl)
}

func (l *Layer) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.opts.OpTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.opts.OpTimeout)
}
