// Package app wires configuration into the running service components.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prompt-general/healthscore/internal/activity"
	"github.com/prompt-general/healthscore/internal/aggregator"
	"github.com/prompt-general/healthscore/internal/cache"
	"github.com/prompt-general/healthscore/internal/config"
	"github.com/prompt-general/healthscore/internal/customer"
	"github.com/prompt-general/healthscore/internal/customersuccess"
	"github.com/prompt-general/healthscore/internal/health"
	"github.com/prompt-general/healthscore/internal/kafka"
	"github.com/prompt-general/healthscore/internal/metrics"
	"github.com/prompt-general/healthscore/internal/scoring"
)

type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Cache   *cache.Layer
	Service *customersuccess.Service
	Health  *health.HealthChecker

	closers []func() error
}

// NewCache builds the cache layer for cfg. computeTimeout bounds a shared view
// computation. The returned close function releases the backend.
func NewCache(cfg config.CacheConfig, computeTimeout time.Duration, m *metrics.Metrics, logger *slog.Logger) (*cache.Layer, func() error) {
	var (
		backend cache.Cache
		closeFn = func() error { return nil }
	)
	switch cfg.Backend {
	case config.BackendRedis:
		rc := cache.NewRedisCache(cache.RedisOptions{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
		backend, closeFn = rc, rc.Close
	default:
		backend = cache.NewMemoryCache(10 * time.Minute)
	}

	layer := cache.NewLayer(backend, cache.LayerOptions{
		Namespace:  cfg.Namespace,
		TTL:        cfg.TTL,
		DefaultTTL: cfg.DefaultTTL,
		OpTimeout:  cfg.OpTimeout,

		ComputeTimeout: computeTimeout,
	}, m, logger)
	return layer, closeFn
}

// New opens both sources, the cache and, when enabled, the alert producer.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.RequireSources(); err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
		Health:  health.NewHealthChecker(10 * time.Second),
	}

	scorer, err := scoring.NewScorer(cfg.Scoring)
	if err != nil {
		return nil, err
	}

	customerDB, err := customer.OpenPostgres(ctx, cfg.Sources.CustomerDSN, cfg.Sources.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, customerDB.Close)
	customers := customer.NewPostgresRepository(customerDB)
	a.Health.Register(health.DatabaseCheck("customers_db", customers.Ping))

	activityDB, err := activity.OpenMySQL(ctx, cfg.Sources.ActivityDSN, cfg.Sources.MaxOpenConns)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, activityDB.Close)
	act := activity.NewMySQLRepository(activityDB)
	a.Health.Register(health.DatabaseCheck("activity_db", act.Ping))

	layer, closeCache := NewCache(cfg.Cache, cfg.Sources.Timeout, a.Metrics, logger)
	a.Cache = layer
	a.closers = append(a.closers, closeCache)
	a.Health.Register(health.CacheCheck(layer.Ping))

	var producer kafka.Producer
	if cfg.Kafka.Enabled {
		producer, err = kafka.NewProducer(cfg.Kafka)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, producer.Close)

		topics := kafka.NewTopicManager(cfg.Kafka.Brokers, logger)
		if cfg.Kafka.CreateTopics {
			if err := topics.CreateTopics(ctx, kafka.AlertTopic(cfg.Kafka)); err != nil {
				a.Close()
				return nil, err
			}
		}
		a.Health.Register(health.KafkaCheck(topics.Ping))
	}

	var interval time.Duration
	if cfg.Monitor.Enabled {
		interval = cfg.Monitor.Interval
	}

	agg := aggregator.New(customers, act, cfg.Sources.Timeout, a.Metrics, logger)
	a.Service = customersuccess.NewService(agg, scorer, layer, producer, customersuccess.Config{
		MonitorInterval: interval,
		AlertTopic:      cfg.Kafka.Topic,
	}, a.Metrics, logger)

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
