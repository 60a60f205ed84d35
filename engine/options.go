package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/spektr-org/spektr-olap/evaluator"
	"github.com/spektr-org/spektr-olap/metrics"
	"github.com/spektr-org/spektr-olap/scenario"
	"github.com/spektr-org/spektr-olap/scenario/store"
)

// ============================================================================
// ENGINE OPTIONS — Functional options for Execute() and NewSession()
// ============================================================================

// Option configures engine behavior via functional options pattern.
type Option func(*config)

type config struct {
	Scenario             *scenario.Scenario
	IgnoreInvalidMembers bool
	CacheSize            int
	Logger               *logrus.Logger
	Metrics              metrics.Recorder
	Store                store.Store
}

// WithScenario evaluates every cell through the writebacks of s.
func WithScenario(s *scenario.Scenario) Option {
	return func(c *config) {
		c.Scenario = s
	}
}

// WithIgnoreInvalidMembers resolves unknown members to null members instead
// of failing.
func WithIgnoreInvalidMembers(ignore bool) Option {
	return func(c *config) {
		c.IgnoreInvalidMembers = ignore
	}
}

// WithCacheSize bounds the per-query expression cache.
func WithCacheSize(n int) Option {
	return func(c *config) {
		c.CacheSize = n
	}
}

// WithLogger sets the logger. Defaults to logrus.StandardLogger().
func WithLogger(l *logrus.Logger) Option {
	return func(c *config) {
		c.Logger = l
	}
}

// WithMetrics sets the metrics recorder. Defaults to metrics.Nop.
func WithMetrics(r metrics.Recorder) Option {
	return func(c *config) {
		c.Metrics = r
	}
}

// WithStore sets where a Session persists its scenarios. Defaults to an
// in-memory store.
func WithStore(st store.Store) Option {
	return func(c *config) {
		c.Store = st
	}
}

// applyOptions creates a config from functional options.
func applyOptions(opts []Option) *config {
	cfg := &config{
		CacheSize: evaluator.DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	return cfg
}

func (c *config) evaluatorOptions() []evaluator.Option {
	return []evaluator.Option{
		evaluator.WithLogger(c.Logger),
		evaluator.WithMetrics(c.Metrics),
		evaluator.WithCacheSize(c.CacheSize),
	}
}
