// config.go defines the internal configuration object and the set of
// functional options New accepts. A generic Option keeps callbacks
// type-safe against the concrete user-data type U chosen by the caller.
//
// Domain knobs (time range, step, block descriptors) live on CacheTemplate
// and BlockTemplate instead — this file only carries ambient knobs
// (logging, metrics) that never affect cache semantics.
//
// © 2025 omnicache authors. MIT License.
package omnicache

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures ambient behavior of a Cache. It never influences the
// cache's data model — only observability.
type Option[U any] func(*config[U])

type config[U any] struct {
	logger   *zap.Logger
	registry *prometheus.Registry
}

func defaultConfig[U any]() *config[U] {
	return &config[U]{
		logger: zap.NewNop(),
	}
}

// WithLogger plugs an external zap.Logger. The cache never logs on the
// per-sample hot path; it logs only block-add, a range change that frees
// the samples, and a consolidation that drops every sample at once. Array
// growth, ordinary consolidation sweeps and deserialization refusals are
// not logged.
func WithLogger[U any](l *zap.Logger) Option[U] {
	return func(c *config[U]) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection for the cache
// instance. Passing nil disables metrics (default).
func WithMetrics[U any](reg *prometheus.Registry) Option[U] {
	return func(c *config[U]) {
		c.registry = reg
	}
}

func applyOptions[U any](cfg *config[U], opts []Option[U]) {
	for _, opt := range opts {
		opt(cfg)
	}
}
