package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricStructgrepCacheHits   = "structgrep.cache.hits"
	metricStructgrepCacheMisses = "structgrep.cache.misses"
)

// CacheStatsProvider reports cumulative hit/miss counts for one cache, such
// as pkg/cache's blob cache consulted while walking a git tree.
type CacheStatsProvider interface {
	CacheHits() int64
	CacheMisses() int64
}

// RegisterCacheMetrics registers observable gauges reporting hits and
// misses for up to two caches, labeled "blob" and "diff" by the "cache"
// attribute. Either provider may be nil, in which case its label is never
// observed.
func RegisterCacheMetrics(mt metric.Meter, blob, diff CacheStatsProvider) error {
	hits, err := mt.Int64ObservableGauge(metricStructgrepCacheHits,
		metric.WithDescription("Cumulative cache hits by cache"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", metricStructgrepCacheHits, err)
	}

	misses, err := mt.Int64ObservableGauge(metricStructgrepCacheMisses,
		metric.WithDescription("Cumulative cache misses by cache"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", metricStructgrepCacheMisses, err)
	}

	_, err = mt.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		observeCacheStats(o, hits, misses, "blob", blob)
		observeCacheStats(o, hits, misses, "diff", diff)

		return nil
	}, hits, misses)
	if err != nil {
		return fmt.Errorf("register cache metrics callback: %w", err)
	}

	return nil
}

func observeCacheStats(o metric.Observer, hits, misses metric.Int64Observable, label string, provider CacheStatsProvider) {
	if provider == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrCache, label))
	o.ObserveInt64(hits, provider.CacheHits(), attrs)
	o.ObserveInt64(misses, provider.CacheMisses(), attrs)
}
