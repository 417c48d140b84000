package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCacheHits   = "odfcore.cache.hits"
	metricCacheMisses = "odfcore.cache.misses"
)

// CacheStatsProvider exposes cumulative hit/miss counters, implemented by
// pkg/cache.Cache[K, V]'s CacheHits and CacheMisses methods.
type CacheStatsProvider interface {
	CacheHits() int64
	CacheMisses() int64
}

// RegisterCacheMetrics registers async gauges that sample blocks' hit/miss
// counters on each collection, tagged cache="blocks" — suited to a cache
// whose lifetime outlives any single request and so doesn't fit the RED
// counters' per-call recording model. A nil provider reports no data
// points.
func RegisterCacheMetrics(mt metric.Meter, blocks CacheStatsProvider) error {
	hits, err := mt.Int64ObservableGauge(metricCacheHits,
		metric.WithDescription("Cumulative cache hits by cache name"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", metricCacheHits, err)
	}

	misses, err := mt.Int64ObservableGauge(metricCacheMisses,
		metric.WithDescription("Cumulative cache misses by cache name"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", metricCacheMisses, err)
	}

	blocksAttr := metric.WithAttributes(attribute.String(attrCache, "blocks"))

	_, err = mt.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		if blocks == nil {
			return nil
		}

		o.ObserveInt64(hits, blocks.CacheHits(), blocksAttr)
		o.ObserveInt64(misses, blocks.CacheMisses(), blocksAttr)

		return nil
	}, hits, misses)
	if err != nil {
		return fmt.Errorf("register cache metrics callback: %w", err)
	}

	return nil
}

const attrCache = "cache"
