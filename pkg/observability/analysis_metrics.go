package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricFilesScannedTotal = "structgrep.scan.files.total"
	metricMatchesTotal      = "structgrep.scan.matches.total"
	metricFileScanDuration  = "structgrep.scan.file.duration.seconds"
	metricCacheHitsTotal    = "structgrep.scan.cache.hits.total"
	metricCacheMissesTotal  = "structgrep.scan.cache.misses.total"

	attrCache = "cache"
)

// ScanMetrics holds OTel instruments for one search/rewrite run: files
// walked, matches a RuleCore produced, per-file parse+match duration, and
// the blob cache's hit rate (pkg/cache).
type ScanMetrics struct {
	filesScannedTotal metric.Int64Counter
	matchesTotal      metric.Int64Counter
	fileScanDuration  metric.Float64Histogram
	cacheHits         metric.Int64Counter
	cacheMisses       metric.Int64Counter
}

// ScanStats holds the statistics for a single scan or rewrite run,
// decoupled from the CLI/MCP types that accumulate it.
type ScanStats struct {
	FilesScanned    int64
	Matches         int
	FileDurations   []time.Duration
	BlobCacheHits   int64
	BlobCacheMisses int64
}

// NewScanMetrics creates scan metric instruments from the given meter.
func NewScanMetrics(mt metric.Meter) (*ScanMetrics, error) {
	files, err := mt.Int64Counter(metricFilesScannedTotal,
		metric.WithDescription("Total files scanned"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesScannedTotal, err)
	}

	matches, err := mt.Int64Counter(metricMatchesTotal,
		metric.WithDescription("Total rule matches found"),
		metric.WithUnit("{match}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricMatchesTotal, err)
	}

	fileDur, err := mt.Float64Histogram(metricFileScanDuration,
		metric.WithDescription("Per-file parse and match duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFileScanDuration, err)
	}

	hits, err := mt.Int64Counter(metricCacheHitsTotal,
		metric.WithDescription("Blob cache hits by type"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheHitsTotal, err)
	}

	misses, err := mt.Int64Counter(metricCacheMissesTotal,
		metric.WithDescription("Blob cache misses by type"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheMissesTotal, err)
	}

	return &ScanMetrics{
		filesScannedTotal: files,
		matchesTotal:      matches,
		fileScanDuration:  fileDur,
		cacheHits:         hits,
		cacheMisses:       misses,
	}, nil
}

// RecordRun records scan statistics for a completed search/rewrite run.
// Safe to call on a nil receiver (no-op).
func (sm *ScanMetrics) RecordRun(ctx context.Context, stats ScanStats) {
	if sm == nil {
		return
	}

	sm.filesScannedTotal.Add(ctx, stats.FilesScanned)
	sm.matchesTotal.Add(ctx, int64(stats.Matches))

	for _, d := range stats.FileDurations {
		sm.fileScanDuration.Record(ctx, d.Seconds())
	}

	blobAttrs := metric.WithAttributes(attribute.String(attrCache, "blob"))
	sm.cacheHits.Add(ctx, stats.BlobCacheHits, blobAttrs)
	sm.cacheMisses.Add(ctx, stats.BlobCacheMisses, blobAttrs)
}
