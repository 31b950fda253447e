package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/corey/symdex/internal/logging"
)

const meterName = "github.com/corey/symdex/orchestrator"

// Metric names.
const (
	MetricFiles     = "symdex_files_extracted_total"
	MetricFailures  = "symdex_extraction_failures_total"
	MetricSymbols   = "symdex_symbols_extracted_total"
	MetricCacheHits = "symdex_document_cache_hits_total"
	MetricDuration  = "symdex_extraction_duration_seconds"
)

type metrics struct {
	files     metric.Int64Counter
	failures  metric.Int64Counter
	symbols   metric.Int64Counter
	cacheHits metric.Int64Counter
	duration  metric.Float64Histogram
}

// newMetrics registers instruments on provider, or on the global provider
// when nil. Instruments that fail to register are logged and skipped.
func newMetrics(provider metric.MeterProvider) *metrics {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)
	ctx := context.Background()
	m := &metrics{}
	var err error

	if m.files, err = meter.Int64Counter(MetricFiles,
		metric.WithDescription("Files that produced a symbol batch")); err != nil {
		logging.Warn(ctx, "failed to create files counter", logging.Fields{"error": err.Error()})
	}
	if m.failures, err = meter.Int64Counter(MetricFailures,
		metric.WithDescription("Files that failed, by error kind")); err != nil {
		logging.Warn(ctx, "failed to create failures counter", logging.Fields{"error": err.Error()})
	}
	if m.symbols, err = meter.Int64Counter(MetricSymbols,
		metric.WithDescription("Symbols emitted in batches")); err != nil {
		logging.Warn(ctx, "failed to create symbols counter", logging.Fields{"error": err.Error()})
	}
	if m.cacheHits, err = meter.Int64Counter(MetricCacheHits,
		metric.WithDescription("Extractions served from a cached syntax tree")); err != nil {
		logging.Warn(ctx, "failed to create cache hit counter", logging.Fields{"error": err.Error()})
	}
	if m.duration, err = meter.Float64Histogram(MetricDuration,
		metric.WithDescription("Parse plus extract duration per file"),
		metric.WithUnit("s")); err != nil {
		logging.Warn(ctx, "failed to create duration histogram", logging.Fields{"error": err.Error()})
	}
	return m
}

func (m *metrics) recordSuccess(ctx context.Context, language string, symbols int, cached bool, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("language", language))
	if m.files != nil {
		m.files.Add(ctx, 1, attrs)
	}
	if m.symbols != nil {
		m.symbols.Add(ctx, int64(symbols), attrs)
	}
	if cached && m.cacheHits != nil {
		m.cacheHits.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, d.Seconds(), attrs)
	}
}

func (m *metrics) recordFailure(ctx context.Context, language string, kind ErrorKind) {
	if m.failures == nil {
		return
	}
	m.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("language", language),
		attribute.String("kind", string(kind)),
	))
}
