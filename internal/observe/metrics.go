// Package observe provides application-wide observability primitives for
// Inkbridge: OpenTelemetry metrics, distributed tracing, and structured
// logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Inkbridge metrics.
const meterName = "github.com/arcveil/inkbridge"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ChunkDuration tracks the time spent translating a single chunk,
	// including the provider call and Pass A merge.
	ChunkDuration metric.Float64Histogram

	// ChapterDuration tracks end-to-end chapter translation latency, from
	// the start of translation through persisting the chapter.
	ChapterDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// EntitiesDiscovered counts new glossary entries merged from chunk
	// responses. Use with attribute: attribute.String("category", ...)
	EntitiesDiscovered metric.Int64Counter

	// PotentialDuplicates counts cross-category or translation conflicts
	// detected during chunk merge or the database-wide audit. Use with
	// attribute: attribute.String("source", "merge"|"audit")
	PotentialDuplicates metric.Int64Counter

	// ChaptersTranslated counts chapters successfully committed to the
	// archive. Use with attribute: attribute.String("book_id", ...)
	ChaptersTranslated metric.Int64Counter

	// QueueWorkerFailures counts queue items the background worker could
	// not translate and left in place for retry.
	QueueWorkerFailures metric.Int64Counter

	// --- Gauges ---

	// QueueDepth tracks the number of chapters currently waiting in the
	// translation queue.
	QueueDepth metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for chunk
// and chapter translation latencies, which run from a few seconds to several
// minutes rather than the sub-second range typical of request/response APIs.
var latencyBuckets = []float64{
	0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ChunkDuration, err = m.Float64Histogram("inkbridge.chunk.duration",
		metric.WithDescription("Latency of translating a single chunk, including the provider call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ChapterDuration, err = m.Float64Histogram("inkbridge.chapter.duration",
		metric.WithDescription("End-to-end chapter translation latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("inkbridge.provider.requests",
		metric.WithDescription("Total provider API requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("inkbridge.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.EntitiesDiscovered, err = m.Int64Counter("inkbridge.entities.discovered",
		metric.WithDescription("Total new glossary entries merged from chunk responses, by category."),
	); err != nil {
		return nil, err
	}
	if met.PotentialDuplicates, err = m.Int64Counter("inkbridge.entities.potential_duplicates",
		metric.WithDescription("Total cross-category or translation conflicts detected, by source."),
	); err != nil {
		return nil, err
	}
	if met.ChaptersTranslated, err = m.Int64Counter("inkbridge.chapters.translated",
		metric.WithDescription("Total chapters successfully committed to the archive, by book."),
	); err != nil {
		return nil, err
	}
	if met.QueueWorkerFailures, err = m.Int64Counter("inkbridge.queue.worker_failures",
		metric.WithDescription("Total queue items the background worker failed to translate."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.QueueDepth, err = m.Int64UpDownCounter("inkbridge.queue.depth",
		metric.WithDescription("Number of chapters currently waiting in the translation queue."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("inkbridge.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordEntityDiscovered is a convenience method that records a newly merged
// glossary entry.
func (m *Metrics) RecordEntityDiscovered(ctx context.Context, category string) {
	m.EntitiesDiscovered.Add(ctx, 1,
		metric.WithAttributes(attribute.String("category", category)),
	)
}

// RecordPotentialDuplicate is a convenience method that records a detected
// conflict, tagged by whether it came from a live chunk merge or the
// database-wide audit.
func (m *Metrics) RecordPotentialDuplicate(ctx context.Context, source string) {
	m.PotentialDuplicates.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordChapterTranslated is a convenience method that records a chapter
// committed to the archive.
func (m *Metrics) RecordChapterTranslated(ctx context.Context, bookID string) {
	m.ChaptersTranslated.Add(ctx, 1,
		metric.WithAttributes(attribute.String("book_id", bookID)),
	)
}
