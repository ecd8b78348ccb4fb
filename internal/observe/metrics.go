// Package observe provides application-wide observability primitives for
// meetscribe: OpenTelemetry metrics, structured logging helpers, and HTTP
// middleware that ties them together.
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

// meterName is the instrumentation scope name used for all meetscribe metrics.
const meterName = "github.com/MrWong99/meetscribe"

// Recording outcome values for [Metrics.RecordRecording].
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency, including
	// chunking for oversize audio.
	STTDuration metric.Float64Histogram

	// DiarizeDuration tracks speaker-assignment latency.
	DiarizeDuration metric.Float64Histogram

	// SummaryDuration tracks TL;DR generation latency, including the
	// map-reduce calls for long transcripts.
	SummaryDuration metric.Float64Histogram

	// --- Counters ---

	// RecordingsProcessed counts pipeline runs. Use with attribute:
	//   attribute.String("status", StatusOK|StatusError)
	RecordingsProcessed metric.Int64Counter

	// SummaryFailures counts summariser failures that were isolated (the
	// transcript was still delivered, without a TL;DR).
	SummaryFailures metric.Int64Counter

	// ActivityEvents counts speaker-activity events received from the
	// recorder feed.
	ActivityEvents metric.Int64Counter

	// --- Gauges ---

	// ActiveRecordings tracks the number of recordings currently being
	// processed.
	ActiveRecordings metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Stage
// latencies range from milliseconds (diarization) to minutes (chunked
// transcription of a long meeting).
var latencyBuckets = []float64{
	0.01, 0.05, 0.25, 1, 5, 15, 60, 180, 600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("meetscribe.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DiarizeDuration, err = m.Float64Histogram("meetscribe.diarize.duration",
		metric.WithDescription("Latency of speaker assignment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SummaryDuration, err = m.Float64Histogram("meetscribe.summary.duration",
		metric.WithDescription("Latency of TL;DR generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.RecordingsProcessed, err = m.Int64Counter("meetscribe.recordings.processed",
		metric.WithDescription("Total pipeline runs by status."),
	); err != nil {
		return nil, err
	}
	if met.SummaryFailures, err = m.Int64Counter("meetscribe.summary.failures",
		metric.WithDescription("Total isolated summariser failures."),
	); err != nil {
		return nil, err
	}
	if met.ActivityEvents, err = m.Int64Counter("meetscribe.activity.events",
		metric.WithDescription("Total speaker-activity events received from the recorder feed."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRecordings, err = m.Int64UpDownCounter("meetscribe.active_recordings",
		metric.WithDescription("Number of recordings currently being processed."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("meetscribe.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
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

// RecordRecording records one finished pipeline run with its outcome.
func (m *Metrics) RecordRecording(ctx context.Context, status string) {
	m.RecordingsProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordSummaryFailure records an isolated summariser failure.
func (m *Metrics) RecordSummaryFailure(ctx context.Context) {
	m.SummaryFailures.Add(ctx, 1)
}

// RecordActivityEvent records one speaker-activity event received from the
// recorder feed.
func (m *Metrics) RecordActivityEvent(ctx context.Context) {
	m.ActivityEvents.Add(ctx, 1)
}
