// Package observe provides application-wide observability primitives for
// voxloop: OpenTelemetry metrics and the Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all voxloop metrics.
const meterName = "github.com/MrWong99/voxloop"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks the silence gap between the last transcript
	// fragment and utterance emission.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks the full reply-stream latency per turn.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks per-sentence synthesis latency.
	TTSDuration metric.Float64Histogram

	// TurnDuration tracks end-to-end latency from utterance emission to the
	// last synthesized chunk of the turn.
	TurnDuration metric.Float64Histogram

	// --- Counters ---

	// Utterances counts completed user utterances. Use with attribute:
	//   attribute.String("cause", "final"|"timeout")
	Utterances metric.Int64Counter

	// Sentences counts sentence units flushed to synthesis. Use with
	// attribute: attribute.String("kind", "terminal"|"trailing"|"fallback")
	Sentences metric.Int64Counter

	// LLMRetries counts retried language-model requests.
	LLMRetries metric.Int64Counter

	// SynthFailures counts sentences skipped because synthesis failed.
	SynthFailures metric.Int64Counter

	// PlaybackUnderruns counts playback buffer underruns (Playing → Filling
	// transitions).
	PlaybackUnderruns metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// PlaybackFill tracks the playback ring fill level in samples.
	PlaybackFill metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("voxloop.stt.duration",
		metric.WithDescription("Silence gap between last fragment and utterance emission."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("voxloop.llm.duration",
		metric.WithDescription("Latency of the full reply stream per turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("voxloop.tts.duration",
		metric.WithDescription("Latency of per-sentence speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("voxloop.turn.duration",
		metric.WithDescription("End-to-end latency from utterance to last synthesized chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Utterances, err = m.Int64Counter("voxloop.utterances",
		metric.WithDescription("Completed user utterances by emission cause."),
	); err != nil {
		return nil, err
	}
	if met.Sentences, err = m.Int64Counter("voxloop.sentences",
		metric.WithDescription("Sentence units flushed to synthesis by kind."),
	); err != nil {
		return nil, err
	}
	if met.LLMRetries, err = m.Int64Counter("voxloop.llm.retries",
		metric.WithDescription("Retried language-model requests."),
	); err != nil {
		return nil, err
	}
	if met.SynthFailures, err = m.Int64Counter("voxloop.synth.failures",
		metric.WithDescription("Sentences skipped because synthesis failed."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackUnderruns, err = m.Int64Counter("voxloop.playback.underruns",
		metric.WithDescription("Playback buffer underruns."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voxloop.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.PlaybackFill, err = m.Int64UpDownCounter("voxloop.playback.fill",
		metric.WithDescription("Playback ring fill level in samples."),
		metric.WithUnit("{sample}"),
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
