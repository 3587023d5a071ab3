// SPDX-License-Identifier: MIT

// Package observe holds the node's OpenTelemetry metric instruments and the
// provider setup that exposes them to Prometheus.
//
// Tests should build a [Metrics] with [NewMetrics] over their own
// [metric.MeterProvider] rather than use [DefaultMetrics].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "shoutnode"

// Metrics holds every instrument recorded by the node. All fields are safe
// for concurrent use.
type Metrics struct {
	// FramesSent counts telemetry frames handed to the sink successfully.
	FramesSent metric.Int64Counter

	// SinkErrors counts telemetry frames the sink failed to deliver.
	SinkErrors metric.Int64Counter

	// WindowsRejected counts spectrum windows that failed validation.
	WindowsRejected metric.Int64Counter

	// Commands counts dispatched commands. Attribute: command.
	Commands metric.Int64Counter

	// UnknownCommands counts tokens that did not decode to a command.
	UnknownCommands metric.Int64Counter

	// SoundLevel records the estimated level of each analysed window.
	SoundLevel metric.Float64Histogram

	// DominantFrequency records the dominant frequency of each window.
	DominantFrequency metric.Float64Histogram

	// StepDuration tracks the time spent in one controller step.
	StepDuration metric.Float64Histogram

	// Clients tracks connected WebSocket telemetry clients.
	Clients metric.Int64UpDownCounter

	meter metric.Meter
}

var (
	levelBuckets     = []float64{20, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120}
	frequencyBuckets = []float64{50, 100, 200, 400, 800, 1600, 3200, 6400, 12800}
	stepBuckets      = []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01}
)

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	if met.FramesSent, err = m.Int64Counter("shoutnode.telemetry.frames",
		metric.WithDescription("Telemetry frames delivered to the sink."),
	); err != nil {
		return nil, err
	}
	if met.SinkErrors, err = m.Int64Counter("shoutnode.telemetry.sink_errors",
		metric.WithDescription("Telemetry frames the sink failed to deliver."),
	); err != nil {
		return nil, err
	}
	if met.WindowsRejected, err = m.Int64Counter("shoutnode.analysis.windows_rejected",
		metric.WithDescription("Spectrum windows rejected by validation."),
	); err != nil {
		return nil, err
	}
	if met.Commands, err = m.Int64Counter("shoutnode.playback.commands",
		metric.WithDescription("Commands dispatched to the playback arbiter by command."),
	); err != nil {
		return nil, err
	}
	if met.UnknownCommands, err = m.Int64Counter("shoutnode.playback.unknown_commands",
		metric.WithDescription("Command tokens that were not recognised."),
	); err != nil {
		return nil, err
	}

	if met.SoundLevel, err = m.Float64Histogram("shoutnode.analysis.sound_level",
		metric.WithDescription("Estimated sound pressure level per window."),
		metric.WithUnit("dB"),
		metric.WithExplicitBucketBoundaries(levelBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DominantFrequency, err = m.Float64Histogram("shoutnode.analysis.dominant_frequency",
		metric.WithDescription("Dominant frequency per window."),
		metric.WithUnit("Hz"),
		metric.WithExplicitBucketBoundaries(frequencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StepDuration, err = m.Float64Histogram("shoutnode.node.step.duration",
		metric.WithDescription("Time spent in one controller step."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stepBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Clients, err = m.Int64UpDownCounter("shoutnode.transport.clients",
		metric.WithDescription("Connected WebSocket telemetry clients."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built on the global
// meter provider. Panics if instrument creation fails.
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

// RecordWindow records the acoustic measurement of one window.
func (m *Metrics) RecordWindow(ctx context.Context, dbSPL, frequencyHz float64) {
	m.SoundLevel.Record(ctx, dbSPL)
	m.DominantFrequency.Record(ctx, frequencyHz)
}

// RecordCommand counts one dispatched command by its token.
func (m *Metrics) RecordCommand(ctx context.Context, token string) {
	m.Commands.Add(ctx, 1, metric.WithAttributes(attribute.String("command", token)))
}

// ObserveGatedBlocks exports fn as the number of input blocks held back by
// the noise gate. fn is called on every collection.
func (m *Metrics) ObserveGatedBlocks(fn func() uint64) error {
	_, err := m.meter.Int64ObservableCounter("shoutnode.audio.gated_blocks",
		metric.WithDescription("Input blocks held back by the noise gate."),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(fn()))
			return nil
		}),
	)
	return err
}
