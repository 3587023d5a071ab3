// SPDX-License-Identifier: MIT
package observe

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestRecordWindow(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordWindow(ctx, 65.5, 440)
	m.RecordWindow(ctx, 70, 880)

	rm := collect(t, reader)
	for _, name := range []string{"shoutnode.analysis.sound_level", "shoutnode.analysis.dominant_frequency"} {
		met := findMetric(rm, name)
		require.NotNil(t, met, name)
		hist, ok := met.Data.(metricdata.Histogram[float64])
		require.True(t, ok, "%s is %T", name, met.Data)
		require.Len(t, hist.DataPoints, 1)
		assert.EqualValues(t, 2, hist.DataPoints[0].Count)
	}
}

func TestRecordCommand(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCommand(ctx, "pause")
	m.RecordCommand(ctx, "pause")
	m.RecordCommand(ctx, "init")

	met := findMetric(collect(t, reader), "shoutnode.playback.commands")
	require.NotNil(t, met)
	sum, ok := met.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("command"))
		counts[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"pause": 2, "init": 1}, counts)
}

func TestCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FramesSent.Add(ctx, 3)
	m.SinkErrors.Add(ctx, 1)
	m.Clients.Add(ctx, 2)
	m.Clients.Add(ctx, -1)

	rm := collect(t, reader)
	want := map[string]int64{
		"shoutnode.telemetry.frames":      3,
		"shoutnode.telemetry.sink_errors": 1,
		"shoutnode.transport.clients":     1,
	}
	for name, v := range want {
		met := findMetric(rm, name)
		require.NotNil(t, met, name)
		sum, ok := met.Data.(metricdata.Sum[int64])
		require.True(t, ok, name)
		require.Len(t, sum.DataPoints, 1)
		assert.Equal(t, v, sum.DataPoints[0].Value, name)
	}
}

func TestObserveGatedBlocks(t *testing.T) {
	m, reader := newTestMetrics(t)

	var gated uint64 = 4
	require.NoError(t, m.ObserveGatedBlocks(func() uint64 { return gated }))

	met := findMetric(collect(t, reader), "shoutnode.audio.gated_blocks")
	require.NotNil(t, met)
	sum, ok := met.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(4), sum.DataPoints[0].Value)

	gated = 9
	sum = findMetric(collect(t, reader), "shoutnode.audio.gated_blocks").Data.(metricdata.Sum[int64])
	assert.Equal(t, int64(9), sum.DataPoints[0].Value)
}

func TestInitProviderServesPrometheus(t *testing.T) {
	prev := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	shutdown, err := InitProvider(context.Background(), ProviderConfig{ServiceVersion: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	m, err := NewMetrics(otel.GetMeterProvider())
	require.NoError(t, err)
	m.FramesSent.Add(context.Background(), 1)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "shoutnode_telemetry_frames"), "exposition missing frames counter")
}
