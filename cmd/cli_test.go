// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shoutnode/internal/analysis"
	"shoutnode/internal/audio"
	"shoutnode/internal/config"
	"shoutnode/internal/observe"
	"shoutnode/internal/transport"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestNodeFlagsOverrideConfig(t *testing.T) {
	opts := &nodeOptions{}
	root := buildRootCmd(&globalOptions{}, opts)
	require.NoError(t, root.ParseFlags([]string{
		"--device", "3",
		"--sample-rate", "48000",
		"--serial", "/dev/ttyACM1",
		"--record",
		"--output", "take.wav",
	}))

	cfg := config.Default()
	require.NoError(t, opts.apply(root, &cfg))
	assert.Equal(t, 3, cfg.Audio.InputDevice)
	assert.Equal(t, config.MinDeviceID, cfg.Audio.OutputDevice, "unset flags keep file values")
	assert.Equal(t, 48000.0, cfg.Audio.SampleRate)
	assert.Equal(t, "/dev/ttyACM1", cfg.Serial.Device)
	assert.True(t, cfg.Recording.Enabled)
	assert.Equal(t, "take.wav", opts.outputFile)
}

func TestNodeFlagsDefaultRecordingName(t *testing.T) {
	opts := &nodeOptions{}
	root := buildRootCmd(&globalOptions{}, opts)
	require.NoError(t, root.ParseFlags([]string{"--record"}))

	cfg := config.Default()
	require.NoError(t, opts.apply(root, &cfg))
	assert.True(t, strings.HasPrefix(opts.outputFile, filepath.Join(cfg.Recording.OutputDir, "recording-")))
	assert.True(t, strings.HasSuffix(opts.outputFile, ".wav"))
}

func TestNodeFlagsRejectInvalid(t *testing.T) {
	opts := &nodeOptions{}
	root := buildRootCmd(&globalOptions{}, opts)
	require.NoError(t, root.ParseFlags([]string{"--sample-rate", "1000"}))

	cfg := config.Default()
	assert.ErrorIs(t, opts.apply(root, &cfg), config.ErrInvalid)
}

func TestEchoRendersWAV(t *testing.T) {
	out := filepath.Join(t.TempDir(), "echo.wav")

	root := newRootCmd()
	root.SetArgs([]string{"echo", "--seconds", "0.1", "--output", out})
	require.NoError(t, root.ExecuteContext(context.Background()))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, 2, buf.Format.NumChannels)
	assert.Equal(t, config.DefaultSampleRate, buf.Format.SampleRate)

	// 0.1 s at 44.1 kHz rounded up to whole 512-frame blocks.
	assert.Equal(t, 9*config.DefaultFramesPerBuffer*2, len(buf.Data))
}

func TestEchoRejectsBadSeconds(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"echo", "--seconds", "0", "--output", filepath.Join(t.TempDir(), "x.wav")})
	assert.Error(t, root.ExecuteContext(context.Background()))
}

func TestMonitorRequiresSource(t *testing.T) {
	t.Setenv("ENV_SERIAL_DEVICE", "")
	root := newRootCmd()
	root.SetArgs([]string{"monitor"})
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--serial or --udp")
}

func TestPrintDevices(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printDevices(&buf, []audio.Device{
		{ID: 0, Name: "Built-in Mic", MaxInputChannels: 1, DefaultSampleRate: 44100},
	}))
	assert.Contains(t, buf.String(), "Available Audio Devices")
	assert.Contains(t, buf.String(), "[0] Built-in Mic (Input)")
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	require.NoError(t, err)
	return m
}

func TestOpenLinksClosesOnFailure(t *testing.T) {
	var ws *transport.WebSocketTransport
	orig := newWebSocketTransport
	t.Cleanup(func() { newWebSocketTransport = orig })
	newWebSocketTransport = func(addr string, m *observe.Metrics) *transport.WebSocketTransport {
		ws = orig(addr, m)
		return ws
	}

	fft, err := analysis.NewFFTProcessor(16, 44100, analysis.Hann)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Transport.WebSocketEnabled = true
	cfg.Transport.WebSocketAddr = "127.0.0.1:0"
	cfg.Transport.SpectrumEnabled = true
	cfg.Transport.SpectrumTarget = "missing-port"

	links, err := openLinks(&cfg, fft, testMetrics(t))
	require.Error(t, err)
	assert.Nil(t, links)
	require.NotNil(t, ws)
	assert.ErrorIs(t, ws.Send([]byte("x\n")), transport.ErrTransportClosed,
		"links opened before the failure are closed again")
}

func TestOpenLinksBuildsSpectrumPublisher(t *testing.T) {
	fft, err := analysis.NewFFTProcessor(16, 44100, analysis.Hann)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Transport.SpectrumEnabled = true
	cfg.Transport.SpectrumTarget = "127.0.0.1:9"

	links, err := openLinks(&cfg, fft, testMetrics(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = links.Close() })

	assert.NotNil(t, links.publisher)
	assert.Nil(t, links.ws)
	assert.Nil(t, links.serial)
	assert.Equal(t, 1, links.sink.Len(), "logging stands in when no link carries telemetry")
	assert.NoError(t, links.Close())
}
