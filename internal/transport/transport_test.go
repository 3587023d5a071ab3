// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shoutnode/internal/observe"
	"shoutnode/internal/telemetry"
	"shoutnode/pkg/utils"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	require.NoError(t, err)
	return m
}

func TestFanoutDeliversToAll(t *testing.T) {
	a := &utils.MockTransport{}
	b := &utils.MockTransport{Err: errors.New("down")}
	c := &utils.MockTransport{}
	f := NewFanout(a, b)
	f.Add(c)
	assert.Equal(t, 3, f.Len())

	err := f.Send([]byte("line\n"))
	assert.ErrorContains(t, err, "down")
	assert.Len(t, a.Lines(), 1)
	assert.Len(t, c.Lines(), 1, "a failing transport must not block the rest")

	require.NoError(t, f.Close())
	assert.True(t, a.Closed)
	assert.True(t, c.Closed)
	assert.Zero(t, f.Len())
}

func TestLoggingTransportNeverFails(t *testing.T) {
	lt := NewLoggingTransport()
	enc := telemetry.NewEncoder()
	assert.NoError(t, lt.Send(enc.Encode(telemetry.Frame{DbSPL: 40, FrequencyHz: 440})))
	assert.NoError(t, lt.Send([]byte("garbage")))
	assert.NoError(t, lt.Close())
}

func TestWebSocketBroadcast(t *testing.T) {
	wst := NewWebSocketTransport("", testMetrics(t))
	srv := httptest.NewServer(wst.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = wst.Close() })

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return wst.ClientCount() == 1 }, time.Second, time.Millisecond)

	line := []byte("eyJnYWluIjoxfQ==\n")
	require.NoError(t, wst.Send(line))
	line[0] = 'X' // Send must have copied

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	kind, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.Equal(t, "eyJnYWluIjoxfQ==\n", string(msg))

	conn.Close()
	require.Eventually(t, func() bool { return wst.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestWebSocketServesMetrics(t *testing.T) {
	wst := NewWebSocketTransport("", testMetrics(t))
	t.Cleanup(func() { _ = wst.Close() })

	rec := httptest.NewRecorder()
	wst.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
}

func TestWebSocketSendAfterClose(t *testing.T) {
	wst := NewWebSocketTransport("", testMetrics(t))
	require.NoError(t, wst.Close())
	require.NoError(t, wst.Close())
	assert.ErrorIs(t, wst.Send([]byte("x")), ErrTransportClosed)
}

func TestWebSocketListenAfterClose(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0", testMetrics(t))
	require.NoError(t, wst.Close())

	done := make(chan error, 1)
	go func() { done <- wst.ListenAndServe() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		_ = wst.server.Shutdown(context.Background())
		t.Fatal("ListenAndServe kept serving after Close")
	}
}

func TestWebSocketCloseStopsServing(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0", testMetrics(t))

	done := make(chan error, 1)
	go func() { done <- wst.ListenAndServe() }()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, wst.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ListenAndServe did not return after Close")
	}
}
