// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	applog "shoutnode/internal/log"
	"shoutnode/internal/observe"

	"github.com/gorilla/websocket"
)

const (
	broadcastQueue = 256
	writeWait      = time.Second
)

// ErrTransportClosed is returned by Send after Close.
var ErrTransportClosed = errors.New("transport: closed")

// WebSocketTransport broadcasts telemetry lines to every connected client
// at /ws and serves the metrics exposition at /metrics.
type WebSocketTransport struct {
	addr      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]struct{}
	clientsMu sync.Mutex
	broadcast chan []byte
	done      chan struct{}
	closeOnce sync.Once
	server    *http.Server
	mux       *http.ServeMux
	metrics   *observe.Metrics
}

// NewWebSocketTransport builds the handlers and starts the broadcast loop.
// Call ListenAndServe to accept connections on addr.
func NewWebSocketTransport(addr string, metrics *observe.Metrics) *WebSocketTransport {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	wst := &WebSocketTransport{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // dashboards are served from elsewhere
			},
		},
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan []byte, broadcastQueue),
		done:      make(chan struct{}),
		mux:       http.NewServeMux(),
		metrics:   metrics,
	}
	wst.mux.HandleFunc("/ws", wst.handleWebSocket)
	wst.mux.Handle("/metrics", observe.Handler())
	wst.server = &http.Server{
		Addr:              addr,
		Handler:           wst.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go wst.handleBroadcasts()
	return wst
}

// Handler exposes the mux, mainly for tests.
func (wst *WebSocketTransport) Handler() http.Handler {
	return wst.mux
}

// ListenAndServe serves until Close is called or the listener fails. It
// returns nil at once when Close has already run.
func (wst *WebSocketTransport) ListenAndServe() error {
	applog.Infof("WebSocketTransport: Listening on %s (/ws, /metrics)", wst.addr)
	if err := wst.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = struct{}{}
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	wst.metrics.Clients.Add(r.Context(), 1)
	applog.Infof("WebSocketTransport: Client connected, total: %d", total)

	// Clients never send; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.drop(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	if ok {
		conn.Close()
		wst.metrics.Clients.Add(context.Background(), -1)
		applog.Infof("WebSocketTransport: Client disconnected, total: %d", total)
	}
}

// ClientCount returns the number of connected clients.
func (wst *WebSocketTransport) ClientCount() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case msg := <-wst.broadcast:
			wst.clientsMu.Lock()
			conns := make([]*websocket.Conn, 0, len(wst.clients))
			for c := range wst.clients {
				conns = append(conns, c)
			}
			wst.clientsMu.Unlock()

			for _, c := range conns {
				_ = c.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					applog.Warnf("WebSocketTransport: Error sending to client: %v", err)
					wst.drop(c)
				}
			}
		}
	}
}

// Send queues line for broadcast. The line is copied; when the queue is
// full the line is dropped rather than blocking the control loop.
func (wst *WebSocketTransport) Send(line []byte) error {
	select {
	case <-wst.done:
		return ErrTransportClosed
	default:
	}

	msg := append([]byte(nil), line...)
	select {
	case wst.broadcast <- msg:
	default:
		applog.Debugf("WebSocketTransport: Broadcast queue full, dropping frame")
	}
	return nil
}

// Close disconnects every client and shuts the server down.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		applog.Infof("WebSocketTransport: Closing server")
		close(wst.done)

		wst.clientsMu.Lock()
		conns := make([]*websocket.Conn, 0, len(wst.clients))
		for c := range wst.clients {
			conns = append(conns, c)
		}
		wst.clientsMu.Unlock()

		for _, c := range conns {
			wst.drop(c)
		}
		err = wst.server.Close()
	})
	return err
}

var _ Transport = (*WebSocketTransport)(nil)
