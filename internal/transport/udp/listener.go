// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"

	applog "shoutnode/internal/log"
)

const maxDatagram = 64 * 1024

// Listener receives datagrams on a local UDP port.
type Listener struct {
	conn *net.UDPConn
}

// Listen binds addr (":port" or "host:port").
func Listen(addr string) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP listen address '%s': %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on '%s': %w", addr, err)
	}
	applog.Infof("UDP Listener: Listening on %s", conn.LocalAddr())
	return &Listener{conn: conn}, nil
}

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Serve calls handle with each datagram until ctx is done or the listener
// is closed. A trailing newline is stripped. handle must not retain the
// slice.
func (l *Listener) Serve(ctx context.Context, handle func(payload []byte)) error {
	go func() {
		<-ctx.Done()
		l.conn.Close()
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("udp read: %w", err)
		}
		handle(bytes.TrimRight(buf[:n], "\r\n"))
	}
}

// Close stops Serve.
func (l *Listener) Close() error {
	return l.conn.Close()
}
