// SPDX-License-Identifier: MIT

// Package serial runs the node's line-oriented link: telemetry lines go out,
// command lines come in.
package serial

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	applog "shoutnode/internal/log"

	bugst "go.bug.st/serial"
)

const (
	// DefaultQueue is the number of received command lines held for Poll.
	DefaultQueue = 16
	maxLineLen   = 256
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("serial: link closed")

// openPort opens the device in raw mode. Replaceable in tests.
var openPort = func(path string, mode *bugst.Mode) (io.ReadWriteCloser, error) {
	return bugst.Open(path, mode)
}

// Link frames a byte stream into lines. Reads run on their own goroutine
// (ReadLoop) and are handed to the control loop through a bounded queue;
// Poll never blocks.
type Link struct {
	rw     io.ReadWriteCloser
	name   string
	lines  chan string
	wmu    sync.Mutex
	closed bool
}

// Open opens a serial device at baud, 8N1, raw mode (no echo, no line
// editing). queue bounds the number of pending command lines.
func Open(path string, baud, queue int) (*Link, error) {
	mode := &bugst.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	port, err := openPort(path, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", path, err)
	}
	applog.Infof("Serial: Opened %s at %d baud", path, baud)
	return NewLink(port, path, queue), nil
}

// NewLink wraps rw. queue bounds the number of pending command lines.
func NewLink(rw io.ReadWriteCloser, name string, queue int) *Link {
	if queue < 1 {
		queue = DefaultQueue
	}
	return &Link{rw: rw, name: name, lines: make(chan string, queue)}
}

// ReadLoop reads lines until the stream ends, ctx is done or Close is
// called. Empty lines are skipped and lines longer than maxLineLen are
// discarded up to their newline. When the queue is full the pending lines
// are kept and the new one dropped.
func (l *Link) ReadLoop(ctx context.Context) error {
	r := bufio.NewReaderSize(l.rw, maxLineLen)
	discarding := false

	for {
		chunk, err := r.ReadSlice('\n')
		if ctx.Err() != nil {
			return nil
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			if !discarding {
				applog.Warnf("Serial: Discarding line longer than %d bytes on %s", maxLineLen, l.name)
				discarding = true
			}
			continue
		case discarding:
			// Tail of an over-long line.
			discarding = false
		default:
			l.enqueue(chunk)
		}

		if err != nil {
			if errors.Is(err, io.EOF) || l.isClosed() {
				applog.Debugf("Serial: Read loop on %s finished", l.name)
				return nil
			}
			return fmt.Errorf("serial: read %s: %w", l.name, err)
		}
	}
}

func (l *Link) enqueue(chunk []byte) {
	chunk = bytes.TrimRight(chunk, "\r\n")
	if len(chunk) == 0 {
		return
	}
	line := string(chunk)
	select {
	case l.lines <- line:
	default:
		applog.Warnf("Serial: Command queue full, dropping %q", line)
	}
}

// Poll returns the next received line, if any.
func (l *Link) Poll() (string, bool) {
	select {
	case line := <-l.lines:
		return line, true
	default:
		return "", false
	}
}

// Lines exposes received lines as a channel, for consumers that block.
func (l *Link) Lines() <-chan string {
	return l.lines
}

// Send writes one line. Callers are expected to pass the newline.
func (l *Link) Send(line []byte) error {
	l.wmu.Lock()
	defer l.wmu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if _, err := l.rw.Write(line); err != nil {
		return fmt.Errorf("serial: write %s: %w", l.name, err)
	}
	return nil
}

// SendLine writes s followed by a newline.
func (l *Link) SendLine(s string) error {
	return l.Send([]byte(s + "\n"))
}

func (l *Link) isClosed() bool {
	l.wmu.Lock()
	defer l.wmu.Unlock()
	return l.closed
}

// Close closes the underlying stream, which also ends ReadLoop.
func (l *Link) Close() error {
	l.wmu.Lock()
	defer l.wmu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	applog.Infof("Serial: Closing %s", l.name)
	return l.rw.Close()
}
