// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"sync"
)

// Transport delivers encoded telemetry lines. Implementations must be safe
// for concurrent use and must not retain line after Send returns.
type Transport interface {
	Send(line []byte) error
	Close() error
}

// Fanout sends every line to all of its transports. A failing transport
// does not stop delivery to the others.
type Fanout struct {
	mu         sync.RWMutex
	transports []Transport
}

// NewFanout returns a Fanout over ts.
func NewFanout(ts ...Transport) *Fanout {
	return &Fanout{transports: ts}
}

// Add registers another transport.
func (f *Fanout) Add(t Transport) {
	f.mu.Lock()
	f.transports = append(f.transports, t)
	f.mu.Unlock()
}

// Len returns the number of transports.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.transports)
}

// Send delivers line to every transport and joins their errors.
func (f *Fanout) Send(line []byte) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var errs []error
	for _, t := range f.transports {
		if err := t.Send(line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport and joins their errors.
func (f *Fanout) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for _, t := range f.transports {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	f.transports = nil
	return errors.Join(errs...)
}

var _ Transport = (*Fanout)(nil)
