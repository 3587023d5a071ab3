// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	applog "shoutnode/internal/log"
)

// MagnitudeSource exposes the latest spectrum without consuming it.
type MagnitudeSource interface {
	PeekMagnitudes(dst []float64) int
	GetFFTSize() int
}

// PacketSender sends one datagram.
type PacketSender interface {
	Send(packet []byte) error
}

// SpectrumPublisher periodically packs the latest magnitudes into a binary
// packet and sends it. The telemetry frame carries only two acoustic
// figures; this stream feeds the monitor's spectrum view.
type SpectrumPublisher struct {
	sender   PacketSender
	source   MagnitudeSource
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32

	magBuffer    []float64
	f32Buffer    []float32
	packetBuffer *bytes.Buffer
}

// NewSpectrumPublisher defaults a non-positive interval to ~60 Hz.
func NewSpectrumPublisher(interval time.Duration, sender PacketSender, source MagnitudeSource) (*SpectrumPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("SpectrumPublisher: sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("SpectrumPublisher: magnitude source cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("SpectrumPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	bins := source.GetFFTSize() / 2
	applog.Infof("SpectrumPublisher: Initializing (Interval: %s, Bins: %d)", interval, bins)

	return &SpectrumPublisher{
		sender:       sender,
		source:       source,
		interval:     interval,
		magBuffer:    make([]float64, bins),
		f32Buffer:    make([]float32, bins),
		packetBuffer: bytes.NewBuffer(make([]byte, 0, headerSize+4*bins)),
	}, nil
}

// Start launches the publishing goroutine. Calling Start twice is a no-op.
func (p *SpectrumPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("SpectrumPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the goroutine and waits for it. Safe to call repeatedly.
func (p *SpectrumPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("SpectrumPublisher: Stopped.")
	return nil
}

// Close implements io.Closer.
func (p *SpectrumPublisher) Close() error {
	return p.Stop()
}

/*
Packet layout (big endian):

	| sequence uint32 | timestamp int64 (ns) | count uint16 | count * float32 |
*/
const headerSize = 4 + 8 + 2

// ErrShortPacket is returned by DecodeSpectrum for truncated packets.
var ErrShortPacket = errors.New("udp: spectrum packet too short")

// SpectrumPacket is one decoded spectrum datagram.
type SpectrumPacket struct {
	Sequence   uint32
	Timestamp  time.Time
	Magnitudes []float32
}

func (p *SpectrumPublisher) publish() {
	n := p.source.PeekMagnitudes(p.magBuffer)
	for i, v := range p.magBuffer[:n] {
		p.f32Buffer[i] = float32(v)
	}

	p.sequenceNum++
	p.packetBuffer.Reset()
	err := binary.Write(p.packetBuffer, binary.BigEndian, p.sequenceNum)
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, time.Now().UnixNano())
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, uint16(n))
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, p.f32Buffer[:n])
	}
	if err != nil {
		applog.Errorf("SpectrumPublisher: Error packing packet: %v", err)
		return
	}

	if err := p.sender.Send(p.packetBuffer.Bytes()); err == nil {
		applog.Debugf("SpectrumPublisher: Sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
	}
}

// DecodeSpectrum parses a packet produced by SpectrumPublisher.
func DecodeSpectrum(packet []byte) (SpectrumPacket, error) {
	if len(packet) < headerSize {
		return SpectrumPacket{}, ErrShortPacket
	}
	seq := binary.BigEndian.Uint32(packet[0:4])
	ts := int64(binary.BigEndian.Uint64(packet[4:12]))
	count := int(binary.BigEndian.Uint16(packet[12:14]))
	if len(packet) < headerSize+4*count {
		return SpectrumPacket{}, fmt.Errorf("%w: %d bins need %d bytes, got %d",
			ErrShortPacket, count, headerSize+4*count, len(packet))
	}

	mags := make([]float32, count)
	if err := binary.Read(bytes.NewReader(packet[headerSize:]), binary.BigEndian, mags); err != nil {
		return SpectrumPacket{}, err
	}
	return SpectrumPacket{Sequence: seq, Timestamp: time.Unix(0, ts), Magnitudes: mags}, nil
}

var _ interface{ Close() error } = (*SpectrumPublisher)(nil)
