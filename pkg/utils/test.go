// SPDX-License-Identifier: MIT
//
// Package utils holds signal generators and doubles shared by the package
// tests. Nothing here is used on a production path.
package utils

import (
	"math"
	"sync"
)

// MockTransport records every telemetry line it is asked to send.
type MockTransport struct {
	mu     sync.Mutex
	lines  [][]byte
	Err    error // returned from Send when non-nil
	Closed bool
}

// Send stores a copy of line; the caller may reuse its buffer afterwards.
func (m *MockTransport) Send(line []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.lines = append(m.lines, append([]byte(nil), line...))
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	return nil
}

// Lines returns the recorded lines in send order.
func (m *MockTransport) Lines() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.lines))
	copy(out, m.lines)
	return out
}

// GenerateComplexWave returns a 440 Hz fundamental with two harmonics.
func GenerateComplexWave(size int, sampleRate float64) []int32 {
	buffer := make([]int32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = int32(signal * math.MaxInt32 * 0.9)
	}
	return buffer
}

// GenerateSineWave returns a sine at frequency scaled to 90% of int32 full scale.
func GenerateSineWave(size int, sampleRate, frequency float64) []int32 {
	buffer := make([]int32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = int32(math.Sin(2*math.Pi*frequency*t) * math.MaxInt32 * 0.9)
	}
	return buffer
}

// BinFrequency returns the centre frequency of bin for an N-point window.
func BinFrequency(bin, size int, sampleRate float64) float64 {
	return float64(bin) * sampleRate / float64(size)
}

// FindPeakBin returns the index of the largest magnitude within
// [startBin, endBin], clamping the range to the slice.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}
