// SPDX-License-Identifier: MIT
package playback

import (
	"math"
	"sync"
)

// Mixer sums every playing sample into an interleaved stereo block. Mix is
// called from the output callback and does not allocate once the
// accumulator has reached the block size.
type Mixer struct {
	mu      sync.RWMutex
	samples []*Sample
	acc     []int32
}

// NewMixer returns a mixer sized for blocks of framesPerBuffer frames.
func NewMixer(framesPerBuffer int, samples ...*Sample) *Mixer {
	return &Mixer{
		samples: samples,
		acc:     make([]int32, framesPerBuffer*2),
	}
}

// Add registers another sample.
func (m *Mixer) Add(s *Sample) {
	m.mu.Lock()
	m.samples = append(m.samples, s)
	m.mu.Unlock()
}

// Mix overwrites out with the saturated sum of all playing samples.
func (m *Mixer) Mix(out []int16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cap(m.acc) < len(out) {
		m.acc = make([]int32, len(out))
	}
	acc := m.acc[:len(out)]
	clear(acc)

	for _, s := range m.samples {
		s.mixInto(acc)
	}
	for i, v := range acc {
		out[i] = saturate(v)
	}
}

// Active reports whether any sample is playing.
func (m *Mixer) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.samples {
		if s.IsPlaying() {
			return true
		}
	}
	return false
}

func saturate(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
