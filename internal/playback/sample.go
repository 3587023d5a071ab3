// SPDX-License-Identifier: MIT
package playback

import "sync"

type sampleState int

const (
	sampleStopped sampleState = iota
	samplePlaying
	samplePaused
)

// Sample is an in-memory stereo clip implementing Source. The control loop
// drives it through the Source methods while the output callback pulls
// audio with mixInto; both sides hold the lock only briefly.
type Sample struct {
	Name string

	mu    sync.Mutex
	pcm   []int16 // interleaved stereo
	pos   int
	state sampleState
}

var _ Source = (*Sample)(nil)

// NewSample wraps interleaved stereo PCM. A trailing odd sample is dropped.
func NewSample(name string, interleaved []int16) *Sample {
	return &Sample{Name: name, pcm: interleaved[:len(interleaved)&^1]}
}

// Frames returns the clip length in stereo frames.
func (s *Sample) Frames() int {
	return len(s.pcm) / 2
}

func (s *Sample) Play() {
	s.mu.Lock()
	s.pos = 0
	s.state = samplePlaying
	s.mu.Unlock()
}

func (s *Sample) Stop() {
	s.mu.Lock()
	s.pos = 0
	s.state = sampleStopped
	s.mu.Unlock()
}

func (s *Sample) TogglePause() {
	s.mu.Lock()
	switch s.state {
	case samplePlaying:
		s.state = samplePaused
	case samplePaused:
		s.state = samplePlaying
	}
	s.mu.Unlock()
}

func (s *Sample) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == samplePlaying
}

// IsPaused reports whether the clip is paused mid-way.
func (s *Sample) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == samplePaused
}

// mixInto adds the next len(acc)/2 frames to acc and advances. Reaching the
// end stops the clip.
func (s *Sample) mixInto(acc []int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != samplePlaying {
		return
	}
	n := min(len(acc)&^1, len(s.pcm)-s.pos)
	for i, v := range s.pcm[s.pos : s.pos+n] {
		acc[i] += int32(v)
	}
	s.pos += n
	if s.pos >= len(s.pcm) {
		s.pos = 0
		s.state = sampleStopped
	}
}
