// SPDX-License-Identifier: MIT
package synth

import (
	"errors"
	"fmt"
	"math"
)

// Delay line configuration errors.
var (
	ErrInvalidCapacity = errors.New("delay capacity must be positive")
	ErrInvalidDelay    = errors.New("delay length must be in [1, capacity]")
	ErrInvalidFeedback = errors.New("feedback gain must be finite and in [0, 1]")
)

// DelayLine is a fixed-capacity circular buffer with feedback. It is owned
// by a single echo channel.
type DelayLine struct {
	buf      []float64
	write    int
	delay    int
	feedback float64
}

// NewDelayLine allocates capacity samples. A delay longer than the buffer
// is rejected rather than truncated.
func NewDelayLine(capacity, delay int, feedback float64) (*DelayLine, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	if delay < 1 || delay > capacity {
		return nil, fmt.Errorf("%w: delay %d, capacity %d", ErrInvalidDelay, delay, capacity)
	}
	d := &DelayLine{buf: make([]float64, capacity), delay: delay}
	if err := d.SetFeedback(feedback); err != nil {
		return nil, err
	}
	return d, nil
}

// SetFeedback sets the feedback gain. Setting the current value again has
// no effect on the output.
func (d *DelayLine) SetFeedback(feedback float64) error {
	if math.IsNaN(feedback) || feedback < 0 || feedback > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidFeedback, feedback)
	}
	d.feedback = feedback
	return nil
}

// Feedback returns the current feedback gain.
func (d *DelayLine) Feedback() float64 {
	return d.feedback
}

// Capacity returns the buffer size in samples.
func (d *DelayLine) Capacity() int {
	return len(d.buf)
}

// Delay returns the delay length in samples.
func (d *DelayLine) Delay() int {
	return d.delay
}

// Tick reads the sample written delay samples ago, writes
// in + feedback*read at the write head, advances it and returns the read
// sample.
func (d *DelayLine) Tick(in float64) float64 {
	n := len(d.buf)
	r := d.write - d.delay
	if r < 0 {
		r += n
	}
	out := d.buf[r]
	d.buf[d.write] = in + d.feedback*out
	d.write++
	if d.write == n {
		d.write = 0
	}
	return out
}

// Reset clears the buffer and rewinds the write head.
func (d *DelayLine) Reset() {
	clear(d.buf)
	d.write = 0
}
