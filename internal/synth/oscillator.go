// SPDX-License-Identifier: MIT
package synth

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidFrequency is returned for non-positive, non-finite or
// above-Nyquist oscillator settings.
var ErrInvalidFrequency = errors.New("oscillator frequency must be in (0, sampleRate/2]")

// Oscillator is a sine generator driven by a phase accumulator in [0, 1).
type Oscillator struct {
	frequencyHz float64
	sampleRate  float64
	step        float64
	phase       float64
}

// NewOscillator returns a sine oscillator starting at phase 0.
func NewOscillator(frequencyHz, sampleRate float64) (*Oscillator, error) {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("%w: sample rate %v", ErrInvalidFrequency, sampleRate)
	}
	o := &Oscillator{sampleRate: sampleRate}
	if err := o.SetFrequency(frequencyHz); err != nil {
		return nil, err
	}
	return o, nil
}

// SetFrequency changes pitch without resetting the phase.
func (o *Oscillator) SetFrequency(frequencyHz float64) error {
	if !(frequencyHz > 0) || frequencyHz > o.sampleRate/2 {
		return fmt.Errorf("%w: got %v at %v Hz", ErrInvalidFrequency, frequencyHz, o.sampleRate)
	}
	o.frequencyHz = frequencyHz
	o.step = frequencyHz / o.sampleRate
	return nil
}

// FrequencyHz returns the current pitch.
func (o *Oscillator) FrequencyHz() float64 {
	return o.frequencyHz
}

// Phase returns the accumulator, in cycles.
func (o *Oscillator) Phase() float64 {
	return o.phase
}

// Tick returns the current sample and advances the phase by one sample.
func (o *Oscillator) Tick() float64 {
	s := math.Sin(2 * math.Pi * o.phase)
	o.phase += o.step
	if o.phase >= 1 {
		o.phase -= math.Floor(o.phase)
	}
	return s
}

// Reset rewinds the phase to 0.
func (o *Oscillator) Reset() {
	o.phase = 0
}
