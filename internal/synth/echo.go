// SPDX-License-Identifier: MIT
package synth

import (
	"errors"
	"fmt"
	"math"

	applog "shoutnode/internal/log"
)

// ErrInvalidMix is returned for mix gains outside [0, 1].
var ErrInvalidMix = errors.New("mix gain must be finite and in [0, 1]")

// ChannelConfig tunes one output channel of the echo.
type ChannelConfig struct {
	DelaySamples int     `yaml:"delay_samples"`
	Feedback     float64 `yaml:"feedback"`
	Mix          float64 `yaml:"mix"`
}

// EchoConfig describes the fixed two-channel echo topology.
type EchoConfig struct {
	FrequencyHz     float64       `yaml:"frequency_hz"`
	CapacitySamples int           `yaml:"capacity_samples"`
	Left            ChannelConfig `yaml:"left"`
	Right           ChannelConfig `yaml:"right"`
}

// DefaultEchoConfig is a short, strong echo on the left and a long, faint
// one on the right, both fed by a 440 Hz tone.
func DefaultEchoConfig() EchoConfig {
	return EchoConfig{
		FrequencyHz:     440,
		CapacitySamples: 10000,
		Left:            ChannelConfig{DelaySamples: 5000, Feedback: 0.5, Mix: 0.5},
		Right:           ChannelConfig{DelaySamples: 10000, Feedback: 0.2, Mix: 0.1},
	}
}

// Validate checks the configuration without allocating delay buffers.
func (c EchoConfig) Validate(sampleRate float64) error {
	if _, err := NewOscillator(c.FrequencyHz, sampleRate); err != nil {
		return err
	}
	if c.CapacitySamples < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidCapacity, c.CapacitySamples)
	}
	channels := [...]struct {
		name string
		ch   ChannelConfig
	}{{"left", c.Left}, {"right", c.Right}}
	for _, entry := range channels {
		name, ch := entry.name, entry.ch
		if ch.DelaySamples < 1 || ch.DelaySamples > c.CapacitySamples {
			return fmt.Errorf("%s: %w: delay %d, capacity %d", name, ErrInvalidDelay, ch.DelaySamples, c.CapacitySamples)
		}
		if math.IsNaN(ch.Feedback) || ch.Feedback < 0 || ch.Feedback > 1 {
			return fmt.Errorf("%s: %w: got %v", name, ErrInvalidFeedback, ch.Feedback)
		}
		if math.IsNaN(ch.Mix) || ch.Mix < 0 || ch.Mix > 1 {
			return fmt.Errorf("%s: %w: got %v", name, ErrInvalidMix, ch.Mix)
		}
	}
	return nil
}

type echoChannel struct {
	line *DelayLine
	mix  float64
}

func (c *echoChannel) tick(s float64) int16 {
	return Quantize(c.line.Tick(s) * c.mix)
}

// EchoProcessor renders a stereo echo of one oscillator. Both channels are
// fed the same oscillator sample on each tick and differ only in delay,
// feedback and mix. It is not safe for concurrent use.
type EchoProcessor struct {
	osc         *Oscillator
	left, right echoChannel
	config      EchoConfig
}

// NewEchoProcessor validates cfg and allocates both delay lines.
func NewEchoProcessor(cfg EchoConfig, sampleRate float64) (*EchoProcessor, error) {
	if err := cfg.Validate(sampleRate); err != nil {
		return nil, fmt.Errorf("echo config: %w", err)
	}

	osc, err := NewOscillator(cfg.FrequencyHz, sampleRate)
	if err != nil {
		return nil, err
	}
	left, err := NewDelayLine(cfg.CapacitySamples, cfg.Left.DelaySamples, cfg.Left.Feedback)
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	right, err := NewDelayLine(cfg.CapacitySamples, cfg.Right.DelaySamples, cfg.Right.Feedback)
	if err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}

	applog.Infof("Synth: Echo ready (%.1f Hz, capacity %d, L %d/%.2f/%.2f, R %d/%.2f/%.2f)",
		cfg.FrequencyHz, cfg.CapacitySamples,
		cfg.Left.DelaySamples, cfg.Left.Feedback, cfg.Left.Mix,
		cfg.Right.DelaySamples, cfg.Right.Feedback, cfg.Right.Mix)

	return &EchoProcessor{
		osc:    osc,
		left:   echoChannel{line: left, mix: cfg.Left.Mix},
		right:  echoChannel{line: right, mix: cfg.Right.Mix},
		config: cfg,
	}, nil
}

// Config returns the configuration the processor was built with.
func (p *EchoProcessor) Config() EchoConfig {
	return p.config
}

// SetFeedback re-applies per-channel feedback gains.
func (p *EchoProcessor) SetFeedback(left, right float64) error {
	if err := p.left.line.SetFeedback(left); err != nil {
		return fmt.Errorf("left: %w", err)
	}
	if err := p.right.line.SetFeedback(right); err != nil {
		return fmt.Errorf("right: %w", err)
	}
	return nil
}

// Process fills one block per channel. Only min(len(left), len(right))
// samples are produced.
func (p *EchoProcessor) Process(left, right []int16) {
	n := min(len(left), len(right))
	for i := range n {
		s := p.osc.Tick()
		left[i] = p.left.tick(s)
		right[i] = p.right.tick(s)
	}
}

// ProcessInterleaved fills an interleaved L/R block. A trailing odd sample
// is zeroed.
func (p *EchoProcessor) ProcessInterleaved(out []int16) {
	frames := len(out) / 2
	for i := range frames {
		s := p.osc.Tick()
		out[2*i] = p.left.tick(s)
		out[2*i+1] = p.right.tick(s)
	}
	if len(out)%2 == 1 {
		out[len(out)-1] = 0
	}
}

// Reset rewinds the oscillator and clears both delay lines.
func (p *EchoProcessor) Reset() {
	p.osc.Reset()
	p.left.line.Reset()
	p.right.line.Reset()
}

// Quantize clamps x to [-1, 1] and scales it to a signed 16-bit sample.
func Quantize(x float64) int16 {
	if math.IsNaN(x) {
		return 0
	}
	x = max(-1, min(x, 1))
	return int16(math.Round(x * math.MaxInt16))
}
