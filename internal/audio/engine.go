// SPDX-License-Identifier: MIT
/*
Package audio drives the sound hardware through PortAudio:
- Input capture feeding spectrum analysis
- Stereo output rendered by the playback mixer or the echo synthesizer
- Noise gate with branchless implementation
- WAV recording with atomic state management

Thread Safety:
- Uses atomic operations for recording state
- Pre-allocates buffers to avoid GC in hot path
- Locks OS thread during audio processing
*/
package audio

import (
	"errors"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"shoutnode/internal/analysis"
	"shoutnode/internal/config"
	applog "shoutnode/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

// OutputChannels is fixed: every renderer produces interleaved stereo.
const OutputChannels = 2

// ErrNoProcessor is returned when the engine has nothing to feed input to.
var ErrNoProcessor = errors.New("audio: input processor is required")

// OutputFunc fills one interleaved stereo block. It runs inside the output
// callback and must not block or allocate.
type OutputFunc func(out []int16)

type Engine struct {
	// Core configuration.
	config config.AudioConfig

	// Audio input handling.
	inputBuffer  []int32
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Analysis fed from the input callback.
	processor analysis.AudioProcessor
	monoInput []int32 // Channel 0 of a multichannel block.

	// Noise gate for signal conditioning.
	gateEnabled   bool
	gateThreshold int32 // Absolute amplitude threshold (0-2147483647)
	gatedBlocks   atomic.Uint64

	// Audio output handling.
	output        OutputFunc
	outputDevice  *portaudio.DeviceInfo
	outputLatency time.Duration
	outputStream  *portaudio.Stream

	// Recording state and buffers.
	isRecording int32 // Atomic flag for thread-safe state
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // Reusable buffer for format conversion
}

// NewEngine resolves the configured devices and pre-allocates every buffer.
// output may be nil, in which case no output stream is opened.
func NewEngine(cfg config.AudioConfig, processor analysis.AudioProcessor, output OutputFunc) (*Engine, error) {
	engine, err := newEngine(cfg, processor, output)
	if err != nil {
		return nil, err
	}

	if engine.inputDevice, err = InputDevice(cfg.InputDevice); err != nil {
		return nil, err
	}
	if cfg.LowLatency {
		engine.inputLatency = engine.inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = engine.inputDevice.DefaultHighInputLatency
	}

	if engine.output != nil {
		if engine.outputDevice, err = OutputDevice(cfg.OutputDevice); err != nil {
			return nil, err
		}
		if cfg.LowLatency {
			engine.outputLatency = engine.outputDevice.DefaultLowOutputLatency
		} else {
			engine.outputLatency = engine.outputDevice.DefaultHighOutputLatency
		}
	}

	applog.Infof("Audio: Engine ready (input: %s, output: %s, %.0f Hz, %d frames)",
		engine.inputDevice.Name, engine.outputName(), cfg.SampleRate, cfg.FramesPerBuffer)
	return engine, nil
}

// NewPlayer builds an output-only engine. Use StartOutputStream and Close.
func NewPlayer(cfg config.AudioConfig, output OutputFunc) (*Engine, error) {
	if output == nil {
		return nil, errors.New("audio: output function is required")
	}
	device, err := OutputDevice(cfg.OutputDevice)
	if err != nil {
		return nil, err
	}
	engine := &Engine{config: cfg, output: output, outputDevice: device}
	if cfg.LowLatency {
		engine.outputLatency = device.DefaultLowOutputLatency
	} else {
		engine.outputLatency = device.DefaultHighOutputLatency
	}
	return engine, nil
}

// newEngine builds an engine without touching PortAudio.
func newEngine(cfg config.AudioConfig, processor analysis.AudioProcessor, output OutputFunc) (*Engine, error) {
	if processor == nil {
		return nil, ErrNoProcessor
	}
	if cfg.InputChannels < 1 {
		cfg.InputChannels = 1
	}
	if !cfg.OutputEnabled {
		output = nil
	}

	engine := &Engine{
		config:      cfg,
		inputBuffer: make([]int32, cfg.FramesPerBuffer*cfg.InputChannels),
		processor:   processor,
		monoInput:   make([]int32, cfg.FramesPerBuffer),
		gateEnabled: cfg.GateEnabled,
		output:      output,
	}
	engine.SetGateThreshold(cfg.GateThreshold)
	return engine, nil
}

func (e *Engine) outputName() string {
	if e.outputDevice == nil {
		return "none"
	}
	return e.outputDevice.Name
}

// Start opens the input stream and, when configured, the output stream.
func (e *Engine) Start() error {
	if err := e.StartInputStream(); err != nil {
		return err
	}
	if e.output == nil {
		return nil
	}
	if err := e.StartOutputStream(); err != nil {
		_ = e.StopInputStream()
		return err
	}
	return nil
}

func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.config.InputChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.config.FramesPerBuffer,
		SampleRate:      e.config.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return err
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return err
	}

	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}

		if err := e.inputStream.Close(); err != nil {
			return err
		}

		e.inputStream = nil
	}

	return nil
}

func (e *Engine) StartOutputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 0, // No input device
			Device:   nil,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: OutputChannels,
			Device:   e.outputDevice,
			Latency:  e.outputLatency,
		},
		FramesPerBuffer: e.config.FramesPerBuffer,
		SampleRate:      e.config.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processOutputStream)
	if err != nil {
		return err
	}
	e.outputStream = stream

	if err := e.outputStream.Start(); err != nil {
		e.outputStream.Close()
		e.outputStream = nil
		return err
	}

	return nil
}

func (e *Engine) StopOutputStream() error {
	if e.outputStream != nil {
		if err := e.outputStream.Stop(); err != nil {
			return err
		}

		if err := e.outputStream.Close(); err != nil {
			return err
		}

		e.outputStream = nil
	}

	return nil
}

// processInputStream is the capture callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (e *Engine) processInputStream(in []int32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	copy(e.inputBuffer, in)
	e.processBuffer(e.inputBuffer)

	// Write to WAV file if recording
	if atomic.LoadInt32(&e.isRecording) == 1 && e.wavEncoder != nil {
		e.recordBuffer(e.inputBuffer)
	}
}

// processOutputStream is the playback callback.
func (e *Engine) processOutputStream(out []int16) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if e.output == nil {
		clear(out)
		return
	}
	e.output(out)
}

// processBuffer gates the block and hands channel 0 to the processor. It
// reports whether the processor ran.
// Performance Critical (Hot Path):
// - No allocations
// - Branchless noise gate implementation
func (e *Engine) processBuffer(buffer []int32) bool {
	if e.gateEnabled && peakAmplitude(buffer) <= e.gateThreshold {
		e.gatedBlocks.Add(1)
		return false
	}

	input := buffer
	if channels := e.config.InputChannels; channels > 1 {
		for i := range e.monoInput {
			if i*channels < len(buffer) {
				e.monoInput[i] = buffer[i*channels]
			} else {
				e.monoInput[i] = 0 // Safety fallback
			}
		}
		input = e.monoInput
	}

	e.processor.Process(input)
	return true
}

// GatedBlocks returns how many input blocks the gate has held back.
func (e *Engine) GatedBlocks() uint64 {
	return e.gatedBlocks.Load()
}
