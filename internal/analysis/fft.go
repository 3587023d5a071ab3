// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"
	"sync"

	applog "shoutnode/internal/log"
	"shoutnode/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

// String returns the canonical name used in config files.
func (w WindowFunc) String() string {
	switch w {
	case BartlettHann:
		return "BartlettHann"
	case Blackman:
		return "Blackman"
	case BlackmanNuttall:
		return "BlackmanNuttall"
	case Hann:
		return "Hann"
	case Hamming:
		return "Hamming"
	case Lanczos:
		return "Lanczos"
	case Nuttall:
		return "Nuttall"
	default:
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
}

// Pre-allocated buffers for FFT calculations.
type fftWorkspace struct {
	history   []float64    // Last N normalised samples, oldest first.
	input     []float64    // Windowed input signal.
	fftOutput []complex128 // FFT complex results (N/2 + 1).
	magnitude []float64    // Scaled magnitudes of the last window (N/2 + 1).
	window    []float64    // Pre-calculated window coefficients.
	available bool         // A window was produced and not yet read.
	mu        sync.Mutex   // Protects magnitude and available.
}

// FFTProcessor turns raw int32 input blocks into spectrum windows. The audio
// callback calls Process; the control loop polls Available and pulls the
// latest window with ReadWindow. Neither call allocates.
type FFTProcessor struct {
	fftCalculator *fourier.FFT
	fftSize       int
	sampleRate    float64
	scale         float64 // 2/N, so a full-scale bin-centred sine reads ~window gain.
	workspace     fftWorkspace
}

// Compile-time checks for interface implementations.
var _ AudioProcessor = (*FFTProcessor)(nil)
var _ ClosableProcessor = (*FFTProcessor)(nil)
var _ WindowSource = (*FFTProcessor)(nil)

// NewFFTProcessor validates the window geometry and pre-allocates every
// buffer used on the hot path.
func NewFFTProcessor(fftSize int, sampleRate float64, windowType WindowFunc) (*FFTProcessor, error) {
	if !bitint.IsPowerOfTwo(fftSize) || fftSize < 8 {
		return nil, fmt.Errorf("%w: got %d", ErrWindowSize, fftSize)
	}
	if !(sampleRate > 0) {
		return nil, fmt.Errorf("%w: got %f", ErrSampleRate, sampleRate)
	}

	windowCoeffs := make([]float64, fftSize)
	applyWindow(windowCoeffs, windowType)

	// FFT output size for real input is N/2 + 1 complex values.
	magnitudeSize := fftSize/2 + 1

	applog.Infof("Analysis: Initializing FFTProcessor (Size: %d, SampleRate: %.1f Hz, Window: %v)",
		fftSize, sampleRate, windowType)

	return &FFTProcessor{
		fftCalculator: fourier.NewFFT(fftSize),
		fftSize:       fftSize,
		sampleRate:    sampleRate,
		scale:         2.0 / float64(fftSize),
		workspace: fftWorkspace{
			history:   make([]float64, fftSize),
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, magnitudeSize),
			magnitude: make([]float64, magnitudeSize),
			window:    windowCoeffs,
		},
	}, nil
}

// Process slides the block into the history of the last N samples, windows
// that history, runs the FFT and publishes the magnitudes as the latest
// available window. Blocks shorter than N therefore still yield full
// windows once N samples have arrived; longer blocks keep their last N.
func (p *FFTProcessor) Process(inputBuffer []int32) {
	const normFactor = 1.0 / float64(0x80000000)

	history := p.workspace.history
	n := len(inputBuffer)
	if n >= p.fftSize {
		inputBuffer = inputBuffer[n-p.fftSize:]
		n = p.fftSize
	}
	copy(history, history[n:])
	tail := history[p.fftSize-n:]
	for i, s := range inputBuffer {
		tail[i] = float64(s) * normFactor
	}

	for i, s := range history {
		p.workspace.input[i] = s * p.workspace.window[i]
	}

	p.fftCalculator.Coefficients(p.workspace.fftOutput, p.workspace.input)

	p.workspace.mu.Lock()
	for i, c := range p.workspace.fftOutput {
		p.workspace.magnitude[i] = cmplx.Abs(c) * p.scale
	}
	p.workspace.available = true
	p.workspace.mu.Unlock()
}

// Available reports whether a window was produced since the last ReadWindow.
func (p *FFTProcessor) Available() bool {
	p.workspace.mu.Lock()
	defer p.workspace.mu.Unlock()
	return p.workspace.available
}

// ReadWindow copies the first N/2 magnitudes of the latest window into dst
// and marks it consumed. dst must have length N/2. The returned window
// references dst, not internal state.
func (p *FFTProcessor) ReadWindow(dst []float64) (SpectrumWindow, bool) {
	if len(dst) != p.fftSize/2 {
		applog.Errorf("Analysis: ReadWindow destination length %d, want %d", len(dst), p.fftSize/2)
		return SpectrumWindow{}, false
	}

	p.workspace.mu.Lock()
	if !p.workspace.available {
		p.workspace.mu.Unlock()
		return SpectrumWindow{}, false
	}
	copy(dst, p.workspace.magnitude[:len(dst)])
	p.workspace.available = false
	p.workspace.mu.Unlock()

	return SpectrumWindow{Magnitudes: dst, SampleRate: p.sampleRate, Size: p.fftSize}, true
}

// PeekMagnitudes copies up to N/2 magnitudes of the latest window into dst
// without consuming it and returns the number copied.
func (p *FFTProcessor) PeekMagnitudes(dst []float64) int {
	p.workspace.mu.Lock()
	defer p.workspace.mu.Unlock()
	return copy(dst, p.workspace.magnitude[:p.fftSize/2])
}

// GetFrequencyForBin returns the center frequency (Hz) for a given FFT bin index.
func (p *FFTProcessor) GetFrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= len(p.workspace.fftOutput) {
		return 0.0
	}
	return float64(binIndex) * (p.sampleRate / float64(p.fftSize))
}

// GetFFTSize returns the configured FFT size (number of points).
func (p *FFTProcessor) GetFFTSize() int {
	return p.fftSize
}

// GetSampleRate returns the configured sample rate (Hz).
func (p *FFTProcessor) GetSampleRate() float64 {
	return p.sampleRate
}

// Close is a no-op; the processor owns no external resources.
func (p *FFTProcessor) Close() error {
	applog.Debugf("Analysis: Closing FFTProcessor")
	return nil
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Hann) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning", "":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window. Unknown types fall
// back to Hann.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		applog.Warnf("Analysis: Unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}
