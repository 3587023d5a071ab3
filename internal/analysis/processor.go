// SPDX-License-Identifier: MIT
package analysis

// AudioProcessor is the standard interface for components that consume raw
// audio buffers from the input callback.
type AudioProcessor interface {
	// Process analyzes the given audio input buffer. Implementations run
	// inside the real-time callback and must not block or allocate.
	Process(inputBuffer []int32)
}

// ClosableProcessor combines AudioProcessor with a Close method for resource cleanup.
type ClosableProcessor interface {
	AudioProcessor
	Close() error
}

// WindowSource hands completed spectrum windows to the control loop.
// Available is the cheap precondition check; ReadWindow copies the latest
// window into dst (len == N/2) and returns ok=false when nothing new has
// been produced since the previous read.
type WindowSource interface {
	Available() bool
	ReadWindow(dst []float64) (SpectrumWindow, bool)
	GetFFTSize() int
}
