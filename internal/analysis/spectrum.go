// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"

	"shoutnode/pkg/bitint"

	"gonum.org/v1/gonum/floats"
)

// Window validation errors. All of them are configuration errors: a window
// that fails validation is never partially analysed.
var (
	ErrWindowSize       = errors.New("analysis window size must be a power of two >= 8")
	ErrSampleRate       = errors.New("sample rate must be positive")
	ErrWindowLength     = errors.New("magnitude count must equal half the window size")
	ErrInvalidMagnitude = errors.New("magnitudes must be finite and non-negative")
)

// SpectrumWindow is one analysis window worth of per-bin magnitudes.
// Len(Magnitudes) == Size/2. The slice is owned by the caller and is only
// read during Extract.
type SpectrumWindow struct {
	Magnitudes []float64
	SampleRate float64 // Hz
	Size       int     // N, points in the analysis window
}

// BinWidth returns the width of one bin in Hz (sampleRate / N).
func (w SpectrumWindow) BinWidth() float64 {
	return w.SampleRate / float64(w.Size)
}

// Validate checks the window shape before extraction.
func (w SpectrumWindow) Validate() error {
	if !bitint.IsPowerOfTwo(w.Size) || w.Size < 8 {
		return fmt.Errorf("%w: got %d", ErrWindowSize, w.Size)
	}
	if !(w.SampleRate > 0) || math.IsInf(w.SampleRate, 0) {
		return fmt.Errorf("%w: got %f", ErrSampleRate, w.SampleRate)
	}
	if len(w.Magnitudes) != w.Size/2 {
		return fmt.Errorf("%w: got %d bins for size %d", ErrWindowLength, len(w.Magnitudes), w.Size)
	}
	for i, m := range w.Magnitudes {
		if m < 0 || math.IsNaN(m) || math.IsInf(m, 0) {
			return fmt.Errorf("%w: bin %d = %v", ErrInvalidMagnitude, i, m)
		}
	}
	return nil
}

// Feature is the acoustic part of a feature sample: dominant frequency and
// average amplitude. The sound level is derived from AvgAmplitude by a
// LevelModel.
type Feature struct {
	DominantFrequencyHz float64
	AvgAmplitude        float64
}

// Extract validates the window and returns its dominant frequency and
// average amplitude.
func Extract(w SpectrumWindow) (Feature, error) {
	if err := w.Validate(); err != nil {
		return Feature{}, err
	}
	return extract(w), nil
}

// extract assumes a validated window.
//
// Bins 0 and len-1 are excluded from the scan so that the peak always has
// both interpolation neighbours. The first strictly largest bin wins. The
// parabolic correction is applied only when the right neighbour is larger
// than the left one; when L >= R the bin-centre estimate is kept as is.
func extract(w SpectrumWindow) Feature {
	mags := w.Magnitudes
	scan := mags[1 : len(mags)-1]

	total := floats.Sum(scan)
	k := floats.MaxIdx(scan) + 1
	peak := mags[k]

	var freq float64
	if peak > 0 {
		binWidth := w.BinWidth()
		freq = float64(k) * binWidth

		left, right := mags[k-1], mags[k+1]
		if right > left {
			correction := (right - left) / (2 * (2*peak - left - right))
			freq += correction * binWidth
		}
	}

	return Feature{
		DominantFrequencyHz: freq,
		AvgAmplitude:        total / float64(w.Size/2),
	}
}
