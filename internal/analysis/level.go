// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultMicSensitivity is 10 mV/Pa, a typical low-cost electret capsule.
	DefaultMicSensitivity = 0.01
	// DefaultReferencePressure is 20 µPa, the threshold of human hearing.
	DefaultReferencePressure = 0.00002
)

// ErrLevelModel is returned for non-positive sensitivity or reference values.
var ErrLevelModel = errors.New("mic sensitivity and reference pressure must be positive")

// ToDbSPL converts an average spectral amplitude into an estimated sound
// pressure level. Pressures below the reference are floored to it, so
// silence maps to 0 dB rather than -Inf.
func ToDbSPL(avgAmplitude, micSensitivity, referencePressure float64) float64 {
	pressure := avgAmplitude / micSensitivity
	if math.IsNaN(pressure) || pressure < referencePressure {
		pressure = referencePressure
	}
	return 20 * math.Log10(pressure/referencePressure)
}

// LevelModel binds the microphone sensitivity and reference pressure used
// for every conversion.
type LevelModel struct {
	MicSensitivity    float64 // V/Pa
	ReferencePressure float64 // Pa
}

// NewLevelModel validates the parameters once at construction.
func NewLevelModel(micSensitivity, referencePressure float64) (LevelModel, error) {
	if !(micSensitivity > 0) || !(referencePressure > 0) ||
		math.IsInf(micSensitivity, 0) || math.IsInf(referencePressure, 0) {
		return LevelModel{}, fmt.Errorf("%w: sensitivity=%v reference=%v",
			ErrLevelModel, micSensitivity, referencePressure)
	}
	return LevelModel{MicSensitivity: micSensitivity, ReferencePressure: referencePressure}, nil
}

// DefaultLevelModel returns the model with the stock capsule constants.
func DefaultLevelModel() LevelModel {
	return LevelModel{MicSensitivity: DefaultMicSensitivity, ReferencePressure: DefaultReferencePressure}
}

// Convert returns the dB SPL estimate for avgAmplitude.
func (m LevelModel) Convert(avgAmplitude float64) float64 {
	return ToDbSPL(avgAmplitude, m.MicSensitivity, m.ReferencePressure)
}
