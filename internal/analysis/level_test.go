// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"math"
	"testing"
)

func TestToDbSPL(t *testing.T) {
	tests := []struct {
		name string
		avg  float64
		want float64
	}{
		{"Silence floors to 0 dB", 0, 0},
		{"At reference", DefaultReferencePressure * DefaultMicSensitivity, 0},
		{"One pascal", DefaultMicSensitivity, 20 * math.Log10(1/DefaultReferencePressure)},
		{"NaN floors to 0 dB", math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDbSPL(tt.avg, DefaultMicSensitivity, DefaultReferencePressure)
			if !approxEqual(got, tt.want, 1e-9) {
				t.Errorf("ToDbSPL(%v) = %v, want %v", tt.avg, got, tt.want)
			}
		})
	}
}

func TestLevelModelMonotonic(t *testing.T) {
	m := DefaultLevelModel()
	prev := m.Convert(0)
	if prev < 0 {
		t.Fatalf("level below 0 dB: %v", prev)
	}
	for a := 1e-6; a < 10; a *= 1.7 {
		got := m.Convert(a)
		if got < prev {
			t.Fatalf("Convert(%v) = %v decreased from %v", a, got, prev)
		}
		prev = got
	}
}

func TestNewLevelModel(t *testing.T) {
	if _, err := NewLevelModel(0, DefaultReferencePressure); !errors.Is(err, ErrLevelModel) {
		t.Errorf("zero sensitivity: err = %v, want ErrLevelModel", err)
	}
	if _, err := NewLevelModel(DefaultMicSensitivity, -1); !errors.Is(err, ErrLevelModel) {
		t.Errorf("negative reference: err = %v, want ErrLevelModel", err)
	}
	m, err := NewLevelModel(0.02, DefaultReferencePressure)
	if err != nil {
		t.Fatalf("NewLevelModel() error = %v", err)
	}
	// Doubling the sensitivity halves the inferred pressure: -6.02 dB.
	diff := DefaultLevelModel().Convert(1) - m.Convert(1)
	if !approxEqual(diff, 20*math.Log10(2), 1e-9) {
		t.Errorf("sensitivity delta = %v dB, want %v", diff, 20*math.Log10(2))
	}
}
