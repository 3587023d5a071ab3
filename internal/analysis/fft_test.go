// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"testing"

	"shoutnode/pkg/utils"
)

const (
	testFFTSize    = 1024
	testSampleRate = 44100
)

func TestNewFFTProcessorValidation(t *testing.T) {
	if _, err := NewFFTProcessor(1000, testSampleRate, Hann); !errors.Is(err, ErrWindowSize) {
		t.Errorf("size 1000: err = %v, want ErrWindowSize", err)
	}
	if _, err := NewFFTProcessor(testFFTSize, 0, Hann); !errors.Is(err, ErrSampleRate) {
		t.Errorf("rate 0: err = %v, want ErrSampleRate", err)
	}
}

func TestFFTWindowAvailability(t *testing.T) {
	p, err := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	if err != nil {
		t.Fatalf("NewFFTProcessor() error = %v", err)
	}
	dst := make([]float64, testFFTSize/2)

	if p.Available() {
		t.Fatal("fresh processor reports a window")
	}
	if _, ok := p.ReadWindow(dst); ok {
		t.Fatal("ReadWindow succeeded before any Process call")
	}

	p.Process(utils.GenerateSineWave(testFFTSize, testSampleRate, 440))
	if !p.Available() {
		t.Fatal("window not available after Process")
	}
	w, ok := p.ReadWindow(dst)
	if !ok {
		t.Fatal("ReadWindow() ok = false")
	}
	if err := w.Validate(); err != nil {
		t.Errorf("published window invalid: %v", err)
	}
	if p.Available() {
		t.Error("window still available after being read")
	}

	if _, ok := p.ReadWindow(make([]float64, 3)); ok {
		t.Error("ReadWindow accepted a wrong-length destination")
	}
}

func TestFFTSinePeak(t *testing.T) {
	p, err := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	if err != nil {
		t.Fatalf("NewFFTProcessor() error = %v", err)
	}

	const bin = 40
	freq := utils.BinFrequency(bin, testFFTSize, testSampleRate)
	p.Process(utils.GenerateSineWave(testFFTSize, testSampleRate, freq))

	dst := make([]float64, testFFTSize/2)
	w, ok := p.ReadWindow(dst)
	if !ok {
		t.Fatal("no window")
	}
	if got := utils.FindPeakBin(w.Magnitudes, 0, len(w.Magnitudes)-1); got != bin {
		t.Errorf("peak bin = %d, want %d", got, bin)
	}

	f, err := Extract(w)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !approxEqual(f.DominantFrequencyHz, freq, w.BinWidth()/2) {
		t.Errorf("dominant frequency = %v, want ~%v", f.DominantFrequencyHz, freq)
	}
	if f.AvgAmplitude <= 0 {
		t.Errorf("avg amplitude = %v, want > 0", f.AvgAmplitude)
	}
}

func TestFFTShortBlocksFillWindow(t *testing.T) {
	const bin = 40
	freq := utils.BinFrequency(bin, testFFTSize, testSampleRate)
	signal := utils.GenerateSineWave(testFFTSize, testSampleRate, freq)
	dst := make([]float64, testFFTSize/2)

	full, err := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	if err != nil {
		t.Fatalf("NewFFTProcessor() error = %v", err)
	}
	full.Process(signal)
	w, _ := full.ReadWindow(dst)
	want := w.Magnitudes[bin]

	blocks, err := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	if err != nil {
		t.Fatalf("NewFFTProcessor() error = %v", err)
	}
	half := testFFTSize / 2
	blocks.Process(signal[:half])
	w, _ = blocks.ReadWindow(dst)
	if first := w.Magnitudes[bin]; first >= want*0.75 {
		t.Errorf("first half block peak = %v, want well below full window %v", first, want)
	}

	blocks.Process(signal[half:])
	w, ok := blocks.ReadWindow(dst)
	if !ok {
		t.Fatal("no window after second block")
	}
	if got := w.Magnitudes[bin]; !approxEqual(got, want, 1e-12) {
		t.Errorf("peak after two half blocks = %v, want %v", got, want)
	}
}

func TestFFTLongBlockKeepsNewestSamples(t *testing.T) {
	freq := utils.BinFrequency(40, testFFTSize, testSampleRate)
	signal := utils.GenerateSineWave(testFFTSize, testSampleRate, freq)
	dst := make([]float64, testFFTSize/2)

	p, err := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	if err != nil {
		t.Fatalf("NewFFTProcessor() error = %v", err)
	}
	p.Process(signal)
	w, _ := p.ReadWindow(dst)
	want := append([]float64(nil), w.Magnitudes...)

	long := append(make([]int32, 300), signal...)
	p.Process(long)
	w, _ = p.ReadWindow(dst)
	for i := range want {
		if !approxEqual(w.Magnitudes[i], want[i], 1e-12) {
			t.Fatalf("bin %d = %v, want %v", i, w.Magnitudes[i], want[i])
		}
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		in      string
		want    WindowFunc
		wantErr bool
	}{
		{"", Hann, false},
		{"hanning", Hann, false},
		{"Blackman", Blackman, false},
		{"NUTTALL", Nuttall, false},
		{"square", Hann, true},
	}
	for _, tt := range tests {
		got, err := ParseWindowFunc(tt.in)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseWindowFunc(%q) = %v, %v", tt.in, got, err)
		}
	}
	if Hamming.String() != "Hamming" {
		t.Errorf("Hamming.String() = %q", Hamming.String())
	}
}

func TestFFTHotPath(t *testing.T) {
	p, err := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	if err != nil {
		t.Fatalf("NewFFTProcessor() error = %v", err)
	}
	input := utils.GenerateComplexWave(testFFTSize, testSampleRate)
	dst := make([]float64, testFFTSize/2)

	// Warm-up call so lazy initialisation does not count.
	p.Process(input)
	allocs := testing.AllocsPerRun(100, func() {
		p.Process(input)
		_, _ = p.ReadWindow(dst)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in FFT hot path, got %.1f", allocs)
	}
}

func TestGetFrequencyForBin(t *testing.T) {
	p, err := NewFFTProcessor(16, testSampleRate, Hann)
	if err != nil {
		t.Fatalf("NewFFTProcessor() error = %v", err)
	}
	if got := p.GetFrequencyForBin(2); got != 5512.5 {
		t.Errorf("GetFrequencyForBin(2) = %v, want 5512.5", got)
	}
	if got := p.GetFrequencyForBin(-1); got != 0 {
		t.Errorf("GetFrequencyForBin(-1) = %v, want 0", got)
	}
}

func BenchmarkProcess(b *testing.B) {
	p, err := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	if err != nil {
		b.Fatal(err)
	}
	input := utils.GenerateComplexWave(testFFTSize, testSampleRate)

	b.ReportAllocs()
	for b.Loop() {
		p.Process(input)
	}
}
