// SPDX-License-Identifier: MIT
package audio

import (
	"strconv"

	"shoutnode/internal/config"
)

const (
	testSampleRate = 44100.0
	testFrameSize  = 256
)

var (
	testBuffer  = makeBuffer(testFrameSize, 1<<24)
	quietBuffer = makeBuffer(testFrameSize, 1<<20)
	loudBuffer  = makeBuffer(testFrameSize, 1<<30)
)

// makeBuffer alternates the sign of a ramp that peaks at peak.
func makeBuffer(n int, peak int32) []int32 {
	buf := make([]int32, n)
	for i := range buf {
		v := int32(int64(peak) * int64(i+1) / int64(n))
		if i%2 == 1 {
			v = -v
		}
		buf[i] = v
	}
	return buf
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

// recordingProcessor keeps a copy of the last block it was handed.
type recordingProcessor struct {
	calls int
	last  []int32
}

func (p *recordingProcessor) Process(in []int32) {
	p.calls++
	p.last = append(p.last[:0], in...)
}

func testAudioConfig(channels int) config.AudioConfig {
	return config.AudioConfig{
		InputDevice:     config.MinDeviceID,
		OutputDevice:    config.MinDeviceID,
		SampleRate:      testSampleRate,
		FramesPerBuffer: testFrameSize,
		InputChannels:   channels,
		OutputEnabled:   true,
		GateEnabled:     true,
		GateThreshold:   0.001,
	}
}
