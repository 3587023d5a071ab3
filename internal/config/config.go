// SPDX-License-Identifier: MIT
package config

import "time"

// Boundaries and defaults for the node configuration.
const (
	DefaultLogLevel        = "info"
	DefaultSampleRate      = 44100 // Hz
	DefaultFramesPerBuffer = 512
	DefaultFFTSize         = 1024
	DefaultFFTWindow       = "Hann"
	DefaultGateThreshold   = 0.001 // fraction of full scale
	DefaultLoopInterval    = 10 * time.Millisecond
	DefaultSerialQueue     = 16
	DefaultSerialBaud      = 115200
	DefaultSampleDir       = "./samples"
	DefaultWebSocketAddr   = ":8080"
	DefaultUDPTarget       = "127.0.0.1:9090"
	DefaultSpectrumTarget  = "127.0.0.1:9091"
	DefaultSpectrumRate    = 33 * time.Millisecond

	// Raw digitizer readings at mid travel.
	DefaultDividerRaw   = 512
	DefaultThresholdRaw = 512

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents the system default device
	MinSampleRate   = 8000   // Hz
	MaxSampleRate   = 192000 // Hz
	MaxBufferFrames = 8192
	MinFFTSize      = 8
	MaxFFTSize      = 65536
)
