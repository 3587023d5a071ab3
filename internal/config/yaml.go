// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"shoutnode/internal/analysis"
	applog "shoutnode/internal/log"
	"shoutnode/internal/synth"
	"shoutnode/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the node configuration, loaded from YAML.
type Config struct {
	Debug     bool             `yaml:"debug"`     // Enable debug logging.
	LogLevel  string           `yaml:"log_level"` // "debug", "info", "warn", "error".
	Audio     AudioConfig      `yaml:"audio"`
	Analysis  AnalysisConfig   `yaml:"analysis"`
	Panel     PanelConfig      `yaml:"panel"`
	Node      NodeConfig       `yaml:"node"`
	Serial    SerialConfig     `yaml:"serial"`
	Playback  PlaybackConfig   `yaml:"playback"`
	Echo      synth.EchoConfig `yaml:"echo"`
	Recording RecordingConfig  `yaml:"recording"`
	Transport TransportConfig  `yaml:"transport"`
}

// AudioConfig holds settings related to audio input/output.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Hz, shared by input and output.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per callback.
	LowLatency      bool    `yaml:"low_latency"`       // Request the device's low latency.
	InputChannels   int     `yaml:"input_channels"`    // Channel 0 feeds the analysis.
	OutputEnabled   bool    `yaml:"output_enabled"`    // Open the stereo output stream.
	GateEnabled     bool    `yaml:"gate_enabled"`      // Skip analysis of near-silent blocks.
	GateThreshold   float64 `yaml:"gate_threshold"`    // 0..1 of full scale.
}

// AnalysisConfig holds the spectrum and level model settings.
type AnalysisConfig struct {
	FFTSize           int     `yaml:"fft_size"`           // N, power of two.
	FFTWindow         string  `yaml:"fft_window"`         // e.g. "Hann", "Hamming".
	MicSensitivity    float64 `yaml:"mic_sensitivity"`    // V/Pa.
	ReferencePressure float64 `yaml:"reference_pressure"` // Pa.
}

// PanelConfig holds fixed digital-input readings used when no hardware
// panel is attached.
type PanelConfig struct {
	DividerRaw   int  `yaml:"divider_raw"`   // 0..1023
	ThresholdRaw int  `yaml:"threshold_raw"` // 0..1023
	ShootPressed bool `yaml:"shoot_pressed"`
	PausePressed bool `yaml:"pause_pressed"`
}

// NodeConfig holds control loop settings.
type NodeConfig struct {
	LoopInterval time.Duration `yaml:"loop_interval"`
}

// SerialConfig holds the line link settings. An empty device disables it.
type SerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
	Queue  int    `yaml:"queue"`
}

// PlaybackConfig holds the sample library settings.
type PlaybackConfig struct {
	Enabled   bool   `yaml:"enabled"`
	SampleDir string `yaml:"sample_dir"`
}

// RecordingConfig holds settings related to input recording.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	Format    string `yaml:"format"`
	BitDepth  int    `yaml:"bit_depth"`
}

// TransportConfig holds the network telemetry settings.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddr    string        `yaml:"websocket_addr"`
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Mirror telemetry lines over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	SpectrumEnabled  bool          `yaml:"spectrum_enabled"`   // Stream raw magnitudes over UDP.
	SpectrumTarget   string        `yaml:"spectrum_target"`
	SpectrumInterval time.Duration `yaml:"spectrum_interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:     MinDeviceID,
			OutputDevice:    MinDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   1,
			OutputEnabled:   true,
			GateEnabled:     true,
			GateThreshold:   DefaultGateThreshold,
		},
		Analysis: AnalysisConfig{
			FFTSize:           DefaultFFTSize,
			FFTWindow:         DefaultFFTWindow,
			MicSensitivity:    analysis.DefaultMicSensitivity,
			ReferencePressure: analysis.DefaultReferencePressure,
		},
		Panel: PanelConfig{
			DividerRaw:   DefaultDividerRaw,
			ThresholdRaw: DefaultThresholdRaw,
		},
		Node:     NodeConfig{LoopInterval: DefaultLoopInterval},
		Serial:   SerialConfig{Baud: DefaultSerialBaud, Queue: DefaultSerialQueue},
		Playback: PlaybackConfig{Enabled: true, SampleDir: DefaultSampleDir},
		Echo:     synth.DefaultEchoConfig(),
		Recording: RecordingConfig{
			OutputDir: "./recordings",
			Format:    "wav",
			BitDepth:  32,
		},
		Transport: TransportConfig{
			WebSocketAddr:    DefaultWebSocketAddr,
			UDPTargetAddress: DefaultUDPTarget,
			SpectrumTarget:   DefaultSpectrumTarget,
			SpectrumInterval: DefaultSpectrumRate,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path
// is empty, it searches "config.yaml" in the working directory and falls
// back to built-in defaults. Environment overrides are applied last, then
// the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("Config: Loaded %s", path)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate rejects configurations that could only fail later at runtime.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return invalid("log_level %q is not a known level", c.LogLevel)
	}

	a := c.Audio
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return invalid("audio.sample_rate %.0f outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer < 1 || a.FramesPerBuffer > MaxBufferFrames {
		return invalid("audio.frames_per_buffer %d outside [1, %d]", a.FramesPerBuffer, MaxBufferFrames)
	}
	if a.InputDevice < MinDeviceID || a.OutputDevice < MinDeviceID {
		return invalid("audio device ids must be >= %d", MinDeviceID)
	}
	if a.InputChannels < 1 {
		return invalid("audio.input_channels must be at least 1")
	}
	if a.GateThreshold < 0 || a.GateThreshold > 1 {
		return invalid("audio.gate_threshold %v outside [0, 1]", a.GateThreshold)
	}

	an := c.Analysis
	if !bitint.IsPowerOfTwo(an.FFTSize) || an.FFTSize < MinFFTSize || an.FFTSize > MaxFFTSize {
		return invalid("analysis.fft_size %d must be a power of two in [%d, %d]", an.FFTSize, MinFFTSize, MaxFFTSize)
	}
	if _, err := analysis.ParseWindowFunc(an.FFTWindow); err != nil {
		return invalid("analysis.fft_window: %v", err)
	}
	if _, err := analysis.NewLevelModel(an.MicSensitivity, an.ReferencePressure); err != nil {
		return invalid("analysis: %v", err)
	}

	if err := c.Echo.Validate(a.SampleRate); err != nil {
		return fmt.Errorf("%w: echo: %w", ErrInvalid, err)
	}

	if c.Node.LoopInterval <= 0 {
		return invalid("node.loop_interval must be positive")
	}
	if c.Serial.Baud < 1 {
		return invalid("serial.baud must be positive")
	}
	if c.Serial.Queue < 1 {
		return invalid("serial.queue must be at least 1")
	}
	if c.Playback.Enabled && c.Playback.SampleDir == "" {
		return invalid("playback.sample_dir must be set when playback is enabled")
	}
	if c.Recording.Enabled && c.Recording.Format != "wav" {
		return invalid("recording.format %q is not supported", c.Recording.Format)
	}

	t := c.Transport
	if t.WebSocketEnabled && t.WebSocketAddr == "" {
		return invalid("transport.websocket_addr must be set when the WebSocket is enabled")
	}
	if t.UDPEnabled && t.UDPTargetAddress == "" {
		return invalid("transport.udp_target_address must be set when UDP is enabled")
	}
	if t.SpectrumEnabled && (t.SpectrumTarget == "" || t.SpectrumInterval <= 0) {
		return invalid("transport.spectrum_target and a positive spectrum_interval are required")
	}

	return nil
}

// Level returns the effective log level; Debug forces debug.
func (c *Config) Level() applog.LogLevel {
	if c.Debug {
		return applog.LevelDebug
	}
	lvl, _ := applog.ParseLevel(c.LogLevel)
	return lvl
}

// applyEnvOverrides applies ENV_* variables on top of file values.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Debug = b
			applog.Debugf("Config: Overriding debug from env: %v", b)
		}
	}
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	if val, ok := os.LookupEnv("ENV_SERIAL_DEVICE"); ok {
		c.Serial.Device = val
		applog.Debugf("Config: Overriding serial.device from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_SAMPLE_DIR"); ok {
		c.Playback.SampleDir = val
	}

	// ENV_UDP_{...} are specific to the transport layer.
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = b
			applog.Debugf("Config: Overriding transport.udp_enabled from env: %v", b)
		}
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
	}
	if val, ok := os.LookupEnv("ENV_WEBSOCKET_ADDR"); ok {
		c.Transport.WebSocketAddr = val
		c.Transport.WebSocketEnabled = val != ""
	}
	if val, ok := os.LookupEnv("ENV_LOOP_INTERVAL"); ok {
		if d, err := time.ParseDuration(val); err == nil {
			c.Node.LoopInterval = d
		}
	}
}
