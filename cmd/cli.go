// SPDX-License-Identifier: MIT

// Package cmd holds the shoutnode command line.
package cmd

import (
	"context"
	"path/filepath"
	"time"

	"shoutnode/internal/config"
	applog "shoutnode/internal/log"
	"shoutnode/pkg/build"

	"github.com/spf13/cobra"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configPath string
	verbose    bool
}

// nodeOptions override file values for the node itself. Only flags the user
// actually set are applied.
type nodeOptions struct {
	device          int
	outputDevice    int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	serial          string
	record          bool
	outputFile      string
}

// Execute runs the command line against os.Args.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&globalOptions{}, &nodeOptions{})
}

func buildRootCmd(global *globalOptions, node *nodeOptions) *cobra.Command {
	buildInfo := build.GetBuildFlags()

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Summary(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global)
			if err != nil {
				return err
			}
			if err := node.apply(cmd, cfg); err != nil {
				return err
			}
			return runNode(cmd.Context(), cfg, node)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&global.configPath, "config", "c", "",
		"Path to config.yaml (default: ./config.yaml when present)")
	pf.BoolVarP(&global.verbose, "verbose", "v", false,
		"Show verbose output")

	// Audio Device Configuration
	f := rootCmd.Flags()
	f.IntVarP(&node.device, "device", "d", config.MinDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	f.IntVar(&node.outputDevice, "output-device", config.MinDeviceID,
		"Specify output device ID for sample playback")
	f.Float64VarP(&node.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	f.IntVarP(&node.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	f.BoolVarP(&node.lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")

	// Link Configuration
	f.StringVar(&node.serial, "serial", "",
		"Serial device carrying commands and telemetry (e.g. /dev/ttyACM0)")

	// Recording Configuration
	f.BoolVarP(&node.record, "record", "r", false,
		"Record audio from the specified input device")
	f.StringVarP(&node.outputFile, "output", "o", "",
		"Output file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	rootCmd.AddCommand(newListCmd(), newMonitorCmd(global), newEchoCmd(global))
	return rootCmd
}

// loadConfig reads the configuration and applies the log level.
func loadConfig(cmd *cobra.Command, global *globalOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(global.configPath)
	if err != nil {
		return nil, err
	}
	if global.verbose {
		cfg.Debug = true
	}
	applog.SetLevel(cfg.Level())
	applog.Debugf("CLI: %s starting %q", build.GetBuildFlags().Summary(), cmd.Name())
	return cfg, nil
}

// apply copies every flag the user set into cfg and re-validates it.
func (o *nodeOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("device") {
		cfg.Audio.InputDevice = o.device
	}
	if changed("output-device") {
		cfg.Audio.OutputDevice = o.outputDevice
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = o.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = o.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = o.lowLatency
	}
	if changed("serial") {
		cfg.Serial.Device = o.serial
	}
	if changed("record") {
		cfg.Recording.Enabled = o.record
	}
	if cfg.Recording.Enabled && o.outputFile == "" {
		name := "recording-" + time.Now().UTC().Format("02-01-2006-150405") + "." + cfg.Recording.Format
		o.outputFile = filepath.Join(cfg.Recording.OutputDir, name)
	}
	return cfg.Validate()
}
