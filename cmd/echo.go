// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"shoutnode/internal/audio"
	"shoutnode/internal/config"
	applog "shoutnode/internal/log"
	"shoutnode/internal/synth"

	"github.com/spf13/cobra"
)

type echoOptions struct {
	seconds    float64
	outputFile string
	play       bool
	frequency  float64
}

func newEchoCmd(global *globalOptions) *cobra.Command {
	opts := &echoOptions{}

	echoCmd := &cobra.Command{
		Use:   "echo",
		Short: "Render or play the stereo echo of a test tone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("frequency") {
				cfg.Echo.FrequencyHz = opts.frequency
			}
			if opts.play {
				return playEcho(cmd.Context(), cfg, opts)
			}
			return renderEcho(cfg, opts)
		},
	}

	f := echoCmd.Flags()
	f.Float64Var(&opts.seconds, "seconds", 5, "Length of the rendered or played echo")
	f.StringVarP(&opts.outputFile, "output", "o", "echo.wav", "WAV file to render into")
	f.BoolVar(&opts.play, "play", false, "Play through the output device instead of rendering")
	f.Float64Var(&opts.frequency, "frequency", 440, "Tone frequency in Hz")
	return echoCmd
}

func renderEcho(cfg *config.Config, opts *echoOptions) error {
	proc, err := synth.NewEchoProcessor(cfg.Echo, cfg.Audio.SampleRate)
	if err != nil {
		return err
	}
	if !(opts.seconds > 0) {
		return fmt.Errorf("echo: --seconds must be positive, got %v", opts.seconds)
	}

	blockSize := cfg.Audio.FramesPerBuffer
	frames := int(opts.seconds * cfg.Audio.SampleRate)
	blocks := (frames + blockSize - 1) / blockSize

	f, err := os.Create(opts.outputFile)
	if err != nil {
		return err
	}
	if err := synth.RenderWAV(f, proc, blocks, blockSize, int(cfg.Audio.SampleRate)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	applog.Infof("CLI: Echo rendered to %s (%d frames)", opts.outputFile, blocks*blockSize)
	return nil
}

func playEcho(ctx context.Context, cfg *config.Config, opts *echoOptions) error {
	proc, err := synth.NewEchoProcessor(cfg.Echo, cfg.Audio.SampleRate)
	if err != nil {
		return err
	}

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	player, err := audio.NewPlayer(cfg.Audio, proc.ProcessInterleaved)
	if err != nil {
		return err
	}
	defer player.Close()

	if err := player.StartOutputStream(); err != nil {
		return err
	}

	timer := time.NewTimer(time.Duration(opts.seconds * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	return nil
}
