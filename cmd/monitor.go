// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"

	applog "shoutnode/internal/log"
	"shoutnode/internal/playback"
	"shoutnode/internal/transport/serial"
	"shoutnode/internal/transport/udp"
	"shoutnode/internal/tui"

	"github.com/spf13/cobra"
)

const monitorQueue = 64

type monitorOptions struct {
	serial   string
	baud     int
	udp      string
	spectrum string
}

func newMonitorCmd(global *globalOptions) *cobra.Command {
	opts := &monitorOptions{}

	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch a node's telemetry and send it commands",
		Long: "Decode telemetry lines from the node's serial device or a UDP port.\n" +
			"Over serial, keys send commands: i init, s shoot, d die, p pause, r resume, x stop,\n" +
			"m main menu, b background.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global)
			if err != nil {
				return err
			}
			if opts.serial == "" && opts.udp == "" {
				opts.serial = cfg.Serial.Device
			}
			if opts.baud == 0 {
				opts.baud = cfg.Serial.Baud
			}
			// The monitor owns the terminal.
			applog.SetLevel(applog.LevelError)
			return runMonitor(cmd.Context(), opts)
		},
	}

	f := monitorCmd.Flags()
	f.StringVar(&opts.serial, "serial", "", "Serial device the node is attached to")
	f.IntVar(&opts.baud, "baud", 0, "Serial baud rate (default: serial.baud from the config)")
	f.StringVar(&opts.udp, "udp", "", "UDP address to receive telemetry lines on (e.g. :9090)")
	f.StringVar(&opts.spectrum, "spectrum", "", "UDP address to receive spectrum packets on (e.g. :9091)")
	monitorCmd.MarkFlagsMutuallyExclusive("serial", "udp")
	return monitorCmd
}

func runMonitor(ctx context.Context, opts *monitorOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan []byte, monitorQueue)
	tuiOpts := tui.MonitorOptions{Lines: lines}

	switch {
	case opts.serial != "":
		link, err := serial.Open(opts.serial, opts.baud, monitorQueue)
		if err != nil {
			return err
		}
		defer link.Close()

		go func() {
			defer close(lines)
			for {
				select {
				case <-ctx.Done():
					return
				case line, ok := <-link.Lines():
					if !ok {
						return
					}
					select {
					case lines <- []byte(line):
					case <-ctx.Done():
						return
					}
				}
			}
		}()
		go func() {
			if err := link.ReadLoop(ctx); err != nil {
				applog.Errorf("Monitor: %v", err)
			}
		}()

		tuiOpts.Source = opts.serial
		tuiOpts.Send = func(c playback.Command) error { return link.SendLine(c.Token()) }

	case opts.udp != "":
		l, err := udp.Listen(opts.udp)
		if err != nil {
			return err
		}
		defer l.Close()

		go func() {
			defer close(lines)
			if err := l.Serve(ctx, func(payload []byte) {
				select {
				case lines <- append([]byte(nil), payload...):
				default:
				}
			}); err != nil {
				applog.Errorf("Monitor: %v", err)
			}
		}()
		tuiOpts.Source = l.Addr().String()

	default:
		return errors.New("monitor: set --serial or --udp, or serial.device in the config")
	}

	if opts.spectrum != "" {
		l, err := udp.Listen(opts.spectrum)
		if err != nil {
			return err
		}
		defer l.Close()

		spectra := make(chan udp.SpectrumPacket, 4)
		go func() {
			_ = l.Serve(ctx, func(payload []byte) {
				pkt, err := udp.DecodeSpectrum(payload)
				if err != nil {
					return
				}
				select {
				case spectra <- pkt:
				default:
				}
			})
		}()
		tuiOpts.Spectra = spectra
	}

	return tui.RunMonitor(tuiOpts)
}
