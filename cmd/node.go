// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"shoutnode/internal/analysis"
	"shoutnode/internal/audio"
	"shoutnode/internal/config"
	applog "shoutnode/internal/log"
	"shoutnode/internal/node"
	"shoutnode/internal/observe"
	"shoutnode/internal/playback"
	"shoutnode/internal/telemetry"
	"shoutnode/internal/transport"
	"shoutnode/internal/transport/serial"
	"shoutnode/internal/transport/udp"
	"shoutnode/pkg/build"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

// runNode is the node lifecycle:
//
// 1. Startup (cold path): metrics, PortAudio, analysis, samples, links.
// 2. Concurrent phase: audio callbacks, serial read loop, control loop,
// WebSocket server and spectrum publisher until a signal arrives.
// 3. Shutdown (cold path): close links, stop recording, release audio.
func runNode(ctx context.Context, cfg *config.Config, opts *nodeOptions) error {
	// ==================== STARTUP PHASE (Cold Path) ====================
	info := build.GetBuildFlags()
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    info.Name,
		ServiceVersion: info.Version,
	})
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			applog.Warnf("CLI: Metrics shutdown: %v", err)
		}
	}()
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	window, _ := analysis.ParseWindowFunc(cfg.Analysis.FFTWindow)
	fftProc, err := analysis.NewFFTProcessor(cfg.Analysis.FFTSize, cfg.Audio.SampleRate, window)
	if err != nil {
		return err
	}
	defer fftProc.Close()

	level, err := analysis.NewLevelModel(cfg.Analysis.MicSensitivity, cfg.Analysis.ReferencePressure)
	if err != nil {
		return err
	}

	sources, mixer, err := loadSources(cfg)
	if err != nil {
		return err
	}
	arbiter, err := playback.NewArbiter(sources)
	if err != nil {
		return err
	}

	links, err := openLinks(cfg, fftProc, metrics)
	if err != nil {
		return err
	}
	defer links.Close()
	sink, link, ws := links.sink, links.serial, links.ws

	controllerOpts := node.Options{
		Windows:      fftProc,
		Level:        level,
		Panel:        telemetry.NewStaticPanel(cfg.Panel.DividerRaw, cfg.Panel.ThresholdRaw, cfg.Panel.ShootPressed, cfg.Panel.PausePressed),
		Arbiter:      arbiter,
		Sink:         sink,
		Metrics:      metrics,
		LoopInterval: cfg.Node.LoopInterval,
	}
	if link != nil {
		controllerOpts.Commands = link
	}
	controller, err := node.New(controllerOpts)
	if err != nil {
		return err
	}

	var output audio.OutputFunc
	if mixer != nil {
		output = mixer.Mix
	}
	engine, err := audio.NewEngine(cfg.Audio, fftProc, output)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			applog.Errorf("CLI: Error closing audio engine: %v", err)
		}
	}()
	if err := metrics.ObserveGatedBlocks(engine.GatedBlocks); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================
	if err := engine.Start(); err != nil {
		return err
	}

	if cfg.Recording.Enabled {
		if err := os.MkdirAll(filepath.Dir(opts.outputFile), 0o755); err != nil {
			return err
		}
		if err := engine.StartRecording(opts.outputFile); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return controller.Run(gctx) })

	if link != nil {
		g.Go(func() error { return link.ReadLoop(gctx) })
		g.Go(func() error {
			<-gctx.Done()
			return link.Close()
		})
	}

	if ws != nil {
		g.Go(ws.ListenAndServe)
		g.Go(func() error {
			<-gctx.Done()
			return ws.Close()
		})
	}

	if publisher := links.publisher; publisher != nil {
		publisher.Start()
		g.Go(func() error {
			<-gctx.Done()
			return errors.Join(publisher.Close(), links.spectrumSender.Close())
		})
	}

	applog.Infof("CLI: %s running, press Ctrl+C to stop", info.Summary())
	err = g.Wait()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================
	if cfg.Recording.Enabled {
		if stopErr := engine.StopRecording(); stopErr != nil {
			applog.Errorf("CLI: Error stopping recording: %v", stopErr)
		} else {
			applog.Infof("CLI: Recording saved to %s", opts.outputFile)
		}
	}
	return err
}

// newWebSocketTransport is replaceable in tests.
var newWebSocketTransport = transport.NewWebSocketTransport

// nodeLinks holds every outward connection of the node.
type nodeLinks struct {
	sink           *transport.Fanout
	serial         *serial.Link
	ws             *transport.WebSocketTransport
	spectrumSender *udp.Sender
	publisher      *udp.SpectrumPublisher
}

// openLinks builds every link the config enables. Nothing is started. On
// error whatever was already opened is closed again.
func openLinks(cfg *config.Config, spectrum udp.MagnitudeSource, metrics *observe.Metrics) (_ *nodeLinks, err error) {
	l := &nodeLinks{sink: transport.NewFanout()}
	defer func() {
		if err != nil {
			l.Close()
		}
	}()

	if cfg.Serial.Device != "" {
		if l.serial, err = serial.Open(cfg.Serial.Device, cfg.Serial.Baud, cfg.Serial.Queue); err != nil {
			return nil, err
		}
		l.sink.Add(l.serial)
	}

	if cfg.Transport.WebSocketEnabled {
		l.ws = newWebSocketTransport(cfg.Transport.WebSocketAddr, metrics)
		l.sink.Add(l.ws)
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return nil, err
		}
		l.sink.Add(sender)
	}

	if cfg.Transport.SpectrumEnabled {
		if l.spectrumSender, err = udp.NewSender(cfg.Transport.SpectrumTarget); err != nil {
			return nil, err
		}
		l.publisher, err = udp.NewSpectrumPublisher(cfg.Transport.SpectrumInterval, l.spectrumSender, spectrum)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Debug || l.sink.Len() == 0 {
		l.sink.Add(transport.NewLoggingTransport())
	}
	return l, nil
}

// Close stops the spectrum publisher and closes every link.
func (l *nodeLinks) Close() error {
	var errs []error
	if l.publisher != nil {
		errs = append(errs, l.publisher.Close())
	}
	if l.spectrumSender != nil {
		errs = append(errs, l.spectrumSender.Close())
	}
	errs = append(errs, l.sink.Close())
	return errors.Join(errs...)
}

// loadSources returns the arbiter's sources and the mixer that renders
// them. With playback disabled the sources are silent and no mixer is
// returned.
func loadSources(cfg *config.Config) (playback.Sources, *playback.Mixer, error) {
	if !cfg.Playback.Enabled {
		return playback.Sources{
			Menu:       playback.NewSample(playback.MenuClip, nil),
			Background: playback.NewSample(playback.BackgroundClip, nil),
			Shoot:      playback.NewSample(playback.ShootClip, nil),
			Die:        playback.NewSample(playback.DieClip, nil),
		}, nil, nil
	}

	lib, err := playback.LoadLibrary(cfg.Playback.SampleDir, int(cfg.Audio.SampleRate))
	if err != nil {
		return playback.Sources{}, nil, err
	}
	return lib.Sources(), playback.NewMixer(cfg.Audio.FramesPerBuffer, lib.Samples()...), nil
}
