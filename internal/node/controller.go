// SPDX-License-Identifier: MIT

// Package node ties the analysis, telemetry and playback components into
// the cooperative control loop of a node.
package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shoutnode/internal/analysis"
	applog "shoutnode/internal/log"
	"shoutnode/internal/observe"
	"shoutnode/internal/playback"
	"shoutnode/internal/telemetry"
)

// DefaultLoopInterval is the pause between two control cycles.
const DefaultLoopInterval = 10 * time.Millisecond

// ErrMissingDependency is returned by New when a required collaborator is nil.
var ErrMissingDependency = errors.New("node: missing dependency")

// CommandSource yields pending command lines without blocking.
type CommandSource interface {
	Poll() (line string, ok bool)
}

// Sink delivers one encoded telemetry line.
type Sink interface {
	Send(line []byte) error
}

// Dispatcher applies a decoded command.
type Dispatcher interface {
	Dispatch(cmd playback.Command) playback.State
}

// Options are the collaborators of a Controller. Commands and Metrics are
// optional.
type Options struct {
	Windows      analysis.WindowSource
	Level        analysis.LevelModel
	Panel        telemetry.Panel
	Arbiter      Dispatcher
	Commands     CommandSource
	Sink         Sink
	Metrics      *observe.Metrics
	LoopInterval time.Duration
}

// StepResult describes what one Step did.
type StepResult struct {
	Command    playback.Command
	Dispatched bool
	State      playback.State
	Frame      telemetry.Frame
	Sent       bool
}

// Controller is the explicit context owned by the control loop. It is not
// safe for concurrent use; Run is its only driver in production.
type Controller struct {
	windows  analysis.WindowSource
	level    analysis.LevelModel
	panel    telemetry.Panel
	arbiter  Dispatcher
	commands CommandSource
	sink     Sink
	metrics  *observe.Metrics
	interval time.Duration

	encoder *telemetry.Encoder
	mags    []float64 // reused window buffer, len N/2
}

// New validates opts and pre-allocates the per-cycle buffers.
func New(opts Options) (*Controller, error) {
	switch {
	case opts.Windows == nil:
		return nil, fmt.Errorf("%w: window source", ErrMissingDependency)
	case opts.Panel == nil:
		return nil, fmt.Errorf("%w: panel", ErrMissingDependency)
	case opts.Arbiter == nil:
		return nil, fmt.Errorf("%w: arbiter", ErrMissingDependency)
	case opts.Sink == nil:
		return nil, fmt.Errorf("%w: sink", ErrMissingDependency)
	}
	if opts.Level == (analysis.LevelModel{}) {
		opts.Level = analysis.DefaultLevelModel()
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	if opts.LoopInterval <= 0 {
		opts.LoopInterval = DefaultLoopInterval
	}

	return &Controller{
		windows:  opts.Windows,
		level:    opts.Level,
		panel:    opts.Panel,
		arbiter:  opts.Arbiter,
		commands: opts.Commands,
		sink:     opts.Sink,
		metrics:  opts.Metrics,
		interval: opts.LoopInterval,
		encoder:  telemetry.NewEncoder(),
		mags:     make([]float64, opts.Windows.GetFFTSize()/2),
	}, nil
}

// Step runs one cooperative cycle: dispatch at most one pending command,
// then, if a new window is available, measure it and send one frame.
func (c *Controller) Step(ctx context.Context) StepResult {
	start := time.Now()
	var res StepResult

	if c.commands != nil {
		if line, ok := c.commands.Poll(); ok {
			res.Command = playback.ParseCommand(line)
			c.dispatch(ctx, line, &res)
		}
	}

	if c.windows.Available() {
		if w, ok := c.windows.ReadWindow(c.mags); ok {
			c.measure(ctx, w, &res)
		}
	}

	c.metrics.StepDuration.Record(ctx, time.Since(start).Seconds())
	return res
}

func (c *Controller) dispatch(ctx context.Context, line string, res *StepResult) {
	if res.Command == playback.CmdUnknown {
		c.metrics.UnknownCommands.Add(ctx, 1)
		if near, score, ok := playback.NearestCommand(line); ok {
			applog.Debugf("Node: Ignoring unknown command %q (did you mean %q? %.2f)", line, near.Token(), score)
		} else {
			applog.Debugf("Node: Ignoring unknown command %q", line)
		}
		return
	}

	res.State = c.arbiter.Dispatch(res.Command)
	res.Dispatched = true
	c.metrics.RecordCommand(ctx, res.Command.Token())
	applog.WithFields(applog.Fields{"command": res.Command.Token(), "state": res.State.String()}).
		Debug("Node: Command dispatched")
}

func (c *Controller) measure(ctx context.Context, w analysis.SpectrumWindow, res *StepResult) {
	feature, err := analysis.Extract(w)
	if err != nil {
		c.metrics.WindowsRejected.Add(ctx, 1)
		applog.Warnf("Node: Skipping window: %v", err)
		return
	}

	dbSPL := c.level.Convert(feature.AvgAmplitude)
	res.Frame = c.panel.Snapshot().Frame(dbSPL, feature.DominantFrequencyHz)
	c.metrics.RecordWindow(ctx, dbSPL, feature.DominantFrequencyHz)

	if err := c.sink.Send(c.encoder.Encode(res.Frame)); err != nil {
		c.metrics.SinkErrors.Add(ctx, 1)
		applog.Warnf("Node: Telemetry send failed: %v", err)
		return
	}
	c.metrics.FramesSent.Add(ctx, 1)
	res.Sent = true
}

// Run calls Step every loop interval until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	applog.Infof("Node: Control loop started (interval %v)", c.interval)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			applog.Infof("Node: Control loop stopped")
			return nil
		case <-ticker.C:
			c.Step(ctx)
		}
	}
}
