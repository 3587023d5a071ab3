// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"shoutnode/cmd"
	applog "shoutnode/internal/log"
	"shoutnode/pkg/build"
)

// main wires signal handling around the command line. Every subcommand
// receives a context that is cancelled on SIGINT or SIGTERM and shuts down
// through it.
func main() {
	// Development builds run without link-time metadata.
	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v, using development defaults", err)
	}

	// One thread for the audio callbacks, one for the control loop and I/O.
	runtime.GOMAXPROCS(2)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		applog.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}
