// SPDX-License-Identifier: MIT
package playback

import (
	"errors"
	"sync"

	applog "shoutnode/internal/log"
)

// State is the arbiter's main state. One-shot effects are layered on top
// and do not change it.
type State int

const (
	Idle State = iota
	MenuActive
	BackgroundActive
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case MenuActive:
		return "MenuActive"
	case BackgroundActive:
		return "BackgroundActive"
	default:
		return "Unknown"
	}
}

// ErrMissingSource is returned when any of the four sources is nil.
var ErrMissingSource = errors.New("playback: all four sources are required")

// Arbiter keeps at most one of menu and background audible and remembers
// whether the background was interrupted so that resume can continue it.
type Arbiter struct {
	mu                   sync.Mutex
	src                  Sources
	state                State
	wasPlayingBackground bool
}

// NewArbiter returns an arbiter in the Idle state.
func NewArbiter(src Sources) (*Arbiter, error) {
	if !src.valid() {
		return nil, ErrMissingSource
	}
	return &Arbiter{src: src}, nil
}

// State returns the current main state.
func (a *Arbiter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// WasPlayingBackground reports whether resume would continue a paused
// background rather than restart it.
func (a *Arbiter) WasPlayingBackground() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.wasPlayingBackground
}

// OneShotActive reports whether a shoot or die effect is audible.
func (a *Arbiter) OneShotActive() bool {
	return a.src.Shoot.IsPlaying() || a.src.Die.IsPlaying()
}

// Dispatch applies one command and returns the resulting main state.
// Unknown commands change nothing.
func (a *Arbiter) Dispatch(cmd Command) State {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch cmd {
	case CmdInit:
		for _, s := range a.src.all() {
			s.Stop()
		}
		a.wasPlayingBackground = false
		a.src.Menu.Play()
		a.state = MenuActive

	case CmdShoot:
		a.src.Shoot.Play()

	case CmdDie:
		a.src.Die.Play()

	case CmdPause:
		if !a.src.Background.IsPlaying() {
			applog.Debugf("Playback: pause ignored, background not playing")
			break
		}
		a.src.Background.TogglePause()
		a.wasPlayingBackground = true
		a.src.Menu.Play()
		a.state = MenuActive

	case CmdResume:
		if a.src.Menu.IsPlaying() {
			a.src.Menu.Stop()
		}
		if a.wasPlayingBackground {
			a.src.Background.TogglePause()
		} else {
			a.src.Background.Play()
		}
		a.wasPlayingBackground = false
		a.state = BackgroundActive

	case CmdStop:
		a.stopMain()
		a.wasPlayingBackground = false
		a.state = Idle

	case CmdMenuTrack:
		a.stopMain()
		a.wasPlayingBackground = false
		a.src.Menu.Play()
		a.state = MenuActive

	case CmdBackgroundTrack:
		a.stopMain()
		a.wasPlayingBackground = false
		a.src.Background.Play()
		a.state = BackgroundActive

	default:
		// Unknown tokens are ignored.
	}

	return a.state
}

// stopMain stops background and menu if they are audible. A background we
// paused is not audible but is stopped as well so it cannot linger.
func (a *Arbiter) stopMain() {
	if a.src.Background.IsPlaying() || a.wasPlayingBackground {
		a.src.Background.Stop()
	}
	if a.src.Menu.IsPlaying() {
		a.src.Menu.Stop()
	}
}
