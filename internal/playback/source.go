// SPDX-License-Identifier: MIT
package playback

// Source is a named playback source driven by the arbiter. Implementations
// must not block.
type Source interface {
	// Play starts the source from the beginning, even if already playing.
	Play()
	// Stop halts the source and rewinds it.
	Stop()
	// TogglePause flips between playing and paused. It has no effect on a
	// stopped source.
	TogglePause()
	// IsPlaying reports whether the source is audible. A paused or
	// finished source is not playing.
	IsPlaying() bool
}

// Sources are the four sources the arbiter mediates.
type Sources struct {
	Menu       Source
	Background Source
	Shoot      Source
	Die        Source
}

func (s Sources) all() [4]Source {
	return [4]Source{s.Menu, s.Background, s.Shoot, s.Die}
}

func (s Sources) valid() bool {
	for _, src := range s.all() {
		if src == nil {
			return false
		}
	}
	return true
}
