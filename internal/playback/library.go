// SPDX-License-Identifier: MIT
package playback

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	applog "shoutnode/internal/log"
)

// Clip names as stored on the sample card. The menu and background tracks
// double as command tokens.
const (
	MenuClip       = "main_menu.wav"
	BackgroundClip = "shout2play.wav"
	ShootClip      = "shoot.wav"
	DieClip        = "die.wav"
)

// ErrSampleNotFound is returned when a clip is absent in every supported
// format.
var ErrSampleNotFound = errors.New("playback: sample not found")

var sampleExts = []string{".wav", ".mp3", ".ogg"}

// Library holds the four clips loaded from a sample directory.
type Library struct {
	Menu, Background, Shoot, Die *Sample
}

// LoadLibrary loads the four clips from dir at sampleRate. Each clip may be
// stored as .wav, .mp3 or .ogg under the same base name; .wav wins.
func LoadLibrary(dir string, sampleRate int) (*Library, error) {
	load := func(clip string) (*Sample, error) {
		path, err := findClip(dir, clip)
		if err != nil {
			return nil, err
		}
		s, err := LoadSample(path, sampleRate)
		if err != nil {
			return nil, err
		}
		s.Name = clip
		applog.Debugf("Playback: Loaded %s from %s (%d frames)", clip, path, s.Frames())
		return s, nil
	}

	var lib Library
	var err error
	if lib.Menu, err = load(MenuClip); err != nil {
		return nil, err
	}
	if lib.Background, err = load(BackgroundClip); err != nil {
		return nil, err
	}
	if lib.Shoot, err = load(ShootClip); err != nil {
		return nil, err
	}
	if lib.Die, err = load(DieClip); err != nil {
		return nil, err
	}
	return &lib, nil
}

func findClip(dir, clip string) (string, error) {
	base := strings.TrimSuffix(clip, filepath.Ext(clip))
	for _, ext := range sampleExts {
		path := filepath.Join(dir, base+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrSampleNotFound, clip, dir)
}

// Sources exposes the clips to an Arbiter.
func (l *Library) Sources() Sources {
	return Sources{Menu: l.Menu, Background: l.Background, Shoot: l.Shoot, Die: l.Die}
}

// Samples lists the clips for a Mixer.
func (l *Library) Samples() []*Sample {
	return []*Sample{l.Menu, l.Background, l.Shoot, l.Die}
}
