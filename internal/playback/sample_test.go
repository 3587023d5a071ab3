// SPDX-License-Identifier: MIT
package playback

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(frames int, v int16) []int16 {
	out := make([]int16, frames*2)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestSampleLifecycle(t *testing.T) {
	s := NewSample("clip", ramp(4, 100))
	assert.False(t, s.IsPlaying())

	s.TogglePause()
	assert.False(t, s.IsPlaying(), "toggling a stopped clip does nothing")

	s.Play()
	assert.True(t, s.IsPlaying())
	s.TogglePause()
	assert.False(t, s.IsPlaying())
	assert.True(t, s.IsPaused())
	s.TogglePause()
	assert.True(t, s.IsPlaying())
	s.Stop()
	assert.False(t, s.IsPlaying())
	assert.False(t, s.IsPaused())
}

func TestMixerNaturalEnd(t *testing.T) {
	s := NewSample("clip", ramp(3, 1000))
	m := NewMixer(2, s)
	out := make([]int16, 4)

	s.Play()
	m.Mix(out)
	assert.Equal(t, []int16{1000, 1000, 1000, 1000}, out)
	assert.True(t, s.IsPlaying())

	m.Mix(out)
	assert.Equal(t, []int16{1000, 1000, 0, 0}, out)
	assert.False(t, s.IsPlaying(), "clip stops at its end")
	assert.False(t, m.Active())
}

func TestMixerPauseHoldsPosition(t *testing.T) {
	pcm := []int16{1, 1, 2, 2, 3, 3, 4, 4}
	s := NewSample("clip", pcm)
	m := NewMixer(1, s)
	out := make([]int16, 2)

	s.Play()
	m.Mix(out)
	s.TogglePause()
	m.Mix(out)
	assert.Equal(t, []int16{0, 0}, out)
	s.TogglePause()
	m.Mix(out)
	assert.Equal(t, []int16{2, 2}, out)

	s.Play()
	m.Mix(out)
	assert.Equal(t, []int16{1, 1}, out, "Play restarts from the beginning")
}

func TestMixerSaturates(t *testing.T) {
	a := NewSample("a", ramp(2, 30000))
	b := NewSample("b", ramp(2, 30000))
	c := NewSample("c", ramp(2, -30000))
	m := NewMixer(2)
	m.Add(a)
	m.Add(b)
	out := make([]int16, 4)

	a.Play()
	b.Play()
	m.Mix(out)
	assert.Equal(t, []int16{32767, 32767, 32767, 32767}, out)

	m.Add(c)
	a.Play()
	b.Stop()
	c.Play()
	m.Mix(out)
	assert.Equal(t, []int16{0, 0, 0, 0}, out)
}

func TestMixerHotPath(t *testing.T) {
	s := NewSample("clip", ramp(1<<16, 5))
	m := NewMixer(256, s)
	out := make([]int16, 512)
	s.Play()

	allocs := testing.AllocsPerRun(100, func() {
		m.Mix(out)
	})
	assert.Zero(t, allocs)
}

func writeWAV(t *testing.T, path string, rate, channels int, data []int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
}

func TestLoadSampleWAVMonoUpsampled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shoot.wav")
	data := make([]int, 100)
	for i := range data {
		data[i] = 16384
	}
	writeWAV(t, path, 22050, 1, data)

	s, err := LoadSample(path, 44100)
	require.NoError(t, err)
	assert.Equal(t, "shoot.wav", s.Name)
	assert.Equal(t, 200, s.Frames())

	m := NewMixer(4, s)
	out := make([]int16, 8)
	s.Play()
	m.Mix(out)
	for _, v := range out {
		assert.InDelta(t, 16384, v, 2)
	}
}

func TestLoadSampleErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadSample(filepath.Join(dir, "missing.wav"), 44100)
	assert.ErrorIs(t, err, os.ErrNotExist)

	flac := filepath.Join(dir, "clip.flac")
	require.NoError(t, os.WriteFile(flac, []byte("fLaC"), 0o644))
	_, err = LoadSample(flac, 44100)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	bogus := filepath.Join(dir, "bogus.wav")
	require.NoError(t, os.WriteFile(bogus, []byte("not a riff file at all"), 0o644))
	_, err = LoadSample(bogus, 44100)
	assert.Error(t, err)
}

func TestLoadLibrary(t *testing.T) {
	dir := t.TempDir()
	for _, clip := range []string{MenuClip, BackgroundClip, ShootClip} {
		writeWAV(t, filepath.Join(dir, clip), 44100, 2, make([]int, 64))
	}

	_, err := LoadLibrary(dir, 44100)
	assert.ErrorIs(t, err, ErrSampleNotFound)

	writeWAV(t, filepath.Join(dir, DieClip), 44100, 2, make([]int, 64))
	lib, err := LoadLibrary(dir, 44100)
	require.NoError(t, err)
	assert.Equal(t, DieClip, lib.Die.Name)
	assert.Len(t, lib.Samples(), 4)

	a, err := NewArbiter(lib.Sources())
	require.NoError(t, err)
	assert.Equal(t, MenuActive, a.Dispatch(CmdInit))
	assert.True(t, lib.Menu.IsPlaying())
}
