// SPDX-License-Identifier: MIT
package playback

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	applog "shoutnode/internal/log"

	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// Loader errors.
var (
	ErrUnsupportedFormat = errors.New("playback: unsupported sample format")
	ErrInvalidSample     = errors.New("playback: invalid sample file")
)

// pcm is decoded audio before it is fitted to the output stream.
type pcm struct {
	data       []float32 // interleaved, [-1, 1]
	channels   int
	sampleRate int
}

// LoadSample decodes a .wav, .mp3 or .ogg file into a stereo Sample at
// sampleRate. The sample is named after the file's base name, which is
// what the command tokens refer to.
func LoadSample(path string, sampleRate int) (*Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("playback: open %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	var p pcm
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		p, err = decodeWAV(f)
	case ".mp3":
		p, err = decodeMP3(f)
	case ".ogg":
		p, err = decodeOgg(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("playback: decode %s: %w", name, err)
	}

	out := toStereo16(p, sampleRate)
	applog.Infof("Playback: Loaded %s (%d ch @ %d Hz -> %d frames @ %d Hz)",
		name, p.channels, p.sampleRate, len(out)/2, sampleRate)
	return NewSample(name, out), nil
}

func decodeWAV(r io.ReadSeeker) (pcm, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return pcm{}, ErrInvalidSample
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return pcm{}, err
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return pcm{}, ErrInvalidSample
	}

	bitDepth := int(d.BitDepth)
	var scale float32
	switch bitDepth {
	case 8:
		scale = 1.0 / 128
	case 16, 24, 32:
		scale = float32(1.0 / math.Exp2(float64(bitDepth-1)))
	default:
		return pcm{}, fmt.Errorf("%w: %d-bit PCM", ErrUnsupportedFormat, bitDepth)
	}

	data := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		if bitDepth == 8 {
			v -= 128 // 8-bit WAV is unsigned
		}
		data[i] = float32(v) * scale
	}
	return pcm{data: data, channels: buf.Format.NumChannels, sampleRate: buf.Format.SampleRate}, nil
}

func decodeMP3(r io.Reader) (pcm, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return pcm{}, err
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return pcm{}, err
	}

	// go-mp3 always yields 16-bit little-endian stereo.
	data := make([]float32, len(raw)/2)
	for i := range data {
		data[i] = float32(int16(binary.LittleEndian.Uint16(raw[2*i:]))) / 32768
	}
	return pcm{data: data, channels: 2, sampleRate: dec.SampleRate()}, nil
}

func decodeOgg(r io.Reader) (pcm, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return pcm{}, err
	}
	return pcm{data: data, channels: format.Channels, sampleRate: format.SampleRate}, nil
}

// toStereo16 maps channels onto L/R (mono is duplicated, extra channels are
// dropped), resamples linearly to rate and quantises to 16 bits.
func toStereo16(p pcm, rate int) []int16 {
	if p.channels < 1 || p.sampleRate < 1 || rate < 1 {
		return nil
	}
	frames := len(p.data) / p.channels
	if frames == 0 {
		return nil
	}

	at := func(frame, ch int) float32 {
		if ch >= p.channels {
			ch = p.channels - 1
		}
		return p.data[frame*p.channels+ch]
	}

	ratio := float64(p.sampleRate) / float64(rate)
	outFrames := int(float64(frames) / ratio)
	out := make([]int16, outFrames*2)
	for i := range outFrames {
		pos := float64(i) * ratio
		i0 := int(pos)
		i1 := min(i0+1, frames-1)
		frac := float32(pos - float64(i0))
		for ch := range 2 {
			v := at(i0, ch)*(1-frac) + at(i1, ch)*frac
			out[2*i+ch] = quantize16(v)
		}
	}
	return out
}

func quantize16(v float32) int16 {
	v = max(-1, min(v, 1))
	return int16(math.Round(float64(v) * math.MaxInt16))
}
