// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	applog "shoutnode/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrAlreadyRecording is returned by StartRecording while a take is open.
var ErrAlreadyRecording = errors.New("already recording")

// recordBitDepth matches the int32 capture format.
const recordBitDepth = 32

func (e *Engine) StartRecording(filename string) error {
	if atomic.LoadInt32(&e.isRecording) == 1 {
		return ErrAlreadyRecording
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	e.outputFile = file

	channels := e.config.InputChannels
	e.wavEncoder = wav.NewEncoder(file, int(e.config.SampleRate), recordBitDepth, channels, 1)

	e.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  int(e.config.SampleRate),
		},
		Data:           make([]int, e.config.FramesPerBuffer*channels),
		SourceBitDepth: recordBitDepth,
	}

	atomic.StoreInt32(&e.isRecording, 1)
	applog.Infof("Audio: Recording to %s", filename)

	return nil
}

// recordBuffer converts one captured block and appends it to the take.
func (e *Engine) recordBuffer(buffer []int32) {
	data := e.sampleBuf.Data[:cap(e.sampleBuf.Data)]
	n := min(len(buffer), len(data))
	for i := range n {
		data[i] = int(buffer[i])
	}
	e.sampleBuf.Data = data[:n]

	if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
		applog.Errorf("Audio: Error writing to WAV file: %v", err)
	}
}

func (e *Engine) StopRecording() error {
	if atomic.LoadInt32(&e.isRecording) == 0 {
		return nil
	}

	atomic.StoreInt32(&e.isRecording, 0)

	if e.wavEncoder != nil {
		if err := e.wavEncoder.Close(); err != nil {
			return err
		}
		e.wavEncoder = nil
	}

	if e.outputFile != nil {
		if err := e.outputFile.Close(); err != nil {
			return err
		}
		e.outputFile = nil
	}

	applog.Infof("Audio: Recording stopped")
	return nil
}

// IsRecording reports whether a take is open.
func (e *Engine) IsRecording() bool {
	return atomic.LoadInt32(&e.isRecording) == 1
}

// Close stops recording and both streams.
func (e *Engine) Close() error {
	if err := e.StopRecording(); err != nil {
		return err
	}

	return errors.Join(e.StopInputStream(), e.StopOutputStream())
}
