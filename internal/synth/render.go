// SPDX-License-Identifier: MIT
package synth

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// RenderWAV writes blocks*blockSize stereo frames of the echo to ws as a
// 16-bit PCM WAV file.
func RenderWAV(ws io.WriteSeeker, p *EchoProcessor, blocks, blockSize, sampleRate int) error {
	if blocks < 0 || blockSize < 1 || sampleRate < 1 {
		return fmt.Errorf("render: invalid geometry blocks=%d blockSize=%d sampleRate=%d", blocks, blockSize, sampleRate)
	}

	enc := wav.NewEncoder(ws, sampleRate, 16, 2, 1)

	block := make([]int16, blockSize*2)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 2,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, blockSize*2),
		SourceBitDepth: 16,
	}

	for range blocks {
		p.ProcessInterleaved(block)
		for i, s := range block {
			buf.Data[i] = int(s)
		}
		if err := enc.Write(buf); err != nil {
			return fmt.Errorf("render: writing block: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("render: closing encoder: %w", err)
	}
	return nil
}
