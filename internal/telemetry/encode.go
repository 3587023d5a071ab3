// SPDX-License-Identifier: MIT
package telemetry

import (
	"encoding/base64"
	"math"
	"strconv"
)

// Wire keys, in wire order.
const (
	KeyGain      = "gain"
	KeyFrequency = "frequency"
	KeyShoot     = "button_pressed_shoot"
	KeyPause     = "button_pressed_pause"
	KeyDivider   = "divider"
	KeyThreshold = "threshold"
)

// maxRecordLen bounds the rendered record for the initial buffer sizes.
// Larger values still encode, the buffers are just sized up front.
const maxRecordLen = 160

// EncodedLength is the exact size of an encoded line for a raw record of
// rawLen bytes: padded base64 plus the newline terminator.
func EncodedLength(rawLen int) int {
	return base64.StdEncoding.EncodedLen(rawLen) + 1
}

// Encoder renders frames into newline-terminated base64 lines. It reuses
// its buffers; the slice returned by Encode is valid until the next call.
// An Encoder is not safe for concurrent use.
type Encoder struct {
	text []byte
	out  []byte
}

// NewEncoder pre-allocates the record and output buffers.
func NewEncoder() *Encoder {
	return &Encoder{
		text: make([]byte, 0, maxRecordLen),
		out:  make([]byte, EncodedLength(maxRecordLen)),
	}
}

// Encode renders f and returns the encoded line including the trailing
// newline. The output size is computed before any byte is written.
func (e *Encoder) Encode(f Frame) []byte {
	e.text = AppendRecord(e.text[:0], f)

	n := EncodedLength(len(e.text))
	if cap(e.out) < n {
		e.out = make([]byte, n)
	}
	e.out = e.out[:n]

	base64.StdEncoding.Encode(e.out[:n-1], e.text)
	e.out[n-1] = '\n'
	return e.out
}

// AppendRecord appends the flat text record for f to dst.
func AppendRecord(dst []byte, f Frame) []byte {
	dst = append(dst, '{')
	dst = appendKey(dst, KeyGain)
	dst = appendFixed2(dst, f.DbSPL)
	dst = append(dst, ',')
	dst = appendKey(dst, KeyFrequency)
	dst = appendFixed2(dst, f.FrequencyHz)
	dst = append(dst, ',')
	dst = appendKey(dst, KeyShoot)
	dst = appendBit(dst, f.ShootPressed)
	dst = append(dst, ',')
	dst = appendKey(dst, KeyPause)
	dst = appendBit(dst, f.PausePressed)
	dst = append(dst, ',')
	dst = appendKey(dst, KeyDivider)
	dst = strconv.AppendInt(dst, int64(f.Divider), 10)
	dst = append(dst, ',')
	dst = appendKey(dst, KeyThreshold)
	dst = strconv.AppendInt(dst, int64(f.Threshold), 10)
	return append(dst, '}')
}

func appendKey(dst []byte, key string) []byte {
	dst = append(dst, '"')
	dst = append(dst, key...)
	return append(dst, '"', ':')
}

// appendFixed2 writes v with exactly two decimals. Non-finite values would
// not survive as a record number, so they are written as 0.00.
func appendFixed2(dst []byte, v float64) []byte {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return strconv.AppendFloat(dst, v, 'f', 2, 64)
}

func appendBit(dst []byte, b bool) []byte {
	if b {
		return append(dst, '1')
	}
	return append(dst, '0')
}
