// SPDX-License-Identifier: MIT
package telemetry

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Decode errors.
var (
	ErrEncoding     = errors.New("telemetry line is not valid base64")
	ErrRecord       = errors.New("telemetry record is not a valid object")
	ErrMissingField = errors.New("telemetry record is missing a field")
	ErrFieldType    = errors.New("telemetry field has the wrong type")
)

var recordKeys = []string{KeyGain, KeyFrequency, KeyShoot, KeyPause, KeyDivider, KeyThreshold}

// Decode parses one encoded line as produced by Encoder.Encode. A trailing
// newline (and CR) is accepted. Records missing any field are rejected.
func Decode(line []byte) (Frame, error) {
	line = bytes.TrimRight(line, "\r\n")

	raw := make([]byte, base64.StdEncoding.DecodedLen(len(line)))
	n, err := base64.StdEncoding.Decode(raw, line)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return ParseRecord(raw[:n])
}

// ParseRecord parses the inner text record.
func ParseRecord(record []byte) (Frame, error) {
	if !gjson.ValidBytes(record) {
		return Frame{}, ErrRecord
	}
	root := gjson.ParseBytes(record)
	if !root.IsObject() {
		return Frame{}, ErrRecord
	}

	results := root.Map()
	values := make([]gjson.Result, len(recordKeys))
	for i, key := range recordKeys {
		v, ok := results[key]
		if !ok {
			return Frame{}, fmt.Errorf("%w: %s", ErrMissingField, key)
		}
		if v.Type != gjson.Number {
			return Frame{}, fmt.Errorf("%w: %s is %s", ErrFieldType, key, v.Type)
		}
		values[i] = v
	}

	shoot, err := bit(KeyShoot, values[2])
	if err != nil {
		return Frame{}, err
	}
	pause, err := bit(KeyPause, values[3])
	if err != nil {
		return Frame{}, err
	}

	return Frame{
		DbSPL:        values[0].Float(),
		FrequencyHz:  values[1].Float(),
		ShootPressed: shoot,
		PausePressed: pause,
		Divider:      int(values[4].Int()),
		Threshold:    int(values[5].Int()),
	}, nil
}

func bit(key string, v gjson.Result) (bool, error) {
	switch v.Raw {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, fmt.Errorf("%w: %s must be 0 or 1, got %s", ErrFieldType, key, v.Raw)
	}
}
