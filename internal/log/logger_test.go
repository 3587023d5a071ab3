// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   LogLevel
		wantOK bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"warning", LevelWarn, true},
		{" Error ", LevelError, true},
		{"fatal", LevelFatal, true},
		{"verbose", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	prev := GetLevel()
	t.Cleanup(func() {
		SetLevel(prev)
		SetOutput(os.Stderr)
	})

	SetLevel(LevelWarn)
	Infof("hidden %d", 1)
	Warnf("visible %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden 1") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "visible 2") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	prev := GetLevel()
	t.Cleanup(func() {
		SetLevel(prev)
		SetOutput(os.Stderr)
	})
	SetLevel(LevelInfo)

	WithFields(Fields{"command": "pause"}).Info("dispatched")

	if !strings.Contains(buf.String(), "command=pause") {
		t.Errorf("expected structured field in output, got %q", buf.String())
	}
}

func TestLevelString(t *testing.T) {
	if LevelDebug.String() != "DEBUG" || LogLevel(42).String() != "UNKNOWN" {
		t.Error("unexpected level names")
	}
}
