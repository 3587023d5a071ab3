// SPDX-License-Identifier: MIT
//
// Package build carries the metadata stamped into the shoutnode binary at
// link time (name, build time, commit, version). Development builds run
// with the defaults below; release builds are expected to pass every flag:
//
//	go build -ldflags "-X shoutnode/pkg/build.buildName=shoutnode \
//	  -X shoutnode/pkg/build.buildVersion=0.3.0 ..."
package build

import (
	"errors"
	"fmt"
)

// ErrMissingBuildInfo is returned by Initialize when a link-time flag is empty.
var ErrMissingBuildInfo = errors.New("build info missing")

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables populated by -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:        "shoutnode",
		Description: "Real-time audio analysis and synthesis node",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize copies the link-time variables into the build info. It returns
// ErrMissingBuildInfo (wrapped with the flag name) when any flag is absent;
// in that case the development defaults stay in place.
func Initialize() error {
	required := []struct {
		name  string
		value string
	}{
		{"BuildName", buildName},
		{"BuildTime", buildTime},
		{"BuildCommit", buildCommit},
		{"BuildVersion", buildVersion},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s is required", ErrMissingBuildInfo, r.name)
		}
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// Summary renders a one-line version string for logs and --version.
func (f *ldFlags) Summary() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}
