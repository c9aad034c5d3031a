// SPDX-License-Identifier: MIT
//
// Package build holds the metadata stamped into the binary at link time:
// program name, build timestamp, Git commit and semantic version. Without
// ldflags the development defaults are reported, for example:
//
//	go build -ldflags "-X barviz/pkg/build.buildName=barviz -X barviz/pkg/build.buildVersion=0.1.0 ..."
package build

import (
	"errors"
	"fmt"
	"strings"
)

// Description is the one-line summary shown by --help.
const Description = "Spectral bar visualizer for audio files"

// ErrMissingFlag reports link-time variables that were not set.
var ErrMissingFlag = errors.New("missing build flag")

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Set with -ldflags "-X ...". Empty in development builds.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = defaultFlags()
)

func defaultFlags() *ldFlags {
	return &ldFlags{
		Name:        "barviz",
		Description: Description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize copies the ldflags variables into the build info. All four must
// be present; otherwise the development defaults stay in place and the error
// lists every missing variable.
func Initialize() error {
	var missing []string
	for _, v := range []struct{ name, value string }{
		{"buildName", buildName},
		{"buildTime", buildTime},
		{"buildCommit", buildCommit},
		{"buildVersion", buildVersion},
	} {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingFlag, strings.Join(missing, ", "))
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

func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}
