// Package version holds build information set through -ldflags.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GoVersion = runtime.Version()
)

// SetInfo overrides the non-empty values.
func SetInfo(v, bt, gc, gv string) {
	if v != "" {
		Version = v
	}
	if bt != "" {
		BuildTime = bt
	}
	if gc != "" {
		GitCommit = gc
	}
	if gv != "" && gv != "unknown" {
		GoVersion = gv
	}
}

// Short returns "version (commit)".
func Short() string {
	return fmt.Sprintf("%s (%s)", Version, GitCommit)
}

// Format returns the multi-line report printed by the version command.
func Format() string {
	var b strings.Builder
	b.WriteString("berrus-helper - companion daemon for Berrus\n")
	fmt.Fprintf(&b, "Version: %s\n", Version)
	fmt.Fprintf(&b, "Build Time: %s\n", BuildTime)
	fmt.Fprintf(&b, "Git Commit: %s\n", GitCommit)
	fmt.Fprintf(&b, "Go Version: %s\n", GoVersion)
	return b.String()
}
