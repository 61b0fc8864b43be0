// Package version provides build and version information for clausecheck.
package version

import (
	"fmt"
	"runtime"

	"github.com/Aman-CERP/clausecheck/internal/store"
)

// Version is the current version of clausecheck.
// Set via ldflags: -X github.com/Aman-CERP/clausecheck/pkg/version.Version=$(VERSION)
var Version = "dev"

// Build information set via ldflags at build time.
var (
	// Commit is the git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"
)

// IndexSchemaVersion is the unit store schema this binary reads and writes.
const IndexSchemaVersion = store.CurrentSchemaVersion

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	Date        string `json:"date"`
	GoVersion   string `json:"go_version"`
	OS          string `json:"os"`
	Arch        string `json:"arch"`
	IndexSchema int    `json:"index_schema"`
}

// String returns a formatted version string with all build info.
func String() string {
	return fmt.Sprintf("clausecheck %s (commit: %s, built: %s, go: %s, index schema: %d)",
		Version, Commit, Date, runtime.Version(), IndexSchemaVersion)
}

// Short returns just the version string.
func Short() string {
	return Version
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:     Version,
		Commit:      Commit,
		Date:        Date,
		GoVersion:   runtime.Version(),
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
		IndexSchema: IndexSchemaVersion,
	}
}
