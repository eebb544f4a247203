// Package version holds build metadata reported by /version.
package version

// Build metadata, overridden via -ldflags "-X" at release time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)
