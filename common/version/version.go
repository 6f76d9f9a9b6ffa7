// Package version carries build metadata injected with -ldflags -X.
package version

var (
	// Version is the semantic version.
	Version = "v0.0.0-dev"

	// GitCommit is the short commit hash.
	GitCommit = "unknown"

	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// Info renders the version line printed by `pantheon version`.
func Info() string {
	return "pantheon " + Version + " (" + GitCommit + ", built " + BuildTime + ")"
}
