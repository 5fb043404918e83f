// Package version provides version information for sbomdiff.
package version

// Version is the version of `sbomdiff` and `sbomdiffd`.
// Set to "dev" by default for local builds.
// Overridden by goreleaser.
//
//nolint:gochecknoglobals // This is the single source of truth for version information across all binaries.
var Version = "dev"

// Get returns the current version string, for use in User-Agent
// headers and --version output.
func Get() string {
	return Version
}
