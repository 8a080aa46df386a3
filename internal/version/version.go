// Package version carries build metadata injected at link time.
package version

// Populated via -ldflags "-X github.com/crawlkit/crawlkit/internal/version.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
