// Package buildinfo exposes version metadata injected at build time. The
// values are set from cmd/server via -ldflags and default to development
// placeholders.
package buildinfo

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)
