// Package buildinfo carries version metadata injected at build time via
// -ldflags "-X github.com/ozgb/blockprop/internal/buildinfo.Version=...".
package buildinfo

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
