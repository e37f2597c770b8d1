package version

import "runtime"

// Overridden at build time via -ldflags
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
	OS      = runtime.GOOS
	Arch    = runtime.GOARCH
)
