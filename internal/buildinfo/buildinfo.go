// Package buildinfo holds version and build metadata stamped at compile time via ldflags.
package buildinfo

import (
	"fmt"
	"runtime"
)

// Name is the client name advertised to MCP servers in clientInfo and
// used as the User-Agent product token.
const Name = "thane-mcpbridge"

// These variables are set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitBranch = "unknown"
	BuildTime = "unknown"
)

// BuildInfo returns all build and runtime info as a map.
func BuildInfo() map[string]string {
	return map[string]string{
		"name":       Name,
		"version":    Version,
		"git_commit": GitCommit,
		"git_branch": GitBranch,
		"build_time": BuildTime,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
}

// UserAgent returns the User-Agent header value for outbound HTTP requests.
func UserAgent() string {
	return fmt.Sprintf("%s/%s (%s; %s)", Name, Version, runtime.GOOS, runtime.GOARCH)
}

// String returns a one-line summary for logging.
func String() string {
	return fmt.Sprintf("%s %s (%s@%s) built %s", Name, Version, GitCommit, GitBranch, BuildTime)
}
