// Package buildinfo exposes version information stamped at build time:
//
//	go build -ldflags "-X github.com/matzehuels/gridflow/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/matzehuels/gridflow/pkg/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	    -X github.com/matzehuels/gridflow/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Template returns the version template string for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} %s (commit %s, built %s)\n", Version, Commit, Date)
}

// UserAgent is sent with media fetches.
func UserAgent() string {
	return "gridflow/" + Version
}
