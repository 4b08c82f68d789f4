// Package buildconfig exposes build metadata stamped in at link time:
//
//	go build -ldflags "-X .../internal/buildconfig.version=v1.2.0 -X .../internal/buildconfig.commit=$(git rev-parse --short HEAD)"
//
// Unstamped builds report "dev"/"unknown".
package buildconfig

var (
	version = "dev"
	commit  = "unknown"
)

// Version reports the stamped release version.
func Version() string {
	return version
}

// Commit reports the stamped git commit.
func Commit() string {
	return commit
}

// VersionInfo bundles the build metadata for the metrics endpoint.
func VersionInfo() map[string]string {
	return map[string]string{
		"version": version,
		"commit":  commit,
	}
}
