package version

import "runtime/debug"

// Version is set at build time with
// -ldflags "-X github.com/monorkin/nightscout-watch-monitor/internal/version.Version=v1.2.3".
var Version = "dev"

// GetVersion falls back to the module version recorded by go install.
func GetVersion() string {
	if Version != "dev" {
		return Version
	}

	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	return Version
}
