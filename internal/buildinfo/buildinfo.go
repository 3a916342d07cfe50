// Package buildinfo exposes the version stamped into the binary.
package buildinfo

import "runtime/debug"

// Version is set at link time with -ldflags "-X clusterlink/internal/buildinfo.Version=...".
var Version = "dev"

func init() {
	if Version != "dev" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
}
