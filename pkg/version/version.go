// Package version reports the build's git revision for startup logs and
// diagnostics.
package version

import "runtime/debug"

// AppName prefixes version strings in logs.
const AppName = "konsul"

// commitOverride can be injected with -ldflags for builds without a .git
// directory (containers, release tarballs).
var commitOverride string

// Commit is the short revision this binary was built from, or "dev" when
// no VCS stamp is available (go test, non-git checkouts).
var Commit = resolveCommit()

func resolveCommit() string {
	if commitOverride != "" {
		return short(commitOverride)
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return short(s.Value)
		}
	}
	return "dev"
}

func short(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full returns "konsul/<commit>".
func Full() string {
	return AppName + "/" + Commit
}
