package discovery

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// lookPath is a function variable so tests can control PATH lookups.
var lookPath = exec.LookPath

func executableName() string {
	if runtime.GOOS == "windows" {
		return "opencode.cmd"
	}
	return "opencode"
}

// wellKnownLocations lists install locations checked before PATH.
func wellKnownLocations() []string {
	home, _ := os.UserHomeDir()
	name := executableName()
	var out []string
	if home != "" {
		out = append(out,
			filepath.Join(home, ".opencode", "bin", name),
			filepath.Join(home, ".local", "bin", name),
			filepath.Join(home, ".npm-global", "bin", name),
			filepath.Join(home, ".bun", "bin", name),
		)
	}
	if runtime.GOOS != "windows" {
		out = append(out, "/usr/local/bin/opencode", "/opt/homebrew/bin/opencode")
	}
	return out
}

// FindExecutable resolves the CLI binary: the configured path wins, then
// well-known install locations, then PATH. It returns "" when nothing is
// found.
func FindExecutable(configured string) string {
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured
	}
	for _, p := range wellKnownLocations() {
		if isExecutableFile(p) {
			return p
		}
	}
	for _, name := range []string{executableName(), "opencode"} {
		if p, err := lookPath(name); err == nil && p != "" {
			return p
		}
	}
	return ""
}

func isExecutableFile(p string) bool {
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
