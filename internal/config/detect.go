package config

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/LISSConsulting/LISSTech.Relay/internal/claude"
)

// DetectClaude tries to locate the Claude CLI on this machine. It checks
// PATH first, then the locations the installers use, returning the first
// executable file found. It returns "" when none is found; errors are
// silently ignored.
func DetectClaude() string {
	if path, err := exec.LookPath(claude.DefaultExecutable); err == nil {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, candidate := range installLocations(home) {
		if isExecutable(candidate) {
			return candidate
		}
	}
	return ""
}

// installLocations lists where the native and npm installers put the CLI.
func installLocations(home string) []string {
	return []string{
		filepath.Join(home, ".claude", "local", "claude"),
		filepath.Join(home, ".local", "bin", "claude"),
		filepath.Join(home, ".npm-global", "bin", "claude"),
		"/usr/local/bin/claude",
		"/opt/homebrew/bin/claude",
	}
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
