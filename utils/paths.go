package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandUser replaces a leading `~` with the current user's home directory
func ExpandUser(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// FriendlyFileName shortens paths under the working directory for log output
func FriendlyFileName(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	if rel, e := filepath.Rel(wd, path); e == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
