package ops

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/ctx/internal/config"
	"github.com/hpungsan/ctx/internal/errors"
)

// ResolveFilePath turns a user-supplied path into the absolute, symlink-free
// path of an existing regular file.
// It checks:
// 1. Non-empty input
// 2. "~" expansion against the configured home
// 3. Existence (FILE_NOT_FOUND otherwise)
// 4. Regular file (directories, devices and sockets are FILE_NOT_FOUND)
func ResolveFilePath(path string, cfg *config.Config) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.NewInvalidRequest("path is required")
	}

	absPath, err := cfg.ExpandPath(path)
	if err != nil {
		return "", errors.NewInvalidRequest("invalid path: " + err.Error())
	}

	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewFileNotFound(absPath)
		}
		return "", errors.NewIOFailure(absPath, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewFileNotFound(resolved)
		}
		return "", errors.NewIOFailure(resolved, err)
	}
	if !info.Mode().IsRegular() {
		return "", errors.NewFileNotFound(resolved)
	}

	return resolved, nil
}

// isStale reports whether a recorded path no longer points at a regular file.
func isStale(path string) bool {
	info, err := os.Stat(path)
	return err != nil || !info.Mode().IsRegular()
}
