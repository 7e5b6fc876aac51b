package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// EnsureUserConfig seeds the data dir with the shipped defaults on first
// run and returns the user config path. An existing user config is never
// touched; O_EXCL makes the seed a no-op if one appears concurrently.
func EnsureUserConfig(dataDir string, defaultPath string) (string, error) {
	userPath := filepath.Join(dataDir, "engine.yml")

	raw, err := os.ReadFile(defaultPath)
	if err != nil {
		return "", fmt.Errorf("read default config: %w", err)
	}

	f, err := os.OpenFile(userPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return userPath, nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.Write(raw); err != nil {
		return "", err
	}
	return userPath, nil
}
