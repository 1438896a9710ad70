// Package dotdir manages the .weave/ and ~/.weave directories.
//
// The directory holds config.toml, an optional .env file, the local session
// history database and the manifest of files uploaded from watched folders.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the weave directory.
	dirName = ".weave"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .weave/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.weave/ dir
//  3. Home ~/.weave/ dir
//
// The resolved directory is created when missing.
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating weave directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// Path joins name onto the resolved target directory.
func (m *Manager) Path(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// localDirExists checks whether a .weave/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
