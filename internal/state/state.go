// Package state persists small pieces of local CLI state, currently the
// most recently trained module so "simcoach train" without an argument
// resumes it.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const lastModuleFile = "last_module"

// File stores CLI state under a directory, one value per file.
type File struct {
	dir string
}

// New opens the state directory, creating it when missing.
func New(dir string) (*File, error) {
	if dir == "" {
		return nil, fmt.Errorf("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &File{dir: dir}, nil
}

// LastModule returns the most recently trained module id. A missing or
// empty state file means no module and is not an error.
func (f *File) LastModule() (string, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, lastModuleFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading state file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveLastModule records the module id for the next argument-less train run.
func (f *File) SaveLastModule(agentID string) error {
	if err := os.WriteFile(filepath.Join(f.dir, lastModuleFile), []byte(agentID), 0o600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return nil
}

// Clear removes the recorded module. Clearing absent state is a no-op.
func (f *File) Clear() error {
	err := os.Remove(filepath.Join(f.dir, lastModuleFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}
