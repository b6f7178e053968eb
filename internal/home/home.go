package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the imgbot home directory.
	DefaultDirName = ".imgbot"

	// DataDirName is the subdirectory for local state.
	DataDirName = "data"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// RunLogFileName is the SQLite run ledger inside the data directory.
	RunLogFileName = "runs.db"

	// DumpsDirName holds chapter pages that yielded no images.
	DumpsDirName = "dumps"
)

// Dir represents the imgbot home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.imgbot).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// DataPath returns the path to the data directory.
func (d *Dir) DataPath() string {
	return filepath.Join(d.path, DataDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// RunLogPath returns the path to the run ledger database.
func (d *Dir) RunLogPath() string {
	return filepath.Join(d.DataPath(), RunLogFileName)
}

// DumpsDir returns the directory for page dumps.
func (d *Dir) DumpsDir() string {
	return filepath.Join(d.DataPath(), DumpsDirName)
}

// DumpPath returns the dump file for a run.
func (d *Dir) DumpPath(runID string) string {
	return filepath.Join(d.DumpsDir(), runID+".html")
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Create dumps directory (this also creates data and the parent)
	if err := os.MkdirAll(d.DumpsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
