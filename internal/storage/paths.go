package storage

import (
	"os"
	"path/filepath"
)

// PathManager handles cross-platform path resolution for Spark storage
type PathManager struct {
	homeDir  string
	sparkDir string
}

// NewPathManager creates a path manager rooted at ~/.spark
func NewPathManager() *PathManager {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir is not available
		homeDir = "."
	}
	return &PathManager{
		homeDir:  homeDir,
		sparkDir: filepath.Join(homeDir, ".spark"),
	}
}

// NewPathManagerAt creates a path manager rooted at dir
func NewPathManagerAt(dir string) *PathManager {
	pm := NewPathManager()
	if dir != "" {
		pm.sparkDir = dir
	}
	return pm
}

// GetSparkDir returns the data directory, creating it if needed
func (pm *PathManager) GetSparkDir() (string, error) {
	if err := os.MkdirAll(pm.sparkDir, 0755); err != nil {
		return "", err
	}
	return pm.sparkDir, nil
}

// GetDatabasePath returns the path of the libsql database
func (pm *PathManager) GetDatabasePath() (string, error) {
	dir, err := pm.GetSparkDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "spark.db"), nil
}

// GetCollectionsDir returns the directory holding one JSON file per namespace
func (pm *PathManager) GetCollectionsDir() (string, error) {
	return pm.subdir("collections")
}

// GetLogsDir returns the directory for log files
func (pm *PathManager) GetLogsDir() (string, error) {
	return pm.subdir("logs")
}

// GetHomeDir returns the user's home directory
func (pm *PathManager) GetHomeDir() string {
	return pm.homeDir
}

func (pm *PathManager) subdir(name string) (string, error) {
	dir, err := pm.GetSparkDir()
	if err != nil {
		return "", err
	}
	sub := filepath.Join(dir, name)
	if err := os.MkdirAll(sub, 0755); err != nil {
		return "", err
	}
	return sub, nil
}
