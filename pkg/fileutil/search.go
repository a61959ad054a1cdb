package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// SystemConfigDir holds the system-wide .env for packaged installs.
const SystemConfigDir = "/etc/attendancehook"

// SearchPaths looks for a file in multiple locations.
// Returns the first path where the file exists, or an error if not found.
func SearchPaths(paths []string) (string, error) {
	if found := SearchPathsOptional(paths); found != "" {
		return found, nil
	}
	return "", fmt.Errorf("file not found in any of the search paths: %v", paths)
}

// SearchPathsOptional looks for a file in multiple locations.
// Returns the first path where the file exists, or empty string if not found.
func SearchPathsOptional(paths []string) string {
	for _, path := range paths {
		if FileExists(path) {
			return path
		}
	}
	return ""
}

// DefaultConfigPaths returns standard config search paths for a given filename.
// Search order:
// 1. Current directory (./<filename>)
// 2. Config subdirectory (./config/<filename>)
// 3. System-wide config (/etc/attendancehook/<filename>)
func DefaultConfigPaths(filename string) []string {
	return []string{
		filepath.Join(".", filename),
		filepath.Join(".", "config", filename),
		filepath.Join(SystemConfigDir, filename),
	}
}

// FindEnvFile resolves the .env file to load. An explicit path must exist;
// otherwise the default locations are searched and "" means none was found.
func FindEnvFile(explicit string) (string, error) {
	if explicit != "" {
		if !FileExists(explicit) {
			return "", fmt.Errorf("env file not found: %s", explicit)
		}
		return explicit, nil
	}
	return SearchPathsOptional(DefaultConfigPaths(".env")), nil
}

// FileExists checks if a file exists and is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
