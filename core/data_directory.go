package core

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the application name used in data directory paths.
const AppName = "LuluStudio"

// GetDataDirectory returns the platform-specific default data directory.
//   - Windows: %APPDATA%/LuluStudio
//   - Linux/macOS: ~/.lulustudio
//
// Does NOT create the directory; see EnsureDirectory.
func GetDataDirectory() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppName)
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return AppName
		}
		return filepath.Join(home, "AppData", "Roaming", AppName)
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return ".lulustudio"
		}
		return filepath.Join(home, ".lulustudio")
	}
}

// EnsureDirectory creates dir (owner-only permissions) if it doesn't exist.
func EnsureDirectory(dir string) error {
	return os.MkdirAll(dir, 0o700)
}
