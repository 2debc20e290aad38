// Package locate guesses where the game keeps its files on each platform.
package locate

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultGameDir returns the platform's default game directory. The asset
// store is its "assets" subdirectory.
func DefaultGameDir() string {
	home, _ := os.UserHomeDir() //nolint:errcheck // empty home falls through to "."
	return gameDir(runtime.GOOS, home, os.Getenv("APPDATA"))
}

func gameDir(goos, home, appData string) string {
	switch goos {
	case "linux":
		if home != "" {
			return filepath.Join(home, ".minecraft")
		}
	case "windows":
		if appData != "" {
			return filepath.Join(appData, ".minecraft")
		}
	case "darwin":
		if home != "" {
			return filepath.Join(home, "Library", "Application Support", "minecraft")
		}
	}
	return "."
}
