package paths

import (
	"os"

	"streamdock/pkg/env"
)

// GetDataDir returns the data directory path.
// DATA_DIR wins when set; inside Docker (/.dockerenv exists) it is
// /app/data; otherwise the current directory.
func GetDataDir() string {
	if dir := os.Getenv(env.DataDir); dir != "" {
		return dir
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "/app/data"
	}
	return "."
}
