package constants

import (
	"os"
	"path/filepath"
)

const DefaultHomeEnv string = "EXPLORER_HOME"
const ConfigEnv string = "EXPLORER_CONFIG"

var DefaultHome string

func init() {
	if home := os.Getenv(DefaultHomeEnv); home != "" {
		DefaultHome = home
		return
	}
	// ~/.explorer default
	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		DefaultHome = "/data"
	} else {
		DefaultHome = filepath.Join(userHomeDir, ".explorer")
	}
}
