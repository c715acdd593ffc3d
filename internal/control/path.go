package control

import (
	"fmt"
	"os"
	"path/filepath"
)

func DefaultSocketPath() string {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir != "" {
		return filepath.Join(runtimeDir, "dock-tabs", "control.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("dock-tabs-%d", os.Getuid()), "control.sock")
}
