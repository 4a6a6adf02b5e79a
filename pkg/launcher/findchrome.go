package launcher

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/riftlab/cdpkit/pkg/wire"
)

// FindChrome probes a platform-specific list of well-known install
// paths (see findchrome_linux.go/findchrome_darwin.go/findchrome_windows.go)
// plus the shell PATH, and returns the first executable it finds.
func FindChrome() (string, error) {
	for _, path := range candidateExecutables() {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	if path, err := exec.LookPath("chrome"); err == nil {
		return path, nil
	}
	if path, err := exec.LookPath("chromium"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("%w: checked %d well-known paths and $PATH", wire.ErrChromeNotFound, len(candidateExecutables()))
}
