//go:build windows

package launcher

import (
	"os"
	"path/filepath"
)

// candidateExecutables is the Windows probe list, checked in order:
// LOCALAPPDATA and both Program Files roots, for Chrome and Chromium.
// LOCALAPPDATA is read at call time since it isn't known until runtime.
func candidateExecutables() []string {
	const execSuffix = `Application\chrome.exe`
	localAppData := os.Getenv("LOCALAPPDATA")

	var candidates []string
	if localAppData != "" {
		candidates = append(candidates, filepath.Join(localAppData, `Google\Chrome`, execSuffix))
	}
	candidates = append(candidates,
		filepath.Join(`C:\Program Files`, `Google\Chrome`, execSuffix),
		filepath.Join(`C:\Program Files (x86)`, `Google\Chrome`, execSuffix),
		filepath.Join(`C:\Program Files`, "Chromium", execSuffix),
		filepath.Join(`C:\Program Files (x86)`, "Chromium", execSuffix),
	)
	return candidates
}
