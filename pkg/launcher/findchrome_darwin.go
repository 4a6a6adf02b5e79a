//go:build darwin

package launcher

// candidateExecutables is the macOS probe list, checked in order.
func candidateExecutables() []string {
	return []string{
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
	}
}
