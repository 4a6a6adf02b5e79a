//go:build linux

package launcher

// candidateExecutables is the Linux probe list, checked in order.
func candidateExecutables() []string {
	return []string{
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/snap/bin/chromium",
	}
}
