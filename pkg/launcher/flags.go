package launcher

import (
	"fmt"
	"sort"
)

// defaultFlags are applied unless the caller overrides them. no-sandbox,
// ignore-certificate-errors, window-size and user-data-dir are
// deliberately left out: they are opt-in, not automatic.
var defaultFlags = map[string]interface{}{
	"disable-gpu":                      true,
	"no-first-run":                     true,
	"disable-background-networking":    true,
	"disable-extensions":               true,
	"disable-sync":                     true,
	"disable-translate":                true,
	"hide-scrollbars":                  true,
	"mute-audio":                       true,
	"metrics-recording-only":           true,
	"safebrowsing-disable-auto-update": true,
}

// DefaultFlags returns a fresh copy of the recommended automation flags.
func DefaultFlags() map[string]interface{} {
	flags := make(map[string]interface{}, len(defaultFlags)+1)
	for k, v := range defaultFlags {
		flags[k] = v
	}
	return flags
}

// buildArgs renders flags as a sorted "--name" / "--name=value" argument
// slice, plus the required headless selector and whatever transport
// flags extra carries (remote-debugging-pipe or remote-debugging-port).
// Sorting keeps the argv deterministic across runs for easier diffing in
// logs.
func buildArgs(flags map[string]interface{}, headless bool, extra map[string]interface{}) []string {
	all := make(map[string]interface{}, len(flags)+len(extra)+1)
	for k, v := range flags {
		all[k] = v
	}
	if headless {
		all["headless"] = "new"
	}
	for k, v := range extra {
		all[k] = v
	}

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		flag := "--" + k
		switch v := all[k].(type) {
		case bool:
			if v {
				args = append(args, flag)
			}
		default:
			args = append(args, fmt.Sprintf("%s=%v", flag, v))
		}
	}
	return append(args, "about:blank")
}
