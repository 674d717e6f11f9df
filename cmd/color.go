package cmd

import (
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiReset = "\033[0m"
)

// resolveColor reports whether to emit ANSI color codes.
// Priority: BLOCK_REPLAY_COLOR env > NO_COLOR env > auto-detect stderr TTY.
func resolveColor() bool {
	if v := os.Getenv("BLOCK_REPLAY_COLOR"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func paint(on bool, code, s string) string {
	if !on {
		return s
	}
	return code + s + ansiReset
}
