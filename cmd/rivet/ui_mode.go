package main

import (
	"fmt"
	"os"
	"strings"
)

// progressMode is the --progress setting.
type progressMode uint8

const (
	progressAuto progressMode = iota // interactive UI only on a terminal
	progressOn
	progressOff
)

func parseProgressMode(value string) (progressMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return progressAuto, nil
	case "on", "true", "tui":
		return progressOn, nil
	case "off", "false", "plain":
		return progressOff, nil
	default:
		return progressAuto, fmt.Errorf("invalid --progress value %q (expected auto|on|off)", value)
	}
}

// interactive reports whether the bubbletea UI should drive the build.
// Quiet runs never get it.
func (m progressMode) interactive(quiet bool, tty func() bool) bool {
	if quiet {
		return false
	}
	switch m {
	case progressOn:
		return true
	case progressOff:
		return false
	default:
		return tty()
	}
}

func stdoutIsTerminal() bool { return isTerminal(os.Stdout) }
