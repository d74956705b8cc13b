package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	LevelOff    Level = iota // no tracing
	LevelBuild               // build boundaries only
	LevelPage                // + page pipelines and their stages
	LevelModule              // + every module visited by the scanner
)

func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelBuild:
		return "build"
	case LevelPage:
		return "page"
	case LevelModule:
		return "module"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off":
		return LevelOff, nil
	case "build":
		return LevelBuild, nil
	case "page":
		return LevelPage, nil
	case "module", "debug":
		return LevelModule, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|build|page|module)", s)
	}
}

// ShouldEmit reports whether events of scope are kept at this level.
func (l Level) ShouldEmit(scope Scope) bool {
	if l == LevelOff || scope == 0 {
		return false
	}
	return uint8(scope) <= uint8(l)
}
