package actions

import (
	"fmt"
	"strings"
)

// Runtime selects the manifest section an action is written into.
type Runtime uint8

const (
	RuntimeStandard Runtime = iota
	RuntimeEdge
)

func (r Runtime) String() string {
	switch r {
	case RuntimeStandard:
		return "standard"
	case RuntimeEdge:
		return "edge"
	default:
		return "unknown"
	}
}

// ParseRuntime accepts "standard" (alias "nodejs") and "edge".
func ParseRuntime(s string) (Runtime, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "nodejs", "node":
		return RuntimeStandard, nil
	case "edge":
		return RuntimeEdge, nil
	default:
		return RuntimeStandard, fmt.Errorf("invalid runtime: %q (expected: standard|edge)", s)
	}
}

func (r Runtime) MarshalText() ([]byte, error) {
	if r != RuntimeStandard && r != RuntimeEdge {
		return nil, fmt.Errorf("invalid runtime %d", r)
	}
	return []byte(r.String()), nil
}

func (r *Runtime) UnmarshalText(b []byte) error {
	parsed, err := ParseRuntime(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
