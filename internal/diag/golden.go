package diag

import (
	"fmt"
	"sort"
	"strings"
)

type shortDiagnostic struct {
	Severity string
	Code     string
	Route    string
	Module   string
	ActionID string
	Message  string
}

// FormatShort renders diagnostics into a stable, single-line-per-entry form
// used by the CLI and by golden tests. Notes are rendered as their own lines
// when includeNotes is set. Returns "" when there is nothing to print.
func FormatShort(diags []Diagnostic, includeNotes bool) string {
	if len(diags) == 0 {
		return ""
	}

	rendered := make([]shortDiagnostic, 0, len(diags))
	for _, d := range diags {
		rendered = append(rendered, shortDiagnostic{
			Severity: d.Severity.String(),
			Code:     d.Code.ID(),
			Route:    d.Route,
			Module:   d.Module,
			ActionID: d.ActionID,
			Message:  sanitizeMessage(d.Message),
		})
		if !includeNotes {
			continue
		}
		for _, note := range d.Notes {
			rendered = append(rendered, shortDiagnostic{
				Severity: "note",
				Code:     d.Code.ID(),
				Route:    d.Route,
				Module:   note.Module,
				Message:  sanitizeMessage(note.Msg),
			})
		}
	}

	sort.SliceStable(rendered, func(i, j int) bool {
		di, dj := rendered[i], rendered[j]
		if di.Route != dj.Route {
			return di.Route < dj.Route
		}
		if di.Module != dj.Module {
			return di.Module < dj.Module
		}
		if di.Severity != dj.Severity {
			return di.Severity < dj.Severity
		}
		if di.Code != dj.Code {
			return di.Code < dj.Code
		}
		return di.Message < dj.Message
	})

	var b strings.Builder
	for i, d := range rendered {
		fmt.Fprintf(&b, "%s %s", d.Severity, d.Code)
		if d.Route != "" {
			fmt.Fprintf(&b, " route=%s", d.Route)
		}
		if d.Module != "" {
			fmt.Fprintf(&b, " module=%s", d.Module)
		}
		if d.ActionID != "" {
			fmt.Fprintf(&b, " action=%s", d.ActionID)
		}
		b.WriteByte(' ')
		b.WriteString(d.Message)
		if i < len(rendered)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\r", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
