package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a fatal diagnostic carried through the error chain.
type Error struct {
	Diag Diagnostic
	Err  error
}

// Errorf builds an Error-severity diagnostic wrapped as an error.
func Errorf(code Code, module, format string, args ...any) *Error {
	return &Error{Diag: NewError(code, module, fmt.Sprintf(format, args...))}
}

// Wrap attaches cause to a new Error.
func Wrap(code Code, module string, cause error, format string, args ...any) *Error {
	e := Errorf(code, module, format, args...)
	e.Err = cause
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.Diag.Code.ID())
	b.WriteString(": ")
	b.WriteString(e.Diag.Message)
	if e.Diag.Module != "" {
		fmt.Fprintf(&b, " (module %s)", e.Diag.Module)
	}
	if e.Diag.ActionID != "" {
		fmt.Fprintf(&b, " (action %s)", e.Diag.ActionID)
	}
	if e.Diag.Route != "" {
		fmt.Fprintf(&b, " (route %s)", e.Diag.Route)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithAction sets the action id and returns e.
func (e *Error) WithAction(id string) *Error {
	e.Diag.ActionID = id
	return e
}

// WithRoute sets the route and returns e.
func (e *Error) WithRoute(route string) *Error {
	e.Diag.Route = route
	return e
}

// WithNote appends a note and returns e.
func (e *Error) WithNote(module, msg string) *Error {
	e.Diag = e.Diag.WithNote(module, msg)
	return e
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether any diagnostic reachable from err has code.
func HasCode(err error, code Code) bool {
	for _, d := range Collect(err) {
		if d.Code == code {
			return true
		}
	}
	return false
}

// Collect flattens every *Error reachable from err, including errors.Join trees.
func Collect(err error) []Diagnostic {
	var out []Diagnostic
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if de, ok := e.(*Error); ok {
			out = append(out, de.Diag)
			walk(de.Err)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}
