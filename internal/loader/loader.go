// Package loader synthesizes the virtual module that lazily imports every
// action-bearing module of a page and dispatches calls by action id.
package loader

import (
	"encoding/json"
	"fmt"
	"strings"

	"rivet/internal/actions"
	"rivet/internal/diag"
)

// SlotPrefix opens every synthetic import slot label.
const SlotPrefix = "ACTIONS_MODULE"

// Import binds one slot label to the module it stands for.
type Import struct {
	Slot   string
	Module actions.ModuleID
	Ident  string
}

// Loader is a synthesized module: source text whose import specifiers are
// slot labels, plus the table the bundler uses to resolve them.
type Loader struct {
	Source  string
	Imports []Import
	Actions int // dispatch entries in Source
}

// Slot returns the label of the i-th action-bearing module.
func Slot(i int) string {
	return fmt.Sprintf("%s%d", SlotPrefix, i)
}

// VirtualPath is where the loader for route lives in the build output.
func VirtualPath(route string) string {
	return "server/app" + route + "/actions.js"
}

// Synthesize emits the dispatch module for m. Each module gets one slot, in
// map order, shared by all of its actions. Imports happen on first call, not
// at load time.
//
// An empty map is an internal error: callers short-circuit before reaching
// here.
func Synthesize(m *actions.ModuleActionMap) (*Loader, error) {
	if m == nil || m.Empty() {
		return nil, diag.Errorf(diag.SynthEmpty, "", "loader requested for an empty action set")
	}
	entries := m.Entries()
	l := &Loader{Imports: make([]Import, 0, len(entries))}

	var b strings.Builder
	b.WriteString("export default {\n")
	for i, e := range entries {
		slot := Slot(i)
		spec := Quote(slot)
		for _, a := range e.Actions.All() {
			fmt.Fprintf(&b, "  %s: (...args) => import(%s)\n", Quote(string(a.ID)), spec)
			fmt.Fprintf(&b, "    .then((mod) => (0, mod[%s])(...args)),\n", Quote(a.Name))
			l.Actions++
		}
		l.Imports = append(l.Imports, Import{Slot: slot, Module: e.Module, Ident: e.Ident})
	}
	b.WriteString("};\n")
	l.Source = b.String()
	return l, nil
}

// Lookup returns the import bound to slot.
func (l *Loader) Lookup(slot string) (Import, bool) {
	for _, imp := range l.Imports {
		if imp.Slot == slot {
			return imp, true
		}
	}
	return Import{}, false
}

// Quote renders s as a JS string literal. JSON strings are valid JS except for
// U+2028/U+2029, which encoding/json escapes already.
func Quote(s string) string {
	data, err := json.Marshal(s)
	if err != nil {
		// строки всегда сериализуются
		panic(err)
	}
	return string(data)
}
