// Package manifest assembles the server reference manifest: for every action
// id, the loader chunk serving it on each route, split by runtime.
package manifest

import (
	"bytes"
	"encoding/json"
	"maps"

	"rivet/internal/actions"
	"rivet/internal/bundle"
	"rivet/internal/diag"
)

// Entry lists the routes whose loader chunk can dispatch one action.
type Entry struct {
	Workers map[string]bundle.ChunkID `json:"workers"`
}

// Manifest is the persisted document. encoding/json sorts map keys, so the
// serialized form is deterministic.
type Manifest struct {
	Edge     map[actions.ActionID]*Entry `json:"edge"`
	Standard map[actions.ActionID]*Entry `json:"standard"`
}

func New() *Manifest {
	return &Manifest{
		Edge:     make(map[actions.ActionID]*Entry),
		Standard: make(map[actions.ActionID]*Entry),
	}
}

// Section returns the mapping for runtime.
func (m *Manifest) Section(rt actions.Runtime) map[actions.ActionID]*Entry {
	if rt == actions.RuntimeEdge {
		if m.Edge == nil {
			m.Edge = make(map[actions.ActionID]*Entry)
		}
		return m.Edge
	}
	if m.Standard == nil {
		m.Standard = make(map[actions.ActionID]*Entry)
	}
	return m.Standard
}

// Len counts action ids across both sections.
func (m *Manifest) Len() int {
	return len(m.Edge) + len(m.Standard)
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	out := New()
	for id, e := range m.Edge {
		out.Edge[id] = &Entry{Workers: maps.Clone(e.Workers)}
	}
	for id, e := range m.Standard {
		out.Standard[id] = &Entry{Workers: maps.Clone(e.Workers)}
	}
	return out
}

// Assemble records chunk as the worker for route of every action in am under
// the runtime's section. A later call for the same (action, route) replaces
// the earlier chunk; other routes are kept. An empty map leaves m unchanged.
func Assemble(m *Manifest, am *actions.ModuleActionMap, chunk bundle.ChunkID, rt actions.Runtime, route string) {
	if am.Empty() {
		return
	}
	section := m.Section(rt)
	for _, row := range am.Entries() {
		for _, id := range row.Actions.IDs() {
			e := section[id]
			if e == nil {
				e = &Entry{Workers: make(map[string]bundle.ChunkID, 1)}
				section[id] = e
			}
			if e.Workers == nil {
				e.Workers = make(map[string]bundle.ChunkID, 1)
			}
			e.Workers[route] = chunk
		}
	}
}

// Encode renders m as indented JSON with a trailing newline.
func Encode(m *Manifest) ([]byte, error) {
	if m == nil {
		m = New()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, diag.Wrap(diag.ManifestEncode, "", err, "failed to encode manifest")
	}
	return buf.Bytes(), nil
}

// Decode parses a manifest document.
func Decode(data []byte) (*Manifest, error) {
	m := New()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, diag.Wrap(diag.ManifestEncode, "", err, "failed to decode manifest")
	}
	if m.Edge == nil {
		m.Edge = make(map[actions.ActionID]*Entry)
	}
	if m.Standard == nil {
		m.Standard = make(map[actions.ActionID]*Entry)
	}
	return m, nil
}
