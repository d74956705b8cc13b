// Package actions holds the data model shared by the scanner, the loader
// synthesizer and the manifest assembler.
package actions

import (
	"rivet/internal/modgraph"
)

// ModuleID identifies a module inside one loaded graph.
type ModuleID = modgraph.ModuleID

// ActionID is the stable hashed identifier of one exported action. It is
// produced by the marker extractor and never recomputed here.
type ActionID string

// Action pairs an id with the local export name backing it.
type Action struct {
	ID   ActionID
	Name string
}

// ActionMap is an insertion-ordered mapping ActionID -> export name.
type ActionMap struct {
	order []ActionID
	names map[ActionID]string
}

// NewActionMap builds a map from pairs, rejecting duplicates after the first.
func NewActionMap(pairs ...Action) *ActionMap {
	m := &ActionMap{
		order: make([]ActionID, 0, len(pairs)),
		names: make(map[ActionID]string, len(pairs)),
	}
	for _, p := range pairs {
		m.Add(p.ID, p.Name)
	}
	return m
}

// Add appends id -> name. Returns false when id is already present.
func (m *ActionMap) Add(id ActionID, name string) bool {
	if m.names == nil {
		m.names = make(map[ActionID]string)
	}
	if _, dup := m.names[id]; dup {
		return false
	}
	m.names[id] = name
	m.order = append(m.order, id)
	return true
}

func (m *ActionMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Name returns the export name for id.
func (m *ActionMap) Name(id ActionID) (string, bool) {
	if m == nil {
		return "", false
	}
	name, ok := m.names[id]
	return name, ok
}

// IDs returns ids in insertion order.
func (m *ActionMap) IDs() []ActionID {
	if m == nil {
		return nil
	}
	return append([]ActionID(nil), m.order...)
}

// All returns the pairs in insertion order.
func (m *ActionMap) All() []Action {
	if m == nil {
		return nil
	}
	out := make([]Action, len(m.order))
	for i, id := range m.order {
		out[i] = Action{ID: id, Name: m.names[id]}
	}
	return out
}
