package manifest

import (
	"fmt"
	"slices"
	"sync"

	"rivet/internal/actions"
	"rivet/internal/bundle"
	"rivet/internal/diag"
)

// Page is one page pipeline's contribution.
type Page struct {
	Route   string
	Runtime actions.Runtime
	Chunk   bundle.ChunkID
	Actions *actions.ModuleActionMap
}

// origin is where an action id was first seen in this build.
type origin struct {
	module string
	name   string
	route  string
}

// Builder is the manifest shared by all page pipelines of one build.
// Commits are serialized and all-or-nothing per page.
type Builder struct {
	mu      sync.Mutex
	m       *Manifest
	origins map[actions.ActionID]origin
	routes  map[string]struct{}
}

func NewBuilder() *Builder {
	return &Builder{
		m:       New(),
		origins: make(map[actions.ActionID]origin),
		routes:  make(map[string]struct{}),
	}
}

// Commit applies p. Every action id must come from the same (module, export)
// pair as everywhere else in the build; otherwise the page is rejected with
// ManifestConflict and nothing is changed. Pages without actions are no-ops.
func (b *Builder) Commit(p Page) error {
	if p.Actions.Empty() {
		return nil
	}
	if p.Chunk == "" {
		return diag.Errorf(diag.ManifestWrite, "", "page has actions but no loader chunk").WithRoute(p.Route)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	staged := make(map[actions.ActionID]origin, p.Actions.ActionCount())
	for _, row := range p.Actions.Entries() {
		for _, a := range row.Actions.All() {
			here := origin{module: row.Ident, name: a.Name, route: p.Route}
			prev, ok := staged[a.ID]
			if !ok {
				prev, ok = b.origins[a.ID]
			}
			if ok && (prev.module != here.module || prev.name != here.name) {
				return diag.Errorf(diag.ManifestConflict, row.Ident,
					"action %s exported as %q here but as %q by %s", a.ID, a.Name, prev.name, prev.module).
					WithAction(string(a.ID)).
					WithRoute(p.Route).
					WithNote(prev.module, fmt.Sprintf("first claimed for route %s", prev.route))
			}
			if !ok {
				staged[a.ID] = here
			}
		}
	}

	for id, o := range staged {
		b.origins[id] = o
	}
	Assemble(b.m, p.Actions, p.Chunk, p.Runtime, p.Route)
	b.routes[p.Route] = struct{}{}
	return nil
}

// Snapshot returns a deep copy of the current manifest.
func (b *Builder) Snapshot() *Manifest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.m.Clone()
}

// Routes lists routes that contributed actions, sorted.
func (b *Builder) Routes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.routes))
	for r := range b.routes {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// ForRoute extracts the part of m served by route.
func ForRoute(m *Manifest, route string) *Manifest {
	out := New()
	pick := func(dst, src map[actions.ActionID]*Entry) {
		for id, e := range src {
			if chunk, ok := e.Workers[route]; ok {
				dst[id] = &Entry{Workers: map[string]bundle.ChunkID{route: chunk}}
			}
		}
	}
	pick(out.Edge, m.Edge)
	pick(out.Standard, m.Standard)
	return out
}
