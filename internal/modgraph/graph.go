package modgraph

import (
	"context"
	"fmt"
	"os"
	"strings"

	"rivet/internal/diag"
)

// Node is the arena slot of one module.
type Node struct {
	Meta    Meta
	Present bool // declared by the pipeline, not only referenced
}

// Graph is an arena-indexed module reference graph. Edges keep reference
// order so traversals are deterministic; cycles and self references are
// preserved as-is.
type Graph struct {
	Index Index
	Nodes []Node
	Edges [][]ModuleID // Edges[from] = []to
}

// BuildGraph lays out metas in an arena. References to modules that were
// never declared are reported and dropped; duplicates keep the first
// declaration.
func BuildGraph(idx Index, metas []Meta, reporter diag.Reporter) *Graph {
	if reporter == nil {
		reporter = diag.NopReporter{}
	}
	nodeCount := len(idx.IDToName)
	g := &Graph{
		Index: idx,
		Nodes: make([]Node, nodeCount),
		Edges: make([][]ModuleID, nodeCount),
	}
	for i, name := range idx.IDToName {
		g.Nodes[i].Meta.Path = name
	}

	for _, meta := range metas {
		if meta.Path == "" {
			continue
		}
		id, ok := idx.NameToID[meta.Path]
		if !ok {
			// индекс строится на тех же метаданных
			continue
		}
		node := &g.Nodes[int(id)]
		if node.Present {
			reporter.Report(diag.NewError(diag.GraphDuplicate, meta.Path,
				fmt.Sprintf("duplicate module %q", meta.Path)))
			continue
		}
		if meta.Kind == KindUnknown {
			meta.Kind = InferKind(meta.Path)
		}
		if meta.Content != nil && meta.ContentHash == (Digest{}) {
			meta.ContentHash = Hash(meta.Content)
		}
		node.Meta = meta
		node.Present = true
	}

	for from := range g.Nodes {
		node := &g.Nodes[from]
		if !node.Present || len(node.Meta.Imports) == 0 {
			continue
		}
		seen := make(map[ModuleID]struct{}, len(node.Meta.Imports))
		for _, dep := range node.Meta.Imports {
			if dep == "" {
				continue
			}
			toID, ok := idx.NameToID[dep]
			if !ok || !g.Nodes[int(toID)].Present {
				reporter.Report(diag.NewError(diag.GraphMissingModule, node.Meta.Path,
					fmt.Sprintf("module %q references missing module %q", node.Meta.Path, dep)))
				continue
			}
			if _, dup := seen[toID]; dup {
				continue
			}
			seen[toID] = struct{}{}
			g.Edges[from] = append(g.Edges[from], toID)
		}
	}

	return g
}

// FromMetas indexes and builds in one step.
func FromMetas(metas []Meta, reporter diag.Reporter) *Graph {
	return BuildGraph(BuildIndex(metas), metas, reporter)
}

func (g *Graph) Len() int {
	return len(g.Nodes)
}

func (g *Graph) valid(id ModuleID) bool {
	return int(id) < len(g.Nodes) && g.Nodes[int(id)].Present
}

// Lookup resolves a module path to its id.
func (g *Graph) Lookup(path string) (ModuleID, bool) {
	id, ok := g.Index.Lookup(path)
	if !ok || !g.valid(id) {
		return 0, false
	}
	return id, true
}

// Ident returns the stable textual identity of id.
func (g *Graph) Ident(id ModuleID) string {
	return g.Index.Name(id)
}

// Meta returns the declared metadata of id.
func (g *Graph) Meta(id ModuleID) (Meta, bool) {
	if !g.valid(id) {
		return Meta{}, false
	}
	return g.Nodes[int(id)].Meta, true
}

// References returns the outgoing reference edges of id in reference order.
func (g *Graph) References(ctx context.Context, id ModuleID) ([]ModuleID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !g.valid(id) {
		return nil, diag.Errorf(diag.GraphMissingModule, g.Ident(id), "module %d is not part of the graph", id)
	}
	return append([]ModuleID(nil), g.Edges[int(id)]...), nil
}

// Source returns the module's compiled text, reading it from disk when the
// pipeline did not hand it over in memory.
func (g *Graph) Source(ctx context.Context, id ModuleID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	meta, ok := g.Meta(id)
	if !ok {
		return nil, diag.Errorf(diag.GraphMissingModule, g.Ident(id), "module %d is not part of the graph", id)
	}
	if meta.Content != nil {
		return meta.Content, nil
	}
	if meta.AbsPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(meta.AbsPath)
	if err != nil {
		return nil, diag.Wrap(diag.ExtRead, meta.Path, err, "failed to read module")
	}
	return data, nil
}

// Fingerprint returns the content digest of id.
func (g *Graph) Fingerprint(id ModuleID) Digest {
	meta, _ := g.Meta(id)
	return meta.ContentHash
}

// Describe renders the graph one module per line, for debugging output.
func (g *Graph) Describe() string {
	var b strings.Builder
	for i, node := range g.Nodes {
		if !node.Present {
			continue
		}
		fmt.Fprintf(&b, "%s [%s]", node.Meta.Path, node.Meta.Kind)
		for _, to := range g.Edges[i] {
			fmt.Fprintf(&b, " -> %s", g.Ident(to))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
