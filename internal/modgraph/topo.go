package modgraph

import (
	"fmt"
	"slices"
	"strings"

	"fortio.org/safecast"

	"rivet/internal/diag"
)

type Topo struct {
	Order   []ModuleID   // линейный порядок (только реальные модули)
	Batches [][]ModuleID // волны независимых модулей
	Cyclic  bool
	Cycles  []ModuleID // узлы, оставшиеся в цикле
}

// ToposortKahn orders present modules so that every module comes before the
// modules it references. Modules left over belong to (or depend on) cycles.
func ToposortKahn(g *Graph) *Topo {
	nodeCount := len(g.Nodes)
	indeg := make([]int, nodeCount)
	active := 0
	for from := range nodeCount {
		if !g.Nodes[from].Present {
			continue
		}
		active++
		for _, to := range g.Edges[from] {
			indeg[int(to)]++
		}
	}

	topo := &Topo{
		Order:   make([]ModuleID, 0, nodeCount),
		Batches: make([][]ModuleID, 0),
	}

	current := make([]ModuleID, 0, nodeCount)
	for i := range nodeCount {
		if g.Nodes[i].Present && indeg[i] == 0 {
			current = append(current, toID(i))
		}
	}

	visited := 0
	for len(current) > 0 {
		batch := make([]ModuleID, len(current))
		copy(batch, current)
		topo.Batches = append(topo.Batches, batch)

		next := make([]ModuleID, 0)
		for _, id := range batch {
			topo.Order = append(topo.Order, id)
			visited++
			for _, to := range g.Edges[int(id)] {
				indeg[int(to)]--
				if indeg[int(to)] == 0 {
					next = append(next, to)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	if visited != active {
		topo.Cyclic = true
		for i := range nodeCount {
			if g.Nodes[i].Present && indeg[i] > 0 {
				topo.Cycles = append(topo.Cycles, toID(i))
			}
		}
	}

	return topo
}

func toID(i int) ModuleID {
	mID, err := safecast.Conv[ModuleID](i)
	if err != nil {
		panic(fmt.Errorf("module id overflow: %w", err))
	}
	return mID
}

// ReportCycles emits one informational diagnostic per module left in a
// cycle. Cycles are legal for action scanning; this is for `rivet graph`.
func ReportCycles(g *Graph, topo *Topo, reporter diag.Reporter) {
	if reporter == nil || topo == nil || !topo.Cyclic || len(topo.Cycles) == 0 {
		return
	}
	names := make([]string, 0, len(topo.Cycles))
	for _, id := range topo.Cycles {
		names = append(names, g.Ident(id))
	}
	summary := strings.Join(names, ", ")
	for _, id := range topo.Cycles {
		msg := fmt.Sprintf("module %q is part of a reference cycle among: %s", g.Ident(id), summary)
		reporter.Report(diag.New(diag.SevInfo, diag.GraphCycle, g.Ident(id), msg))
	}
}
