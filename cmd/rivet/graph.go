package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rivet/internal/diag"
	"rivet/internal/modgraph"
)

func newGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Show the module graph in topological batches and report cycles",
		Args:  cobra.NoArgs,
		RunE:  runGraph,
	}
}

func runGraph(cmd *cobra.Command, args []string) error {
	env, cleanup, err := prepare(cmd)
	defer cleanup()
	if err != nil {
		return err
	}
	g, loadErr := env.loadGraph()
	if g == nil {
		return loadErr
	}

	topo := modgraph.ToposortKahn(g)
	out := cmd.OutOrStdout()
	for i, batch := range topo.Batches {
		fmt.Fprintf(out, "%s %s\n", dimColor.Sprintf("%3d", i), strings.Join(idents(g, batch), " "))
	}
	if topo.Cyclic {
		fmt.Fprintf(out, "%s %s\n", failColor.Sprint("cycles:"), strings.Join(idents(g, topo.Cycles), " "))
		modgraph.ReportCycles(g, topo, diag.FuncReporter(func(d diag.Diagnostic) {
			env.logger.Warn(d.Message, "code", d.Code.ID(), "module", d.Module)
		}))
	}
	if !env.settings.Quiet {
		fmt.Fprintln(out, dimColor.Sprintf("%d modules, %d batches", g.Len(), len(topo.Batches)))
	}
	// unresolved imports still fail the command after the graph is shown
	return loadErr
}

func idents(g *modgraph.Graph, ids []modgraph.ModuleID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = g.Ident(id)
	}
	return out
}
