package main

import (
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"rivet/internal/actions"
	"rivet/internal/diag"
	"rivet/internal/marker"
	"rivet/internal/modgraph"
	"rivet/internal/scan"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <entry>",
		Short: "List server actions reachable from an entry module",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}
	cmd.Flags().Int("jobs", 0, "max parallel jobs (0=auto)")
	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	env, cleanup, err := prepare(cmd)
	defer cleanup()
	if err != nil {
		return err
	}
	g, entry, err := env.loadEntry(args[0])
	if err != nil {
		return err
	}
	m, stats, err := scanEntry(env, g, entry)
	if err != nil {
		env.dumpTrace(cmd.ErrOrStderr())
		return err
	}

	out := cmd.OutOrStdout()
	printActionTable(out, m)
	if !env.settings.Quiet {
		fmt.Fprintln(out, dimColor.Sprintf("%d modules visited, %d with actions, %d actions", stats.Visited, stats.WithActions, stats.Actions))
	}
	return nil
}

// loadEntry loads the graph and finds the entry module given on the command
// line, relative to the source root.
func (e *cmdEnv) loadEntry(arg string) (*modgraph.Graph, modgraph.ModuleID, error) {
	g, err := e.loadGraph()
	if err != nil {
		return nil, 0, err
	}
	entry := strings.TrimPrefix(path.Clean(filepath.ToSlash(arg)), "./")
	id, ok := g.Lookup(entry)
	if !ok {
		return nil, 0, diag.Errorf(diag.GraphUnknownEntry, entry, "entry module not found in source tree")
	}
	return g, id, nil
}

func scanEntry(env *cmdEnv, g *modgraph.Graph, entry modgraph.ModuleID) (*actions.ModuleActionMap, scan.Stats, error) {
	s := &scan.Scanner{
		Graph:     g,
		Extractor: marker.NewCommentExtractor(g),
		Jobs:      env.settings.Project.Build.Jobs,
	}
	return s.ScanWithStats(env.ctx, entry)
}

func printActionTable(out io.Writer, m *actions.ModuleActionMap) {
	if m.Empty() {
		fmt.Fprintln(out, skipColor.Sprint("no server actions"))
		return
	}
	for _, row := range m.Entries() {
		fmt.Fprintln(out, okColor.Sprint(row.Ident))
		for _, a := range row.Actions.All() {
			fmt.Fprintf(out, "  %s  %s\n", a.ID, a.Name)
		}
	}
}
