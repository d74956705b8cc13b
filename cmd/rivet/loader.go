package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rivet/internal/bundle"
	"rivet/internal/loader"
)

func newLoaderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loader <entry>",
		Short: "Print the synthesized action loader for an entry module",
		Args:  cobra.ExactArgs(1),
		RunE:  runLoader,
	}
	f := cmd.Flags()
	f.Int("jobs", 0, "max parallel jobs (0=auto)")
	f.Bool("resolve", false, "rewrite import slots to module paths as the bundler would")
	f.String("route", "/", "route the loader is synthesized for")
	return cmd
}

func runLoader(cmd *cobra.Command, args []string) error {
	env, cleanup, err := prepare(cmd)
	defer cleanup()
	if err != nil {
		return err
	}
	resolve, err := cmd.Flags().GetBool("resolve")
	if err != nil {
		return err
	}
	route, err := cmd.Flags().GetString("route")
	if err != nil {
		return err
	}

	g, entry, err := env.loadEntry(args[0])
	if err != nil {
		return err
	}
	m, _, err := scanEntry(env, g, entry)
	if err != nil {
		env.dumpTrace(cmd.ErrOrStderr())
		return err
	}
	if m.Empty() {
		if !env.settings.Quiet {
			fmt.Fprintln(cmd.ErrOrStderr(), skipColor.Sprintf("no server actions reachable from %s", g.Ident(entry)))
		}
		return nil
	}

	l, err := loader.Synthesize(m)
	if err != nil {
		return err
	}
	src := l.Source
	if resolve {
		cfg := env.settings.Project
		b := bundle.NewDevBundler(g, cfg.RootDir(), cfg.OutPath())
		if src, err = b.Resolve(route, l); err != nil {
			return err
		}
	}
	out := cmd.OutOrStdout()
	if !env.settings.Quiet {
		fmt.Fprintln(out, dimColor.Sprintf("// %s", loader.VirtualPath(route)))
	}
	fmt.Fprint(out, src)
	return nil
}
