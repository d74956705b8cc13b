package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rivet/internal/diag"
	"rivet/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rivet",
		Short:         "Server action manifest builder",
		Long:          `rivet finds server actions reachable from each page, synthesizes their loaders and writes the server reference manifest`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Глобальные флаги
	pf := root.PersistentFlags()
	pf.StringP("project", "p", "", "path to rivet.toml or its directory (default: search upward from cwd)")
	pf.String("log-level", "", "log level (debug|info|warn|error|off)")
	pf.Bool("quiet", false, "suppress non-essential output")
	pf.Bool("timings", false, "show timing information")
	pf.String("trace", "", "trace output file (\"-\" for stderr)")
	pf.String("trace-level", "off", "trace level (off|build|page|module)")
	pf.String("trace-mode", "", "trace storage (stream|ring|both|log); default ring, or both with --trace")
	pf.Int("trace-ring-size", 4096, "events kept in the trace ring buffer")
	pf.Duration("trace-heartbeat", 0, "emit a heartbeat trace event at this interval (0 disables)")
	pf.String("cpu-profile", "", "write a CPU profile to file")
	pf.String("mem-profile", "", "write a heap profile to file on exit")
	pf.String("runtime-trace", "", "write a Go runtime trace to file")

	root.AddCommand(
		newBuildCmd(),
		newScanCmd(),
		newLoaderCmd(),
		newGraphCmd(),
		newVersionCmd(),
	)
	return root
}

// main runs the root command and exits with status 1 on error.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(root.ErrOrStderr(), err)
		os.Exit(1)
	}
}

// printError renders diagnostics in short form; anything else is printed as is.
func printError(w io.Writer, err error) {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(w, color.YellowString("interrupted"))
		return
	}
	diags := diag.Collect(err)
	if len(diags) == 0 {
		fmt.Fprintf(w, "%s %v\n", color.RedString("error:"), err)
		return
	}
	fmt.Fprintln(w, diag.FormatShort(diags, true))
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
