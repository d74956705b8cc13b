package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/fatih/color"

	"rivet/internal/buildpipeline"
	"rivet/internal/marker"
	"rivet/internal/observ"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	skipColor = color.New(color.FgHiBlack)
	failColor = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.Faint)
)

func printBuildSummary(out io.Writer, res buildpipeline.BuildResult, chunks int, stats marker.MemoStats) {
	for _, p := range res.Pages {
		switch {
		case p.Err != nil:
			fmt.Fprintf(out, "%s %s %s\n", failColor.Sprint("FAIL"), p.Route, dimColor.Sprintf("(%s)", p.Runtime))
		case p.Skipped:
			fmt.Fprintf(out, "%s %s %s\n", skipColor.Sprint("skip"), p.Route, skipColor.Sprint("no server actions"))
		default:
			fmt.Fprintf(out, "%s %s %s %d actions in %d modules -> %s\n",
				okColor.Sprint("  ok"), p.Route, dimColor.Sprintf("(%s)", p.Runtime),
				p.Actions.ActionCount(), p.Actions.Len(), p.Chunk)
		}
	}

	switch {
	case res.ManifestPath != "":
		fmt.Fprintf(out, "manifest: %s (%d actions, %d chunks)\n", res.ManifestPath, manifestLen(res), chunks)
	case res.Failed > 0:
		fmt.Fprintf(out, "%s manifest not written: %d of %d pages failed\n", failColor.Sprint("error:"), res.Failed, len(res.Pages))
	}
	for _, rp := range res.RoutePaths {
		fmt.Fprintf(out, "  route manifest: %s\n", rp)
	}
	if stats.Hits+stats.DiskHits+stats.Misses > 0 {
		fmt.Fprintln(out, dimColor.Sprintf("extraction: %d parsed, %d from memory, %d from disk cache", stats.Misses, stats.Hits, stats.DiskHits))
	}
}

func manifestLen(res buildpipeline.BuildResult) int {
	if res.Manifest == nil {
		return 0
	}
	return res.Manifest.Len()
}

// addStageTimings appends per-stage totals summed over all pages. Pages run
// concurrently, so the sums may exceed the wall time of the build phase.
func addStageTimings(timer *observ.Timer, timings buildpipeline.Timings) {
	stages := append(slices.Clone(buildpipeline.PageStages), buildpipeline.StageWrite)
	for _, stage := range stages {
		if !timings.Has(stage) {
			continue
		}
		timer.Add("  "+string(stage), timings.Duration(stage), "")
	}
}
