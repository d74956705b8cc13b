package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rivet/internal/buildpipeline"
	"rivet/internal/bundle"
	"rivet/internal/diag"
	"rivet/internal/manifest"
	"rivet/internal/marker"
	"rivet/internal/observ"
	"rivet/internal/scan"
)

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Collect server actions for every page and write the reference manifest",
		Args:  cobra.NoArgs,
		RunE:  runBuild,
	}
	f := cmd.Flags()
	f.String("out", "", "output directory (overrides build.out_dir)")
	f.Int("jobs", 0, "max parallel jobs (0=auto)")
	f.Bool("no-cache", false, "do not read or write the extraction cache")
	f.String("cache-dir", "", "extraction cache directory (overrides build.cache_dir)")
	f.String("progress", "auto", "progress UI (auto|on|off)")
	f.Bool("allow-partial", false, "write the manifest even when some pages fail")
	f.Bool("route-manifests", false, "also write one manifest per route")
	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	env, cleanup, err := prepare(cmd)
	defer cleanup()
	if err != nil {
		return err
	}
	progressFlag, err := cmd.Flags().GetString("progress")
	if err != nil {
		return err
	}
	mode, err := parseProgressMode(progressFlag)
	if err != nil {
		return err
	}
	allowPartial, err := cmd.Flags().GetBool("allow-partial")
	if err != nil {
		return err
	}

	cfg := env.settings.Project
	if len(cfg.Pages) == 0 {
		return diag.Errorf(diag.BuildConfig, cfg.Path, "no pages configured")
	}

	timer := observ.NewTimer()
	phase := timer.Begin("load graph")
	g, err := env.loadGraph()
	if err != nil {
		return err
	}
	timer.End(phase, fmt.Sprintf("%d modules", g.Len()))
	specs := make([]buildpipeline.PageSpec, len(cfg.Pages))
	routes := make([]string, len(cfg.Pages))
	for i, pg := range cfg.Pages {
		specs[i] = buildpipeline.PageSpec{Route: pg.Route, Entry: pg.Entry, Runtime: pg.Runtime}
		routes[i] = pg.Route
	}
	pages, err := buildpipeline.ResolvePages(g, specs)
	if err != nil {
		return err
	}

	var disk *marker.DiskCache
	if cfg.Build.Cache {
		disk, err = marker.OpenDiskCache(cfg.CachePath(), "rivet")
		if err != nil {
			env.logger.Warn("extraction cache unavailable", "err", err)
			disk = nil
		}
	}
	memo := marker.NewMemo(marker.NewCommentExtractor(g), g, disk)
	outDir := cfg.OutPath()
	bundler := bundle.NewDevBundler(g, cfg.RootDir(), outDir)

	req := &buildpipeline.BuildRequest{
		Pages: pages,
		Deps: buildpipeline.Deps{
			Scanner:  &scan.Scanner{Graph: g, Extractor: memo, Jobs: cfg.Build.Jobs},
			Bundler:  bundler,
			Manifest: manifest.NewBuilder(),
		},
		Jobs:           cfg.Build.Jobs,
		OutDir:         outDir,
		RouteManifests: cfg.Build.RouteManifests,
		AllowPartial:   allowPartial,
		Disabled:       !cfg.Build.Actions,
	}

	phase = timer.Begin("build")
	var res buildpipeline.BuildResult
	if mode.interactive(env.settings.Quiet, stdoutIsTerminal) {
		res, err = runBuildWithUI(env.ctx, "rivet build", routes, req)
	} else {
		res, err = buildpipeline.Build(env.ctx, req)
	}
	timer.End(phase, fmt.Sprintf("%d pages", len(pages)))

	out := cmd.OutOrStdout()
	if !env.settings.Quiet {
		printBuildSummary(out, res, len(bundler.Chunks()), memo.Stats())
	}
	if env.settings.Timings {
		addStageTimings(timer, res.Timings)
		fmt.Fprint(out, timer.Summary())
	}
	if err != nil {
		env.dumpTrace(cmd.ErrOrStderr())
		return err
	}
	return nil
}
