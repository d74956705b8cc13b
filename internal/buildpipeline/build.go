// Package buildpipeline runs the per-page action pipelines of a build and
// publishes the server reference manifest.
package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"rivet/internal/diag"
	"rivet/internal/logging"
	"rivet/internal/manifest"
	"rivet/internal/trace"
)

// BuildRequest configures one build.
type BuildRequest struct {
	Pages []PageRequest
	Deps  Deps
	// Jobs bounds concurrently running pages. <=0 means GOMAXPROCS.
	Jobs int
	// OutDir receives the manifests. Empty means nothing is written.
	OutDir string
	// RouteManifests also writes one manifest per page next to its loader.
	RouteManifests bool
	// AllowPartial publishes the manifest even when some pages failed.
	AllowPartial bool
	// Disabled skips scanning entirely; an empty manifest is still written so
	// downstream consumers can merge it.
	Disabled bool
	Progress ProgressSink
}

// BuildResult captures the manifest, per-page results and timings.
type BuildResult struct {
	Manifest     *manifest.Manifest
	ManifestPath string
	RoutePaths   []string
	Pages        []PageResult // request order
	Failed       int
	Timings      Timings
}

// Build runs every page concurrently. A failing page does not stop the others
// and keeps no contribution; pages that succeeded keep theirs. The manifest
// is written only when every page succeeded, unless AllowPartial is set.
func Build(ctx context.Context, req *BuildRequest) (BuildResult, error) {
	var result BuildResult
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing build request")
	}
	logger := logging.FromContext(ctx)
	ctx, span := trace.StartSpan(ctx, trace.ScopeBuild, "build")
	defer func() {
		span.WithExtra("pages", strconv.Itoa(len(req.Pages))).
			WithExtra("failed", strconv.Itoa(result.Failed)).
			End("")
	}()

	if req.Disabled {
		logger.Info("server actions disabled, writing empty manifest")
		result.Manifest = manifest.New()
		for _, p := range req.Pages {
			result.Pages = append(result.Pages, PageResult{Route: p.Route, Runtime: p.Runtime, Skipped: true})
		}
		return result, publish(ctx, req, &result)
	}
	if req.Deps.Manifest == nil {
		req.Deps.Manifest = manifest.NewBuilder()
	}

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	for _, p := range req.Pages {
		emit(req.Progress, Event{Route: p.Route, Stage: StageScan, Status: StatusQueued})
	}

	started := time.Now()
	result.Pages = make([]PageResult, len(req.Pages))
	// Без errgroup.WithContext: ошибка одной страницы не отменяет остальные.
	var g errgroup.Group
	g.SetLimit(jobs)
	for i, p := range req.Pages {
		g.Go(func() error {
			res, err := RunPage(ctx, req.Deps, p, req.Progress)
			if err != nil {
				res.Err = pageError(p.Route, err)
				logger.Error("page failed", "route", p.Route, "err", err)
			}
			result.Pages[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range result.Pages {
		result.Timings.Merge(res.Timings)
		if res.Err != nil {
			result.Failed++
			errs = append(errs, res.Err)
		}
	}
	result.Manifest = req.Deps.Manifest.Snapshot()
	logger.Debug("pages finished", "pages", len(req.Pages), "failed", result.Failed, "took", time.Since(started))

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	buildErr := errors.Join(errs...)
	if buildErr != nil && !req.AllowPartial {
		emit(req.Progress, Event{Stage: StageWrite, Status: StatusSkipped, Err: buildErr})
		return result, buildErr
	}
	if err := publish(ctx, req, &result); err != nil {
		return result, errors.Join(buildErr, err)
	}
	return result, buildErr
}

// publish writes the build-wide manifest and, if requested, the per-route
// documents of pages that succeeded.
func publish(ctx context.Context, req *BuildRequest, result *BuildResult) error {
	if req.OutDir == "" {
		return nil
	}
	started := time.Now()
	emit(req.Progress, Event{Stage: StageWrite, Status: StatusWorking})
	path, err := manifest.Write(req.OutDir, result.Manifest)
	if err != nil {
		emit(req.Progress, Event{Stage: StageWrite, Status: StatusError, Err: err})
		return err
	}
	result.ManifestPath = path

	if req.RouteManifests {
		for _, res := range result.Pages {
			if res.Err != nil {
				continue
			}
			rp, err := manifest.WriteRoute(req.OutDir, res.Route, result.Manifest)
			if err != nil {
				emit(req.Progress, Event{Stage: StageWrite, Status: StatusError, Err: err})
				return err
			}
			result.RoutePaths = append(result.RoutePaths, rp)
		}
	}
	result.Timings.Set(StageWrite, time.Since(started))
	emit(req.Progress, Event{Stage: StageWrite, Status: StatusDone, Elapsed: result.Timings.Duration(StageWrite)})
	logging.FromContext(ctx).Info("manifest written", "path", path, "actions", result.Manifest.Len())
	return nil
}

func pageError(route string, err error) error {
	return diag.Wrap(diag.BuildPageFailed, "", err, "page failed").WithRoute(route)
}
