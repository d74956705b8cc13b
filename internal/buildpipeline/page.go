package buildpipeline

import (
	"context"
	"errors"
	"time"

	"rivet/internal/actions"
	"rivet/internal/bundle"
	"rivet/internal/loader"
	"rivet/internal/logging"
	"rivet/internal/manifest"
	"rivet/internal/scan"
	"rivet/internal/trace"
)

// PageRequest is one page pipeline input.
type PageRequest struct {
	Route      string
	Entry      actions.ModuleID
	EntryIdent string // for logs; optional
	Runtime    actions.Runtime
}

// Deps are the collaborators shared by all page pipelines of a build.
type Deps struct {
	Scanner  *scan.Scanner
	Bundler  bundle.Bundler
	Manifest *manifest.Builder
}

// PageResult describes what one page contributed.
type PageResult struct {
	Route   string
	Runtime actions.Runtime
	Actions *actions.ModuleActionMap
	Stats   scan.Stats
	Loader  *loader.Loader
	Chunk   bundle.ChunkID
	// Skipped is set when the page has no actions: no loader, no chunk and no
	// manifest change.
	Skipped bool
	Timings Timings
	Err     error
}

// RunPage scans req's graph, synthesizes and bundles its loader, and commits
// the result to the shared manifest. A failed page commits nothing.
func RunPage(ctx context.Context, deps Deps, req PageRequest, sink ProgressSink) (PageResult, error) {
	res := PageResult{Route: req.Route, Runtime: req.Runtime}
	if deps.Scanner == nil || deps.Bundler == nil || deps.Manifest == nil {
		res.Err = errors.New("buildpipeline: incomplete page dependencies")
		return res, res.Err
	}

	logger := logging.FromContext(ctx).With("route", req.Route)
	ctx, span := trace.StartSpan(trace.WithRoute(ctx, req.Route), trace.ScopePage, "page:"+req.Route)
	defer func() {
		detail := "ok"
		switch {
		case res.Err != nil:
			detail = "failed"
		case res.Skipped:
			detail = "no actions"
		}
		span.End(detail)
	}()

	fail := func(stage Stage, started time.Time, err error) (PageResult, error) {
		res.Err = err
		emit(sink, Event{Route: req.Route, Stage: stage, Status: StatusError, Err: err, Elapsed: time.Since(started)})
		return res, err
	}

	// scan
	started := time.Now()
	emit(sink, Event{Route: req.Route, Stage: StageScan, Status: StatusWorking})
	am, st, err := deps.Scanner.ScanWithStats(ctx, req.Entry)
	if err != nil {
		return fail(StageScan, started, err)
	}
	res.Actions, res.Stats = am, st
	res.Timings.Set(StageScan, time.Since(started))
	logger.Debug("scanned", "entry", req.EntryIdent, "modules", st.Visited, "actions", st.Actions)

	if am.Empty() {
		res.Skipped = true
		emit(sink, Event{Route: req.Route, Stage: StageScan, Status: StatusSkipped, Elapsed: res.Timings.Duration(StageScan)})
		logger.Debug("no server actions, skipping loader")
		return res, nil
	}
	emit(sink, Event{Route: req.Route, Stage: StageScan, Status: StatusDone, Elapsed: res.Timings.Duration(StageScan), Actions: st.Actions})

	// synthesize
	started = time.Now()
	emit(sink, Event{Route: req.Route, Stage: StageSynthesize, Status: StatusWorking})
	l, err := loader.Synthesize(am)
	if err != nil {
		return fail(StageSynthesize, started, err)
	}
	res.Loader = l
	res.Timings.Set(StageSynthesize, time.Since(started))
	emit(sink, Event{Route: req.Route, Stage: StageSynthesize, Status: StatusDone, Elapsed: res.Timings.Duration(StageSynthesize)})

	// bundle
	started = time.Now()
	emit(sink, Event{Route: req.Route, Stage: StageBundle, Status: StatusWorking})
	chunk, err := deps.Bundler.Bundle(ctx, req.Route, l)
	if err != nil {
		return fail(StageBundle, started, err)
	}
	res.Chunk = chunk
	res.Timings.Set(StageBundle, time.Since(started))
	emit(sink, Event{Route: req.Route, Stage: StageBundle, Status: StatusDone, Elapsed: res.Timings.Duration(StageBundle)})

	// assemble
	started = time.Now()
	emit(sink, Event{Route: req.Route, Stage: StageAssemble, Status: StatusWorking})
	if err := ctx.Err(); err != nil {
		return fail(StageAssemble, started, err)
	}
	err = deps.Manifest.Commit(manifest.Page{
		Route:   req.Route,
		Runtime: req.Runtime,
		Chunk:   chunk,
		Actions: am,
	})
	if err != nil {
		return fail(StageAssemble, started, err)
	}
	res.Timings.Set(StageAssemble, time.Since(started))
	emit(sink, Event{Route: req.Route, Stage: StageAssemble, Status: StatusDone, Elapsed: res.Timings.Duration(StageAssemble), Actions: st.Actions})

	logger.Info("page built", "actions", st.Actions, "modules", am.Len(), "chunk", string(chunk), "runtime", req.Runtime.String())
	return res, nil
}
