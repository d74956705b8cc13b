// Package scan walks a page's module graph breadth-first and collects the
// server actions of every reachable module.
package scan

import (
	"context"
	"errors"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"rivet/internal/actions"
	"rivet/internal/diag"
	"rivet/internal/logging"
	"rivet/internal/marker"
	"rivet/internal/trace"
)

// Graph is the part of the module graph the scanner needs.
type Graph interface {
	References(ctx context.Context, id actions.ModuleID) ([]actions.ModuleID, error)
	Ident(id actions.ModuleID) string
}

// Scanner discovers actions reachable from an entry module.
type Scanner struct {
	Graph     Graph
	Extractor marker.Extractor
	// Jobs bounds concurrent extract/reference calls within one BFS level.
	// <=0 means GOMAXPROCS.
	Jobs int
}

// Stats summarizes one scan.
type Stats struct {
	Visited     int // modules dequeued
	WithActions int // modules contributing at least one action
	Actions     int
}

// visit is the outcome of processing one dequeued module.
type visit struct {
	actions *actions.ActionMap
	refs    []actions.ModuleID
}

// Scan returns the ordered module -> actions map for everything reachable
// from entry. Order is FIFO visit order; each module is extracted once even
// when the graph has cycles. Any failure aborts the scan and no partial map
// is returned.
func (s *Scanner) Scan(ctx context.Context, entry actions.ModuleID) (*actions.ModuleActionMap, error) {
	m, _, err := s.ScanWithStats(ctx, entry)
	return m, err
}

// ScanWithStats is Scan plus counters.
func (s *Scanner) ScanWithStats(ctx context.Context, entry actions.ModuleID) (*actions.ModuleActionMap, Stats, error) {
	var st Stats
	if s.Graph == nil || s.Extractor == nil {
		return nil, st, errors.New("scan: scanner needs a graph and an extractor")
	}
	jobs := s.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	tracer := trace.FromContext(ctx)
	parent := trace.CurrentSpan(ctx)
	logger := logging.FromContext(ctx)

	b := actions.NewModuleActionMapBuilder(8)
	seen := map[actions.ModuleID]struct{}{entry: {}}
	frontier := []actions.ModuleID{entry}

	// Уровни BFS обрабатываются параллельно, но результаты собираются в
	// порядке очереди, так что итог совпадает с последовательным FIFO.
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, st, err
		}
		results := make([]visit, len(frontier))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(jobs)
		for i, id := range frontier {
			g.Go(func() error {
				v, err := s.visit(gctx, tracer, parent, id)
				if err != nil {
					return err
				}
				results[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, st, err
		}

		var next []actions.ModuleID
		for i, id := range frontier {
			st.Visited++
			v := results[i]
			if b.Insert(id, s.Graph.Ident(id), v.actions) {
				st.WithActions++
				st.Actions += v.actions.Len()
				logger.Debug("actions found", "module", s.Graph.Ident(id), "count", v.actions.Len())
			}
			for _, ref := range v.refs {
				if _, ok := seen[ref]; ok {
					continue
				}
				seen[ref] = struct{}{}
				next = append(next, ref)
			}
		}
		frontier = next
	}
	return b.Build(), st, nil
}

func (s *Scanner) visit(ctx context.Context, tracer trace.Tracer, parent trace.SpanContext, id actions.ModuleID) (visit, error) {
	span := trace.ChildOf(tracer, parent, trace.ScopeModule, "module:"+s.Graph.Ident(id))
	am, err := s.Extractor.Extract(ctx, id)
	if err != nil {
		span.End("extract failed")
		return visit{}, s.wrap(id, err, "failed to extract actions")
	}
	refs, err := s.Graph.References(ctx, id)
	if err != nil {
		span.End("references failed")
		return visit{}, s.wrap(id, err, "failed to list references")
	}
	span.WithExtra("actions", strconv.Itoa(am.Len())).End("")
	return visit{actions: am, refs: refs}, nil
}

// wrap keeps diagnostics and cancellation intact and tags anything else with
// the module identity.
func (s *Scanner) wrap(id actions.ModuleID, err error, what string) error {
	if _, ok := diag.As(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return diag.Wrap(diag.ExtRead, s.Graph.Ident(id), err, "%s", what)
}
