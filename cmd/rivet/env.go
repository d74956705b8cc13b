package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"rivet/internal/diag"
	"rivet/internal/logging"
	"rivet/internal/modgraph"
	"rivet/internal/prof"
	"rivet/internal/trace"
)

// cmdEnv is what every subcommand needs after flags are parsed.
type cmdEnv struct {
	ctx      context.Context
	settings *settings
	logger   *log.Logger
	tracer   trace.Tracer
}

// prepare loads settings, builds the logger and tracer and attaches both to
// the command context. The returned cleanup must always be called.
func prepare(cmd *cobra.Command) (*cmdEnv, func(), error) {
	noop := func() {}
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, noop, err
	}

	logCfg := logging.FromEnv(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(s.LogLevel); ok {
		logCfg.Level = lvl
	}
	if s.Quiet && logCfg.Level < log.ErrorLevel {
		logCfg.Level = log.ErrorLevel
	}
	logger := logging.New(cmd.ErrOrStderr(), logCfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.WithLogger(ctx, logger)

	stopProfiling, err := setupProfiling(cmd, logger)
	if err != nil {
		return nil, noop, err
	}
	tracer, stopTracing, err := setupTracing(s, logger, cmd.ErrOrStderr())
	if err != nil {
		stopProfiling()
		return nil, noop, err
	}
	ctx = trace.WithTracer(ctx, tracer)
	cmd.SetContext(ctx)

	cleanup := func() {
		stopTracing()
		stopProfiling()
	}
	return &cmdEnv{ctx: ctx, settings: s, logger: logger, tracer: tracer}, cleanup, nil
}

// setupProfiling starts the profilers requested by the persistent profiling
// flags and returns a function that stops them.
func setupProfiling(cmd *cobra.Command, logger *log.Logger) (func(), error) {
	var opts prof.Options
	for name, dst := range map[string]*string{
		"cpu-profile":   &opts.CPU,
		"mem-profile":   &opts.Mem,
		"runtime-trace": &opts.Trace,
	} {
		if f := lookupFlag(cmd, name); f != nil {
			*dst = f.Value.String()
		}
	}
	if !opts.Enabled() {
		return func() {}, nil
	}
	session, err := prof.Start(opts)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := session.Stop(); err != nil {
			logger.Error("profiling", "err", err)
		}
	}, nil
}

// setupTracing builds the tracer described by s. It returns a cleanup
// function that stops the heartbeat and flushes the tracer.
func setupTracing(s *settings, logger *log.Logger, errOut io.Writer) (trace.Tracer, func(), error) {
	level, err := trace.ParseLevel(s.TraceLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid trace level: %w", err)
	}
	if level == trace.LevelOff && s.Trace != "" {
		level = trace.LevelPage
	}
	if level == trace.LevelOff {
		return trace.Nop, func() {}, nil
	}

	mode := trace.ModeRing
	if s.Trace != "" {
		mode = trace.ModeBoth
	}
	if s.TraceMode != "" {
		if mode, err = trace.ParseMode(s.TraceMode); err != nil {
			return nil, nil, fmt.Errorf("invalid trace mode: %w", err)
		}
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		OutputPath: s.Trace,
		RingSize:   s.TraceRingSize,
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	var heartbeat *trace.Heartbeat
	if s.TraceHeartbeat > 0 {
		heartbeat = trace.StartHeartbeat(tracer, s.TraceHeartbeat)
	}
	cleanup := func() {
		if heartbeat != nil {
			heartbeat.Stop()
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(errOut, "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(errOut, "trace: close error: %v\n", err)
		}
	}
	return tracer, cleanup, nil
}

// dumpTrace writes the ring buffer, if any, after a failed command.
func (e *cmdEnv) dumpTrace(w io.Writer) {
	var ring *trace.RingTracer
	switch t := e.tracer.(type) {
	case *trace.RingTracer:
		ring = t
	case *trace.MultiTracer:
		ring, _ = t.Ring()
	}
	if ring == nil {
		return
	}
	fmt.Fprintln(w, "--- trace (most recent events) ---")
	if err := ring.Dump(w, trace.FormatText); err != nil {
		e.logger.Warn("trace dump failed", "err", err)
	}
}

// loadGraph walks the project source root. Unresolved imports are logged and
// returned as an error together with the graph.
func (e *cmdEnv) loadGraph() (*modgraph.Graph, error) {
	cfg := e.settings.Project
	started := time.Now()
	reporter := diag.FuncReporter(func(d diag.Diagnostic) {
		switch d.Severity {
		case diag.SevError:
			e.logger.Error(d.Message, "code", d.Code.ID(), "module", d.Module)
		case diag.SevWarning:
			e.logger.Warn(d.Message, "code", d.Code.ID(), "module", d.Module)
		default:
			e.logger.Debug(d.Message, "code", d.Code.ID(), "module", d.Module)
		}
	})
	g, err := modgraph.LoadDir(e.ctx, cfg.RootDir(), modgraph.LoadOptions{
		Jobs:     cfg.Build.Jobs,
		Reporter: reporter,
	})
	if g != nil {
		e.logger.Debug("module graph loaded", "root", cfg.RootDir(), "modules", g.Len(), "took", time.Since(started))
	}
	return g, err
}
