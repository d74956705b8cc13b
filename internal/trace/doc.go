// Package trace records what a build did and how long it took.
//
// Events are grouped by scope: the whole build, one page pipeline, and one
// module visited by the scanner. The level decides which scopes are kept:
//
//	rivet build --trace=- --trace-level=page
//
// Tracers travel through the pipeline in the context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePage, "page:/blog", 0)
//	defer span.End("")
//
// The ring tracer keeps the last events in memory and is dumped when a build
// fails; the log tracer forwards events to the structured logger.
package trace
