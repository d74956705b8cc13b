package trace

import "context"

type ctxKey struct{}

// FromContext returns the context's Tracer, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx == nil {
		return Nop
	}
	if t, ok := ctx.Value(ctxKey{}).(Tracer); ok {
		return t
	}
	return Nop
}

// WithTracer attaches t to ctx. A nil t attaches Nop.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, ctxKey{}, t)
}

// SpanContext is the enclosing span of a call chain: the parent for new
// spans and the page route, if any, they belong to.
type SpanContext struct {
	SpanID uint64
	Route  string
}

type spanCtxKey struct{}

// CurrentSpan returns the enclosing span, zero outside of one.
func CurrentSpan(ctx context.Context) SpanContext {
	if ctx == nil {
		return SpanContext{}
	}
	sc, _ := ctx.Value(spanCtxKey{}).(SpanContext)
	return sc
}

// WithSpanContext attaches sc.
func WithSpanContext(ctx context.Context, sc SpanContext) context.Context {
	return context.WithValue(ctx, spanCtxKey{}, sc)
}

// WithRoute marks every span started below ctx as belonging to route.
func WithRoute(ctx context.Context, route string) context.Context {
	sc := CurrentSpan(ctx)
	sc.Route = route
	return WithSpanContext(ctx, sc)
}

// StartSpan begins a child of the enclosing span using the context's tracer
// and returns a context in which the new span encloses further work.
func StartSpan(ctx context.Context, scope Scope, name string) (context.Context, *Span) {
	parent := CurrentSpan(ctx)
	span := ChildOf(FromContext(ctx), parent, scope, name)
	return WithSpanContext(ctx, SpanContext{SpanID: span.ID(), Route: parent.Route}), span
}

// ChildOf begins a span under parent without touching a context; for fan-out
// loops that start many siblings from one enclosing span.
func ChildOf(t Tracer, parent SpanContext, scope Scope, name string) *Span {
	span := Begin(t, scope, name, parent.SpanID)
	if parent.Route != "" {
		span.WithExtra("route", parent.Route)
	}
	return span
}
