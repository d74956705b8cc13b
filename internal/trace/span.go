package trace

import (
	"sync/atomic"
	"time"
)

// Process-wide counters; events from concurrent pages interleave by seq.
var (
	seqCounter  atomic.Uint64
	spanCounter atomic.Uint64
)

func nextSeq() uint64 { return seqCounter.Add(1) }

// Span is one begin/end pair. A Span from a disabled tracer is inert but
// still measures elapsed time.
type Span struct {
	tracer  Tracer
	id      uint64
	parent  uint64
	scope   Scope
	name    string
	started time.Time
	extra   map[string]string
}

// Begin starts a span and emits its begin event. parent is 0 for roots.
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	s := &Span{tracer: Nop, started: time.Now()}
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return s
	}
	s.tracer = t
	s.id = spanCounter.Add(1)
	s.parent = parent
	s.scope = scope
	s.name = name
	s.emit(KindSpanBegin, s.started, "")
	return s
}

// End emits the end event and returns the span duration.
func (s *Span) End(detail string) time.Duration {
	if s == nil {
		return 0
	}
	now := time.Now()
	if s.live() {
		s.emit(KindSpanEnd, now, detail)
	}
	return now.Sub(s.started)
}

// WithExtra attaches key=value to the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if !s.live() {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string, 2)
	}
	s.extra[key] = value
	return s
}

// ID is 0 for inert spans.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

func (s *Span) live() bool {
	return s != nil && s.id != 0 && s.tracer.Enabled()
}

func (s *Span) emit(kind Kind, at time.Time, detail string) {
	ev := &Event{
		Time:     at,
		Seq:      nextSeq(),
		Kind:     kind,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		Name:     s.name,
		Detail:   detail,
	}
	if kind == KindSpanEnd {
		ev.Extra = s.extra
	}
	s.tracer.Emit(ev)
}
