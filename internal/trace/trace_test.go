package trace

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestLevelShouldEmit(t *testing.T) {
	cases := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeBuild, false},
		{LevelBuild, ScopeBuild, true},
		{LevelBuild, ScopePage, false},
		{LevelPage, ScopePage, true},
		{LevelPage, ScopeModule, false},
		{LevelModule, ScopeModule, true},
	}
	for _, tc := range cases {
		if got := tc.level.ShouldEmit(tc.scope); got != tc.want {
			t.Fatalf("%s.ShouldEmit(%s) = %v, want %v", tc.level, tc.scope, got, tc.want)
		}
	}
}

func TestRingTracerWrapsAround(t *testing.T) {
	r := NewRingTracer(3, LevelModule)
	for _, name := range []string{"a", "b", "c", "d"} {
		Point(r, ScopeModule, name, "", 0)
	}
	var got []string
	for _, ev := range r.Snapshot() {
		got = append(got, ev.Name)
	}
	if strings.Join(got, ",") != "b,c,d" {
		t.Fatalf("snapshot = %v", got)
	}
}

func TestSpanFiltersByLevel(t *testing.T) {
	r := NewRingTracer(16, LevelPage)
	root := Begin(r, ScopeBuild, "build", 0)
	page := Begin(r, ScopePage, "page:/", root.ID())
	mod := Begin(r, ScopeModule, "module:a.ts", page.ID())
	mod.End("")
	page.WithExtra("actions", "2").End("ok")
	root.End("")

	events := r.Snapshot()
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	end := events[2]
	if end.Kind != KindSpanEnd || end.Name != "page:/" || end.Extra["actions"] != "2" || end.ParentID != root.ID() {
		t.Fatalf("unexpected page end event: %+v", end)
	}
}

func TestStreamTracerText(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelPage, Mode: ModeStream, Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	span := Begin(tr, ScopePage, "page:/blog", 7)
	span.WithExtra("z", "1").WithExtra("a", "2").End("done")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasSuffix(lines[1], "← page:/blog (done) {a=2, z=1}") {
		t.Fatalf("end line = %q", lines[1])
	}
}

func TestLogTracerWritesThroughLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	tr := NewLogTracer(logger, LevelPage)
	span := Begin(tr, ScopePage, "page:/shop", 0)
	span.End("")

	out := buf.String()
	if !strings.Contains(out, "end page:/shop") || !strings.Contains(out, "took=") {
		t.Fatalf("log output missing span end:\n%s", out)
	}
}

func TestMultiTracerRing(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelBuild, Mode: ModeBoth, Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	Point(tr, ScopeBuild, "start", "", 0)
	multi, ok := tr.(*MultiTracer)
	if !ok {
		t.Fatalf("ModeBoth returned %T", tr)
	}
	ring, ok := multi.Ring()
	if !ok || len(ring.Snapshot()) != 1 || buf.Len() == 0 {
		t.Fatalf("event not fanned out")
	}
}

func TestContextDefaultsToNop(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatalf("empty context should yield Nop")
	}
	r := NewRingTracer(1, LevelBuild)
	if FromContext(WithTracer(context.Background(), r)) != Tracer(r) {
		t.Fatalf("tracer not propagated")
	}
}

func TestStartSpanPropagatesRoute(t *testing.T) {
	r := NewRingTracer(16, LevelModule)
	ctx := WithTracer(context.Background(), r)
	ctx, build := StartSpan(ctx, ScopeBuild, "build")
	pageCtx, page := StartSpan(WithRoute(ctx, "/blog"), ScopePage, "page:/blog")

	sc := CurrentSpan(pageCtx)
	if sc.SpanID != page.ID() || sc.Route != "/blog" {
		t.Fatalf("CurrentSpan = %+v", sc)
	}
	ChildOf(r, sc, ScopeModule, "module:a.ts").End("")
	page.End("ok")
	build.End("")

	var mod *Event
	events := r.Snapshot()
	for i := range events {
		if events[i].Kind == KindSpanEnd && events[i].Name == "module:a.ts" {
			mod = &events[i]
		}
	}
	if mod == nil || mod.ParentID != page.ID() || mod.Extra["route"] != "/blog" {
		t.Fatalf("module end event = %+v", mod)
	}
	if CurrentSpan(ctx).Route != "" {
		t.Fatalf("route leaked into the build context")
	}
}
