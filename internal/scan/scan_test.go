package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"rivet/internal/actions"
	"rivet/internal/diag"
	"rivet/internal/marker"
	"rivet/internal/modgraph"
)

// fakeGraph is an adjacency list keyed by module name; ids are list indices.
type fakeGraph struct {
	names []string
	edges map[string][]string
	delay map[string]time.Duration
}

func (g *fakeGraph) id(name string) actions.ModuleID {
	for i, n := range g.names {
		if n == name {
			return actions.ModuleID(i)
		}
	}
	panic("unknown module " + name)
}

func (g *fakeGraph) Ident(id actions.ModuleID) string { return g.names[int(id)] }

func (g *fakeGraph) References(ctx context.Context, id actions.ModuleID) ([]actions.ModuleID, error) {
	name := g.names[int(id)]
	if d := g.delay[name]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	var out []actions.ModuleID
	for _, ref := range g.edges[name] {
		out = append(out, g.id(ref))
	}
	return out, nil
}

type fakeExtractor struct {
	g       *fakeGraph
	actions map[string][]actions.Action
	fail    map[string]error

	mu    sync.Mutex
	calls map[string]int
}

func (e *fakeExtractor) Extract(_ context.Context, id actions.ModuleID) (*actions.ActionMap, error) {
	name := e.g.Ident(id)
	e.mu.Lock()
	if e.calls == nil {
		e.calls = map[string]int{}
	}
	e.calls[name]++
	e.mu.Unlock()
	if err := e.fail[name]; err != nil {
		return nil, err
	}
	pairs, ok := e.actions[name]
	if !ok {
		return nil, nil
	}
	return actions.NewActionMap(pairs...), nil
}

type row struct {
	Module  string
	Actions []actions.Action
}

func rows(m *actions.ModuleActionMap) []row {
	var out []row
	for _, e := range m.Entries() {
		out = append(out, row{Module: e.Ident, Actions: e.Actions.All()})
	}
	return out
}

func TestScanSinglePairExample(t *testing.T) {
	g := &fakeGraph{
		names: []string{"M", "N"},
		edges: map[string][]string{"M": {"N"}},
	}
	ex := &fakeExtractor{g: g, actions: map[string][]actions.Action{
		"N": {{ID: "abc123", Name: "myAction"}},
	}}
	s := &Scanner{Graph: g, Extractor: ex}

	m, st, err := s.ScanWithStats(context.Background(), g.id("M"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []row{{Module: "N", Actions: []actions.Action{{ID: "abc123", Name: "myAction"}}}}
	if diff := cmp.Diff(want, rows(m)); diff != "" {
		t.Fatalf("scan mismatch (-want +got):\n%s", diff)
	}
	if st != (Stats{Visited: 2, WithActions: 1, Actions: 1}) {
		t.Fatalf("stats = %+v", st)
	}
}

func TestScanFIFOOrderUnderConcurrency(t *testing.T) {
	// E -> B, C; B -> D; C -> F. B is slow so C finishes first.
	g := &fakeGraph{
		names: []string{"E", "B", "C", "D", "F"},
		edges: map[string][]string{"E": {"B", "C"}, "B": {"D"}, "C": {"F"}},
		delay: map[string]time.Duration{"B": 30 * time.Millisecond, "D": 10 * time.Millisecond},
	}
	ex := &fakeExtractor{g: g, actions: map[string][]actions.Action{
		"F": {{ID: "f", Name: "fn"}},
		"D": {{ID: "d", Name: "dn"}},
		"C": {{ID: "c", Name: "cn"}},
		"B": {{ID: "b", Name: "bn"}},
	}}
	s := &Scanner{Graph: g, Extractor: ex, Jobs: 4}

	var first []row
	for i := 0; i < 5; i++ {
		m, err := s.Scan(context.Background(), g.id("E"))
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		got := rows(m)
		var order []string
		for _, r := range got {
			order = append(order, r.Module)
		}
		if diff := cmp.Diff([]string{"B", "C", "D", "F"}, order); diff != "" {
			t.Fatalf("visit order mismatch (-want +got):\n%s", diff)
		}
		if first == nil {
			first = got
		} else if diff := cmp.Diff(first, got); diff != "" {
			t.Fatalf("run %d differs (-first +got):\n%s", i, diff)
		}
	}
}

func TestScanCyclesVisitEachModuleOnce(t *testing.T) {
	g := &fakeGraph{
		names: []string{"A", "B", "C"},
		edges: map[string][]string{"A": {"B", "A"}, "B": {"C", "A"}, "C": {"A", "B"}},
	}
	ex := &fakeExtractor{g: g, actions: map[string][]actions.Action{
		"A": {{ID: "a1", Name: "a"}},
		"C": {{ID: "c1", Name: "c"}},
	}}
	s := &Scanner{Graph: g, Extractor: ex, Jobs: 1}

	m, st, err := s.ScanWithStats(context.Background(), g.id("A"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if st.Visited != 3 {
		t.Fatalf("visited %d modules, want 3", st.Visited)
	}
	for name, n := range ex.calls {
		if n != 1 {
			t.Fatalf("module %s extracted %d times", name, n)
		}
	}
	if m.Len() != 2 || m.Entries()[0].Ident != "A" || m.Entries()[1].Ident != "C" {
		t.Fatalf("unexpected rows: %+v", rows(m))
	}
}

func TestScanNoActions(t *testing.T) {
	g := &fakeGraph{names: []string{"page"}}
	s := &Scanner{Graph: g, Extractor: &fakeExtractor{g: g}}
	m, err := s.Scan(context.Background(), 0)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !m.Empty() {
		t.Fatalf("expected empty map, got %+v", rows(m))
	}
}

func TestScanExtractionFailureIsFatal(t *testing.T) {
	g := &fakeGraph{
		names: []string{"E", "ok", "bad"},
		edges: map[string][]string{"E": {"ok", "bad"}},
	}
	ex := &fakeExtractor{
		g:       g,
		actions: map[string][]actions.Action{"ok": {{ID: "x", Name: "y"}}},
		fail:    map[string]error{"bad": errors.New("disk on fire")},
	}
	s := &Scanner{Graph: g, Extractor: ex}

	m, err := s.Scan(context.Background(), 0)
	if err == nil {
		t.Fatalf("expected error")
	}
	if m != nil {
		t.Fatalf("partial map returned: %+v", rows(m))
	}
	d, ok := diag.As(err)
	if !ok || d.Diag.Module != "bad" {
		t.Fatalf("error %v does not name the failing module", err)
	}
}

func TestScanKeepsDiagnosticErrors(t *testing.T) {
	g := &fakeGraph{names: []string{"E"}}
	parseErr := diag.Errorf(diag.ExtParse, "E", "broken marker")
	s := &Scanner{Graph: g, Extractor: &fakeExtractor{g: g, fail: map[string]error{"E": parseErr}}}
	_, err := s.Scan(context.Background(), 0)
	if !errors.Is(err, parseErr) {
		t.Fatalf("err = %v, want the extractor's diagnostic", err)
	}
}

func TestScanCancelled(t *testing.T) {
	g := &fakeGraph{
		names: []string{"E", "slow"},
		edges: map[string][]string{"E": {"slow"}},
		delay: map[string]time.Duration{"slow": time.Second},
	}
	s := &Scanner{Graph: g, Extractor: &fakeExtractor{g: g}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Scan(ctx, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestScanOverRealGraph(t *testing.T) {
	metas := []modgraph.Meta{
		{Path: "app/page.tsx", Imports: []string{"app/form.tsx", "npm:react"}, Content: []byte("export default function Page() {}")},
		{Path: "app/form.tsx", Imports: []string{"app/actions.ts", "app/page.tsx"}, Content: []byte("import { save } from './actions'")},
		{Path: "app/actions.ts", Content: []byte(marker.Format([]actions.Action{{ID: "7f3a", Name: "save"}, {ID: "01bc", Name: "remove"}}))},
		{Path: "npm:react"},
	}
	g := modgraph.FromMetas(metas, nil)
	s := &Scanner{Graph: g, Extractor: marker.NewMemo(marker.NewCommentExtractor(g), g, nil)}

	entry, _ := g.Lookup("app/page.tsx")
	m, err := s.Scan(context.Background(), entry)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []row{{
		Module:  "app/actions.ts",
		Actions: []actions.Action{{ID: "7f3a", Name: "save"}, {ID: "01bc", Name: "remove"}},
	}}
	if diff := cmp.Diff(want, rows(m)); diff != "" {
		t.Fatalf("scan mismatch (-want +got):\n%s", diff)
	}
}

func ExampleScanner_Scan() {
	g := modgraph.FromMetas([]modgraph.Meta{
		{Path: "page.ts", Imports: []string{"actions.ts"}},
		{Path: "actions.ts", Content: []byte(`/* __rivet_action_entry__ {"abc123":"myAction"} */`)},
	}, nil)
	s := &Scanner{Graph: g, Extractor: marker.NewCommentExtractor(g)}
	entry, _ := g.Lookup("page.ts")
	m, _ := s.Scan(context.Background(), entry)
	for _, e := range m.Entries() {
		fmt.Println(e.Ident, e.Actions.All())
	}
	// Output: actions.ts [{abc123 myAction}]
}
