package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pmezard/go-difflib/difflib"

	"rivet/internal/actions"
	"rivet/internal/diag"
)

const updateEnv = "RIVET_UPDATE_GOLDEN"

func checkGolden(t *testing.T, name, got string) {
	t.Helper()
	path := filepath.Join("testdata", "golden", name)
	if os.Getenv(updateEnv) == "1" {
		if err := os.WriteFile(path, []byte(got), 0o644); err != nil {
			t.Fatalf("update golden: %v", err)
		}
		return
	}
	want, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	if string(want) == got {
		return
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(want)),
		B:        difflib.SplitLines(got),
		FromFile: path,
		ToFile:   "synthesized",
		Context:  3,
	})
	t.Fatalf("loader source differs from %s (set %s=1 to update):\n%s", path, updateEnv, diff)
}

func buildMap(rows ...actions.ModuleActions) *actions.ModuleActionMap {
	b := actions.NewModuleActionMapBuilder(len(rows))
	for _, r := range rows {
		b.Insert(r.Module, r.Ident, r.Actions)
	}
	return b.Build()
}

func TestSynthesizeSingleAction(t *testing.T) {
	m := buildMap(actions.ModuleActions{
		Module:  4,
		Ident:   "app/N.ts",
		Actions: actions.NewActionMap(actions.Action{ID: "abc123", Name: "myAction"}),
	})
	l, err := Synthesize(m)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	checkGolden(t, "single.js", l.Source)
	want := []Import{{Slot: "ACTIONS_MODULE0", Module: 4, Ident: "app/N.ts"}}
	if diff := cmp.Diff(want, l.Imports); diff != "" {
		t.Fatalf("imports mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesizeOneSlotPerModule(t *testing.T) {
	m := buildMap(
		actions.ModuleActions{Module: 9, Ident: "app/posts/actions.ts", Actions: actions.NewActionMap(
			actions.Action{ID: "7f3a9c", Name: "createPost"},
			actions.Action{ID: "c01d2e", Name: "deletePost"},
		)},
		actions.ModuleActions{Module: 2, Ident: "lib/likes.ts", Actions: actions.NewActionMap(
			actions.Action{ID: `q"uote`, Name: "$like"},
		)},
	)
	l, err := Synthesize(m)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	checkGolden(t, "multi.js", l.Source)

	if len(l.Imports) != 2 || l.Actions != 3 {
		t.Fatalf("imports=%d actions=%d", len(l.Imports), l.Actions)
	}
	if n := strings.Count(l.Source, `import("ACTIONS_MODULE0")`); n != 2 {
		t.Fatalf("slot 0 referenced %d times, want 2", n)
	}
	imp, ok := l.Lookup("ACTIONS_MODULE1")
	if !ok || imp.Module != 2 {
		t.Fatalf("Lookup(ACTIONS_MODULE1) = %+v, %v", imp, ok)
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	mk := func() *actions.ModuleActionMap {
		return buildMap(
			actions.ModuleActions{Module: 1, Ident: "b.ts", Actions: actions.NewActionMap(actions.Action{ID: "z", Name: "z"}, actions.Action{ID: "a", Name: "a"})},
			actions.ModuleActions{Module: 0, Ident: "a.ts", Actions: actions.NewActionMap(actions.Action{ID: "m", Name: "m"})},
		)
	}
	first, err := Synthesize(mk())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, _ := Synthesize(mk())
		if again.Source != first.Source {
			t.Fatalf("run %d produced different source", i)
		}
	}
}

func TestSynthesizeEmptyIsInternalError(t *testing.T) {
	for _, m := range []*actions.ModuleActionMap{nil, actions.EmptyModuleActionMap()} {
		_, err := Synthesize(m)
		if !diag.HasCode(err, diag.SynthEmpty) {
			t.Fatalf("err = %v, want %s", err, diag.SynthEmpty)
		}
	}
}

func TestVirtualPath(t *testing.T) {
	if got := VirtualPath("/dashboard"); got != "server/app/dashboard/actions.js" {
		t.Fatalf("VirtualPath = %q", got)
	}
}
