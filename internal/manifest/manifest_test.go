package manifest

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"rivet/internal/actions"
	"rivet/internal/bundle"
	"rivet/internal/diag"
)

func moduleMap(rows ...actions.ModuleActions) *actions.ModuleActionMap {
	b := actions.NewModuleActionMapBuilder(len(rows))
	for _, r := range rows {
		b.Insert(r.Module, r.Ident, r.Actions)
	}
	return b.Build()
}

func single(module actions.ModuleID, ident string, pairs ...actions.Action) *actions.ModuleActionMap {
	return moduleMap(actions.ModuleActions{Module: module, Ident: ident, Actions: actions.NewActionMap(pairs...)})
}

func TestAssembleExample(t *testing.T) {
	m := New()
	Assemble(m, single(1, "N", actions.Action{ID: "abc123", Name: "myAction"}), "chunk_42", actions.RuntimeStandard, "/dashboard")

	require.Equal(t, bundle.ChunkID("chunk_42"), m.Standard["abc123"].Workers["/dashboard"])
	require.Empty(t, m.Edge)
}

func TestAssembleAdditiveAcrossRoutes(t *testing.T) {
	shared := single(3, "lib/a.ts", actions.Action{ID: "a1", Name: "act"})
	m := New()
	Assemble(m, shared, "cx", actions.RuntimeStandard, "/x")
	Assemble(m, shared, "cy", actions.RuntimeStandard, "/y")

	require.Len(t, m.Standard, 1)
	want := map[string]bundle.ChunkID{"/x": "cx", "/y": "cy"}
	if diff := cmp.Diff(want, m.Standard["a1"].Workers); diff != "" {
		t.Fatalf("workers mismatch (-want +got):\n%s", diff)
	}

	// повторная сборка той же страницы перезаписывает только свой маршрут
	Assemble(m, shared, "cx2", actions.RuntimeStandard, "/x")
	require.Equal(t, bundle.ChunkID("cx2"), m.Standard["a1"].Workers["/x"])
	require.Equal(t, bundle.ChunkID("cy"), m.Standard["a1"].Workers["/y"])
}

func TestAssembleRuntimePartitioning(t *testing.T) {
	shared := single(3, "lib/a.ts", actions.Action{ID: "a1", Name: "act"})
	m := New()
	Assemble(m, shared, "edge-chunk", actions.RuntimeEdge, "/e")
	Assemble(m, shared, "std-chunk", actions.RuntimeStandard, "/s")

	require.Equal(t, map[string]bundle.ChunkID{"/e": "edge-chunk"}, m.Edge["a1"].Workers)
	require.Equal(t, map[string]bundle.ChunkID{"/s": "std-chunk"}, m.Standard["a1"].Workers)
}

func TestAssembleEmptyIsNoop(t *testing.T) {
	m := New()
	Assemble(m, actions.EmptyModuleActionMap(), "c", actions.RuntimeEdge, "/")
	require.Zero(t, m.Len())
}

func TestEncodeShape(t *testing.T) {
	m := New()
	Assemble(m, moduleMap(
		actions.ModuleActions{Module: 2, Ident: "b.ts", Actions: actions.NewActionMap(actions.Action{ID: "zz", Name: "z"})},
		actions.ModuleActions{Module: 1, Ident: "a.ts", Actions: actions.NewActionMap(actions.Action{ID: "aa", Name: "a"})},
	), "c1", actions.RuntimeStandard, "/dashboard")

	data, err := Encode(m)
	require.NoError(t, err)
	want := `{
  "edge": {},
  "standard": {
    "aa": {
      "workers": {
        "/dashboard": "c1"
      }
    },
    "zz": {
      "workers": {
        "/dashboard": "c1"
      }
    }
  }
}
`
	require.Equal(t, want, string(data))

	back, err := Decode(data)
	require.NoError(t, err)
	if diff := cmp.Diff(m, back); diff != "" {
		t.Fatalf("decode mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilderConflictLeavesManifestUntouched(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Commit(Page{
		Route: "/one", Chunk: "c1",
		Actions: single(1, "app/a.ts", actions.Action{ID: "dup", Name: "save"}),
	}))
	before := b.Snapshot()

	err := b.Commit(Page{
		Route: "/two", Chunk: "c2",
		Actions: moduleMap(
			actions.ModuleActions{Module: 5, Ident: "app/fresh.ts", Actions: actions.NewActionMap(actions.Action{ID: "fresh", Name: "f"})},
			actions.ModuleActions{Module: 2, Ident: "app/b.ts", Actions: actions.NewActionMap(actions.Action{ID: "dup", Name: "save"})},
		),
	})
	require.True(t, diag.HasCode(err, diag.ManifestConflict), "err = %v", err)
	d, _ := diag.As(err)
	require.Equal(t, "dup", d.Diag.ActionID)
	require.Equal(t, "/two", d.Diag.Route)

	if diff := cmp.Diff(before, b.Snapshot()); diff != "" {
		t.Fatalf("rejected page mutated manifest (-before +after):\n%s", diff)
	}
	require.Equal(t, []string{"/one"}, b.Routes())
}

func TestBuilderSameOriginAcrossPages(t *testing.T) {
	b := NewBuilder()
	shared := single(1, "lib/a.ts", actions.Action{ID: "a1", Name: "act"})
	require.NoError(t, b.Commit(Page{Route: "/x", Chunk: "cx", Actions: shared}))
	require.NoError(t, b.Commit(Page{Route: "/y", Chunk: "cy", Runtime: actions.RuntimeEdge, Actions: shared}))
	require.NoError(t, b.Commit(Page{Route: "/empty", Actions: actions.EmptyModuleActionMap()}))

	snap := b.Snapshot()
	require.Len(t, snap.Standard["a1"].Workers, 1)
	require.Len(t, snap.Edge["a1"].Workers, 1)
	require.Equal(t, []string{"/x", "/y"}, b.Routes())
}

func TestBuilderConcurrentCommits(t *testing.T) {
	b := NewBuilder()
	shared := single(1, "lib/a.ts", actions.Action{ID: "a1", Name: "act"})
	routes := []string{"/a", "/b", "/c", "/d", "/e", "/f", "/g", "/h"}

	var wg sync.WaitGroup
	for _, r := range routes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Commit(Page{Route: r, Chunk: bundle.ChunkID("c" + r), Actions: shared}); err != nil {
				t.Errorf("Commit(%s): %v", r, err)
			}
		}()
	}
	wg.Wait()
	require.Len(t, b.Snapshot().Standard["a1"].Workers, len(routes))
}

func TestWriteAndWriteRoute(t *testing.T) {
	out := t.TempDir()
	m := New()
	Assemble(m, single(1, "a.ts", actions.Action{ID: "a1", Name: "a"}), "cx", actions.RuntimeStandard, "/x")
	Assemble(m, single(2, "b.ts", actions.Action{ID: "b1", Name: "b"}), "cy", actions.RuntimeEdge, "/y")

	p, err := Write(out, m)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(out, "server", FileName), p)
	back, err := Read(p)
	require.NoError(t, err)
	require.Equal(t, 2, back.Len())

	rp, err := WriteRoute(out, "/y", m)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(out, "server", "app", "y", FileName), rp)
	routeDoc, err := Read(rp)
	require.NoError(t, err)
	require.Empty(t, routeDoc.Standard)
	require.Equal(t, bundle.ChunkID("cy"), routeDoc.Edge["b1"].Workers["/y"])
}

func TestWriteFailure(t *testing.T) {
	out := t.TempDir()
	blocker := filepath.Join(out, "server")
	require.NoError(t, os.WriteFile(blocker, []byte("file, not dir"), 0o644))
	_, err := Write(out, New())
	require.True(t, diag.HasCode(err, diag.ManifestWrite), "err = %v", err)
}
