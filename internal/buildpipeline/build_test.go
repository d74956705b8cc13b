package buildpipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"rivet/internal/actions"
	"rivet/internal/bundle"
	"rivet/internal/diag"
	"rivet/internal/manifest"
	"rivet/internal/marker"
	"rivet/internal/modgraph"
	"rivet/internal/scan"
)

type fixture struct {
	graph *modgraph.Graph
	deps  Deps
	out   string
}

func newFixture(t *testing.T, metas []modgraph.Meta) *fixture {
	t.Helper()
	g := modgraph.FromMetas(metas, nil)
	out := t.TempDir()
	return &fixture{
		graph: g,
		out:   out,
		deps: Deps{
			Scanner: &scan.Scanner{
				Graph:     g,
				Extractor: marker.NewMemo(marker.NewCommentExtractor(g), g, nil),
			},
			Bundler:  bundle.NewDevBundler(g, filepath.Join(out, "src"), out),
			Manifest: manifest.NewBuilder(),
		},
	}
}

func (f *fixture) pages(t *testing.T, specs ...PageSpec) []PageRequest {
	t.Helper()
	pages, err := ResolvePages(f.graph, specs)
	require.NoError(t, err)
	return pages
}

func src(pairs ...actions.Action) []byte {
	return []byte(marker.Format(pairs) + "\nexport async function placeholder() {}\n")
}

func blogMetas() []modgraph.Meta {
	return []modgraph.Meta{
		{Path: "app/blog/page.tsx", Imports: []string{"app/blog/form.tsx", "npm:react"}, Content: []byte("page")},
		{Path: "app/blog/form.tsx", Imports: []string{"lib/posts.ts"}, Content: []byte("form")},
		{Path: "app/shop/page.tsx", Imports: []string{"lib/posts.ts", "app/shop/cart.ts"}, Content: []byte("shop")},
		{Path: "app/shop/cart.ts", Content: src(actions.Action{ID: "cart1", Name: "addToCart"})},
		{Path: "app/about/page.tsx", Imports: []string{"npm:react"}, Content: []byte("about")},
		{Path: "lib/posts.ts", Imports: []string{"app/blog/form.tsx"}, Content: src(actions.Action{ID: "post1", Name: "createPost"})},
		{Path: "npm:react"},
	}
}

func TestBuildSharedActionsAcrossPages(t *testing.T) {
	f := newFixture(t, blogMetas())
	rec := &Recorder{}
	req := &BuildRequest{
		Pages: f.pages(t,
			PageSpec{Route: "/blog", Entry: "app/blog/page.tsx"},
			PageSpec{Route: "/shop", Entry: "app/shop/page.tsx", Runtime: actions.RuntimeEdge},
			PageSpec{Route: "/about", Entry: "app/about/page.tsx"},
		),
		Deps:           f.deps,
		Jobs:           2,
		OutDir:         f.out,
		RouteManifests: true,
		Progress:       rec,
	}

	res, err := Build(context.Background(), req)
	require.NoError(t, err)
	require.Zero(t, res.Failed)

	blog, shop, about := res.Pages[0], res.Pages[1], res.Pages[2]
	require.False(t, blog.Skipped)
	require.NotEmpty(t, blog.Chunk)
	require.True(t, about.Skipped)
	require.Nil(t, about.Loader)
	require.Empty(t, about.Chunk)

	m := res.Manifest
	require.Equal(t, blog.Chunk, m.Standard["post1"].Workers["/blog"])
	require.Equal(t, shop.Chunk, m.Edge["post1"].Workers["/shop"])
	require.Equal(t, shop.Chunk, m.Edge["cart1"].Workers["/shop"])
	require.NotContains(t, m.Standard, actions.ActionID("cart1"))

	onDisk, err := manifest.Read(res.ManifestPath)
	require.NoError(t, err)
	require.Equal(t, m, onDisk)
	require.Len(t, res.RoutePaths, 3)

	aboutDoc, err := manifest.Read(filepath.Join(f.out, filepath.FromSlash(manifest.RoutePath("/about"))))
	require.NoError(t, err)
	require.Zero(t, aboutDoc.Len())

	var statuses []Status
	for _, evt := range rec.ForRoute("/about") {
		statuses = append(statuses, evt.Status)
	}
	require.Equal(t, []Status{StatusQueued, StatusWorking, StatusSkipped}, statuses)
}

func TestBuildFailedPageKeepsOthers(t *testing.T) {
	metas := append(blogMetas(), modgraph.Meta{
		Path:    "app/broken/page.tsx",
		Content: []byte(`/* __rivet_action_entry__ {"x": 1} */`),
	})
	f := newFixture(t, metas)
	req := &BuildRequest{
		Pages: f.pages(t,
			PageSpec{Route: "/blog", Entry: "app/blog/page.tsx"},
			PageSpec{Route: "/broken", Entry: "app/broken/page.tsx"},
		),
		Deps:   f.deps,
		OutDir: f.out,
	}

	res, err := Build(context.Background(), req)
	require.Error(t, err)
	require.True(t, diag.HasCode(err, diag.BuildPageFailed))
	require.True(t, diag.HasCode(err, diag.ExtParse))
	require.Equal(t, 1, res.Failed)

	var routes []string
	for _, d := range diag.Collect(err) {
		if d.Code == diag.BuildPageFailed {
			routes = append(routes, d.Route)
		}
	}
	require.Equal(t, []string{"/broken"}, routes)

	// успешная страница осталась в манифесте, но документ не опубликован
	require.Contains(t, res.Manifest.Standard, actions.ActionID("post1"))
	require.Empty(t, res.ManifestPath)
	_, statErr := os.Stat(filepath.Join(f.out, filepath.FromSlash(manifest.Path())))
	require.True(t, os.IsNotExist(statErr))

	req.AllowPartial = true
	req.Deps.Manifest = manifest.NewBuilder()
	res, err = Build(context.Background(), req)
	require.Error(t, err)
	require.NotEmpty(t, res.ManifestPath)
	onDisk, readErr := manifest.Read(res.ManifestPath)
	require.NoError(t, readErr)
	require.Equal(t, 1, onDisk.Len())
}

func TestBuildConflictRejectsLaterPage(t *testing.T) {
	f := newFixture(t, []modgraph.Meta{
		{Path: "a/page.ts", Imports: []string{"a/actions.ts"}, Content: []byte("a")},
		{Path: "a/actions.ts", Content: src(actions.Action{ID: "same", Name: "run"})},
		{Path: "b/page.ts", Imports: []string{"b/actions.ts"}, Content: []byte("b")},
		{Path: "b/actions.ts", Content: src(actions.Action{ID: "same", Name: "run"})},
	})
	req := &BuildRequest{
		Pages: f.pages(t,
			PageSpec{Route: "/a", Entry: "a/page.ts"},
			PageSpec{Route: "/b", Entry: "b/page.ts"},
		),
		Deps: f.deps,
		Jobs: 1,
	}
	res, err := Build(context.Background(), req)
	require.True(t, diag.HasCode(err, diag.ManifestConflict), "err = %v", err)
	require.NoError(t, res.Pages[0].Err)
	require.Error(t, res.Pages[1].Err)
	require.Equal(t, map[string]bundle.ChunkID{"/a": res.Pages[0].Chunk}, res.Manifest.Standard["same"].Workers)
}

func TestBuildDisabledWritesEmptyManifest(t *testing.T) {
	f := newFixture(t, blogMetas())
	res, err := Build(context.Background(), &BuildRequest{
		Pages:    f.pages(t, PageSpec{Route: "/blog", Entry: "app/blog/page.tsx"}),
		Deps:     f.deps,
		OutDir:   f.out,
		Disabled: true,
	})
	require.NoError(t, err)
	require.True(t, res.Pages[0].Skipped)
	data, err := os.ReadFile(res.ManifestPath)
	require.NoError(t, err)
	require.JSONEq(t, `{"edge":{},"standard":{}}`, string(data))
}

func TestBuildCancelled(t *testing.T) {
	f := newFixture(t, blogMetas())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Build(ctx, &BuildRequest{
		Pages:  f.pages(t, PageSpec{Route: "/blog", Entry: "app/blog/page.tsx"}),
		Deps:   f.deps,
		OutDir: f.out,
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, res.ManifestPath)
}

func TestResolvePagesReportsAll(t *testing.T) {
	g := modgraph.FromMetas(blogMetas(), nil)
	_, err := ResolvePages(g, []PageSpec{
		{Route: "/blog", Entry: "app/blog/page.tsx"},
		{Route: "/blog", Entry: "app/shop/page.tsx"},
		{Route: "shop", Entry: "app/shop/page.tsx"},
		{Route: "/ghost", Entry: "app/ghost.tsx"},
		{Route: "/react", Entry: "npm:react"},
	})
	require.Error(t, err)
	var codes []diag.Code
	for _, d := range diag.Collect(err) {
		codes = append(codes, d.Code)
	}
	require.Equal(t, []diag.Code{diag.BuildConfig, diag.BuildConfig, diag.GraphUnknownEntry, diag.GraphUnknownEntry}, codes)
}
