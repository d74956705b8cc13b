package modgraph

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"rivet/internal/diag"
)

const externalPrefix = "npm:"

// LoadOptions configures LoadDir.
type LoadOptions struct {
	Jobs     int
	Ignore   []string // directory names skipped while walking
	Reporter diag.Reporter
}

var defaultIgnore = []string{"node_modules", ".git", ".rivet", "dist"}

// Order of probing for extensionless specifiers.
var resolveExts = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".mts", ".cts"}

var (
	reImportFrom    = regexp.MustCompile(`(?m)^\s*import\s+([^;]*?)\s+from\s*['"]([^'"]+)['"]`)
	reImportOnly    = regexp.MustCompile(`(?m)^\s*import\s*['"]([^'"]+)['"]`)
	reRequireCall   = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	reExportFrom    = regexp.MustCompile(`(?m)^\s*export\s*(?:type\s+)?(?:\*(?:\s+as\s+[A-Za-z_$][\w$]*)?|\{[^}]*\})\s*from\s*['"]([^'"]+)['"]`)
	reDynamicImport = regexp.MustCompile(`import\(\s*['"]([^'"]+)['"]\s*\)`)
)

type fileScan struct {
	rel     string
	abs     string
	content []byte
	specs   []string
}

// LoadDir walks root and builds a module graph from every file below it.
// Script sources are scanned for static, dynamic and CommonJS references;
// relative specifiers are resolved against the importer, bare specifiers
// become external modules. Unresolvable relative references are reported
// and fail the load.
func LoadDir(ctx context.Context, root string, opts LoadOptions) (*Graph, error) {
	ignore := opts.Ignore
	if len(ignore) == 0 {
		ignore = defaultIgnore
	}
	files, err := listFiles(root, ignore)
	if err != nil {
		return nil, err
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// индексы уникальны для каждой горутины, мьютекс не нужен
	results := make([]fileScan, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(files))))
	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			abs := filepath.Join(root, filepath.FromSlash(rel))
			res := fileScan{rel: rel, abs: abs}
			if IsSourcePath(rel) {
				data, err := os.ReadFile(abs)
				if err != nil {
					return diag.Wrap(diag.ExtRead, rel, err, "failed to read module")
				}
				res.content = data
				res.specs = ScanSpecifiers(data)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(files))
	for _, rel := range files {
		known[rel] = true
	}

	bag := diag.NewBag(256)
	reporter := diag.FuncReporter(func(d diag.Diagnostic) {
		bag.Add(d)
		if opts.Reporter != nil {
			opts.Reporter.Report(d)
		}
	})

	metas := make([]Meta, 0, len(results))
	externals := make(map[string]struct{})
	for _, res := range results {
		meta := Meta{
			Path:    res.rel,
			Kind:    InferKind(res.rel),
			AbsPath: res.abs,
			Content: res.content,
		}
		if res.content != nil {
			meta.ContentHash = Hash(res.content)
		}
		for _, spec := range res.specs {
			target, ok := ResolveSpecifier(res.rel, spec, known)
			if !ok {
				reporter.Report(diag.NewError(diag.GraphMissingModule, res.rel,
					fmt.Sprintf("cannot resolve %q from %q", spec, res.rel)))
				continue
			}
			if strings.HasPrefix(target, externalPrefix) {
				externals[target] = struct{}{}
			}
			meta.Imports = append(meta.Imports, target)
		}
		metas = append(metas, meta)
	}
	for ext := range externals {
		metas = append(metas, Meta{Path: ext, Kind: KindExternal})
	}
	sort.SliceStable(metas, func(i, j int) bool { return metas[i].Path < metas[j].Path })

	graph := FromMetas(metas, reporter)
	if bag.HasErrors() {
		var errs []error
		for _, d := range bag.Items() {
			if d.Severity >= diag.SevError {
				errs = append(errs, &diag.Error{Diag: d})
			}
		}
		return graph, errors.Join(errs...)
	}
	return graph, nil
}

// listFiles returns slash-separated paths relative to root, sorted.
func listFiles(root string, ignore []string) ([]string, error) {
	skip := make(map[string]bool, len(ignore))
	for _, name := range ignore {
		skip[name] = true
	}
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && skip[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

type specMatch struct {
	offset int
	spec   string
}

// ScanSpecifiers returns the module specifiers referenced by a script in
// source order, deduplicated. Type-only imports are skipped since they are
// erased from compiled output.
func ScanSpecifiers(data []byte) []string {
	var found []specMatch

	for _, m := range reImportFrom.FindAllSubmatchIndex(data, -1) {
		clause := strings.TrimSpace(string(data[m[2]:m[3]]))
		if strings.HasPrefix(clause, "type ") || strings.HasPrefix(clause, "type{") {
			continue
		}
		found = append(found, specMatch{offset: m[4], spec: string(data[m[4]:m[5]])})
	}
	for _, re := range []*regexp.Regexp{reImportOnly, reRequireCall, reExportFrom, reDynamicImport} {
		for _, m := range re.FindAllSubmatchIndex(data, -1) {
			found = append(found, specMatch{offset: m[2], spec: string(data[m[2]:m[3]])})
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].offset < found[j].offset })
	seen := make(map[string]struct{}, len(found))
	out := make([]string, 0, len(found))
	for _, f := range found {
		if _, dup := seen[f.spec]; dup {
			continue
		}
		seen[f.spec] = struct{}{}
		out = append(out, f.spec)
	}
	return out
}

// ResolveSpecifier maps spec, as written in importer, to a module path.
//   - relative (./, ../) and root-absolute (/) specifiers are resolved against
//     known files, probing extensions and index files;
//   - bare specifiers become "npm:<package>".
func ResolveSpecifier(importer, spec string, known map[string]bool) (string, bool) {
	var base string
	switch {
	case spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../"):
		base = path.Join(path.Dir(importer), spec)
	case strings.HasPrefix(spec, "/"):
		base = path.Clean(strings.TrimPrefix(spec, "/"))
	case spec == "":
		return "", false
	default:
		return externalPrefix + packageName(spec), true
	}
	if base == ".." || strings.HasPrefix(base, "../") {
		return "", false
	}
	if known[base] {
		return base, true
	}
	for _, ext := range resolveExts {
		if known[base+ext] {
			return base + ext, true
		}
	}
	for _, ext := range resolveExts {
		candidate := path.Join(base, "index"+ext)
		if known[candidate] {
			return candidate, true
		}
	}
	return "", false
}

// packageName strips subpaths: "@scope/pkg/x" -> "@scope/pkg", "pkg/x" -> "pkg".
func packageName(spec string) string {
	parts := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") && len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}
