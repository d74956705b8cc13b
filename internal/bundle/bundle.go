// Package bundle turns a synthesized loader into a deployable chunk.
package bundle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	"rivet/internal/diag"
	"rivet/internal/loader"
	"rivet/internal/modgraph"
	"rivet/internal/outfs"
)

// ChunkID names a compiled loader chunk. Stable for identical content.
type ChunkID string

// Bundler compiles a loader for route and returns its chunk id.
type Bundler interface {
	Bundle(ctx context.Context, route string, l *loader.Loader) (ChunkID, error)
}

// Modules is what the dev bundler needs to locate slot modules.
type Modules interface {
	Meta(id modgraph.ModuleID) (modgraph.Meta, bool)
}

// Chunk is one emitted loader chunk.
type Chunk struct {
	ID     ChunkID
	Routes []string
	Path   string // relative to the output dir
	Source string
}

// ChunkDir is the output directory of loader chunks.
const ChunkDir = "server/chunks"

var reSlotRef = regexp.MustCompile(`import\("(` + regexp.QuoteMeta(loader.SlotPrefix) + `[0-9]+)"\)`)

// DevBundler resolves slot labels to relative imports of the source modules
// and writes the result as a chunk. With an empty OutDir chunks stay in
// memory and imports are computed as if OutDir were the working directory.
type DevBundler struct {
	Modules Modules
	// Root is the source root module paths are relative to.
	Root   string
	OutDir string

	mu     sync.Mutex
	chunks map[ChunkID]*Chunk
}

func NewDevBundler(modules Modules, root, outDir string) *DevBundler {
	return &DevBundler{Modules: modules, Root: root, OutDir: outDir}
}

// Bundle implements Bundler.
func (b *DevBundler) Bundle(ctx context.Context, route string, l *loader.Loader) (ChunkID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	resolved, err := b.Resolve(route, l)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(resolved))
	id := ChunkID(hex.EncodeToString(sum[:])[:16])
	rel := path.Join(ChunkDir, string(id)+".js")

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.chunks == nil {
		b.chunks = make(map[ChunkID]*Chunk)
	}
	if c, ok := b.chunks[id]; ok {
		if !slices.Contains(c.Routes, route) {
			c.Routes = append(c.Routes, route)
		}
		return id, nil
	}
	if b.OutDir != "" {
		if err := outfs.WriteFile(filepath.Join(b.OutDir, filepath.FromSlash(rel)), []byte(resolved), 0o644); err != nil {
			return "", diag.Wrap(diag.ResolveWrite, "", err, "failed to write loader chunk %s", id).WithRoute(route)
		}
	}
	b.chunks[id] = &Chunk{ID: id, Routes: []string{route}, Path: rel, Source: resolved}
	return id, nil
}

// Resolve rewrites every slot reference in l to the owning module's path,
// relative to the chunk directory.
func (b *DevBundler) Resolve(route string, l *loader.Loader) (string, error) {
	if l == nil || l.Source == "" {
		return "", diag.Errorf(diag.ResolveCorrupt, "", "loader has no source").WithRoute(route)
	}
	specs := make(map[string]string, len(l.Imports))
	used := make(map[string]bool, len(l.Imports))
	for _, imp := range l.Imports {
		spec, err := b.specifier(imp)
		if err != nil {
			return "", err.WithRoute(route)
		}
		specs[imp.Slot] = spec
	}

	var unknown string
	out := reSlotRef.ReplaceAllStringFunc(l.Source, func(ref string) string {
		slot := reSlotRef.FindStringSubmatch(ref)[1]
		spec, ok := specs[slot]
		if !ok {
			if unknown == "" {
				unknown = slot
			}
			return ref
		}
		used[slot] = true
		return "import(" + loader.Quote(spec) + ")"
	})
	if unknown != "" {
		return "", diag.Errorf(diag.ResolveSlot, "", "loader references unknown import slot %s", unknown).WithRoute(route)
	}
	for _, imp := range l.Imports {
		if !used[imp.Slot] {
			return "", diag.Errorf(diag.ResolveUnused, imp.Ident, "import slot %s has no dispatch entries", imp.Slot).WithRoute(route)
		}
	}
	if reSlotRef.MatchString(out) {
		return "", diag.Errorf(diag.ResolveCorrupt, "", "unresolved slot label left in loader").WithRoute(route)
	}
	return out, nil
}

func (b *DevBundler) specifier(imp loader.Import) (string, *diag.Error) {
	meta, ok := b.Modules.Meta(imp.Module)
	if !ok {
		return "", diag.Errorf(diag.ResolveModule, imp.Ident, "module for slot %s is not part of the graph", imp.Slot)
	}
	if meta.Kind != modgraph.KindSource {
		return "", diag.Errorf(diag.ResolveModule, meta.Path, "slot %s points at a non-script module (%s)", imp.Slot, meta.Kind)
	}
	target := meta.AbsPath
	if target == "" {
		target = filepath.Join(b.Root, filepath.FromSlash(meta.Path))
	}
	// Rel не умеет смешивать абсолютные и относительные пути
	target, err := filepath.Abs(target)
	if err != nil {
		return "", diag.Errorf(diag.ResolveModule, meta.Path, "slot %s: %v", imp.Slot, err)
	}
	from, err := filepath.Abs(filepath.Join(b.OutDir, filepath.FromSlash(ChunkDir)))
	if err != nil {
		return "", diag.Errorf(diag.ResolveModule, meta.Path, "slot %s: %v", imp.Slot, err)
	}
	rel, err := filepath.Rel(from, target)
	if err != nil {
		return "", diag.Errorf(diag.ResolveModule, meta.Path, "slot %s: %v", imp.Slot, err)
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, "../") {
		rel = "./" + rel
	}
	return rel, nil
}

// Chunks returns emitted chunks ordered by id.
func (b *DevBundler) Chunks() []Chunk {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Chunk, 0, len(b.chunks))
	for _, c := range b.chunks {
		cp := *c
		cp.Routes = slices.Clone(c.Routes)
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b Chunk) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out
}
