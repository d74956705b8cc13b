package modgraph

import (
	"crypto/sha256"
	"path"
	"strings"
)

// Digest - фиксированный 256 битный хеш содержимого модуля.
type Digest [32]byte

// Hash returns the SHA-256 digest of content.
func Hash(content []byte) Digest {
	return sha256.Sum256(content)
}

// Combine строит хеш: H( content || dep1 || dep2 ... ).
// Порядок deps должен быть детерминированным.
func Combine(content Digest, deps ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range deps {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

type Kind uint8

const (
	KindUnknown Kind = iota
	// KindSource is compiled script source; only these can carry actions.
	KindSource
	// KindExternal is a bare package specifier resolved outside the project.
	KindExternal
	// KindAsset is anything else reachable from the graph (css, json, ...).
	KindAsset
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindExternal:
		return "external"
	case KindAsset:
		return "asset"
	default:
		return "unknown"
	}
}

// Meta describes one module as handed over by the compilation pipeline.
type Meta struct {
	Path        string   // stable identity, e.g. "app/dashboard/page.tsx"
	Kind        Kind     // zero value is inferred from Path
	AbsPath     string   // on-disk location; empty for in-memory modules
	Content     []byte   // optional; read from AbsPath when nil
	Imports     []string // referenced module paths in reference order
	ContentHash Digest
}

var sourceExts = map[string]bool{
	".js":  true,
	".mjs": true,
	".cjs": true,
	".jsx": true,
	".ts":  true,
	".mts": true,
	".cts": true,
	".tsx": true,
}

// IsSourcePath reports whether p names a script module by extension.
func IsSourcePath(p string) bool {
	return sourceExts[strings.ToLower(path.Ext(p))]
}

// InferKind derives a kind from a module path.
func InferKind(p string) Kind {
	switch {
	case strings.HasPrefix(p, externalPrefix):
		return KindExternal
	case IsSourcePath(p):
		return KindSource
	case p == "":
		return KindUnknown
	default:
		return KindAsset
	}
}
