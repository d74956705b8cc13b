package modgraph

import (
	"fmt"
	"sort"

	"fortio.org/safecast"
)

type ModuleID uint32

type Index struct {
	NameToID map[string]ModuleID
	IDToName []string
}

// BuildIndex collects unique module paths (declared and imported), sorts
// them and assigns dense ids in that order.
func BuildIndex(metas []Meta) Index {
	uniq := make(map[string]struct{}, len(metas))
	for _, meta := range metas {
		if meta.Path != "" {
			uniq[meta.Path] = struct{}{}
		}
		for _, dep := range meta.Imports {
			if dep == "" {
				continue
			}
			uniq[dep] = struct{}{}
		}
	}

	paths := make([]string, 0, len(uniq))
	for path := range uniq {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	nameToID := make(map[string]ModuleID, len(paths))
	for i, path := range paths {
		id, err := safecast.Conv[ModuleID](i)
		if err != nil {
			panic(fmt.Errorf("module id overflow: %w", err))
		}
		nameToID[path] = id
	}

	return Index{
		NameToID: nameToID,
		IDToName: paths,
	}
}

// Lookup returns the id for path.
func (idx Index) Lookup(path string) (ModuleID, bool) {
	id, ok := idx.NameToID[path]
	return id, ok
}

// Name returns the path for id, or "" when out of range.
func (idx Index) Name(id ModuleID) string {
	if int(id) >= len(idx.IDToName) {
		return ""
	}
	return idx.IDToName[int(id)]
}
