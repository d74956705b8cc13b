package buildpipeline

import (
	"errors"
	"strings"

	"rivet/internal/actions"
	"rivet/internal/diag"
	"rivet/internal/modgraph"
)

// PageSpec is a configured page whose entry is still a path.
type PageSpec struct {
	Route   string
	Entry   string
	Runtime actions.Runtime
}

// EntryResolver maps entry paths to graph modules.
type EntryResolver interface {
	Lookup(path string) (modgraph.ModuleID, bool)
	Meta(id modgraph.ModuleID) (modgraph.Meta, bool)
}

// ResolvePages checks every page and binds its entry to a module. All
// problems are reported together.
func ResolvePages(g EntryResolver, specs []PageSpec) ([]PageRequest, error) {
	var errs []error
	seen := make(map[string]struct{}, len(specs))
	out := make([]PageRequest, 0, len(specs))
	for _, spec := range specs {
		if err := validateRoute(spec.Route); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[spec.Route]; dup {
			errs = append(errs, diag.Errorf(diag.BuildConfig, "", "route configured more than once").WithRoute(spec.Route))
			continue
		}
		seen[spec.Route] = struct{}{}

		id, ok := g.Lookup(spec.Entry)
		if !ok {
			errs = append(errs, diag.Errorf(diag.GraphUnknownEntry, spec.Entry, "entry module not found in source tree").WithRoute(spec.Route))
			continue
		}
		if meta, _ := g.Meta(id); meta.Kind != modgraph.KindSource {
			errs = append(errs, diag.Errorf(diag.GraphUnknownEntry, spec.Entry, "entry must be a script module, got %s", meta.Kind).WithRoute(spec.Route))
			continue
		}
		out = append(out, PageRequest{
			Route:      spec.Route,
			Entry:      id,
			EntryIdent: spec.Entry,
			Runtime:    spec.Runtime,
		})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func validateRoute(route string) error {
	switch {
	case route == "":
		return diag.Errorf(diag.BuildConfig, "", "page route is empty")
	case !strings.HasPrefix(route, "/"):
		return diag.Errorf(diag.BuildConfig, "", "route must start with '/'").WithRoute(route)
	case strings.Contains(route, "//") || strings.Contains(route, "/../") || strings.HasSuffix(route, "/.."):
		return diag.Errorf(diag.BuildConfig, "", "route is not a clean path").WithRoute(route)
	}
	return nil
}
