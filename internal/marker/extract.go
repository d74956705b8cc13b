// Package marker extracts server action markers from compiled modules.
//
// A transformed module announces its exported actions with one magic block
// comment holding a JSON object of action id -> export name:
//
//	/* __rivet_action_entry__ {"7f3a9c":"createPost","c01d2e":"deletePost"} */
//
// Key order in the object is significant and preserved.
package marker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"

	"rivet/internal/actions"
	"rivet/internal/diag"
	"rivet/internal/modgraph"
)

// Tag is the marker keyword that opens an action entry comment.
const Tag = "__rivet_action_entry__"

var (
	reMarker   = regexp.MustCompile(`(?s)/\*\s*` + regexp.QuoteMeta(Tag) + `\s*(.*?)\s*\*/`)
	reOpener   = regexp.MustCompile(`/\*\s*` + regexp.QuoteMeta(Tag))
	reExportID = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
)

// Extractor returns the actions exported by one module, or nil when the
// module carries none. It must be deterministic for a given module.
type Extractor interface {
	Extract(ctx context.Context, id actions.ModuleID) (*actions.ActionMap, error)
}

// Modules is the slice of the compilation pipeline the extractor reads.
type Modules interface {
	Ident(id modgraph.ModuleID) string
	Meta(id modgraph.ModuleID) (modgraph.Meta, bool)
	Source(ctx context.Context, id modgraph.ModuleID) ([]byte, error)
	Fingerprint(id modgraph.ModuleID) modgraph.Digest
}

// CommentExtractor finds action markers in script sources.
type CommentExtractor struct {
	Modules Modules
}

func NewCommentExtractor(modules Modules) *CommentExtractor {
	return &CommentExtractor{Modules: modules}
}

// Extract parses the module's markers. Non-script modules have no actions.
func (e *CommentExtractor) Extract(ctx context.Context, id actions.ModuleID) (*actions.ActionMap, error) {
	meta, ok := e.Modules.Meta(id)
	if !ok {
		return nil, diag.Errorf(diag.ExtRead, e.Modules.Ident(id), "module is not part of the graph")
	}
	if meta.Kind != modgraph.KindSource {
		return nil, nil
	}
	src, err := e.Modules.Source(ctx, id)
	if err != nil {
		if _, isDiag := diag.As(err); isDiag || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, diag.Wrap(diag.ExtRead, meta.Path, err, "failed to read module")
	}
	return Parse(meta.Path, src)
}

// Parse extracts the action map from module text. Multiple markers are merged
// in source order. Returns nil when no marker is present.
func Parse(module string, src []byte) (*actions.ActionMap, error) {
	if !bytes.Contains(src, []byte(Tag)) {
		return nil, nil
	}
	matches := reMarker.FindAllSubmatch(src, -1)
	if len(matches) == 0 {
		// тег в строке или line comment маркером не считается
		if loc := reOpener.FindIndex(src); loc != nil && !bytes.Contains(src[loc[1]:], []byte("*/")) {
			return nil, diag.Errorf(diag.ExtParse, module, "unterminated %s comment", Tag)
		}
		return nil, nil
	}
	out := actions.NewActionMap()
	for _, m := range matches {
		if err := decodePayload(module, m[1], out); err != nil {
			return nil, err
		}
	}
	if out.Len() == 0 {
		return nil, nil
	}
	return out, nil
}

// decodePayload reads a JSON object token by token so key order survives.
func decodePayload(module string, payload []byte, out *actions.ActionMap) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	tok, err := dec.Token()
	if err != nil {
		return diag.Wrap(diag.ExtParse, module, err, "malformed action marker payload")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return diag.Errorf(diag.ExtParse, module, "action marker payload must be a JSON object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return diag.Wrap(diag.ExtParse, module, err, "malformed action marker payload")
		}
		key, _ := keyTok.(string)
		valTok, err := dec.Token()
		if err != nil {
			return diag.Wrap(diag.ExtParse, module, err, "malformed action marker payload")
		}
		name, ok := valTok.(string)
		if !ok {
			return diag.Errorf(diag.ExtParse, module, "action %q: export name must be a string, got %v", key, valTok).WithAction(key)
		}
		if key == "" {
			return diag.Errorf(diag.ExtParse, module, "empty action id")
		}
		if !reExportID.MatchString(name) {
			return diag.Errorf(diag.ExtBadName, module, "action %q: invalid export name %q", key, name).WithAction(key)
		}
		if !out.Add(actions.ActionID(key), name) {
			return diag.Errorf(diag.ExtDupID, module, "action id %q declared more than once", key).WithAction(key)
		}
	}
	if _, err := dec.Token(); err != nil {
		return diag.Wrap(diag.ExtParse, module, err, "malformed action marker payload")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return diag.Errorf(diag.ExtParse, module, "trailing data after action marker payload")
	}
	return nil
}

// Format renders a marker comment for the given actions, the inverse of Parse.
func Format(pairs []actions.Action) string {
	var b bytes.Buffer
	b.WriteString("/* ")
	b.WriteString(Tag)
	b.WriteString(" {")
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		id, _ := json.Marshal(string(p.ID))
		name, _ := json.Marshal(p.Name)
		fmt.Fprintf(&b, "%s:%s", id, name)
	}
	b.WriteString("} */")
	return b.String()
}
