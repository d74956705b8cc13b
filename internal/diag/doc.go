// Package diag defines the diagnostic model shared by every stage of an
// action build.
//
// # Purpose
//
//   - Provide deterministic data structures that capture findings produced by
//     graph loading, marker extraction, loader synthesis, bundling and
//     manifest assembly.
//   - Offer light-weight utilities (Reporter, Bag) that let producers emit
//     diagnostics without coupling to concrete storage or rendering.
//   - Carry fatal conditions as Go errors (Error) that still expose the
//     structured diagnostic through errors.As.
//
// # Data model
//
// Diagnostic is the central record. It contains:
//
//   - Severity: tri-level enum (Info, Warning, Error) defined in severity.go.
//   - Code: compact numeric identifier (see codes.go) with stable string form.
//   - Message: human oriented text; keep it short and actionable.
//   - Module, ActionID, Route: the context needed to diagnose a broken
//     action dispatch. Empty fields are omitted when rendering.
//   - Notes: optional secondary messages, each tied to a module.
//
// # Error policy
//
// Every Error-severity condition aborts the page that produced it. Nothing
// in this package downgrades an error to a warning: a missing action breaks
// request dispatch at runtime, so callers must surface it.
package diag
