// Package normalize rewrites captured response payloads into a
// canonical form so comparisons are stable across machines and server
// quirks: workspace-absolute file URIs become relative paths, and
// equivalent tagged-union shapes collapse to one representation.
package normalize

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"go.lsp.dev/uri"
)

// Shape selects the top-level union canonicalization for a payload.
type Shape int

const (
	// ShapeNone leaves the top level alone.
	ShapeNone Shape = iota
	// ShapeLocationList lifts a single location object into a
	// one-element array, so `Location` and `[]Location` compare equal.
	ShapeLocationList
	// ShapeCompletionList wraps a bare completion-item array into the
	// list form with isIncomplete=false.
	ShapeCompletionList
)

// Options configures one normalization pass.
type Options struct {
	// SourceRoot is the workspace source directory; file URIs beneath
	// it are rewritten to slash-separated relative paths.
	SourceRoot string
	Shape      Shape
}

// Normalize canonicalizes a JSON payload. It is idempotent: applying
// it to its own output yields identical bytes.
func Normalize(raw json.RawMessage, opts Options) (json.RawMessage, error) {
	var tree interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	tree = canonicalShape(tree, opts.Shape)
	tree = rewriteURIs(tree, opts.SourceRoot)
	out, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("render payload: %w", err)
	}
	return out, nil
}

func canonicalShape(tree interface{}, shape Shape) interface{} {
	switch shape {
	case ShapeLocationList:
		if obj, ok := tree.(map[string]interface{}); ok {
			if _, hasURI := obj["uri"]; hasURI {
				return []interface{}{obj}
			}
		}
	case ShapeCompletionList:
		if arr, ok := tree.([]interface{}); ok {
			return map[string]interface{}{
				"isIncomplete": false,
				"items":        arr,
			}
		}
	}
	return tree
}

// rewriteURIs walks the tree rewriting workspace file URIs wherever
// they appear, including map keys (WorkspaceEdit.changes is keyed by
// URI).
func rewriteURIs(tree interface{}, sourceRoot string) interface{} {
	if sourceRoot == "" {
		return tree
	}
	switch v := tree.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[relativizeURI(k, sourceRoot)] = rewriteURIs(val, sourceRoot)
		}
		return out
	case []interface{}:
		for i, val := range v {
			v[i] = rewriteURIs(val, sourceRoot)
		}
		return v
	case string:
		return relativizeURI(v, sourceRoot)
	default:
		return v
	}
}

// relativizeURI maps file URIs under root to slash-relative paths.
// Anything else passes through unchanged.
func relativizeURI(s, root string) string {
	if !strings.HasPrefix(s, "file://") {
		return s
	}
	path := uri.URI(s).Filename()
	prefix := root + string(filepath.Separator)
	if path == root {
		return "."
	}
	if !strings.HasPrefix(path, prefix) {
		return s
	}
	return filepath.ToSlash(strings.TrimPrefix(path, prefix))
}

// Keys whose string values get the one-time escape collapse. These are
// the human-readable surfaces servers double-escape when they embed
// pre-rendered markdown.
var collapseKeys = map[string]bool{
	"value":         true, // MarkupContent.value
	"contents":      true, // hover string form
	"documentation": true, // completion/signature docs, string form
	"message":       true, // Diagnostic.message
}

// CollapseEscapes rewrites doubled backslashes to single ones inside
// documentation-bearing string fields. It is applied exactly once, at
// capture time; it is deliberately not part of Normalize because it is
// not idempotent.
func CollapseEscapes(raw json.RawMessage) (json.RawMessage, error) {
	var tree interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	tree = collapseTree(tree, false)
	out, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("render payload: %w", err)
	}
	return out, nil
}

func collapseTree(tree interface{}, inTarget bool) interface{} {
	switch v := tree.(type) {
	case map[string]interface{}:
		for k, val := range v {
			v[k] = collapseTree(val, collapseKeys[k])
		}
		return v
	case []interface{}:
		for i, val := range v {
			v[i] = collapseTree(val, inTarget)
		}
		return v
	case string:
		if inTarget {
			return strings.ReplaceAll(v, `\\`, `\`)
		}
		return v
	default:
		return v
	}
}
