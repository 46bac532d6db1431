package lspressoshot

import (
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// go.lsp.dev/protocol stops at LSP 3.16. Inlay hints and type
// hierarchy arrived in 3.17, so their wire shapes are declared here
// with the same field conventions the protocol package uses.

// InlayHintKind distinguishes type annotations from parameter names.
type InlayHintKind int

const (
	InlayHintKindType      InlayHintKind = 1
	InlayHintKindParameter InlayHintKind = 2
)

// InlayHint is an inline annotation the server renders into the
// document, anchored at Position.
type InlayHint struct {
	Position     protocol.Position   `json:"position"`
	Label        string              `json:"label"`
	Kind         InlayHintKind       `json:"kind,omitempty"`
	Tooltip      string              `json:"tooltip,omitempty"`
	PaddingLeft  bool                `json:"paddingLeft,omitempty"`
	PaddingRight bool                `json:"paddingRight,omitempty"`
	TextEdits    []protocol.TextEdit `json:"textEdits,omitempty"`
}

// InlayHintParams requests hints for a document range.
type InlayHintParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Range        protocol.Range                  `json:"range"`
}

// TypeHierarchyItem is one node of a type hierarchy.
type TypeHierarchyItem struct {
	Name           string              `json:"name"`
	Kind           protocol.SymbolKind `json:"kind"`
	Detail         string              `json:"detail,omitempty"`
	URI            uri.URI             `json:"uri"`
	Range          protocol.Range      `json:"range"`
	SelectionRange protocol.Range      `json:"selectionRange"`
}

// TestInlayHint issues textDocument/inlayHint over rng.
func TestInlayHint(tc *TestCase, rng protocol.Range, expected []InlayHint) error {
	return runKind(tc, KindInlayHint, runConfig{
		params: func(docURI uri.URI) interface{} {
			return InlayHintParams{
				TextDocument: docParams(docURI),
				Range:        rng,
			}
		},
	}, slicePtr(expected))
}

// TestPrepareTypeHierarchy issues textDocument/prepareTypeHierarchy at
// the cursor.
func TestPrepareTypeHierarchy(tc *TestCase, expected []TypeHierarchyItem) error {
	return runKind(tc, KindPrepareTypeHierarchy, runConfig{
		params: func(docURI uri.URI) interface{} {
			return tc.posParams(docURI)
		},
	}, slicePtr(expected))
}
