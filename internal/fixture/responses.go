package fixture

import (
	"encoding/json"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// Canned response variants, selected by the RESPONSE_NUM.txt
// side-channel. Variant 0 is always the empty answer so harness tests
// can exercise the empty-response path; higher variants return
// increasingly awkward payloads (alternate union shapes, doubled
// escapes) that the harness has to normalize.

func rangeAt(line, startChar, endChar uint32) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: startChar},
		End:   protocol.Position{Line: line, Character: endChar},
	}
}

func locations(docURI uri.URI, n int) interface{} {
	switch n {
	case 0:
		return []protocol.Location{}
	case 1:
		return []protocol.Location{
			{URI: docURI, Range: rangeAt(0, 0, 4)},
		}
	default:
		// Single-object form of the union, not wrapped in an array.
		return protocol.Location{URI: docURI, Range: rangeAt(1, 2, 6)}
	}
}

func hover(n int) interface{} {
	switch n {
	case 0:
		return nil
	case 1:
		return protocol.Hover{
			Contents: protocol.MarkupContent{
				Kind:  protocol.Markdown,
				Value: "Here is some *hover* text",
			},
			Range: &protocol.Range{
				Start: protocol.Position{Line: 0, Character: 0},
				End:   protocol.Position{Line: 0, Character: 4},
			},
		}
	default:
		return protocol.Hover{
			Contents: protocol.MarkupContent{
				Kind:  protocol.Markdown,
				Value: `escaped \\*literal\\* text`,
			},
		}
	}
}

func references(docURI uri.URI, n int) interface{} {
	switch n {
	case 0:
		return []protocol.Location{}
	case 1:
		return []protocol.Location{
			{URI: docURI, Range: rangeAt(0, 0, 4)},
			{URI: docURI, Range: rangeAt(3, 8, 12)},
		}
	default:
		return []protocol.Location{
			{URI: docURI, Range: rangeAt(5, 0, 1)},
		}
	}
}

func rename(docURI uri.URI, n int) interface{} {
	if n == 0 {
		return nil
	}
	return protocol.WorkspaceEdit{
		Changes: map[uri.URI][]protocol.TextEdit{
			docURI: {
				{Range: rangeAt(0, 0, 4), NewText: "renamed"},
			},
		},
	}
}

func documentHighlight(n int) interface{} {
	if n == 0 {
		return []protocol.DocumentHighlight{}
	}
	return []protocol.DocumentHighlight{
		{Range: rangeAt(0, 0, 4), Kind: protocol.DocumentHighlightKind(1)},
	}
}

func documentSymbol(docURI uri.URI, n int) interface{} {
	switch n {
	case 0:
		return []protocol.DocumentSymbol{}
	case 1:
		return []protocol.DocumentSymbol{
			{
				Name:           "main",
				Kind:           protocol.SymbolKindFunction,
				Range:          rangeAt(0, 0, 10),
				SelectionRange: rangeAt(0, 3, 7),
			},
		}
	default:
		// Flat SymbolInformation form of the union.
		return []protocol.SymbolInformation{
			{
				Name: "main",
				Kind: protocol.SymbolKindFunction,
				Location: protocol.Location{
					URI: docURI, Range: rangeAt(0, 0, 10),
				},
			},
		}
	}
}

func documentLink(docURI uri.URI, n int) interface{} {
	if n == 0 {
		return []protocol.DocumentLink{}
	}
	return []protocol.DocumentLink{
		{Range: rangeAt(0, 0, 10), Target: docURI},
	}
}

func foldingRange(n int) interface{} {
	if n == 0 {
		return []protocol.FoldingRange{}
	}
	return []protocol.FoldingRange{
		{StartLine: 0, EndLine: 3, Kind: protocol.FoldingRangeKind("region")},
	}
}

func formatting(n int) interface{} {
	switch n {
	case 0:
		return []protocol.TextEdit{}
	case 1:
		return []protocol.TextEdit{
			{Range: rangeAt(0, 0, 0), NewText: "  "},
		}
	default:
		return []protocol.TextEdit{
			{Range: rangeAt(0, 0, 4), NewText: "fmt"},
			{Range: rangeAt(1, 0, 0), NewText: "\n"},
		}
	}
}

func completion(n int) interface{} {
	items := []protocol.CompletionItem{
		{
			Label:  "main",
			Kind:   protocol.CompletionItemKindFunction,
			Detail: "fn main()",
		},
		{
			Label: "println",
			Kind:  protocol.CompletionItemKindFunction,
		},
	}
	switch n {
	case 0:
		return protocol.CompletionList{IsIncomplete: false, Items: []protocol.CompletionItem{}}
	case 1:
		return protocol.CompletionList{IsIncomplete: false, Items: items}
	default:
		// Bare array form of the union.
		return items
	}
}

func codeLens(docURI uri.URI, n int) interface{} {
	if n == 0 {
		return []protocol.CodeLens{}
	}
	return []protocol.CodeLens{
		{
			Range: rangeAt(0, 0, 10),
			Command: &protocol.Command{
				Title:   "Run test",
				Command: "fixture.runTest",
			},
		},
	}
}

func codeAction(n int) interface{} {
	if n == 0 {
		return []protocol.CodeAction{}
	}
	return []protocol.CodeAction{
		{
			Title: "Apply fix",
			Kind:  protocol.CodeActionKind("quickfix"),
		},
	}
}

func signatureHelp(n int) interface{} {
	if n == 0 {
		return nil
	}
	return protocol.SignatureHelp{
		Signatures: []protocol.SignatureInformation{
			{Label: "main()"},
		},
	}
}

func callHierarchyItem(docURI uri.URI) protocol.CallHierarchyItem {
	return protocol.CallHierarchyItem{
		Name:           "main",
		Kind:           protocol.SymbolKindFunction,
		URI:            docURI,
		Range:          rangeAt(0, 0, 10),
		SelectionRange: rangeAt(0, 3, 7),
	}
}

func prepareCallHierarchy(docURI uri.URI, n int) interface{} {
	if n == 0 {
		return []protocol.CallHierarchyItem{}
	}
	return []protocol.CallHierarchyItem{callHierarchyItem(docURI)}
}

func incomingCalls(docURI uri.URI, n int) interface{} {
	if n == 0 {
		return []protocol.CallHierarchyIncomingCall{}
	}
	return []protocol.CallHierarchyIncomingCall{
		{From: callHierarchyItem(docURI), FromRanges: []protocol.Range{rangeAt(2, 4, 8)}},
	}
}

func outgoingCalls(docURI uri.URI, n int) interface{} {
	if n == 0 {
		return []protocol.CallHierarchyOutgoingCall{}
	}
	return []protocol.CallHierarchyOutgoingCall{
		{To: callHierarchyItem(docURI), FromRanges: []protocol.Range{rangeAt(1, 0, 4)}},
	}
}

func workspaceSymbol(docURI uri.URI, n int) interface{} {
	if n == 0 {
		return []protocol.SymbolInformation{}
	}
	return []protocol.SymbolInformation{
		{
			Name: "main",
			Kind: protocol.SymbolKindFunction,
			Location: protocol.Location{
				URI: docURI, Range: rangeAt(0, 0, 10),
			},
		},
	}
}

func executeCommand(params json.RawMessage, n int) interface{} {
	if n == 0 {
		return nil
	}
	var p struct {
		Command string `json:"command"`
	}
	_ = json.Unmarshal(params, &p)
	return map[string]interface{}{
		"executed": p.Command,
	}
}

func selectionRange(n int) interface{} {
	if n == 0 {
		return []protocol.SelectionRange{}
	}
	return []protocol.SelectionRange{
		{
			Range: rangeAt(0, 3, 7),
			Parent: &protocol.SelectionRange{
				Range: rangeAt(0, 0, 10),
			},
		},
	}
}

func semanticTokensFull(n int) interface{} {
	if n == 0 {
		return nil
	}
	return protocol.SemanticTokens{
		ResultID: "fixture-tokens-1",
		Data:     []uint32{0, 0, 4, 0, 0, 1, 0, 7, 1, 0},
	}
}

func semanticTokensDelta(n int) interface{} {
	if n == 0 {
		return nil
	}
	return map[string]interface{}{
		"resultId": "fixture-tokens-2",
		"edits": []map[string]interface{}{
			{"start": 5, "deleteCount": 5, "data": []uint32{1, 2, 3, 1, 0}},
		},
	}
}

func semanticTokensRange(n int) interface{} {
	if n == 0 {
		return nil
	}
	return protocol.SemanticTokens{
		Data: []uint32{0, 0, 4, 0, 0},
	}
}

func documentColor(n int) interface{} {
	if n == 0 {
		return []protocol.ColorInformation{}
	}
	return []protocol.ColorInformation{
		{
			Range: rangeAt(2, 10, 17),
			Color: protocol.Color{Red: 1, Green: 0, Blue: 0, Alpha: 1},
		},
	}
}

func colorPresentation(n int) interface{} {
	if n == 0 {
		return []protocol.ColorPresentation{}
	}
	return []protocol.ColorPresentation{
		{Label: "#ff0000"},
	}
}

func moniker(n int) interface{} {
	if n == 0 {
		return []protocol.Moniker{}
	}
	return []protocol.Moniker{
		{
			Scheme:     "fixture",
			Identifier: "src/main::main",
			Unique:     protocol.UniquenessLevel("global"),
			Kind:       protocol.MonikerKind("export"),
		},
	}
}

func linkedEditingRange(n int) interface{} {
	if n == 0 {
		return nil
	}
	return protocol.LinkedEditingRanges{
		Ranges: []protocol.Range{rangeAt(0, 3, 7), rangeAt(4, 3, 7)},
	}
}

// Inlay hints and type hierarchy are LSP 3.17; the protocol package
// stops at 3.16, so these answer with raw maps.
func inlayHint(n int) interface{} {
	if n == 0 {
		return []map[string]interface{}{}
	}
	return []map[string]interface{}{
		{
			"position":    map[string]interface{}{"line": 0, "character": 8},
			"label":       ": i32",
			"kind":        1,
			"paddingLeft": true,
		},
	}
}

func prepareTypeHierarchy(docURI uri.URI, n int) interface{} {
	if n == 0 {
		return []map[string]interface{}{}
	}
	return []map[string]interface{}{
		{
			"name":           "main",
			"kind":           12,
			"uri":            string(docURI),
			"range":          rangeAt(0, 0, 10),
			"selectionRange": rangeAt(0, 3, 7),
		},
	}
}

func diagnostics(n int) []protocol.Diagnostic {
	switch n {
	case 0:
		return []protocol.Diagnostic{}
	case 1:
		return []protocol.Diagnostic{
			{
				Range:    rangeAt(0, 0, 4),
				Severity: protocol.DiagnosticSeverityError,
				Source:   "fixture",
				Message:  "something is wrong here",
			},
		}
	default:
		return []protocol.Diagnostic{
			{
				Range:    rangeAt(1, 0, 1),
				Severity: protocol.DiagnosticSeverityWarning,
				Source:   "fixture",
				Message:  `escape sequence \\n is suspicious`,
			},
		}
	}
}

// resolveEcho round-trips the item the client sent, marking it
// resolved the way real servers enrich items lazily.
func resolveEcho(params json.RawMessage, field string, value interface{}) (interface{}, error) {
	var item map[string]interface{}
	if err := json.Unmarshal(params, &item); err != nil {
		return nil, err
	}
	item[field] = value
	return item, nil
}
