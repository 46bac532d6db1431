package lspressoshot

import (
	"encoding/json"
	"fmt"
	"testing"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/WillLillis/lspresso-shot/internal/compare"
	"github.com/WillLillis/lspresso-shot/internal/normalize"
)

// Shot fails the test when a Test* call reports an error, printing the
// rendered diff. It is the intended way to consume this package:
//
//	lspressoshot.Shot(t, lspressoshot.TestHover(tc, &expected))
func Shot(tb testing.TB, err error) {
	tb.Helper()
	if err != nil {
		tb.Fatal(err)
	}
}

// runKind executes the pipeline and compares the captured payload with
// expected. A nil expected skips comparison; the run still has to
// succeed. The workspace is removed or retained here, once the verdict
// is known.
func runKind[T any](tc *TestCase, kind Kind, cfg runConfig, expected *T) (err error) {
	out, execErr := tc.execute(kind, cfg)
	defer func() {
		if out == nil || out.ws == nil {
			return
		}
		keep := false
		switch tc.Cleanup {
		case CleanupNever:
			keep = true
		case CleanupOnSuccess:
			keep = err != nil
		}
		out.ws.Finish(keep)
	}()
	if execErr != nil {
		return execErr
	}
	if expected == nil {
		return nil
	}

	expRaw, merr := json.Marshal(expected)
	if merr != nil {
		return &SetupError{Reason: fmt.Sprintf("expected value does not marshal: %v", merr)}
	}
	expNorm, nerr := normalize.Normalize(expRaw, normalize.Options{
		SourceRoot: out.ws.SourceRoot(),
		Shape:      cfg.shape,
	})
	if nerr != nil {
		return &SetupError{Reason: fmt.Sprintf("expected value does not normalize: %v", nerr)}
	}

	actual := out.payload
	if actual == nil {
		// Empty response. An expected value that itself encodes "no
		// results" still passes, through the relaxed empty rule.
		res, cerr := compare.Compare(expNorm, json.RawMessage("null"))
		if cerr == nil && res.Equal {
			return nil
		}
		return &EmptyResponseError{Kind: kind}
	}

	var got T
	if uerr := json.Unmarshal(actual, &got); uerr != nil {
		return &DeserializeError{Kind: kind, Raw: string(actual), Err: uerr}
	}

	res, cerr := compare.Compare(expNorm, actual)
	if cerr != nil {
		return &DeserializeError{Kind: kind, Raw: string(actual), Err: cerr}
	}
	if !res.Equal {
		return &MismatchError{
			Kind:     kind,
			Path:     res.Path,
			Diff:     res.Diff,
			Expected: string(expNorm),
			Actual:   string(actual),
			Warning:  res.Warning,
		}
	}
	return nil
}

// slicePtr adapts a slice expectation to the pointer convention: a nil
// slice means "don't compare", an empty one means "expect nothing".
func slicePtr[E any](s []E) *[]E {
	if s == nil {
		return nil
	}
	return &s
}

func (tc *TestCase) posParams(docURI uri.URI) protocol.TextDocumentPositionParams {
	p := protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: docURI},
	}
	if tc.CursorPos != nil {
		p.Position = *tc.CursorPos
	}
	return p
}

func docParams(docURI uri.URI) protocol.TextDocumentIdentifier {
	return protocol.TextDocumentIdentifier{URI: docURI}
}

func (tc *TestCase) cursorRange() protocol.Range {
	var pos protocol.Position
	if tc.CursorPos != nil {
		pos = *tc.CursorPos
	}
	return protocol.Range{Start: pos, End: pos}
}

// TestHover issues textDocument/hover at the cursor.
func TestHover(tc *TestCase, expected *protocol.Hover) error {
	return runKind(tc, KindHover, runConfig{
		params: func(docURI uri.URI) interface{} {
			return protocol.HoverParams{TextDocumentPositionParams: tc.posParams(docURI)}
		},
	}, expected)
}

// TestDeclaration issues textDocument/declaration at the cursor. A
// bare-object response is canonicalized to a one-element slice.
func TestDeclaration(tc *TestCase, expected []protocol.Location) error {
	return runKind(tc, KindDeclaration, runConfig{
		shape: normalize.ShapeLocationList,
		params: func(docURI uri.URI) interface{} {
			return protocol.DeclarationParams{TextDocumentPositionParams: tc.posParams(docURI)}
		},
	}, slicePtr(expected))
}

// TestDefinition issues textDocument/definition at the cursor.
func TestDefinition(tc *TestCase, expected []protocol.Location) error {
	return runKind(tc, KindDefinition, runConfig{
		shape: normalize.ShapeLocationList,
		params: func(docURI uri.URI) interface{} {
			return protocol.DefinitionParams{TextDocumentPositionParams: tc.posParams(docURI)}
		},
	}, slicePtr(expected))
}

// TestDefinitionLinks is TestDefinition for servers that answer with
// the LocationLink form of the response union.
func TestDefinitionLinks(tc *TestCase, expected []protocol.LocationLink) error {
	return runKind(tc, KindDefinition, runConfig{
		shape: normalize.ShapeLocationList,
		params: func(docURI uri.URI) interface{} {
			return protocol.DefinitionParams{TextDocumentPositionParams: tc.posParams(docURI)}
		},
	}, slicePtr(expected))
}

// TestTypeDefinition issues textDocument/typeDefinition at the cursor.
func TestTypeDefinition(tc *TestCase, expected []protocol.Location) error {
	return runKind(tc, KindTypeDefinition, runConfig{
		shape: normalize.ShapeLocationList,
		params: func(docURI uri.URI) interface{} {
			return protocol.TypeDefinitionParams{TextDocumentPositionParams: tc.posParams(docURI)}
		},
	}, slicePtr(expected))
}

// TestImplementation issues textDocument/implementation at the cursor.
func TestImplementation(tc *TestCase, expected []protocol.Location) error {
	return runKind(tc, KindImplementation, runConfig{
		shape: normalize.ShapeLocationList,
		params: func(docURI uri.URI) interface{} {
			return protocol.ImplementationParams{TextDocumentPositionParams: tc.posParams(docURI)}
		},
	}, slicePtr(expected))
}

// TestReferences issues textDocument/references at the cursor.
func TestReferences(tc *TestCase, includeDeclaration bool, expected []protocol.Location) error {
	return runKind(tc, KindReferences, runConfig{
		params: func(docURI uri.URI) interface{} {
			return protocol.ReferenceParams{
				TextDocumentPositionParams: tc.posParams(docURI),
				Context: protocol.ReferenceContext{
					IncludeDeclaration: includeDeclaration,
				},
			}
		},
	}, slicePtr(expected))
}

// TestRename issues textDocument/rename at the cursor with the new name.
func TestRename(tc *TestCase, newName string, expected *protocol.WorkspaceEdit) error {
	return runKind(tc, KindRename, runConfig{
		params: func(docURI uri.URI) interface{} {
			return protocol.RenameParams{
				TextDocumentPositionParams: tc.posParams(docURI),
				NewName:                    newName,
			}
		},
	}, expected)
}

// TestDocumentHighlight issues textDocument/documentHighlight at the cursor.
func TestDocumentHighlight(tc *TestCase, expected []protocol.DocumentHighlight) error {
	return runKind(tc, KindDocumentHighlight, runConfig{
		params: func(docURI uri.URI) interface{} {
			return protocol.DocumentHighlightParams{TextDocumentPositionParams: tc.posParams(docURI)}
		},
	}, slicePtr(expected))
}

func documentSymbolConfig() runConfig {
	return runConfig{
		params: func(docURI uri.URI) interface{} {
			return protocol.DocumentSymbolParams{TextDocument: docParams(docURI)}
		},
	}
}

// TestDocumentSymbol issues textDocument/documentSymbol expecting the
// hierarchical DocumentSymbol form of the response union.
func TestDocumentSymbol(tc *TestCase, expected []protocol.DocumentSymbol) error {
	return runKind(tc, KindDocumentSymbol, documentSymbolConfig(), slicePtr(expected))
}

// TestDocumentSymbolFlat is TestDocumentSymbol for servers that answer
// with the flat SymbolInformation form.
func TestDocumentSymbolFlat(tc *TestCase, expected []protocol.SymbolInformation) error {
	return runKind(tc, KindDocumentSymbol, documentSymbolConfig(), slicePtr(expected))
}

// TestDocumentLink issues textDocument/documentLink.
func TestDocumentLink(tc *TestCase, expected []protocol.DocumentLink) error {
	return runKind(tc, KindDocumentLink, runConfig{
		params: func(docURI uri.URI) interface{} {
			return protocol.DocumentLinkParams{TextDocument: docParams(docURI)}
		},
	}, slicePtr(expected))
}

// TestDocumentLinkResolve submits link to documentLink/resolve.
func TestDocumentLinkResolve(tc *TestCase, link protocol.DocumentLink, expected *protocol.DocumentLink) error {
	return runKind(tc, KindDocumentLinkResolve, runConfig{
		params: func(uri.URI) interface{} { return link },
	}, expected)
}

// TestFoldingRange issues textDocument/foldingRange.
func TestFoldingRange(tc *TestCase, expected []protocol.FoldingRange) error {
	return runKind(tc, KindFoldingRange, runConfig{
		params: func(docURI uri.URI) interface{} {
			return protocol.FoldingRangeParams{
				TextDocumentPositionParams: protocol.TextDocumentPositionParams{
					TextDocument: docParams(docURI),
				},
			}
		},
	}, slicePtr(expected))
}

func formattingConfig(opts protocol.FormattingOptions) runConfig {
	return runConfig{
		params: func(docURI uri.URI) interface{} {
			return protocol.DocumentFormattingParams{
				TextDocument: docParams(docURI),
				Options:      opts,
			}
		},
	}
}

// TestFormatting issues textDocument/formatting and compares the raw
// edit list.
func TestFormatting(tc *TestCase, opts protocol.FormattingOptions, expected []protocol.TextEdit) error {
	return runKind(tc, KindFormatting, formattingConfig(opts), slicePtr(expected))
}

// TestFormattingEndState issues textDocument/formatting, applies the
// returned edits to the source text in-process, and compares the final
// buffer contents.
func TestFormattingEndState(tc *TestCase, opts protocol.FormattingOptions, expected string) (err error) {
	out, execErr := tc.execute(KindFormatting, formattingConfig(opts))
	defer func() {
		if out == nil || out.ws == nil {
			return
		}
		keep := false
		switch tc.Cleanup {
		case CleanupNever:
			keep = true
		case CleanupOnSuccess:
			keep = err != nil
		}
		out.ws.Finish(keep)
	}()
	if execErr != nil {
		return execErr
	}

	var edits []protocol.TextEdit
	if out.payload != nil {
		if uerr := json.Unmarshal(out.payload, &edits); uerr != nil {
			return &DeserializeError{Kind: KindFormatting, Raw: string(out.payload), Err: uerr}
		}
	}
	got, aerr := applyTextEdits(tc.Source.Contents, edits)
	if aerr != nil {
		return &DeserializeError{Kind: KindFormatting, Raw: string(out.payload), Err: aerr}
	}
	if got != expected {
		expJSON, _ := json.Marshal(expected)
		gotJSON, _ := json.Marshal(got)
		res, cerr := compare.Compare(expJSON, gotJSON)
		if cerr != nil {
			return cerr
		}
		return &MismatchError{
			Kind:     KindFormatting,
			Path:     res.Path,
			Diff:     res.Diff,
			Expected: expected,
			Actual:   got,
		}
	}
	return nil
}

// TestRangeFormatting issues textDocument/rangeFormatting over rng.
func TestRangeFormatting(tc *TestCase, rng protocol.Range, opts protocol.FormattingOptions, expected []protocol.TextEdit) error {
	return runKind(tc, KindRangeFormatting, runConfig{
		params: func(docURI uri.URI) interface{} {
			return protocol.DocumentRangeFormattingParams{
				TextDocument: docParams(docURI),
				Range:        rng,
				Options:      opts,
			}
		},
	}, slicePtr(expected))
}

// TestCompletion issues textDocument/completion at the cursor. A
// bare-array response is canonicalized to the list form with
// isIncomplete=false before comparison.
func TestCompletion(tc *TestCase, expected *protocol.CompletionList) error {
	return runKind(tc, KindCompletion, runConfig{
		shape: normalize.ShapeCompletionList,
		params: func(docURI uri.URI) interface{} {
			return protocol.CompletionParams{TextDocumentPositionParams: tc.posParams(docURI)}
		},
	}, expected)
}

// TestCompletionContains issues textDocument/completion and passes when
// every expected item appears somewhere in the returned list. Extra
// items and ordering are ignored, which suits servers whose full
// completion sets are long or unstable.
func TestCompletionContains(tc *TestCase, expected []protocol.CompletionItem) (err error) {
	out, execErr := tc.execute(KindCompletion, runConfig{
		shape: normalize.ShapeCompletionList,
		params: func(docURI uri.URI) interface{} {
			return protocol.CompletionParams{TextDocumentPositionParams: tc.posParams(docURI)}
		},
	})
	defer func() {
		if out == nil || out.ws == nil {
			return
		}
		keep := false
		switch tc.Cleanup {
		case CleanupNever:
			keep = true
		case CleanupOnSuccess:
			keep = err != nil
		}
		out.ws.Finish(keep)
	}()
	if execErr != nil {
		return execErr
	}
	if len(expected) == 0 {
		return nil
	}
	if out.payload == nil {
		return &EmptyResponseError{Kind: KindCompletion}
	}

	var list struct {
		Items []json.RawMessage `json:"items"`
	}
	if uerr := json.Unmarshal(out.payload, &list); uerr != nil {
		return &DeserializeError{Kind: KindCompletion, Raw: string(out.payload), Err: uerr}
	}
	for i, want := range expected {
		wantRaw, merr := json.Marshal(want)
		if merr != nil {
			return &SetupError{Reason: fmt.Sprintf("expected item does not marshal: %v", merr)}
		}
		wantNorm, nerr := normalize.Normalize(wantRaw, normalize.Options{SourceRoot: out.ws.SourceRoot()})
		if nerr != nil {
			return &SetupError{Reason: fmt.Sprintf("expected item does not normalize: %v", nerr)}
		}
		found := false
		for _, item := range list.Items {
			if res, cerr := compare.Compare(wantNorm, item); cerr == nil && res.Equal {
				found = true
				break
			}
		}
		if !found {
			return &MismatchError{
				Kind:     KindCompletion,
				Path:     fmt.Sprintf("$.items[%d]", i),
				Diff:     fmt.Sprintf("no returned item matches %s", wantNorm),
				Expected: string(wantNorm),
				Actual:   string(out.payload),
			}
		}
	}
	return nil
}

// TestCompletionResolve submits item to completionItem/resolve.
func TestCompletionResolve(tc *TestCase, item protocol.CompletionItem, expected *protocol.CompletionItem) error {
	return runKind(tc, KindCompletionResolve, runConfig{
		params: func(uri.URI) interface{} { return item },
	}, expected)
}

// TestCodeLens issues textDocument/codeLens.
func TestCodeLens(tc *TestCase, expected []protocol.CodeLens) error {
	return runKind(tc, KindCodeLens, runConfig{
		params: func(docURI uri.URI) interface{} {
			return protocol.CodeLensParams{TextDocument: docParams(docURI)}
		},
	}, slicePtr(expected))
}

// TestCodeLensResolve submits lens to codeLens/resolve.
func TestCodeLensResolve(tc *TestCase, lens protocol.CodeLens, expected *protocol.CodeLens) error {
	return runKind(tc, KindCodeLensResolve, runConfig{
		params: func(uri.URI) interface{} { return lens },
	}, expected)
}

// TestCodeAction issues textDocument/codeAction over a zero-width
// range at the cursor.
func TestCodeAction(tc *TestCase, expected []protocol.CodeAction) error {
	return runKind(tc, KindCodeAction, runConfig{
		params: func(docURI uri.URI) interface{} {
			return protocol.CodeActionParams{
				TextDocument: docParams(docURI),
				Range:        tc.cursorRange(),
				Context:      protocol.CodeActionContext{},
			}
		},
	}, slicePtr(expected))
}

// TestCodeActionResolve submits action to codeAction/resolve.
func TestCodeActionResolve(tc *TestCase, action protocol.CodeAction, expected *protocol.CodeAction) error {
	return runKind(tc, KindCodeActionResolve, runConfig{
		params: func(uri.URI) interface{} { return action },
	}, expected)
}

// TestSignatureHelp issues textDocument/signatureHelp at the cursor.
func TestSignatureHelp(tc *TestCase, expected *protocol.SignatureHelp) error {
	return runKind(tc, KindSignatureHelp, runConfig{
		params: func(docURI uri.URI) interface{} {
			return protocol.SignatureHelpParams{TextDocumentPositionParams: tc.posParams(docURI)}
		},
	}, expected)
}

// TestPrepareCallHierarchy issues textDocument/prepareCallHierarchy at
// the cursor.
func TestPrepareCallHierarchy(tc *TestCase, expected []protocol.CallHierarchyItem) error {
	return runKind(tc, KindPrepareCallHierarchy, runConfig{
		params: func(docURI uri.URI) interface{} {
			return protocol.CallHierarchyPrepareParams{TextDocumentPositionParams: tc.posParams(docURI)}
		},
	}, slicePtr(expected))
}

// TestIncomingCalls prepares the call hierarchy item at the cursor and
// asks for its incoming calls.
func TestIncomingCalls(tc *TestCase, expected []protocol.CallHierarchyIncomingCall) error {
	return runKind(tc, KindIncomingCalls, runConfig{
		mode: modeCallHierarchy,
		params: func(docURI uri.URI) interface{} {
			return protocol.CallHierarchyPrepareParams{TextDocumentPositionParams: tc.posParams(docURI)}
		},
	}, slicePtr(expected))
}

// TestOutgoingCalls prepares the call hierarchy item at the cursor and
// asks for its outgoing calls.
func TestOutgoingCalls(tc *TestCase, expected []protocol.CallHierarchyOutgoingCall) error {
	return runKind(tc, KindOutgoingCalls, runConfig{
		mode: modeCallHierarchy,
		params: func(docURI uri.URI) interface{} {
			return protocol.CallHierarchyPrepareParams{TextDocumentPositionParams: tc.posParams(docURI)}
		},
	}, slicePtr(expected))
}

// TestWorkspaceSymbol issues workspace/symbol with the query.
func TestWorkspaceSymbol(tc *TestCase, query string, expected []protocol.SymbolInformation) error {
	return runKind(tc, KindWorkspaceSymbol, runConfig{
		params: func(uri.URI) interface{} {
			return protocol.WorkspaceSymbolParams{Query: query}
		},
	}, slicePtr(expected))
}

// TestExecuteCommand issues workspace/executeCommand, advertising the
// command to the server during initialize. The expected value is raw
// JSON since the result shape is command-defined.
func TestExecuteCommand(tc *TestCase, command string, args []interface{}, expected json.RawMessage) error {
	var exp *json.RawMessage
	if expected != nil {
		exp = &expected
	}
	return runKind(tc, KindExecuteCommand, runConfig{
		commands: []string{command},
		params: func(uri.URI) interface{} {
			return protocol.ExecuteCommandParams{
				Command:   command,
				Arguments: args,
			}
		},
	}, exp)
}

// TestSelectionRange issues textDocument/selectionRange for the cursor
// position.
func TestSelectionRange(tc *TestCase, expected []protocol.SelectionRange) error {
	return runKind(tc, KindSelectionRange, runConfig{
		params: func(docURI uri.URI) interface{} {
			params := protocol.SelectionRangeParams{
				TextDocument: docParams(docURI),
			}
			if tc.CursorPos != nil {
				params.Positions = []protocol.Position{*tc.CursorPos}
			}
			return params
		},
	}, slicePtr(expected))
}

// TestSemanticTokensFull issues textDocument/semanticTokens/full.
func TestSemanticTokensFull(tc *TestCase, expected *protocol.SemanticTokens) error {
	return runKind(tc, KindSemanticTokensFull, runConfig{
		params: func(docURI uri.URI) interface{} {
			return protocol.SemanticTokensParams{TextDocument: docParams(docURI)}
		},
	}, expected)
}

// TestSemanticTokensFullDelta issues semanticTokens/full to learn the
// server's result id, then semanticTokens/full/delta against it.
func TestSemanticTokensFullDelta(tc *TestCase, expected *protocol.SemanticTokensDelta) error {
	return runKind(tc, KindSemanticTokensFullDelta, runConfig{
		mode: modeDelta,
		params: func(docURI uri.URI) interface{} {
			return protocol.SemanticTokensParams{TextDocument: docParams(docURI)}
		},
		deltaParams: func(docURI uri.URI, previousResultID string) interface{} {
			return protocol.SemanticTokensDeltaParams{
				TextDocument:     docParams(docURI),
				PreviousResultID: previousResultID,
			}
		},
	}, expected)
}

// TestSemanticTokensRange issues textDocument/semanticTokens/range
// over rng.
func TestSemanticTokensRange(tc *TestCase, rng protocol.Range, expected *protocol.SemanticTokens) error {
	return runKind(tc, KindSemanticTokensRange, runConfig{
		params: func(docURI uri.URI) interface{} {
			return protocol.SemanticTokensRangeParams{
				TextDocument: docParams(docURI),
				Range:        rng,
			}
		},
	}, expected)
}

// TestDocumentColor issues textDocument/documentColor.
func TestDocumentColor(tc *TestCase, expected []protocol.ColorInformation) error {
	return runKind(tc, KindDocumentColor, runConfig{
		params: func(docURI uri.URI) interface{} {
			return protocol.DocumentColorParams{TextDocument: docParams(docURI)}
		},
	}, slicePtr(expected))
}

// TestColorPresentation issues textDocument/colorPresentation for
// color at rng.
func TestColorPresentation(tc *TestCase, color protocol.Color, rng protocol.Range, expected []protocol.ColorPresentation) error {
	return runKind(tc, KindColorPresentation, runConfig{
		params: func(docURI uri.URI) interface{} {
			return protocol.ColorPresentationParams{
				TextDocument: docParams(docURI),
				Color:        color,
				Range:        rng,
			}
		},
	}, slicePtr(expected))
}

// TestMoniker issues textDocument/moniker at the cursor.
func TestMoniker(tc *TestCase, expected []protocol.Moniker) error {
	return runKind(tc, KindMoniker, runConfig{
		params: func(docURI uri.URI) interface{} {
			return protocol.MonikerParams{TextDocumentPositionParams: tc.posParams(docURI)}
		},
	}, slicePtr(expected))
}

// TestLinkedEditingRange issues textDocument/linkedEditingRange at the
// cursor.
func TestLinkedEditingRange(tc *TestCase, expected *protocol.LinkedEditingRanges) error {
	return runKind(tc, KindLinkedEditingRange, runConfig{
		params: func(docURI uri.URI) interface{} {
			return protocol.LinkedEditingRangeParams{TextDocumentPositionParams: tc.posParams(docURI)}
		},
	}, expected)
}

// TestPublishDiagnostics captures diagnostics pushed by the server
// instead of issuing a request. In simple start mode the
// threshold-th publishDiagnostics notification is the one captured.
func TestPublishDiagnostics(tc *TestCase, expected []protocol.Diagnostic) error {
	return runKind(tc, KindPublishDiagnostics, runConfig{
		mode:   modeDiagnostics,
		params: func(uri.URI) interface{} { return nil },
	}, slicePtr(expected))
}
