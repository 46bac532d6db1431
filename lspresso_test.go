package lspressoshot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/WillLillis/lspresso-shot/internal/fixture"
)

const sampleSource = "fn main() {}\nprintln!(\"hi\");\n"

func rangeAt(line, startChar, endChar uint32) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: startChar},
		End:   protocol.Position{Line: line, Character: endChar},
	}
}

// fixtureCase wires a test case to an in-process fixture server over a
// pipe, the variant selected through the side-channel.
func fixtureCase(t *testing.T, variant int) *TestCase {
	t.Helper()
	return NewTestCase("", NewTestFile("main.rs", sampleSource)).
		WithCursor(0, 3).
		WithTimeout(10 * time.Second).
		WithCleanup(CleanupAlways).
		WithResponseNum(variant).
		WithDialer(func(ctx context.Context) (io.ReadWriteCloser, error) {
			clientConn, serverConn := net.Pipe()
			go fixture.Serve(context.Background(), serverConn, fixture.Options{
				ProgressCycles: 1,
			})
			return clientConn, nil
		})
}

func TestHoverRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestHover(tc, &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: "Here is some *hover* text",
		},
		Range: &protocol.Range{
			Start: protocol.Position{Line: 0, Character: 0},
			End:   protocol.Position{Line: 0, Character: 4},
		},
	})
	assert.NoError(t, err)
}

func TestHoverMismatchReportsPath(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestHover(tc, &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: "something else entirely",
		},
		Range: &protocol.Range{
			Start: protocol.Position{Line: 0, Character: 0},
			End:   protocol.Position{Line: 0, Character: 4},
		},
	})
	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "$.contents.value", mismatch.Path)
	assert.Contains(t, mismatch.Diff, "something else entirely")
	assert.Contains(t, mismatch.Diff, "Here is some *hover* text")
}

func TestHoverEscapeCollapse(t *testing.T) {
	tc := fixtureCase(t, 2)
	err := TestHover(tc, &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: `escaped \*literal\* text`,
		},
	})
	assert.NoError(t, err)
}

func TestHoverEmptyResponse(t *testing.T) {
	tc := fixtureCase(t, 0)
	err := TestHover(tc, &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: "anything"},
	})
	var empty *EmptyResponseError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, KindHover, empty.Kind)
}

func TestHoverNilExpectedAcceptsAnyOutcome(t *testing.T) {
	assert.NoError(t, TestHover(fixtureCase(t, 0), nil))
	assert.NoError(t, TestHover(fixtureCase(t, 1), nil))
}

func TestDefinitionSingleObjectCanonicalized(t *testing.T) {
	tc := fixtureCase(t, 2)
	err := TestDefinition(tc, []protocol.Location{
		{URI: uri.URI("main.rs"), Range: rangeAt(1, 2, 6)},
	})
	assert.NoError(t, err)
}

func TestReferencesURIsRelativized(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestReferences(tc, true, []protocol.Location{
		{URI: uri.URI("main.rs"), Range: rangeAt(0, 0, 4)},
		{URI: uri.URI("main.rs"), Range: rangeAt(3, 8, 12)},
	})
	assert.NoError(t, err)
}

func TestReferencesEmptyExpectationMatchesEmptyList(t *testing.T) {
	tc := fixtureCase(t, 0)
	err := TestReferences(tc, false, []protocol.Location{})
	assert.NoError(t, err)
}

func TestRenameRelativizesChangeKeys(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestRename(tc, "renamed", &protocol.WorkspaceEdit{
		Changes: map[uri.URI][]protocol.TextEdit{
			uri.URI("main.rs"): {
				{Range: rangeAt(0, 0, 4), NewText: "renamed"},
			},
		},
	})
	assert.NoError(t, err)
}

func TestCompletionBareArrayCanonicalized(t *testing.T) {
	tc := fixtureCase(t, 2)
	err := TestCompletion(tc, &protocol.CompletionList{
		IsIncomplete: false,
		Items: []protocol.CompletionItem{
			{
				Label:  "main",
				Kind:   protocol.CompletionItemKindFunction,
				Detail: "fn main()",
			},
			{
				Label: "println",
				Kind:  protocol.CompletionItemKindFunction,
			},
		},
	})
	assert.NoError(t, err)
}

func TestCompletionContainsSubset(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestCompletionContains(tc, []protocol.CompletionItem{
		{Label: "println", Kind: protocol.CompletionItemKindFunction},
	})
	assert.NoError(t, err)

	tc = fixtureCase(t, 1)
	err = TestCompletionContains(tc, []protocol.CompletionItem{
		{Label: "not_there", Kind: protocol.CompletionItemKindFunction},
	})
	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "$.items[0]", mismatch.Path)
}

func TestCompletionResolveEchoes(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestCompletionResolve(tc,
		protocol.CompletionItem{Label: "main"},
		&protocol.CompletionItem{Label: "main", Detail: "resolved detail"},
	)
	assert.NoError(t, err)
}

func TestDocumentSymbolFlatVariant(t *testing.T) {
	tc := fixtureCase(t, 2)
	err := TestDocumentSymbolFlat(tc, []protocol.SymbolInformation{
		{
			Name: "main",
			Kind: protocol.SymbolKindFunction,
			Location: protocol.Location{
				URI: uri.URI("main.rs"), Range: rangeAt(0, 0, 10),
			},
		},
	})
	assert.NoError(t, err)
}

func TestPublishDiagnosticsCapture(t *testing.T) {
	tc := fixtureCase(t, 1).WithStartType(StartSimple(2))
	err := TestPublishDiagnostics(tc, []protocol.Diagnostic{
		{
			Range:    rangeAt(0, 0, 4),
			Severity: protocol.DiagnosticSeverityError,
			Source:   "fixture",
			Message:  "something is wrong here",
		},
	})
	assert.NoError(t, err)
}

func TestProgressReadiness(t *testing.T) {
	tc := fixtureCase(t, 1).WithStartType(StartProgress(1, fixture.ProgressToken))
	assert.NoError(t, TestHover(tc, nil))
}

func TestExecuteCommandRawResult(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestExecuteCommand(tc, "fixture.echo", nil,
		json.RawMessage(`{"executed":"fixture.echo"}`))
	assert.NoError(t, err)
}

func TestFormattingEndStateAppliesEdits(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestFormattingEndState(tc, protocol.FormattingOptions{
		TabSize:      4,
		InsertSpaces: true,
	}, "  "+sampleSource)
	assert.NoError(t, err)
}

func TestSemanticTokensDeltaTwoPhase(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestSemanticTokensFullDelta(tc, &protocol.SemanticTokensDelta{
		ResultID: "fixture-tokens-2",
		Edits: []protocol.SemanticTokensEdit{
			{Start: 5, DeleteCount: 5, Data: []uint32{1, 2, 3, 1, 0}},
		},
	})
	assert.NoError(t, err)
}

func TestIncomingCallsTwoPhase(t *testing.T) {
	tc := fixtureCase(t, 1)
	item := protocol.CallHierarchyItem{
		Name:           "main",
		Kind:           protocol.SymbolKindFunction,
		URI:            uri.URI("main.rs"),
		Range:          rangeAt(0, 0, 10),
		SelectionRange: rangeAt(0, 3, 7),
	}
	err := TestIncomingCalls(tc, []protocol.CallHierarchyIncomingCall{
		{From: item, FromRanges: []protocol.Range{rangeAt(2, 4, 8)}},
	})
	assert.NoError(t, err)
}

func TestDeclarationRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestDeclaration(tc, []protocol.Location{
		{URI: uri.URI("main.rs"), Range: rangeAt(0, 0, 4)},
	})
	assert.NoError(t, err)
}

func TestTypeDefinitionRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestTypeDefinition(tc, []protocol.Location{
		{URI: uri.URI("main.rs"), Range: rangeAt(0, 0, 4)},
	})
	assert.NoError(t, err)
}

func TestImplementationRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestImplementation(tc, []protocol.Location{
		{URI: uri.URI("main.rs"), Range: rangeAt(0, 0, 4)},
	})
	assert.NoError(t, err)
}

func TestDocumentHighlightRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestDocumentHighlight(tc, []protocol.DocumentHighlight{
		{Range: rangeAt(0, 0, 4), Kind: protocol.DocumentHighlightKind(1)},
	})
	assert.NoError(t, err)
}

func TestDocumentSymbolHierarchicalRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestDocumentSymbol(tc, []protocol.DocumentSymbol{
		{
			Name:           "main",
			Kind:           protocol.SymbolKindFunction,
			Range:          rangeAt(0, 0, 10),
			SelectionRange: rangeAt(0, 3, 7),
		},
	})
	assert.NoError(t, err)
}

func TestDocumentLinkRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestDocumentLink(tc, []protocol.DocumentLink{
		{Range: rangeAt(0, 0, 10), Target: uri.URI("main.rs")},
	})
	assert.NoError(t, err)
}

func TestDocumentLinkResolveEchoes(t *testing.T) {
	tc := fixtureCase(t, 1)
	link := protocol.DocumentLink{Range: rangeAt(0, 0, 10)}
	err := TestDocumentLinkResolve(tc, link, &protocol.DocumentLink{
		Range:   rangeAt(0, 0, 10),
		Tooltip: "resolved link",
	})
	assert.NoError(t, err)
}

func TestFoldingRangeRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestFoldingRange(tc, []protocol.FoldingRange{
		{StartLine: 0, EndLine: 3, Kind: protocol.FoldingRangeKind("region")},
	})
	assert.NoError(t, err)
}

func TestFormattingRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 2)
	err := TestFormatting(tc, protocol.FormattingOptions{TabSize: 4}, []protocol.TextEdit{
		{Range: rangeAt(0, 0, 4), NewText: "fmt"},
		{Range: rangeAt(1, 0, 0), NewText: "\n"},
	})
	assert.NoError(t, err)
}

func TestRangeFormattingRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestRangeFormatting(tc, rangeAt(0, 0, 12), protocol.FormattingOptions{TabSize: 4}, []protocol.TextEdit{
		{Range: rangeAt(0, 0, 0), NewText: "  "},
	})
	assert.NoError(t, err)
}

func TestCodeLensRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestCodeLens(tc, []protocol.CodeLens{
		{
			Range: rangeAt(0, 0, 10),
			Command: &protocol.Command{
				Title:   "Run test",
				Command: "fixture.runTest",
			},
		},
	})
	assert.NoError(t, err)
}

func TestCodeLensResolveEchoes(t *testing.T) {
	tc := fixtureCase(t, 1)
	lens := protocol.CodeLens{Range: rangeAt(0, 0, 10)}
	err := TestCodeLensResolve(tc, lens, &protocol.CodeLens{
		Range: rangeAt(0, 0, 10),
		Command: &protocol.Command{
			Title:   "Run test",
			Command: "fixture.runTest",
		},
	})
	assert.NoError(t, err)
}

func TestCodeActionRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestCodeAction(tc, []protocol.CodeAction{
		{Title: "Apply fix", Kind: protocol.CodeActionKind("quickfix")},
	})
	assert.NoError(t, err)
}

func TestCodeActionResolveEchoes(t *testing.T) {
	tc := fixtureCase(t, 1)
	action := protocol.CodeAction{Kind: protocol.CodeActionKind("quickfix")}
	err := TestCodeActionResolve(tc, action, &protocol.CodeAction{
		Title: "resolved action",
		Kind:  protocol.CodeActionKind("quickfix"),
	})
	assert.NoError(t, err)
}

func TestSignatureHelpRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestSignatureHelp(tc, &protocol.SignatureHelp{
		Signatures: []protocol.SignatureInformation{
			{Label: "main()"},
		},
	})
	assert.NoError(t, err)
}

func TestPrepareCallHierarchyRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestPrepareCallHierarchy(tc, []protocol.CallHierarchyItem{
		{
			Name:           "main",
			Kind:           protocol.SymbolKindFunction,
			URI:            uri.URI("main.rs"),
			Range:          rangeAt(0, 0, 10),
			SelectionRange: rangeAt(0, 3, 7),
		},
	})
	assert.NoError(t, err)
}

func TestOutgoingCallsTwoPhase(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestOutgoingCalls(tc, []protocol.CallHierarchyOutgoingCall{
		{
			To: protocol.CallHierarchyItem{
				Name:           "main",
				Kind:           protocol.SymbolKindFunction,
				URI:            uri.URI("main.rs"),
				Range:          rangeAt(0, 0, 10),
				SelectionRange: rangeAt(0, 3, 7),
			},
			FromRanges: []protocol.Range{rangeAt(1, 0, 4)},
		},
	})
	assert.NoError(t, err)
}

func TestWorkspaceSymbolRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestWorkspaceSymbol(tc, "main", []protocol.SymbolInformation{
		{
			Name: "main",
			Kind: protocol.SymbolKindFunction,
			Location: protocol.Location{
				URI: uri.URI("main.rs"), Range: rangeAt(0, 0, 10),
			},
		},
	})
	assert.NoError(t, err)
}

func TestSelectionRangeRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestSelectionRange(tc, []protocol.SelectionRange{
		{
			Range: rangeAt(0, 3, 7),
			Parent: &protocol.SelectionRange{
				Range: rangeAt(0, 0, 10),
			},
		},
	})
	assert.NoError(t, err)
}

func TestSemanticTokensFullRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestSemanticTokensFull(tc, &protocol.SemanticTokens{
		ResultID: "fixture-tokens-1",
		Data:     []uint32{0, 0, 4, 0, 0, 1, 0, 7, 1, 0},
	})
	assert.NoError(t, err)
}

func TestSemanticTokensRangeRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestSemanticTokensRange(tc, rangeAt(0, 0, 10), &protocol.SemanticTokens{
		Data: []uint32{0, 0, 4, 0, 0},
	})
	assert.NoError(t, err)
}

func TestDocumentColorRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestDocumentColor(tc, []protocol.ColorInformation{
		{
			Range: rangeAt(2, 10, 17),
			Color: protocol.Color{Red: 1, Green: 0, Blue: 0, Alpha: 1},
		},
	})
	assert.NoError(t, err)
}

func TestColorPresentationRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestColorPresentation(tc,
		protocol.Color{Red: 1, Alpha: 1}, rangeAt(2, 10, 17),
		[]protocol.ColorPresentation{
			{Label: "#ff0000"},
		})
	assert.NoError(t, err)
}

func TestMonikerRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestMoniker(tc, []protocol.Moniker{
		{
			Scheme:     "fixture",
			Identifier: "src/main::main",
			Unique:     protocol.UniquenessLevel("global"),
			Kind:       protocol.MonikerKind("export"),
		},
	})
	assert.NoError(t, err)
}

func TestLinkedEditingRangeRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestLinkedEditingRange(tc, &protocol.LinkedEditingRanges{
		Ranges: []protocol.Range{rangeAt(0, 3, 7), rangeAt(4, 3, 7)},
	})
	assert.NoError(t, err)
}

func TestInlayHintRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestInlayHint(tc, rangeAt(0, 0, 12), []InlayHint{
		{
			Position:    protocol.Position{Line: 0, Character: 8},
			Label:       ": i32",
			Kind:        InlayHintKindType,
			PaddingLeft: true,
		},
	})
	assert.NoError(t, err)
}

func TestPrepareTypeHierarchyRoundTrip(t *testing.T) {
	tc := fixtureCase(t, 1)
	err := TestPrepareTypeHierarchy(tc, []TypeHierarchyItem{
		{
			Name:           "main",
			Kind:           protocol.SymbolKindFunction,
			URI:            uri.URI("main.rs"),
			Range:          rangeAt(0, 0, 10),
			SelectionRange: rangeAt(0, 3, 7),
		},
	})
	assert.NoError(t, err)
}

func TestTimeoutBeforeResponse(t *testing.T) {
	tc := NewTestCase("", NewTestFile("main.rs", sampleSource)).
		WithCursor(0, 0).
		WithTimeout(300 * time.Millisecond).
		WithCleanup(CleanupAlways).
		WithDialer(func(ctx context.Context) (io.ReadWriteCloser, error) {
			clientConn, serverConn := net.Pipe()
			// Swallow all traffic, never answer.
			go io.Copy(io.Discard, serverConn)
			return clientConn, nil
		})

	err := TestHover(tc, nil)
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.False(t, timeout.Ready)
	assert.Equal(t, 300*time.Millisecond, timeout.Timeout)
}

func TestWorkspaceRetainedOnFailure(t *testing.T) {
	tc := fixtureCase(t, 1).WithCleanup(CleanupOnSuccess)
	root := filepath.Join(os.TempDir(), "lspresso-shot", tc.TestID())
	t.Cleanup(func() { os.RemoveAll(root) })

	err := TestHover(tc, &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: "wrong"},
	})
	require.Error(t, err)
	assert.DirExists(t, root, "failed runs must keep their workspace")

	srcPath := filepath.Join(root, "src", "main.rs")
	data, rerr := os.ReadFile(srcPath)
	require.NoError(t, rerr)
	assert.Equal(t, sampleSource, string(data))
}

func TestWorkspaceRemovedOnSuccess(t *testing.T) {
	tc := fixtureCase(t, 0).WithCleanup(CleanupOnSuccess)
	root := filepath.Join(os.TempDir(), "lspresso-shot", tc.TestID())

	require.NoError(t, TestHover(tc, nil))
	assert.NoDirExists(t, root)
}

func TestSetupErrors(t *testing.T) {
	var setup *SetupError

	t.Run("cursor required", func(t *testing.T) {
		tc := fixtureCase(t, 1)
		tc.CursorPos = nil
		err := TestHover(tc, nil)
		require.ErrorAs(t, err, &setup)
	})

	t.Run("server not executable", func(t *testing.T) {
		tc := NewTestCase("/nonexistent/server", NewTestFile("main.rs", sampleSource)).
			WithCursor(0, 0)
		err := TestHover(tc, nil)
		require.ErrorAs(t, err, &setup)
	})

	t.Run("absolute source path", func(t *testing.T) {
		tc := fixtureCase(t, 1)
		tc.Source.Path = "/abs/main.rs"
		err := TestHover(tc, nil)
		require.ErrorAs(t, err, &setup)
	})

	t.Run("progress without token", func(t *testing.T) {
		tc := fixtureCase(t, 1)
		tc.Start = StartType{Mode: StartModeProgress, Threshold: 1}
		err := TestHover(tc, nil)
		require.ErrorAs(t, err, &setup)
	})
}

func TestShotFailsTest(t *testing.T) {
	// Shot with a nil error must not touch the test state.
	Shot(t, nil)

	rec := &recordingTB{TB: t}
	Shot(rec, errors.New("boom"))
	assert.True(t, rec.fatal)
}

type recordingTB struct {
	testing.TB
	fatal bool
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Fatal(args ...interface{}) { r.fatal = true }
