package lspressoshot

// Kind identifies the LSP request a test exercises. Every test entry
// point funnels into a single executor parameterized by its Kind; the
// few requests that need extra round trips (resolve variants, semantic
// token deltas) hang per-kind hooks off the executor rather than
// duplicating the pipeline.
type Kind int

const (
	KindHover Kind = iota
	KindDeclaration
	KindDefinition
	KindTypeDefinition
	KindImplementation
	KindReferences
	KindRename
	KindDocumentHighlight
	KindDocumentSymbol
	KindDocumentLink
	KindDocumentLinkResolve
	KindFoldingRange
	KindFormatting
	KindRangeFormatting
	KindCompletion
	KindCompletionResolve
	KindCodeLens
	KindCodeLensResolve
	KindCodeAction
	KindCodeActionResolve
	KindSignatureHelp
	KindPrepareCallHierarchy
	KindIncomingCalls
	KindOutgoingCalls
	KindWorkspaceSymbol
	KindExecuteCommand
	KindSelectionRange
	KindSemanticTokensFull
	KindSemanticTokensFullDelta
	KindSemanticTokensRange
	KindDocumentColor
	KindColorPresentation
	KindMoniker
	KindLinkedEditingRange
	KindInlayHint
	KindPrepareTypeHierarchy
	KindPublishDiagnostics
)

// Methods the harness sends. Sticking to string literals here keeps
// the table readable next to the protocol spec.
const (
	methodHover                = "textDocument/hover"
	methodDeclaration          = "textDocument/declaration"
	methodDefinition           = "textDocument/definition"
	methodTypeDefinition       = "textDocument/typeDefinition"
	methodImplementation       = "textDocument/implementation"
	methodReferences           = "textDocument/references"
	methodRename               = "textDocument/rename"
	methodDocumentHighlight    = "textDocument/documentHighlight"
	methodDocumentSymbol       = "textDocument/documentSymbol"
	methodDocumentLink         = "textDocument/documentLink"
	methodDocumentLinkResolve  = "documentLink/resolve"
	methodFoldingRange         = "textDocument/foldingRange"
	methodFormatting           = "textDocument/formatting"
	methodRangeFormatting      = "textDocument/rangeFormatting"
	methodCompletion           = "textDocument/completion"
	methodCompletionResolve    = "completionItem/resolve"
	methodCodeLens             = "textDocument/codeLens"
	methodCodeLensResolve      = "codeLens/resolve"
	methodCodeAction           = "textDocument/codeAction"
	methodCodeActionResolve    = "codeAction/resolve"
	methodSignatureHelp        = "textDocument/signatureHelp"
	methodPrepareCallHierarchy = "textDocument/prepareCallHierarchy"
	methodIncomingCalls        = "callHierarchy/incomingCalls"
	methodOutgoingCalls        = "callHierarchy/outgoingCalls"
	methodWorkspaceSymbol      = "workspace/symbol"
	methodExecuteCommand       = "workspace/executeCommand"
	methodSelectionRange       = "textDocument/selectionRange"
	methodSemanticTokensFull   = "textDocument/semanticTokens/full"
	methodSemanticTokensDelta  = "textDocument/semanticTokens/full/delta"
	methodSemanticTokensRange  = "textDocument/semanticTokens/range"
	methodDocumentColor        = "textDocument/documentColor"
	methodColorPresentation    = "textDocument/colorPresentation"
	methodMoniker              = "textDocument/moniker"
	methodLinkedEditingRange   = "textDocument/linkedEditingRange"
	methodInlayHint            = "textDocument/inlayHint"
	methodPrepareTypeHierarchy = "textDocument/prepareTypeHierarchy"
)

var kindMethods = map[Kind]string{
	KindHover:                   methodHover,
	KindDeclaration:             methodDeclaration,
	KindDefinition:              methodDefinition,
	KindTypeDefinition:          methodTypeDefinition,
	KindImplementation:          methodImplementation,
	KindReferences:              methodReferences,
	KindRename:                  methodRename,
	KindDocumentHighlight:       methodDocumentHighlight,
	KindDocumentSymbol:          methodDocumentSymbol,
	KindDocumentLink:            methodDocumentLink,
	KindDocumentLinkResolve:     methodDocumentLinkResolve,
	KindFoldingRange:            methodFoldingRange,
	KindFormatting:              methodFormatting,
	KindRangeFormatting:         methodRangeFormatting,
	KindCompletion:              methodCompletion,
	KindCompletionResolve:       methodCompletionResolve,
	KindCodeLens:                methodCodeLens,
	KindCodeLensResolve:         methodCodeLensResolve,
	KindCodeAction:              methodCodeAction,
	KindCodeActionResolve:       methodCodeActionResolve,
	KindSignatureHelp:           methodSignatureHelp,
	KindPrepareCallHierarchy:    methodPrepareCallHierarchy,
	KindIncomingCalls:           methodIncomingCalls,
	KindOutgoingCalls:           methodOutgoingCalls,
	KindWorkspaceSymbol:         methodWorkspaceSymbol,
	KindExecuteCommand:          methodExecuteCommand,
	KindSelectionRange:          methodSelectionRange,
	KindSemanticTokensFull:      methodSemanticTokensFull,
	KindSemanticTokensFullDelta: methodSemanticTokensDelta,
	KindSemanticTokensRange:     methodSemanticTokensRange,
	KindDocumentColor:           methodDocumentColor,
	KindColorPresentation:       methodColorPresentation,
	KindMoniker:                 methodMoniker,
	KindLinkedEditingRange:      methodLinkedEditingRange,
	KindInlayHint:               methodInlayHint,
	KindPrepareTypeHierarchy:    methodPrepareTypeHierarchy,
	KindPublishDiagnostics:      "textDocument/publishDiagnostics",
}

var kindNames = map[Kind]string{
	KindHover:                   "hover",
	KindDeclaration:             "declaration",
	KindDefinition:              "definition",
	KindTypeDefinition:          "typeDefinition",
	KindImplementation:          "implementation",
	KindReferences:              "references",
	KindRename:                  "rename",
	KindDocumentHighlight:       "documentHighlight",
	KindDocumentSymbol:          "documentSymbol",
	KindDocumentLink:            "documentLink",
	KindDocumentLinkResolve:     "documentLinkResolve",
	KindFoldingRange:            "foldingRange",
	KindFormatting:              "formatting",
	KindRangeFormatting:         "rangeFormatting",
	KindCompletion:              "completion",
	KindCompletionResolve:       "completionResolve",
	KindCodeLens:                "codeLens",
	KindCodeLensResolve:         "codeLensResolve",
	KindCodeAction:              "codeAction",
	KindCodeActionResolve:       "codeActionResolve",
	KindSignatureHelp:           "signatureHelp",
	KindPrepareCallHierarchy:    "prepareCallHierarchy",
	KindIncomingCalls:           "incomingCalls",
	KindOutgoingCalls:           "outgoingCalls",
	KindWorkspaceSymbol:         "workspaceSymbol",
	KindExecuteCommand:          "executeCommand",
	KindSelectionRange:          "selectionRange",
	KindSemanticTokensFull:      "semanticTokensFull",
	KindSemanticTokensFullDelta: "semanticTokensFullDelta",
	KindSemanticTokensRange:     "semanticTokensRange",
	KindDocumentColor:           "documentColor",
	KindColorPresentation:       "colorPresentation",
	KindMoniker:                 "moniker",
	KindLinkedEditingRange:      "linkedEditingRange",
	KindInlayHint:               "inlayHint",
	KindPrepareTypeHierarchy:    "prepareTypeHierarchy",
	KindPublishDiagnostics:      "publishDiagnostics",
}

// Method returns the wire method the kind sends. KindPublishDiagnostics
// reports the notification it captures instead.
func (k Kind) Method() string { return kindMethods[k] }

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// needsCursor reports whether the kind's request is anchored at a
// cursor position and so requires TestCase.WithCursor.
func (k Kind) needsCursor() bool {
	switch k {
	case KindDocumentSymbol, KindDocumentLink, KindDocumentLinkResolve,
		KindFoldingRange, KindFormatting, KindRangeFormatting,
		KindCodeLens, KindCodeLensResolve,
		KindWorkspaceSymbol, KindExecuteCommand, KindSemanticTokensFull,
		KindSemanticTokensFullDelta, KindSemanticTokensRange,
		KindDocumentColor, KindColorPresentation, KindInlayHint,
		KindPublishDiagnostics:
		return false
	}
	return true
}
