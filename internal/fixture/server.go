// Package fixture implements a minimal LSP server with canned
// responses. The harness's own tests point the client at it, either as
// a subprocess (cmd/fixture-server) or in-process over a pipe. Which
// canned variant a request gets back is controlled by the
// RESPONSE_NUM.txt side-channel in the test root, so a test can select
// server behavior without rebuilding anything.
package fixture

import (
	"context"
	"encoding/json"
	"io"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"
)

// ProgressToken is the work-done token the fixture reports indexing
// progress under. Progress-mode readiness tests watch for it.
const ProgressToken = "fixture/indexing"

// Options configures one fixture server instance.
type Options struct {
	Logger *zap.Logger
	// ProgressCycles is how many begin/end progress pairs to emit
	// after the initialized notification.
	ProgressCycles int
}

// Server is one fixture LSP session.
type Server struct {
	conn   jsonrpc2.Conn
	logger *zap.Logger
	opts   Options
	cancel context.CancelFunc
}

// Serve runs the fixture over the given transport until the client
// sends exit or the transport closes.
func Serve(ctx context.Context, rwc io.ReadWriteCloser, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &Server{logger: opts.Logger, opts: opts, cancel: cancel}
	stream := jsonrpc2.NewStream(rwc)
	s.conn = jsonrpc2.NewConn(stream)
	s.conn.Go(ctx, s.handler())

	select {
	case <-ctx.Done():
	case <-s.conn.Done():
	}
	return s.conn.Close()
}

func (s *Server) handler() jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		s.logger.Debug("received", zap.String("method", req.Method()))

		switch req.Method() {
		case protocol.MethodInitialize:
			return s.handleInitialize(ctx, reply, req)
		case protocol.MethodInitialized:
			return s.handleInitialized(ctx, reply, req)
		case protocol.MethodShutdown:
			return reply(ctx, nil, nil)
		case protocol.MethodExit:
			if err := reply(ctx, nil, nil); err != nil {
				s.logger.Debug("exit reply", zap.Error(err))
			}
			s.cancel()
			return nil
		case protocol.MethodTextDocumentDidOpen:
			return s.handleDidOpen(ctx, reply, req)
		case protocol.MethodTextDocumentDidChange,
			protocol.MethodTextDocumentDidClose,
			protocol.MethodTextDocumentDidSave:
			return reply(ctx, nil, nil)
		default:
			return s.handleRequest(ctx, reply, req)
		}
	}
}

func (s *Server) handleInitialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.InitializeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, &jsonrpc2.Error{
			Code: jsonrpc2.InvalidParams, Message: "failed to parse initialize params",
		})
	}

	result := protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
			},
			CompletionProvider: &protocol.CompletionOptions{
				ResolveProvider: true,
			},
			HoverProvider:           true,
			DefinitionProvider:      true,
			ReferencesProvider:      true,
			DocumentSymbolProvider:  true,
			WorkspaceSymbolProvider: true,
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    "lspresso-shot-fixture",
			Version: "0.1.0",
		},
	}
	return reply(ctx, result, nil)
}

func (s *Server) handleInitialized(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	for i := 0; i < s.opts.ProgressCycles; i++ {
		s.notifyProgress(ctx, "begin")
		s.notifyProgress(ctx, "end")
	}
	return reply(ctx, nil, nil)
}

func (s *Server) notifyProgress(ctx context.Context, kind string) {
	params := map[string]interface{}{
		"token": ProgressToken,
		"value": map[string]interface{}{"kind": kind},
	}
	if kind == "begin" {
		params["value"].(map[string]interface{})["title"] = "indexing"
	}
	if err := s.conn.Notify(ctx, "$/progress", params); err != nil {
		s.logger.Debug("progress notify", zap.Error(err))
	}
}

func (s *Server) handleDidOpen(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, &jsonrpc2.Error{
			Code: jsonrpc2.InvalidParams, Message: "failed to parse didOpen params",
		})
	}

	docURI := params.TextDocument.URI
	n := responseIndex(docURI)
	diagParams := protocol.PublishDiagnosticsParams{
		URI:         docURI,
		Diagnostics: diagnostics(n),
	}
	if err := s.conn.Notify(ctx, "textDocument/publishDiagnostics", diagParams); err != nil {
		s.logger.Debug("publishDiagnostics notify", zap.Error(err))
	}
	return reply(ctx, nil, nil)
}

// docParams is the common shape of position-style request params; only
// the URI matters for variant selection.
type docParams struct {
	TextDocument struct {
		URI string `json:"uri"`
	} `json:"textDocument"`
	Item struct {
		URI string `json:"uri"`
	} `json:"item"`
	Data interface{} `json:"data"`
	URI  string      `json:"uri"`
}

func requestURI(raw json.RawMessage) uri.URI {
	var p docParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return ""
	}
	switch {
	case p.TextDocument.URI != "":
		return uri.URI(p.TextDocument.URI)
	case p.Item.URI != "":
		return uri.URI(p.Item.URI)
	case p.URI != "":
		return uri.URI(p.URI)
	}
	return ""
}

func (s *Server) handleRequest(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	raw := req.Params()
	docURI := requestURI(raw)
	n := responseIndex(docURI)

	var (
		result interface{}
		err    error
	)
	switch req.Method() {
	case "textDocument/hover":
		result = hover(n)
	case "textDocument/declaration", "textDocument/definition",
		"textDocument/typeDefinition", "textDocument/implementation":
		result = locations(docURI, n)
	case "textDocument/references":
		result = references(docURI, n)
	case "textDocument/rename":
		result = rename(docURI, n)
	case "textDocument/documentHighlight":
		result = documentHighlight(n)
	case "textDocument/documentSymbol":
		result = documentSymbol(docURI, n)
	case "textDocument/documentLink":
		result = documentLink(docURI, n)
	case "documentLink/resolve":
		result, err = resolveEcho(raw, "tooltip", "resolved link")
	case "textDocument/foldingRange":
		result = foldingRange(n)
	case "textDocument/formatting", "textDocument/rangeFormatting":
		result = formatting(n)
	case "textDocument/completion":
		result = completion(n)
	case "completionItem/resolve":
		result, err = resolveEcho(raw, "detail", "resolved detail")
	case "textDocument/codeLens":
		result = codeLens(docURI, n)
	case "codeLens/resolve":
		result, err = resolveEcho(raw, "command", map[string]interface{}{
			"title":   "Run test",
			"command": "fixture.runTest",
		})
	case "textDocument/codeAction":
		result = codeAction(n)
	case "codeAction/resolve":
		result, err = resolveEcho(raw, "title", "resolved action")
	case "textDocument/signatureHelp":
		result = signatureHelp(n)
	case "textDocument/prepareCallHierarchy":
		result = prepareCallHierarchy(docURI, n)
	case "callHierarchy/incomingCalls":
		result = incomingCalls(docURI, n)
	case "callHierarchy/outgoingCalls":
		result = outgoingCalls(docURI, n)
	case "workspace/symbol":
		result = workspaceSymbol(docURI, n)
	case "workspace/executeCommand":
		result = executeCommand(raw, n)
	case "textDocument/selectionRange":
		result = selectionRange(n)
	case "textDocument/semanticTokens/full":
		result = semanticTokensFull(n)
	case "textDocument/semanticTokens/full/delta":
		result = semanticTokensDelta(n)
	case "textDocument/semanticTokens/range":
		result = semanticTokensRange(n)
	case "textDocument/documentColor":
		result = documentColor(n)
	case "textDocument/colorPresentation":
		result = colorPresentation(n)
	case "textDocument/moniker":
		result = moniker(n)
	case "textDocument/linkedEditingRange":
		result = linkedEditingRange(n)
	case "textDocument/inlayHint":
		result = inlayHint(n)
	case "textDocument/prepareTypeHierarchy":
		result = prepareTypeHierarchy(docURI, n)
	default:
		return reply(ctx, nil, jsonrpc2.ErrMethodNotFound)
	}

	if err != nil {
		return reply(ctx, nil, &jsonrpc2.Error{
			Code: jsonrpc2.InvalidParams, Message: err.Error(),
		})
	}
	return reply(ctx, result, nil)
}
