// Package client speaks the Language Server Protocol to the server
// under test over a jsonrpc2 connection. It owns the initialize
// handshake, readiness tracking, notification capture, and the single
// triggering request a test issues.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"
)

// Client drives one server for one test run.
type Client struct {
	conn   jsonrpc2.Conn
	signal *Signal
	logW   io.Writer
	logger *zap.Logger

	mu     sync.Mutex
	diags  []json.RawMessage
	diagCh chan struct{}
}

// New wires a client over the given transport. Server notifications
// feed the readiness signal; window traffic is appended to logW.
func New(rwc io.ReadWriteCloser, signal *Signal, logW io.Writer, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		signal: signal,
		logW:   logW,
		logger: logger,
		diagCh: make(chan struct{}),
	}
	stream := jsonrpc2.NewStream(rwc)
	c.conn = jsonrpc2.NewConn(stream)
	return c
}

// Go starts the receive loop. Must be called before Initialize.
func (c *Client) Go(ctx context.Context) {
	c.conn.Go(ctx, c.handler())
}

func (c *Client) handler() jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		switch req.Method() {
		case "textDocument/publishDiagnostics":
			c.recordDiagnostics(req.Params())
			c.signal.Observe(EventDiagnostics, "")
			return nil

		case "$/progress":
			var params struct {
				Token json.RawMessage `json:"token"`
				Value struct {
					Kind string `json:"kind"`
				} `json:"value"`
			}
			if err := json.Unmarshal(req.Params(), &params); err != nil {
				c.logger.Debug("malformed $/progress params", zap.Error(err))
				return nil
			}
			if params.Value.Kind == "end" {
				c.signal.Observe(EventProgressEnd, tokenString(params.Token))
			}
			return nil

		case "window/logMessage", "window/showMessage":
			var params protocol.LogMessageParams
			if err := json.Unmarshal(req.Params(), &params); err == nil && c.logW != nil {
				fmt.Fprintf(c.logW, "%s\n", params.Message)
			}
			return nil

		case "window/workDoneProgress/create":
			return reply(ctx, nil, nil)

		case "workspace/configuration":
			var params struct {
				Items []json.RawMessage `json:"items"`
			}
			if err := json.Unmarshal(req.Params(), &params); err != nil {
				return reply(ctx, nil, err)
			}
			// No configuration to offer; answer null per item.
			return reply(ctx, make([]interface{}, len(params.Items)), nil)

		case "client/registerCapability", "client/unregisterCapability":
			return reply(ctx, nil, nil)

		default:
			// Unknown server request; refuse rather than hang it.
			if _, ok := req.(*jsonrpc2.Call); ok {
				return reply(ctx, nil, jsonrpc2.ErrMethodNotFound)
			}
			return nil
		}
	}
}

func (c *Client) recordDiagnostics(raw json.RawMessage) {
	cp := make(json.RawMessage, len(raw))
	copy(cp, raw)
	c.mu.Lock()
	c.diags = append(c.diags, cp)
	close(c.diagCh)
	c.diagCh = make(chan struct{})
	c.mu.Unlock()
}

// tokenString renders a progress token, which the wire allows to be a
// string or a number.
func tokenString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return string(raw)
}

// Initialize runs the initialize/initialized handshake, pointing the
// server at root. commands, when non-empty, are advertised under the
// experimental capability so executeCommand tests can declare what the
// fixture should accept.
func (c *Client) Initialize(ctx context.Context, root string, commands []string) error {
	params := protocol.InitializeParams{
		ProcessID: int32(os.Getpid()),
		ClientInfo: &protocol.ClientInfo{
			Name:    "lspresso-shot",
			Version: "0.1.0",
		},
		RootURI:      uri.File(root),
		Capabilities: protocol.ClientCapabilities{},
		WorkspaceFolders: []protocol.WorkspaceFolder{
			{URI: string(uri.File(root)), Name: "lspresso-shot"},
		},
	}
	if len(commands) > 0 {
		params.Capabilities.Experimental = map[string]interface{}{
			"commands": commands,
		}
	}

	var result protocol.InitializeResult
	if _, err := c.conn.Call(ctx, protocol.MethodInitialize, params, &result); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if err := c.conn.Notify(ctx, protocol.MethodInitialized, protocol.InitializedParams{}); err != nil {
		return fmt.Errorf("initialized: %w", err)
	}
	return nil
}

// DidOpen announces the primary document and counts the attach trigger.
func (c *Client) DidOpen(ctx context.Context, docURI uri.URI, languageID, text string) error {
	params := protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        docURI,
			LanguageID: protocol.LanguageIdentifier(languageID),
			Version:    1,
			Text:       text,
		},
	}
	if err := c.conn.Notify(ctx, protocol.MethodTextDocumentDidOpen, params); err != nil {
		return fmt.Errorf("didOpen: %w", err)
	}
	c.signal.Observe(EventAttach, "")
	return nil
}

// WaitReady blocks until the readiness condition trips or ctx expires.
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.signal.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Request issues one request and returns the raw result payload. A
// null result comes back as the four bytes "null".
func (c *Client) Request(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	var raw json.RawMessage
	if _, err := c.conn.Call(ctx, method, params, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// WaitDiagnostics blocks until the n-th (1-based) publishDiagnostics
// notification has arrived and returns its raw params.
func (c *Client) WaitDiagnostics(ctx context.Context, n int) (json.RawMessage, error) {
	if n < 1 {
		n = 1
	}
	for {
		c.mu.Lock()
		if len(c.diags) >= n {
			raw := c.diags[n-1]
			c.mu.Unlock()
			return raw, nil
		}
		ch := c.diagCh
		c.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Shutdown runs the shutdown/exit sequence, tolerating servers that
// have already gone away.
func (c *Client) Shutdown(ctx context.Context) {
	if _, err := c.conn.Call(ctx, protocol.MethodShutdown, nil, nil); err != nil {
		c.logger.Debug("shutdown call failed", zap.Error(err))
	}
	if err := c.conn.Notify(ctx, protocol.MethodExit, nil); err != nil {
		c.logger.Debug("exit notify failed", zap.Error(err))
	}
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Done is closed when the connection's receive loop exits.
func (c *Client) Done() <-chan struct{} { return c.conn.Done() }
