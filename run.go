package lspressoshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/WillLillis/lspresso-shot/internal/client"
	"github.com/WillLillis/lspresso-shot/internal/normalize"
	"github.com/WillLillis/lspresso-shot/internal/workspace"
)

type runMode int

const (
	// modeRequest issues the kind's method once and captures the reply.
	modeRequest runMode = iota
	// modeDelta issues semanticTokens/full first to obtain a
	// previousResultId, then the delta request.
	modeDelta
	// modeDiagnostics issues no request; the result is the params of a
	// captured publishDiagnostics notification.
	modeDiagnostics
	// modeCallHierarchy prepares the call hierarchy item at the cursor
	// first, then asks for its incoming or outgoing calls.
	modeCallHierarchy
)

// runConfig is the per-kind parameterization of the executor.
type runConfig struct {
	mode     runMode
	shape    normalize.Shape
	commands []string
	// params builds the request body once the document URI is known.
	params func(docURI uri.URI) interface{}
	// deltaParams builds the second-phase body for modeDelta.
	deltaParams func(docURI uri.URI, previousResultID string) interface{}
}

// outcome is what one run produced: the normalized payload, or nil for
// an empty response, plus the workspace for artifact inspection and
// retention.
type outcome struct {
	ws      *workspace.Workspace
	payload json.RawMessage
}

// execute runs the whole pipeline for one test case and kind:
// provision, launch, handshake, readiness, the triggering request,
// capture, normalization. Artifacts land in the workspace as they
// happen so a retained directory tells the full story.
func (tc *TestCase) execute(kind Kind, cfg runConfig) (out *outcome, err error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if kind.needsCursor() && tc.CursorPos == nil {
		return nil, &SetupError{Reason: fmt.Sprintf("%s requires a cursor position", kind)}
	}

	ws, err := workspace.New(tc.testID, tc.log())
	if err != nil {
		return nil, &IoError{Op: "create workspace", Path: tc.testID, Err: err}
	}
	out = &outcome{ws: ws}

	files := make([]workspace.File, 0, len(tc.OtherFiles)+1)
	files = append(files, workspace.File{Path: tc.Source.Path, Contents: tc.Source.Contents})
	for _, f := range tc.OtherFiles {
		files = append(files, workspace.File{Path: f.Path, Contents: f.Contents})
	}
	if err := ws.Provision(files); err != nil {
		return out, &IoError{Op: "provision workspace", Path: ws.Root(), Err: err}
	}
	if tc.responseNum != nil {
		if err := ws.WriteResponseNum(*tc.responseNum); err != nil {
			return out, &IoError{Op: "write side-channel", Path: ws.Root(), Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), tc.Timeout)
	defer cancel()

	errArtifact, err := os.OpenFile(ws.ErrorPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return out, &IoError{Op: "open", Path: ws.ErrorPath(), Err: err}
	}
	defer errArtifact.Close()
	logArtifact, err := os.OpenFile(ws.LogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return out, &IoError{Op: "open", Path: ws.LogPath(), Err: err}
	}
	defer logArtifact.Close()

	rwc, err := tc.connect(ctx, ws, errArtifact)
	if err != nil {
		return out, &ProcessError{Command: tc.ServerPath, Err: err}
	}
	defer rwc.Close()

	signal := client.NewSignal(client.StartSpec{
		Progress:  tc.Start.Mode == StartModeProgress,
		Threshold: tc.Start.Threshold,
		Token:     tc.Start.Token,
	})
	cl := client.New(rwc, signal, logArtifact, tc.log())
	cl.Go(ctx)
	defer cl.Close()

	docURI := uri.File(ws.FilePath(tc.Source.Path))

	if err := cl.Initialize(ctx, ws.SourceRoot(), cfg.commands); err != nil {
		return out, tc.classify(ctx, kind, signal, ws, errArtifact, err)
	}
	if err := cl.DidOpen(ctx, docURI, languageID(tc.Source.Path), tc.Source.Contents); err != nil {
		return out, tc.classify(ctx, kind, signal, ws, errArtifact, err)
	}
	if err := cl.WaitReady(ctx); err != nil {
		return out, tc.classify(ctx, kind, signal, ws, errArtifact, err)
	}

	var raw json.RawMessage
	switch cfg.mode {
	case modeDiagnostics:
		// Simple threshold counts the didOpen attach as the first
		// trigger, so n triggers means n-1 diagnostics have arrived.
		nth := 1
		if tc.Start.Mode == StartModeSimple && tc.Start.Threshold > 1 {
			nth = tc.Start.Threshold - 1
		}
		params, derr := cl.WaitDiagnostics(ctx, nth)
		if derr != nil {
			return out, tc.classify(ctx, kind, signal, ws, errArtifact, derr)
		}
		var body struct {
			Diagnostics json.RawMessage `json:"diagnostics"`
		}
		if jerr := json.Unmarshal(params, &body); jerr != nil {
			return out, &DeserializeError{Kind: kind, Raw: string(params), Err: jerr}
		}
		raw = body.Diagnostics

	case modeCallHierarchy:
		prepared, rerr := cl.Request(ctx, methodPrepareCallHierarchy, cfg.params(docURI))
		if rerr != nil {
			return out, tc.classify(ctx, kind, signal, ws, errArtifact, rerr)
		}
		var items []json.RawMessage
		if jerr := json.Unmarshal(prepared, &items); jerr != nil {
			return out, &DeserializeError{Kind: kind, Raw: string(prepared), Err: jerr}
		}
		if len(items) == 0 {
			if terr := ws.Touch(ws.EmptyMarkerPath()); terr != nil {
				return out, &IoError{Op: "touch", Path: ws.EmptyMarkerPath(), Err: terr}
			}
			return out, nil
		}
		raw, rerr = cl.Request(ctx, kind.Method(), map[string]interface{}{
			"item": items[0],
		})
		if rerr != nil {
			return out, tc.classify(ctx, kind, signal, ws, errArtifact, rerr)
		}

	case modeDelta:
		full, rerr := cl.Request(ctx, methodSemanticTokensFull, cfg.params(docURI))
		if rerr != nil {
			return out, tc.classify(ctx, kind, signal, ws, errArtifact, rerr)
		}
		var prev struct {
			ResultID string `json:"resultId"`
		}
		if jerr := json.Unmarshal(full, &prev); jerr != nil {
			return out, &DeserializeError{Kind: kind, Raw: string(full), Err: jerr}
		}
		raw, rerr = cl.Request(ctx, kind.Method(), cfg.deltaParams(docURI, prev.ResultID))
		if rerr != nil {
			return out, tc.classify(ctx, kind, signal, ws, errArtifact, rerr)
		}

	default:
		var rerr error
		raw, rerr = cl.Request(ctx, kind.Method(), cfg.params(docURI))
		if rerr != nil {
			return out, tc.classify(ctx, kind, signal, ws, errArtifact, rerr)
		}
	}

	// Polite teardown on a short leash; the run deadline may be nearly
	// spent by now.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	cl.Shutdown(shutdownCtx)
	shutdownCancel()

	if emptyPayload(raw) {
		if err := ws.Touch(ws.EmptyMarkerPath()); err != nil {
			return out, &IoError{Op: "touch", Path: ws.EmptyMarkerPath(), Err: err}
		}
		return out, nil
	}

	collapsed, err := normalize.CollapseEscapes(raw)
	if err != nil {
		return out, &DeserializeError{Kind: kind, Raw: string(raw), Err: err}
	}
	if err := os.WriteFile(ws.ResultsPath(), collapsed, 0o644); err != nil {
		return out, &IoError{Op: "write", Path: ws.ResultsPath(), Err: err}
	}
	payload, err := normalize.Normalize(collapsed, normalize.Options{
		SourceRoot: ws.SourceRoot(),
		Shape:      cfg.shape,
	})
	if err != nil {
		return out, &DeserializeError{Kind: kind, Raw: string(collapsed), Err: err}
	}
	out.payload = payload
	return out, nil
}

// connect gives the configured transport: an in-process dialer when the
// test supplied one, otherwise the server subprocess.
func (tc *TestCase) connect(ctx context.Context, ws *workspace.Workspace, stderr io.Writer) (io.ReadWriteCloser, error) {
	if tc.dial != nil {
		return tc.dial(ctx)
	}
	return client.StartCommand(ctx, tc.ServerPath, tc.ServerArgs, ws.SourceRoot(), stderr)
}

// classify turns a pipeline error into its taxonomy form. Deadline
// expiry leaves a timeout marker and reports the readiness counters;
// anything else is appended to the error artifact and returned as-is.
func (tc *TestCase) classify(ctx context.Context, kind Kind, signal *client.Signal, ws *workspace.Workspace, errArtifact io.Writer, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if terr := ws.Touch(ws.TimeoutMarkerPath()); terr != nil {
			tc.log().Warn("failed to write timeout marker", zap.Error(terr))
		}
		triggers, ends := signal.Counts()
		return &TimeoutError{
			Kind:        kind,
			Timeout:     tc.Timeout,
			Ready:       signal.Tripped(),
			Triggers:    triggers,
			ProgressEnd: ends,
		}
	}
	fmt.Fprintf(errArtifact, "%v\n", err)
	return fmt.Errorf("%s request: %w", kind, err)
}

func emptyPayload(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// languageID derives the didOpen language identifier from the source
// file extension. Unknown extensions pass through bare, which is what
// single-language servers tend to register anyway.
func languageID(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	switch ext {
	case "rs":
		return "rust"
	case "py":
		return "python"
	case "js":
		return "javascript"
	case "ts":
		return "typescript"
	case "md":
		return "markdown"
	case "c", "h":
		return "c"
	case "cc", "cpp", "hpp":
		return "cpp"
	case "go", "json", "toml", "yaml", "html", "css", "lua", "zig":
		return ext
	default:
		return ext
	}
}
