package lspressoshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a test run when the case does not set its own.
const DefaultTimeout = 5 * time.Second

// TestFile is a file materialized into the test workspace before the
// server starts. Path is relative to the workspace source root.
type TestFile struct {
	Path     string
	Contents string
}

// NewTestFile returns a TestFile at the given relative path.
func NewTestFile(path, contents string) TestFile {
	return TestFile{Path: path, Contents: contents}
}

// StartMode selects how the harness decides the server is ready for
// the triggering request.
type StartMode int

const (
	// StartModeSimple counts readiness triggers: the didOpen handshake
	// itself is the first, each publishDiagnostics notification is
	// another. Threshold 1 means ready immediately after didOpen.
	StartModeSimple StartMode = iota
	// StartModeProgress waits for the k-th $/progress end notification
	// carrying a specific token.
	StartModeProgress
)

// StartType describes the readiness protocol for one test case.
type StartType struct {
	Mode      StartMode
	Threshold int    // Simple: trigger count; Progress: which end event (1-based)
	Token     string // Progress: the work-done token to watch
}

// StartSimple waits for n readiness triggers before issuing the
// request. n < 1 is treated as 1.
func StartSimple(n int) StartType {
	if n < 1 {
		n = 1
	}
	return StartType{Mode: StartModeSimple, Threshold: n}
}

// StartProgress waits for the ordinal-th $/progress end notification
// with the given token. ordinal < 1 is treated as 1.
func StartProgress(ordinal int, token string) StartType {
	if ordinal < 1 {
		ordinal = 1
	}
	return StartType{Mode: StartModeProgress, Threshold: ordinal, Token: token}
}

// CleanupPolicy controls what happens to the on-disk workspace after a run.
type CleanupPolicy int

const (
	// CleanupOnSuccess removes the workspace only when the test passed,
	// keeping failures around for inspection.
	CleanupOnSuccess CleanupPolicy = iota
	CleanupAlways
	CleanupNever
)

// TestCase describes one server invocation: which binary to run, what
// workspace to give it, where the cursor sits, and how long to wait.
// Setters return the receiver so cases read as a chain.
type TestCase struct {
	ServerPath string
	ServerArgs []string
	Source     TestFile
	OtherFiles []TestFile
	CursorPos  *protocol.Position
	Start      StartType
	Timeout    time.Duration
	Cleanup    CleanupPolicy

	testID      string
	logger      *zap.Logger
	dial        func(ctx context.Context) (io.ReadWriteCloser, error)
	responseNum *int
}

// NewTestCase returns a case that runs serverPath against a workspace
// holding source, with a five second timeout and keep-on-failure
// cleanup.
func NewTestCase(serverPath string, source TestFile) *TestCase {
	return &TestCase{
		ServerPath: serverPath,
		Source:     source,
		Start:      StartSimple(1),
		Timeout:    DefaultTimeout,
		testID:     uuid.NewString(),
	}
}

// WithCursor places the cursor for position-anchored requests.
func (tc *TestCase) WithCursor(line, character uint32) *TestCase {
	tc.CursorPos = &protocol.Position{Line: line, Character: character}
	return tc
}

// WithTimeout overrides the default deadline for the whole run.
func (tc *TestCase) WithTimeout(d time.Duration) *TestCase {
	tc.Timeout = d
	return tc
}

// WithOtherFile adds a supporting file next to the source file.
func (tc *TestCase) WithOtherFile(f TestFile) *TestCase {
	tc.OtherFiles = append(tc.OtherFiles, f)
	return tc
}

// WithStartType overrides the readiness protocol.
func (tc *TestCase) WithStartType(st StartType) *TestCase {
	tc.Start = st
	return tc
}

// WithCleanup overrides the workspace retention policy.
func (tc *TestCase) WithCleanup(p CleanupPolicy) *TestCase {
	tc.Cleanup = p
	return tc
}

// WithServerArgs sets extra argv entries passed to the server.
func (tc *TestCase) WithServerArgs(args ...string) *TestCase {
	tc.ServerArgs = append(tc.ServerArgs, args...)
	return tc
}

// WithLogger attaches a logger for harness diagnostics. The default is
// a no-op logger.
func (tc *TestCase) WithLogger(l *zap.Logger) *TestCase {
	tc.logger = l
	return tc
}

// WithDialer replaces the subprocess transport with an arbitrary
// connection, letting tests drive an in-process server over a pipe.
// ServerPath is not validated when a dialer is set.
func (tc *TestCase) WithDialer(dial func(ctx context.Context) (io.ReadWriteCloser, error)) *TestCase {
	tc.dial = dial
	return tc
}

// WithResponseNum writes the RESPONSE_NUM.txt side-channel into the
// test root before the server starts, selecting a canned response
// variant from servers that honor it (the bundled fixture does).
func (tc *TestCase) WithResponseNum(n int) *TestCase {
	tc.responseNum = &n
	return tc
}

// TestID returns the case's workspace identifier.
func (tc *TestCase) TestID() string { return tc.testID }

// Validate checks the case before any process is launched. Kind-level
// requirements (cursor presence) are checked by the entry points.
func (tc *TestCase) Validate() error {
	if tc.dial == nil {
		if tc.ServerPath == "" {
			return &SetupError{Reason: "server path is empty"}
		}
		if !isExecutable(tc.ServerPath) {
			return &SetupError{Reason: fmt.Sprintf("server %q is not an executable on this system", tc.ServerPath)}
		}
	}
	if err := validateRelPath(tc.Source.Path); err != nil {
		return err
	}
	if filepath.Ext(tc.Source.Path) == "" {
		return &SetupError{Reason: fmt.Sprintf("source file %q has no extension", tc.Source.Path)}
	}
	for _, f := range tc.OtherFiles {
		if err := validateRelPath(f.Path); err != nil {
			return err
		}
	}
	if tc.Start.Mode == StartModeProgress && tc.Start.Token == "" {
		return &SetupError{Reason: "progress start type requires a token"}
	}
	return nil
}

func validateRelPath(p string) error {
	if p == "" {
		return &SetupError{Reason: "file path is empty"}
	}
	if filepath.IsAbs(p) {
		return &SetupError{Reason: fmt.Sprintf("file path %q must be relative to the workspace", p)}
	}
	clean := filepath.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return &SetupError{Reason: fmt.Sprintf("file path %q escapes the workspace", p)}
	}
	return nil
}

// isExecutable resolves bare names through PATH and checks the
// executable bit on concrete paths.
func isExecutable(path string) bool {
	if !strings.ContainsRune(path, os.PathSeparator) {
		_, err := exec.LookPath(path)
		return err == nil
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}

func (tc *TestCase) log() *zap.Logger {
	if tc.logger != nil {
		return tc.logger
	}
	return zap.NewNop()
}
