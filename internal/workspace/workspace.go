// Package workspace provisions and tears down the isolated on-disk
// directory a test run gives to its server. Each run gets its own root
// under the system temp dir so concurrent tests never collide, and the
// root doubles as the drop-off point for run artifacts.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Artifact file names inside a workspace root.
const (
	resultsFile     = "results.json"
	errorFile       = "error.txt"
	logFile         = "log.txt"
	emptyMarker     = "empty"
	timeoutMarker   = "timeout"
	responseNumFile = "RESPONSE_NUM.txt"
	sourceDir       = "src"
)

// File is one file to materialize, at a path relative to the source
// root. A leading "../" segment is rejected by the caller's validation;
// RootFiles target the workspace root instead.
type File struct {
	Path     string
	Contents string
}

// Workspace is one provisioned test directory.
type Workspace struct {
	root   string
	logger *zap.Logger
}

// New creates the directory tree for the given test id under
// <tmp>/lspresso-shot/<id>.
func New(id string, logger *zap.Logger) (*Workspace, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	root := filepath.Join(os.TempDir(), "lspresso-shot", id)
	if err := os.MkdirAll(filepath.Join(root, sourceDir), 0o755); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", root, err)
	}
	return &Workspace{root: root, logger: logger}, nil
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string { return w.root }

// SourceRoot returns the directory the server is pointed at.
func (w *Workspace) SourceRoot() string { return filepath.Join(w.root, sourceDir) }

// Provision writes the given files under the source root, creating
// intermediate directories as needed.
func (w *Workspace) Provision(files []File) error {
	for _, f := range files {
		abs := filepath.Join(w.SourceRoot(), filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(abs, []byte(f.Contents), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
	}
	return nil
}

// FilePath returns the absolute path of a provisioned file.
func (w *Workspace) FilePath(rel string) string {
	return filepath.Join(w.SourceRoot(), filepath.FromSlash(rel))
}

// ResultsPath is where the run writes the captured response payload.
func (w *Workspace) ResultsPath() string { return filepath.Join(w.root, resultsFile) }

// ErrorPath collects server stderr and request errors.
func (w *Workspace) ErrorPath() string { return filepath.Join(w.root, errorFile) }

// LogPath collects window/logMessage traffic and harness notes.
func (w *Workspace) LogPath() string { return filepath.Join(w.root, logFile) }

// EmptyMarkerPath flags a null/absent response.
func (w *Workspace) EmptyMarkerPath() string { return filepath.Join(w.root, emptyMarker) }

// TimeoutMarkerPath flags a run that hit its deadline.
func (w *Workspace) TimeoutMarkerPath() string { return filepath.Join(w.root, timeoutMarker) }

// WriteResponseNum writes the side-channel index the fixture server
// reads to select its canned response variant.
func (w *Workspace) WriteResponseNum(n int) error {
	path := filepath.Join(w.root, responseNumFile)
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d", n)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", responseNumFile, err)
	}
	return nil
}

// Touch creates an empty marker file.
func (w *Workspace) Touch(path string) error {
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return fmt.Errorf("touch %s: %w", path, err)
	}
	return nil
}

// Append appends text to an artifact file, creating it if absent.
func (w *Workspace) Append(path, text string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	return nil
}

// Exists reports whether an artifact file is present.
func (w *Workspace) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadArtifact returns an artifact's contents, or "" when absent.
func (w *Workspace) ReadArtifact(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// Finish applies the retention decision. keep=true leaves the tree in
// place for inspection; removal failures are logged, never fatal.
func (w *Workspace) Finish(keep bool) {
	if keep {
		w.logger.Info("keeping test workspace", zap.String("root", w.root))
		return
	}
	if err := os.RemoveAll(w.root); err != nil {
		w.logger.Warn("failed to remove test workspace",
			zap.String("root", w.root), zap.Error(err))
	}
}

// RelativeToSource rewrites an absolute path under the source root into
// its workspace-relative form, or returns ok=false.
func (w *Workspace) RelativeToSource(abs string) (string, bool) {
	prefix := w.SourceRoot() + string(filepath.Separator)
	if !strings.HasPrefix(abs, prefix) {
		return "", false
	}
	return filepath.ToSlash(strings.TrimPrefix(abs, prefix)), true
}
