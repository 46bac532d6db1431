package client

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// CommandTransport runs the server under test as a subprocess and
// exposes its stdio as an io.ReadWriteCloser for the jsonrpc2 stream.
// When the run context expires the process is killed outright; a
// server stuck before its first response never survives the deadline.
type CommandTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	closeOnce sync.Once
	done      chan struct{}
	waitErr   error
}

// StartCommand launches path with args in dir. stderr is streamed to
// the given writer (the error artifact).
func StartCommand(ctx context.Context, path string, args []string, dir string, stderr io.Writer) (*CommandTransport, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", path, err)
	}

	t := &CommandTransport{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		done:   make(chan struct{}),
	}
	go func() {
		t.waitErr = cmd.Wait()
		close(t.done)
	}()
	return t, nil
}

func (t *CommandTransport) Read(p []byte) (int, error)  { return t.stdout.Read(p) }
func (t *CommandTransport) Write(p []byte) (int, error) { return t.stdin.Write(p) }

// Close shuts the server down: stdin is closed so a well-behaved
// server exits on EOF, then the process is killed if it lingers.
func (t *CommandTransport) Close() error {
	t.closeOnce.Do(func() {
		t.stdin.Close()
		select {
		case <-t.done:
		case <-time.After(time.Second):
			if t.cmd.Process != nil {
				t.cmd.Process.Kill()
			}
			<-t.done
		}
	})
	return t.waitErr
}

// Exited reports whether the subprocess has already terminated, with
// its wait error when it has.
func (t *CommandTransport) Exited() (bool, error) {
	select {
	case <-t.done:
		return true, t.waitErr
	default:
		return false, nil
	}
}
