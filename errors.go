package lspressoshot

import (
	"fmt"
	"time"
)

// SetupError reports an invalid test case, caught before the server is
// ever launched.
type SetupError struct {
	Reason string
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("invalid test case: %s", e.Reason)
}

// IoError wraps a filesystem failure while provisioning or reading the
// test workspace.
type IoError struct {
	Op   string
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// ProcessError reports that the server subprocess could not be started
// or died before producing a result.
type ProcessError struct {
	Command string
	Err     error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("server process %q: %v", e.Command, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// TimeoutError reports that the test exceeded its deadline. The
// readiness counters captured at expiry distinguish a server that never
// became ready from one that went quiet mid-request.
type TimeoutError struct {
	Kind        Kind
	Timeout     time.Duration
	Ready       bool
	Triggers    int
	ProgressEnd int
}

func (e *TimeoutError) Error() string {
	if !e.Ready {
		return fmt.Sprintf("%s test timed out after %s before the server became ready (readiness triggers seen: %d, progress ends seen: %d)",
			e.Kind, e.Timeout, e.Triggers, e.ProgressEnd)
	}
	return fmt.Sprintf("%s test timed out after %s waiting for a response", e.Kind, e.Timeout)
}

// EmptyResponseError reports that the server answered with null or an
// absent result where the test expected a value.
type EmptyResponseError struct {
	Kind Kind
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("%s request produced an empty response", e.Kind)
}

// DeserializeError reports a response that arrived but does not decode
// into the expected result type. It is distinct from a mismatch: the
// shape is wrong, not the content.
type DeserializeError struct {
	Kind Kind
	Raw  string
	Err  error
}

func (e *DeserializeError) Error() string {
	return fmt.Sprintf("%s response does not deserialize: %v\nraw: %s", e.Kind, e.Err, e.Raw)
}

func (e *DeserializeError) Unwrap() error { return e.Err }

// MismatchError reports a response that decoded cleanly but differs
// from the expected value. Path names the shallowest differing field in
// JSON-path form; Diff is a colored rendering of the full expected and
// actual values.
type MismatchError struct {
	Kind     Kind
	Path     string
	Diff     string
	Expected string
	Actual   string
	Warning  string
}

func (e *MismatchError) Error() string {
	msg := fmt.Sprintf("%s response differs from expected at %s\n%s", e.Kind, e.Path, e.Diff)
	if e.Warning != "" {
		msg += "\nnote: " + e.Warning
	}
	return msg
}
