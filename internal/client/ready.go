package client

import "sync"

// Event is one observation fed into a readiness Signal.
type Event int

const (
	// EventAttach fires once, after initialize/initialized/didOpen
	// complete. It counts as the first simple-mode trigger.
	EventAttach Event = iota
	// EventDiagnostics fires on every publishDiagnostics notification.
	EventDiagnostics
	// EventProgressEnd fires on every $/progress end notification.
	EventProgressEnd
)

// StartSpec tells a Signal when the server counts as ready.
type StartSpec struct {
	Progress  bool
	Threshold int
	Token     string
}

// Signal decides when the server under test is ready for the
// triggering request. It is fed events from the notification handler
// and trips exactly once; observations after that are still counted so
// a timeout can report what was seen.
type Signal struct {
	spec StartSpec

	mu           sync.Mutex
	triggers     int
	progressEnds int
	tripped      bool
	ready        chan struct{}
}

// NewSignal returns a signal for the given start spec. A zero
// threshold is treated as 1.
func NewSignal(spec StartSpec) *Signal {
	if spec.Threshold < 1 {
		spec.Threshold = 1
	}
	return &Signal{spec: spec, ready: make(chan struct{})}
}

// Observe feeds one event. token is only meaningful for
// EventProgressEnd.
func (s *Signal) Observe(ev Event, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev {
	case EventAttach, EventDiagnostics:
		s.triggers++
		if !s.spec.Progress && !s.tripped && s.triggers >= s.spec.Threshold {
			s.trip()
		}
	case EventProgressEnd:
		if s.spec.Progress && token != s.spec.Token {
			return
		}
		s.progressEnds++
		if s.spec.Progress && !s.tripped && s.progressEnds >= s.spec.Threshold {
			s.trip()
		}
	}
}

func (s *Signal) trip() {
	s.tripped = true
	close(s.ready)
}

// Ready is closed once the readiness condition is met.
func (s *Signal) Ready() <-chan struct{} { return s.ready }

// Tripped reports whether readiness was reached.
func (s *Signal) Tripped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tripped
}

// Counts returns the observations so far, for timeout diagnostics.
func (s *Signal) Counts() (triggers, progressEnds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggers, s.progressEnds
}
