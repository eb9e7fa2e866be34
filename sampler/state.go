package sampler

import (
	"sync"
	"time"
)

type Counters struct {
	Cycles          int `json:"cycles"`
	Detections      int `json:"detections"`
	NoSubject       int `json:"no_subject"`
	FrameErrors     int `json:"frame_errors"`
	InferenceErrors int `json:"inference_errors"`
	PersistFailures int `json:"persist_failures"`
}

// View is a copy of the sampling state at one instant.
type View struct {
	SessionID        string
	LastPersist      time.Time
	SamplesPersisted int
	Persisting       bool
	Counters         Counters
}

// State is the per-run sampling state. Every mutation goes through its
// mutex; gen tells results of a finished run apart from the current one.
// inflight outlives runs: only the save that opened it closes it.
type State struct {
	mu          sync.Mutex
	gen         uint64
	lastPersist time.Time
	sessionID   string
	persisted   int
	inflight    chan struct{}
	counters    Counters
}

// begin starts a new run. lastPersist is the zero time, so the first
// detection of a run with a session is always due.
func (s *State) begin(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.lastPersist = time.Time{}
	s.sessionID = sessionID
	s.persisted = 0
	s.counters = Counters{}
}

func (s *State) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.sessionID = ""
	s.persisted = 0
}

// beginPersist claims the persistence slot when a session is active, no
// save is in flight and the throttle window has elapsed since the last
// confirmed save.
func (s *State) beginPersist(now time.Time, window time.Duration) (gen uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID == "" || s.inflight != nil {
		return 0, false
	}
	if now.Sub(s.lastPersist) < window {
		return 0, false
	}
	s.inflight = make(chan struct{})
	return s.gen, true
}

// endPersist releases the slot. Only a confirmed save of the current run
// moves lastPersist, and it never moves backwards.
func (s *State) endPersist(gen uint64, at time.Time, saved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight != nil {
		close(s.inflight)
		s.inflight = nil
	}
	if gen != s.gen {
		return
	}
	if !saved {
		s.counters.PersistFailures++
		return
	}
	if at.After(s.lastPersist) {
		s.lastPersist = at
	}
	s.persisted++
}

// pending returns a channel closed when the in-flight save settles, or
// nil when no save is in flight.
func (s *State) pending() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight
}

func (s *State) count(f func(*Counters)) {
	s.mu.Lock()
	f(&s.counters)
	s.mu.Unlock()
}

func (s *State) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		SessionID:        s.sessionID,
		LastPersist:      s.lastPersist,
		SamplesPersisted: s.persisted,
		Persisting:       s.inflight != nil,
		Counters:         s.counters,
	}
}
