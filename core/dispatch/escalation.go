package dispatch

import (
	"sync"
	"time"

	"github.com/kilianp07/techdispatch/core/clock"
)

type armedTimer struct {
	gen   uint64
	timer clock.Timer
	at    time.Time
}

// EscalationScheduler keeps at most one deadline timer per job. Each timer
// carries a generation number; a timer replaced by Arm or removed by
// Disarm never invokes its callback even if the clock already fired it.
type EscalationScheduler struct {
	clk     clock.Clock
	mu      sync.Mutex
	timers  map[string]*armedTimer
	gen     uint64
	stopped bool
}

// NewEscalationScheduler creates a scheduler driven by clk.
func NewEscalationScheduler(clk clock.Clock) *EscalationScheduler {
	if clk == nil {
		clk = clock.Real()
	}
	return &EscalationScheduler{clk: clk, timers: make(map[string]*armedTimer)}
}

// Arm schedules cb(jobID) after d, replacing any timer already armed for
// the job. It returns the deadline, or the zero time once stopped.
func (s *EscalationScheduler) Arm(jobID string, d time.Duration, cb func(jobID string)) time.Time {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return time.Time{}
	}
	if old, ok := s.timers[jobID]; ok {
		old.timer.Stop()
	}
	s.gen++
	gen := s.gen
	at := s.clk.Now().Add(d)
	t := s.clk.AfterFunc(d, func() {
		if !s.take(jobID, gen) {
			return
		}
		cb(jobID)
	})
	s.timers[jobID] = &armedTimer{gen: gen, timer: t, at: at}
	return at
}

// take removes the timer if it is still the current generation.
func (s *EscalationScheduler) take(jobID string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.timers[jobID]
	if !ok || cur.gen != gen {
		return false
	}
	delete(s.timers, jobID)
	return true
}

// Disarm cancels the job's timer. It reports whether one was armed.
func (s *EscalationScheduler) Disarm(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[jobID]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(s.timers, jobID)
	return true
}

// Armed returns the deadline of the job's timer.
func (s *EscalationScheduler) Armed(jobID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[jobID]
	if !ok {
		return time.Time{}, false
	}
	return t.at, true
}

// Len returns the number of armed timers.
func (s *EscalationScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every timer. Later Arm calls are ignored.
func (s *EscalationScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, t := range s.timers {
		t.timer.Stop()
		delete(s.timers, id)
	}
}
