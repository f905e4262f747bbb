package dispatch

import "sync"

type refMutex struct {
	mu   sync.Mutex
	refs int
}

// jobLocks hands out one mutex per job id and forgets it once no caller
// holds or waits on it.
type jobLocks struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

func newJobLocks() *jobLocks {
	return &jobLocks{locks: make(map[string]*refMutex)}
}

// Lock blocks until the caller owns id and returns the unlock function.
func (l *jobLocks) Lock(id string) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &refMutex{}
		l.locks[id] = m
	}
	m.refs++
	l.mu.Unlock()

	m.mu.Lock()
	return func() {
		m.mu.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *jobLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
