package payee

import "sync"

// Locker serializes compliance and payout mutations for a single payee.
// A verify racing an initiate must not observe a status that is being
// superseded, so both services take the payee's lock around their
// read-decide-write sections.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*sync.Mutex)}
}

func (l *Locker) Lock(ref Ref) func() {
	l.mu.Lock()
	m, ok := l.locks[ref.String()]
	if !ok {
		m = &sync.Mutex{}
		l.locks[ref.String()] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
