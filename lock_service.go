// LockService: token-keyed, refcounted read/write locks with just-in-time
// acquisition (spec.md §4.6, §9).
//
// A requester bumps the entry's refcount under the service mutex before
// returning, so a concurrent requester cannot race between map lookup
// and Lock() and observe the entry evicted out from under it — the exact
// race the teacher's design note calls out for CAS-like token maps.
package vellum

import "sync"

type tokenLock struct {
	mu   sync.RWMutex
	refs int
}

// LockService maps tokens to shared read/write locks, evicting idle
// entries once their refcount returns to zero.
type LockService struct {
	mu    sync.Mutex
	locks map[string]*tokenLock
}

// NewLockService returns an empty LockService.
func NewLockService() *LockService {
	return &LockService{locks: make(map[string]*tokenLock)}
}

// acquireEntry returns the tokenLock for t, creating it if needed and
// bumping its refcount. Callers must call release exactly once.
func (s *LockService) acquireEntry(t Token) *tokenLock {
	s.mu.Lock()
	l, ok := s.locks[t.String()]
	if !ok {
		l = &tokenLock{}
		s.locks[t.String()] = l
	}
	l.refs++
	s.mu.Unlock()
	return l
}

func (s *LockService) releaseEntry(t Token, l *tokenLock) {
	s.mu.Lock()
	l.refs--
	if l.refs <= 0 {
		delete(s.locks, t.String())
	}
	s.mu.Unlock()
}

// LockMode selects the kind of hold a caller wants on a token.
type LockMode int

const (
	LockRead LockMode = iota
	LockWrite
)

// Held represents an acquired lock; call Release exactly once to give it
// back.
type Held struct {
	svc   *LockService
	token Token
	entry *tokenLock
	mode  LockMode
}

// Acquire blocks until the requested lock on token is held.
func (s *LockService) Acquire(token Token, mode LockMode) *Held {
	entry := s.acquireEntry(token)
	if mode == LockWrite {
		entry.mu.Lock()
	} else {
		entry.mu.RLock()
	}
	return &Held{svc: s, token: token, entry: entry, mode: mode}
}

// Upgrade releases a held read lock and acquires a write lock on the same
// token. Per spec.md §4.5, upgrades are never reentrant — the read lock
// is fully released before the write lock is requested.
func (s *LockService) Upgrade(h *Held) *Held {
	if h.mode == LockWrite {
		return h
	}
	h.entry.mu.RUnlock()
	h.entry.mu.Lock()
	h.mode = LockWrite
	return h
}

// Release gives back a held lock.
func (h *Held) Release() {
	if h.mode == LockWrite {
		h.entry.mu.Unlock()
	} else {
		h.entry.mu.RUnlock()
	}
	h.svc.releaseEntry(h.token, h.entry)
}

// NoopHeld is a pass-through lock used inside transactions, which are
// single-threaded by construction and so never need to actually block.
func NoopHeld() *Held { return nil }

// ReleaseNoop releases a lock that may be a real Held or a no-op (nil).
func ReleaseNoop(h *Held) {
	if h != nil {
		h.Release()
	}
}
