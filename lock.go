// OS-level file locking for cross-process coordination: Engine.Open
// takes an exclusive flock on a sentinel file inside BufferDirectory so
// two processes never open the same data directory at once (spec.md
// never rules out a second process attaching to the same directories;
// this is the ambient guard a real storage engine carries regardless).
//
// dirLock wraps flock(2) / LockFileEx with a mutex that guards the file
// handle's lifetime. The mutex is held for the entire duration of the
// flock syscall so that Fd() cannot race with Close() on the same
// *os.File.
//
// Close clears the handle under the mutex before closing the underlying
// file. This waits for any in-flight flock to complete, then makes
// subsequent Lock/Unlock calls no-ops; a closed dirLock is not reopened.
package vellum

import (
	"os"
	"sync"
)

// OSLockMode selects shared (read) or exclusive (write) directory
// locking.
type OSLockMode int

const (
	OSLockShared OSLockMode = iota
	OSLockExclusive
)

// dirLock coordinates OS-level file locks with safe handle teardown.
// The mu field serialises flock syscalls against Close so that a
// concurrent Close cannot invalidate the fd mid-syscall.
type dirLock struct {
	mu sync.Mutex
	f  *os.File
}

func openDirLock(path string) (*dirLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	l := &dirLock{f: f}
	if err := l.Lock(OSLockExclusive); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// Lock acquires a shared or exclusive flock. Returns nil immediately
// if the handle has been cleared by Close.
func (l *dirLock) Lock(mode OSLockMode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	return l.lock(mode)
}

// Unlock releases the flock. Returns nil immediately if the handle
// has been cleared by Close.
func (l *dirLock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	return l.unlock()
}

// Close releases the lock and closes the underlying file.
func (l *dirLock) Close() error {
	if err := l.Unlock(); err != nil {
		return err
	}
	l.mu.Lock()
	f := l.f
	l.f = nil
	l.mu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}
