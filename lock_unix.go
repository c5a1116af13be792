//go:build unix || linux || darwin

// flock(2) implementation for Unix platforms.
// Both methods are called with l.mu held by the exported Lock/Unlock.
package vellum

import "syscall"

func (l *dirLock) lock(mode OSLockMode) error {
	op := syscall.LOCK_SH | syscall.LOCK_NB
	if mode == OSLockExclusive {
		op = syscall.LOCK_EX | syscall.LOCK_NB
	}
	return syscall.Flock(int(l.f.Fd()), op)
}

func (l *dirLock) unlock() error {
	return syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
}
