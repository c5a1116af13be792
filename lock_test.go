package vellum

import (
	"path/filepath"
	"testing"
)

func TestDirLockSecondOpenFailsFast(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".vellum.lock")
	first, err := openDirLock(path)
	if err != nil {
		t.Fatalf("openDirLock: %v", err)
	}
	defer first.Close()

	if _, err := openDirLock(path); err == nil {
		t.Error("a second exclusive openDirLock on the same path should fail immediately")
	}
}

func TestDirLockCloseReleasesForNextOpener(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".vellum.lock")
	first, err := openDirLock(path)
	if err != nil {
		t.Fatalf("openDirLock: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := openDirLock(path)
	if err != nil {
		t.Fatalf("openDirLock after Close should succeed, got %v", err)
	}
	second.Close()
}

func TestDirLockCloseIsIdempotentAfterClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".vellum.lock")
	l, err := openDirLock(path)
	if err != nil {
		t.Fatalf("openDirLock: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close on an already-cleared lock should be a no-op, got %v", err)
	}
	if err := l.Unlock(); err != nil {
		t.Fatalf("Unlock on a cleared lock should be a no-op, got %v", err)
	}
}
