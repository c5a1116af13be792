package vellum

import "testing"

func TestRangeLockReadBlockedByOverlappingWrite(t *testing.T) {
	svc := NewRangeLockService()
	wHeld, err := svc.Acquire(WriteRangeToken("age", NewInteger(30)))
	if err != nil {
		t.Fatalf("write acquire: %v", err)
	}
	defer wHeld.Release()

	_, err = svc.Acquire(ReadRangeToken("age", OpGreaterThan, NewInteger(20)))
	if err != ErrRangeBlocked {
		t.Errorf("expected ErrRangeBlocked, got %v", err)
	}
}

func TestRangeLockReadNotBlockedByNonOverlappingWrite(t *testing.T) {
	svc := NewRangeLockService()
	wHeld, err := svc.Acquire(WriteRangeToken("age", NewInteger(10)))
	if err != nil {
		t.Fatalf("write acquire: %v", err)
	}
	defer wHeld.Release()

	rHeld, err := svc.Acquire(ReadRangeToken("age", OpGreaterThan, NewInteger(20)))
	if err != nil {
		t.Fatalf("expected read to succeed, got %v", err)
	}
	rHeld.Release()
}

func TestRangeLockWriteBlockedByBracketingReads(t *testing.T) {
	svc := NewRangeLockService()
	upper, err := svc.Acquire(ReadRangeToken("age", OpLessThan, NewInteger(30)))
	if err != nil {
		t.Fatalf("upper read acquire: %v", err)
	}
	defer upper.Release()
	lower, err := svc.Acquire(ReadRangeToken("age", OpGreaterThan, NewInteger(30)))
	if err != nil {
		t.Fatalf("lower read acquire: %v", err)
	}
	defer lower.Release()

	_, err = svc.Acquire(WriteRangeToken("age", NewInteger(30)))
	if err != ErrRangeBlocked {
		t.Errorf("a write bracketed by complementary reads should be blocked, got %v", err)
	}
}

func TestRangeLockWriteNotBlockedBySingleSidedRead(t *testing.T) {
	svc := NewRangeLockService()
	upper, err := svc.Acquire(ReadRangeToken("age", OpLessThan, NewInteger(30)))
	if err != nil {
		t.Fatalf("upper read acquire: %v", err)
	}
	defer upper.Release()

	held, err := svc.Acquire(WriteRangeToken("age", NewInteger(30)))
	if err != nil {
		t.Errorf("a write with only one bracketing read should not be blocked, got %v", err)
	}
	if held != nil {
		held.Release()
	}
}

func TestRangeLockWriteBlockedByDirectlyOverlappingRead(t *testing.T) {
	svc := NewRangeLockService()
	read, err := svc.Acquire(ReadRangeToken("age", OpGreaterThan, NewInteger(20)))
	if err != nil {
		t.Fatalf("read acquire: %v", err)
	}
	defer read.Release()

	_, err = svc.Acquire(WriteRangeToken("age", NewInteger(25)))
	if err != ErrRangeBlocked {
		t.Errorf("a write whose value satisfies a live read's predicate should be blocked, got %v", err)
	}
}

func TestRangeLockReleaseUnblocks(t *testing.T) {
	svc := NewRangeLockService()
	wHeld, err := svc.Acquire(WriteRangeToken("age", NewInteger(30)))
	if err != nil {
		t.Fatalf("write acquire: %v", err)
	}
	wHeld.Release()

	rHeld, err := svc.Acquire(ReadRangeToken("age", OpGreaterThan, NewInteger(20)))
	if err != nil {
		t.Fatalf("expected read to succeed after release, got %v", err)
	}
	rHeld.Release()
}

func TestRangeLockIndependentKeysDoNotInterfere(t *testing.T) {
	svc := NewRangeLockService()
	wHeld, err := svc.Acquire(WriteRangeToken("age", NewInteger(30)))
	if err != nil {
		t.Fatalf("write acquire: %v", err)
	}
	defer wHeld.Release()

	rHeld, err := svc.Acquire(ReadRangeToken("height", OpGreaterThan, NewInteger(20)))
	if err != nil {
		t.Fatalf("a read on an unrelated key should never be blocked, got %v", err)
	}
	rHeld.Release()
}
