// AtomicOperation: optimistic version-expectation concurrency plus
// just-in-time locking at commit (spec.md §4.5).
//
// Every read or write captures the version of the token it touches at
// the moment of the touch — no lock is held while the operation runs.
// Only at commit does the operation acquire real locks, in a canonical
// token-byte order to avoid deadlocking against another committing
// operation, re-verify every captured expectation still matches the
// live version, and only then apply its staged writes. Find, a range
// read, is the one exception: it acquires a RangeLockService read hold
// immediately (not deferred to commit) and keeps it until the operation
// commits or aborts. Add and Remove take no range hold, so a write is
// never checked against, or blocked by, another operation's open range
// read.
package vellum

import (
	"sort"
	"sync"
)

type operationState int

const (
	opOpen operationState = iota
	opCommitting
	opCommitted
	opAborted
)

type pendingWrite struct {
	action Action
	key    string
	value  Value
	record RecordID
}

type versionExpectation struct {
	token    Token
	mode     LockMode
	expected uint64
}

// AtomicOperation is a single optimistic read/write session against an
// Engine.
type AtomicOperation struct {
	mu    sync.Mutex
	eng   *Engine
	state operationState

	expectations map[string]*versionExpectation
	writes       []pendingWrite
	rangeHolds   []*RangeHeld
}

func newAtomicOperation(e *Engine) *AtomicOperation {
	return &AtomicOperation{
		eng:          e,
		expectations: make(map[string]*versionExpectation),
	}
}

// expect records the current version of token the first time it is
// touched; later touches within the same operation reuse the captured
// expectation so re-reads of the operation's own writes don't shift it.
func (o *AtomicOperation) expect(token Token, mode LockMode, version uint64) {
	key := token.String()
	if existing, ok := o.expectations[key]; ok {
		if mode == LockWrite {
			existing.mode = LockWrite
		}
		return
	}
	o.expectations[key] = &versionExpectation{token: token, mode: mode, expected: version}
}

// stagedOverlay folds this operation's own uncommitted writes for (key,
// record) on top of the engine's committed values, so a read within the
// operation observes its own prior writes.
func (o *AtomicOperation) stagedOverlay(key string, record RecordID, base []Value) []Value {
	present := make(map[string]bool)
	values := make(map[string]Value)
	for _, v := range base {
		k := string(v.Bytes())
		values[k] = v
		present[k] = true
	}
	for _, w := range o.writes {
		if w.key != key || w.record != record {
			continue
		}
		k := string(w.value.Bytes())
		values[k] = w.value
		present[k] = !present[k]
	}
	out := make([]Value, 0, len(present))
	for k, ok := range present {
		if ok {
			out = append(out, values[k])
		}
	}
	return out
}

// Get returns the operation-local view of (key, record): the engine's
// committed values with this operation's own staged writes applied.
func (o *AtomicOperation) Get(key string, record RecordID) ([]Value, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != opOpen {
		return nil, ErrAtomicState
	}

	token := KeyRecordToken(key, record)
	o.expect(token, LockRead, o.eng.KeyRecordVersion(key, record))

	base := o.eng.Select(key, record)
	return o.stagedOverlay(key, record, base), nil
}

// Add stages an idempotent add of value to (key, record).
func (o *AtomicOperation) Add(key string, value Value, record RecordID) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != opOpen {
		return false, ErrAtomicState
	}

	token := KeyRecordToken(key, record)
	version := o.eng.KeyRecordVersion(key, record)
	o.expect(token, LockWrite, version)

	base := o.eng.Select(key, record)
	current := o.stagedOverlay(key, record, base)
	for _, v := range current {
		if v.Equal(value) {
			return false, nil
		}
	}
	o.writes = append(o.writes, pendingWrite{action: ActionAdd, key: key, value: value, record: record})
	return true, nil
}

// Remove stages an idempotent removal of value from (key, record).
func (o *AtomicOperation) Remove(key string, value Value, record RecordID) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != opOpen {
		return false, ErrAtomicState
	}

	token := KeyRecordToken(key, record)
	version := o.eng.KeyRecordVersion(key, record)
	o.expect(token, LockWrite, version)

	base := o.eng.Select(key, record)
	current := o.stagedOverlay(key, record, base)
	found := false
	for _, v := range current {
		if v.Equal(value) {
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}
	o.writes = append(o.writes, pendingWrite{action: ActionRemove, key: key, value: value, record: record})
	return true, nil
}

// Find performs a range-sensitive read, holding a RangeLockService
// token for the remainder of the operation so a concurrent write cannot
// silently change the result set before commit.
func (o *AtomicOperation) Find(key string, op Operator, values []Value) ([]RecordID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != opOpen {
		return nil, ErrAtomicState
	}

	nop, nvalues := NormalizeOperator(op, values)
	held, err := o.eng.rangeLocks.Acquire(ReadRangeToken(key, nop, nvalues...))
	if err != nil {
		o.state = opAborted
		o.releaseRangeHoldsLocked()
		return nil, err
	}
	o.rangeHolds = append(o.rangeHolds, held)
	o.expect(KeyToken(key), LockRead, o.eng.KeyVersion(key))

	return o.eng.Find(key, op, values), nil
}

func (o *AtomicOperation) releaseRangeHoldsLocked() {
	for _, h := range o.rangeHolds {
		h.Release()
	}
	o.rangeHolds = nil
}

// sortedExpectations returns the operation's version expectations sorted
// by token byte order, the canonical lock-acquisition order that avoids
// deadlocking against another concurrently-committing operation.
func (o *AtomicOperation) sortedExpectations() []*versionExpectation {
	out := make([]*versionExpectation, 0, len(o.expectations))
	for _, e := range o.expectations {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].token.Bytes()) < string(out[j].token.Bytes())
	})
	return out
}

// Commit re-verifies every captured version expectation under real
// locks and, if every expectation still holds, durably applies the
// operation's staged writes. A stale expectation aborts the operation
// and returns ErrAtomicState; the caller should retry as a new
// operation.
func (o *AtomicOperation) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.commitLocked()
}

func (o *AtomicOperation) commitLocked() error {
	if o.state != opOpen {
		return ErrAtomicState
	}
	o.state = opCommitting

	expectations := o.sortedExpectations()
	held := make([]*Held, 0, len(expectations))
	for _, e := range expectations {
		h := o.eng.locks.Acquire(e.token, e.mode)
		held = append(held, h)
	}
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Release()
		}
		o.releaseRangeHoldsLocked()
	}()

	for _, e := range expectations {
		var current uint64
		switch {
		case len(e.token.raw) > 0 && e.token.raw[0] == 'K':
			current = o.keyRecordVersionFromToken(e.token)
		default:
			current = o.versionFromToken(e.token)
		}
		if current != e.expected {
			o.state = opAborted
			return ErrAtomicState
		}
	}

	for _, w := range o.writes {
		if _, err := o.eng.ledger.Append(w.action, w.key, w.value, w.record); err != nil {
			o.state = opAborted
			return err
		}
		o.eng.afterWrite(w.key, w.record)
	}

	o.state = opCommitted
	return nil
}

// versionFromToken re-derives the current version for a RecordToken or
// KeyToken scope (the only two non-'K' token kinds) by re-running the
// same lookup used when the expectation was first captured.
func (o *AtomicOperation) versionFromToken(t Token) uint64 {
	raw := t.raw
	if len(raw) == 0 {
		return 0
	}
	switch raw[0] {
	case 'R':
		record := decodeRecordToken(raw)
		return o.eng.RecordVersion(record)
	case 'Y':
		key := decodeKeyToken(raw)
		return o.eng.KeyVersion(key)
	default:
		return 0
	}
}

func (o *AtomicOperation) keyRecordVersionFromToken(t Token) uint64 {
	key, record := decodeKeyRecordToken(t.raw)
	return o.eng.KeyRecordVersion(key, record)
}

// Abort discards every staged write and releases any held range locks.
func (o *AtomicOperation) Abort() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == opOpen || o.state == opCommitting {
		o.state = opAborted
	}
	o.releaseRangeHoldsLocked()
}
