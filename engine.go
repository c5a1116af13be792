// Engine: the Ledger-over-Database buffered store an AtomicOperation or
// Transaction actually reads and writes through (spec.md §4.1, §4.4).
//
// Writes land in the Ledger and are asynchronously transported into the
// Database by a background goroutine; reads merge both layers so a
// write is visible to readers the instant it is accepted, well before
// it reaches a sealed Segment. zerolog is used only at the two points
// spec.md's own prose calls "logged": an unrecoverable transport I/O
// error (this file) and transaction backup corruption during recovery
// (transaction.go).
package vellum

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const engineCacheCapacity = 4096

// Engine composes a Ledger and a Database behind one read/write API.
type Engine struct {
	cfg        Config
	ledger     *Ledger
	db         *Database
	locks      *LockService
	rangeLocks *RangeLockService
	cache      *lruCache
	log        zerolog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	refused atomic.Bool

	listenersMu sync.Mutex
	listeners   map[string][]chan uint64

	txnSeq atomic.Uint64

	dirLock *dirLock
}

// Open recovers the Ledger, Database, and any pending Transaction
// backups under cfg's directories, and starts the background drain
// loop that transports Ledger writes into the Database.
func Open(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()

	if err := os.MkdirAll(cfg.BufferDirectory, 0755); err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	lock, err := openDirLock(filepath.Join(cfg.BufferDirectory, ".vellum.lock"))
	if err != nil {
		return nil, fmt.Errorf("open engine: directory already in use: %w", err)
	}

	ledger, err := OpenLedger(cfg.BufferDirectory, cfg)
	if err != nil {
		lock.Close()
		return nil, err
	}
	db, err := OpenDatabase(cfg.DatabaseDirectory, cfg)
	if err != nil {
		lock.Close()
		return nil, err
	}
	if err := os.MkdirAll(cfg.TransactionsDirectory, 0755); err != nil {
		lock.Close()
		return nil, fmt.Errorf("open engine: %w", err)
	}

	e := &Engine{
		cfg:        cfg,
		ledger:     ledger,
		db:         db,
		locks:      NewLockService(),
		rangeLocks: NewRangeLockService(),
		cache:      newLRUCache(engineCacheCapacity),
		log:        zerolog.New(os.Stderr).With().Timestamp().Str("component", "engine").Logger(),
		stopCh:     make(chan struct{}),
		listeners:  make(map[string][]chan uint64),
		dirLock:    lock,
	}

	if err := e.recoverTransactions(); err != nil {
		lock.Close()
		return nil, err
	}

	e.wg.Add(1)
	go e.drainLoop()

	return e, nil
}

// Close stops the background drain loop and closes the Ledger's open
// page files.
func (e *Engine) Close() error {
	close(e.stopCh)
	e.wg.Wait()
	err := e.ledger.Close()
	if lockErr := e.dirLock.Close(); lockErr != nil && err == nil {
		err = lockErr
	}
	return err
}

func (e *Engine) drainLoop() {
	defer e.wg.Done()
	backoff := time.Millisecond
	const maxBackoff = 250 * time.Millisecond
	for {
		select {
		case <-e.stopCh:
			return
		default:
		}

		transported, err := e.ledger.Transport(e.db)
		if err != nil {
			e.log.Error().Err(err).Msg("ledger transport failed; refusing further writes")
			e.refused.Store(true)
			return
		}
		if transported {
			backoff = time.Millisecond
			continue
		}

		select {
		case <-e.stopCh:
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func cacheKey(key string, record RecordID) string {
	return fmt.Sprintf("%s\x00%d", key, uint64(record))
}

// valuesAt returns the present values for (key, record) as of an
// optional version cutoff, merging Database and Ledger writes.
func (e *Engine) valuesAt(key string, record RecordID, ts *uint64) []Value {
	writes := e.db.KeyRecordWrites(key, record)
	writes = append(writes, filterTriple(e.ledger.Snapshot(), key, record)...)
	return presentSet(foldPresence(writes, ts))
}

// Select returns the current values for (key, record).
func (e *Engine) Select(key string, record RecordID) []Value {
	if ts, ok := e.cache.Get(cacheKey(key, record)); ok {
		return ts
	}
	vals := e.valuesAt(key, record, nil)
	e.cache.Put(cacheKey(key, record), vals)
	return vals
}

// SelectAt returns the values for (key, record) as of timestamp.
func (e *Engine) SelectAt(key string, record RecordID, timestamp uint64) []Value {
	return e.valuesAt(key, record, &timestamp)
}

// Contains reports whether value is currently present for (key, record).
func (e *Engine) Contains(key string, value Value, record RecordID) bool {
	for _, v := range e.Select(key, record) {
		if v.Equal(value) {
			return true
		}
	}
	return false
}

// Add idempotently adds value to (key, record): a no-op, returning
// false, if the value is already present.
func (e *Engine) Add(key string, value Value, record RecordID) (bool, error) {
	if e.refused.Load() {
		return false, ErrClosed
	}
	if e.Contains(key, value, record) {
		return false, nil
	}
	if _, err := e.ledger.Append(ActionAdd, key, value, record); err != nil {
		return false, err
	}
	e.afterWrite(key, record)
	return true, nil
}

// Remove idempotently removes value from (key, record): a no-op,
// returning false, if the value is not present.
func (e *Engine) Remove(key string, value Value, record RecordID) (bool, error) {
	if e.refused.Load() {
		return false, ErrClosed
	}
	if !e.Contains(key, value, record) {
		return false, nil
	}
	if _, err := e.ledger.Append(ActionRemove, key, value, record); err != nil {
		return false, err
	}
	e.afterWrite(key, record)
	return true, nil
}

func (e *Engine) afterWrite(key string, record RecordID) {
	e.cache.Invalidate(cacheKey(key, record))
	version := e.ledger.version.Load()
	e.notify(KeyRecordToken(key, record).String(), version)
	e.notify(RecordToken(record).String(), version)
	e.notify(KeyToken(key).String(), version)
}

// notify delivers version to every channel watching token, without
// blocking on a slow or unbuffered receiver.
func (e *Engine) notify(token string, version uint64) {
	e.listenersMu.Lock()
	chans := e.listeners[token]
	e.listenersMu.Unlock()
	for _, ch := range chans {
		select {
		case ch <- version:
		default:
		}
	}
}

// Watch registers ch to receive the new version every time token's
// scope changes. The caller must eventually call Unwatch.
func (e *Engine) Watch(token Token, ch chan uint64) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	k := token.String()
	e.listeners[k] = append(e.listeners[k], ch)
}

// Unwatch removes ch from token's listener list.
func (e *Engine) Unwatch(token Token, ch chan uint64) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	k := token.String()
	entries := e.listeners[k]
	for i, c := range entries {
		if c == ch {
			e.listeners[k] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(e.listeners[k]) == 0 {
		delete(e.listeners, k)
	}
}

// RecordVersion returns the highest write version touching record, or 0
// if the record has never been written.
func (e *Engine) RecordVersion(record RecordID) uint64 {
	var max uint64
	for _, w := range e.db.RecordWrites(record) {
		if w.Version > max {
			max = w.Version
		}
	}
	for _, w := range filterRecord(e.ledger.Snapshot(), record) {
		if w.Version > max {
			max = w.Version
		}
	}
	return max
}

// KeyRecordVersion returns the highest write version touching (key,
// record), or 0 if never written.
func (e *Engine) KeyRecordVersion(key string, record RecordID) uint64 {
	var max uint64
	for _, w := range e.db.KeyRecordWrites(key, record) {
		if w.Version > max {
			max = w.Version
		}
	}
	for _, w := range filterTriple(e.ledger.Snapshot(), key, record) {
		if w.Version > max {
			max = w.Version
		}
	}
	return max
}

// KeyVersion returns the highest write version touching key across all
// records.
func (e *Engine) KeyVersion(key string) uint64 {
	var max uint64
	for _, w := range e.db.KeyWrites(key) {
		if w.Version > max {
			max = w.Version
		}
	}
	for _, w := range filterKey(e.ledger.Snapshot(), key) {
		if w.Version > max {
			max = w.Version
		}
	}
	return max
}

// Find returns the records whose (key, value) satisfies op against
// values, at the current version.
func (e *Engine) Find(key string, op Operator, values []Value) []RecordID {
	op, values = NormalizeOperator(op, values)
	writes := e.db.KeyRangeWrites(key, op, values)
	writes = append(writes, filterKey(e.ledger.Snapshot(), key)...)

	byRecord := make(map[RecordID][]Write)
	for _, w := range writes {
		byRecord[w.Record] = append(byRecord[w.Record], w)
	}

	var out []RecordID
	for record, rw := range byRecord {
		present := presentSet(foldPresence(rw, nil))
		for _, v := range present {
			if Satisfies(v, op, values) {
				out = append(out, record)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Search returns the records with a currently-present string value
// under key containing the given search term. A query that is, as a
// whole, a stopword never matches (spec.md §4.3), even a ledger-resident
// write whose raw value happens to contain it literally; the query is
// not split into words.
func (e *Engine) Search(key string, term string) []RecordID {
	if e.cfg.stopwordSet()[strings.ToLower(strings.TrimSpace(term))] {
		return nil
	}
	writes := filterKey(e.ledger.Snapshot(), key)
	seen := make(map[RecordID]bool)
	for _, tw := range e.db.TermWrites(term) {
		if !seen[tw.Record] {
			seen[tw.Record] = true
			writes = append(writes, e.db.KeyRecordWrites(key, tw.Record)...)
		}
	}

	byRecord := make(map[RecordID][]Write)
	for _, w := range writes {
		if w.Key != key {
			continue
		}
		byRecord[w.Record] = append(byRecord[w.Record], w)
	}

	var out []RecordID
	for record, rw := range byRecord {
		present := presentSet(foldPresence(rw, nil))
		for _, v := range present {
			if v.Type() == TypeString && containsFold(v.Str(), term) {
				out = append(out, record)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Describe returns the sorted, distinct keys with at least one
// currently-present value for record, as of an optional timestamp —
// supplements the distilled API with the original system's record
// introspection operation.
func (e *Engine) Describe(record RecordID, ts *uint64) []string {
	writes := e.db.RecordWrites(record)
	writes = append(writes, filterRecord(e.ledger.Snapshot(), record)...)

	byKey := make(map[string][]Write)
	for _, w := range writes {
		byKey[w.Key] = append(byKey[w.Key], w)
	}

	var keys []string
	for key, kw := range byKey {
		if len(presentSet(foldPresence(kw, ts))) > 0 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Revert reconciles the current value set for (key, record) to match
// what it was at timestamp, by adding back values present then but
// missing now and removing values present now but absent then —
// supplements the distilled API with the original system's point-in-
// time revert operation.
func (e *Engine) Revert(key string, record RecordID, timestamp uint64) error {
	cur := e.Select(key, record)
	hist := e.SelectAt(key, record, timestamp)

	for _, v := range cur {
		if !containsValue(hist, v) {
			if _, err := e.Remove(key, v, record); err != nil {
				return err
			}
		}
	}
	for _, v := range hist {
		if !containsValue(cur, v) {
			if _, err := e.Add(key, v, record); err != nil {
				return err
			}
		}
	}
	return nil
}

func containsValue(vals []Value, v Value) bool {
	for _, c := range vals {
		if c.Equal(v) {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return len(needle) == 0 || indexFold(haystack, needle) >= 0
}

func indexFold(haystack, needle string) int {
	h, n := toLower(haystack), toLower(needle)
	for i := 0; i+len(n) <= len(h); i++ {
		if h[i:i+len(n)] == n {
			return i
		}
	}
	return -1
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// StartAtomicOperation begins a new just-in-time-locking AtomicOperation
// against this engine.
func (e *Engine) StartAtomicOperation() *AtomicOperation {
	return newAtomicOperation(e)
}

// StartTransaction begins a new Transaction (an AtomicOperation with a
// durable backup) against this engine.
func (e *Engine) StartTransaction() (*Transaction, error) {
	return newTransaction(e)
}

func transactionPath(dir string, id uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d.txn", id))
}
