// Segment: an immutable-once-sealed unit combining a Table chunk
// (locate by record), an Index chunk (locate by key, ordered by value),
// and a Corpus chunk (locate by search term) over the same set of
// Writes (spec.md §4.2).
//
// A Segment starts mutable — Database routes every Ledger-transported
// Write to the current segment's Accept — and becomes immutable at
// Seal, after which Sync persists it and no further Accepts are
// allowed. The three chunks are populated in parallel per write via
// errgroup, mirroring the teacher's "three independent concerns, one
// fan-out barrier per unit of work" shape used for its own multi-file
// writes.
package vellum

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Segment holds the Table/Index/Corpus chunk triad for one ordered
// range of Ledger-accepted writes.
type Segment struct {
	mu     sync.Mutex
	cfg    Config
	table  *chunk
	index  *chunk
	corpus *chunk

	count              int
	minVersion         uint64
	maxVersion         uint64
	syncVersion        uint64
	sealed             bool
	synced             bool
	path               string
}

// NewSegment returns an empty, mutable segment.
func NewSegment(cfg Config) *Segment {
	return &Segment{
		cfg:    cfg,
		table:  newTableChunk(cfg.ExpectedInsertions),
		index:  newIndexChunk(cfg.ExpectedInsertions),
		corpus: newCorpusChunk(cfg.ExpectedInsertions),
	}
}

// Accept records w into all three chunks. It is an error to call Accept
// after Seal.
func (s *Segment) Accept(w Write) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return fmt.Errorf("%w: segment sealed", ErrUnsupportedOperation)
	}

	var g errgroup.Group
	g.Go(func() error {
		s.table.acquire(w)
		return nil
	})
	g.Go(func() error {
		s.index.acquire(w)
		return nil
	})
	g.Go(func() error {
		for _, e := range corpusEntries(w, s.cfg) {
			s.corpus.acquire(e)
		}
		return nil
	})
	_ = g.Wait() // no fallible work above; kept for symmetry with acquire-time I/O paths

	s.count++
	if s.minVersion == 0 || w.Version < s.minVersion {
		s.minVersion = w.Version
	}
	if w.Version > s.maxVersion {
		s.maxVersion = w.Version
	}
	return nil
}

// Seal freezes the segment's chunks in sorted, range-seekable order.
// After Seal the segment accepts no further writes.
func (s *Segment) Seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return
	}
	s.table.seal()
	sealIndex(s.index)
	s.corpus.seal()
	s.sealed = true
}

// Count returns the number of writes accepted.
func (s *Segment) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Intersects reports whether the segment's version range overlaps
// [minTs, maxTs].
func (s *Segment) Intersects(minTs, maxTs uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return false
	}
	return s.minVersion <= maxTs && s.maxVersion >= minTs
}

// Similarity estimates set overlap between two segments as the larger
// of the Table and Index chunk filters' Jaccard estimates — used by the
// size-tiered optimizer to pick a merge pair.
func (s *Segment) Similarity(o *Segment) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.mu.Lock()
	defer o.mu.Unlock()
	sim := jaccard(s.table.filter, o.table.filter)
	if idx := jaccard(s.index.filter, o.index.filter); idx > sim {
		sim = idx
	}
	return sim
}

// RecordWrites returns every write belonging to record.
func (s *Segment) RecordWrites(record RecordID) []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tableRecordWrites(s.table, record)
}

// KeyRecordWrites returns every write for (key, record).
func (s *Segment) KeyRecordWrites(key string, record RecordID) []Write {
	return filterTriple(s.RecordWrites(record), key, record)
}

// KeyWrites returns every write for key across all records, ordered by
// value.
func (s *Segment) KeyWrites(key string) []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexKeyWrites(s.index, key)
}

// KeyRangeWrites returns writes for key whose value satisfies op.
func (s *Segment) KeyRangeWrites(key string, op Operator, values []Value) []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexRangeWrites(s.index, key, op, values)
}

// TermWrites returns writes indexed under a search term.
func (s *Segment) TermWrites(term string) []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return corpusTermWrites(s.corpus, term)
}

// MightContainRecord is a bloom pre-filter: false means record is
// definitely absent from this segment.
func (s *Segment) MightContainRecord(record RecordID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rb := recordBytes(record)
	return s.table.mightContain(rb[:])
}

// MightContainKey is a bloom pre-filter over the Index chunk: false
// means key is definitely absent from this segment.
func (s *Segment) MightContainKey(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.mightContain([]byte(key))
}

// MightContainTerm is a bloom pre-filter over the Corpus chunk: false
// means term is definitely absent from this segment.
func (s *Segment) MightContainTerm(term string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corpus.mightContain([]byte(term))
}

// AllWrites returns every write in the segment across all three chunks'
// shared underlying set — the Table chunk holds exactly one copy of
// each accepted write, so it is the canonical enumeration used for
// full scans (Database.AllRecordIDs and the optimizer's merge replay).
func (s *Segment) AllWrites() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.all()
}
