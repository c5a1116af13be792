// Database: the ordered set of sealed Segments plus one open mutable
// Segment that receives every write transported out of the Ledger
// (spec.md §4.2, §4.4).
//
// Database implements the destination interface Ledger.Transport drains
// into: Accept records a write into the mutable segment, BeginSegment
// seals it, persists it, and opens a fresh one — called once per fully
// drained Ledger page, so segment boundaries track page boundaries.
package vellum

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Database holds every durable Write the kernel has accepted, organized
// as immutable sealed Segments plus one mutable Segment under write.
type Database struct {
	mu      sync.RWMutex
	dir     string
	cfg     Config
	sealed  []*Segment
	mutable *Segment
	seq     int

	quarantined []string
}

// OpenDatabase loads every sealed segment under dir (natural-sorted by
// filename) and opens a fresh mutable segment for new writes. Segments
// that fail to load are quarantined and recorded, not fatal to Open.
func OpenDatabase(dir string, cfg Config) (*Database, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".vls" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	db := &Database{dir: dir, cfg: cfg, mutable: NewSegment(cfg)}
	for _, name := range names {
		path := filepath.Join(dir, name)
		seg, err := LoadSegment(path, cfg)
		if err != nil {
			db.quarantined = append(db.quarantined, path)
			_ = quarantineSegment(path)
			continue
		}
		db.sealed = append(db.sealed, seg)
		db.seq++
	}
	return db, nil
}

func segmentPath(dir string, seq int) string {
	return filepath.Join(dir, fmt.Sprintf("seg-%010d.vls", seq))
}

// Quarantined returns the paths of segment files rejected during Open.
func (db *Database) Quarantined() []string { return db.quarantined }

// Accept records w into the mutable segment.
func (db *Database) Accept(w Write) error {
	db.mu.RLock()
	mutable := db.mutable
	db.mu.RUnlock()
	return mutable.Accept(w)
}

// BeginSegment seals the current mutable segment (if non-empty),
// persists it to disk, and opens a new mutable segment.
func (db *Database) BeginSegment() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.mutable.Count() == 0 {
		return nil
	}
	db.mutable.Seal()
	path := segmentPath(db.dir, db.seq)
	db.seq++
	if err := db.mutable.Sync(path); err != nil {
		return err
	}
	db.sealed = append(db.sealed, db.mutable)
	db.mutable = NewSegment(db.cfg)
	return nil
}

func (db *Database) segments() ([]*Segment, *Segment) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	segs := make([]*Segment, len(db.sealed))
	copy(segs, db.sealed)
	return segs, db.mutable
}

// RecordWrites returns every Database write belonging to record, oldest
// segment first, mutable segment last.
func (db *Database) RecordWrites(record RecordID) []Write {
	segs, mutable := db.segments()
	var out []Write
	for _, seg := range segs {
		if seg.MightContainRecord(record) {
			out = append(out, seg.RecordWrites(record)...)
		}
	}
	out = append(out, mutable.RecordWrites(record)...)
	return out
}

// KeyRecordWrites returns every Database write for (key, record).
func (db *Database) KeyRecordWrites(key string, record RecordID) []Write {
	return filterTriple(db.RecordWrites(record), key, record)
}

// KeyWrites returns every Database write for key across all records.
func (db *Database) KeyWrites(key string) []Write {
	segs, mutable := db.segments()
	var out []Write
	for _, seg := range segs {
		if seg.MightContainKey(key) {
			out = append(out, seg.KeyWrites(key)...)
		}
	}
	out = append(out, mutable.KeyWrites(key)...)
	return out
}

// KeyRangeWrites returns Database writes for key whose value satisfies
// op against values.
func (db *Database) KeyRangeWrites(key string, op Operator, values []Value) []Write {
	segs, mutable := db.segments()
	var out []Write
	for _, seg := range segs {
		if seg.MightContainKey(key) {
			out = append(out, seg.KeyRangeWrites(key, op, values)...)
		}
	}
	out = append(out, mutable.KeyRangeWrites(key, op, values)...)
	return out
}

// TermWrites returns every Database write indexed under search term.
func (db *Database) TermWrites(term string) []Write {
	segs, mutable := db.segments()
	var out []Write
	for _, seg := range segs {
		if seg.MightContainTerm(term) {
			out = append(out, seg.TermWrites(term)...)
		}
	}
	out = append(out, mutable.TermWrites(term)...)
	return out
}

// AllRecordIDs enumerates every distinct record with at least one write
// in the Database, by scanning each segment's Table-chunk writes
// (Segment.AllWrites), in segment order.
func (db *Database) AllRecordIDs() []RecordID {
	segs, mutable := db.segments()
	seen := make(map[RecordID]bool)
	var out []RecordID
	for _, seg := range append(segs, mutable) {
		for _, w := range seg.AllWrites() {
			if !seen[w.Record] {
				seen[w.Record] = true
				out = append(out, w.Record)
			}
		}
	}
	return out
}

// Segments returns the current sealed segment list and the mutable
// segment, used by the optimizer to find a merge candidate pair.
func (db *Database) Segments() ([]*Segment, *Segment) {
	return db.segments()
}

// ReplaceSegments atomically substitutes replaced with merged, used by
// the optimizer after it has synced the merged segment to disk.
func (db *Database) ReplaceSegments(replaced []*Segment, merged *Segment) {
	db.mu.Lock()
	defer db.mu.Unlock()

	replacedSet := make(map[*Segment]bool, len(replaced))
	for _, s := range replaced {
		replacedSet[s] = true
	}
	kept := db.sealed[:0:0]
	inserted := false
	for _, s := range db.sealed {
		if replacedSet[s] {
			if !inserted {
				kept = append(kept, merged)
				inserted = true
			}
			continue
		}
		kept = append(kept, s)
	}
	if !inserted {
		kept = append(kept, merged)
	}
	db.sealed = kept
}
