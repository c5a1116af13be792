// Ledger: the in-memory, write-optimized front end of the kernel
// (spec.md §4.1). A Ledger is an ordered sequence of Pages; every
// accepted write is appended to the current (tail) page and assigned
// a monotonically increasing version at the moment of acceptance.
//
// Reads are linear scans over the pages currently resident — the
// Ledger never builds a secondary index, trading scan cost for the
// simplicity and small working set the teacher's own buffer layer
// relies on (each page fills a bloom filter over its triples, but
// Ledger reads never consult it; a Ledger's page count is small enough
// that scanning is already cheap).
package vellum

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
)

// destination receives Writes transported out of the Ledger as pages
// fill and drain. Database implements this.
type destination interface {
	Accept(Write) error
	BeginSegment() error
}

// Ledger is the append-only front end backing an Engine.
type Ledger struct {
	mu      sync.Mutex
	dir     string
	cfg     Config
	pages   []*page
	seq     int
	version atomic.Uint64
}

// OpenLedger recovers any existing page files under dir (in sequence
// order) and returns a Ledger ready to accept writes.
func OpenLedger(dir string, cfg Config) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".vlp" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	l := &Ledger{dir: dir, cfg: cfg}
	var maxVersion uint64
	for _, name := range names {
		p, err := openPage(filepath.Join(dir, name), cfg)
		if err != nil {
			return nil, err
		}
		for _, w := range p.writes {
			if w.Version > maxVersion {
				maxVersion = w.Version
			}
		}
		l.seq++
		if len(l.pages) > 0 {
			l.pages[len(l.pages)-1].seal()
		}
		l.pages = append(l.pages, p)
	}
	l.version.Store(maxVersion)
	return l, nil
}

// currentPage returns the tail page, creating one if none exists or the
// existing tail is full enough that it should no longer accept size-n
// inserts.
func (l *Ledger) currentPage(minRemaining int64) (*page, error) {
	if len(l.pages) > 0 {
		tail := l.pages[len(l.pages)-1]
		if tail.remainingCapacity() >= minRemaining {
			return tail, nil
		}
		tail.seal()
	}
	p, err := openPage(pagePath(l.dir, l.seq), l.cfg)
	if err != nil {
		return nil, err
	}
	l.seq++
	l.pages = append(l.pages, p)
	return p, nil
}

// Append assigns the next version and durably records a write.
func (l *Ledger) Append(action Action, key string, value Value, record RecordID) (Write, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	version := l.version.Add(1)
	w := NewWrite(l.cfg.HashAlgorithm, action, key, value, record, version)

	frameSize := int64(pageFrameHeaderSize + w.EncodedSize())
	p, err := l.currentPage(frameSize)
	if err != nil {
		return Write{}, err
	}
	if err := p.insert(w); err != nil {
		return Write{}, err
	}
	return w, nil
}

// Transport drains at most one write from the oldest page into dest.
// It reports whether a write was transported, so a background drain
// loop can back off when the Ledger is idle. When a page becomes fully
// drained and is no longer the tail, it is closed, deleted, and dest is
// asked to begin a new segment (spec.md §4.1, §4.4).
func (l *Ledger) Transport(dest destination) (bool, error) {
	l.mu.Lock()
	if len(l.pages) == 0 {
		l.mu.Unlock()
		return false, nil
	}
	oldest := l.pages[0]
	l.mu.Unlock()

	w, ok := oldest.next()
	if !ok {
		return false, nil
	}
	if err := dest.Accept(w); err != nil {
		return false, err
	}
	oldest.markDrained()

	if oldest.fullyDrained() {
		l.mu.Lock()
		if len(l.pages) > 0 && l.pages[0] == oldest {
			l.pages = l.pages[1:]
		}
		l.mu.Unlock()

		oldest.close()
		oldest.removeFile()
		if err := dest.BeginSegment(); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Snapshot returns every write currently resident across all pages, in
// acceptance order. Callers may then filter it for a specific record,
// key, or timestamp cutoff.
func (l *Ledger) Snapshot() []Write {
	l.mu.Lock()
	pages := make([]*page, len(l.pages))
	copy(pages, l.pages)
	l.mu.Unlock()

	var out []Write
	for _, p := range pages {
		out = append(out, p.snapshot()...)
	}
	return out
}

// Verify reports, per spec.md §4.1, whether the (key, value, record)
// triple in probe is present as of timestamp: starting from priorExists
// (the state contributed by sealed segments older than the Ledger) and
// toggling once for every Ledger write with version <= timestamp that
// shares probe's triple.
func (l *Ledger) Verify(probe Write, timestamp uint64, priorExists bool) bool {
	present := priorExists
	for _, w := range l.Snapshot() {
		if w.Version > timestamp {
			break
		}
		if w.SameTriple(probe) {
			present = !present
		}
	}
	return present
}

// Close closes every open page file without deleting it.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for _, p := range l.pages {
		if err := p.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
