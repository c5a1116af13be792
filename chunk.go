// Chunks: the three append-then-sort stores a Segment builds its Writes
// into (spec.md §4.2, §6). Table, Index, and Corpus differ only in the
// locator each derives from a Write and what range-seek structure that
// locator enables; the shared append/seal/search machinery lives here.
package vellum

import (
	"bytes"
	"sort"
)

// manifestEntry maps one distinct locator to the contiguous run of
// sorted writes sharing it, enabling binary search followed by a short
// linear scan — the same two-step lookup the teacher's index format
// uses, generalized from a single key type to an arbitrary locator.
type manifestEntry struct {
	locator []byte
	start   int
	end     int // exclusive
}

// chunk is an append-only, then sort-and-seal store of Writes keyed by
// a locator function. While open it simply appends in arrival order
// (acquire); seal() sorts by locator and builds the manifest once,
// after which the chunk is read-only.
type chunk struct {
	locate func(Write) []byte

	writes []Write
	filter *bloomFilter

	sealed   bool
	manifest []manifestEntry
}

func newChunk(locate func(Write) []byte, expected int) *chunk {
	return &chunk{locate: locate, filter: newBloomFilter(expected)}
}

// acquire appends w to the chunk. Must be called before seal. The
// bloom filter is seeded with the chunk's own locator bytes (not the
// full triple) so MightContain queries can test exactly what seek and
// seekRange look up — a record for Table, a key for Index, a term for
// Corpus.
func (c *chunk) acquire(w Write) {
	c.writes = append(c.writes, w)
	c.filter.Add(c.locate(w))
}

// seal sorts the accumulated writes by locator (stable, so writes
// sharing a locator keep their arrival order — required for Ledger
// replay to preserve version ordering within a group) and builds the
// manifest.
func (c *chunk) seal() {
	if c.sealed {
		return
	}
	sort.SliceStable(c.writes, func(i, j int) bool {
		return bytes.Compare(c.locate(c.writes[i]), c.locate(c.writes[j])) < 0
	})

	c.manifest = c.manifest[:0]
	i := 0
	for i < len(c.writes) {
		loc := c.locate(c.writes[i])
		j := i + 1
		for j < len(c.writes) && bytes.Equal(c.locate(c.writes[j]), loc) {
			j++
		}
		c.manifest = append(c.manifest, manifestEntry{locator: loc, start: i, end: j})
		i = j
	}
	c.sealed = true
}

// seek returns the writes sharing the given locator, or nil if absent.
func (c *chunk) seek(locator []byte) []Write {
	n := len(c.manifest)
	idx := sort.Search(n, func(i int) bool {
		return bytes.Compare(c.manifest[i].locator, locator) >= 0
	})
	if idx >= n || !bytes.Equal(c.manifest[idx].locator, locator) {
		return nil
	}
	e := c.manifest[idx]
	return c.writes[e.start:e.end]
}

// seekRange returns every write whose locator falls in [lo, hi), or in
// [lo, hi] when hiInclusive is set; a nil hi leaves the range unbounded
// above. Index range scans do not use it: indexRangeWrites binary
// searches by value inside a single key's group instead.
func (c *chunk) seekRange(lo, hi []byte, hiInclusive bool) []Write {
	n := len(c.manifest)
	start := sort.Search(n, func(i int) bool {
		return bytes.Compare(c.manifest[i].locator, lo) >= 0
	})
	var out []Write
	for i := start; i < n; i++ {
		if hi != nil {
			cmp := bytes.Compare(c.manifest[i].locator, hi)
			if (hiInclusive && cmp > 0) || (!hiInclusive && cmp >= 0) {
				break
			}
		}
		e := c.manifest[i]
		out = append(out, c.writes[e.start:e.end]...)
	}
	return out
}

// all returns every write in the chunk, in sealed (sorted) order.
func (c *chunk) all() []Write {
	return c.writes
}

// mightContain checks the chunk's bloom filter for a locator's
// presence. False means definitely absent.
func (c *chunk) mightContain(locator []byte) bool {
	return c.filter.Contains(locator)
}
