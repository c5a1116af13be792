// Size-tiered optimizer: periodically merges the two most similar
// adjacent sealed segments into one, trading the cost of rewriting
// their writes for fewer segments to scan on read (spec.md §9,
// supplemented — the distilled spec names the concern but leaves the
// selection policy to this implementation).
//
// The merge replay splits the two segments' writes into parts and runs
// them through an errgroup limited to one task at a time, so the parts
// reach the new segment in version order; each Accept still fans its
// write out to the three chunks concurrently.
package vellum

import (
	"fmt"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"
)

// minSimilarityToMerge is the Jaccard threshold below which two
// segments are not worth merging — avoids rewriting unrelated data just
// because it happens to be adjacent.
const minSimilarityToMerge = 0.15

// Optimize finds the most similar adjacent pair of sealed segments and,
// if their similarity clears minSimilarityToMerge, merges them into one
// new segment. It reports whether a merge happened, so a caller driving
// Optimize in a loop knows when to stop.
func (db *Database) Optimize() (bool, error) {
	segs, _ := db.Segments()
	if len(segs) < 2 {
		return false, nil
	}

	bestIdx := -1
	bestScore := -1.0
	for i := 0; i+1 < len(segs); i++ {
		score := segs[i].Similarity(segs[i+1])
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestIdx < 0 || bestScore < minSimilarityToMerge {
		return false, nil
	}

	a, b := segs[bestIdx], segs[bestIdx+1]
	merged, err := mergeSegments(a, b, db.cfg)
	if err != nil {
		return false, err
	}

	db.mu.Lock()
	seq := db.seq
	db.seq++
	db.mu.Unlock()

	path := segmentPath(db.dir, seq)
	if err := merged.Sync(path); err != nil {
		return false, err
	}

	oldPaths := []string{a.path, b.path}
	db.ReplaceSegments([]*Segment{a, b}, merged)
	for _, p := range oldPaths {
		if p != "" {
			_ = os.Remove(p)
		}
	}
	return true, nil
}

// mergeSegments replays every write from a and b into a new segment, in
// version order, and seals it.
func mergeSegments(a, b *Segment, cfg Config) (*Segment, error) {
	merged := NewSegment(cfg)

	writes := make([]Write, 0, a.Count()+b.Count())
	writes = append(writes, a.AllWrites()...)
	writes = append(writes, b.AllWrites()...)
	sort.SliceStable(writes, func(i, j int) bool { return writes[i].Version < writes[j].Version })

	const fanOut = 4
	var g errgroup.Group
	g.SetLimit(1)
	chunks := splitWrites(writes, fanOut)

	for _, part := range chunks {
		part := part
		g.Go(func() error {
			for _, w := range part {
				if err := merged.Accept(w); err != nil {
					return fmt.Errorf("merge segments: %w", err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged.Seal()
	return merged, nil
}

func splitWrites(writes []Write, n int) [][]Write {
	if len(writes) == 0 {
		return nil
	}
	if n > len(writes) {
		n = len(writes)
	}
	out := make([][]Write, 0, n)
	size := (len(writes) + n - 1) / n
	for i := 0; i < len(writes); i += size {
		end := i + size
		if end > len(writes) {
			end = len(writes)
		}
		out = append(out, writes[i:end])
	}
	return out
}
