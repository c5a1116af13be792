// Database maintenance repair, adapted from the teacher's Repair: where
// folio reorganises its single file into sorted sections, vellum's
// segments are already sorted at Seal time, so the equivalent
// maintenance concern here is re-validating every sealed segment
// currently in memory against what is actually on disk, quarantining
// any that have degraded since load (bitrot, truncation by an external
// process) instead of letting a corrupt read surface to a caller.
package vellum

// Repair re-loads every sealed segment from disk and replaces the
// in-memory set with only the ones that still validate, quarantining
// the rest. It returns the paths newly quarantined during this pass.
func (db *Database) Repair() ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var stillGood []*Segment
	var quarantinedNow []string
	for _, seg := range db.sealed {
		if seg.path == "" {
			stillGood = append(stillGood, seg)
			continue
		}
		reloaded, err := LoadSegment(seg.path, db.cfg)
		if err != nil {
			if qErr := quarantineSegment(seg.path); qErr == nil {
				quarantinedNow = append(quarantinedNow, seg.path)
				db.quarantined = append(db.quarantined, seg.path)
			}
			continue
		}
		stillGood = append(stillGood, reloaded)
	}
	db.sealed = stillGood
	return quarantinedNow, nil
}
