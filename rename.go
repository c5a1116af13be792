// Key renaming, adapted from the teacher's document-label rename: where
// folio patches a single document's label in place, vellum's analogous
// operation moves every record's currently-present values from one key
// to another, expressed as the ordinary Add/Remove writes the rest of
// the kernel already understands — no in-place patch is possible here
// since a key's values are scattered across many chunks and ledger
// pages, not one contiguous record.
package vellum

import "fmt"

// RenameKey moves every record's current values from oldKey to newKey.
// Returns ErrInvalidKey if either key is empty, or ErrNotFound if
// oldKey currently has no present values anywhere.
func (e *Engine) RenameKey(oldKey, newKey string) error {
	if oldKey == "" || newKey == "" {
		return ErrInvalidKey
	}
	if oldKey == newKey {
		return nil
	}

	writes := e.db.KeyWrites(oldKey)
	writes = append(writes, filterKey(e.ledger.Snapshot(), oldKey)...)

	byRecord := make(map[RecordID][]Write)
	for _, w := range writes {
		byRecord[w.Record] = append(byRecord[w.Record], w)
	}

	moved := false
	for record, rw := range byRecord {
		for _, v := range presentSet(foldPresence(rw, nil)) {
			if _, err := e.Add(newKey, v, record); err != nil {
				return fmt.Errorf("rename key: %w", err)
			}
			if _, err := e.Remove(oldKey, v, record); err != nil {
				return fmt.Errorf("rename key: %w", err)
			}
			moved = true
		}
	}
	if !moved {
		return ErrNotFound
	}
	return nil
}
