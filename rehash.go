// Hash algorithm migration, adapted from the teacher's in-place
// algorithm swap: since a Write's Hash is never part of its on-disk
// encoding (Encode omits it; DecodeWrite always re-derives it from the
// stored triple) a rehash is just recomputing every resident Write's
// Hash field under the new algorithm and persisting the new
// Config.HashAlgorithm going forward — no migration of the write bytes
// themselves is needed.
package vellum

func rehashChunk(c *chunk, alg int) {
	for i := range c.writes {
		w := &c.writes[i]
		w.Hash = fingerprint(alg, w.Key, w.Value, w.Record)
	}
}

// Rehash recomputes every write's fingerprint under alg and adopts it
// as the segment's chunks' hashing basis going forward.
func (s *Segment) Rehash(alg int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rehashChunk(s.table, alg)
	rehashChunk(s.index, alg)
	rehashChunk(s.corpus, alg)
	s.cfg.HashAlgorithm = alg
}

// Rehash recomputes every sealed segment's fingerprints under alg,
// re-syncing each to its existing path, then switches the mutable
// segment (not yet durable) to the new algorithm too.
func (db *Database) Rehash(alg int) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, seg := range db.sealed {
		seg.Rehash(alg)
		if err := seg.Sync(seg.path); err != nil {
			return err
		}
	}
	db.mutable.Rehash(alg)
	db.cfg.HashAlgorithm = alg
	return nil
}

// Rehash recomputes every resident page's write fingerprints under alg
// and adopts it as the Ledger's hashing basis for future writes.
func (l *Ledger) Rehash(alg int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.pages {
		p.mu.Lock()
		for i := range p.writes {
			p.writes[i].Hash = fingerprint(alg, p.writes[i].Key, p.writes[i].Value, p.writes[i].Record)
		}
		p.cfg.HashAlgorithm = alg
		p.mu.Unlock()
	}
	l.cfg.HashAlgorithm = alg
}

// Rehash migrates the entire kernel — Ledger, Database, and future
// Config default — to a new hash algorithm in place.
func (e *Engine) Rehash(alg int) error {
	e.ledger.Rehash(alg)
	if err := e.db.Rehash(alg); err != nil {
		return err
	}
	e.cfg.HashAlgorithm = alg
	e.cache = newLRUCache(engineCacheCapacity)
	return nil
}
