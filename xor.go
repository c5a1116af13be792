// Shared XOR-parity folding: the presence rule underlying every read
// path in the kernel (spec.md §3, invariant 1). A value is present for
// a (record, key) iff it has been added an odd number of times across
// every Write matching that triple, regardless of source (Ledger page
// or sealed Segment) or order — add/remove are emitted idempotently by
// Engine, so occurrences of one triple always alternate and a simple
// occurrence-count parity is equivalent to counting ADDs minus REMOVEs.
package vellum

// foldPresence folds a set of Writes already filtered to one (record,
// key) pair (or one (key) pair, for key-wide folds) into the set of
// values currently present, applying an optional version cutoff.
func foldPresence(writes []Write, cutoff *uint64) map[string]presentValue {
	out := make(map[string]presentValue)
	for _, w := range writes {
		if cutoff != nil && w.Version > *cutoff {
			continue
		}
		k := string(w.Value.Bytes())
		pv := out[k]
		pv.value = w.Value
		pv.present = !pv.present
		out[k] = pv
	}
	return out
}

type presentValue struct {
	value   Value
	present bool
}

// presentSet extracts just the present values from a fold.
func presentSet(folded map[string]presentValue) []Value {
	out := make([]Value, 0, len(folded))
	for _, pv := range folded {
		if pv.present {
			out = append(out, pv.value)
		}
	}
	return out
}

// filterTriple returns the subset of writes matching key and record.
func filterTriple(writes []Write, key string, record RecordID) []Write {
	out := writes[:0:0]
	for _, w := range writes {
		if w.Key == key && w.Record == record {
			out = append(out, w)
		}
	}
	return out
}

// filterRecord returns the subset of writes belonging to record.
func filterRecord(writes []Write, record RecordID) []Write {
	out := writes[:0:0]
	for _, w := range writes {
		if w.Record == record {
			out = append(out, w)
		}
	}
	return out
}

// filterKey returns the subset of writes belonging to key across all
// records.
func filterKey(writes []Write, key string) []Write {
	out := writes[:0:0]
	for _, w := range writes {
		if w.Key == key {
			out = append(out, w)
		}
	}
	return out
}
