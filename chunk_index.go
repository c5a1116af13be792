// Index chunk: locates writes by key, with writes inside each key group
// further ordered by value so that range operators (GT, GTE, LT, LTE,
// BETWEEN) can binary search within a key instead of scanning every
// value (spec.md §4.2, §4.3).
package vellum

import "sort"

func newIndexChunk(expected int) *chunk {
	return newChunk(func(w Write) []byte { return []byte(w.Key) }, expected)
}

// sealIndex seals c and then sorts the writes within each key group by
// value, so indexRangeWrites can binary search for a bound inside the group.
func sealIndex(c *chunk) {
	c.seal()
	for _, e := range c.manifest {
		group := c.writes[e.start:e.end]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Value.Compare(group[j].Value) < 0
		})
	}
}

// indexKeyWrites returns every write for key, ordered by value.
func indexKeyWrites(c *chunk, key string) []Write {
	return c.seek([]byte(key))
}

// indexRangeWrites returns the writes for key whose value satisfies op
// against values, using a binary-search bracket over the value-sorted
// group before a linear scan confirms the operator.
func indexRangeWrites(c *chunk, key string, op Operator, values []Value) []Write {
	group := indexKeyWrites(c, key)
	if len(group) == 0 {
		return nil
	}

	lo, hi := 0, len(group)
	switch op {
	case OpGreaterThan, OpGreaterThanOrEquals:
		bound := values[0]
		lo = sort.Search(len(group), func(i int) bool {
			if op == OpGreaterThan {
				return group[i].Value.Compare(bound) > 0
			}
			return group[i].Value.Compare(bound) >= 0
		})
	case OpLessThan, OpLessThanOrEquals:
		bound := values[0]
		hi = sort.Search(len(group), func(i int) bool {
			if op == OpLessThan {
				return group[i].Value.Compare(bound) >= 0
			}
			return group[i].Value.Compare(bound) > 0
		})
	case OpBetween:
		lo = sort.Search(len(group), func(i int) bool {
			return group[i].Value.Compare(values[0]) >= 0
		})
		hi = sort.Search(len(group), func(i int) bool {
			return group[i].Value.Compare(values[1]) >= 0
		})
	default:
		out := make([]Write, 0, len(group))
		for _, w := range group {
			if Satisfies(w.Value, op, values) {
				out = append(out, w)
			}
		}
		return out
	}
	if lo >= hi {
		return nil
	}
	return group[lo:hi]
}
