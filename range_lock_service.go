// RangeLockService: range-aware conflict detection for ordered-value
// queries (spec.md §4.6). This is the only place in the kernel with
// explicit range-blocking logic; everywhere else a token is either held
// or not.
//
// Acquisition never blocks the caller: isRangeBlocked is a single
// non-blocking check against the currently live range tokens for a key.
// A blocked acquisition returns ErrRangeBlocked, which the owning
// AtomicOperation turns into an abort rather than a wait (spec.md's
// failure model: "a missed lock aborts the atomic operation, not the
// caller").
package vellum

import "sync"

// RangeToken describes either a single written value (a WRITE range
// token) or a query predicate (a READ range token) over an ordered key.
type RangeToken struct {
	Key      string
	IsWrite  bool
	Value    Value    // set when IsWrite
	Operator Operator // set when !IsWrite
	Values   []Value  // set when !IsWrite
}

// WriteRangeToken describes a single value being written under key.
func WriteRangeToken(key string, value Value) RangeToken {
	return RangeToken{Key: key, IsWrite: true, Value: value}
}

// ReadRangeToken describes a range query over key.
func ReadRangeToken(key string, op Operator, values ...Value) RangeToken {
	return RangeToken{Key: key, IsWrite: false, Operator: op, Values: values}
}

type liveRange struct {
	id    uint64
	token RangeToken
}

// RangeLockService tracks live range tokens per key and decides whether
// a new acquisition would conflict with them.
type RangeLockService struct {
	mu      sync.Mutex
	nextID  uint64
	live    map[string][]*liveRange
}

// NewRangeLockService returns an empty RangeLockService.
func NewRangeLockService() *RangeLockService {
	return &RangeLockService{live: make(map[string][]*liveRange)}
}

// RangeHeld represents an acquired range token; Release removes it from
// the live set.
type RangeHeld struct {
	svc *RangeLockService
	key string
	id  uint64
}

// Acquire registers token as live if it is not blocked by any
// currently-live token for the same key, returning ErrRangeBlocked
// otherwise.
func (s *RangeLockService) Acquire(token RangeToken) (*RangeHeld, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if isRangeBlocked(token, s.live[token.Key]) {
		return nil, ErrRangeBlocked
	}

	s.nextID++
	id := s.nextID
	s.live[token.Key] = append(s.live[token.Key], &liveRange{id: id, token: token})
	return &RangeHeld{svc: s, key: token.Key, id: id}, nil
}

// Release removes the token from the live set.
func (h *RangeHeld) Release() {
	s := h.svc
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.live[h.key]
	for i, e := range entries {
		if e.id == h.id {
			s.live[h.key] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(s.live[h.key]) == 0 {
		delete(s.live, h.key)
	}
}

// isRangeBlocked implements spec.md §4.6's blocking rules:
//
//   - A READ for "key op value" is blocked by an existing WRITE "key = w"
//     iff w satisfies op(values) under the same comparison semantics as
//     queries.
//   - A WRITE "key = w" is blocked if there exists a READ whose predicate
//     w satisfies, OR if there exist two READs that bracket w exactly —
//     one an upper bound "< w" / "<= w" and one a lower bound "> w" /
//     ">= w" — together implying an active range scan whose result set
//     would change at exactly w if w were inserted.
func isRangeBlocked(candidate RangeToken, others []*liveRange) bool {
	if candidate.IsWrite {
		return writeBlocked(candidate.Value, others)
	}
	return readBlocked(candidate.Operator, candidate.Values, others)
}

func readBlocked(op Operator, values []Value, others []*liveRange) bool {
	for _, o := range others {
		if !o.token.IsWrite {
			continue
		}
		if Satisfies(o.token.Value, op, values) {
			return true
		}
	}
	return false
}

func writeBlocked(w Value, others []*liveRange) bool {
	var hasUpperAtW, hasLowerAtW bool
	for _, o := range others {
		if o.token.IsWrite {
			continue
		}
		if Satisfies(w, o.token.Operator, o.token.Values) {
			return true
		}
		if len(o.token.Values) == 1 && o.token.Values[0].Equal(w) {
			switch o.token.Operator {
			case OpLessThan, OpLessThanOrEquals:
				hasUpperAtW = true
			case OpGreaterThan, OpGreaterThanOrEquals:
				hasLowerAtW = true
			}
		}
	}
	return hasUpperAtW && hasLowerAtW
}
