package vellum

import "testing"

func TestSatisfiesEquals(t *testing.T) {
	if !Satisfies(NewInteger(5), OpEquals, []Value{NewInteger(5)}) {
		t.Error("5 should satisfy EQUALS 5")
	}
	if Satisfies(NewInteger(5), OpEquals, []Value{NewInteger(6)}) {
		t.Error("5 should not satisfy EQUALS 6")
	}
}

func TestSatisfiesComparisons(t *testing.T) {
	five := NewInteger(5)
	cases := []struct {
		op     Operator
		values []Value
		want   bool
	}{
		{OpGreaterThan, []Value{NewInteger(4)}, true},
		{OpGreaterThan, []Value{NewInteger(5)}, false},
		{OpGreaterThanOrEquals, []Value{NewInteger(5)}, true},
		{OpLessThan, []Value{NewInteger(6)}, true},
		{OpLessThanOrEquals, []Value{NewInteger(5)}, true},
		{OpNotEquals, []Value{NewInteger(6)}, true},
	}
	for _, c := range cases {
		if got := Satisfies(five, c.op, c.values); got != c.want {
			t.Errorf("Satisfies(5, %v, %v) = %v, want %v", c.op, c.values, got, c.want)
		}
	}
}

func TestSatisfiesBetweenHalfOpen(t *testing.T) {
	values := []Value{NewInteger(0), NewInteger(10)}
	if !Satisfies(NewInteger(0), OpBetween, values) {
		t.Error("lower bound should be inclusive")
	}
	if Satisfies(NewInteger(10), OpBetween, values) {
		t.Error("upper bound should be exclusive")
	}
	if !Satisfies(NewInteger(5), OpBetween, values) {
		t.Error("5 should be within [0,10)")
	}
}

func TestSatisfiesRegex(t *testing.T) {
	if !Satisfies(NewString("hello world"), OpRegex, []Value{NewString("^hello")}) {
		t.Error("expected regex match")
	}
	if Satisfies(NewString("hello world"), OpRegex, []Value{NewString("^goodbye")}) != false {
		t.Error("expected regex mismatch")
	}
	if !Satisfies(NewString("hello"), OpNotRegex, []Value{NewString("^goodbye")}) {
		t.Error("NOT_REGEX should invert REGEX")
	}
}

func TestSatisfiesRegexNonString(t *testing.T) {
	if Satisfies(NewInteger(5), OpRegex, []Value{NewString(".*")}) {
		t.Error("REGEX against a non-string value should never match")
	}
}

func TestNormalizeOperatorLinksTo(t *testing.T) {
	op, values := NormalizeOperator(OpLinksTo, []Value{NewLink(RecordID(9))})
	if op != OpEquals {
		t.Errorf("LINKS_TO should normalize to EQUALS, got %v", op)
	}
	if len(values) != 1 || !values[0].Equal(NewLink(RecordID(9))) {
		t.Error("NormalizeOperator should preserve the link value")
	}
}
