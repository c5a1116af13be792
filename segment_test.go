package vellum

import "testing"

func TestSegmentAcceptAndSeal(t *testing.T) {
	cfg := testConfig()
	s := NewSegment(cfg)
	for i := 0; i < 10; i++ {
		w := NewWrite(cfg.HashAlgorithm, ActionAdd, "k", NewInteger(int32(i)), RecordID(1), uint64(i+1))
		if err := s.Accept(w); err != nil {
			t.Fatalf("Accept: %v", err)
		}
	}
	if s.Count() != 10 {
		t.Fatalf("Count() = %d, want 10", s.Count())
	}
	s.Seal()
	if err := s.Accept(NewWrite(cfg.HashAlgorithm, ActionAdd, "k", NewInteger(99), RecordID(1), 11)); err == nil {
		t.Error("Accept after Seal should fail")
	}
}

func TestSegmentVersionRange(t *testing.T) {
	cfg := testConfig()
	s := NewSegment(cfg)
	for _, v := range []uint64{5, 2, 9, 1} {
		w := NewWrite(cfg.HashAlgorithm, ActionAdd, "k", NewInteger(1), RecordID(1), v)
		if err := s.Accept(w); err != nil {
			t.Fatalf("Accept: %v", err)
		}
	}
	if !s.Intersects(3, 6) {
		t.Error("segment spanning [1,9] should intersect [3,6]")
	}
	if s.Intersects(100, 200) {
		t.Error("segment spanning [1,9] should not intersect [100,200]")
	}
}

func TestSegmentRecordAndKeyWrites(t *testing.T) {
	cfg := testConfig()
	s := NewSegment(cfg)
	writes := []Write{
		NewWrite(cfg.HashAlgorithm, ActionAdd, "name", NewString("alice"), RecordID(1), 1),
		NewWrite(cfg.HashAlgorithm, ActionAdd, "age", NewInteger(30), RecordID(1), 2),
		NewWrite(cfg.HashAlgorithm, ActionAdd, "name", NewString("bob"), RecordID(2), 3),
	}
	for _, w := range writes {
		if err := s.Accept(w); err != nil {
			t.Fatalf("Accept: %v", err)
		}
	}
	s.Seal()

	if got := s.RecordWrites(RecordID(1)); len(got) != 2 {
		t.Errorf("RecordWrites(1) = %d, want 2", len(got))
	}
	if got := s.KeyRecordWrites("name", RecordID(1)); len(got) != 1 {
		t.Errorf("KeyRecordWrites(name,1) = %d, want 1", len(got))
	}
	if got := s.KeyWrites("name"); len(got) != 2 {
		t.Errorf("KeyWrites(name) = %d, want 2", len(got))
	}
}

func TestSegmentMightContainPreFilters(t *testing.T) {
	cfg := testConfig()
	s := NewSegment(cfg)
	if err := s.Accept(NewWrite(cfg.HashAlgorithm, ActionAdd, "name", NewString("alice"), RecordID(42), 1)); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	s.Seal()

	if !s.MightContainRecord(RecordID(42)) {
		t.Error("MightContainRecord should be true for a record actually accepted")
	}
	if !s.MightContainKey("name") {
		t.Error("MightContainKey should be true for a key actually accepted")
	}
	if s.MightContainRecord(RecordID(999)) {
		t.Error("MightContainRecord should (almost certainly) be false for an absent record")
	}
}

func TestSegmentSimilarity(t *testing.T) {
	cfg := testConfig()
	a := NewSegment(cfg)
	b := NewSegment(cfg)
	for i := 0; i < 20; i++ {
		w := NewWrite(cfg.HashAlgorithm, ActionAdd, "k", NewInteger(int32(i)), RecordID(i), uint64(i+1))
		a.Accept(w)
		b.Accept(w)
	}
	a.Seal()
	b.Seal()
	if sim := a.Similarity(b); sim < 0.9 {
		t.Errorf("identical segments should be highly similar, got %f", sim)
	}

	c := NewSegment(cfg)
	for i := 1000; i < 1020; i++ {
		c.Accept(NewWrite(cfg.HashAlgorithm, ActionAdd, "other", NewInteger(int32(i)), RecordID(i), uint64(i)))
	}
	c.Seal()
	if sim := a.Similarity(c); sim > 0.5 {
		t.Errorf("disjoint segments should have low similarity, got %f", sim)
	}
}

func TestSegmentAllWrites(t *testing.T) {
	cfg := testConfig()
	s := NewSegment(cfg)
	for i := 0; i < 5; i++ {
		s.Accept(NewWrite(cfg.HashAlgorithm, ActionAdd, "k", NewInteger(int32(i)), RecordID(1), uint64(i+1)))
	}
	s.Seal()
	if len(s.AllWrites()) != 5 {
		t.Errorf("AllWrites() = %d, want 5", len(s.AllWrites()))
	}
}
