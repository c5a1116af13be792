package vellum

import "testing"

func TestSegmentRehashRecomputesFingerprints(t *testing.T) {
	cfg := testConfig()
	s := NewSegment(cfg)
	s.Accept(NewWrite(HashXXHash3, ActionAdd, "k", NewInteger(1), RecordID(1), 1))
	s.Seal()

	before := s.RecordWrites(RecordID(1))[0].Hash
	s.Rehash(HashFNV1a)
	after := s.RecordWrites(RecordID(1))[0].Hash

	if before == after {
		t.Error("Rehash under a different algorithm should change the stored fingerprint")
	}
	want := fingerprint(HashFNV1a, "k", NewInteger(1), RecordID(1))
	if after != want {
		t.Errorf("rehashed fingerprint = %d, want %d", after, want)
	}
}

func TestSegmentRehashPreservesPresence(t *testing.T) {
	cfg := testConfig()
	s := NewSegment(cfg)
	s.Accept(NewWrite(HashXXHash3, ActionAdd, "k", NewInteger(1), RecordID(1), 1))
	s.Seal()
	s.Rehash(HashBlake2b)

	got := presentSet(foldPresence(s.RecordWrites(RecordID(1)), nil))
	if len(got) != 1 || !got[0].Equal(NewInteger(1)) {
		t.Fatalf("Rehash should not alter presence semantics, got %v", got)
	}
}

func TestDatabaseRehashAppliesToSealedAndMutable(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	db, err := OpenDatabase(dir, cfg)
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	db.Accept(NewWrite(cfg.HashAlgorithm, ActionAdd, "k", NewInteger(1), RecordID(1), 1))
	db.BeginSegment()
	db.Accept(NewWrite(cfg.HashAlgorithm, ActionAdd, "k", NewInteger(2), RecordID(2), 2))

	if err := db.Rehash(HashFNV1a); err != nil {
		t.Fatalf("Rehash: %v", err)
	}
	sealed, mutable := db.Segments()
	if sealed[0].RecordWrites(RecordID(1))[0].Hash != fingerprint(HashFNV1a, "k", NewInteger(1), RecordID(1)) {
		t.Error("sealed segment fingerprint not migrated")
	}
	if mutable.RecordWrites(RecordID(2))[0].Hash != fingerprint(HashFNV1a, "k", NewInteger(2), RecordID(2)) {
		t.Error("mutable segment fingerprint not migrated")
	}
}

func TestEngineRehashEndToEnd(t *testing.T) {
	e := openTestEngine(t)
	e.Add("k", NewInteger(1), RecordID(1))
	e.Add("k", NewInteger(2), RecordID(1))

	if err := e.Rehash(HashFNV1a); err != nil {
		t.Fatalf("Rehash: %v", err)
	}
	got := e.Select("k", RecordID(1))
	if len(got) != 2 {
		t.Fatalf("Rehash should not alter which values are present, got %v", got)
	}
}
