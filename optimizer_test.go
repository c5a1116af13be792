package vellum

import "testing"

func TestOptimizeNoOpWithFewerThanTwoSegments(t *testing.T) {
	db, err := OpenDatabase(t.TempDir(), testConfig())
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	merged, err := db.Optimize()
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if merged {
		t.Error("Optimize with 0 sealed segments should report no merge")
	}

	cfg := testConfig()
	db.Accept(NewWrite(cfg.HashAlgorithm, ActionAdd, "k", NewInteger(1), RecordID(1), 1))
	db.BeginSegment()
	merged, err = db.Optimize()
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if merged {
		t.Error("Optimize with 1 sealed segment should report no merge")
	}
}

func TestOptimizeMergesSimilarAdjacentSegments(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	db, err := OpenDatabase(dir, cfg)
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}

	for i := 0; i < 20; i++ {
		db.Accept(NewWrite(cfg.HashAlgorithm, ActionAdd, "shared", NewInteger(int32(i)), RecordID(i), uint64(i+1)))
	}
	db.BeginSegment()
	for i := 20; i < 40; i++ {
		db.Accept(NewWrite(cfg.HashAlgorithm, ActionAdd, "shared", NewInteger(int32(i)), RecordID(i), uint64(i+1)))
	}
	db.BeginSegment()

	sealed, _ := db.Segments()
	if len(sealed) != 2 {
		t.Fatalf("expected 2 sealed segments before optimize, got %d", len(sealed))
	}

	merged, err := db.Optimize()
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if !merged {
		t.Fatal("expected two segments sharing the same key to merge")
	}

	after, _ := db.Segments()
	if len(after) != 1 {
		t.Fatalf("expected 1 segment after merge, got %d", len(after))
	}
	if got := after[0].KeyWrites("shared"); len(got) != 40 {
		t.Errorf("merged segment KeyWrites(shared) = %d, want 40", len(got))
	}
}

func TestOptimizeSkipsDissimilarSegments(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	db, err := OpenDatabase(dir, cfg)
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}

	db.Accept(NewWrite(cfg.HashAlgorithm, ActionAdd, "alpha", NewInteger(1), RecordID(1), 1))
	db.BeginSegment()
	db.Accept(NewWrite(cfg.HashAlgorithm, ActionAdd, "beta", NewInteger(2), RecordID(2), 2))
	db.BeginSegment()

	merged, err := db.Optimize()
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if merged {
		t.Error("disjoint single-write segments should not clear the similarity threshold")
	}
}

func TestMergeSegmentsPreservesVersionOrder(t *testing.T) {
	cfg := testConfig()
	a := NewSegment(cfg)
	a.Accept(NewWrite(cfg.HashAlgorithm, ActionAdd, "k", NewInteger(1), RecordID(1), 5))
	a.Seal()
	b := NewSegment(cfg)
	b.Accept(NewWrite(cfg.HashAlgorithm, ActionAdd, "k", NewInteger(2), RecordID(1), 2))
	b.Seal()

	merged, err := mergeSegments(a, b, cfg)
	if err != nil {
		t.Fatalf("mergeSegments: %v", err)
	}
	writes := merged.RecordWrites(RecordID(1))
	if len(writes) != 2 {
		t.Fatalf("merged RecordWrites(1) = %d, want 2", len(writes))
	}
	if writes[0].Version > writes[1].Version {
		t.Errorf("merged writes not in version order: %+v", writes)
	}
}

func TestSplitWritesDistributesAllItems(t *testing.T) {
	writes := make([]Write, 17)
	for i := range writes {
		writes[i] = NewWrite(HashXXHash3, ActionAdd, "k", NewInteger(int32(i)), RecordID(1), uint64(i+1))
	}
	chunks := splitWrites(writes, 4)
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total != len(writes) {
		t.Errorf("splitWrites dropped items: got %d total, want %d", total, len(writes))
	}
}

func TestSplitWritesEmpty(t *testing.T) {
	if chunks := splitWrites(nil, 4); chunks != nil {
		t.Errorf("splitWrites(nil) = %v, want nil", chunks)
	}
}
