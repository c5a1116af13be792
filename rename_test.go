package vellum

import "testing"

func TestRenameKeyRejectsEmptyKeys(t *testing.T) {
	e := openTestEngine(t)
	if err := e.RenameKey("", "new"); err != ErrInvalidKey {
		t.Errorf("RenameKey(\"\", new) = %v, want ErrInvalidKey", err)
	}
	if err := e.RenameKey("old", ""); err != ErrInvalidKey {
		t.Errorf("RenameKey(old, \"\") = %v, want ErrInvalidKey", err)
	}
}

func TestRenameKeySameNameIsNoOp(t *testing.T) {
	e := openTestEngine(t)
	e.Add("k", NewInteger(1), RecordID(1))
	if err := e.RenameKey("k", "k"); err != nil {
		t.Fatalf("RenameKey(k,k): %v", err)
	}
	got := e.Select("k", RecordID(1))
	if len(got) != 1 {
		t.Fatalf("renaming a key to itself should leave it untouched, got %v", got)
	}
}

func TestRenameKeyRejectsAbsentKey(t *testing.T) {
	e := openTestEngine(t)
	if err := e.RenameKey("absent", "new"); err != ErrNotFound {
		t.Errorf("RenameKey on a key with no present values = %v, want ErrNotFound", err)
	}
}

func TestRenameKeyMovesValuesAcrossRecords(t *testing.T) {
	e := openTestEngine(t)
	e.Add("old", NewString("alice"), RecordID(1))
	e.Add("old", NewString("bob"), RecordID(2))

	if err := e.RenameKey("old", "new"); err != nil {
		t.Fatalf("RenameKey: %v", err)
	}

	if got := e.Select("old", RecordID(1)); len(got) != 0 {
		t.Errorf("old key should have no present values after rename, got %v", got)
	}
	if got := e.Select("new", RecordID(1)); len(got) != 1 || !got[0].Equal(NewString("alice")) {
		t.Errorf("Select(new,1) = %v, want [alice]", got)
	}
	if got := e.Select("new", RecordID(2)); len(got) != 1 || !got[0].Equal(NewString("bob")) {
		t.Errorf("Select(new,2) = %v, want [bob]", got)
	}
}
