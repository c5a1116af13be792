package vellum

import "testing"

func TestWriteEncodeDecodeRoundTrip(t *testing.T) {
	w := NewWrite(HashXXHash3, ActionAdd, "name", NewString("alice"), RecordID(7), 42)
	enc := w.Encode()
	if len(enc) != w.EncodedSize() {
		t.Fatalf("EncodedSize() = %d, Encode() produced %d bytes", w.EncodedSize(), len(enc))
	}

	got, n, err := DecodeWrite(enc, HashXXHash3)
	if err != nil {
		t.Fatalf("DecodeWrite: %v", err)
	}
	if n != len(enc) {
		t.Fatalf("consumed %d bytes, want %d", n, len(enc))
	}
	if got.Key != w.Key || got.Record != w.Record || got.Version != w.Version || got.Action != w.Action {
		t.Errorf("decoded write %+v does not match original %+v", got, w)
	}
	if !got.Value.Equal(w.Value) {
		t.Errorf("decoded value %v != original %v", got.Value, w.Value)
	}
	if got.Hash != w.Hash {
		t.Errorf("decoded hash %d != original %d", got.Hash, w.Hash)
	}
}

func TestWriteHashNeverStoredButRederived(t *testing.T) {
	w := NewWrite(HashXXHash3, ActionAdd, "k", NewInteger(1), RecordID(1), 1)
	enc := w.Encode()
	// A corrupted in-memory hash must not survive Encode — the encoding
	// carries no hash field at all.
	w.Hash = 0xDEADBEEF
	enc2 := w.Encode()
	if string(enc) != string(enc2) {
		t.Error("Encode output changed when only Hash field was mutated")
	}
}

func TestSameTriple(t *testing.T) {
	a := NewWrite(HashXXHash3, ActionAdd, "k", NewInteger(5), RecordID(1), 1)
	b := NewWrite(HashXXHash3, ActionRemove, "k", NewInteger(5), RecordID(1), 2)
	if !a.SameTriple(b) {
		t.Error("writes sharing (key,value,record) should have SameTriple true regardless of action/version")
	}
	c := NewWrite(HashXXHash3, ActionAdd, "k", NewInteger(6), RecordID(1), 1)
	if a.SameTriple(c) {
		t.Error("writes with different values should not be SameTriple")
	}
}

func TestActionString(t *testing.T) {
	if ActionAdd.String() != "ADD" || ActionRemove.String() != "REMOVE" {
		t.Error("unexpected Action.String() output")
	}
	if Action(0).String() != "UNKNOWN" {
		t.Error("zero Action should stringify as UNKNOWN")
	}
}

func TestDecodeWriteTruncated(t *testing.T) {
	w := NewWrite(HashXXHash3, ActionAdd, "k", NewInteger(1), RecordID(1), 1)
	enc := w.Encode()
	if _, _, err := DecodeWrite(enc[:10], HashXXHash3); err == nil {
		t.Error("DecodeWrite should fail on truncated header")
	}
	if _, _, err := DecodeWrite(enc[:21], HashXXHash3); err == nil {
		t.Error("DecodeWrite should fail on truncated key")
	}
}

func TestTripleBytesDeterministic(t *testing.T) {
	a := NewWrite(HashXXHash3, ActionAdd, "k", NewInteger(5), RecordID(1), 1)
	b := NewWrite(HashXXHash3, ActionRemove, "k", NewInteger(5), RecordID(1), 99)
	if string(a.TripleBytes()) != string(b.TripleBytes()) {
		t.Error("TripleBytes should ignore Action and Version")
	}
}
