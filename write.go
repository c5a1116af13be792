// Write: the universal revision unit and its deterministic binary encoding.
//
// Every mutation accepted by the kernel — from a client Engine.Add call to a
// Segment chunk revision — is represented as a Write. The encoding is
// intentionally simple and fixed-layout (§6): a reader can extract the key
// size, action, version, and record without touching the value bytes, which
// matters for Ledger pages where millions of Writes may need a fast linear
// scan.
package vellum

import (
	"encoding/binary"
	"fmt"
)

// Action identifies the kind of revision a Write records.
type Action byte

const (
	// ActionAdd records that a value was added to a (record, key).
	ActionAdd Action = iota + 1
	// ActionRemove records that a value was removed from a (record, key).
	ActionRemove
	// ActionCompare is used only inside AtomicOperation version
	// expectations; it never appears in a Ledger page or Segment.
	ActionCompare
	// ActionNotStorable marks a transient lookup probe. Writes with this
	// action exist only in memory (verify/contains calls) and are never
	// durable — they carry no version.
	ActionNotStorable
)

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "ADD"
	case ActionRemove:
		return "REMOVE"
	case ActionCompare:
		return "COMPARE"
	case ActionNotStorable:
		return "NOT_STORABLE"
	default:
		return "UNKNOWN"
	}
}

// Write is the atomic ledger entry representing one action on
// (record, key, value) at a version. Version is a monotonically
// increasing timestamp assigned at ledger acceptance; NOT_STORABLE
// writes carry version 0 and are never persisted.
type Write struct {
	Action  Action
	Key     string
	Value   Value
	Record  RecordID
	Version uint64
	Hash    uint64
}

// NewWrite constructs a storable Write and computes its content
// fingerprint. The caller supplies the hash algorithm (Config.HashAlgorithm)
// since fingerprints must be comparable only within one store.
func NewWrite(alg int, action Action, key string, value Value, record RecordID, version uint64) Write {
	return Write{
		Action:  action,
		Key:     key,
		Value:   value,
		Record:  record,
		Version: version,
		Hash:    fingerprint(alg, key, value, record),
	}
}

// probe builds a NOT_STORABLE Write used as a lookup argument to verify
// and the chunk scan helpers. It is never written to a page or segment.
func probe(alg int, key string, value Value, record RecordID) Write {
	return Write{
		Action: ActionNotStorable,
		Key:    key,
		Value:  value,
		Record: record,
		Hash:   fingerprint(alg, key, value, record),
	}
}

// SameTriple reports whether two Writes describe the same (key, value,
// record) triple, ignoring Action and Version — the comparison verify()
// uses to toggle XOR parity.
func (w Write) SameTriple(o Write) bool {
	return w.Hash == o.Hash && w.Key == o.Key && w.Record == o.Record && w.Value.Equal(o.Value)
}

// TripleBytes returns the (key, value, record) triple encoded as bytes
// suitable for membership in a bloom filter — the same triple SameTriple
// compares, in a form that never allocates a struct to hash.
func (w Write) TripleBytes() []byte {
	rb := recordBytes(w.Record)
	buf := make([]byte, 0, 4+len(w.Key)+len(w.Value.Bytes())+8)
	var kl [4]byte
	binary.BigEndian.PutUint32(kl[:], uint32(len(w.Key)))
	buf = append(buf, kl[:]...)
	buf = append(buf, w.Key...)
	buf = append(buf, w.Value.Bytes()...)
	buf = append(buf, rb[:]...)
	return buf
}

// recordBytes big-endian encodes a RecordID to 8 bytes.
func recordBytes(r RecordID) [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(r))
	return b
}

// Encode serializes a Write to its deterministic binary form:
// [4-byte keySize][1-byte action][8-byte version][8-byte record][key][value].
// Size = 13 + len(key) + 8 + len(value bytes).
func (w Write) Encode() []byte {
	keyBytes := []byte(w.Key)
	valBytes := w.Value.Bytes()

	buf := make([]byte, 13+len(keyBytes)+8+len(valBytes))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(keyBytes)))
	buf[4] = byte(w.Action)
	binary.BigEndian.PutUint64(buf[5:13], w.Version)
	rb := recordBytes(w.Record)
	copy(buf[13:21], rb[:])
	copy(buf[21:21+len(keyBytes)], keyBytes)
	copy(buf[21+len(keyBytes):], valBytes)
	return buf
}

// DecodeWrite parses the encoding produced by Encode, returning the Write
// and the number of bytes consumed. hashAlg recomputes the fingerprint
// from the decoded triple so that on-disk bytes remain the source of
// truth rather than trusting a stored hash.
func DecodeWrite(b []byte, hashAlg int) (Write, int, error) {
	if len(b) < 21 {
		return Write{}, 0, fmt.Errorf("%w: truncated write header", ErrCorruptWrite)
	}
	keySize := int(binary.BigEndian.Uint32(b[0:4]))
	action := Action(b[4])
	version := binary.BigEndian.Uint64(b[5:13])
	record := RecordID(binary.BigEndian.Uint64(b[13:21]))

	if len(b) < 21+keySize {
		return Write{}, 0, fmt.Errorf("%w: truncated key", ErrCorruptWrite)
	}
	key := string(b[21 : 21+keySize])

	value, n, err := DecodeValue(b[21+keySize:])
	if err != nil {
		return Write{}, 0, err
	}

	w := Write{
		Action:  action,
		Key:     key,
		Value:   value,
		Record:  record,
		Version: version,
	}
	w.Hash = fingerprint(hashAlg, key, value, record)
	return w, 21 + keySize + n, nil
}

// EncodedSize returns the number of bytes Encode would produce, without
// allocating — used by the Ledger to decide whether a write fits in the
// current page.
func (w Write) EncodedSize() int {
	return 13 + len(w.Key) + 8 + len(w.Value.Bytes())
}
