// Tokens: opaque, content-addressed identifiers used to key locks.
//
// Two callers presenting equal tokens receive the same lock instance
// while that lock is live in the service (design note §9's "CAS-like
// locking via token map"). Equality and hashing are by bytes of the
// constituent parts, never by pointer identity.
package vellum

import "encoding/binary"

// Token identifies the scope a point lock protects: a record, a
// (key, record) pair, or a key alone.
type Token struct {
	raw string
}

func appendLenPrefixed(buf []byte, part []byte) []byte {
	var lb [4]byte
	binary.BigEndian.PutUint32(lb[:], uint32(len(part)))
	buf = append(buf, lb[:]...)
	buf = append(buf, part...)
	return buf
}

// RecordToken scopes a lock to an entire record.
func RecordToken(r RecordID) Token {
	rb := recordBytes(r)
	buf := appendLenPrefixed([]byte{'R'}, rb[:])
	return Token{raw: string(buf)}
}

// KeyRecordToken scopes a lock to a single (key, record) cell — the
// finest-grained token, used for write expectations.
func KeyRecordToken(key string, r RecordID) Token {
	rb := recordBytes(r)
	buf := appendLenPrefixed([]byte{'K'}, []byte(key))
	buf = appendLenPrefixed(buf, rb[:])
	return Token{raw: string(buf)}
}

// KeyToken scopes a lock to an entire key across all records — used by
// range reads, which must block on any write to a matching value under
// that key regardless of which record it lands in.
func KeyToken(key string) Token {
	buf := appendLenPrefixed([]byte{'Y'}, []byte(key))
	return Token{raw: string(buf)}
}

// Bytes returns the token's canonical byte representation, used to sort
// tokens into the deadlock-avoiding acquisition order at commit time.
func (t Token) Bytes() []byte { return []byte(t.raw) }

func (t Token) String() string { return t.raw }

// Equal reports whether two tokens address the same scope.
func (t Token) Equal(o Token) bool { return t.raw == o.raw }

func readLenPrefixed(raw string, off int) (string, int) {
	n := binary.BigEndian.Uint32([]byte(raw[off : off+4]))
	off += 4
	return raw[off : off+int(n)], off + int(n)
}

// decodeRecordToken extracts the record a RecordToken addresses.
func decodeRecordToken(raw string) RecordID {
	part, _ := readLenPrefixed(raw, 1)
	return RecordID(binary.BigEndian.Uint64([]byte(part)))
}

// decodeKeyToken extracts the key a KeyToken addresses.
func decodeKeyToken(raw string) string {
	key, _ := readLenPrefixed(raw, 1)
	return key
}

// decodeKeyRecordToken extracts the (key, record) a KeyRecordToken
// addresses.
func decodeKeyRecordToken(raw string) (string, RecordID) {
	key, off := readLenPrefixed(raw, 1)
	rb, _ := readLenPrefixed(raw, off)
	return key, RecordID(binary.BigEndian.Uint64([]byte(rb)))
}
