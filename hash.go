// Content fingerprint algorithms for Write.Hash.
//
// A Write's hash is a stable fingerprint of (key, value, record) — the
// triple verify() and the XOR-parity computation compare on, excluding
// action and version. Three algorithms are supported, selectable via
// Config.HashAlgorithm, following the same switch-by-constant shape as
// the teacher's per-label hash selector.
package vellum

import (
	"hash/fnv"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// Hash algorithm constants for Config.HashAlgorithm.
const (
	HashXXHash3 = 1 // default, fastest
	HashFNV1a   = 2 // no external dependencies
	HashBlake2b = 3 // best distribution
)

// fingerprint computes a 64-bit stable hash of the (key, value, record)
// triple, excluding action and version so that an ADD and its matching
// REMOVE produce the same fingerprint.
func fingerprint(alg int, key string, value Value, record RecordID) uint64 {
	buf := make([]byte, 0, len(key)+9+16)
	buf = append(buf, []byte(key)...)
	buf = append(buf, value.Bytes()...)
	var recBuf [8]byte
	recBuf[0] = byte(record >> 56)
	recBuf[1] = byte(record >> 48)
	recBuf[2] = byte(record >> 40)
	recBuf[3] = byte(record >> 32)
	recBuf[4] = byte(record >> 24)
	recBuf[5] = byte(record >> 16)
	recBuf[6] = byte(record >> 8)
	recBuf[7] = byte(record)
	buf = append(buf, recBuf[:]...)

	switch alg {
	case HashFNV1a:
		h := fnv.New64a()
		h.Write(buf)
		return h.Sum64()
	case HashBlake2b:
		h, _ := blake2b.New(8, nil)
		h.Write(buf)
		sum := h.Sum(nil)
		var v uint64
		for _, b := range sum {
			v = v<<8 | uint64(b)
		}
		return v
	case HashXXHash3:
		fallthrough
	default:
		return xxh3.Hash(buf)
	}
}
