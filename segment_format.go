// On-disk Segment layout (spec.md §6):
//
//   [signature|schema|count|minTs|maxTs|syncTs|reserved×4|lengths×9]
//   [bloom filter: table][bloom filter: index][bloom filter: corpus]
//   [manifest: table][manifest: index][manifest: corpus]
//   [chunk: table][chunk: index][chunk: corpus]
//
// The fixed header section is raw big-endian fields, matching the
// teacher's own fixed-size binary header (header.go) generalized from a
// single-section database file to a three-chunk segment. Chunk bytes
// above Config.MmapWriteUpperLimit are zstd-compressed exactly the way
// the teacher compresses inline history snapshots (compress.go); below
// the threshold they are written uncompressed for faster reopen.
package vellum

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

const (
	segmentSignature   = "Cinchapi Inc."
	segmentSchemaVersion = 1
	segmentFixedHeaderSize = 13 + 4 + 8 + 8 + 8 + 8 + 4*8 + 9*8
)

var (
	segZstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	segZstdDecoder, _ = zstd.NewReader(nil)
)

// encodedManifest mirrors manifestEntry in a JSON-friendly shape, the
// same way the teacher's Header type is a JSON-tagged mirror of the
// fields it packs into a fixed binary section.
type encodedManifest struct {
	Locator []byte `json:"l"`
	Start   int    `json:"s"`
	End     int    `json:"e"`
}

func encodeManifest(m []manifestEntry) ([]byte, error) {
	enc := make([]encodedManifest, len(m))
	for i, e := range m {
		enc[i] = encodedManifest{Locator: e.locator, Start: e.start, End: e.end}
	}
	return json.Marshal(enc)
}

func decodeManifest(b []byte) ([]manifestEntry, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var enc []encodedManifest
	if err := json.Unmarshal(b, &enc); err != nil {
		return nil, err
	}
	out := make([]manifestEntry, len(enc))
	for i, e := range enc {
		out[i] = manifestEntry{locator: e.Locator, start: e.Start, end: e.End}
	}
	return out, nil
}

func encodeChunkWrites(c *chunk) []byte {
	var buf bytes.Buffer
	for _, w := range c.writes {
		buf.Write(w.Encode())
	}
	return buf.Bytes()
}

func decodeChunkWrites(b []byte, hashAlg int) ([]Write, error) {
	var out []Write
	for len(b) > 0 {
		w, n, err := DecodeWrite(b, hashAlg)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
		b = b[n:]
	}
	return out, nil
}

func maybeCompress(data []byte, threshold int64) (payload []byte, compressed bool) {
	if int64(len(data)) <= threshold {
		return data, false
	}
	return segZstdEncoder.EncodeAll(data, nil), true
}

func maybeDecompress(data []byte, compressed bool) ([]byte, error) {
	if !compressed {
		return data, nil
	}
	out, err := segZstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrCorruptHeader, err)
	}
	return out, nil
}

// Sync writes the sealed segment to path. The segment must already be
// sealed (Seal called) before Sync.
func (s *Segment) Sync(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sealed {
		return fmt.Errorf("%w: segment not sealed", ErrUnsupportedOperation)
	}

	tableBloom := s.table.filter.Bytes()
	indexBloom := s.index.filter.Bytes()
	corpusBloom := s.corpus.filter.Bytes()

	tableManifest, err := encodeManifest(s.table.manifest)
	if err != nil {
		return err
	}
	indexManifest, err := encodeManifest(s.index.manifest)
	if err != nil {
		return err
	}
	corpusManifest, err := encodeManifest(s.corpus.manifest)
	if err != nil {
		return err
	}

	tableRaw := encodeChunkWrites(s.table)
	indexRaw := encodeChunkWrites(s.index)
	corpusRaw := encodeChunkWrites(s.corpus)

	tableChunk, tableCompressed := maybeCompress(tableRaw, s.cfg.MmapWriteUpperLimit)
	indexChunk, indexCompressed := maybeCompress(indexRaw, s.cfg.MmapWriteUpperLimit)
	corpusChunk, corpusCompressed := maybeCompress(corpusRaw, s.cfg.MmapWriteUpperLimit)

	lengths := [9]int64{
		int64(len(tableBloom)), int64(len(indexBloom)), int64(len(corpusBloom)),
		int64(len(tableManifest)), int64(len(indexManifest)), int64(len(corpusManifest)),
		int64(len(tableChunk)), int64(len(indexChunk)), int64(len(corpusChunk)),
	}

	var reserved [4]uint64
	reserved[0] = boolToUint64(tableCompressed)
	reserved[1] = boolToUint64(indexCompressed)
	reserved[2] = boolToUint64(corpusCompressed)

	hdr := make([]byte, segmentFixedHeaderSize)
	off := 0
	copy(hdr[off:off+13], segmentSignature)
	off += 13
	binary.BigEndian.PutUint32(hdr[off:off+4], segmentSchemaVersion)
	off += 4
	binary.BigEndian.PutUint64(hdr[off:off+8], uint64(s.count))
	off += 8
	binary.BigEndian.PutUint64(hdr[off:off+8], s.minVersion)
	off += 8
	binary.BigEndian.PutUint64(hdr[off:off+8], s.maxVersion)
	off += 8
	binary.BigEndian.PutUint64(hdr[off:off+8], s.syncVersion)
	off += 8
	for i := 0; i < 4; i++ {
		binary.BigEndian.PutUint64(hdr[off:off+8], reserved[i])
		off += 8
	}
	for i := 0; i < 9; i++ {
		binary.BigEndian.PutUint64(hdr[off:off+8], uint64(lengths[i]))
		off += 8
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("sync segment: %w", err)
	}
	defer f.Close()

	sections := [][]byte{
		hdr,
		tableBloom, indexBloom, corpusBloom,
		tableManifest, indexManifest, corpusManifest,
		tableChunk, indexChunk, corpusChunk,
	}
	var woff int64
	for _, sec := range sections {
		if _, err := f.WriteAt(sec, woff); err != nil {
			return fmt.Errorf("sync segment: %w", err)
		}
		woff += int64(len(sec))
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync segment: %w", err)
	}

	s.path = path
	s.synced = true
	return nil
}

func boolToUint64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
