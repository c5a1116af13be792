// Loading sealed segments back from disk, and quarantining ones that
// fail validation (spec.md §7 SegmentLoadingError, §9 recovery).
package vellum

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LoadSegment reads and validates the sealed segment at path. A
// signature, schema, or length mismatch returns ErrSegmentLoading
// without partially constructing a usable Segment — the invariant that
// a partially-loaded segment is never visible to readers.
func LoadSegment(path string, cfg Config) (*Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load segment: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("load segment: %w", err)
	}
	if info.Size() < segmentFixedHeaderSize {
		return nil, fmt.Errorf("%w: %s: truncated header", ErrSegmentLoading, path)
	}

	hdr := make([]byte, segmentFixedHeaderSize)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSegmentLoading, path, err)
	}
	if string(hdr[0:13]) != segmentSignature {
		return nil, fmt.Errorf("%w: %s: signature mismatch", ErrSegmentLoading, path)
	}
	off := 13
	schema := binary.BigEndian.Uint32(hdr[off : off+4])
	off += 4
	if schema != segmentSchemaVersion {
		return nil, fmt.Errorf("%w: %s: unsupported schema %d", ErrSegmentLoading, path, schema)
	}
	count := binary.BigEndian.Uint64(hdr[off : off+8])
	off += 8
	minVersion := binary.BigEndian.Uint64(hdr[off : off+8])
	off += 8
	maxVersion := binary.BigEndian.Uint64(hdr[off : off+8])
	off += 8
	syncVersion := binary.BigEndian.Uint64(hdr[off : off+8])
	off += 8
	var reserved [4]uint64
	for i := 0; i < 4; i++ {
		reserved[i] = binary.BigEndian.Uint64(hdr[off : off+8])
		off += 8
	}
	var lengths [9]int64
	for i := 0; i < 9; i++ {
		lengths[i] = int64(binary.BigEndian.Uint64(hdr[off : off+8]))
		off += 8
	}

	var total int64 = segmentFixedHeaderSize
	for _, l := range lengths {
		if l < 0 {
			return nil, fmt.Errorf("%w: %s: negative section length", ErrSegmentLoading, path)
		}
		total += l
	}
	if total != info.Size() {
		return nil, fmt.Errorf("%w: %s: length mismatch", ErrSegmentLoading, path)
	}

	sec := make([][]byte, 9)
	pos := int64(segmentFixedHeaderSize)
	for i, l := range lengths {
		buf := make([]byte, l)
		if l > 0 {
			if _, err := f.ReadAt(buf, pos); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrSegmentLoading, path, err)
			}
		}
		sec[i] = buf
		pos += l
	}

	tableBloomBytes, indexBloomBytes, corpusBloomBytes := sec[0], sec[1], sec[2]
	tableManifestBytes, indexManifestBytes, corpusManifestBytes := sec[3], sec[4], sec[5]
	tableChunkBytes, indexChunkBytes, corpusChunkBytes := sec[6], sec[7], sec[8]

	tableChunkBytes, err = maybeDecompress(tableChunkBytes, reserved[0] == 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: table: %v", ErrSegmentLoading, path, err)
	}
	indexChunkBytes, err = maybeDecompress(indexChunkBytes, reserved[1] == 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: index: %v", ErrSegmentLoading, path, err)
	}
	corpusChunkBytes, err = maybeDecompress(corpusChunkBytes, reserved[2] == 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: corpus: %v", ErrSegmentLoading, path, err)
	}

	tableWrites, err := decodeChunkWrites(tableChunkBytes, cfg.HashAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: table writes: %v", ErrSegmentLoading, path, err)
	}
	indexWrites, err := decodeChunkWrites(indexChunkBytes, cfg.HashAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: index writes: %v", ErrSegmentLoading, path, err)
	}
	corpusWrites, err := decodeChunkWrites(corpusChunkBytes, cfg.HashAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: corpus writes: %v", ErrSegmentLoading, path, err)
	}

	tableManifest, err := decodeManifest(tableManifestBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: table manifest: %v", ErrSegmentLoading, path, err)
	}
	indexManifest, err := decodeManifest(indexManifestBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: index manifest: %v", ErrSegmentLoading, path, err)
	}
	corpusManifest, err := decodeManifest(corpusManifestBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: corpus manifest: %v", ErrSegmentLoading, path, err)
	}

	s := &Segment{
		cfg:         cfg,
		table:       newTableChunk(0),
		index:       newIndexChunk(0),
		corpus:      newCorpusChunk(0),
		count:       int(count),
		minVersion:  minVersion,
		maxVersion:  maxVersion,
		syncVersion: syncVersion,
		sealed:      true,
		synced:      true,
		path:        path,
	}
	s.table.writes, s.table.manifest = tableWrites, tableManifest
	s.table.filter = loadBloomFilter(tableBloomBytes, bloomHashCount)
	s.index.writes, s.index.manifest = indexWrites, indexManifest
	s.index.filter = loadBloomFilter(indexBloomBytes, bloomHashCount)
	s.corpus.writes, s.corpus.manifest = corpusWrites, corpusManifest
	s.corpus.filter = loadBloomFilter(corpusBloomBytes, bloomHashCount)

	return s, nil
}

// quarantineSegment renames a segment file that failed to load so it no
// longer participates in recovery scans, per spec.md §7's "file is
// quarantined" requirement.
func quarantineSegment(path string) error {
	dir := filepath.Dir(path)
	name := filepath.Base(path)
	dest := filepath.Join(dir, fmt.Sprintf("%s.quarantined.%d", name, time.Now().UnixNano()))
	return os.Rename(path, dest)
}
