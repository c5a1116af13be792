// Ledger page: one fixed-size, file-backed append-only slab of Writes.
//
// Pages are created full-size up front (Truncate to Config.BufferPageSize)
// and never resized — a page is deleted only once every Write it holds
// has been transported to a Segment (invariant 2). Framing on disk is
// [4-byte frameSize][Write bytes]*, the same length-prefixed line format
// the teacher uses for its own append-only file ("writeAt overwrites...",
// write.go) generalized from single-record lines to arbitrary frames.
package vellum

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const pageFrameHeaderSize = 4

// page is one Ledger slab. All mutation is serialized by mu; reads of
// the in-memory writes slice by other goroutines must go through a
// method that takes mu (or a snapshot taken while holding it).
type page struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	cap    int64
	tail   int64
	head   int // index of the next write to transport
	writes []Write
	filter *bloomFilter
	sealed bool // true once rotated out as no longer the current page
	cfg    Config
}

func openPage(path string, cfg Config) (*page, error) {
	_, statErr := os.Stat(path)
	exists := statErr == nil

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}

	p := &page{
		path:   path,
		file:   f,
		cap:    cfg.BufferPageSize,
		filter: newBloomFilter(cfg.ExpectedInsertions),
		cfg:    cfg,
	}

	if !exists {
		if err := f.Truncate(cfg.BufferPageSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("size page: %w", err)
		}
		return p, nil
	}

	if err := p.recover(); err != nil {
		f.Close()
		return nil, err
	}
	return p, nil
}

// recover rebuilds the in-memory write list and tail offset by scanning
// the page file's frames from the start until a zero-length (unwritten)
// frame is found.
func (p *page) recover() error {
	info, err := p.file.Stat()
	if err != nil {
		return err
	}
	p.cap = info.Size()

	var off int64
	hdr := make([]byte, pageFrameHeaderSize)
	for off+pageFrameHeaderSize <= p.cap {
		if _, err := p.file.ReadAt(hdr, off); err != nil && err != io.EOF {
			return err
		}
		n := binary.BigEndian.Uint32(hdr)
		if n == 0 {
			break
		}
		if off+int64(pageFrameHeaderSize)+int64(n) > p.cap {
			break
		}
		buf := make([]byte, n)
		if _, err := p.file.ReadAt(buf, off+pageFrameHeaderSize); err != nil && err != io.EOF {
			return err
		}
		w, _, err := DecodeWrite(buf, p.cfg.HashAlgorithm)
		if err != nil {
			break
		}
		p.writes = append(p.writes, w)
		p.filter.Add(w.TripleBytes())
		off += int64(pageFrameHeaderSize) + int64(n)
	}
	p.tail = off
	return nil
}

// insert appends w to the page. Returns ErrCapacity if the frame does
// not fit in the remaining space; the caller must rotate to a new page
// and retry.
func (p *page) insert(w Write) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	body := w.Encode()
	frameLen := int64(pageFrameHeaderSize + len(body))
	if p.tail+frameLen > p.cap {
		return ErrCapacity
	}

	frame := make([]byte, frameLen)
	binary.BigEndian.PutUint32(frame[0:4], uint32(len(body)))
	copy(frame[pageFrameHeaderSize:], body)

	if _, err := p.file.WriteAt(frame, p.tail); err != nil {
		return fmt.Errorf("page write: %w", err)
	}
	if p.cfg.SyncWrites {
		if err := p.file.Sync(); err != nil {
			return fmt.Errorf("page sync: %w", err)
		}
	}

	p.tail += frameLen
	p.writes = append(p.writes, w)
	p.filter.Add(w.TripleBytes())
	return nil
}

// snapshot returns a copy of every write still resident in the page —
// writes before head have already been transported into the
// Database and must not be double-counted by a caller overlaying this
// snapshot on top of Database reads.
func (p *page) snapshot() []Write {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Write, len(p.writes)-p.head)
	copy(out, p.writes[p.head:])
	return out
}

// next returns the oldest undrained write, if any.
func (p *page) next() (Write, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.head >= len(p.writes) {
		return Write{}, false
	}
	return p.writes[p.head], true
}

// markDrained advances the drain head by one.
func (p *page) markDrained() {
	p.mu.Lock()
	p.head++
	p.mu.Unlock()
}

// fullyDrained reports whether every write currently known to the page
// has been transported.
func (p *page) fullyDrained() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sealed && p.head >= len(p.writes)
}

func (p *page) seal() {
	p.mu.Lock()
	p.sealed = true
	p.mu.Unlock()
}

func (p *page) remainingCapacity() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cap - p.tail
}

func (p *page) close() error {
	return p.file.Close()
}

func (p *page) removeFile() error {
	return os.Remove(p.path)
}

func pagePath(dir string, seq int) string {
	return filepath.Join(dir, fmt.Sprintf("page-%010d.vlp", seq))
}
