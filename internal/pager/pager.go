// Package pager opens a database file and serves pages as immutable byte
// buffers (spec.md §4.3). It holds the only open file handle; every other
// package receives page bytes, never a file reference.
package pager

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	fileHeaderSize = 100
	minPageSize    = 512
	maxPageSize    = 65536
)

// Stats reports page-cache effectiveness, wired per SPEC_FULL.md §5 as a
// stand-in for the teacher's declared-but-unused profiling flag.
type Stats struct {
	Hits   int
	Misses int
}

// Pager reads fixed-size pages (1-indexed) from a database file.
type Pager struct {
	file     *os.File
	pageSize int
	log      *logrus.Logger

	cache     map[int][]byte
	cacheSize int
	cacheFIFO []int
	stats     Stats
}

// Option configures a Pager.
type Option func(*config)

type config struct {
	cacheSize int
	log       *logrus.Logger
}

// WithCacheSize bounds the pager's in-memory page cache to n entries
// (FIFO eviction). n <= 0 disables caching. Safe because pages are read
// once and never mutated (spec.md §4.3: "MAY add a fixed-size LRU but must
// not introduce mutation hazards").
func WithCacheSize(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

// WithLogger attaches a logger used for recovered, non-fatal conditions.
func WithLogger(l *logrus.Logger) Option {
	return func(c *config) { c.log = l }
}

// Open reads the database file header, validates the page size, and
// returns a Pager ready to serve ReadPage calls.
func Open(path string, opts ...Option) (*Pager, error) {
	cfg := config{cacheSize: 0, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database file: %w", err)
	}

	header := make([]byte, fileHeaderSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("read database header: %w", err)
	}

	pageSize := int(header[16])<<8 | int(header[17])
	if pageSize == 1 {
		// SQLite's historical escape hatch: a stored value of 1 means the
		// true page size is 65536, which does not fit in a uint16 field.
		pageSize = 65536
	}
	if pageSize < minPageSize || pageSize > maxPageSize || pageSize&(pageSize-1) != 0 {
		f.Close()
		return nil, fmt.Errorf("invalid page size %d: must be a power of two between %d and %d",
			pageSize, minPageSize, maxPageSize)
	}

	p := &Pager{
		file:      f,
		pageSize:  pageSize,
		log:       cfg.log,
		cacheSize: cfg.cacheSize,
	}
	if cfg.cacheSize > 0 {
		p.cache = make(map[int][]byte, cfg.cacheSize)
	}
	return p, nil
}

// PageSize returns the database's page size in bytes.
func (p *Pager) PageSize() int { return p.pageSize }

// Stats returns a snapshot of cache hit/miss counters.
func (p *Pager) Stats() Stats { return p.stats }

// ReadPage reads page n (1-indexed) and returns it as an immutable byte
// slice. Page 1 contains the 100-byte file header at its start; callers
// that need the B-tree page header on page 1 must account for that offset
// themselves (see internal/page).
func (p *Pager) ReadPage(n int) ([]byte, error) {
	if n < 1 {
		return nil, fmt.Errorf("invalid page number %d: pages are 1-indexed", n)
	}

	if p.cache != nil {
		if buf, ok := p.cache[n]; ok {
			p.stats.Hits++
			return buf, nil
		}
	}
	p.stats.Misses++

	buf := make([]byte, p.pageSize)
	offset := int64(n-1) * int64(p.pageSize)
	read, err := p.file.ReadAt(buf, offset)
	if err != nil && read != p.pageSize {
		return nil, fmt.Errorf("read page %d at offset %d: %w", n, offset, err)
	}

	if p.cache != nil {
		p.storeInCache(n, buf)
	}
	return buf, nil
}

func (p *Pager) storeInCache(n int, buf []byte) {
	if len(p.cache) >= p.cacheSize && p.cacheSize > 0 {
		oldest := p.cacheFIFO[0]
		p.cacheFIFO = p.cacheFIFO[1:]
		delete(p.cache, oldest)
	}
	p.cache[n] = buf
	p.cacheFIFO = append(p.cacheFIFO, n)
}

// Close releases the underlying file handle.
func (p *Pager) Close() error {
	return p.file.Close()
}
