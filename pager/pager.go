// Package pager implements the paged storage manager: it maps a flat
// file into fixed-size pages, serves cached reads, and wraps all writes
// in a transaction that is either fully committed or fully rolled back
// via a write-ahead journal of page pre-images.
//
// Grounded on storage_engine/disk_manager (file handles, page read/write)
// and wal_manager/wal_segment.go (append-then-sync durability discipline),
// adapted from the teacher's multi-file/global-page-ID design down to the
// single-file, page-image-journal design spec.md calls for.
package pager

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Pager mediates every page read/write against one data file and owns
// the single active transaction, if any. It is single-threaded per
// spec §5 — callers serialize their own access.
type Pager struct {
	path string
	file *os.File
	log  *logrus.Logger

	cache map[uint32]*Page
	// numPages is the current page count of the file, including any pages
	// allocated but not yet flushed in the active transaction.
	numPages uint32

	txn *transaction
}

type transaction struct {
	journal    *journal
	preTxnSize int64
	allocated  map[uint32]bool // pages allocated during this transaction
}

// Options configures Open.
type Options struct {
	Logger *logrus.Logger
}

// Open opens or creates the database file at path. If a journal from a
// crashed transaction is present, it is replayed (rolled back) before any
// read is served — this is the engine's only crash recovery mechanism.
// A brand-new file, or one shorter than two pages, gets page 0 (header,
// free-list head) and page 1 (reserved for the master catalog root)
// written before Open returns,
// per spec §9's bootstrap-ordering note.
func Open(path string, opts Options) (*Pager, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	existed := fileExists(path)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("pager: open %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: stat %s: %w", path, err)
	}

	p := &Pager{
		path:     path,
		file:     f,
		log:      opts.Logger,
		cache:    make(map[uint32]*Page),
		numPages: uint32(stat.Size() / PageSize),
	}

	if j, ok, err := openExistingJournal(path); err != nil {
		f.Close()
		return nil, err
	} else if ok {
		p.log.WithField("path", path).Warn("pager: recovering from journal on open")
		if err := p.recoverFromJournal(j); err != nil {
			f.Close()
			return nil, err
		}
	}

	if !existed || p.numPages < 2 {
		if err := p.bootstrap(); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		header, err := p.Get(headerPageIndex)
		if err != nil {
			f.Close()
			return nil, err
		}
		if !headerMagicValid(header) {
			f.Close()
			return nil, fmt.Errorf("pager: %s: bad header magic (truncated or not a dbscratch file)", path)
		}
		if !freeListChecksumValid(header) {
			f.Close()
			return nil, fmt.Errorf("pager: %s: free-list head checksum mismatch (corrupt header page)", path)
		}
	}

	p.log.WithFields(logrus.Fields{
		"path":  path,
		"pages": p.numPages,
		"size":  humanize.Bytes(uint64(p.numPages) * PageSize),
	}).Info("pager: opened")

	return p, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// bootstrap allocates page 0 (header) and page 1 (master catalog root,
// per spec §6) on a brand-new file. This happens outside any transaction
// since it establishes the file's initial, durable shape.
func (p *Pager) bootstrap() error {
	header := newPage(headerPageIndex)
	initHeaderPage(header)
	p.numPages = 1
	p.cache[headerPageIndex] = header
	if err := p.writePageToDisk(header); err != nil {
		return err
	}

	catalogRoot := newPage(1)
	catalogRoot.SetType(PageTypeLeafNode)
	p.numPages = 2
	p.cache[1] = catalogRoot
	if err := p.writePageToDisk(catalogRoot); err != nil {
		return err
	}
	return p.file.Sync()
}

// Get returns the page at index, loading it from disk into the cache on
// first access. Legal outside a transaction for reads; any mutation must
// happen inside one (see MarkDirty).
func (p *Pager) Get(index uint32) (*Page, error) {
	if pg, ok := p.cache[index]; ok {
		return pg, nil
	}
	pg := newPage(index)
	offset := int64(index) * PageSize
	n, err := p.file.ReadAt(pg.Data, offset)
	if err != nil && n == 0 && index >= p.numPages {
		// Page was never written; serve a zeroed page.
	} else if err != nil && n < PageSize {
		return nil, fmt.Errorf("pager: read page %d: %w", index, err)
	}
	p.cache[index] = pg
	return pg, nil
}

// MarkDirty flags a page as modified inside the active transaction,
// journaling its pre-image the first time it is called for that page
// this transaction. Idempotent within a transaction.
func (p *Pager) MarkDirty(pg *Page) error {
	if p.txn == nil {
		return fmt.Errorf("pager: MarkDirty called with no active transaction")
	}
	if !pg.Dirty {
		if err := p.txn.journal.appendOriginal(pg); err != nil {
			return err
		}
		pg.Dirty = true
	}
	return nil
}

// AllocatePage returns a fresh page index: popped from the free list if
// one is available, otherwise bumped from end-of-file. Must be called
// inside a transaction.
func (p *Pager) AllocatePage() (uint32, error) {
	if p.txn == nil {
		return 0, fmt.Errorf("pager: AllocatePage called with no active transaction")
	}

	header, err := p.Get(headerPageIndex)
	if err != nil {
		return 0, err
	}
	head := readFreeListHead(header)
	if head != 0 {
		freePage, err := p.Get(head)
		if err != nil {
			return 0, err
		}
		next := readFreeListNext(freePage)
		if err := p.MarkDirty(header); err != nil {
			return 0, err
		}
		writeFreeListHead(header, next)
		p.txn.allocated[head] = true
		p.log.WithField("page", head).Debug("pager: allocated page from free list")
		return head, nil
	}

	index := p.numPages
	p.numPages++
	pg := newPage(index)
	p.cache[index] = pg
	if err := p.MarkDirty(pg); err != nil {
		return 0, err
	}
	p.txn.allocated[index] = true
	p.log.WithField("page", index).Debug("pager: allocated page at end of file")
	return index, nil
}

// FreePage pushes index onto the head of the free list. Must be called
// inside a transaction.
func (p *Pager) FreePage(index uint32) error {
	if p.txn == nil {
		return fmt.Errorf("pager: FreePage called with no active transaction")
	}
	if index == headerPageIndex {
		return fmt.Errorf("pager: cannot free the header page")
	}

	header, err := p.Get(headerPageIndex)
	if err != nil {
		return err
	}
	pg, err := p.Get(index)
	if err != nil {
		return err
	}

	head := readFreeListHead(header)
	if err := p.MarkDirty(pg); err != nil {
		return err
	}
	pg.SetType(PageTypeFreeList)
	writeFreeListNext(pg, head)

	if err := p.MarkDirty(header); err != nil {
		return err
	}
	writeFreeListHead(header, index)

	p.log.WithField("page", index).Debug("pager: freed page")
	return nil
}

// BeginTransaction opens the single active transaction. Nested
// transactions are a programming error per spec §5.
func (p *Pager) BeginTransaction() error {
	if p.txn != nil {
		return fmt.Errorf("pager: transaction already active")
	}
	stat, err := p.file.Stat()
	if err != nil {
		return fmt.Errorf("pager: stat before begin: %w", err)
	}
	j, err := createJournal(p.path, stat.Size())
	if err != nil {
		return err
	}
	p.txn = &transaction{journal: j, preTxnSize: stat.Size(), allocated: make(map[uint32]bool)}
	p.log.Debug("pager: transaction begin")
	return nil
}

// Commit flushes every dirty page to the data file, syncs, and deletes
// the journal — the journal's absence is the commit marker per spec §4.2.
func (p *Pager) Commit() error {
	if p.txn == nil {
		return fmt.Errorf("pager: Commit called with no active transaction")
	}
	for _, pg := range p.cache {
		if pg.Dirty {
			if err := p.writePageToDisk(pg); err != nil {
				return err
			}
			pg.Dirty = false
		}
	}
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("pager: sync on commit: %w", err)
	}
	if err := p.txn.journal.delete(); err != nil {
		return err
	}
	p.log.Debug("pager: transaction commit")
	p.txn = nil
	return nil
}

// Rollback restores every journaled page's pre-image, truncates the file
// back to its pre-transaction length (undoing any allocation), and drops
// the in-memory cache entries of pages allocated this transaction; cached
// copies of journaled pages are restored from their pre-images.
func (p *Pager) Rollback() error {
	if p.txn == nil {
		return fmt.Errorf("pager: Rollback called with no active transaction")
	}
	if err := p.restoreFromJournal(p.txn.journal); err != nil {
		return err
	}
	if err := p.file.Truncate(p.txn.preTxnSize); err != nil {
		return fmt.Errorf("pager: truncate on rollback: %w", err)
	}
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("pager: sync on rollback: %w", err)
	}
	p.numPages = uint32(p.txn.preTxnSize / PageSize)
	for index := range p.txn.allocated {
		delete(p.cache, index)
	}
	if err := p.txn.journal.delete(); err != nil {
		return err
	}
	p.log.Debug("pager: transaction rollback")
	p.txn = nil
	return nil
}

// InTransaction reports whether a transaction is currently active.
func (p *Pager) InTransaction() bool {
	return p.txn != nil
}

func (p *Pager) restoreFromJournal(j *journal) error {
	entries, err := j.entries()
	if err != nil {
		return err
	}
	for _, e := range entries {
		offset := int64(e.index) * PageSize
		if _, err := p.file.WriteAt(e.data, offset); err != nil {
			return fmt.Errorf("pager: restore page %d: %w", e.index, err)
		}
		if pg, ok := p.cache[e.index]; ok {
			copy(pg.Data, e.data)
			pg.Dirty = false
		}
	}
	return nil
}

func (p *Pager) recoverFromJournal(j *journal) error {
	if err := p.restoreFromJournal(j); err != nil {
		return err
	}
	if err := p.file.Truncate(j.preTxnSize); err != nil {
		return fmt.Errorf("pager: truncate during recovery: %w", err)
	}
	if err := p.file.Sync(); err != nil {
		return err
	}
	p.numPages = uint32(j.preTxnSize / PageSize)
	return j.delete()
}

func (p *Pager) writePageToDisk(pg *Page) error {
	offset := int64(pg.Index) * PageSize
	if _, err := p.file.WriteAt(pg.Data, offset); err != nil {
		return fmt.Errorf("pager: write page %d: %w", pg.Index, err)
	}
	return nil
}

// Close flushes and closes the data file. A transaction must not be
// active.
func (p *Pager) Close() error {
	if p.txn != nil {
		return fmt.Errorf("pager: Close called with an active transaction")
	}
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("pager: sync on close: %w", err)
	}
	return p.file.Close()
}

// NumPages returns the current page count of the data file.
func (p *Pager) NumPages() uint32 {
	return p.numPages
}
