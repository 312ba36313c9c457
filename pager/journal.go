package pager

import (
	"encoding/binary"
	"fmt"
	"os"

	"dbscratch/types"
)

// Journal suffix mirrors the teacher's wal_manager naming convention
// (wal_%016x.log) but holds page pre-images rather than an operation log —
// the journal here backs atomic commit/rollback of the data file, not
// crash replay of logical operations.
const journalSuffix = "-journal"

const journalMagic = 0x4A524E4C // "JRNL"

// journalHeaderSize: magic (4) + page count (4) + pre-transaction file size (8).
const journalHeaderSize = 16

// journalEntrySize: page index (4) + a full page image.
const journalEntrySize = 4 + PageSize

// journal is the write-ahead pre-image log a transaction writes before
// overwriting any page, so rollback (explicit or crash recovery) can
// restore the data file to its pre-transaction state.
type journal struct {
	path       string
	file       *os.File
	pageCount  uint32
	journaled  map[uint32]bool // pages already journaled this transaction
	preTxnSize int64           // data file size when the transaction began
}

func journalPath(dbPath string) string {
	return dbPath + journalSuffix
}

// createJournal opens a fresh journal file and writes its header,
// recording preTxnSize so rollback knows where to truncate the data file
// back to (pages allocated mid-transaction never existed before it).
func createJournal(dbPath string, preTxnSize int64) (*journal, error) {
	path := journalPath(dbPath)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("pager: create journal: %w", err)
	}
	j := &journal{
		path:       path,
		file:       f,
		journaled:  make(map[uint32]bool),
		preTxnSize: preTxnSize,
	}
	if err := j.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return j, nil
}

func (j *journal) writeHeader() error {
	hdr := make([]byte, journalHeaderSize)
	types.EncodeU32(hdr[0:], journalMagic)
	types.EncodeU32(hdr[4:], j.pageCount)
	types.EncodeU64(hdr[8:], uint64(j.preTxnSize))
	if _, err := j.file.WriteAt(hdr, 0); err != nil {
		return fmt.Errorf("pager: write journal header: %w", err)
	}
	return j.file.Sync()
}

// appendOriginal journals the pre-image of a page about to be modified,
// exactly once per transaction per page.
func (j *journal) appendOriginal(p *Page) error {
	if j.journaled[p.Index] {
		return nil
	}
	entry := make([]byte, journalEntrySize)
	types.EncodeU32(entry[0:4], p.Index)
	copy(entry[4:], p.Data)

	offset := journalHeaderSize + int64(j.pageCount)*journalEntrySize
	if _, err := j.file.WriteAt(entry, offset); err != nil {
		return fmt.Errorf("pager: append journal entry for page %d: %w", p.Index, err)
	}
	j.journaled[p.Index] = true
	j.pageCount++
	if err := j.writeHeader(); err != nil {
		return err
	}
	return j.file.Sync()
}

// entries reads back every (page index, original image) pair recorded in
// the journal, in write order — the order rollback must restore them in
// is immaterial since each entry targets a distinct page, but we restore
// oldest-first for determinism.
func (j *journal) entries() ([]journalEntryData, error) {
	entries := make([]journalEntryData, 0, j.pageCount)
	for i := uint32(0); i < j.pageCount; i++ {
		offset := journalHeaderSize + int64(i)*journalEntrySize
		buf := make([]byte, journalEntrySize)
		if _, err := j.file.ReadAt(buf, offset); err != nil {
			return nil, fmt.Errorf("pager: read journal entry %d: %w", i, err)
		}
		entries = append(entries, journalEntryData{
			index: types.DecodeU32(buf[0:4]),
			data:  append([]byte(nil), buf[4:]...),
		})
	}
	return entries, nil
}

func (j *journal) close() error {
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

func (j *journal) delete() error {
	if err := j.close(); err != nil {
		return err
	}
	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("pager: remove journal: %w", err)
	}
	return nil
}

type journalEntryData struct {
	index uint32
	data  []byte
}

// openExistingJournal reads a journal left behind by a crash and, if its
// header is intact, returns it ready for recovery. A journal with a bad
// magic is treated as absent — it never got far enough to matter.
func openExistingJournal(dbPath string) (*journal, bool, error) {
	path := journalPath(dbPath)
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("pager: open journal: %w", err)
	}
	hdr := make([]byte, journalHeaderSize)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		f.Close()
		return nil, false, nil
	}
	magic := binary.LittleEndian.Uint32(hdr[0:4])
	if magic != journalMagic {
		f.Close()
		return nil, false, nil
	}
	j := &journal{
		path:       path,
		file:       f,
		pageCount:  binary.LittleEndian.Uint32(hdr[4:8]),
		preTxnSize: int64(binary.LittleEndian.Uint64(hdr[8:16])),
		journaled:  make(map[uint32]bool),
	}
	return j, true, nil
}
