package pager

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"dbscratch/types"
)

func newTestPager(t *testing.T) (*Pager, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	p, err := Open(path, Options{Logger: log})
	require.NoError(t, err)
	return p, path
}

func TestCommitPersistsAcrossReopen(t *testing.T) {
	p, path := newTestPager(t)

	require.NoError(t, p.BeginTransaction())
	idx, err := p.AllocatePage()
	require.NoError(t, err)

	pg, err := p.Get(idx)
	require.NoError(t, err)
	require.NoError(t, p.MarkDirty(pg))
	copy(pg.Data[headerSize:], []byte("hello"))

	require.NoError(t, p.Commit())
	require.NoError(t, p.Close())

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	reopened, err := Open(path, Options{Logger: log})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(idx)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got.Data[headerSize:headerSize+5])
}

func TestRollbackRestoresPreTransactionState(t *testing.T) {
	p, path := newTestPager(t)

	require.NoError(t, p.BeginTransaction())
	idx, err := p.AllocatePage()
	require.NoError(t, err)
	pg, err := p.Get(idx)
	require.NoError(t, err)
	require.NoError(t, p.MarkDirty(pg))
	copy(pg.Data[headerSize:], []byte("committed"))
	require.NoError(t, p.Commit())

	preRollbackPages := p.NumPages()

	require.NoError(t, p.BeginTransaction())
	pg2, err := p.Get(idx)
	require.NoError(t, err)
	require.NoError(t, p.MarkDirty(pg2))
	copy(pg2.Data[headerSize:], []byte("mutated!!"))
	_, err = p.AllocatePage()
	require.NoError(t, err)
	require.NoError(t, p.Rollback())

	require.Equal(t, preRollbackPages, p.NumPages())

	got, err := p.Get(idx)
	require.NoError(t, err)
	require.Equal(t, []byte("committed"), got.Data[headerSize:headerSize+9])

	require.NoError(t, p.Close())
	_ = path
}

func TestFreeListReusesFreedPage(t *testing.T) {
	p, _ := newTestPager(t)

	require.NoError(t, p.BeginTransaction())
	idx, err := p.AllocatePage()
	require.NoError(t, err)
	require.NoError(t, p.FreePage(idx))
	require.NoError(t, p.Commit())

	require.NoError(t, p.BeginTransaction())
	reused, err := p.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, idx, reused)
	require.NoError(t, p.Commit())
}

func TestCrashRecoveryReplaysJournalOnOpen(t *testing.T) {
	p, path := newTestPager(t)

	require.NoError(t, p.BeginTransaction())
	idx, err := p.AllocatePage()
	require.NoError(t, err)
	pg, err := p.Get(idx)
	require.NoError(t, err)
	require.NoError(t, p.MarkDirty(pg))
	copy(pg.Data[headerSize:], []byte("durable"))
	require.NoError(t, p.Commit())

	// Start a second transaction, dirty a page, and "crash" before commit
	// or rollback: write the dirty page straight to disk (as a partial
	// flush would) but leave the journal in place, then drop the
	// in-memory transaction state without cleanup.
	require.NoError(t, p.BeginTransaction())
	pg2, err := p.Get(idx)
	require.NoError(t, err)
	require.NoError(t, p.MarkDirty(pg2))
	copy(pg2.Data[headerSize:], []byte("torn!!!"))
	require.NoError(t, p.writePageToDisk(pg2))
	p.txn = nil

	require.FileExists(t, journalPath(path))

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	recovered, err := Open(path, Options{Logger: log})
	require.NoError(t, err)
	defer recovered.Close()

	got, err := recovered.Get(idx)
	require.NoError(t, err)
	require.Equal(t, []byte("durable"), got.Data[headerSize:headerSize+7])
	require.NoFileExists(t, journalPath(path))
}

func TestOpenRejectsBadHeaderMagic(t *testing.T) {
	p, path := newTestPager(t)
	header, err := p.Get(headerPageIndex)
	require.NoError(t, err)
	require.NoError(t, p.BeginTransaction())
	require.NoError(t, p.MarkDirty(header))
	types.EncodeU32(header.Data[headerMagicOffset:], 0xDEADBEEF)
	require.NoError(t, p.Commit())
	require.NoError(t, p.Close())

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	_, err = Open(path, Options{Logger: log})
	require.Error(t, err)
}

func TestOpenRejectsCorruptFreeListChecksum(t *testing.T) {
	p, path := newTestPager(t)
	header, err := p.Get(headerPageIndex)
	require.NoError(t, err)
	require.NoError(t, p.BeginTransaction())
	require.NoError(t, p.MarkDirty(header))
	// Corrupt only the stored head, leaving its checksum stale.
	types.EncodeU32(header.Data[headerFreeListOff:], 42)
	require.NoError(t, p.Commit())
	require.NoError(t, p.Close())

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	_, err = Open(path, Options{Logger: log})
	require.Error(t, err)
}
