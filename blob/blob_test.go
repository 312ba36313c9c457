package blob

import (
	"bytes"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"dbscratch/pager"
)

func newTestPager(t *testing.T) *pager.Pager {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	p, err := pager.Open(filepath.Join(t.TempDir(), "test.db"), pager.Options{Logger: log})
	require.NoError(t, err)
	return p
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(int64(n) + 1)).Read(b)
	return b
}

func TestRoundTripVariousSizes(t *testing.T) {
	p := newTestPager(t)
	cap := segmentCapacity()

	sizes := []int{0, cap, 3 * cap, 100 * 1024}
	for _, size := range sizes {
		data := randomBytes(size)

		require.NoError(t, p.BeginTransaction())
		id, err := Write(p, data)
		require.NoError(t, err)
		require.NoError(t, p.Commit())

		if size == 0 {
			require.Equal(t, uint32(0), id)
		}

		got, err := Read(p, id)
		require.NoError(t, err)
		require.True(t, bytes.Equal(data, got), "size %d round-trip mismatch", size)
		require.Equal(t, len(data), len(got))
	}
}

func TestEmptyInputReturnsIDZero(t *testing.T) {
	p := newTestPager(t)
	require.NoError(t, p.BeginTransaction())
	id, err := Write(p, nil)
	require.NoError(t, err)
	require.NoError(t, p.Commit())
	require.Equal(t, uint32(0), id)
}

func TestFreeReleasesSegmentsToFreeList(t *testing.T) {
	p := newTestPager(t)
	data := randomBytes(3 * segmentCapacity())

	require.NoError(t, p.BeginTransaction())
	id, err := Write(p, data)
	require.NoError(t, err)
	require.NoError(t, p.Commit())

	require.NoError(t, p.BeginTransaction())
	require.NoError(t, Free(p, id))
	reusable, err := p.AllocatePage()
	require.NoError(t, err)
	require.NoError(t, p.Commit())

	// Write allocated the three segments as id, id+1, id+2 on this fresh
	// pager. Free releases them head first onto the LIFO free list, so the
	// last segment is the list's head and comes back first.
	require.Equal(t, id+2, reusable)
}
