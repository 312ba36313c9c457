package btree

import (
	"math/rand"
	"path/filepath"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"dbscratch/pager"
	"dbscratch/types"
)

func newTestTree(t *testing.T) (*Tree, *pager.Pager) {
	t.Helper()
	dir := t.TempDir()
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	p, err := pager.Open(filepath.Join(dir, "test.db"), pager.Options{Logger: log})
	require.NoError(t, err)
	require.NoError(t, p.BeginTransaction())
	tr, err := Create(p, types.TypeU32, 8)
	require.NoError(t, err)
	return tr, p
}

func key32(n uint32) []byte {
	b := make([]byte, 4)
	types.EncodeU32(b, n)
	return b
}

func record8(n uint32) []byte {
	b := make([]byte, 8)
	types.EncodeU32(b, n)
	return b
}

func TestInsertAscendingScanOrder(t *testing.T) {
	tr, p := newTestTree(t)

	rng := rand.New(rand.NewSource(1))
	keys := rng.Perm(500)
	for _, k := range keys {
		require.NoError(t, tr.Insert(key32(uint32(k)), record8(uint32(k))))
	}
	require.NoError(t, p.Commit())

	c := NewCursor(tr)
	ok, err := c.First()
	require.NoError(t, err)
	require.True(t, ok)

	var got []uint32
	for ok {
		got = append(got, types.DecodeU32(c.Key()))
		ok, err = c.Next()
		require.NoError(t, err)
	}
	require.Len(t, got, 500)
	require.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i] < got[j] }))
}

func TestInsertAndDeleteMatchesReferenceMultiset(t *testing.T) {
	tr, p := newTestTree(t)

	present := make(map[uint32]bool)
	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 2000; i++ {
		k := uint32(rng.Intn(300))
		if present[k] {
			c := NewCursor(tr)
			ok, err := c.Seek(key32(k), SeekEQ)
			require.NoError(t, err)
			require.True(t, ok)
			_, _, err = c.Delete()
			require.NoError(t, err)
			present[k] = false
		} else {
			require.NoError(t, tr.Insert(key32(k), record8(k)))
			present[k] = true
		}
	}
	require.NoError(t, p.Commit())

	var want []uint32
	for k, ok := range present {
		if ok {
			want = append(want, k)
		}
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	var got []uint32
	c := NewCursor(tr)
	ok, err := c.First()
	require.NoError(t, err)
	for ok {
		got = append(got, types.DecodeU32(c.Key()))
		ok, err = c.Next()
		require.NoError(t, err)
	}
	require.Equal(t, want, got)
}

func TestSeekEQFailsAfterDelete(t *testing.T) {
	tr, p := newTestTree(t)
	for i := uint32(0); i < 50; i++ {
		require.NoError(t, tr.Insert(key32(i), record8(i)))
	}

	c := NewCursor(tr)
	ok, err := c.Seek(key32(17), SeekEQ)
	require.NoError(t, err)
	require.True(t, ok)
	_, _, err = c.Delete()
	require.NoError(t, err)

	c2 := NewCursor(tr)
	ok, err = c2.Seek(key32(17), SeekEQ)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, p.Commit())
}

func TestLeafChainLinksAreSymmetric(t *testing.T) {
	tr, p := newTestTree(t)
	for i := uint32(0); i < 800; i++ {
		require.NoError(t, tr.Insert(key32(i), record8(i)))
	}
	require.NoError(t, p.Commit())

	c := NewCursor(tr)
	ok, err := c.First()
	require.NoError(t, err)
	require.True(t, ok)

	leaf, err := tr.getNode(c.leaf)
	require.NoError(t, err)
	for {
		next := nodeNext(leaf)
		if next == 0 {
			break
		}
		nextPg, err := tr.getNode(next)
		require.NoError(t, err)
		require.Equal(t, leaf.Index, nodePrev(nextPg))
		leaf = nextPg
	}
}

func TestDeleteOnEmptyTreeIsNoop(t *testing.T) {
	tr, p := newTestTree(t)
	c := NewCursor(tr)
	ok, err := c.First()
	require.NoError(t, err)
	require.False(t, ok)

	occurred, stillValid, err := c.Delete()
	require.NoError(t, err)
	require.False(t, occurred)
	require.False(t, stillValid)
	require.NoError(t, p.Commit())
}

func TestInsertDuplicateKeyFails(t *testing.T) {
	tr, p := newTestTree(t)
	require.NoError(t, tr.Insert(key32(1), record8(1)))
	require.Error(t, tr.Insert(key32(1), record8(2)))
	require.NoError(t, p.Commit())
}
