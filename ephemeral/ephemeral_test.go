package ephemeral

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"dbscratch/types"
)

func key32(n uint32) []byte {
	b := make([]byte, 4)
	types.EncodeU32(b, n)
	return b
}

func TestInsertAscendingScanOrder(t *testing.T) {
	tr := New(types.TypeU32, false)
	rng := rand.New(rand.NewSource(3))
	keys := rng.Perm(400)
	for _, k := range keys {
		require.NoError(t, tr.Insert(key32(uint32(k)), key32(uint32(k))))
	}
	require.Equal(t, 400, tr.Len())

	c := NewCursor(tr)
	ok := c.First()
	require.True(t, ok)
	var got []uint32
	for ok {
		got = append(got, types.DecodeU32(c.Key()))
		ok = c.Next()
	}
	require.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i] < got[j] }))
	require.Len(t, got, 400)
}

func TestDuplicateKeysPreserveInsertionOrder(t *testing.T) {
	tr := New(types.TypeU32, true)
	require.NoError(t, tr.Insert(key32(5), []byte("first")))
	require.NoError(t, tr.Insert(key32(5), []byte("second")))
	require.NoError(t, tr.Insert(key32(5), []byte("third")))

	c := NewCursor(tr)
	ok := c.First()
	require.True(t, ok)
	require.Equal(t, []byte("first"), c.Record())
	require.True(t, c.Next())
	require.Equal(t, []byte("second"), c.Record())
	require.True(t, c.Next())
	require.Equal(t, []byte("third"), c.Record())
	require.False(t, c.Next())
}

func TestDuplicateKeyRejectedWhenNotAllowed(t *testing.T) {
	tr := New(types.TypeU32, false)
	require.NoError(t, tr.Insert(key32(1), key32(1)))
	require.Error(t, tr.Insert(key32(1), key32(2)))
}

func TestDeleteMatchesReferenceMultiset(t *testing.T) {
	tr := New(types.TypeU32, false)
	present := make(map[uint32]bool)
	rng := rand.New(rand.NewSource(4))

	for i := 0; i < 1500; i++ {
		k := uint32(rng.Intn(250))
		if present[k] {
			c := NewCursor(tr)
			ok := c.Seek(key32(k), SeekEQ)
			require.True(t, ok)
			occurred, _ := c.Delete()
			require.True(t, occurred)
			present[k] = false
		} else {
			require.NoError(t, tr.Insert(key32(k), key32(k)))
			present[k] = true
		}
	}

	var want []uint32
	for k, ok := range present {
		if ok {
			want = append(want, k)
		}
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	var got []uint32
	c := NewCursor(tr)
	ok := c.First()
	for ok {
		got = append(got, types.DecodeU32(c.Key()))
		ok = c.Next()
	}
	require.Equal(t, want, got)
}

func TestSeekBoundaryOperators(t *testing.T) {
	tr := New(types.TypeU32, false)
	for _, k := range []uint32{10, 20, 30, 40} {
		require.NoError(t, tr.Insert(key32(k), key32(k)))
	}

	c := NewCursor(tr)
	require.True(t, c.Seek(key32(25), SeekGE))
	require.Equal(t, uint32(30), types.DecodeU32(c.Key()))

	require.True(t, c.Seek(key32(25), SeekLE))
	require.Equal(t, uint32(20), types.DecodeU32(c.Key()))

	require.True(t, c.Seek(key32(20), SeekGT))
	require.Equal(t, uint32(30), types.DecodeU32(c.Key()))

	require.False(t, c.Seek(key32(40), SeekGT))
}
