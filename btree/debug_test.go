package btree

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"dbscratch/types"
)

func TestDebugPrintIncludesInsertedKeys(t *testing.T) {
	tr, _ := newTestTree(t)
	for i := uint32(0); i < 40; i++ {
		require.NoError(t, tr.Insert(key32(i), record8(i)))
	}

	var buf bytes.Buffer
	require.NoError(t, tr.DebugPrint(&buf))

	out := buf.String()
	require.Contains(t, out, "LEAF")
	require.Contains(t, out, tr.formatKey(key32(0)))
	require.Contains(t, out, tr.formatKey(key32(39)))
}

func TestDebugPrintOnEmptyTreeDoesNotError(t *testing.T) {
	tr, _ := newTestTree(t)

	var buf bytes.Buffer
	require.NoError(t, tr.DebugPrint(&buf))
	require.Contains(t, buf.String(), "LEAF")
}

func TestFormatKeyDispatchesByDeclaredType(t *testing.T) {
	tr, _ := newTestTree(t)
	require.Equal(t, types.TypeU32, tr.keyType)
	require.Equal(t, "4", tr.formatKey(key32(4)))
}
