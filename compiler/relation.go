package compiler

import (
	"dbscratch/catalog"
	"dbscratch/types"
	"dbscratch/vm"
)

// tupleFormat derives a relation's on-disk tuple layout from its resolved
// column list — ported from tuple_format_from_relation's role in
// compile.cpp's btree_cursor_from_relation, inlined here since catalog
// already keeps a Relation's Columns resolved once by Attach.
func tupleFormat(columns []catalog.ColumnDef) types.TupleFormat {
	colTypes := make([]types.DataType, len(columns))
	for i, c := range columns {
		colTypes[i] = c.Type
	}
	return types.NewTupleFormat(colTypes)
}

// tableCursorContext builds the CursorContext a table's own B+Tree is
// opened through, ported from btree_cursor_from_relation.
func tableCursorContext(rel *catalog.Relation) vm.CursorContext {
	return vm.CursorContext{BTree: rel.Tree, Format: tupleFormat(rel.Columns)}
}

// encodeChar32 pads/truncates s into a fixed 32-byte field, the width the
// master catalog stores table names in (catalog.go's masterFormat).
func encodeChar32(s string) []byte {
	b := make([]byte, types.Size(types.TypeChar32))
	copy(b, s)
	return b
}
