package types

// TupleFormat is the computed layout of a relation's columns into a
// separately-stored key (always column 0) and a fixed-width, concatenated
// record for the rest. Grounded on catalog.cpp's tuple_format_from_types:
// offsets are computed once, from the column type widths, not re-derived
// on every access.
type TupleFormat struct {
	KeyType    DataType
	Columns    []DataType // full column list, Columns[0] == KeyType
	Offsets    []int      // per-record-column byte offset, Offsets[0] is always 0
	RecordSize int        // sum of non-key column widths
}

// NewTupleFormat computes offsets and RecordSize from a column type list.
// columns[0] is the primary key and is carried in Columns/KeyType but does
// not contribute to Offsets/RecordSize — it is stored in the B+Tree's key
// area, not its record area.
func NewTupleFormat(columns []DataType) TupleFormat {
	if len(columns) == 0 {
		panic("types: tuple format requires at least one column (the key)")
	}
	f := TupleFormat{
		KeyType: columns[0],
		Columns: append([]DataType(nil), columns...),
	}
	offset := 0
	for i := 1; i < len(columns); i++ {
		f.Offsets = append(f.Offsets, offset)
		offset += int(Size(columns[i]))
	}
	f.RecordSize = offset
	return f
}

// ColumnSlice returns the byte range within a record occupied by the i'th
// non-key column (i indexes into f.Columns, so i==0 is invalid — the key
// is never inside the record bytes).
func (f TupleFormat) ColumnSlice(record []byte, i int) []byte {
	if i <= 0 || i >= len(f.Columns) {
		panic("types: ColumnSlice index out of range")
	}
	off := f.Offsets[i-1]
	size := int(Size(f.Columns[i]))
	return record[off : off+size]
}

// KeySize is the fixed byte width of the key column.
func (f TupleFormat) KeySize() int {
	return int(Size(f.KeyType))
}
