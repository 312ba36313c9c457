package vm

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"dbscratch/btree"
	"dbscratch/pager"
	"dbscratch/types"
)

func newTestPager(t *testing.T) *pager.Pager {
	t.Helper()
	dir := t.TempDir()
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	p, err := pager.Open(filepath.Join(dir, "test.db"), pager.Options{Logger: log})
	require.NoError(t, err)
	return p
}

func u32(n uint32) []byte {
	b := make([]byte, 4)
	types.EncodeU32(b, n)
	return b
}

var rowFormat = types.NewTupleFormat([]types.DataType{types.TypeU32, types.TypeU32})

// newTestCursorContext opens a fresh table-shaped B+Tree (key U32, one U32
// payload column) inside an already-open transaction, ready to be bound to
// a cursor via OPEN.
func newTestCursorContext(t *testing.T, p *pager.Pager) CursorContext {
	t.Helper()
	tr, err := btree.Create(p, types.TypeU32, rowFormat.RecordSize)
	require.NoError(t, err)
	return CursorContext{BTree: tr, Format: rowFormat}
}

func TestInsertSeekColumnResult(t *testing.T) {
	p := newTestPager(t)
	require.NoError(t, p.BeginTransaction())
	ctx := newTestCursorContext(t, p)

	var results [][]Value
	m := New(p, 8, nil, func(row []Value) {
		cp := make([]Value, len(row))
		copy(cp, row)
		results = append(results, cp)
	})

	program := []Instruction{
		{Op: OpOpen, P1: 0, P4: ctx},
		{Op: OpLoad, P1: 1, P4: Value{Type: types.TypeU32, Data: u32(7)}},
		{Op: OpLoad, P1: 2, P4: Value{Type: types.TypeU32, Data: u32(42)}},
		{Op: OpInsert, P1: 0, P2: 1},
		{Op: OpSeek, P1: 0, P2: 1, P3: 3, P4: CompareEQ},
		{Op: OpColumn, P1: 0, P2: 1, P3: 4},
		{Op: OpResult, P1: 4, P2: 1},
		{Op: OpClose, P1: 0},
		{Op: OpHalt, P1: 0},
	}

	outcome, err := m.Execute(program)
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, outcome)
	require.Len(t, results, 1)
	require.Equal(t, uint32(42), types.DecodeU32(results[0][0].Data))
}

func TestDuplicateInsertAborts(t *testing.T) {
	p := newTestPager(t)
	require.NoError(t, p.BeginTransaction())
	ctx := newTestCursorContext(t, p)
	m := New(p, 4, nil, nil)

	program := []Instruction{
		{Op: OpOpen, P1: 0, P4: ctx},
		{Op: OpLoad, P1: 1, P4: Value{Type: types.TypeU32, Data: u32(1)}},
		{Op: OpLoad, P1: 2, P4: Value{Type: types.TypeU32, Data: u32(1)}},
		{Op: OpInsert, P1: 0, P2: 1},
		{Op: OpInsert, P1: 0, P2: 1},
		{Op: OpHalt, P1: 0},
	}

	outcome, err := m.Execute(program)
	require.Error(t, err)
	require.Equal(t, OutcomeAbort, outcome)
}

func TestDeleteOnInvalidCursorAborts(t *testing.T) {
	p := newTestPager(t)
	require.NoError(t, p.BeginTransaction())
	ctx := newTestCursorContext(t, p)
	m := New(p, 4, nil, nil)

	program := []Instruction{
		{Op: OpOpen, P1: 0, P4: ctx},
		{Op: OpRewind, P1: 0, P2: 0, P3: 1},
		{Op: OpDelete, P1: 0, P2: 2, P3: 3},
		{Op: OpHalt, P1: 0},
	}

	outcome, err := m.Execute(program)
	require.Error(t, err)
	require.Equal(t, OutcomeAbort, outcome)
}

func TestArithmeticTypeMismatchAborts(t *testing.T) {
	m := New(nil, 4, nil, nil)
	program := []Instruction{
		{Op: OpLoad, P1: 0, P4: Value{Type: types.TypeU32, Data: u32(1)}},
		{Op: OpLoad, P1: 1, P4: Value{Type: types.TypeU8, Data: []byte{1}}},
		{Op: OpArithmetic, P1: 0, P2: 1, P3: 2, P4: ArithAdd},
		{Op: OpHalt, P1: 0},
	}

	outcome, err := m.Execute(program)
	require.Error(t, err)
	require.Equal(t, OutcomeAbort, outcome)
}

func TestBeginCommitDrivesRealPager(t *testing.T) {
	p := newTestPager(t)
	m := New(p, 1, nil, nil)

	program := []Instruction{
		{Op: OpBegin},
		{Op: OpCommit},
		{Op: OpHalt, P1: 0},
	}

	outcome, err := m.Execute(program)
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, outcome)
	require.False(t, p.InTransaction())
}

func TestHaltNonZeroExitCodeFails(t *testing.T) {
	m := New(nil, 1, nil, nil)
	outcome, err := m.Execute([]Instruction{{Op: OpHalt, P1: 1}})
	require.Error(t, err)
	require.Equal(t, OutcomeFail, outcome)
	require.Equal(t, 1, m.ExitCode())
}

func TestPack2Unpack2RoundTrip(t *testing.T) {
	m := New(nil, 5, nil, nil)
	a := u32(11)
	b := u32(22)
	program := []Instruction{
		{Op: OpLoad, P1: 0, P4: Value{Data: a}},
		{Op: OpLoad, P1: 1, P4: Value{Data: b}},
		{Op: OpPack2, P1: 0, P2: 1, P3: 2},
		{Op: OpUnpack2, P1: 2, P2: 3, P3: 4, P4: [2]int{4, 4}},
		{Op: OpHalt, P1: 0},
	}

	outcome, err := m.Execute(program)
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, outcome)
	require.Equal(t, a, m.registers[3].Data)
	require.Equal(t, b, m.registers[4].Data)
}

func TestFunctionOpcodeCallsHostFunction(t *testing.T) {
	called := false
	fns := map[string]HostFunction{
		"create_relation": func(args []Value) (Value, error) {
			called = true
			return Value{Type: types.TypeU8, Data: []byte{1}}, nil
		},
	}
	m := New(nil, 4, fns, nil)
	program := []Instruction{
		{Op: OpLoad, P1: 0, P4: Value{Type: types.TypeU32, Data: u32(0)}},
		{Op: OpFunction, P1: 0, P2: 1, P3: 1, P4: "create_relation"},
		{Op: OpHalt, P1: 0},
	}

	outcome, err := m.Execute(program)
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, outcome)
	require.True(t, called)
}
