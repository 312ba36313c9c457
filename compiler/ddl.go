package compiler

import (
	"dbscratch/ast"
	"dbscratch/catalog"
	"dbscratch/types"
	"dbscratch/vm"
)

// Host function names the compiler calls via the FUNCTION opcode — spec
// §6 names create_relation/drop_relation as the two DDL needs; the
// concrete implementations below are compiled per-statement closures
// (they capture the already-resolved column list and original SQL text),
// registered under these names just for this one compiled Program.
const (
	hostCreateRelation = "create_relation"
	hostDropRelation   = "drop_relation"
)

// compileCreateTable ports compile_create_table in compile.cpp, but
// simplified: the C++ version's vmfunc_create_relation only creates the
// physical B+Tree (the relation's metadata is already live in the
// in-memory catalog by the time the VM runs), and the compiler then
// separately emits opcodes that insert a master-catalog row by hand. Our
// catalog.CreateTable (catalog/catalog.go) already does both of those
// steps atomically — allocate the tree, install the master-catalog row —
// so the compiled program here is just a single FUNCTION call; see
// DESIGN.md's `compiler` entry for why the master-row-insert opcodes this
// ported from have no equivalent here.
func compileCreateTable(stmt *ast.CreateTableStmt, cat *catalog.Catalog) (Program, error) {
	b := newBuilder()

	nameReg := b.loadLiteral(types.TypeChar32, encodeChar32(stmt.Table))
	b.function(hostCreateRelation, nameReg, 1, autoRegister)

	b.halt(0)
	b.resolveLabels()

	cols := make([]catalog.ColumnDef, len(stmt.Columns))
	for i, c := range stmt.Columns {
		cols[i] = catalog.ColumnDef{Name: c.Name, Type: c.ResolvedType}
	}
	sql := stmt.SQL
	table := stmt.Table

	hostFns := map[string]vm.HostFunction{
		hostCreateRelation: func(args []vm.Value) (vm.Value, error) {
			rel, err := cat.CreateTable(table, cols, sql)
			if err != nil {
				return vm.Value{}, err
			}
			data := make([]byte, 4)
			types.EncodeU32(data, rel.RootPage)
			return vm.Value{Type: types.TypeU32, Data: data}, nil
		},
	}

	return Program{Instructions: b.instructions, NumRegisters: b.regs.maxUsed, HostFunctions: hostFns}, nil
}

// compileDropTable ports compile_drop_table, likewise simplified: our
// catalog.DropTable already clears the relation's tree and removes its
// master-catalog row, so the compiled program is one FUNCTION call rather
// than a hand-rolled scan-and-delete loop over the master catalog.
func compileDropTable(stmt *ast.DropTableStmt, cat *catalog.Catalog) (Program, error) {
	b := newBuilder()

	nameReg := b.loadLiteral(types.TypeChar32, encodeChar32(stmt.Table))
	b.function(hostDropRelation, nameReg, 1, autoRegister)

	b.halt(0)
	b.resolveLabels()

	table := stmt.Table
	hostFns := map[string]vm.HostFunction{
		hostDropRelation: func(args []vm.Value) (vm.Value, error) {
			if err := cat.DropTable(table); err != nil {
				return vm.Value{}, err
			}
			return vm.Value{Type: types.TypeU32, Data: []byte{0, 0, 0, 1}}, nil
		},
	}

	return Program{Instructions: b.instructions, NumRegisters: b.regs.maxUsed, HostFunctions: hostFns}, nil
}

func compileBegin() (Program, error) {
	b := newBuilder()
	b.begin()
	b.halt(0)
	return Program{Instructions: b.instructions, NumRegisters: b.regs.maxUsed}, nil
}

func compileCommit() (Program, error) {
	b := newBuilder()
	b.commit()
	b.halt(0)
	return Program{Instructions: b.instructions, NumRegisters: b.regs.maxUsed}, nil
}

func compileRollback() (Program, error) {
	b := newBuilder()
	b.rollback()
	b.halt(0)
	return Program{Instructions: b.instructions, NumRegisters: b.regs.maxUsed}, nil
}
