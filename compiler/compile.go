package compiler

import (
	"fmt"

	"dbscratch/ast"
	"dbscratch/catalog"
	"dbscratch/vm"
)

// Program is everything vm.VM needs to run a compiled statement: its
// instruction stream, the register file size to allocate, and any host
// functions the FUNCTION opcode may call into (DDL statements populate
// HostFunctions; DML/SELECT leave it nil).
type Program struct {
	Instructions  []vm.Instruction
	NumRegisters  int
	HostFunctions map[string]vm.HostFunction
}

// Compile translates stmt, which must already have been through
// semantic.Resolve, into a Program runnable against cat's relations.
func Compile(stmt ast.Statement, cat *catalog.Catalog) (Program, error) {
	switch s := stmt.(type) {
	case *ast.SelectStmt:
		return compileSelect(s, cat)
	case *ast.InsertStmt:
		return compileInsert(s, cat)
	case *ast.UpdateStmt:
		return compileUpdate(s, cat)
	case *ast.DeleteStmt:
		return compileDelete(s, cat)
	case *ast.CreateTableStmt:
		return compileCreateTable(s, cat)
	case *ast.DropTableStmt:
		return compileDropTable(s, cat)
	case *ast.BeginStmt:
		return compileBegin()
	case *ast.CommitStmt:
		return compileCommit()
	case *ast.RollbackStmt:
		return compileRollback()
	default:
		return Program{}, fmt.Errorf("compiler: unsupported statement type %T", stmt)
	}
}
