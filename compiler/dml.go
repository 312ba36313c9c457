package compiler

import (
	"fmt"

	"dbscratch/ast"
	"dbscratch/catalog"
	"dbscratch/types"
)

// compileInsert ports compile_insert in compile.cpp: evaluate each value
// expression into the tuple's register range at its resolved column
// offset, then INSERT the whole range as one row.
func compileInsert(stmt *ast.InsertStmt, cat *catalog.Catalog) (Program, error) {
	rel, ok := cat.Lookup(stmt.Table)
	if !ok {
		return Program{}, fmt.Errorf("compiler: unknown table %q", stmt.Table)
	}

	b := newBuilder()
	cursor := b.openCursor(tableCursorContext(rel))

	rowSize := len(rel.Columns)
	rowStart := b.regs.allocateRange(rowSize)

	for i, idx := range stmt.Sem.ColumnIndices {
		lit, ok := stmt.Values[i].(*ast.Literal)
		if !ok {
			return Program{}, fmt.Errorf("compiler: INSERT value %d is not a literal (resolved by semantic.Resolve)", i)
		}
		valueReg := b.loadLiteral(lit.Type, lit.Data)
		b.move(valueReg, rowStart+idx)
	}

	b.insertRecord(cursor, rowStart)
	b.closeCursor(cursor)
	b.halt(0)
	b.resolveLabels()
	return Program{Instructions: b.instructions, NumRegisters: b.regs.maxUsed}, nil
}

// compileUpdate ports compile_update: scan the whole table, and for every
// row matching WHERE, load all its columns into a register range,
// overwrite the assigned ones, and UPDATE the row in place.
func compileUpdate(stmt *ast.UpdateStmt, cat *catalog.Catalog) (Program, error) {
	rel, ok := cat.Lookup(stmt.Table)
	if !ok {
		return Program{}, fmt.Errorf("compiler: unknown table %q", stmt.Table)
	}

	b := newBuilder()
	cursor := b.openCursor(tableCursorContext(rel))

	validReg := b.first(cursor, autoRegister)
	scanLoop := b.beginWhile(validReg)
	{
		b.regs.pushScope()

		var whereCtx ifContext
		hasWhere := stmt.Where != nil
		if hasWhere {
			whereResult := compileExpr(b, stmt.Where, cursor)
			whereCtx = b.beginIf(whereResult)
		}

		rowStart := b.columns(cursor, 0, len(rel.Columns))

		for i, idx := range stmt.Sem.ColumnIndices {
			var newValueReg int
			if lit, ok := stmt.Assignments[i].Value.(*ast.Literal); ok {
				newValueReg = b.loadLiteral(lit.Type, lit.Data)
			} else {
				newValueReg = compileExpr(b, stmt.Assignments[i].Value, cursor)
			}
			b.move(newValueReg, rowStart+idx)
		}

		b.updateRecord(cursor, rowStart)

		if hasWhere {
			b.endIf(whereCtx)
		}

		b.next(cursor, validReg)
		b.regs.popScope()
	}
	b.endWhile(scanLoop)

	b.closeCursor(cursor)
	b.halt(0)
	b.resolveLabels()
	return Program{Instructions: b.instructions, NumRegisters: b.regs.maxUsed}, nil
}

// compileDelete ports compile_delete: scan the whole table, and for every
// row matching WHERE (or every row, with none), delete it — carefully
// advancing the cursor by `next` only when nothing was deleted, since a
// deletion shifts the following row into the current slot.
func compileDelete(stmt *ast.DeleteStmt, cat *catalog.Catalog) (Program, error) {
	rel, ok := cat.Lookup(stmt.Table)
	if !ok {
		return Program{}, fmt.Errorf("compiler: unknown table %q", stmt.Table)
	}

	b := newBuilder()
	cursor := b.openCursor(tableCursorContext(rel))

	validReg := b.first(cursor, autoRegister)
	scanLoop := b.beginWhile(validReg)
	{
		b.regs.pushScope()

		var shouldDelete int
		if stmt.Where != nil {
			shouldDelete = compileExpr(b, stmt.Where, cursor)
		} else {
			shouldDelete = b.loadLiteral(types.TypeU8, []byte{1})
		}

		deleteIf := b.beginIf(shouldDelete)
		{
			occurred := b.regs.allocate(autoRegister)
			stillValid := b.regs.allocate(autoRegister)
			b.deleteRecord(cursor, occurred, stillValid)

			ifValid := b.beginIf(stillValid)
			{
				b.move(stillValid, validReg)
			}
			b.beginElse(&ifValid)
			{
				b.first(cursor, validReg)
			}
			b.endIf(ifValid)
		}
		b.beginElse(&deleteIf)
		{
			b.next(cursor, validReg)
		}
		b.endIf(deleteIf)

		b.regs.popScope()
	}
	b.endWhile(scanLoop)

	b.closeCursor(cursor)
	b.halt(0)
	b.resolveLabels()
	return Program{Instructions: b.instructions, NumRegisters: b.regs.maxUsed}, nil
}
