package compiler

import (
	"fmt"

	"dbscratch/ast"
	"dbscratch/catalog"
	"dbscratch/ephemeral"
	"dbscratch/types"
	"dbscratch/vm"
)

// seekStrategyType classifies how a SELECT can use its table's primary
// key ordering to narrow a scan — ported from SEEK_STRATEGY_TYPE in
// compile.cpp.
type seekStrategyType int

const (
	strategyFullScan seekStrategyType = iota
	strategySeekScan
	strategyDirectLookup
)

type seekStrategy struct {
	kind        seekStrategyType
	op          vm.CompareOp
	keyLiteral  *ast.Literal
	scanForward bool
}

// analyzeWhereClause looks for a primary-key comparison in where — a
// direct `pk = literal`, or one ANDed with other conditions — and returns
// the seek it enables plus the remaining expression still needing
// per-row evaluation (nil if the whole clause was consumed by the seek).
// Ported from analyze_where_clause in compile.cpp; the C++ version
// mutates the expression tree in place, replacing the consumed predicate
// with a literal `true` or splicing out the AND — this version builds the
// remaining tree functionally instead, since ast nodes here have no
// "replace with true" convention of their own.
func analyzeWhereClause(where ast.Expr) (seekStrategy, ast.Expr) {
	none := seekStrategy{kind: strategyFullScan, scanForward: true}
	if where == nil {
		return none, nil
	}

	if bin, ok := where.(*ast.BinaryExpr); ok {
		if col, ok := bin.Left.(*ast.ColumnRef); ok && col.Sem.ColumnIndex == 0 {
			if lit, ok := bin.Right.(*ast.Literal); ok {
				switch bin.Op {
				case ast.OpEQ:
					return seekStrategy{kind: strategyDirectLookup, op: vm.CompareEQ, keyLiteral: lit, scanForward: true}, nil
				case ast.OpLT:
					return seekStrategy{kind: strategySeekScan, op: vm.CompareLT, keyLiteral: lit, scanForward: false}, nil
				case ast.OpLE:
					return seekStrategy{kind: strategySeekScan, op: vm.CompareLE, keyLiteral: lit, scanForward: false}, nil
				case ast.OpGT:
					return seekStrategy{kind: strategySeekScan, op: vm.CompareGT, keyLiteral: lit, scanForward: true}, nil
				case ast.OpGE:
					return seekStrategy{kind: strategySeekScan, op: vm.CompareGE, keyLiteral: lit, scanForward: true}, nil
				}
			}
		}

		if bin.Op == ast.OpAnd {
			if strat, remaining := analyzeWhereClause(bin.Left); strat.kind != strategyFullScan {
				if remaining == nil {
					return strat, bin.Right
				}
				return strat, &ast.BinaryExpr{Op: ast.OpAnd, Left: remaining, Right: bin.Right}
			}
			if strat, remaining := analyzeWhereClause(bin.Right); strat.kind != strategyFullScan {
				if remaining == nil {
					return strat, bin.Left
				}
				return strat, &ast.BinaryExpr{Op: ast.OpAnd, Left: bin.Left, Right: remaining}
			}
		}
	}

	return none, where
}

// compileSelect ports compile_select in compile.cpp: a direct PK lookup
// skips scanning entirely; a PK-bounded seek narrows where the scan
// starts; ORDER BY materializes results into an ephemeral tree keyed on
// the sort column before replaying them out in order.
func compileSelect(stmt *ast.SelectStmt, cat *catalog.Catalog) (Program, error) {
	rel, ok := cat.Lookup(stmt.Table)
	if !ok {
		return Program{}, fmt.Errorf("compiler: unknown table %q", stmt.Table)
	}

	b := newBuilder()
	tableCursor := b.openCursor(tableCursorContext(rel))

	strategy, remainingWhere := analyzeWhereClause(stmt.Where)

	if strategy.kind == strategyDirectLookup {
		keyReg := b.loadLiteral(strategy.keyLiteral.Type, strategy.keyLiteral.Data)
		found := b.seek(tableCursor, keyReg, vm.CompareEQ, autoRegister)

		foundCtx := b.beginIf(found)
		{
			// The PK predicate is already handled by the seek; any
			// AND-combined remainder still needs to hold for this row.
			var remainderCtx ifContext
			hasRemainder := remainingWhere != nil
			if hasRemainder {
				remainderResult := compileExpr(b, remainingWhere, tableCursor)
				remainderCtx = b.beginIf(remainderResult)
			}

			resultCount := len(stmt.Sem.ColumnIndices)
			resultStart := b.regs.allocateRange(resultCount)
			for i, idx := range stmt.Sem.ColumnIndices {
				b.column(tableCursor, idx, resultStart+i)
			}
			b.result(resultStart, resultCount)

			if hasRemainder {
				b.endIf(remainderCtx)
			}
		}
		b.endIf(foundCtx)

		b.closeCursor(tableCursor)
		b.halt(0)
		b.resolveLabels()
		return Program{Instructions: b.instructions, NumRegisters: b.regs.maxUsed}, nil
	}

	hasOrderBy := stmt.Order != nil
	resultCount := len(stmt.Sem.ColumnIndices)
	if hasOrderBy {
		resultCount++
	}

	var rbCursor int
	var rbFormat types.TupleFormat
	if hasOrderBy {
		orderColType := rel.Columns[stmt.Sem.OrderByIndex].Type
		colTypes := make([]types.DataType, resultCount)
		colTypes[0] = orderColType
		for i, idx := range stmt.Sem.ColumnIndices {
			colTypes[1+i] = rel.Columns[idx].Type
		}
		rbFormat = types.NewTupleFormat(colTypes)
		rbTree := ephemeral.New(orderColType, true)
		rbCursor = b.openCursor(vm.CursorContext{Ephemeral: rbTree, Format: rbFormat})
	}

	var validReg int
	if strategy.kind == strategySeekScan {
		keyReg := b.loadLiteral(strategy.keyLiteral.Type, strategy.keyLiteral.Data)
		validReg = b.seek(tableCursor, keyReg, strategy.op, autoRegister)
	} else {
		validReg = b.first(tableCursor, autoRegister)
	}

	scanLoop := b.beginWhile(validReg)
	{
		b.regs.pushScope()

		var whereCtx ifContext
		hasWhere := remainingWhere != nil
		if hasWhere {
			whereResult := compileExpr(b, remainingWhere, tableCursor)
			whereCtx = b.beginIf(whereResult)
		}

		resultStart := b.regs.allocateRange(resultCount)
		offset := 0
		if hasOrderBy {
			b.column(tableCursor, stmt.Sem.OrderByIndex, resultStart)
			offset = 1
		}
		for i, idx := range stmt.Sem.ColumnIndices {
			b.column(tableCursor, idx, resultStart+offset+i)
		}

		if hasOrderBy {
			b.insertRecord(rbCursor, resultStart)
		} else {
			b.result(resultStart, resultCount)
		}

		if hasWhere {
			b.endIf(whereCtx)
		}

		if strategy.kind == strategySeekScan && !strategy.scanForward {
			b.prev(tableCursor, validReg)
		} else {
			b.next(tableCursor, validReg)
		}

		b.regs.popScope()
	}
	b.endWhile(scanLoop)

	b.closeCursor(tableCursor)

	if hasOrderBy {
		var rbValid int
		if stmt.Order.Desc {
			rbValid = b.last(rbCursor, autoRegister)
		} else {
			rbValid = b.first(rbCursor, autoRegister)
		}

		outputLoop := b.beginWhile(rbValid)
		{
			b.regs.pushScope()

			outputCount := len(stmt.Sem.ColumnIndices)
			outputStart := b.columns(rbCursor, 1, outputCount)
			b.result(outputStart, outputCount)

			if stmt.Order.Desc {
				b.prev(rbCursor, rbValid)
			} else {
				b.next(rbCursor, rbValid)
			}

			b.regs.popScope()
		}
		b.endWhile(outputLoop)

		b.closeCursor(rbCursor)
	}

	b.halt(0)
	b.resolveLabels()
	return Program{Instructions: b.instructions, NumRegisters: b.regs.maxUsed}, nil
}
