package compiler

import (
	"fmt"

	"dbscratch/ast"
	"dbscratch/types"
	"dbscratch/vm"
)

// compileExpr walks a resolved expression tree, emitting instructions
// that leave the expression's value in the returned register — ported
// from compile_expr in compile.cpp. cursor is the table cursor ColumnRef
// nodes read from.
func compileExpr(b *builder, expr ast.Expr, cursor int) int {
	switch e := expr.(type) {
	case *ast.ColumnRef:
		return b.column(cursor, e.Sem.ColumnIndex, autoRegister)

	case *ast.Literal:
		return b.loadLiteral(e.Type, e.Data)

	case *ast.BinaryExpr:
		left := compileExpr(b, e.Left, cursor)
		right := compileExpr(b, e.Right, cursor)
		switch e.Op {
		case ast.OpEQ:
			return b.test(left, right, vm.CompareEQ, autoRegister)
		case ast.OpNE:
			return b.test(left, right, vm.CompareNE, autoRegister)
		case ast.OpLT:
			return b.test(left, right, vm.CompareLT, autoRegister)
		case ast.OpLE:
			return b.test(left, right, vm.CompareLE, autoRegister)
		case ast.OpGT:
			return b.test(left, right, vm.CompareGT, autoRegister)
		case ast.OpGE:
			return b.test(left, right, vm.CompareGE, autoRegister)
		case ast.OpAnd:
			return b.logic(left, right, vm.LogicAnd, autoRegister)
		case ast.OpOr:
			return b.logic(left, right, vm.LogicOr, autoRegister)
		case ast.OpAdd:
			return b.arithmetic(left, right, vm.ArithAdd, autoRegister)
		case ast.OpSub:
			return b.arithmetic(left, right, vm.ArithSub, autoRegister)
		case ast.OpMul:
			return b.arithmetic(left, right, vm.ArithMul, autoRegister)
		case ast.OpDiv:
			return b.arithmetic(left, right, vm.ArithDiv, autoRegister)
		default:
			panic(fmt.Sprintf("compiler: unknown binary operator %d", e.Op))
		}

	case *ast.UnaryExpr:
		operand := compileExpr(b, e.Operand, cursor)
		switch e.Op {
		case ast.OpNot:
			// NOT x == 1 - x for the boolean 0/1 encoding TEST/LOGIC produce.
			one := b.loadLiteral(types.TypeU8, []byte{1})
			return b.arithmetic(one, operand, vm.ArithSub, autoRegister)
		case ast.OpNeg:
			t := exprType(e.Operand)
			zero := b.loadLiteral(t, make([]byte, types.Size(t)))
			return b.arithmetic(zero, operand, vm.ArithSub, autoRegister)
		default:
			panic(fmt.Sprintf("compiler: unknown unary operator %d", e.Op))
		}

	default:
		panic(fmt.Sprintf("compiler: unknown expression node %T", expr))
	}
}

// exprType reads an already-resolved expression's type out of its Sem
// payload.
func exprType(e ast.Expr) types.DataType {
	switch v := e.(type) {
	case *ast.ColumnRef:
		return v.Sem.ResolvedType
	case *ast.Literal:
		return v.Sem.ResolvedType
	case *ast.BinaryExpr:
		return v.Sem.ResolvedType
	case *ast.UnaryExpr:
		return v.Sem.ResolvedType
	default:
		return types.TypeNull
	}
}
