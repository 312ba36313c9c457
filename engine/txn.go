package engine

import "dbscratch/ast"

// isTransactionControl reports whether stmt is itself BEGIN, COMMIT, or
// ROLLBACK — these always run standalone, never wrapped in an engine-
// injected transaction, since nested BEGIN is illegal (spec §5).
func isTransactionControl(stmt ast.Statement) bool {
	switch stmt.(type) {
	case *ast.BeginStmt, *ast.CommitStmt, *ast.RollbackStmt:
		return true
	default:
		return false
	}
}
