package parser

import (
	"strings"
	"testing"

	"dbscratch/ast"
)

// TestParseStatement_InvalidSQL_ReturnsError mirrors
// query_parser/parser_test.go's table: invalid input must return an
// error, never panic.
func TestParseStatement_InvalidSQL_ReturnsError(t *testing.T) {
	tests := []string{
		"SELECT * students",
		"INSERT INTO students (\"S001\")",
		"CREATE TABLE students id int",
		"SELECT * FROM students WHERE",
		"",
	}
	for _, sql := range tests {
		t.Run(sql, func(t *testing.T) {
			_, err := Parse(sql)
			if err == nil {
				t.Fatalf("Parse(%q) expected an error", sql)
			}
		})
	}
}

func TestParseStatement_ValidSQL_NoError(t *testing.T) {
	tests := []string{
		"SELECT * FROM students",
		"SELECT id, name FROM students WHERE id = 1",
		"INSERT INTO students VALUES (1, 'Alice')",
		"INSERT INTO students (id, name) VALUES (1, 'Alice')",
		"UPDATE students SET name = 'Bob' WHERE id = 1",
		"DELETE FROM students WHERE id = 1",
		"DELETE FROM students",
		"CREATE TABLE students (id INT PRIMARY KEY, name TEXT)",
		"DROP TABLE students",
		"BEGIN",
		"COMMIT",
		"ROLLBACK",
		"SELECT k FROM t ORDER BY v DESC",
	}
	for _, sql := range tests {
		t.Run(sql, func(t *testing.T) {
			stmt, err := Parse(sql)
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", sql, err)
			}
			if stmt == nil {
				t.Fatalf("Parse(%q) returned a nil statement", sql)
			}
		})
	}
}

func TestParseSelectWhereAndOrder(t *testing.T) {
	stmt, err := Parse("SELECT k FROM t WHERE k > 1 AND v = 'x' ORDER BY v DESC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sel, ok := stmt.(*ast.SelectStmt)
	if !ok {
		t.Fatalf("expected *ast.SelectStmt, got %T", stmt)
	}
	if sel.Table != "t" || len(sel.Columns) != 1 || sel.Columns[0] != "k" {
		t.Fatalf("unexpected select shape: %+v", sel)
	}
	if sel.Order == nil || !sel.Order.Desc || sel.Order.Column != "v" {
		t.Fatalf("unexpected order by: %+v", sel.Order)
	}
	and, ok := sel.Where.(*ast.BinaryExpr)
	if !ok || and.Op != ast.OpAnd {
		t.Fatalf("expected top-level AND, got %#v", sel.Where)
	}
}

func TestParseCreateTablePrimaryKey(t *testing.T) {
	stmt, err := Parse("CREATE TABLE t (k INT PRIMARY KEY, v TEXT)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ct := stmt.(*ast.CreateTableStmt)
	if len(ct.Columns) != 2 || !ct.Columns[0].PrimaryKey || ct.Columns[1].PrimaryKey {
		t.Fatalf("unexpected columns: %+v", ct.Columns)
	}
}

func TestParseInsertExplicitColumns(t *testing.T) {
	stmt, err := Parse("INSERT INTO t (v, k) VALUES ('a', 1)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ins := stmt.(*ast.InsertStmt)
	if strings.Join(ins.Columns, ",") != "v,k" {
		t.Fatalf("unexpected columns: %v", ins.Columns)
	}
	if len(ins.Values) != 2 {
		t.Fatalf("expected 2 values, got %d", len(ins.Values))
	}
}
