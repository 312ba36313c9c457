// Package semantic resolves a parsed ast.Statement against the catalog:
// binding table names to relations, column names to indices, and literal
// types to their target column's declared type. Spec §6 names this an
// "external semantic analyzer" the compiler's AST contract assumes exists
// but does not itself define — grounded on the column-resolution half of
// query_parser/code-generator (SELECT's Columns/WhereCol strings resolved
// against the target table there) generalized from string column names
// carried all the way to codegen into indices resolved once, up front,
// here.
package semantic

import (
	"fmt"
	"strings"

	"dbscratch/ast"
	"dbscratch/catalog"
	"dbscratch/sql/parser"
	"dbscratch/types"
)

// Resolver binds statements to a live catalog. One Resolver per engine;
// Resolve is called once per top-level statement, inside the statement's
// transaction, since a first reference to a table may need to Attach it
// (open its B+Tree) for the first time this process.
type Resolver struct {
	cat *catalog.Catalog
}

// New returns a Resolver over cat.
func New(cat *catalog.Catalog) *Resolver {
	return &Resolver{cat: cat}
}

// Resolve annotates stmt's Sem payloads in place. DDL statements
// (CREATE/DROP TABLE) and transaction control statements need no
// resolution against existing relations beyond type-name lookup.
func (r *Resolver) Resolve(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.SelectStmt:
		return r.resolveSelect(s)
	case *ast.InsertStmt:
		return r.resolveInsert(s)
	case *ast.UpdateStmt:
		return r.resolveUpdate(s)
	case *ast.DeleteStmt:
		return r.resolveDelete(s)
	case *ast.CreateTableStmt:
		return r.resolveCreateTable(s)
	case *ast.DropTableStmt:
		return nil // table existence is checked by the host function when the program runs
	case *ast.BeginStmt, *ast.CommitStmt, *ast.RollbackStmt:
		return nil
	default:
		return fmt.Errorf("semantic: unknown statement type %T", stmt)
	}
}

// AttachTable Attach-es name's relation (opening its B+Tree from its
// stored schema if this process hasn't touched it yet) and returns it —
// exposed for callers outside statement resolution, e.g. a debug/inspect
// command that needs a live *catalog.Relation without compiling a
// statement against it first.
func (r *Resolver) AttachTable(name string) (*catalog.Relation, error) {
	if _, err := r.resolveTable(name); err != nil {
		return nil, err
	}
	rel, _ := r.cat.Lookup(name)
	return rel, nil
}

// resolveTable binds name to a live ResolvedTable, Attach-ing the
// relation's B+Tree on first reference by re-parsing its stored SQL (spec
// §6's catalog schema carries the original CREATE TABLE text precisely so
// this is possible on every process, not just the one that ran the
// CREATE).
func (r *Resolver) resolveTable(name string) (*ast.ResolvedTable, error) {
	rel, ok := r.cat.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("semantic: unknown table %q", name)
	}
	if rel.Tree == nil {
		stmt, err := parser.Parse(rel.SQL)
		if err != nil {
			return nil, fmt.Errorf("semantic: re-parse stored schema for %q: %w", name, err)
		}
		create, ok := stmt.(*ast.CreateTableStmt)
		if !ok {
			return nil, fmt.Errorf("semantic: stored schema for %q is not a CREATE TABLE", name)
		}
		cols, err := resolveColumnTypes(create.Columns)
		if err != nil {
			return nil, err
		}
		r.cat.Attach(rel, catalogColumns(cols))
	}

	resolved := &ast.ResolvedTable{
		Name:        rel.Name,
		RootPage:    rel.RootPage,
		ColumnIndex: make(map[string]int, len(rel.Columns)),
	}
	for i, c := range rel.Columns {
		resolved.Columns = append(resolved.Columns, ast.ColumnDef{Name: c.Name, ResolvedType: c.Type})
		resolved.ColumnIndex[c.Name] = i
	}
	return resolved, nil
}

func catalogColumns(cols []ast.ColumnDef) []catalog.ColumnDef {
	out := make([]catalog.ColumnDef, len(cols))
	for i, c := range cols {
		out[i] = catalog.ColumnDef{Name: c.Name, Type: c.ResolvedType}
	}
	return out
}

func (r *Resolver) resolveSelect(s *ast.SelectStmt) error {
	table, err := r.resolveTable(s.Table)
	if err != nil {
		return err
	}
	s.Sem.Table = table

	indices, err := columnIndicesOrAll(s.Columns, table)
	if err != nil {
		return err
	}
	s.Sem.ColumnIndices = indices

	s.Sem.OrderByIndex = -1
	if s.Order != nil {
		idx, ok := table.ColumnIndex[s.Order.Column]
		if !ok {
			return fmt.Errorf("semantic: unknown ORDER BY column %q", s.Order.Column)
		}
		s.Sem.OrderByIndex = idx
	}

	if s.Where != nil {
		if err := r.resolveExpr(s.Where, table); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) resolveInsert(s *ast.InsertStmt) error {
	table, err := r.resolveTable(s.Table)
	if err != nil {
		return err
	}
	s.Sem.Table = table

	names := s.Columns
	if names == nil {
		for _, c := range table.Columns {
			names = append(names, c.Name)
		}
	}
	if len(names) != len(s.Values) {
		return fmt.Errorf("semantic: %d columns but %d values", len(names), len(s.Values))
	}

	indices := make([]int, len(names))
	for i, name := range names {
		idx, ok := table.ColumnIndex[name]
		if !ok {
			return fmt.Errorf("semantic: unknown column %q", name)
		}
		indices[i] = idx
		if lit, ok := s.Values[i].(*ast.Literal); ok {
			if err := coerceLiteral(lit, table.Columns[idx].ResolvedType); err != nil {
				return err
			}
		} else {
			return fmt.Errorf("semantic: INSERT values must be literals, column %q is not", name)
		}
	}
	s.Sem.ColumnIndices = indices
	return nil
}

func (r *Resolver) resolveUpdate(s *ast.UpdateStmt) error {
	table, err := r.resolveTable(s.Table)
	if err != nil {
		return err
	}
	s.Sem.Table = table

	indices := make([]int, len(s.Assignments))
	for i, a := range s.Assignments {
		idx, ok := table.ColumnIndex[a.Column]
		if !ok {
			return fmt.Errorf("semantic: unknown column %q", a.Column)
		}
		indices[i] = idx
		if lit, ok := a.Value.(*ast.Literal); ok {
			if err := coerceLiteral(lit, table.Columns[idx].ResolvedType); err != nil {
				return err
			}
		} else if err := r.resolveExpr(a.Value, table); err != nil {
			return err
		}
	}
	s.Sem.ColumnIndices = indices

	if s.Where != nil {
		return r.resolveExpr(s.Where, table)
	}
	return nil
}

func (r *Resolver) resolveDelete(s *ast.DeleteStmt) error {
	table, err := r.resolveTable(s.Table)
	if err != nil {
		return err
	}
	s.Sem.Table = table
	if s.Where != nil {
		return r.resolveExpr(s.Where, table)
	}
	return nil
}

// resolveCreateTable resolves each column's surface type name to a
// types.DataType. The primary key is always column 0 in the compiled
// tuple format (the catalog's btree stores it as the tree key, not a
// record column) — an explicit PRIMARY KEY marker is only accepted on the
// first column; a table with none declared still treats column 0 as the
// key, matching the master catalog's own (id, ...) shape (spec §6).
func (r *Resolver) resolveCreateTable(s *ast.CreateTableStmt) error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("semantic: CREATE TABLE %q has no columns", s.Table)
	}
	cols, err := resolveColumnTypes(s.Columns)
	if err != nil {
		return err
	}
	s.Columns = cols
	for i, c := range s.Columns {
		if c.PrimaryKey && i != 0 {
			return fmt.Errorf("semantic: PRIMARY KEY must be the first column (got %q at position %d)", c.Name, i)
		}
	}
	return nil
}

func resolveColumnTypes(cols []ast.ColumnDef) ([]ast.ColumnDef, error) {
	out := make([]ast.ColumnDef, len(cols))
	for i, c := range cols {
		t, err := typeNameToDataType(c.TypeName)
		if err != nil {
			return nil, err
		}
		c.ResolvedType = t
		out[i] = c
	}
	return out, nil
}

func typeNameToDataType(name string) (types.DataType, error) {
	switch strings.ToUpper(name) {
	case "U8":
		return types.TypeU8, nil
	case "U16":
		return types.TypeU16, nil
	case "U32":
		return types.TypeU32, nil
	case "U64":
		return types.TypeU64, nil
	case "I8":
		return types.TypeI8, nil
	case "I16":
		return types.TypeI16, nil
	case "I32", "INT", "INTEGER":
		return types.TypeI32, nil
	case "I64", "BIGINT":
		return types.TypeI64, nil
	case "F32", "FLOAT", "REAL":
		return types.TypeF32, nil
	case "F64", "DOUBLE":
		return types.TypeF64, nil
	case "CHAR8":
		return types.TypeChar8, nil
	case "CHAR16":
		return types.TypeChar16, nil
	case "CHAR32":
		return types.TypeChar32, nil
	case "CHAR64":
		return types.TypeChar64, nil
	case "CHAR128":
		return types.TypeChar128, nil
	case "CHAR256", "TEXT", "VARCHAR", "STRING":
		return types.TypeChar256, nil
	default:
		return 0, fmt.Errorf("semantic: unknown column type %q", name)
	}
}

// coerceLiteral re-encodes lit's raw bytes into target's width/type when
// the parser guessed a narrower or wider tag than the column declares
// (every bare integer parses as I32, or I64 past the int32 range, and
// every quoted string as CHAR256 — see
// sql/parser.parseNumberLiteral) — this is where that guess is corrected.
func coerceLiteral(lit *ast.Literal, target types.DataType) error {
	if lit.Type == types.TypeNull {
		lit.Data = make([]byte, types.Size(target))
		lit.Type = target
		lit.Sem.ResolvedType = target
		return nil
	}
	if target.IsChar() {
		if !lit.Type.IsChar() {
			return fmt.Errorf("semantic: cannot store a non-string literal in a %s column", target)
		}
		width := int(types.Size(target))
		out := make([]byte, width)
		copy(out, lit.Data)
		lit.Data = out
		lit.Type = target
		lit.Sem.ResolvedType = target
		return nil
	}
	if !lit.Type.IsNumeric() || !target.IsNumeric() {
		return fmt.Errorf("semantic: cannot store a %s literal in a %s column", lit.Type, target)
	}
	var raw []byte
	if target.IsFloat() {
		raw = make([]byte, types.Size(target))
		types.PutFloat64(target, raw, types.AsFloat64(lit.Type, lit.Data))
	} else {
		raw = make([]byte, types.Size(target))
		types.PutInt64(target, raw, types.AsInt64(lit.Type, lit.Data))
	}
	lit.Data = raw
	lit.Type = target
	lit.Sem.ResolvedType = target
	return nil
}

// resolveExpr walks an expression tree, resolving ColumnRef indices
// against table and stamping every node's ResolvedType.
func (r *Resolver) resolveExpr(expr ast.Expr, table *ast.ResolvedTable) error {
	switch e := expr.(type) {
	case *ast.ColumnRef:
		idx, ok := table.ColumnIndex[e.Name]
		if !ok {
			return fmt.Errorf("semantic: unknown column %q", e.Name)
		}
		e.Sem.ColumnIndex = idx
		e.Sem.ResolvedType = table.Columns[idx].ResolvedType
		return nil

	case *ast.Literal:
		e.Sem.ResolvedType = e.Type
		return nil

	case *ast.BinaryExpr:
		if err := r.resolveExpr(e.Left, table); err != nil {
			return err
		}
		if err := r.resolveExpr(e.Right, table); err != nil {
			return err
		}
		if lit, ok := e.Left.(*ast.Literal); ok {
			if other := operandType(e.Right); other != types.TypeNull {
				if err := coerceLiteral(lit, other); err != nil {
					return err
				}
			}
		}
		if lit, ok := e.Right.(*ast.Literal); ok {
			if other := operandType(e.Left); other != types.TypeNull {
				if err := coerceLiteral(lit, other); err != nil {
					return err
				}
			}
		}
		switch e.Op {
		case ast.OpAnd, ast.OpOr, ast.OpEQ, ast.OpNE, ast.OpLT, ast.OpLE, ast.OpGT, ast.OpGE:
			e.Sem.ResolvedType = types.TypeU8
		default:
			e.Sem.ResolvedType = operandType(e.Left)
		}
		return nil

	case *ast.UnaryExpr:
		if err := r.resolveExpr(e.Operand, table); err != nil {
			return err
		}
		if e.Op == ast.OpNot {
			e.Sem.ResolvedType = types.TypeU8
		} else {
			e.Sem.ResolvedType = operandType(e.Operand)
		}
		return nil

	default:
		return fmt.Errorf("semantic: unknown expression type %T", expr)
	}
}

func operandType(e ast.Expr) types.DataType {
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

// columnIndicesOrAll resolves an explicit SELECT column list, or returns
// every column index in table order for `SELECT *`.
func columnIndicesOrAll(names []string, table *ast.ResolvedTable) ([]int, error) {
	if names == nil {
		indices := make([]int, len(table.Columns))
		for i := range table.Columns {
			indices[i] = i
		}
		return indices, nil
	}
	indices := make([]int, len(names))
	for i, name := range names {
		idx, ok := table.ColumnIndex[name]
		if !ok {
			return nil, fmt.Errorf("semantic: unknown column %q", name)
		}
		indices[i] = idx
	}
	return indices, nil
}
