package semantic

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"dbscratch/ast"
	"dbscratch/catalog"
	"dbscratch/pager"
	"dbscratch/sql/parser"
	"dbscratch/types"
)

func newTestCatalog(t *testing.T) (*catalog.Catalog, *pager.Pager) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	p, err := pager.Open(filepath.Join(t.TempDir(), "test.db"), pager.Options{Logger: log})
	require.NoError(t, err)
	c, err := catalog.Open(p, log)
	require.NoError(t, err)
	return c, p
}

func createStudents(t *testing.T, c *catalog.Catalog, p *pager.Pager) {
	t.Helper()
	require.NoError(t, p.BeginTransaction())
	cols := []catalog.ColumnDef{
		{Name: "id", Type: types.TypeI32},
		{Name: "name", Type: types.TypeChar256},
	}
	_, err := c.CreateTable("students", cols, "CREATE TABLE students (id INT PRIMARY KEY, name TEXT)")
	require.NoError(t, err)
	require.NoError(t, p.Commit())
}

func TestResolveSelectStar(t *testing.T) {
	c, p := newTestCatalog(t)
	createStudents(t, c, p)

	stmt, err := parser.Parse("SELECT * FROM students WHERE id = 1")
	require.NoError(t, err)

	r := New(c)
	require.NoError(t, r.Resolve(stmt))

	sel := stmt.(*ast.SelectStmt)
	require.NotNil(t, sel.Sem.Table)
	require.Equal(t, []int{0, 1}, sel.Sem.ColumnIndices)
	require.Equal(t, -1, sel.Sem.OrderByIndex)

	cmp := sel.Where.(*ast.BinaryExpr)
	col := cmp.Left.(*ast.ColumnRef)
	require.Equal(t, 0, col.Sem.ColumnIndex)
	require.Equal(t, types.TypeI32, col.Sem.ResolvedType)

	lit := cmp.Right.(*ast.Literal)
	require.Equal(t, types.TypeI32, lit.Type)
}

func TestResolveSelectColumnsAndOrder(t *testing.T) {
	c, p := newTestCatalog(t)
	createStudents(t, c, p)

	stmt, err := parser.Parse("SELECT name, id FROM students ORDER BY name DESC")
	require.NoError(t, err)

	r := New(c)
	require.NoError(t, r.Resolve(stmt))

	sel := stmt.(*ast.SelectStmt)
	require.Equal(t, []int{1, 0}, sel.Sem.ColumnIndices)
	require.Equal(t, 1, sel.Sem.OrderByIndex)
}

func TestResolveSelectUnknownTable(t *testing.T) {
	c, _ := newTestCatalog(t)
	stmt, err := parser.Parse("SELECT * FROM nope")
	require.NoError(t, err)

	r := New(c)
	require.Error(t, r.Resolve(stmt))
}

func TestResolveSelectUnknownColumn(t *testing.T) {
	c, p := newTestCatalog(t)
	createStudents(t, c, p)

	stmt, err := parser.Parse("SELECT ghost FROM students")
	require.NoError(t, err)

	r := New(c)
	require.Error(t, r.Resolve(stmt))
}

func TestResolveInsertExplicitColumnsAndLiteralCoercion(t *testing.T) {
	c, p := newTestCatalog(t)
	createStudents(t, c, p)

	stmt, err := parser.Parse("INSERT INTO students (name, id) VALUES ('Alice', 7)")
	require.NoError(t, err)

	r := New(c)
	require.NoError(t, r.Resolve(stmt))

	ins := stmt.(*ast.InsertStmt)
	require.Equal(t, []int{1, 0}, ins.Sem.ColumnIndices)

	nameLit := ins.Values[0].(*ast.Literal)
	require.Equal(t, types.TypeChar256, nameLit.Type)
	require.Len(t, nameLit.Data, int(types.Size(types.TypeChar256)))

	idLit := ins.Values[1].(*ast.Literal)
	require.Equal(t, types.TypeI32, idLit.Type)
	require.Equal(t, int64(7), types.AsInt64(types.TypeI32, idLit.Data))
}

func TestResolveInsertPositionalColumns(t *testing.T) {
	c, p := newTestCatalog(t)
	createStudents(t, c, p)

	stmt, err := parser.Parse("INSERT INTO students VALUES (3, 'Bob')")
	require.NoError(t, err)

	r := New(c)
	require.NoError(t, r.Resolve(stmt))

	ins := stmt.(*ast.InsertStmt)
	require.Equal(t, []int{0, 1}, ins.Sem.ColumnIndices)
}

func TestResolveUpdate(t *testing.T) {
	c, p := newTestCatalog(t)
	createStudents(t, c, p)

	stmt, err := parser.Parse("UPDATE students SET name = 'Carol' WHERE id = 2")
	require.NoError(t, err)

	r := New(c)
	require.NoError(t, r.Resolve(stmt))

	upd := stmt.(*ast.UpdateStmt)
	require.Equal(t, []int{1}, upd.Sem.ColumnIndices)

	lit := upd.Assignments[0].Value.(*ast.Literal)
	require.Equal(t, types.TypeChar256, lit.Type)
}

func TestResolveDelete(t *testing.T) {
	c, p := newTestCatalog(t)
	createStudents(t, c, p)

	stmt, err := parser.Parse("DELETE FROM students WHERE id = 4")
	require.NoError(t, err)

	r := New(c)
	require.NoError(t, r.Resolve(stmt))

	del := stmt.(*ast.DeleteStmt)
	require.NotNil(t, del.Sem.Table)
}

func TestResolveCreateTableResolvesTypesAndPK(t *testing.T) {
	c, _ := newTestCatalog(t)

	stmt, err := parser.Parse("CREATE TABLE widgets (id INT PRIMARY KEY, weight DOUBLE)")
	require.NoError(t, err)

	r := New(c)
	require.NoError(t, r.Resolve(stmt))

	ct := stmt.(*ast.CreateTableStmt)
	require.Equal(t, types.TypeI32, ct.Columns[0].ResolvedType)
	require.Equal(t, types.TypeF64, ct.Columns[1].ResolvedType)
}

func TestResolveCreateTablePKMustBeFirst(t *testing.T) {
	c, _ := newTestCatalog(t)

	stmt, err := parser.Parse("CREATE TABLE widgets (weight DOUBLE, id INT PRIMARY KEY)")
	require.NoError(t, err)

	r := New(c)
	require.Error(t, r.Resolve(stmt))
}

func TestResolveReattachesAcrossCatalogInstances(t *testing.T) {
	c1, p := newTestCatalog(t)
	createStudents(t, c1, p)

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	c2, err := catalog.Open(p, log)
	require.NoError(t, err)

	stmt, err := parser.Parse("SELECT * FROM students")
	require.NoError(t, err)

	r := New(c2)
	require.NoError(t, r.Resolve(stmt))

	sel := stmt.(*ast.SelectStmt)
	require.Equal(t, []int{0, 1}, sel.Sem.ColumnIndices)
}
