package compiler

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"dbscratch/catalog"
	"dbscratch/pager"
	"dbscratch/sql/parser"
	"dbscratch/sql/semantic"
	"dbscratch/types"
	"dbscratch/vm"
)

// testEnv wires pager+catalog+semantic the way engine.Engine eventually
// will, giving each test a from-scratch database to compile and run
// statements against.
type testEnv struct {
	t       *testing.T
	pager   *pager.Pager
	catalog *catalog.Catalog
	sem     *semantic.Resolver
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	p, err := pager.Open(filepath.Join(t.TempDir(), "test.db"), pager.Options{Logger: log})
	require.NoError(t, err)
	c, err := catalog.Open(p, log)
	require.NoError(t, err)
	return &testEnv{t: t, pager: p, catalog: c, sem: semantic.New(c)}
}

// run parses, resolves, compiles, and executes sql inside its own
// transaction, collecting any RESULT rows emitted.
func (e *testEnv) run(sql string) [][]vm.Value {
	e.t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(e.t, err)
	require.NoError(e.t, e.sem.Resolve(stmt))

	prog, err := Compile(stmt, e.catalog)
	require.NoError(e.t, err)

	require.NoError(e.t, e.pager.BeginTransaction())

	var rows [][]vm.Value
	m := vm.New(e.pager, prog.NumRegisters, prog.HostFunctions, func(row []vm.Value) {
		cp := make([]vm.Value, len(row))
		copy(cp, row)
		rows = append(rows, cp)
	})

	outcome, err := m.Execute(prog.Instructions)
	require.NoError(e.t, err)
	require.Equal(e.t, vm.OutcomeOK, outcome)
	require.NoError(e.t, e.pager.Commit())
	return rows
}

func intVal(t *testing.T, v vm.Value) int64 {
	t.Helper()
	return types.AsInt64(v.Type, v.Data)
}

func TestCompileCreateTableThenInsertAndSelect(t *testing.T) {
	env := newTestEnv(t)

	env.run("CREATE TABLE students (id INT PRIMARY KEY, age INT)")
	env.run("INSERT INTO students (id, age) VALUES (1, 20)")
	env.run("INSERT INTO students (id, age) VALUES (2, 21)")
	env.run("INSERT INTO students (id, age) VALUES (3, 22)")

	rows := env.run("SELECT id, age FROM students")
	require.Len(t, rows, 3)
}

func TestCompileDirectLookupSelect(t *testing.T) {
	env := newTestEnv(t)
	env.run("CREATE TABLE students (id INT PRIMARY KEY, age INT)")
	env.run("INSERT INTO students (id, age) VALUES (1, 20)")
	env.run("INSERT INTO students (id, age) VALUES (2, 21)")

	rows := env.run("SELECT age FROM students WHERE id = 2")
	require.Len(t, rows, 1)
	require.Equal(t, int64(21), intVal(t, rows[0][0]))
}

func TestCompileDirectLookupWithRemainderPredicate(t *testing.T) {
	env := newTestEnv(t)
	env.run("CREATE TABLE students (id INT PRIMARY KEY, age INT)")
	env.run("INSERT INTO students (id, age) VALUES (1, 20)")

	// Redesigned DIRECT_LOOKUP behavior: the AND-combined remainder still
	// must hold, unlike the original implementation's fast path which
	// dropped it silently once the PK predicate matched.
	rows := env.run("SELECT age FROM students WHERE id = 1 AND age = 99")
	require.Len(t, rows, 0)

	rows = env.run("SELECT age FROM students WHERE id = 1 AND age = 20")
	require.Len(t, rows, 1)
}

func TestCompileSeekScanRange(t *testing.T) {
	env := newTestEnv(t)
	env.run("CREATE TABLE students (id INT PRIMARY KEY, age INT)")
	env.run("INSERT INTO students (id, age) VALUES (1, 20)")
	env.run("INSERT INTO students (id, age) VALUES (2, 21)")
	env.run("INSERT INTO students (id, age) VALUES (3, 22)")

	rows := env.run("SELECT id FROM students WHERE id > 1")
	require.Len(t, rows, 2)
}

func TestCompileOrderBy(t *testing.T) {
	env := newTestEnv(t)
	env.run("CREATE TABLE students (id INT PRIMARY KEY, age INT)")
	env.run("INSERT INTO students (id, age) VALUES (1, 22)")
	env.run("INSERT INTO students (id, age) VALUES (2, 20)")
	env.run("INSERT INTO students (id, age) VALUES (3, 21)")

	rows := env.run("SELECT id FROM students ORDER BY age")
	require.Len(t, rows, 3)
	require.Equal(t, int64(2), intVal(t, rows[0][0]))
	require.Equal(t, int64(3), intVal(t, rows[1][0]))
	require.Equal(t, int64(1), intVal(t, rows[2][0]))
}

func TestCompileUpdate(t *testing.T) {
	env := newTestEnv(t)
	env.run("CREATE TABLE students (id INT PRIMARY KEY, age INT)")
	env.run("INSERT INTO students (id, age) VALUES (1, 20)")

	env.run("UPDATE students SET age = 30 WHERE id = 1")

	rows := env.run("SELECT age FROM students WHERE id = 1")
	require.Len(t, rows, 1)
	require.Equal(t, int64(30), intVal(t, rows[0][0]))
}

func TestCompileDeleteWhereLeavesOtherRows(t *testing.T) {
	env := newTestEnv(t)
	env.run("CREATE TABLE students (id INT PRIMARY KEY, age INT)")
	env.run("INSERT INTO students (id, age) VALUES (1, 20)")
	env.run("INSERT INTO students (id, age) VALUES (2, 21)")
	env.run("INSERT INTO students (id, age) VALUES (3, 22)")

	env.run("DELETE FROM students WHERE age = 21")

	rows := env.run("SELECT id FROM students")
	require.Len(t, rows, 2)
}

func TestCompileDropTable(t *testing.T) {
	env := newTestEnv(t)
	env.run("CREATE TABLE students (id INT PRIMARY KEY, age INT)")
	env.run("DROP TABLE students")

	_, ok := env.catalog.Lookup("students")
	require.False(t, ok)
}

func TestCompileBeginCommitRollbackAreSingleOpcodePrograms(t *testing.T) {
	for _, fn := range []func() (Program, error){compileBegin, compileCommit, compileRollback} {
		prog, err := fn()
		require.NoError(t, err)
		require.Len(t, prog.Instructions, 2) // the op itself, then HALT
	}
}
