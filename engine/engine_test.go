package engine

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"dbscratch/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	e, err := Open(filepath.Join(t.TempDir(), "test.db"), Options{Logger: log, ArenaMaxCapacity: 1 << 20})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Close()) })
	return e
}

func TestExecCreateInsertSelectRoundTrip(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Exec("CREATE TABLE students (id INT PRIMARY KEY, age INT)")
	require.NoError(t, err)

	_, err = e.Exec("INSERT INTO students (id, age) VALUES (1, 20)")
	require.NoError(t, err)
	_, err = e.Exec("INSERT INTO students (id, age) VALUES (2, 21)")
	require.NoError(t, err)

	rows, err := e.Exec("SELECT id, age FROM students WHERE id = 2")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(21), types.AsInt64(rows[0][1].Type, rows[0][1].Data))
}

func TestExecImplicitTransactionRollsBackOnDuplicateInsert(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Exec("CREATE TABLE students (id INT PRIMARY KEY, age INT)")
	require.NoError(t, err)

	_, err = e.Exec("INSERT INTO students (id, age) VALUES (1, 20)")
	require.NoError(t, err)

	_, err = e.Exec("INSERT INTO students (id, age) VALUES (1, 99)")
	require.Error(t, err)
	require.False(t, e.pager.InTransaction())

	rows, err := e.Exec("SELECT age FROM students WHERE id = 1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(20), types.AsInt64(rows[0][0].Type, rows[0][0].Data))
}

func TestExecExplicitTransactionControl(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Exec("CREATE TABLE students (id INT PRIMARY KEY, age INT)")
	require.NoError(t, err)

	_, err = e.Exec("BEGIN")
	require.NoError(t, err)
	_, err = e.Exec("INSERT INTO students (id, age) VALUES (1, 20)")
	require.NoError(t, err)
	_, err = e.Exec("COMMIT")
	require.NoError(t, err)

	rows, err := e.Exec("SELECT id FROM students")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestExecDropTable(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Exec("CREATE TABLE students (id INT PRIMARY KEY, age INT)")
	require.NoError(t, err)
	_, err = e.Exec("DROP TABLE students")
	require.NoError(t, err)

	_, ok := e.catalog.Lookup("students")
	require.False(t, ok)
}
