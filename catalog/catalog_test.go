package catalog

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"dbscratch/pager"
	"dbscratch/types"
)

func newTestCatalog(t *testing.T) (*Catalog, *pager.Pager) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	p, err := pager.Open(filepath.Join(t.TempDir(), "test.db"), pager.Options{Logger: log})
	require.NoError(t, err)
	c, err := Open(p, log)
	require.NoError(t, err)
	return c, p
}

func TestCreateTableThenLookup(t *testing.T) {
	c, p := newTestCatalog(t)

	require.NoError(t, p.BeginTransaction())
	cols := []ColumnDef{{Name: "k", Type: types.TypeU32}, {Name: "v", Type: types.TypeChar32}}
	rel, err := c.CreateTable("t", cols, "CREATE TABLE t (k INT, v TEXT)")
	require.NoError(t, err)
	require.NoError(t, p.Commit())

	got, ok := c.Lookup("t")
	require.True(t, ok)
	require.Equal(t, rel.RootPage, got.RootPage)
	require.Equal(t, "CREATE TABLE t (k INT, v TEXT)", got.SQL)
}

func TestCreateDuplicateTableFails(t *testing.T) {
	c, p := newTestCatalog(t)
	require.NoError(t, p.BeginTransaction())
	cols := []ColumnDef{{Name: "k", Type: types.TypeU32}}
	_, err := c.CreateTable("t", cols, "CREATE TABLE t (k INT)")
	require.NoError(t, err)
	_, err = c.CreateTable("t", cols, "CREATE TABLE t (k INT)")
	require.Error(t, err)
	require.NoError(t, p.Commit())
}

func TestDropTableRemovesFromCatalog(t *testing.T) {
	c, p := newTestCatalog(t)
	require.NoError(t, p.BeginTransaction())
	cols := []ColumnDef{{Name: "k", Type: types.TypeU32}}
	_, err := c.CreateTable("t", cols, "CREATE TABLE t (k INT)")
	require.NoError(t, err)
	require.NoError(t, c.DropTable("t"))
	require.NoError(t, p.Commit())

	_, ok := c.Lookup("t")
	require.False(t, ok)
}

func TestReopenWarmsCacheFromMasterCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	p, err := pager.Open(path, pager.Options{Logger: log})
	require.NoError(t, err)
	c, err := Open(p, log)
	require.NoError(t, err)

	require.NoError(t, p.BeginTransaction())
	cols := []ColumnDef{{Name: "k", Type: types.TypeU32}}
	_, err = c.CreateTable("people", cols, "CREATE TABLE people (k INT)")
	require.NoError(t, err)
	require.NoError(t, p.Commit())
	require.NoError(t, p.Close())

	p2, err := pager.Open(path, pager.Options{Logger: log})
	require.NoError(t, err)
	defer p2.Close()
	c2, err := Open(p2, log)
	require.NoError(t, err)

	rel, ok := c2.Lookup("people")
	require.True(t, ok)
	require.Equal(t, "CREATE TABLE people (k INT)", rel.SQL)
}
