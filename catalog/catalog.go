// Package catalog implements the master catalog: the bootstrap B+Tree at
// page 1 that records every user table's name, root page, and original
// CREATE statement (spec §6). A ristretto cache keyed by an xxhash of the
// table name avoids a linear master-catalog scan on every name lookup,
// grounded on the teacher's own go.mod, which carries ristretto and
// xxhash but never wires either of them up.
package catalog

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/sirupsen/logrus"

	"dbscratch/btree"
	"dbscratch/pager"
	"dbscratch/types"
)

// Master catalog schema, per spec §6: (id U32, name CHAR32, tbl_name
// CHAR32, rootpage U32, sql CHAR256). id is the key; the rest form the
// fixed-width record.
var masterFormat = types.NewTupleFormat([]types.DataType{
	types.TypeU32,    // id (key)
	types.TypeChar32, // name
	types.TypeChar32, // tbl_name
	types.TypeU32,    // rootpage
	types.TypeChar256, // sql
})

const (
	masterColName     = 1
	masterColTblName  = 2
	masterColRootPage = 3
	masterColSQL      = 4
	masterRootPage    = 1
)

// ColumnDef is a single resolved column of a user table's schema, as the
// semantic layer and compiler see it.
type ColumnDef struct {
	Name string
	Type types.DataType
}

// Relation is a user table as the catalog knows it: its master-catalog
// identity plus, once Attach has been called with its parsed schema, the
// open B+Tree it is stored in.
type Relation struct {
	ID       uint32
	Name     string
	RootPage uint32
	SQL      string
	Columns  []ColumnDef
	Tree     *btree.Tree
}

// Catalog owns the master catalog tree and a name→Relation cache warmed
// from a full scan on Open, since the master catalog is small enough that
// "cache" here means "avoid re-scanning it", not "avoid a slow backing
// store".
type Catalog struct {
	p        *pager.Pager
	master   *btree.Tree
	cache    *ristretto.Cache[uint64, *Relation]
	nextID   uint32
	log      *logrus.Logger
}

func cacheKey(name string) uint64 {
	return xxhash.Sum64String(name)
}

// Open attaches to the master catalog at page 1 (already bootstrapped by
// pager.Open) and warms the name cache by scanning every row.
func Open(p *pager.Pager, log *logrus.Logger) (*Catalog, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	cache, err := ristretto.NewCache(&ristretto.Config[uint64, *Relation]{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: create cache: %w", err)
	}

	c := &Catalog{
		p:      p,
		master: btree.Open(p, masterRootPage, types.TypeU32, masterFormat.RecordSize),
		cache:  cache,
		nextID: 1,
		log:    log,
	}

	cur := btree.NewCursor(c.master)
	ok, err := cur.First()
	if err != nil {
		return nil, fmt.Errorf("catalog: scan master catalog: %w", err)
	}
	for ok {
		rel := decodeRelation(cur.Key(), cur.Record())
		if rel.ID >= c.nextID {
			c.nextID = rel.ID + 1
		}
		c.cache.Set(cacheKey(rel.Name), rel, 1)
		ok, err = cur.Next()
		if err != nil {
			return nil, err
		}
	}
	c.cache.Wait()
	log.WithField("tables", c.cache.Metrics.KeysAdded()).Debug("catalog: warmed from master catalog")
	return c, nil
}

func decodeRelation(key, record []byte) *Relation {
	return &Relation{
		ID:       types.DecodeU32(key),
		Name:     decodeChar(masterFormat.ColumnSlice(record, masterColName)),
		RootPage: types.DecodeU32(masterFormat.ColumnSlice(record, masterColRootPage)),
		SQL:      decodeChar(masterFormat.ColumnSlice(record, masterColSQL)),
	}
}

func decodeChar(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func encodeChar(s string, width int) []byte {
	b := make([]byte, width)
	copy(b, s)
	return b
}

// Lookup returns the relation named name, if the catalog has one. The
// returned Relation's Columns/Tree are nil until Attach is called — the
// catalog itself never parses SQL.
func (c *Catalog) Lookup(name string) (*Relation, bool) {
	rel, ok := c.cache.Get(cacheKey(name))
	return rel, ok
}

// Attach binds a relation's parsed column list and opens its B+Tree,
// called once by the engine after it has parsed (or re-parsed, on a fresh
// process) the relation's stored CREATE statement.
func (c *Catalog) Attach(rel *Relation, columns []ColumnDef) {
	rel.Columns = columns
	recordSize := types.NewTupleFormat(columnTypes(columns)).RecordSize
	rel.Tree = btree.Open(c.p, rel.RootPage, columns[0].Type, recordSize)
}

func columnTypes(columns []ColumnDef) []types.DataType {
	out := make([]types.DataType, len(columns))
	for i, c := range columns {
		out[i] = c.Type
	}
	return out
}

// CreateTable allocates a fresh B+Tree for a new table, installs it in the
// master catalog, and returns the resulting Relation already Attach'd.
// Must be called inside a transaction.
func (c *Catalog) CreateTable(name string, columns []ColumnDef, sql string) (*Relation, error) {
	if _, exists := c.Lookup(name); exists {
		return nil, fmt.Errorf("catalog: table %q already exists", name)
	}
	recordSize := types.NewTupleFormat(columnTypes(columns)).RecordSize
	tree, err := btree.Create(c.p, columns[0].Type, recordSize)
	if err != nil {
		return nil, fmt.Errorf("catalog: create relation tree: %w", err)
	}

	id := c.nextID
	c.nextID++

	record := make([]byte, masterFormat.RecordSize)
	copy(masterFormat.ColumnSlice(record, masterColName), encodeChar(name, int(types.Size(types.TypeChar32))))
	copy(masterFormat.ColumnSlice(record, masterColTblName), encodeChar(name, int(types.Size(types.TypeChar32))))
	copy(masterFormat.ColumnSlice(record, masterColRootPage), func() []byte {
		b := make([]byte, 4)
		types.EncodeU32(b, tree.RootPage())
		return b
	}())
	copy(masterFormat.ColumnSlice(record, masterColSQL), encodeChar(sql, int(types.Size(types.TypeChar256))))

	idKey := make([]byte, 4)
	types.EncodeU32(idKey, id)
	if err := c.master.Insert(idKey, record); err != nil {
		return nil, fmt.Errorf("catalog: install %q in master catalog: %w", name, err)
	}

	rel := &Relation{ID: id, Name: name, RootPage: tree.RootPage(), SQL: sql, Columns: columns, Tree: tree}
	c.cache.Set(cacheKey(name), rel, 1)
	c.cache.Wait()
	c.log.WithFields(logrus.Fields{"table": name, "root_page": tree.RootPage()}).Info("catalog: created table")
	return rel, nil
}

// DropTable frees a table's B+Tree pages and removes its master catalog
// row. Must be called inside a transaction.
func (c *Catalog) DropTable(name string) error {
	rel, ok := c.Lookup(name)
	if !ok {
		return fmt.Errorf("catalog: table %q does not exist", name)
	}
	if rel.Tree == nil {
		return fmt.Errorf("catalog: table %q not attached; semantic layer must Attach before DROP", name)
	}
	if err := rel.Tree.Destroy(); err != nil {
		return fmt.Errorf("catalog: destroy relation tree: %w", err)
	}

	idKey := make([]byte, 4)
	types.EncodeU32(idKey, rel.ID)
	cur := btree.NewCursor(c.master)
	found, err := cur.Seek(idKey, btree.SeekEQ)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("catalog: master catalog row for %q missing", name)
	}
	if _, _, err := cur.Delete(); err != nil {
		return fmt.Errorf("catalog: remove %q from master catalog: %w", name, err)
	}

	c.cache.Del(cacheKey(name))
	c.log.WithField("table", name).Info("catalog: dropped table")
	return nil
}
