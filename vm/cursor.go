package vm

import (
	"fmt"

	"dbscratch/btree"
	"dbscratch/ephemeral"
	"dbscratch/types"
)

// CursorContext binds a tree (disk B+Tree or in-memory ephemeral tree) and
// its tuple format, the way spec §4.1 describes: "the context binds a
// tree... and the tuple format." The compiler builds one of these per
// cursor a program opens and an OPEN instruction's P4 points at it.
type CursorContext struct {
	BTree     *btree.Tree
	Ephemeral *ephemeral.Tree
	Format    types.TupleFormat
}

// runtimeCursor is the VM's view of an open cursor: whichever concrete
// cursor type the context named, behind one small interface so STEP/SEEK/
// COLUMN/INSERT/UPDATE/DELETE don't need to know which.
type runtimeCursor struct {
	ctx CursorContext
	bc  *btree.Cursor
	ec  *ephemeral.Cursor
}

func openCursor(ctx CursorContext) (*runtimeCursor, error) {
	switch {
	case ctx.BTree != nil:
		return &runtimeCursor{ctx: ctx, bc: btree.NewCursor(ctx.BTree)}, nil
	case ctx.Ephemeral != nil:
		return &runtimeCursor{ctx: ctx, ec: ephemeral.NewCursor(ctx.Ephemeral)}, nil
	default:
		return nil, fmt.Errorf("vm: cursor context binds neither a btree nor an ephemeral tree")
	}
}

func (c *runtimeCursor) valid() bool {
	if c.bc != nil {
		return c.bc.Valid()
	}
	return c.ec.Valid()
}

func (c *runtimeCursor) key() []byte {
	if c.bc != nil {
		return c.bc.Key()
	}
	return c.ec.Key()
}

func (c *runtimeCursor) record() []byte {
	if c.bc != nil {
		return c.bc.Record()
	}
	return c.ec.Record()
}

func (c *runtimeCursor) first() (bool, error) {
	if c.bc != nil {
		return c.bc.First()
	}
	return c.ec.First(), nil
}

func (c *runtimeCursor) last() (bool, error) {
	if c.bc != nil {
		return c.bc.Last()
	}
	return c.ec.Last(), nil
}

func (c *runtimeCursor) next() (bool, error) {
	if c.bc != nil {
		return c.bc.Next()
	}
	return c.ec.Next(), nil
}

func (c *runtimeCursor) previous() (bool, error) {
	if c.bc != nil {
		return c.bc.Previous()
	}
	return c.ec.Previous(), nil
}

func (c *runtimeCursor) seek(key []byte, op CompareOp) (bool, error) {
	if c.bc != nil {
		bop, err := toBTreeSeekOp(op)
		if err != nil {
			return false, err
		}
		return c.bc.Seek(key, bop)
	}
	eop, err := toEphemeralSeekOp(op)
	if err != nil {
		return false, err
	}
	return c.ec.Seek(key, eop), nil
}

func (c *runtimeCursor) insert(key, record []byte) error {
	if c.bc != nil {
		return c.bc.Insert(key, record)
	}
	return c.ec.Insert(key, record)
}

func (c *runtimeCursor) update(record []byte) error {
	if c.bc != nil {
		return c.bc.Update(record)
	}
	return c.ec.Update(record)
}

func (c *runtimeCursor) delete() (occurred, stillValid bool, err error) {
	if c.bc != nil {
		return c.bc.Delete()
	}
	occurred, stillValid = c.ec.Delete()
	return occurred, stillValid, nil
}

func toBTreeSeekOp(op CompareOp) (btree.SeekOp, error) {
	switch op {
	case CompareEQ:
		return btree.SeekEQ, nil
	case CompareNE:
		return btree.SeekNE, nil
	case CompareLT:
		return btree.SeekLT, nil
	case CompareLE:
		return btree.SeekLE, nil
	case CompareGT:
		return btree.SeekGT, nil
	case CompareGE:
		return btree.SeekGE, nil
	default:
		return 0, fmt.Errorf("vm: unknown seek comparator %d", op)
	}
}

func toEphemeralSeekOp(op CompareOp) (ephemeral.SeekOp, error) {
	switch op {
	case CompareEQ:
		return ephemeral.SeekEQ, nil
	case CompareLT:
		return ephemeral.SeekLT, nil
	case CompareLE:
		return ephemeral.SeekLE, nil
	case CompareGT:
		return ephemeral.SeekGT, nil
	case CompareGE:
		return ephemeral.SeekGE, nil
	default:
		return 0, fmt.Errorf("vm: ephemeral cursor cannot seek with comparator %d", op)
	}
}
