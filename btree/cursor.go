package btree

import "dbscratch/pager"

// SeekOp is the comparator passed to Cursor.Seek, per spec §4.3.
type SeekOp int

const (
	SeekEQ SeekOp = iota
	SeekNE
	SeekLT
	SeekLE
	SeekGT
	SeekGE
)

// Cursor references a tree plus a (leaf page, index in leaf) position and a
// validity flag, per spec §4.1. Key()/Record() return slices into the
// current leaf page's bytes — valid until the next tree mutation or pager
// eviction; callers that need the value to survive a mutation must copy it.
type Cursor struct {
	tree  *Tree
	leaf  uint32
	index int
	valid bool
}

// NewCursor returns an unpositioned cursor over t.
func NewCursor(t *Tree) *Cursor {
	return &Cursor{tree: t}
}

// Valid reports whether the cursor currently addresses a row.
func (c *Cursor) Valid() bool {
	return c.valid
}

// Key returns the key of the row the cursor is positioned on.
func (c *Cursor) Key() []byte {
	if !c.valid {
		return nil
	}
	pg, err := c.tree.getNode(c.leaf)
	if err != nil {
		return nil
	}
	return c.tree.layout.keyAt(pg, c.index)
}

// Record returns the record of the row the cursor is positioned on.
func (c *Cursor) Record() []byte {
	if !c.valid {
		return nil
	}
	pg, err := c.tree.getNode(c.leaf)
	if err != nil {
		return nil
	}
	return c.tree.layout.recordAt(pg, c.index)
}

// First positions the cursor at the leftmost entry in the tree.
func (c *Cursor) First() (bool, error) {
	pg, err := c.tree.getNode(c.tree.root)
	if err != nil {
		return false, err
	}
	for !isLeaf(pg) {
		child := c.tree.layout.childAt(pg, 0)
		pg, err = c.tree.getNode(child)
		if err != nil {
			return false, err
		}
	}
	if nodeNumKeys(pg) == 0 {
		c.valid = false
		return false, nil
	}
	c.leaf = pg.Index
	c.index = 0
	c.valid = true
	return true, nil
}

// Last positions the cursor at the rightmost entry in the tree.
func (c *Cursor) Last() (bool, error) {
	pg, err := c.tree.getNode(c.tree.root)
	if err != nil {
		return false, err
	}
	for !isLeaf(pg) {
		n := nodeNumKeys(pg)
		child := c.tree.layout.childAt(pg, n)
		pg, err = c.tree.getNode(child)
		if err != nil {
			return false, err
		}
	}
	n := nodeNumKeys(pg)
	if n == 0 {
		c.valid = false
		return false, nil
	}
	c.leaf = pg.Index
	c.index = n - 1
	c.valid = true
	return true, nil
}

// Next steps one entry forward along the leaf chain.
func (c *Cursor) Next() (bool, error) {
	if !c.valid {
		return false, nil
	}
	pg, err := c.tree.getNode(c.leaf)
	if err != nil {
		return false, err
	}
	if c.index+1 < nodeNumKeys(pg) {
		c.index++
		return true, nil
	}
	next := nodeNext(pg)
	if next == 0 {
		c.valid = false
		return false, nil
	}
	npg, err := c.tree.getNode(next)
	if err != nil {
		return false, err
	}
	if nodeNumKeys(npg) == 0 {
		c.valid = false
		return false, nil
	}
	c.leaf = next
	c.index = 0
	return true, nil
}

// Previous steps one entry backward along the leaf chain.
func (c *Cursor) Previous() (bool, error) {
	if !c.valid {
		return false, nil
	}
	if c.index > 0 {
		c.index--
		return true, nil
	}
	pg, err := c.tree.getNode(c.leaf)
	if err != nil {
		return false, err
	}
	prev := nodePrev(pg)
	if prev == 0 {
		c.valid = false
		return false, nil
	}
	ppg, err := c.tree.getNode(prev)
	if err != nil {
		return false, err
	}
	n := nodeNumKeys(ppg)
	if n == 0 {
		c.valid = false
		return false, nil
	}
	c.leaf = prev
	c.index = n - 1
	return true, nil
}

// Seek positions the cursor per op, per spec §4.3: EQ lands on the matching
// row or invalidates; LT/LE/GT/GE land at the boundary entry a caller
// should then scan backward (LT/LE) or forward (GT/GE) from; NE is not a
// positioning operator by itself and is rejected.
func (c *Cursor) Seek(key []byte, op SeekOp) (bool, error) {
	leaf, err := c.tree.findLeaf(key)
	if err != nil {
		return false, err
	}
	n := nodeNumKeys(leaf)
	i, found := c.tree.searchLeaf(leaf, n, key)

	switch op {
	case SeekEQ:
		if !found {
			c.valid = false
			return false, nil
		}
		c.leaf, c.index, c.valid = leaf.Index, i, true
		return true, nil

	case SeekGE:
		c.leaf, c.index = leaf.Index, i
		return c.settleForward(leaf, i, n)

	case SeekGT:
		if found {
			i++
		}
		c.leaf, c.index = leaf.Index, i
		return c.settleForward(leaf, i, n)

	case SeekLE:
		if found {
			c.leaf, c.index, c.valid = leaf.Index, i, true
			return true, nil
		}
		return c.settleBackward(leaf, i-1)

	case SeekLT:
		return c.settleBackward(leaf, i-1)

	default:
		c.valid = false
		return false, nil
	}
}

// settleForward lands the cursor at (leaf, i) if in range, else advances to
// the next leaf's first entry.
func (c *Cursor) settleForward(leaf *pager.Page, i, n int) (bool, error) {
	if i < n {
		c.leaf, c.index, c.valid = leaf.Index, i, true
		return true, nil
	}
	next := nodeNext(leaf)
	if next == 0 {
		c.valid = false
		return false, nil
	}
	npg, err := c.tree.getNode(next)
	if err != nil {
		return false, err
	}
	if nodeNumKeys(npg) == 0 {
		c.valid = false
		return false, nil
	}
	c.leaf, c.index, c.valid = next, 0, true
	return true, nil
}

// settleBackward lands the cursor at (leaf, i) if in range, else retreats
// to the previous leaf's last entry.
func (c *Cursor) settleBackward(leaf *pager.Page, i int) (bool, error) {
	if i >= 0 {
		c.leaf, c.index, c.valid = leaf.Index, i, true
		return true, nil
	}
	prev := nodePrev(leaf)
	if prev == 0 {
		c.valid = false
		return false, nil
	}
	ppg, err := c.tree.getNode(prev)
	if err != nil {
		return false, err
	}
	pn := nodeNumKeys(ppg)
	if pn == 0 {
		c.valid = false
		return false, nil
	}
	c.leaf, c.index, c.valid = prev, pn-1, true
	return true, nil
}
