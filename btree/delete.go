package btree

import "dbscratch/pager"

// Delete removes the entry the cursor is positioned on, rebalancing via
// borrow or merge as needed, per spec §4.3. It returns (occurred,
// stillValid): occurred is false only if the cursor was already invalid;
// stillValid reports whether the cursor now addresses the row that
// followed the deleted one (it may live on a different leaf after a
// merge, so Delete re-seeks to find it rather than trusting position).
func (c *Cursor) Delete() (occurred bool, stillValid bool, err error) {
	if !c.valid {
		return false, false, nil
	}
	t := c.tree
	leaf, err := t.getNode(c.leaf)
	if err != nil {
		return false, false, err
	}
	n := nodeNumKeys(leaf)
	i := c.index

	var nextKey []byte
	if i+1 < n {
		nextKey = append([]byte(nil), t.layout.keyAt(leaf, i+1)...)
	} else if next := nodeNext(leaf); next != 0 {
		npg, err := t.getNode(next)
		if err != nil {
			return false, false, err
		}
		if nodeNumKeys(npg) > 0 {
			nextKey = append([]byte(nil), t.layout.keyAt(npg, 0)...)
		}
	}

	if err := t.p.MarkDirty(leaf); err != nil {
		return false, false, err
	}
	t.layout.shiftKeysLeft(leaf, i, n)
	t.layout.shiftRecordsLeft(leaf, i, n)
	setNodeNumKeys(leaf, n-1)

	if leaf.Index != t.root && n-1 < t.layout.leafMinKeys {
		if err := t.rebalanceLeaf(leaf); err != nil {
			return true, false, err
		}
	}

	c.valid = false
	if nextKey == nil {
		return true, false, nil
	}
	ok, err := c.Seek(nextKey, SeekGE)
	if err != nil {
		return true, false, err
	}
	return true, ok, nil
}

// childIndex returns the index at which child appears in parent's child
// pointer array.
func (t *Tree) childIndex(parent *pager.Page, child uint32) int {
	n := nodeNumKeys(parent)
	for i := 0; i <= n; i++ {
		if t.layout.childAt(parent, i) == child {
			return i
		}
	}
	return -1
}

// rebalanceLeaf restores leaf's min_keys invariant by borrowing from a
// sibling or merging with one, per spec §4.3 step 2. leaf is already
// marked dirty and has had its entry removed.
func (t *Tree) rebalanceLeaf(leaf *pager.Page) error {
	parent, err := t.getNode(nodeParent(leaf))
	if err != nil {
		return err
	}
	idx := t.childIndex(parent, leaf.Index)
	pn := nodeNumKeys(parent)

	if idx > 0 {
		left, err := t.getNode(t.layout.childAt(parent, idx-1))
		if err != nil {
			return err
		}
		if nodeNumKeys(left) > t.layout.leafMinKeys {
			return t.borrowLeafFromLeft(parent, idx, left, leaf)
		}
	}
	if idx < pn {
		right, err := t.getNode(t.layout.childAt(parent, idx+1))
		if err != nil {
			return err
		}
		if nodeNumKeys(right) > t.layout.leafMinKeys {
			return t.borrowLeafFromRight(parent, idx, leaf, right)
		}
	}

	if idx > 0 {
		left, err := t.getNode(t.layout.childAt(parent, idx-1))
		if err != nil {
			return err
		}
		return t.mergeLeaves(parent, idx-1, left, leaf)
	}
	right, err := t.getNode(t.layout.childAt(parent, idx+1))
	if err != nil {
		return err
	}
	return t.mergeLeaves(parent, idx, leaf, right)
}

func (t *Tree) borrowLeafFromLeft(parent *pager.Page, idx int, left, right *pager.Page) error {
	if err := t.markDirtyAll(parent, left, right); err != nil {
		return err
	}
	ln := nodeNumKeys(left)
	rn := nodeNumKeys(right)

	t.layout.shiftKeysRight(right, 0, rn)
	t.layout.shiftRecordsRight(right, 0, rn)
	t.layout.setKeyAt(right, 0, t.layout.keyAt(left, ln-1))
	t.layout.setRecordAt(right, 0, t.layout.recordAt(left, ln-1))
	setNodeNumKeys(right, rn+1)
	setNodeNumKeys(left, ln-1)

	t.layout.setKeyAt(parent, idx-1, t.layout.keyAt(right, 0))
	return nil
}

func (t *Tree) borrowLeafFromRight(parent *pager.Page, idx int, left, right *pager.Page) error {
	if err := t.markDirtyAll(parent, left, right); err != nil {
		return err
	}
	ln := nodeNumKeys(left)
	rn := nodeNumKeys(right)

	t.layout.setKeyAt(left, ln, t.layout.keyAt(right, 0))
	t.layout.setRecordAt(left, ln, t.layout.recordAt(right, 0))
	setNodeNumKeys(left, ln+1)

	t.layout.shiftKeysLeft(right, 0, rn)
	t.layout.shiftRecordsLeft(right, 0, rn)
	setNodeNumKeys(right, rn-1)

	t.layout.setKeyAt(parent, idx, t.layout.keyAt(right, 0))
	return nil
}

// mergeLeaves concatenates right's entries onto left, relinks the leaf
// chain around right, frees right's page, and removes the separator at
// parent key index sepIdx (which also drops the child pointer to right).
func (t *Tree) mergeLeaves(parent *pager.Page, sepIdx int, left, right *pager.Page) error {
	if err := t.markDirtyAll(parent, left, right); err != nil {
		return err
	}
	ln := nodeNumKeys(left)
	rn := nodeNumKeys(right)
	for j := 0; j < rn; j++ {
		t.layout.setKeyAt(left, ln+j, t.layout.keyAt(right, j))
		t.layout.setRecordAt(left, ln+j, t.layout.recordAt(right, j))
	}
	setNodeNumKeys(left, ln+rn)

	next := nodeNext(right)
	setNodeNext(left, next)
	if next != 0 {
		npg, err := t.getNode(next)
		if err != nil {
			return err
		}
		if err := t.p.MarkDirty(npg); err != nil {
			return err
		}
		setNodePrev(npg, left.Index)
	}

	if err := t.p.FreePage(right.Index); err != nil {
		return err
	}
	return t.removeFromInternal(parent, sepIdx)
}

// removeFromInternal drops the key at sepIdx and the child pointer at
// sepIdx+1 from parent (the convention used by both leaf and internal
// merges: the separator's right child is the one being absorbed), then
// rebalances parent if it underflows, or promotes its sole remaining child
// to root if parent is the root and now empty, per spec §4.3 step 2.
func (t *Tree) removeFromInternal(parent *pager.Page, sepIdx int) error {
	n := nodeNumKeys(parent)
	t.layout.shiftKeysLeft(parent, sepIdx, n)
	t.layout.shiftChildrenLeft(parent, sepIdx+1, n+1)
	setNodeNumKeys(parent, n-1)

	if parent.Index == t.root {
		if n-1 == 0 {
			child := t.layout.childAt(parent, 0)
			childPg, err := t.getNode(child)
			if err != nil {
				return err
			}
			if err := t.p.MarkDirty(childPg); err != nil {
				return err
			}
			setNodeParent(childPg, 0)
			t.root = child
			return t.p.FreePage(parent.Index)
		}
		return nil
	}

	if n-1 < t.layout.internalMinKeys {
		return t.rebalanceInternal(parent)
	}
	return nil
}

// rebalanceInternal restores an underflowing internal node's min_keys
// invariant, mirroring rebalanceLeaf but moving a (key, child) pair
// through the parent instead of a (key, record) pair.
func (t *Tree) rebalanceInternal(node *pager.Page) error {
	parent, err := t.getNode(nodeParent(node))
	if err != nil {
		return err
	}
	idx := t.childIndex(parent, node.Index)
	pn := nodeNumKeys(parent)

	if idx > 0 {
		left, err := t.getNode(t.layout.childAt(parent, idx-1))
		if err != nil {
			return err
		}
		if nodeNumKeys(left) > t.layout.internalMinKeys {
			return t.borrowInternalFromLeft(parent, idx, left, node)
		}
	}
	if idx < pn {
		right, err := t.getNode(t.layout.childAt(parent, idx+1))
		if err != nil {
			return err
		}
		if nodeNumKeys(right) > t.layout.internalMinKeys {
			return t.borrowInternalFromRight(parent, idx, node, right)
		}
	}

	if idx > 0 {
		left, err := t.getNode(t.layout.childAt(parent, idx-1))
		if err != nil {
			return err
		}
		return t.mergeInternal(parent, idx-1, left, node)
	}
	right, err := t.getNode(t.layout.childAt(parent, idx+1))
	if err != nil {
		return err
	}
	return t.mergeInternal(parent, idx, node, right)
}

func (t *Tree) borrowInternalFromLeft(parent *pager.Page, idx int, left, right *pager.Page) error {
	if err := t.markDirtyAll(parent, left, right); err != nil {
		return err
	}
	ln := nodeNumKeys(left)
	rn := nodeNumKeys(right)

	t.layout.shiftKeysRight(right, 0, rn)
	t.layout.shiftChildrenRight(right, 0, rn+1)
	t.layout.setKeyAt(right, 0, t.layout.keyAt(parent, idx-1))
	movedChild := t.layout.childAt(left, ln)
	t.layout.setChildAt(right, 0, movedChild)
	setNodeNumKeys(right, rn+1)

	movedChildPg, err := t.getNode(movedChild)
	if err != nil {
		return err
	}
	if err := t.p.MarkDirty(movedChildPg); err != nil {
		return err
	}
	setNodeParent(movedChildPg, right.Index)

	t.layout.setKeyAt(parent, idx-1, t.layout.keyAt(left, ln-1))
	setNodeNumKeys(left, ln-1)
	return nil
}

func (t *Tree) borrowInternalFromRight(parent *pager.Page, idx int, left, right *pager.Page) error {
	if err := t.markDirtyAll(parent, left, right); err != nil {
		return err
	}
	ln := nodeNumKeys(left)
	rn := nodeNumKeys(right)

	t.layout.setKeyAt(left, ln, t.layout.keyAt(parent, idx))
	movedChild := t.layout.childAt(right, 0)
	t.layout.setChildAt(left, ln+1, movedChild)
	setNodeNumKeys(left, ln+1)

	movedChildPg, err := t.getNode(movedChild)
	if err != nil {
		return err
	}
	if err := t.p.MarkDirty(movedChildPg); err != nil {
		return err
	}
	setNodeParent(movedChildPg, left.Index)

	t.layout.setKeyAt(parent, idx, t.layout.keyAt(right, 0))
	t.layout.shiftKeysLeft(right, 0, rn)
	t.layout.shiftChildrenLeft(right, 0, rn+1)
	setNodeNumKeys(right, rn-1)
	return nil
}

// mergeInternal concatenates right's keys/children onto left with the
// parent's separator key dropped in between, reparents right's children to
// left, frees right, and removes the separator from parent.
func (t *Tree) mergeInternal(parent *pager.Page, sepIdx int, left, right *pager.Page) error {
	if err := t.markDirtyAll(parent, left, right); err != nil {
		return err
	}
	ln := nodeNumKeys(left)
	rn := nodeNumKeys(right)

	t.layout.setKeyAt(left, ln, t.layout.keyAt(parent, sepIdx))
	for j := 0; j < rn; j++ {
		t.layout.setKeyAt(left, ln+1+j, t.layout.keyAt(right, j))
	}
	for j := 0; j <= rn; j++ {
		child := t.layout.childAt(right, j)
		t.layout.setChildAt(left, ln+1+j, child)
		childPg, err := t.getNode(child)
		if err != nil {
			return err
		}
		if err := t.p.MarkDirty(childPg); err != nil {
			return err
		}
		setNodeParent(childPg, left.Index)
	}
	setNodeNumKeys(left, ln+1+rn)

	if err := t.p.FreePage(right.Index); err != nil {
		return err
	}
	return t.removeFromInternal(parent, sepIdx)
}

func (t *Tree) markDirtyAll(pages ...*pager.Page) error {
	for _, pg := range pages {
		if err := t.p.MarkDirty(pg); err != nil {
			return err
		}
	}
	return nil
}
