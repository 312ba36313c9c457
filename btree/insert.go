package btree

import (
	"fmt"

	"dbscratch/pager"
)

// Insert inserts key/record into the tree, splitting nodes bottom-up as
// needed. Fails if key already exists — uniqueness is the caller's
// responsibility to want, per spec §4.3; the tree itself always enforces it.
func (t *Tree) Insert(key, record []byte) error {
	leaf, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	n := nodeNumKeys(leaf)
	i, found := t.searchLeaf(leaf, n, key)
	if found {
		return fmt.Errorf("btree: key already present")
	}

	if err := t.p.MarkDirty(leaf); err != nil {
		return err
	}
	t.layout.shiftKeysRight(leaf, i, n)
	t.layout.shiftRecordsRight(leaf, i, n)
	t.layout.setKeyAt(leaf, i, key)
	t.layout.setRecordAt(leaf, i, record)
	setNodeNumKeys(leaf, n+1)

	if n+1 > t.layout.leafMaxKeys {
		return t.splitLeaf(leaf)
	}
	return nil
}

// splitLeaf splits an overflowing leaf at leafSplit: the left half stays in
// place, the right half moves to a newly allocated leaf linked into the
// chain, and the first key of the new right sibling propagates up to the
// parent, per spec §4.3 step 3.
func (t *Tree) splitLeaf(left *pager.Page) error {
	splitAt := t.layout.leafSplit
	n := nodeNumKeys(left)
	rightCount := n - splitAt

	right, err := t.allocNode(pager.PageTypeLeafNode)
	if err != nil {
		return err
	}
	for j := 0; j < rightCount; j++ {
		t.layout.setKeyAt(right, j, t.layout.keyAt(left, splitAt+j))
		t.layout.setRecordAt(right, j, t.layout.recordAt(left, splitAt+j))
	}
	setNodeNumKeys(right, rightCount)
	setNodeNumKeys(left, splitAt)

	// Splice right into the leaf chain immediately after left.
	oldNext := nodeNext(left)
	setNodeNext(right, oldNext)
	setNodePrev(right, left.Index)
	setNodeNext(left, right.Index)
	if oldNext != 0 {
		oldNextPg, err := t.getNode(oldNext)
		if err != nil {
			return err
		}
		if err := t.p.MarkDirty(oldNextPg); err != nil {
			return err
		}
		setNodePrev(oldNextPg, right.Index)
	}

	setNodeParent(right, nodeParent(left))
	separator := append([]byte(nil), t.layout.keyAt(right, 0)...)
	return t.insertIntoParent(left, right, separator)
}

// insertIntoParent inserts separator (which routes to right) into left's
// parent, creating a new root if left had none. May cascade into further
// internal-node splits.
func (t *Tree) insertIntoParent(left, right *pager.Page, separator []byte) error {
	parentIdx := nodeParent(left)
	if parentIdx == 0 {
		return t.newRoot(left, right, separator)
	}

	parent, err := t.getNode(parentIdx)
	if err != nil {
		return err
	}
	n := nodeNumKeys(parent)
	i := t.searchInternal(parent, n, separator)

	if err := t.p.MarkDirty(parent); err != nil {
		return err
	}
	t.layout.shiftKeysRight(parent, i, n)
	t.layout.shiftChildrenRight(parent, i+1, n+1)
	t.layout.setKeyAt(parent, i, separator)
	t.layout.setChildAt(parent, i+1, right.Index)
	setNodeNumKeys(parent, n+1)
	setNodeParent(right, parent.Index)

	if n+1 > t.layout.internalMaxKeys {
		return t.splitInternal(parent)
	}
	return nil
}

// splitInternal splits an overflowing internal node at internalSplit: the
// middle key moves up to the parent (it is not duplicated into either
// child, unlike a leaf split), per spec §4.3 step 4.
func (t *Tree) splitInternal(left *pager.Page) error {
	splitAt := t.layout.internalSplit
	n := nodeNumKeys(left)
	middleKey := append([]byte(nil), t.layout.keyAt(left, splitAt)...)

	right, err := t.allocNode(pager.PageTypeInternalNode)
	if err != nil {
		return err
	}
	rightKeyCount := n - splitAt - 1
	for j := 0; j < rightKeyCount; j++ {
		t.layout.setKeyAt(right, j, t.layout.keyAt(left, splitAt+1+j))
	}
	for j := 0; j <= rightKeyCount; j++ {
		child := t.layout.childAt(left, splitAt+1+j)
		t.layout.setChildAt(right, j, child)
		childPg, err := t.getNode(child)
		if err != nil {
			return err
		}
		if err := t.p.MarkDirty(childPg); err != nil {
			return err
		}
		setNodeParent(childPg, right.Index)
	}
	setNodeNumKeys(right, rightKeyCount)
	setNodeNumKeys(left, splitAt)
	setNodeParent(right, nodeParent(left))

	return t.insertIntoParent(left, right, middleKey)
}

// newRoot allocates a fresh internal root holding one key and two children
// when the previous root (left) splits, per spec §4.3 step 5.
func (t *Tree) newRoot(left, right *pager.Page, separator []byte) error {
	root, err := t.allocNode(pager.PageTypeInternalNode)
	if err != nil {
		return err
	}
	t.layout.setKeyAt(root, 0, separator)
	t.layout.setChildAt(root, 0, left.Index)
	t.layout.setChildAt(root, 1, right.Index)
	setNodeNumKeys(root, 1)

	if err := t.p.MarkDirty(left); err != nil {
		return err
	}
	if err := t.p.MarkDirty(right); err != nil {
		return err
	}
	setNodeParent(left, root.Index)
	setNodeParent(right, root.Index)

	t.root = root.Index
	return nil
}

// Insert adds key/record to the tree and positions the cursor on it.
func (c *Cursor) Insert(key, record []byte) error {
	if err := c.tree.Insert(key, record); err != nil {
		return err
	}
	_, err := c.Seek(key, SeekEQ)
	return err
}

// Update overwrites the record at the cursor's current position; the key
// is unchanged, per spec §4.3.
func (c *Cursor) Update(record []byte) error {
	if !c.valid {
		return fmt.Errorf("btree: Update on invalid cursor")
	}
	pg, err := c.tree.getNode(c.leaf)
	if err != nil {
		return err
	}
	if err := c.tree.p.MarkDirty(pg); err != nil {
		return err
	}
	c.tree.layout.setRecordAt(pg, c.index, record)
	return nil
}
