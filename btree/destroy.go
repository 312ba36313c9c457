package btree

// Destroy frees every page belonging to the tree, post-order so children
// are freed before their parent. Used by DROP TABLE's host function (spec
// §4.6) to reclaim a dropped table's pages. The Tree must not be used
// after Destroy returns. Must be called inside a transaction.
func (t *Tree) Destroy() error {
	return t.destroyNode(t.root)
}

func (t *Tree) destroyNode(index uint32) error {
	pg, err := t.getNode(index)
	if err != nil {
		return err
	}
	if !isLeaf(pg) {
		n := nodeNumKeys(pg)
		for i := 0; i <= n; i++ {
			if err := t.destroyNode(t.layout.childAt(pg, i)); err != nil {
				return err
			}
		}
	}
	return t.p.FreePage(index)
}
