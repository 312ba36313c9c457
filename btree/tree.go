package btree

import (
	"fmt"

	"dbscratch/pager"
	"dbscratch/types"
)

// Tree is a disk-resident B+Tree rooted at a page in a Pager. Parameters are
// captured once at creation from the key and record sizes, per spec §4.3.
type Tree struct {
	p       *pager.Pager
	root    uint32
	keyType types.DataType
	layout  layout
}

// Create allocates a fresh, empty tree (a single empty leaf as root) and
// returns it. Must be called inside a transaction.
func Create(p *pager.Pager, keyType types.DataType, recordSize int) (*Tree, error) {
	root, err := p.AllocatePage()
	if err != nil {
		return nil, fmt.Errorf("btree: create: %w", err)
	}
	pg, err := p.Get(root)
	if err != nil {
		return nil, err
	}
	if err := p.MarkDirty(pg); err != nil {
		return nil, err
	}
	pg.SetType(pager.PageTypeLeafNode)
	setNodeParent(pg, 0)
	setNodeNext(pg, 0)
	setNodePrev(pg, 0)
	setNodeNumKeys(pg, 0)

	return &Tree{
		p:       p,
		root:    root,
		keyType: keyType,
		layout:  newLayout(int(types.Size(keyType)), recordSize),
	}, nil
}

// Open wraps an existing tree whose root page is already on disk (e.g. a
// table reopened from the catalog).
func Open(p *pager.Pager, root uint32, keyType types.DataType, recordSize int) *Tree {
	return &Tree{
		p:       p,
		root:    root,
		keyType: keyType,
		layout:  newLayout(int(types.Size(keyType)), recordSize),
	}
}

// RootPage returns the tree's current root page index — the catalog stores
// this so the tree can be reopened later. It changes when the root splits
// or is replaced by a promoted child during delete.
func (t *Tree) RootPage() uint32 {
	return t.root
}

// KeyType returns the tree's key data type.
func (t *Tree) KeyType() types.DataType {
	return t.keyType
}

// RecordSize returns the fixed width of a leaf record.
func (t *Tree) RecordSize() int {
	return t.layout.recordSize
}

func (t *Tree) compare(a, b []byte) int {
	return types.Compare(t.keyType, a, b)
}

func (t *Tree) getNode(index uint32) (*pager.Page, error) {
	return t.p.Get(index)
}

// allocNode allocates and zeroes a fresh node page of the given type.
func (t *Tree) allocNode(typ pager.PageType) (*pager.Page, error) {
	idx, err := t.p.AllocatePage()
	if err != nil {
		return nil, err
	}
	pg, err := t.p.Get(idx)
	if err != nil {
		return nil, err
	}
	if err := t.p.MarkDirty(pg); err != nil {
		return nil, err
	}
	pg.SetType(typ)
	setNodeParent(pg, 0)
	setNodeNext(pg, 0)
	setNodePrev(pg, 0)
	setNodeNumKeys(pg, 0)
	return pg, nil
}

// findLeaf descends from the root to the leaf that would hold key, using
// binary search at each internal node. Ties in internal nodes descend to
// the right child, per spec §4.3 — internal keys are strict upper bounds on
// their left subtree.
func (t *Tree) findLeaf(key []byte) (*pager.Page, error) {
	pg, err := t.getNode(t.root)
	if err != nil {
		return nil, err
	}
	for !isLeaf(pg) {
		n := nodeNumKeys(pg)
		i := t.searchInternal(pg, n, key)
		child := t.layout.childAt(pg, i)
		pg, err = t.getNode(child)
		if err != nil {
			return nil, err
		}
	}
	return pg, nil
}

// searchInternal returns the child index to descend into: the index of the
// first key strictly greater than key, i.e. upper_bound(key).
func (t *Tree) searchInternal(pg *pager.Page, n int, key []byte) int {
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if t.compare(t.layout.keyAt(pg, mid), key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// searchLeaf returns (index, found): index is where key is, or where it
// would be inserted if not found.
func (t *Tree) searchLeaf(pg *pager.Page, n int, key []byte) (int, bool) {
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		c := t.compare(t.layout.keyAt(pg, mid), key)
		switch {
		case c == 0:
			return mid, true
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false
}
