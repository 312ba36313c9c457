// Package ephemeral implements the in-memory ordered tree the compiler
// opens for ORDER BY and GROUP BY (spec §4.4): an AVL tree sharing the
// B+Tree's cursor contract, so the VM can drive either kind of cursor with
// the same opcodes. Unlike btree, this tree has no third-party or
// pack-retrieved reference: the spec leaves the balanced-tree choice free,
// and nothing in the pack implements one — see DESIGN.md.
package ephemeral

import (
	"dbscratch/types"
)

// node is a single AVL node. Duplicate keys (when a Tree allows them) are
// ordered by insertion: a duplicate always descends to the right of an
// equal key, so in-order traversal preserves insertion order among ties —
// this is what GROUP BY accumulation and ORDER BY stability need.
type node struct {
	key, record   []byte
	left, right   *node
	parent        *node
	height        int
}

// Tree is a purely in-memory ordered map, keyed by its first tuple column,
// scoped to the lifetime of the per-query arena phase (spec §5): it is
// discarded, not explicitly freed, when that phase ends.
type Tree struct {
	root        *node
	keyType     types.DataType
	allowDup    bool
	count       int
}

// New returns an empty ephemeral tree ordered by keyType. allowDup permits
// multiple entries with equal keys, as GROUP BY and ORDER BY materialization
// both need (spec §4.4).
func New(keyType types.DataType, allowDup bool) *Tree {
	return &Tree{keyType: keyType, allowDup: allowDup}
}

// Len returns the number of entries currently in the tree.
func (t *Tree) Len() int {
	return t.count
}

func (t *Tree) compare(a, b []byte) int {
	return types.Compare(t.keyType, a, b)
}

func height(n *node) int {
	if n == nil {
		return 0
	}
	return n.height
}

func updateHeight(n *node) {
	lh, rh := height(n.left), height(n.right)
	if lh > rh {
		n.height = lh + 1
	} else {
		n.height = rh + 1
	}
}

func balanceFactor(n *node) int {
	return height(n.left) - height(n.right)
}

func setLeft(n, child *node) {
	n.left = child
	if child != nil {
		child.parent = n
	}
}

func setRight(n, child *node) {
	n.right = child
	if child != nil {
		child.parent = n
	}
}

// rotateRight and rotateLeft return the new subtree root; the caller is
// responsible for re-linking it into the grandparent (or setting t.root).
func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	p := y.parent
	setLeft(y, t2)
	setRight(x, y)
	x.parent = p
	updateHeight(y)
	updateHeight(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	p := x.parent
	setRight(x, t2)
	setLeft(y, x)
	y.parent = p
	updateHeight(x)
	updateHeight(y)
	return y
}

func rebalance(n *node) *node {
	updateHeight(n)
	bf := balanceFactor(n)
	if bf > 1 {
		if balanceFactor(n.left) < 0 {
			setLeft(n, rotateLeft(n.left))
		}
		return rotateRight(n)
	}
	if bf < -1 {
		if balanceFactor(n.right) > 0 {
			setRight(n, rotateRight(n.right))
		}
		return rotateLeft(n)
	}
	return n
}

// replaceChild re-links newChild into old's former position under old's
// parent, or updates t.root if old had none.
func (t *Tree) replaceChild(old, newChild *node) {
	parent := old.parent
	if parent == nil {
		t.root = newChild
		if newChild != nil {
			newChild.parent = nil
		}
		return
	}
	if parent.left == old {
		setLeft(parent, newChild)
	} else {
		setRight(parent, newChild)
	}
}

// retraceAndRebalance walks from n up to the root, rebalancing each
// ancestor whose subtree height may have changed.
func (t *Tree) retraceAndRebalance(n *node) {
	for n != nil {
		parent := n.parent
		balanced := rebalance(n)
		if balanced != n {
			if parent == nil {
				t.root = balanced
			} else if parent.left == n {
				setLeft(parent, balanced)
			} else {
				setRight(parent, balanced)
			}
		}
		n = parent
	}
}

func leftmost(n *node) *node {
	for n.left != nil {
		n = n.left
	}
	return n
}

func rightmost(n *node) *node {
	for n.right != nil {
		n = n.right
	}
	return n
}
