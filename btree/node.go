// Package btree implements the disk-resident B+Tree: fixed-width keys and
// records stored in pager-backed pages, with a cursor contract shared with
// the ephemeral in-memory tree. Grounded on bplustree/new_node.go and
// node_codec.go for Go structuring, and on original_source/src/btree.hpp for
// the exact node layout and split/merge algorithms.
package btree

import (
	"dbscratch/pager"
	"dbscratch/types"
)

// Node header, laid out inside Page.Body() (i.e. after the pager's own
// 4-byte type-tag header): parent(4), next(4), prev(4), numKeys(4). next/prev
// are the leaf chain pointers and are zero (meaning "none") on internal
// nodes. is_leaf is not stored separately — it's the page's PageType.
const (
	nodeParentOff  = 0
	nodeNextOff    = 4
	nodePrevOff    = 8
	nodeNumKeysOff = 12
	nodeHeaderSize = 16
	keysAreaOff    = nodeHeaderSize
)

func nodeParent(p *pager.Page) uint32 {
	return types.DecodeU32(p.Body()[nodeParentOff:])
}

func setNodeParent(p *pager.Page, v uint32) {
	types.EncodeU32(p.Body()[nodeParentOff:], v)
}

func nodeNext(p *pager.Page) uint32 {
	return types.DecodeU32(p.Body()[nodeNextOff:])
}

func setNodeNext(p *pager.Page, v uint32) {
	types.EncodeU32(p.Body()[nodeNextOff:], v)
}

func nodePrev(p *pager.Page) uint32 {
	return types.DecodeU32(p.Body()[nodePrevOff:])
}

func setNodePrev(p *pager.Page, v uint32) {
	types.EncodeU32(p.Body()[nodePrevOff:], v)
}

func nodeNumKeys(p *pager.Page) int {
	return int(types.DecodeU32(p.Body()[nodeNumKeysOff:]))
}

func setNodeNumKeys(p *pager.Page, n int) {
	types.EncodeU32(p.Body()[nodeNumKeysOff:], uint32(n))
}

func isLeaf(p *pager.Page) bool {
	return p.Type() == pager.PageTypeLeafNode
}

// layout carries the capacities derived once at bt_create time from key
// size, record size and PAGE_SIZE. The same layout serves every node of a
// given tree; leaf and internal nodes have independent max/min/split values
// because their per-key footprint differs (record vs. child pointer).
type layout struct {
	keySize    int
	recordSize int

	internalMaxKeys int
	internalMinKeys int
	internalSplit   int

	leafMaxKeys int
	leafMinKeys int
	leafSplit   int
}

// childPtrSize is the width of a child page index inside an internal node's
// pointer area.
const childPtrSize = 4

func newLayout(keySize, recordSize int) layout {
	available := pager.PageSize - pager.HeaderSize - keysAreaOff

	// internal: (maxKeys+1)*keySize + (maxKeys+2)*childPtrSize <= available.
	// The extra key and child slot hold the entry an insert writes before
	// it checks for overflow and splits.
	internalMax := (available-childPtrSize)/(keySize+childPtrSize) - 1
	if internalMax < 2 {
		panic("btree: key size too large for page size (internal node capacity < 2)")
	}

	// leaf: (maxKeys+1)*(keySize+recordSize) <= available, again with one
	// slot for the entry written before a split.
	leafMax := available/(keySize+recordSize) - 1
	if leafMax < 2 {
		panic("btree: key/record size too large for page size (leaf capacity < 2)")
	}

	l := layout{
		keySize:         keySize,
		recordSize:      recordSize,
		internalMaxKeys: internalMax,
		internalMinKeys: internalMax / 2,
		internalSplit:   (internalMax + 1) / 2,
		leafMaxKeys:     leafMax,
		leafMinKeys:     leafMax / 2,
		leafSplit:       (leafMax + 1) / 2,
	}
	return l
}

func (l layout) keyAt(p *pager.Page, i int) []byte {
	off := keysAreaOff + i*l.keySize
	return p.Body()[off : off+l.keySize]
}

func (l layout) setKeyAt(p *pager.Page, i int, key []byte) {
	copy(l.keyAt(p, i), key)
}

func (l layout) recordsAreaOff() int {
	return keysAreaOff + (l.leafMaxKeys+1)*l.keySize
}

func (l layout) recordAt(p *pager.Page, i int) []byte {
	off := l.recordsAreaOff() + i*l.recordSize
	return p.Body()[off : off+l.recordSize]
}

func (l layout) setRecordAt(p *pager.Page, i int, record []byte) {
	copy(l.recordAt(p, i), record)
}

func (l layout) childrenAreaOff() int {
	return keysAreaOff + (l.internalMaxKeys+1)*l.keySize
}

func (l layout) childAt(p *pager.Page, i int) uint32 {
	off := l.childrenAreaOff() + i*childPtrSize
	return types.DecodeU32(p.Body()[off:])
}

func (l layout) setChildAt(p *pager.Page, i int, child uint32) {
	off := l.childrenAreaOff() + i*childPtrSize
	types.EncodeU32(p.Body()[off:], child)
}

// shiftKeysRight opens a gap at i by moving keys [i, n) one slot right,
// named after original_source's SHIFT_KEYS_RIGHT.
func (l layout) shiftKeysRight(p *pager.Page, i, n int) {
	for j := n; j > i; j-- {
		l.setKeyAt(p, j, l.keyAt(p, j-1))
	}
}

func (l layout) shiftKeysLeft(p *pager.Page, i, n int) {
	for j := i; j < n-1; j++ {
		l.setKeyAt(p, j, l.keyAt(p, j+1))
	}
}

func (l layout) shiftRecordsRight(p *pager.Page, i, n int) {
	for j := n; j > i; j-- {
		l.setRecordAt(p, j, l.recordAt(p, j-1))
	}
}

func (l layout) shiftRecordsLeft(p *pager.Page, i, n int) {
	for j := i; j < n-1; j++ {
		l.setRecordAt(p, j, l.recordAt(p, j+1))
	}
}

func (l layout) shiftChildrenRight(p *pager.Page, i, n int) {
	for j := n; j > i; j-- {
		l.setChildAt(p, j, l.childAt(p, j-1))
	}
}

func (l layout) shiftChildrenLeft(p *pager.Page, i, n int) {
	for j := i; j < n-1; j++ {
		l.setChildAt(p, j, l.childAt(p, j+1))
	}
}
