package btree

import (
	"fmt"
	"io"

	"dbscratch/types"
)

// DebugPrint writes a human-readable, breadth-first dump of t's node
// structure to w: root page, then each level's internal nodes (keys +
// child page indices) and leaf nodes (keys + record bytes), in the style
// of bplustree's InspectIndexFileTo, adapted from that package's own
// page/node layout to this one's (fixed record width rather than a
// variable-length row-pointer value).
func (t *Tree) DebugPrint(w io.Writer) error {
	p := func(format string, args ...interface{}) { fmt.Fprintf(w, format, args...) }

	p("B+Tree root=%d keyType=%v recordSize=%d\n", t.root, t.keyType, t.layout.recordSize)

	queue := []uint32{t.root}
	level := 0
	for len(queue) > 0 {
		size := len(queue)
		p("Level %d:\n", level)
		for i := 0; i < size; i++ {
			pageIdx := queue[i]
			pg, err := t.getNode(pageIdx)
			if err != nil {
				p("  [page %d] read error: %v\n", pageIdx, err)
				continue
			}

			n := nodeNumKeys(pg)
			if isLeaf(pg) {
				p("  [page %d] LEAF numKeys=%d next=%d prev=%d\n", pageIdx, n, nodeNext(pg), nodePrev(pg))
				for j := 0; j < n; j++ {
					key := t.layout.keyAt(pg, j)
					record := t.layout.recordAt(pg, j)
					p("    %s -> %x\n", t.formatKey(key), record)
				}
			} else {
				p("  [page %d] INTERNAL numKeys=%d parent=%d\n", pageIdx, n, nodeParent(pg))
				for j := 0; j < n; j++ {
					p("    key[%d]=%s\n", j, t.formatKey(t.layout.keyAt(pg, j)))
				}
				for j := 0; j <= n; j++ {
					child := t.layout.childAt(pg, j)
					p("    child[%d]=%d\n", j, child)
					queue = append(queue, child)
				}
			}
		}
		queue = queue[size:]
		level++
	}
	return nil
}

// formatKey renders a key according to its declared type rather than
// guessing its shape from its byte length the way bplustree/inspect.go's
// formatKey does — t.keyType is always known here.
func (t *Tree) formatKey(key []byte) string {
	if t.keyType.IsChar() {
		return fmt.Sprintf("%q", types.DecodeChar(key))
	}
	if t.keyType.IsFloat() {
		return fmt.Sprintf("%v", types.AsFloat64(t.keyType, key))
	}
	return fmt.Sprintf("%d", types.AsInt64(t.keyType, key))
}
