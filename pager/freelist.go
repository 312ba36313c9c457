package pager

import "dbscratch/types"

// A free-list page stores only the index of the next free page, right
// after the common header — the rest of the page is unused until it is
// reallocated and restamped with a different type.
const freeListNextOffset = headerSize

func readFreeListNext(p *Page) uint32 {
	return types.DecodeU32(p.Data[freeListNextOffset:])
}

func writeFreeListNext(p *Page, next uint32) {
	types.EncodeU32(p.Data[freeListNextOffset:], next)
}
