package pager

import (
	"github.com/cespare/xxhash/v2"

	"dbscratch/types"
)

// headerPageIndex is always 0; it never moves and is never on the free
// list. headerPage layout: common 4-byte header, then a 4-byte magic,
// then the 4-byte free-list head page index, then an 8-byte xxhash checksum of
// that page index guarding against a torn or corrupt write.
const headerPageIndex = 0

const (
	dbMagic              = 0x53514C53 // "SQLS"
	headerMagicOffset    = headerSize
	headerFreeListOff    = headerSize + 4
	headerFreeListSumOff = headerSize + 4 + 4
)

func initHeaderPage(p *Page) {
	p.SetType(PageTypeHeader)
	types.EncodeU32(p.Data[headerMagicOffset:], dbMagic)
	writeFreeListHead(p, 0)
}

func readFreeListHead(p *Page) uint32 {
	return types.DecodeU32(p.Data[headerFreeListOff:])
}

// writeFreeListHead stores head and an xxhash checksum of its encoded
// bytes, so a later open can tell a genuine empty/linked free list apart
// from a truncated or otherwise corrupted header page.
func writeFreeListHead(p *Page, head uint32) {
	types.EncodeU32(p.Data[headerFreeListOff:], head)
	sum := xxhash.Sum64(p.Data[headerFreeListOff : headerFreeListOff+4])
	types.EncodeU64(p.Data[headerFreeListSumOff:], sum)
}

// freeListChecksumValid reports whether the stored free-list head still
// matches its checksum — false means the free-list chain's entry point
// was truncated or corrupted since it was last written.
func freeListChecksumValid(p *Page) bool {
	want := types.DecodeU64(p.Data[headerFreeListSumOff:])
	got := xxhash.Sum64(p.Data[headerFreeListOff : headerFreeListOff+4])
	return want == got
}

func headerMagicValid(p *Page) bool {
	return types.DecodeU32(p.Data[headerMagicOffset:]) == dbMagic
}
