// Package blob implements the multi-page chained byte-sequence store:
// overflow storage for values too large to fit inside a fixed-width
// record column. Adapted from heapfile_manager's slotted-page design,
// repurposed from variable-length rows within one page to a fixed-size
// chain of whole pages — the spec's blob store has no slot directory, just
// a next-page pointer per segment.
package blob

import (
	"fmt"

	"dbscratch/pager"
	"dbscratch/types"
)

// Segment header, laid out inside Page.Body(): next(4) page index (0 =
// end of chain), length(4) bytes of payload valid in this segment. Payload
// capacity per page is therefore PageSize - pager.HeaderSize - 8.
const (
	segmentNextOff   = 0
	segmentLengthOff = 4
	segmentHeaderLen = 8
)

func segmentCapacity() int {
	return pager.PageSize - pager.HeaderSize - segmentHeaderLen
}

func segmentNext(p *pager.Page) uint32 {
	return types.DecodeU32(p.Body()[segmentNextOff:])
}

func setSegmentNext(p *pager.Page, v uint32) {
	types.EncodeU32(p.Body()[segmentNextOff:], v)
}

func segmentLength(p *pager.Page) int {
	return int(types.DecodeU32(p.Body()[segmentLengthOff:]))
}

func setSegmentLength(p *pager.Page, n int) {
	types.EncodeU32(p.Body()[segmentLengthOff:], uint32(n))
}

func segmentPayload(p *pager.Page) []byte {
	return p.Body()[segmentHeaderLen:]
}

// Write stores data as a chain of overflow pages and returns the id (the
// first page's index) later passed to Read. An empty input is stored as
// nothing and returns id 0, per spec §8. Must be called inside a
// transaction.
func Write(p *pager.Pager, data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, nil
	}

	segCap := segmentCapacity()
	var firstID uint32
	var prev *pager.Page

	for offset := 0; offset < len(data); offset += segCap {
		end := offset + segCap
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]

		idx, err := p.AllocatePage()
		if err != nil {
			return 0, fmt.Errorf("blob: allocate segment: %w", err)
		}
		pg, err := p.Get(idx)
		if err != nil {
			return 0, err
		}
		if err := p.MarkDirty(pg); err != nil {
			return 0, err
		}
		pg.SetType(pager.PageTypeOverflow)
		setSegmentNext(pg, 0)
		setSegmentLength(pg, len(chunk))
		copy(segmentPayload(pg), chunk)

		if prev == nil {
			firstID = idx
		} else {
			setSegmentNext(prev, idx)
		}
		prev = pg
	}
	return firstID, nil
}

// Read returns the complete byte sequence stored under id. id == 0 (the
// empty-blob sentinel) returns an empty, non-nil slice.
func Read(p *pager.Pager, id uint32) ([]byte, error) {
	if id == 0 {
		return []byte{}, nil
	}
	var out []byte
	for idx := id; idx != 0; {
		pg, err := p.Get(idx)
		if err != nil {
			return nil, fmt.Errorf("blob: read segment %d: %w", idx, err)
		}
		n := segmentLength(pg)
		out = append(out, segmentPayload(pg)[:n]...)
		idx = segmentNext(pg)
	}
	return out, nil
}

// Free releases every page in the chain rooted at id back to the free
// list. A no-op for id 0. Must be called inside a transaction.
func Free(p *pager.Pager, id uint32) error {
	for idx := id; idx != 0; {
		pg, err := p.Get(idx)
		if err != nil {
			return fmt.Errorf("blob: free segment %d: %w", idx, err)
		}
		next := segmentNext(pg)
		if err := p.FreePage(idx); err != nil {
			return err
		}
		idx = next
	}
	return nil
}
