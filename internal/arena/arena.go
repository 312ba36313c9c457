// Package arena implements a per-tag bump allocator backed by a large
// virtual memory reservation, committed in page-sized chunks on demand.
// Reclaimed blocks are binned by floor-log2 size class so containers that
// grow (array, ring buffer, hash map) can recycle their old backing
// storage instead of bump-allocating forever.
//
// Grounded on original_source/src/arena.hpp; the virtual-memory primitives
// are wired to golang.org/x/sys/unix the way 7thCode-BPTree/internal/mmap
// wires them for its page file.
package arena

import (
	"fmt"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const numSizeClasses = 32

// defaultReserve is the virtual address range reserved up front (8 GiB,
// per spec §4.1); this costs nothing until pages are committed.
const defaultReserve = 1 << 33

type freeBlock struct {
	offset int
	size   int
}

// Arena is a single bump allocator with size-classed reclamation. Each Tag
// (see New) gets an independent Arena so unrelated scopes never alias.
type Arena struct {
	tag string
	log *logrus.Logger

	mem []byte // the full reserved mapping, PROT_NONE beyond committed
	cur int     // bump cursor; next allocation starts here (or from a freelist)

	reservedCapacity int
	committedCapacity int
	maxCapacity        int
	initialCommit      int

	freelists       [numSizeClasses][]freeBlock
	occupiedBuckets uint32
}

// Options configures New.
type Options struct {
	// InitialCommit is committed eagerly at creation. Defaults to one page.
	InitialCommit int
	// MaxCapacity caps total allocation; 0 means only the reservation limits it.
	MaxCapacity int
	// Reserved overrides the virtual address range reserved up front.
	Reserved int
	Logger   *logrus.Logger
}

// New reserves a virtual address range for tag and commits the initial
// chunk. The tag is used only for logging — Go's type system doesn't let
// us template on it the way the C++ original does, so callers get
// independent address spaces by holding independent *Arena values instead.
func New(tag string, opts Options) (*Arena, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	pageSize := unix.Getpagesize()

	reserved := opts.Reserved
	if reserved == 0 {
		reserved = opts.MaxCapacity
	}
	if reserved == 0 {
		reserved = defaultReserve
	}

	initial := opts.InitialCommit
	if initial == 0 {
		initial = pageSize
	}
	initial = roundToPages(initial, pageSize)

	mem, err := unix.Mmap(-1, 0, reserved, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("arena %s: reserve %d bytes: %w", tag, reserved, err)
	}

	if initial > 0 {
		if err := unix.Mprotect(mem[:initial], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			unix.Munmap(mem)
			return nil, fmt.Errorf("arena %s: commit initial %d bytes: %w", tag, initial, err)
		}
	}

	a := &Arena{
		tag:                tag,
		log:                opts.Logger,
		mem:                mem,
		reservedCapacity:   reserved,
		committedCapacity:  initial,
		maxCapacity:        opts.MaxCapacity,
		initialCommit:      initial,
	}
	a.log.WithFields(logrus.Fields{
		"arena":    tag,
		"reserved": humanize.Bytes(uint64(reserved)),
		"initial":  humanize.Bytes(uint64(initial)),
	}).Debug("arena reserved")
	return a, nil
}

func roundToPages(size, pageSize int) int {
	return ((size + pageSize - 1) / pageSize) * pageSize
}

// getSizeClass maps a byte size to the index i such that 2^i <= size < 2^(i+1).
func getSizeClass(size int) int {
	if size < 1 {
		size = 1
	}
	cls := bitLen(size) - 1
	if cls < 0 {
		cls = 0
	}
	if cls > numSizeClasses-1 {
		cls = numSizeClasses - 1
	}
	return cls
}

func bitLen(n int) int {
	b := 0
	for n > 0 {
		n >>= 1
		b++
	}
	return b
}

// allocAlign is the boundary Alloc rounds a bump allocation's start up to.
const allocAlign = 8

// Alloc returns an aligned, zero-initialized slice of size bytes, first
// trying the freelist bucket for its size class before bump-allocating.
// Returns nil if the allocation would exceed MaxCapacity or the reserved
// range.
func (a *Arena) Alloc(size int) []byte {
	if size <= 0 || size >= a.reservedCapacity {
		return nil
	}

	if block := a.tryAllocFromFreelist(size); block >= 0 {
		out := a.mem[block : block+size]
		for i := range out {
			out[i] = 0
		}
		return out
	}

	start := (a.cur + allocAlign - 1) &^ (allocAlign - 1)
	next := start + size
	if !a.ensureCommitted(next) {
		return nil
	}
	a.cur = next
	out := a.mem[start:next]
	for i := range out {
		out[i] = 0
	}
	return out
}

// Reclaim returns a previously allocated block to its size class's
// freelist for future Alloc calls to recycle. block must have come from
// this Arena and size must match the original allocation size.
func (a *Arena) Reclaim(block []byte, size int) {
	if len(block) == 0 || size < 1 {
		return
	}
	offset := a.offsetOf(block)
	if offset < 0 || offset >= a.cur {
		return
	}
	cls := getSizeClass(size)
	a.freelists[cls] = append(a.freelists[cls], freeBlock{offset: offset, size: size})
	a.occupiedBuckets |= 1 << uint(cls)
}

func (a *Arena) tryAllocFromFreelist(size int) int {
	cls := getSizeClass(size)
	if size > (1 << uint(cls)) {
		cls++
	}
	if cls >= numSizeClasses {
		return -1
	}
	mask := ^uint32(0) << uint(cls)
	candidates := a.occupiedBuckets & mask
	if candidates == 0 {
		return -1
	}
	bucket := trailingZeros32(candidates)

	blocks := a.freelists[bucket]
	n := len(blocks)
	if n == 0 {
		a.occupiedBuckets &^= 1 << uint(bucket)
		return -1
	}
	block := blocks[n-1]
	a.freelists[bucket] = blocks[:n-1]
	if len(a.freelists[bucket]) == 0 {
		a.occupiedBuckets &^= 1 << uint(bucket)
	}
	return block.offset
}

func trailingZeros32(x uint32) int {
	n := 0
	for x&1 == 0 {
		x >>= 1
		n++
	}
	return n
}

// BumpAlloc performs an unaligned bump allocation, skipping the freelist.
// Intended for stream-style contiguous writers (see StreamWriter).
func (a *Arena) BumpAlloc(size int) []byte {
	if size <= 0 || size >= a.reservedCapacity {
		return nil
	}
	next := a.cur + size
	if !a.ensureCommitted(next) {
		return nil
	}
	start := a.cur
	a.cur = next
	return a.mem[start:next]
}

func (a *Arena) ensureCommitted(next int) bool {
	if next <= a.committedCapacity {
		return true
	}
	if a.maxCapacity > 0 && next > a.maxCapacity {
		a.log.WithFields(logrus.Fields{"arena": a.tag, "requested": next, "max": a.maxCapacity}).
			Warn("arena exhausted: max capacity exceeded")
		return false
	}
	if next > a.reservedCapacity {
		a.log.WithFields(logrus.Fields{"arena": a.tag, "requested": next, "reserved": a.reservedCapacity}).
			Warn("arena exhausted: reserved range exceeded")
		return false
	}

	pageSize := unix.Getpagesize()
	newCommitted := roundToPages(next, pageSize)
	if a.maxCapacity > 0 && newCommitted > a.maxCapacity {
		newCommitted = a.maxCapacity
	}
	if newCommitted > a.reservedCapacity {
		newCommitted = a.reservedCapacity
	}

	if err := unix.Mprotect(a.mem[a.committedCapacity:newCommitted], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		a.log.WithError(err).WithField("arena", a.tag).Warn("failed to commit arena pages")
		return false
	}
	a.committedCapacity = newCommitted
	return true
}

// offsetOf returns block's byte offset within a.mem, or -1 if block does
// not alias a.mem's backing array.
func (a *Arena) offsetOf(block []byte) int {
	if len(block) == 0 || len(a.mem) == 0 {
		return -1
	}
	base := uintptr(unsafe.Pointer(&a.mem[0]))
	ptr := uintptr(unsafe.Pointer(&block[0]))
	if ptr < base || ptr >= base+uintptr(len(a.mem)) {
		return -1
	}
	return int(ptr - base)
}

// Reset nukes every live allocation (cur returns to 0, freelists clear)
// but keeps committed pages mapped so the next phase doesn't pay the
// mprotect cost again.
func (a *Arena) Reset() {
	a.cur = 0
	for i := range a.freelists {
		a.freelists[i] = nil
	}
	a.occupiedBuckets = 0
}

// ResetAndDecommit resets like Reset, and additionally decommits every
// page beyond the initial commit, returning that memory to the OS.
func (a *Arena) ResetAndDecommit() {
	a.cur = 0
	if a.committedCapacity > a.initialCommit {
		region := a.mem[a.initialCommit:a.committedCapacity]
		unix.Madvise(region, unix.MADV_DONTNEED)
		unix.Mprotect(region, unix.PROT_NONE)
		a.committedCapacity = a.initialCommit
	}
	for i := range a.freelists {
		a.freelists[i] = nil
	}
	a.occupiedBuckets = 0
}

// Used returns the number of bytes currently bump-allocated.
func (a *Arena) Used() int { return a.cur }

// Committed returns the number of bytes currently backed by real pages.
func (a *Arena) Committed() int { return a.committedCapacity }

// Close releases the entire virtual address reservation.
func (a *Arena) Close() error {
	if a.mem == nil {
		return nil
	}
	err := unix.Munmap(a.mem)
	a.mem = nil
	return err
}
