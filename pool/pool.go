// Package pool implements the General Pool (C5): a fixed-block
// free-list allocator over a pre-sized table, supporting single-block
// and multi-block ("array") allocation, address-ordered coalescing, and
// double-free detection on sized frees. It is the hardest single piece
// of the memory stack — grounded on the free-list-over-byte-table shape
// used by partitioning block allocators, adapted here to inline headers
// addressed by offset into the pool's own backing slice rather than raw
// unsafe.Pointer arithmetic across arbitrary memory.
//
// A Pool's free list is owned by a single logical goroutine at a time;
// external serialization (corelib's memsrc.Atomic, or tcache) is
// mandatory for concurrent use.
package pool

import (
	"fmt"
	"unsafe"

	"github.com/joeycumines/corelib/internal/corelibassert"
)

// header is the inline {blocks, next} metadata pair stored at the start
// of every free record and every multi-block allocated record.
type header struct {
	blocks uint64
	next   uint64 // offset into table, or noneOffset
}

const headerSize = uint64(unsafe.Sizeof(header{}))

// noneOffset represents the absence of a next pointer.
const noneOffset = ^uint64(0)

// Pool is a fixed-block free-list pool. The zero value is not usable;
// construct with New.
type Pool struct {
	table     []byte
	blockSize uint64
	head      uint64 // offset of the first free record, or noneOffset
}

// New constructs a Pool over a freshly allocated table of tableSize
// bytes, divided into blocks of blockSize bytes. blockSize must be a
// power of two no smaller than the header size and at least the
// platform pointer size; tableSize must be a non-zero multiple of
// blockSize.
func New(blockSize, tableSize uintptr) (*Pool, error) {
	return NewFromBuffer(blockSize, make([]byte, tableSize))
}

// NewFromBuffer constructs a Pool over an existing buffer rather than a
// freshly allocated one, so a Pool can sit downstream of another
// allocator (tcache's per-goroutine slabs obtain their backing buffers
// this way). The same blockSize constraints as New apply; len(buf) is
// the table size.
func NewFromBuffer(blockSize uintptr, buf []byte) (*Pool, error) {
	bs := uint64(blockSize)
	ts := uint64(len(buf))

	if bs < headerSize {
		return nil, fmt.Errorf("pool: block size %d smaller than header size %d", bs, headerSize)
	}
	if bs&(bs-1) != 0 {
		return nil, fmt.Errorf("pool: block size %d is not a power of two", bs)
	}
	if ts == 0 || ts%bs != 0 {
		return nil, fmt.Errorf("pool: table size %d is not a non-zero multiple of block size %d", ts, bs)
	}

	p := &Pool{
		table:     buf,
		blockSize: bs,
		head:      0,
	}
	p.headerAt(0).blocks = ts / bs
	p.headerAt(0).next = noneOffset
	return p, nil
}

// Contains reports whether addr falls within this pool's backing table.
func (p *Pool) Contains(addr unsafe.Pointer) bool {
	base := uintptr(unsafe.Pointer(&p.table[0]))
	off := uintptr(addr)
	return off >= base && off < base+uintptr(len(p.table))
}

// FullyFree reports whether the whole table is currently one free
// record, i.e. the pool has no live allocations.
func (p *Pool) FullyFree() bool {
	if p.head != 0 {
		return false
	}
	return p.headerAt(0).blocks == p.Blocks()
}

// BlockSize returns the pool's fixed block size.
func (p *Pool) BlockSize() uintptr { return uintptr(p.blockSize) }

// Blocks returns the total number of blocks in the pool's table.
func (p *Pool) Blocks() uint64 { return uint64(len(p.table)) / p.blockSize }

func (p *Pool) headerAt(offset uint64) *header {
	return (*header)(unsafe.Pointer(&p.table[offset]))
}

func (p *Pool) addrAt(offset uint64) unsafe.Pointer {
	return unsafe.Pointer(&p.table[offset])
}

// offsetOf returns p's offset into the pool's table. Behavior is
// undefined if p did not originate from this pool.
func (p *Pool) offsetOf(addr unsafe.Pointer) uint64 {
	base := uintptr(unsafe.Pointer(&p.table[0]))
	return uint64(uintptr(addr) - base)
}

// Allocate returns a single block, or (nil, false) if the free list is
// empty. The returned block carries no header.
func (p *Pool) Allocate() (unsafe.Pointer, bool) {
	if p.head == noneOffset {
		return nil, false
	}

	cur := p.head
	h := p.headerAt(cur)

	if h.blocks == 1 {
		p.head = h.next
	} else {
		next := cur + p.blockSize
		nh := p.headerAt(next)
		nh.blocks = h.blocks - 1
		nh.next = h.next
		p.head = next
	}

	return p.addrAt(cur), true
}

// AllocateN returns a run of blocks large enough to hold n bytes plus
// the inline header, first-fit from the free list. On a miss, returns
// (nil, false). When the matched record is larger than required, the
// trailing remainder stays on the free list (the leading blocks are
// returned).
func (p *Pool) AllocateN(n uintptr) (unsafe.Pointer, bool) {
	k := blockCount(uint64(n), headerSize, p.blockSize)

	var prev uint64 = noneOffset
	cur := p.head
	for cur != noneOffset {
		h := p.headerAt(cur)
		if h.blocks >= k {
			break
		}
		prev = cur
		cur = h.next
	}
	if cur == noneOffset {
		return nil, false
	}

	h := p.headerAt(cur)
	if h.blocks == k {
		p.unlink(prev, cur, h.next)
	} else {
		remainder := cur + k*p.blockSize
		rh := p.headerAt(remainder)
		rh.blocks = h.blocks - k
		rh.next = h.next
		p.unlink(prev, cur, remainder)
	}

	rec := p.headerAt(cur)
	rec.blocks = k
	rec.next = noneOffset

	return p.addrAt(cur + headerSize), true
}

// unlink replaces cur in the free list (whose predecessor is prev, or
// noneOffset if cur was the head) with replacement.
func (p *Pool) unlink(prev, cur, replacement uint64) {
	if prev == noneOffset {
		p.head = replacement
	} else {
		p.headerAt(prev).next = replacement
	}
}

// Free returns a single block obtained from Allocate (no header, size
// supplied implicitly by the caller's prior Allocate call) to the free
// list, coalescing with adjacent free records. Unsized free cannot
// detect double-frees; that is a documented trade-off of this path —
// use FreeSized when detection matters.
func (p *Pool) Free(addr unsafe.Pointer) {
	offset := p.offsetOf(addr)
	p.insertFree(offset, 1, false)
}

// FreeSized returns a run of blocks previously obtained from AllocateN,
// where n is the same byte count originally requested. The record's
// stored block count must match the recomputed k; a mismatch, or p
// aliasing an already-free record, is a fatal DoubleFree/SizeMismatch.
func (p *Pool) FreeSized(addr unsafe.Pointer, n uintptr) {
	k := blockCount(uint64(n), headerSize, p.blockSize)

	offset := p.offsetOf(addr)
	base := offset - headerSize

	h := p.headerAt(base)
	if h.blocks != k {
		corelibassert.Fatal("pool: sized free size mismatch: record has %d blocks, expected %d", h.blocks, k)
		return
	}

	p.insertFree(base, k, true)
}

// recordContains reports whether offset falls within [recOffset,
// recOffset + recBlocks*blockSize).
func (p *Pool) recordContains(recOffset, recBlocks, offset uint64) bool {
	start := recOffset
	end := recOffset + recBlocks*p.blockSize
	return offset >= start && offset < end
}

// insertFree splices a new free record of the given size at offset,
// address-ordered, then coalesces with its immediate left and right
// neighbors. When checkDoubleFree is true (the sized-free path), it
// first scans the existing free list for an overlap and calls Fatal
// instead of corrupting the list.
func (p *Pool) insertFree(offset, blocks uint64, checkDoubleFree bool) {
	var prev uint64 = noneOffset
	cur := p.head

	for cur != noneOffset {
		h := p.headerAt(cur)
		if checkDoubleFree && (cur == offset || p.recordContains(cur, h.blocks, offset)) {
			corelibassert.Fatal("pool: double free detected at offset %d", offset)
			return
		}
		if cur > offset {
			break
		}
		prev = cur
		cur = h.next
	}

	nh := p.headerAt(offset)
	nh.blocks = blocks
	nh.next = cur
	if prev == noneOffset {
		p.head = offset
	} else {
		p.headerAt(prev).next = offset
	}

	mergedOffset := offset
	mergedH := p.headerAt(mergedOffset)

	if prev != noneOffset {
		ph := p.headerAt(prev)
		if prev+ph.blocks*p.blockSize == mergedOffset {
			ph.blocks += mergedH.blocks
			ph.next = mergedH.next
			mergedOffset = prev
			mergedH = ph
		}
	}

	if mergedH.next != noneOffset {
		nextOffset := mergedH.next
		nextH := p.headerAt(nextOffset)
		if mergedOffset+mergedH.blocks*p.blockSize == nextOffset {
			mergedH.blocks += nextH.blocks
			mergedH.next = nextH.next
		}
	}
}
