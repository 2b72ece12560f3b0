// Package sector models physical sector addressing for block devices.
// A volume is addressed by (sector, offset) pairs rather than raw byte
// indexes, so that sector granularity and filesystem block granularity
// never silently mix.
package sector

import (
	"fmt"
	"math/bits"
)

// Size is the physical sector size of a volume in bytes, always a power of two.
type Size uint32

const (
	Size512  Size = 512
	Size1024 Size = 1024
	Size2048 Size = 2048
	Size4096 Size = 4096
)

// Valid reports whether s is a recognised sector size.
func (s Size) Valid() bool {
	switch s {
	case Size512, Size1024, Size2048, Size4096:
		return true
	}
	return false
}

// Log returns log2 of the sector size.
func (s Size) Log() uint32 {
	return uint32(bits.TrailingZeros32(uint32(s)))
}

// Bytes returns the sector size in bytes.
func (s Size) Bytes() uint32 {
	return uint32(s)
}

// Mask returns the in-sector offset mask, size-1.
func (s Size) Mask() uint32 {
	return uint32(s) - 1
}

func (s Size) String() string {
	return fmt.Sprintf("%d", uint32(s))
}

// Address is a position on a volume, expressed as a sector index plus a byte
// offset within that sector. The offset is always normalised below the sector
// size; constructors fold any carry or borrow into the sector index.
type Address struct {
	size   Size
	sector uint32
	offset uint32
}

// New builds an Address from a sector index and a signed byte offset.
// The offset may be any value, including negative: it is interpreted as a
// displacement from the start of the sector, and carry (or borrow) propagates
// into the sector index. New panics if the resulting position is negative or
// if the sector size is not recognised.
func New(size Size, sectorIndex uint32, offset int64) Address {
	if !size.Valid() {
		panic(fmt.Sprintf("sector: invalid sector size %d", size))
	}
	idx := int64(sectorIndex)<<size.Log() + offset
	if idx < 0 {
		panic(fmt.Sprintf("sector: address underflow: sector %d offset %d", sectorIndex, offset))
	}
	return Address{
		size:   size,
		sector: uint32(idx >> size.Log()),
		offset: uint32(idx) & size.Mask(),
	}
}

// WithBlockSize builds an Address from a position expressed at filesystem
// block granularity: block index, signed byte offset within the block, and
// log2 of the block size. The block size must be at least the sector size.
// This is the universal conversion from "byte position inside a filesystem
// with block size 2^logBlockSize" to a sector address: the offset first folds
// into the block index, then the top bits of the in-block offset join the
// sector index and the low bits become the in-sector offset.
func WithBlockSize(size Size, block uint32, offset int64, logBlockSize uint32) Address {
	if logBlockSize < size.Log() {
		panic(fmt.Sprintf("sector: block size 2^%d smaller than sector size %d", logBlockSize, size))
	}
	b := int64(block) + (offset >> logBlockSize)
	if b < 0 {
		panic(fmt.Sprintf("sector: address underflow: block %d offset %d", block, offset))
	}
	off := offset & (int64(1)<<logBlockSize - 1)

	logDiff := logBlockSize - size.Log()
	topOffset := off >> size.Log()
	off &= int64(size.Mask())
	return Address{
		size:   size,
		sector: uint32(b<<logDiff | topOffset),
		offset: uint32(off),
	}
}

// FromIndex builds an Address from a linear byte index.
func FromIndex(size Size, index uint64) Address {
	if !size.Valid() {
		panic(fmt.Sprintf("sector: invalid sector size %d", size))
	}
	return Address{
		size:   size,
		sector: uint32(index >> size.Log()),
		offset: uint32(index) & size.Mask(),
	}
}

// Index returns the linear byte index of the address.
func (a Address) Index() uint64 {
	return uint64(a.sector)<<a.size.Log() + uint64(a.offset)
}

// Sector returns the sector index.
func (a Address) Sector() uint32 {
	return a.sector
}

// Offset returns the byte offset within the sector, always below SectorSize.
func (a Address) Offset() uint32 {
	return a.offset
}

// SectorSize returns the sector size the address is expressed in.
func (a Address) SectorSize() Size {
	return a.size
}

func (a Address) check(b Address) {
	if a.size != b.size {
		panic(fmt.Sprintf("sector: mixed sector sizes %d and %d", a.size, b.size))
	}
}

// Add returns the sum of two addresses. Both must share a sector size.
func (a Address) Add(b Address) Address {
	a.check(b)
	return FromIndex(a.size, a.Index()+b.Index())
}

// Sub returns the difference of two addresses. Both must share a sector size;
// Sub panics if b is past a.
func (a Address) Sub(b Address) Address {
	a.check(b)
	ai, bi := a.Index(), b.Index()
	if bi > ai {
		panic(fmt.Sprintf("sector: address underflow: %s - %s", a, b))
	}
	return FromIndex(a.size, ai-bi)
}

// NextSector returns the start of the sector after a.
func (a Address) NextSector() Address {
	return Address{size: a.size, sector: a.sector + 1}
}

// Cmp compares two addresses of the same sector size, returning -1, 0 or 1.
func (a Address) Cmp(b Address) int {
	a.check(b)
	switch ai, bi := a.Index(), b.Index(); {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	}
	return 0
}

func (a Address) String() string {
	return fmt.Sprintf("%d:%d", a.sector, a.offset)
}
