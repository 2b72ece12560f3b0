// Package volume abstracts the byte store an ext2 filesystem is parsed out
// of. A Volume serves ranges of bytes addressed by sector.Address values and
// accepts committed write-back of mutated ranges. Implementations are
// provided for in-memory byte buffers and host files; device drivers can
// implement the interface directly.
package volume

import (
	"fmt"

	"github.com/diskfs/go-ext2/sector"
)

// Volume is a bounded or unbounded byte store addressed at sector
// granularity.
type Volume interface {
	// SectorSize returns the sector size all addresses into this volume
	// are expressed in.
	SectorSize() sector.Size
	// Size returns the bounded end of the volume, or an unbounded size.
	Size() Size
	// Slice returns the bytes in [from, to). It fails with
	// *OutOfBoundsError when the range extends past Size. The returned
	// slice may borrow the volume's storage or own a private copy; see
	// Slice.
	Slice(from, to sector.Address) (*Slice, error)
	// SliceUnchecked is Slice without the bounds check. The caller must
	// have bounded the range already.
	SliceUnchecked(from, to sector.Address) (*Slice, error)
	// Commit writes back a mutated range. A nil commit is a no-op,
	// including on read-only volumes.
	Commit(c *Commit) error
}

// Size is the length of a volume: either bounded by an end address or
// unbounded. An unbounded size compares greater than every bounded one.
type Size struct {
	end     sector.Address
	bounded bool
}

// Unbounded returns the unbounded size.
func Unbounded() Size {
	return Size{}
}

// Bounded returns a size bounded by the given end address.
func Bounded(end sector.Address) Size {
	return Size{end: end, bounded: true}
}

// Bound returns the end address and whether the size is bounded.
func (s Size) Bound() (sector.Address, bool) {
	return s.end, s.bounded
}

// Contains reports whether a range ending at end fits inside the volume.
func (s Size) Contains(end sector.Address) bool {
	if !s.bounded {
		return true
	}
	return s.end.Index() >= end.Index()
}

func (s Size) String() string {
	if !s.bounded {
		return "unbounded"
	}
	return s.end.String()
}

// Slice is a view over a range of volume bytes starting at Addr. It is
// either borrowed (zero-copy out of an in-memory volume) or owned (a private
// buffer, as returned by read-through volumes such as File). Mutating a
// borrowed slice copies it first; only a slice that owns its buffer yields a
// Commit for write-back. A mutated slice that is dropped without being
// committed silently discards the mutation.
type Slice struct {
	data  []byte
	addr  sector.Address
	owned bool
}

// NewBorrowed wraps storage owned by the volume.
func NewBorrowed(data []byte, addr sector.Address) *Slice {
	return &Slice{data: data, addr: addr}
}

// NewOwned wraps a private buffer.
func NewOwned(data []byte, addr sector.Address) *Slice {
	return &Slice{data: data, addr: addr, owned: true}
}

// Bytes returns a read view of the slice. Callers must not modify it; use
// Mut for that.
func (s *Slice) Bytes() []byte {
	return s.data
}

// Mut returns a writable view, copying the bytes out of the volume first if
// the slice was borrowed.
func (s *Slice) Mut() []byte {
	if !s.owned {
		data := make([]byte, len(s.data))
		copy(data, s.data)
		s.data = data
		s.owned = true
	}
	return s.data
}

// Addr returns the volume address of the first byte.
func (s *Slice) Addr() sector.Address {
	return s.addr
}

// Len returns the length of the slice in bytes.
func (s *Slice) Len() int {
	return len(s.data)
}

// Owned reports whether the slice owns its buffer, which is what makes it
// committable.
func (s *Slice) Owned() bool {
	return s.owned
}

// Commit turns the slice into a write-back record, or nil if the slice still
// borrows the volume's storage and so cannot have diverged from it.
func (s *Slice) Commit() *Commit {
	if !s.owned {
		return nil
	}
	return &Commit{data: s.data, addr: s.addr}
}

// Commit is an owned, positioned buffer ready to be written back to its
// volume.
type Commit struct {
	data []byte
	addr sector.Address
}

// NewCommit builds a commit from a buffer and its volume address.
func NewCommit(data []byte, addr sector.Address) *Commit {
	return &Commit{data: data, addr: addr}
}

// Bytes returns the buffer to write.
func (c *Commit) Bytes() []byte {
	return c.data
}

// Addr returns the volume address the buffer belongs at.
func (c *Commit) Addr() sector.Address {
	return c.addr
}

// OutOfBoundsError reports a slice request extending past the end of the
// volume.
type OutOfBoundsError struct {
	Addr sector.Address
	Size Size
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("address out of bounds: %s with volume size %s", e.Addr, e.Size)
}
