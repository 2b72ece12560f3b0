package volume

import (
	"github.com/diskfs/go-ext2/sector"
)

// Memory is a Volume over an in-memory byte buffer. Slices borrow the buffer
// directly; Commit copies a committed range back into it.
type Memory struct {
	data []byte
	size sector.Size
}

// NewMemory wraps a byte buffer as a volume with the given sector size.
func NewMemory(data []byte, size sector.Size) *Memory {
	return &Memory{data: data, size: size}
}

// Bytes returns the underlying buffer.
func (m *Memory) Bytes() []byte {
	return m.data
}

func (m *Memory) SectorSize() sector.Size {
	return m.size
}

func (m *Memory) Size() Size {
	return Bounded(sector.FromIndex(m.size, uint64(len(m.data))))
}

func (m *Memory) Slice(from, to sector.Address) (*Slice, error) {
	if !m.Size().Contains(to) {
		return nil, &OutOfBoundsError{Addr: to, Size: m.Size()}
	}
	return m.SliceUnchecked(from, to)
}

func (m *Memory) SliceUnchecked(from, to sector.Address) (*Slice, error) {
	return NewBorrowed(m.data[from.Index():to.Index()], from), nil
}

func (m *Memory) Commit(c *Commit) error {
	if c == nil {
		return nil
	}
	start := c.Addr().Index()
	copy(m.data[start:start+uint64(len(c.Bytes()))], c.Bytes())
	return nil
}

// interface guard
var _ Volume = (*Memory)(nil)
