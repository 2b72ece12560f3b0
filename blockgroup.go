package ext2

import (
	"encoding/binary"

	"github.com/diskfs/go-ext2/sector"
	"github.com/diskfs/go-ext2/volume"
)

// blockGroupDescriptorSize is the on-disk size of one descriptor record.
const blockGroupDescriptorSize = 32

// blockGroupDescriptor locates the allocation bitmaps and inode table of one
// block group. The descriptor table lives in the filesystem block
// immediately following the superblock's block: with 1024-byte blocks that
// is block 2, with any larger block size it is block 1.
type blockGroupDescriptor struct {
	blockBitmapBlock uint32
	inodeBitmapBlock uint32
	inodeTableBlock  uint32
	freeBlocks       uint16
	freeInodes       uint16
	dirCount         uint16
}

func descriptorFromBytes(b []byte) (*blockGroupDescriptor, error) {
	if len(b) < blockGroupDescriptorSize {
		return nil, &OutOfBoundsError{Index: uint64(len(b))}
	}
	return &blockGroupDescriptor{
		blockBitmapBlock: binary.LittleEndian.Uint32(b[0x0:0x4]),
		inodeBitmapBlock: binary.LittleEndian.Uint32(b[0x4:0x8]),
		inodeTableBlock:  binary.LittleEndian.Uint32(b[0x8:0xc]),
		freeBlocks:       binary.LittleEndian.Uint16(b[0xc:0xe]),
		freeInodes:       binary.LittleEndian.Uint16(b[0xe:0x10]),
		dirCount:         binary.LittleEndian.Uint16(b[0x10:0x12]),
	}, nil
}

// toBytes serialises the descriptor into its 32-byte on-disk form.
func (bg *blockGroupDescriptor) toBytes() []byte {
	b := make([]byte, blockGroupDescriptorSize)
	binary.LittleEndian.PutUint32(b[0x0:0x4], bg.blockBitmapBlock)
	binary.LittleEndian.PutUint32(b[0x4:0x8], bg.inodeBitmapBlock)
	binary.LittleEndian.PutUint32(b[0x8:0xc], bg.inodeTableBlock)
	binary.LittleEndian.PutUint16(b[0xc:0xe], bg.freeBlocks)
	binary.LittleEndian.PutUint16(b[0xe:0x10], bg.freeInodes)
	binary.LittleEndian.PutUint16(b[0x10:0x12], bg.dirCount)
	return b
}

// findDescriptor reads a single descriptor record at addr.
func findDescriptor(v volume.Volume, addr sector.Address) (*blockGroupDescriptor, error) {
	end := addr.Add(sector.FromIndex(addr.SectorSize(), blockGroupDescriptorSize))
	if !v.Size().Contains(end) {
		return nil, &volume.OutOfBoundsError{Addr: end, Size: v.Size()}
	}
	sl, err := v.SliceUnchecked(addr, end)
	if err != nil {
		return nil, err
	}
	return descriptorFromBytes(sl.Bytes())
}

// findDescriptorTable reads count consecutive descriptor records starting at
// addr into an owned slice. Records are kept by value: the backing bytes may
// be a transient buffer synthesised by a file volume.
func findDescriptorTable(v volume.Volume, addr sector.Address, count uint32) ([]blockGroupDescriptor, error) {
	end := addr.Add(sector.FromIndex(addr.SectorSize(), uint64(count)*blockGroupDescriptorSize))
	if !v.Size().Contains(end) {
		return nil, &volume.OutOfBoundsError{Addr: end, Size: v.Size()}
	}
	sl, err := v.SliceUnchecked(addr, end)
	if err != nil {
		return nil, err
	}
	b := sl.Bytes()
	table := make([]blockGroupDescriptor, 0, count)
	for i := uint32(0); i < count; i++ {
		bg, err := descriptorFromBytes(b[i*blockGroupDescriptorSize:])
		if err != nil {
			return nil, err
		}
		table = append(table, *bg)
	}
	return table, nil
}
