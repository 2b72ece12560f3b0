package ext2

import (
	"github.com/diskfs/go-ext2/sector"
	"github.com/diskfs/go-ext2/util/bitmap"
)

// readGroupBitmap loads one group's usage bitmap (one filesystem block) out
// of the volume.
func (fs *FileSystem) readGroupBitmap(block uint32) (*bitmap.Bitmap, error) {
	size := fs.volume.SectorSize()
	start := sector.WithBlockSize(size, block, 0, fs.logBlockSize())
	end := sector.WithBlockSize(size, block+1, 0, fs.logBlockSize())
	sl, err := fs.volume.Slice(start, end)
	if err != nil {
		return nil, err
	}
	return bitmap.FromBytes(sl.Bytes()), nil
}

// BlockInUse reports whether the given block is marked allocated in its
// group's block usage bitmap. Blocks below firstDataBlock are outside any
// group.
func (fs *FileSystem) BlockInUse(block uint32) (bool, error) {
	if block < fs.sb.firstDataBlock || block >= fs.sb.blockCount {
		return false, &OutOfBoundsError{Index: uint64(block)}
	}
	rel := block - fs.sb.firstDataBlock
	group := rel / fs.sb.blocksPerGroup
	bm, err := fs.readGroupBitmap(fs.groups[group].blockBitmapBlock)
	if err != nil {
		return false, err
	}
	return bm.IsSet(int(rel % fs.sb.blocksPerGroup))
}

// InodeInUse reports whether the 1-based inode n is marked allocated in its
// group's inode usage bitmap.
func (fs *FileSystem) InodeInUse(n uint32) (bool, error) {
	if n == 0 {
		panic("ext2: inodes are 1-indexed")
	}
	if n > fs.sb.inodeCount {
		return false, &OutOfBoundsError{Index: uint64(n)}
	}
	group := (n - 1) / fs.sb.inodesPerGroup
	bm, err := fs.readGroupBitmap(fs.groups[group].inodeBitmapBlock)
	if err != nil {
		return false, err
	}
	return bm.IsSet(int((n - 1) % fs.sb.inodesPerGroup))
}

// FreeBlockCountFromBitmaps recounts free blocks from the group bitmaps, a
// cross-check against the superblock's cached count. Only the bits covering
// real blocks are counted; trailing bits of the last group's bitmap pad the
// block and are ignored.
func (fs *FileSystem) FreeBlockCountFromBitmaps() (uint32, error) {
	var free uint32
	total := fs.sb.blockCount - fs.sb.firstDataBlock
	for i, group := range fs.groups {
		bm, err := fs.readGroupBitmap(group.blockBitmapBlock)
		if err != nil {
			return 0, err
		}
		inGroup := fs.sb.blocksPerGroup
		if rest := total - uint32(i)*fs.sb.blocksPerGroup; rest < inGroup {
			inGroup = rest
		}
		set, err := bm.SetCountWithin(int(inGroup))
		if err != nil {
			return 0, err
		}
		free += inGroup - uint32(set)
	}
	return free, nil
}
