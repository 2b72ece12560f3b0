package ext2

import (
	"errors"
	"testing"

	"github.com/diskfs/go-ext2/sector"
	"github.com/diskfs/go-ext2/volume"
)

func TestRead(t *testing.T) {
	fs, err := testFS()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fs.BlockSize() != testBlockSize {
		t.Errorf("block size %d, expected %d", fs.BlockSize(), testBlockSize)
	}
	if fs.SectorSize() != sector.Size512 {
		t.Errorf("sector size %d, expected 512", fs.SectorSize())
	}
	if major, minor := fs.Version(); major != 1 || minor != 0 {
		t.Errorf("version %d.%d, expected 1.0", major, minor)
	}
	if fs.InodeSize() != 128 {
		t.Errorf("inode size %d, expected 128", fs.InodeSize())
	}
	if fs.BlockGroupCount() != 1 {
		t.Errorf("block group count %d, expected 1", fs.BlockGroupCount())
	}
	if fs.TotalBlockCount() != testBlockCount {
		t.Errorf("block count %d, expected %d", fs.TotalBlockCount(), testBlockCount)
	}
	if fs.FreeBlockCount() != testFreeBlocks {
		t.Errorf("free block count %d, expected %d", fs.FreeBlockCount(), testFreeBlocks)
	}
	if fs.TotalInodeCount() != testInodeCount {
		t.Errorf("inode count %d, expected %d", fs.TotalInodeCount(), testInodeCount)
	}
	if fs.UUID() != testUUID {
		t.Errorf("uuid %s, expected %s", fs.UUID(), testUUID)
	}
	if fs.Label() != testLabel {
		t.Errorf("label %q, expected %q", fs.Label(), testLabel)
	}
}

func TestReadRev0InodeSize(t *testing.T) {
	img := testImage()
	sb := testSuperblock()
	sb.revisionMajor = 0
	sb.inodeSize = 0
	copy(img[SuperblockOffset:], sb.toBytes())

	fs, err := Read(volume.NewMemory(img, sector.Size512))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.InodeSize() != 128 {
		t.Errorf("revision 0 inode size %d, expected 128", fs.InodeSize())
	}
}

func TestReadBadGroupCount(t *testing.T) {
	img := testImage()
	sb := testSuperblock()
	sb.blockCount = 8192
	sb.blocksPerGroup = 4096
	sb.inodeCount = 8000
	sb.inodesPerGroup = 2048
	copy(img[SuperblockOffset:], sb.toBytes())

	_, err := Read(volume.NewMemory(img, sector.Size512))
	var bad *BadBlockGroupCountError
	if !errors.As(err, &bad) {
		t.Fatalf("expected BadBlockGroupCountError, got %v", err)
	}
	if bad.ByBlocks != 2 || bad.ByInodes != 4 {
		t.Errorf("got by blocks %d by inodes %d, expected 2 and 4", bad.ByBlocks, bad.ByInodes)
	}
}

func TestInodeNthOneIndexed(t *testing.T) {
	fs, err := testFS()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Errorf("InodeNth(0) did not panic")
		}
	}()
	_, _ = fs.InodeNth(0)
}

func TestRootInode(t *testing.T) {
	fs, err := testFS()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	root, err := fs.RootInode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root.Number() != RootInodeNumber {
		t.Errorf("root inode number %d, expected %d", root.Number(), RootInodeNumber)
	}
	if !root.IsDir() {
		t.Errorf("root inode is not a directory")
	}
	if !root.InUse() {
		t.Errorf("root inode is not in use")
	}

	// inode 2 lives in slot 1 of the table at block 5
	expected := sector.WithBlockSize(sector.Size512, 5, inodeSize, 10)
	if root.Address() != expected {
		t.Errorf("root inode at %s, expected %s", root.Address(), expected)
	}
}

func TestInodeNthOutOfBounds(t *testing.T) {
	fs, err := testFS()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = fs.InodeNth(testInodeCount + 1)
	var oob *OutOfBoundsError
	if !errors.As(err, &oob) {
		t.Fatalf("expected OutOfBoundsError, got %v", err)
	}
}

func TestInodesIterator(t *testing.T) {
	fs, err := testFS()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var total, inUse int
	it := fs.Inodes()
	for it.Next() {
		total++
		if it.Inode().InUse() {
			inUse++
		}
	}
	if err := it.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != testInodeCount {
		t.Errorf("iterated %d inodes, expected %d", total, testInodeCount)
	}
	// root plus the five files and directories under it
	if inUse != 6 {
		t.Errorf("%d inodes in use, expected 6", inUse)
	}
}

func TestInodesFrom(t *testing.T) {
	fs, err := testFS()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	it := fs.InodesFrom(testBigInode)
	var count int
	for it.Next() {
		count++
	}
	if count != testInodeCount-int(testBigInode)+1 {
		t.Errorf("iterated %d inodes from %d, expected %d", count, testBigInode, testInodeCount-int(testBigInode)+1)
	}
}

func TestWriteSuperblock(t *testing.T) {
	v := testVolume()
	fs, err := Read(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fs.sb.volumeLabel = "relabelled"
	fs.groups[0].dirCount = 3
	if err := fs.writeSuperblock(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reread, err := Read(v)
	if err != nil {
		t.Fatalf("unexpected error re-reading: %v", err)
	}
	if reread.Label() != "relabelled" {
		t.Errorf("label %q after write-back, expected %q", reread.Label(), "relabelled")
	}
	if reread.groups[0].dirCount != 3 {
		t.Errorf("dir count %d after write-back, expected 3", reread.groups[0].dirCount)
	}
}

func TestBlockInUse(t *testing.T) {
	fs, err := testFS()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, tt := range []struct {
		block uint32
		inUse bool
	}{
		{1, true},  // superblock
		{5, true},  // inode table
		{8, true},  // root directory data
		{51, true}, // last direct block of big.bin
		{52, false},
		{95, false},
	} {
		inUse, err := fs.BlockInUse(tt.block)
		if err != nil {
			t.Fatalf("block %d: unexpected error: %v", tt.block, err)
		}
		if inUse != tt.inUse {
			t.Errorf("block %d in use = %v, expected %v", tt.block, inUse, tt.inUse)
		}
	}

	if _, err := fs.BlockInUse(testBlockCount); err == nil {
		t.Errorf("expected error for block beyond the filesystem")
	}
}

func TestInodeInUse(t *testing.T) {
	fs, err := testFS()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, tt := range []struct {
		inode uint32
		inUse bool
	}{
		{1, true}, // reserved
		{testRootInode, true},
		{testBigInode, true},
		{16, false},
	} {
		inUse, err := fs.InodeInUse(tt.inode)
		if err != nil {
			t.Fatalf("inode %d: unexpected error: %v", tt.inode, err)
		}
		if inUse != tt.inUse {
			t.Errorf("inode %d in use = %v, expected %v", tt.inode, inUse, tt.inUse)
		}
	}
}

func TestFreeBlockCountFromBitmaps(t *testing.T) {
	fs, err := testFS()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	free, err := fs.FreeBlockCountFromBitmaps()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if free != fs.FreeBlockCount() {
		t.Errorf("free blocks from bitmaps %d, superblock says %d", free, fs.FreeBlockCount())
	}
}
