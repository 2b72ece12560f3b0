package ext2

import (
	"encoding/binary"

	"github.com/diskfs/go-ext2/sector"
	"github.com/diskfs/go-ext2/volume"
	"github.com/google/uuid"
)

// The test image is a crafted 96-block filesystem with 1024-byte blocks and
// a single block group:
//
//	block 1      superblock
//	block 2      block group descriptor table
//	block 3      block usage bitmap
//	block 4      inode usage bitmap
//	blocks 5-6   inode table (16 slots)
//	block 8      root directory data
//	block 9      /hello.txt data
//	block 10     /sub directory data
//	block 11     /sub/README.md data
//	block 13     first block of /sparse.bin (second is a hole)
//	blocks 20-25 indirect pointer chains for /big.bin
//	blocks 30-32 data reached through the indirect chains
//	blocks 40-51 direct blocks of /big.bin
const (
	testBlockSize     = 1024
	testBlockCount    = 96
	testInodeCount    = 16
	testFreeBlocks    = 44
	testFreeInodes    = 1
	testRootInode     = 2
	testHelloInode    = 11
	testSubInode      = 12
	testReadmeInode   = 13
	testSparseInode   = 14
	testBigInode      = 15
	testHelloContent  = "Hello, world!\n"
	testReadmeContent = "# go-ext2\n\nRead ext2 images from Go.\n"
	testLabel         = "go-ext2-test"
)

var testUUID = uuid.MustParse("cafebabe-dead-beef-f00d-015ea5500000")

func testSuperblock() *superblock {
	return &superblock{
		inodeCount:            testInodeCount,
		blockCount:            testBlockCount,
		freeBlocks:            testFreeBlocks,
		freeInodes:            testFreeInodes,
		firstDataBlock:        1,
		logBlockSize:          0,
		logFragSize:           0,
		blocksPerGroup:        8192,
		fragsPerGroup:         8192,
		inodesPerGroup:        testInodeCount,
		mountsToFsck:          -1,
		magic:                 Ext2Magic,
		state:                 fsStateClean,
		errorBehaviour:        errorsRemountRO,
		revisionMajor:         1,
		revisionMinor:         0,
		firstNonReservedInode: 11,
		inodeSize:             128,
		featuresRequired:      featureReqDirectoryType,
		featuresReadOnly:      featureROnlySparseSuper,
		uuid:                  testUUID,
		volumeLabel:           testLabel,
	}
}

func testGroupDescriptor() *blockGroupDescriptor {
	return &blockGroupDescriptor{
		blockBitmapBlock: 3,
		inodeBitmapBlock: 4,
		inodeTableBlock:  5,
		freeBlocks:       testFreeBlocks,
		freeInodes:       testFreeInodes,
		dirCount:         2,
	}
}

func testDirEntry(inode uint32, name string, fileType uint8, recLen uint16) []byte {
	b := make([]byte, recLen)
	binary.LittleEndian.PutUint32(b[0:4], inode)
	binary.LittleEndian.PutUint16(b[4:6], recLen)
	b[6] = byte(len(name))
	b[7] = fileType
	copy(b[8:], name)
	return b
}

func putPointer(img []byte, block uint32, index int, target uint32) {
	binary.LittleEndian.PutUint32(img[block*testBlockSize+uint32(index*4):], target)
}

func testInode(perm typePerm, size uint32, links uint16, direct ...uint32) *inode {
	in := inode{
		typePerm:    perm,
		sizeLow:     size,
		atime:       1700000000,
		ctime:       1700000000,
		mtime:       1700000000,
		hardLinks:   links,
		sectorCount: (size + 511) / 512,
	}
	copy(in.directPointer[:], direct)
	return &in
}

// testImage builds the image described above.
func testImage() []byte {
	img := make([]byte, testBlockCount*testBlockSize)

	copy(img[SuperblockOffset:], testSuperblock().toBytes())
	copy(img[2*testBlockSize:], testGroupDescriptor().toBytes())

	// block usage bitmap: blocks 1-51 in use (bit i tracks block 1+i)
	for block := uint32(1); block <= 51; block++ {
		i := block - 1
		img[3*testBlockSize+i/8] |= 1 << (i % 8)
	}
	// inode usage bitmap: the ten reserved inodes plus 11-15
	for n := uint32(1); n <= 15; n++ {
		i := n - 1
		img[4*testBlockSize+i/8] |= 1 << (i % 8)
	}

	// inode table
	putInode := func(n uint32, in *inode) {
		copy(img[5*testBlockSize+(n-1)*inodeSize:], in.toBytes())
	}
	rootDir := testInode(typeDirectory|0o755, testBlockSize, 3, 8)
	putInode(testRootInode, rootDir)
	hello := testInode(typeFile|0o644, uint32(len(testHelloContent)), 1, 9)
	hello.uid = 1000
	hello.gid = 1000
	putInode(testHelloInode, hello)
	putInode(testSubInode, testInode(typeDirectory|0o755, testBlockSize, 2, 10))
	putInode(testReadmeInode, testInode(typeFile|0o644, uint32(len(testReadmeContent)), 1, 11))
	putInode(testSparseInode, testInode(typeFile|0o600, 2*testBlockSize, 1, 13))
	big := testInode(typeFile|0o644, 12*testBlockSize, 1,
		40, 41, 42, 43, 44, 45, 46, 47, 48, 49, 50, 51)
	big.indirectPointer = 20
	big.doublyIndirect = 21
	big.triplyIndirect = 23
	putInode(testBigInode, big)

	// root directory data
	root := img[8*testBlockSize:]
	root = root[copy(root, testDirEntry(testRootInode, ".", DirEntryDir, 12)):]
	root = root[copy(root, testDirEntry(testRootInode, "..", DirEntryDir, 12)):]
	root = root[copy(root, testDirEntry(testHelloInode, "hello.txt", DirEntryFile, 20)):]
	root = root[copy(root, testDirEntry(testSubInode, "sub", DirEntryDir, 12)):]
	root = root[copy(root, testDirEntry(testSparseInode, "sparse.bin", DirEntryFile, 20)):]
	root = root[copy(root, testDirEntry(testBigInode, "big.bin", DirEntryFile, 16)):]
	copy(root, testDirEntry(0, "", DirEntryUnknown, testBlockSize-12-12-20-12-20-16))

	copy(img[9*testBlockSize:], testHelloContent)

	sub := img[10*testBlockSize:]
	sub = sub[copy(sub, testDirEntry(testSubInode, ".", DirEntryDir, 12)):]
	sub = sub[copy(sub, testDirEntry(testRootInode, "..", DirEntryDir, 12)):]
	sub = sub[copy(sub, testDirEntry(testReadmeInode, "README.md", DirEntryFile, 20)):]
	copy(sub, testDirEntry(0, "", DirEntryUnknown, testBlockSize-12-12-20))

	copy(img[11*testBlockSize:], testReadmeContent)

	// sparse.bin's single data block
	for i := 0; i < testBlockSize; i++ {
		img[13*testBlockSize+i] = 0xaa
	}

	// big.bin's indirect chains: one entry each, the rest holes
	putPointer(img, 20, 0, 30)
	putPointer(img, 21, 0, 22)
	putPointer(img, 22, 0, 31)
	putPointer(img, 23, 0, 24)
	putPointer(img, 24, 0, 25)
	putPointer(img, 25, 0, 32)

	// recognisable bytes in the indirect-reached data blocks
	for i := 0; i < testBlockSize; i++ {
		img[30*testBlockSize+i] = 0x01
		img[31*testBlockSize+i] = 0x02
		img[32*testBlockSize+i] = 0x03
	}
	for b := 40; b <= 51; b++ {
		for i := 0; i < testBlockSize; i++ {
			img[b*testBlockSize+i] = byte(b)
		}
	}

	return img
}

func testVolume() *volume.Memory {
	return testVolumeFrom(testImage())
}

func testVolumeFrom(img []byte) *volume.Memory {
	return volume.NewMemory(img, sector.Size512)
}

func testFS() (*FileSystem, error) {
	return Read(testVolume())
}
