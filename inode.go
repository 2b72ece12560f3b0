package ext2

import (
	"encoding/binary"
	"time"

	"github.com/diskfs/go-ext2/sector"
	"github.com/diskfs/go-ext2/volume"
)

// inodeSize is the on-disk size of a revision-0 inode record. Larger inode
// slots (revision >= 1) carry the same 128-byte record followed by padding
// this implementation skips.
const inodeSize = 128

type typePerm uint16

func (t typePerm) included(a typePerm) bool {
	return t&a == a
}

func (t typePerm) fileType() typePerm {
	return t & 0xf000
}

const (
	typeFifo        typePerm = 0x1000
	typeCharDevice  typePerm = 0x2000
	typeDirectory   typePerm = 0x4000
	typeBlockDevice typePerm = 0x6000
	typeFile        typePerm = 0x8000
	typeSymlink     typePerm = 0xa000
	typeSocket      typePerm = 0xc000

	permOtherExecute typePerm = 0x001
	permOtherWrite   typePerm = 0x002
	permOtherRead    typePerm = 0x004
	permGroupExecute typePerm = 0x008
	permGroupWrite   typePerm = 0x010
	permGroupRead    typePerm = 0x020
	permOwnerExecute typePerm = 0x040
	permOwnerWrite   typePerm = 0x080
	permOwnerRead    typePerm = 0x100
	permSticky       typePerm = 0x200
	permSetGID       typePerm = 0x400
	permSetUID       typePerm = 0x800
)

type inodeFlags uint32

const (
	inodeFlagSecureDeletion inodeFlags = 0x00000001
	inodeFlagKeepCopy       inodeFlags = 0x00000002
	inodeFlagCompression    inodeFlags = 0x00000004
	inodeFlagSyncUpdate     inodeFlags = 0x00000008
	inodeFlagImmutable      inodeFlags = 0x00000010
	inodeFlagAppendOnly     inodeFlags = 0x00000020
	inodeFlagNoDump         inodeFlags = 0x00000040
	inodeFlagNoAtime        inodeFlags = 0x00000080
	inodeFlagHashedDir      inodeFlags = 0x00010000
	inodeFlagAFSDir         inodeFlags = 0x00020000
	inodeFlagJournalData    inodeFlags = 0x00040000
)

// inode is the raw on-disk inode record. It links to the blocks holding the
// file's data through twelve direct pointers and one pointer each at
// indirection depth one, two and three.
type inode struct {
	typePerm        typePerm
	uid             uint16
	sizeLow         uint32
	atime           uint32
	ctime           uint32
	mtime           uint32
	dtime           uint32
	gid             uint16
	hardLinks       uint16
	sectorCount     uint32
	flags           inodeFlags
	osSpecific1     [4]byte
	directPointer   [12]uint32
	indirectPointer uint32
	doublyIndirect  uint32
	triplyIndirect  uint32
	generation      uint32
	extAttrBlock    uint32
	sizeHigh        uint32
	fragBlock       uint32
	osSpecific2     [12]byte
}

func inodeFromBytes(b []byte) (*inode, error) {
	if len(b) < inodeSize {
		return nil, &OutOfBoundsError{Index: uint64(len(b))}
	}
	in := inode{
		typePerm:        typePerm(binary.LittleEndian.Uint16(b[0x0:0x2])),
		uid:             binary.LittleEndian.Uint16(b[0x2:0x4]),
		sizeLow:         binary.LittleEndian.Uint32(b[0x4:0x8]),
		atime:           binary.LittleEndian.Uint32(b[0x8:0xc]),
		ctime:           binary.LittleEndian.Uint32(b[0xc:0x10]),
		mtime:           binary.LittleEndian.Uint32(b[0x10:0x14]),
		dtime:           binary.LittleEndian.Uint32(b[0x14:0x18]),
		gid:             binary.LittleEndian.Uint16(b[0x18:0x1a]),
		hardLinks:       binary.LittleEndian.Uint16(b[0x1a:0x1c]),
		sectorCount:     binary.LittleEndian.Uint32(b[0x1c:0x20]),
		flags:           inodeFlags(binary.LittleEndian.Uint32(b[0x20:0x24])),
		indirectPointer: binary.LittleEndian.Uint32(b[0x58:0x5c]),
		doublyIndirect:  binary.LittleEndian.Uint32(b[0x5c:0x60]),
		triplyIndirect:  binary.LittleEndian.Uint32(b[0x60:0x64]),
		generation:      binary.LittleEndian.Uint32(b[0x64:0x68]),
		extAttrBlock:    binary.LittleEndian.Uint32(b[0x68:0x6c]),
		sizeHigh:        binary.LittleEndian.Uint32(b[0x6c:0x70]),
		fragBlock:       binary.LittleEndian.Uint32(b[0x70:0x74]),
	}
	copy(in.osSpecific1[:], b[0x24:0x28])
	for i := 0; i < 12; i++ {
		in.directPointer[i] = binary.LittleEndian.Uint32(b[0x28+4*i : 0x2c+4*i])
	}
	copy(in.osSpecific2[:], b[0x74:0x80])
	return &in, nil
}

// toBytes serialises the inode into its 128-byte on-disk form.
func (in *inode) toBytes() []byte {
	b := make([]byte, inodeSize)
	binary.LittleEndian.PutUint16(b[0x0:0x2], uint16(in.typePerm))
	binary.LittleEndian.PutUint16(b[0x2:0x4], in.uid)
	binary.LittleEndian.PutUint32(b[0x4:0x8], in.sizeLow)
	binary.LittleEndian.PutUint32(b[0x8:0xc], in.atime)
	binary.LittleEndian.PutUint32(b[0xc:0x10], in.ctime)
	binary.LittleEndian.PutUint32(b[0x10:0x14], in.mtime)
	binary.LittleEndian.PutUint32(b[0x14:0x18], in.dtime)
	binary.LittleEndian.PutUint16(b[0x18:0x1a], in.gid)
	binary.LittleEndian.PutUint16(b[0x1a:0x1c], in.hardLinks)
	binary.LittleEndian.PutUint32(b[0x1c:0x20], in.sectorCount)
	binary.LittleEndian.PutUint32(b[0x20:0x24], uint32(in.flags))
	copy(b[0x24:0x28], in.osSpecific1[:])
	for i := 0; i < 12; i++ {
		binary.LittleEndian.PutUint32(b[0x28+4*i:0x2c+4*i], in.directPointer[i])
	}
	binary.LittleEndian.PutUint32(b[0x58:0x5c], in.indirectPointer)
	binary.LittleEndian.PutUint32(b[0x5c:0x60], in.doublyIndirect)
	binary.LittleEndian.PutUint32(b[0x60:0x64], in.triplyIndirect)
	binary.LittleEndian.PutUint32(b[0x64:0x68], in.generation)
	binary.LittleEndian.PutUint32(b[0x68:0x6c], in.extAttrBlock)
	binary.LittleEndian.PutUint32(b[0x6c:0x70], in.sizeHigh)
	binary.LittleEndian.PutUint32(b[0x70:0x74], in.fragBlock)
	copy(b[0x74:0x80], in.osSpecific2[:])
	return b
}

// findInode reads the raw inode record at addr. slotSize is the on-disk
// inode slot size from the superblock; only the leading 128 bytes are
// decoded, any excess is skipped.
func findInode(v volume.Volume, addr sector.Address, slotSize uint32) (*inode, error) {
	if slotSize < inodeSize {
		return nil, &OutOfBoundsError{Index: uint64(slotSize)}
	}
	end := addr.Add(sector.FromIndex(addr.SectorSize(), inodeSize))
	if !v.Size().Contains(end) {
		return nil, &volume.OutOfBoundsError{Addr: end, Size: v.Size()}
	}
	sl, err := v.SliceUnchecked(addr, end)
	if err != nil {
		return nil, err
	}
	return inodeFromBytes(sl.Bytes())
}

// Inode is a handle on one inode: a value snapshot of the raw record plus a
// reference back to the filesystem it was projected from, its own 1-based
// number and its on-disk address. Handles are cheap to copy and become stale
// only if the volume is rewritten underneath them.
type Inode struct {
	fs   *FileSystem
	raw  inode
	num  uint32
	addr sector.Address
}

// Number returns the inode's 1-based number.
func (in *Inode) Number() uint32 {
	return in.num
}

// Address returns the inode's on-disk address.
func (in *Inode) Address() sector.Address {
	return in.addr
}

// InUse reports whether the inode is linked from any directory.
func (in *Inode) InUse() bool {
	return in.raw.hardLinks > 0
}

// UID returns the owner user id.
func (in *Inode) UID() uint16 {
	return in.raw.uid
}

// GID returns the owner group id.
func (in *Inode) GID() uint16 {
	return in.raw.gid
}

// HardLinks returns the number of directory entries linking to the inode.
func (in *Inode) HardLinks() uint16 {
	return in.raw.hardLinks
}

// Sectors returns the count of disk sectors in use by the inode's data, not
// counting the inode record itself.
func (in *Inode) Sectors() uint64 {
	return uint64(in.raw.sectorCount)
}

// IsDir reports whether the inode is a directory.
func (in *Inode) IsDir() bool {
	return in.raw.typePerm.fileType() == typeDirectory
}

// IsRegular reports whether the inode is a regular file.
func (in *Inode) IsRegular() bool {
	return in.raw.typePerm.fileType() == typeFile
}

// IsSymlink reports whether the inode is a symbolic link.
func (in *Inode) IsSymlink() bool {
	return in.raw.typePerm.fileType() == typeSymlink
}

// Perm returns the low twelve permission bits.
func (in *Inode) Perm() uint16 {
	return uint16(in.raw.typePerm & 0xfff)
}

// Size returns the file size in bytes. The high 32 bits are meaningful only
// for regular files on filesystems with the 64-bit file size feature.
func (in *Inode) Size() uint64 {
	if in.IsRegular() && in.fs.sb.featuresReadOnly.included(featureROnlyFileSize64) {
		return uint64(in.raw.sizeLow) | uint64(in.raw.sizeHigh)<<32
	}
	return uint64(in.raw.sizeLow)
}

// AccessTime returns the last access time.
func (in *Inode) AccessTime() time.Time {
	return time.Unix(int64(in.raw.atime), 0).UTC()
}

// ChangeTime returns the creation / status change time.
func (in *Inode) ChangeTime() time.Time {
	return time.Unix(int64(in.raw.ctime), 0).UTC()
}

// ModifyTime returns the last modification time.
func (in *Inode) ModifyTime() time.Time {
	return time.Unix(int64(in.raw.mtime), 0).UTC()
}

// DeletionTime returns the deletion time, zero if the inode is live.
func (in *Inode) DeletionTime() uint32 {
	return in.raw.dtime
}

// blockIndex reads the index'th 32-bit block pointer out of the pointer
// block at the given physical block number. A zero pointer means "no block".
func blockIndex(v volume.Volume, block uint32, index uint64, logBlockSize uint32) (uint32, bool, error) {
	offset := int64(index * 4)
	addr := sector.WithBlockSize(v.SectorSize(), block, offset, logBlockSize)
	end := sector.WithBlockSize(v.SectorSize(), block, offset+4, logBlockSize)
	sl, err := v.Slice(addr, end)
	if err != nil {
		return 0, false, err
	}
	ptr := binary.LittleEndian.Uint32(sl.Bytes())
	return ptr, ptr != 0, nil
}

// BlockN resolves the inode's logical block index into a physical block
// number by walking the direct, singly, doubly and triply indirect pointer
// tables:
//
//   - the direct table holds 12 pointers;
//   - the singly indirect table holds blockSize/4, because a block pointer
//     occupies 4 bytes;
//   - the doubly indirect tree holds (blockSize/4)^2, every entry of the
//     doubly table pointing to a full singly table;
//   - the triply indirect tree holds (blockSize/4)^3.
//
// A zero pointer at any level is a hole: BlockN returns present == false
// and no error. I/O failures reading a pointer table propagate.
func (in *Inode) BlockN(index uint64) (uint32, bool, error) {
	v := in.fs.volume
	n4 := uint64(in.fs.sb.blockSize() / 4)
	logBlockSize := in.fs.logBlockSize()

	if index < 12 {
		ptr := in.raw.directPointer[index]
		return ptr, ptr != 0, nil
	}
	index -= 12

	if index < n4 {
		if in.raw.indirectPointer == 0 {
			return 0, false, nil
		}
		return blockIndex(v, in.raw.indirectPointer, index, logBlockSize)
	}
	index -= n4

	if index < n4*n4 {
		if in.raw.doublyIndirect == 0 {
			return 0, false, nil
		}
		indirect, ok, err := blockIndex(v, in.raw.doublyIndirect, index/n4, logBlockSize)
		if !ok || err != nil {
			return 0, false, err
		}
		return blockIndex(v, indirect, index&(n4-1), logBlockSize)
	}
	index -= n4 * n4

	if index < n4*n4*n4 {
		if in.raw.triplyIndirect == 0 {
			return 0, false, nil
		}
		doubly, ok, err := blockIndex(v, in.raw.triplyIndirect, index/(n4*n4), logBlockSize)
		if !ok || err != nil {
			return 0, false, err
		}
		indirect, ok, err := blockIndex(v, doubly, (index/n4)&(n4-1), logBlockSize)
		if !ok || err != nil {
			return 0, false, err
		}
		return blockIndex(v, indirect, index&(n4-1), logBlockSize)
	}

	return 0, false, nil
}

// Blocks returns an iterator over the inode's data blocks. Each step yields
// one filesystem block as a volume slice plus its address; the stream ends
// at the first absent logical block.
func (in *Inode) Blocks() *Blocks {
	return &Blocks{inode: in}
}

// Blocks iterates an inode's data blocks in logical order. Use like
// bufio.Scanner: Next advances, Block returns the current block, Err reports
// the first I/O failure.
type Blocks struct {
	inode *Inode
	index uint64
	cur   *volume.Slice
	addr  sector.Address
	err   error
}

// Next fetches the next data block, returning false at the first absent
// block or on error.
func (bl *Blocks) Next() bool {
	if bl.err != nil {
		return false
	}
	block, ok, err := bl.inode.BlockN(bl.index)
	if err != nil {
		bl.err = err
		return false
	}
	if !ok {
		return false
	}
	bl.index++

	fs := bl.inode.fs
	logBlockSize := fs.logBlockSize()
	start := sector.WithBlockSize(fs.volume.SectorSize(), block, 0, logBlockSize)
	end := sector.WithBlockSize(fs.volume.SectorSize(), block+1, 0, logBlockSize)
	sl, err := fs.volume.Slice(start, end)
	if err != nil {
		bl.err = err
		return false
	}
	bl.cur, bl.addr = sl, start
	return true
}

// Block returns the block fetched by the last successful Next.
func (bl *Blocks) Block() (*volume.Slice, sector.Address) {
	return bl.cur, bl.addr
}

// Err returns the first error encountered while iterating.
func (bl *Blocks) Err() error {
	return bl.err
}

// Read copies the inode's data into buf, up to the file size or the buffer
// length, whichever ends first, and returns the number of bytes copied. A
// sparse file whose block stream ends early yields a short read without
// error.
func (in *Inode) Read(buf []byte) (int, error) {
	totalSize := in.Size()
	blockSize := uint64(in.fs.sb.blockSize())
	var offset uint64

	blocks := in.Blocks()
	for blocks.Next() {
		sl, _ := blocks.Block()
		n := blockSize
		if rest := totalSize - offset; rest < n {
			n = rest
		}
		if rest := uint64(len(buf)) - offset; rest < n {
			n = rest
		}
		copy(buf[offset:offset+n], sl.Bytes()[:n])
		offset += n
		if offset == totalSize || offset == uint64(len(buf)) {
			break
		}
	}
	if err := blocks.Err(); err != nil {
		return int(offset), err
	}
	return int(offset), nil
}

// ReadAll reads the whole file into a fresh buffer.
func (in *Inode) ReadAll() ([]byte, error) {
	buf := make([]byte, in.Size())
	n, err := in.Read(buf)
	return buf[:n], err
}
