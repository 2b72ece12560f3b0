// Package ext2 implements read-oriented access to the second extended
// filesystem. It parses an ext2 image out of any volume.Volume, walks its
// metadata, resolves pathnames and streams file contents.
//
// Supported on-disk formats are revision 0 and revision >= 1 with 128-byte
// inodes. Writing, journaling (ext3), extents (ext4) and hash-indexed
// directories are out of scope.
package ext2

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/diskfs/go-ext2/sector"
	"github.com/diskfs/go-ext2/volume"
	"github.com/google/uuid"
)

// RootInodeNumber is the fixed inode number of the root directory. Inodes
// are 1-indexed by ext2 convention.
const RootInodeNumber uint32 = 2

// FileSystem is a handle on one parsed ext2 filesystem. It owns the volume
// and caches the superblock and the block-group descriptor table together
// with their on-disk addresses.
type FileSystem struct {
	volume     volume.Volume
	sb         *superblock
	sbAddr     sector.Address
	groups     []blockGroupDescriptor
	groupsAddr sector.Address
}

// Read parses the filesystem on the given volume and validates its
// metadata: the superblock magic must be 0xEF53 and the block-group count
// derived from block totals must match the one derived from inode totals.
// Both failures are fatal; a volume that does not open cannot be retried.
func Read(v volume.Volume) (*FileSystem, error) {
	sb, sbAddr, err := findSuperblock(v)
	if err != nil {
		return nil, err
	}

	groupCount, err := sb.blockGroupCount()
	if err != nil {
		return nil, err
	}

	// the descriptor table occupies the filesystem block after the one
	// holding the superblock
	groupsAddr := sector.WithBlockSize(v.SectorSize(), sb.firstDataBlock+1, 0, sb.logBlockSize+10)
	groups, err := findDescriptorTable(v, groupsAddr, groupCount)
	if err != nil {
		return nil, err
	}

	return &FileSystem{
		volume:     v,
		sb:         sb,
		sbAddr:     sbAddr,
		groups:     groups,
		groupsAddr: groupsAddr,
	}, nil
}

// BlockSize returns the filesystem block size in bytes.
func (fs *FileSystem) BlockSize() uint32 {
	return fs.sb.blockSize()
}

// logBlockSize returns log2 of the block size in bytes.
func (fs *FileSystem) logBlockSize() uint32 {
	return fs.sb.logBlockSize + 10
}

// SectorSize returns the sector size of the underlying volume.
func (fs *FileSystem) SectorSize() sector.Size {
	return fs.volume.SectorSize()
}

// Version returns the filesystem revision as (major, minor).
func (fs *FileSystem) Version() (uint32, uint16) {
	return fs.sb.revisionMajor, fs.sb.revisionMinor
}

// InodeSize returns the on-disk inode slot size. Revision 0 filesystems
// always use 128 bytes; larger slots carry the same record plus padding.
func (fs *FileSystem) InodeSize() uint32 {
	if fs.sb.revisionMajor == 0 {
		return inodeSize
	}
	return uint32(fs.sb.inodeSize)
}

// TotalInodeCount returns the number of inodes in the filesystem.
func (fs *FileSystem) TotalInodeCount() uint32 {
	return fs.sb.inodeCount
}

// InodesPerGroup returns the number of inode slots in each block group.
func (fs *FileSystem) InodesPerGroup() uint32 {
	return fs.sb.inodesPerGroup
}

// TotalBlockCount returns the number of blocks in the filesystem.
func (fs *FileSystem) TotalBlockCount() uint32 {
	return fs.sb.blockCount
}

// FreeBlockCount returns the superblock's count of unallocated blocks.
func (fs *FileSystem) FreeBlockCount() uint32 {
	return fs.sb.freeBlocks
}

// FreeInodeCount returns the superblock's count of unallocated inodes.
func (fs *FileSystem) FreeInodeCount() uint32 {
	return fs.sb.freeInodes
}

// BlockGroupCount returns the number of block groups.
func (fs *FileSystem) BlockGroupCount() uint32 {
	return uint32(len(fs.groups))
}

// UUID returns the filesystem id, what blkid reports.
func (fs *FileSystem) UUID() uuid.UUID {
	return fs.sb.uuid
}

// Label returns the volume name, or "" if none was set.
func (fs *FileSystem) Label() string {
	return fs.sb.volumeLabel
}

func (fs *FileSystem) String() string {
	return fmt.Sprintf("ext2 filesystem %s, block size %d, %d block groups", fs.sb.uuid, fs.BlockSize(), len(fs.groups))
}

// inodeAddr locates the on-disk slot of the 1-based inode n.
func (fs *FileSystem) inodeAddr(n uint32) (sector.Address, error) {
	if n == 0 {
		panic("ext2: inodes are 1-indexed")
	}
	if n > fs.sb.inodeCount {
		return sector.Address{}, &OutOfBoundsError{Index: uint64(n)}
	}
	group := (n - 1) / fs.sb.inodesPerGroup
	slot := (n - 1) % fs.sb.inodesPerGroup
	return sector.WithBlockSize(
		fs.volume.SectorSize(),
		fs.groups[group].inodeTableBlock,
		int64(slot)*int64(fs.InodeSize()),
		fs.logBlockSize(),
	), nil
}

// InodeNth projects the 1-based inode n out of its group's inode table.
// InodeNth panics if n is 0.
func (fs *FileSystem) InodeNth(n uint32) (*Inode, error) {
	addr, err := fs.inodeAddr(n)
	if err != nil {
		return nil, err
	}
	raw, err := findInode(fs.volume, addr, fs.InodeSize())
	if err != nil {
		return nil, err
	}
	return &Inode{fs: fs, raw: *raw, num: n, addr: addr}, nil
}

// RootInode returns the root directory's inode, number 2 by ext2
// convention.
func (fs *FileSystem) RootInode() (*Inode, error) {
	return fs.InodeNth(RootInodeNumber)
}

// Inodes returns an iterator over every inode, starting at inode 1.
func (fs *FileSystem) Inodes() *Inodes {
	return fs.InodesFrom(1)
}

// InodesFrom returns an iterator over the inodes starting at the 1-based
// inode n.
func (fs *FileSystem) InodesFrom(n uint32) *Inodes {
	if n == 0 {
		panic("ext2: inodes are 1-indexed")
	}
	return &Inodes{fs: fs, next: n}
}

// Inodes iterates the filesystem's inode tables in number order.
type Inodes struct {
	fs   *FileSystem
	next uint32
	cur  *Inode
	err  error
}

// Next projects the next inode, returning false past the last inode or on
// the first error.
func (it *Inodes) Next() bool {
	if it.err != nil || it.next > it.fs.sb.inodeCount {
		return false
	}
	in, err := it.fs.InodeNth(it.next)
	if err != nil {
		it.err = err
		return false
	}
	it.next++
	it.cur = in
	return true
}

// Inode returns the inode projected by the last successful Next.
func (it *Inodes) Inode() *Inode {
	return it.cur
}

// Err returns the first error encountered while iterating.
func (it *Inodes) Err() error {
	return it.err
}

// Open resolves an absolute byte path to an inode, walking directories from
// the root. Symbolic links are not followed. The distinct failures are:
// NotAbsoluteError for a path not starting with '/', NotADirectoryError for
// a non-directory mid-path, NotFoundError for a missing entry and
// InodeNotFoundError for an entry pointing at an inode the filesystem
// cannot produce.
func (fs *FileSystem) Open(absPath string) (*Inode, error) {
	if len(absPath) == 0 || absPath[0] != '/' {
		return nil, &NotAbsoluteError{Name: absPath}
	}

	in, err := fs.RootInode()
	if err != nil {
		return nil, err
	}
	if absPath == "/" {
		return in, nil
	}

	for _, component := range strings.Split(absPath, "/")[1:] {
		name := []byte(component)

		dir := in.Directory()
		if dir == nil {
			return nil, &NotADirectoryError{Inode: in.num, Name: absPath}
		}

		var entry *DirEntry
		for dir.Next() {
			if e := dir.Entry(); bytes.Equal(e.Name, name) {
				entry = &e
				break
			}
		}
		if err := dir.Err(); err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, &NotFoundError{Name: absPath}
		}

		child, err := fs.InodeNth(entry.Inode)
		if err != nil {
			return nil, &InodeNotFoundError{Inode: entry.Inode}
		}
		in = child
	}
	return in, nil
}

// writeSuperblock re-encodes the cached superblock and descriptor table and
// commits both back to the volume. This is the write-back hook for future
// mutation support; bitmap and free-count maintenance live elsewhere.
func (fs *FileSystem) writeSuperblock() error {
	sl := volume.NewOwned(fs.sb.toBytes(), fs.sbAddr)
	if err := fs.volume.Commit(sl.Commit()); err != nil {
		return err
	}

	addr := fs.groupsAddr
	step := sector.FromIndex(fs.volume.SectorSize(), blockGroupDescriptorSize)
	for i := range fs.groups {
		sl := volume.NewOwned(fs.groups[i].toBytes(), addr)
		if err := fs.volume.Commit(sl.Commit()); err != nil {
			return err
		}
		addr = addr.Add(step)
	}
	return nil
}
