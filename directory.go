package ext2

import (
	"encoding/binary"

	"github.com/diskfs/go-ext2/volume"
)

// directory entry file type indicators (with the directory-type feature)
const (
	DirEntryUnknown  uint8 = 0
	DirEntryFile     uint8 = 1
	DirEntryDir      uint8 = 2
	DirEntryCharDev  uint8 = 3
	DirEntryBlockDev uint8 = 4
	DirEntryFifo     uint8 = 5
	DirEntrySocket   uint8 = 6
	DirEntrySymlink  uint8 = 7
)

// dirEntryHeaderSize is the fixed prefix of a directory record before the
// name bytes: inode, record length, name length, file type.
const dirEntryHeaderSize = 8

// DirEntry is one decoded directory record. Name is the raw on-disk name,
// not null-terminated and not guaranteed to be UTF-8.
type DirEntry struct {
	Name     []byte
	Inode    uint32
	FileType uint8
}

// Directory returns an iterator over the inode's directory entries, or nil
// when the inode is not a directory.
func (in *Inode) Directory() *Directory {
	if !in.IsDir() {
		return nil
	}
	return &Directory{
		blocks:    in.Blocks(),
		blockSize: in.fs.sb.blockSize(),
	}
}

// Directory iterates variable-length directory records block by block. Each
// record advances the cursor by its record length; a record with inode 0
// terminates the stream, as does the end of the inode's block stream. The
// directory's file size is not consulted.
type Directory struct {
	blocks    *Blocks
	buf       *volume.Slice
	offset    uint32
	blockSize uint32
	ent       DirEntry
	err       error
}

// Next decodes the next entry, returning false at the end of the directory
// or on error.
func (d *Directory) Next() bool {
	if d.err != nil {
		return false
	}
	if d.buf == nil || d.offset >= d.blockSize {
		if !d.blocks.Next() {
			d.err = d.blocks.Err()
			return false
		}
		d.buf, _ = d.blocks.Block()
		d.offset = 0
	}

	b := d.buf.Bytes()[d.offset:]
	inode := binary.LittleEndian.Uint32(b[0:4])
	if inode == 0 {
		return false
	}
	recLen := binary.LittleEndian.Uint16(b[4:6])
	nameLen := b[6]
	fileType := b[7]

	name := make([]byte, nameLen)
	copy(name, b[dirEntryHeaderSize:dirEntryHeaderSize+uint32(nameLen)])

	d.offset += uint32(recLen)
	d.ent = DirEntry{Name: name, Inode: inode, FileType: fileType}
	return true
}

// Entry returns the entry decoded by the last successful Next.
func (d *Directory) Entry() DirEntry {
	return d.ent
}

// Err returns the first error encountered while iterating.
func (d *Directory) Err() error {
	return d.err
}
