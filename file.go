package ext2

import (
	"fmt"
	"io"

	"github.com/diskfs/go-ext2/sector"
)

// File is a cursor over a regular file's contents, implementing io.Reader,
// io.Seeker and io.Closer. It layers an offset on top of the inode's block
// stream; a hole ends the stream the same way it ends Inode.Read.
type File struct {
	inode  *Inode
	offset int64
}

// OpenFile resolves an absolute path and wraps the resulting inode in a
// File cursor.
func (fs *FileSystem) OpenFile(absPath string) (*File, error) {
	in, err := fs.Open(absPath)
	if err != nil {
		return nil, err
	}
	return in.File(), nil
}

// File wraps the inode in a read cursor positioned at the start.
func (in *Inode) File() *File {
	return &File{inode: in}
}

// Inode returns the file's inode handle.
func (fl *File) Inode() *Inode {
	return fl.inode
}

// Read reads up to len(b) bytes from the file at the current offset. At end
// of file, Read returns 0, io.EOF.
func (fl *File) Read(b []byte) (int, error) {
	fileSize := int64(fl.inode.Size())
	blockSize := int64(fl.inode.fs.sb.blockSize())
	if fl.offset >= fileSize {
		return 0, io.EOF
	}

	toRead := int64(len(b))
	if fl.offset+toRead > fileSize {
		toRead = fileSize - fl.offset
	}

	var read int64
	for read < toRead {
		index := uint64((fl.offset + read) / blockSize)
		block, ok, err := fl.inode.BlockN(index)
		if err != nil {
			return int(read), err
		}
		if !ok {
			// hole: the stream ends here, like Inode.Read
			break
		}

		inBlock := (fl.offset + read) % blockSize
		n := blockSize - inBlock
		if rest := toRead - read; rest < n {
			n = rest
		}

		fs := fl.inode.fs
		start := sector.WithBlockSize(fs.volume.SectorSize(), block, inBlock, fs.logBlockSize())
		end := sector.WithBlockSize(fs.volume.SectorSize(), block, inBlock+n, fs.logBlockSize())
		sl, err := fs.volume.Slice(start, end)
		if err != nil {
			return int(read), err
		}
		copy(b[read:read+n], sl.Bytes())
		read += n
	}

	fl.offset += read
	var err error
	if fl.offset >= fileSize || read == 0 {
		err = io.EOF
	}
	return int(read), err
}

// Seek sets the offset for the next Read.
func (fl *File) Seek(offset int64, whence int) (int64, error) {
	var newOffset int64
	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = fl.offset + offset
	case io.SeekEnd:
		newOffset = int64(fl.inode.Size()) + offset
	}
	if newOffset < 0 {
		return fl.offset, fmt.Errorf("cannot set offset %d before start of file", offset)
	}
	fl.offset = newOffset
	return fl.offset, nil
}

// Close releases the cursor.
func (fl *File) Close() error {
	*fl = File{}
	return nil
}

// interface guards
var (
	_ io.Reader = (*File)(nil)
	_ io.Seeker = (*File)(nil)
	_ io.Closer = (*File)(nil)
)
