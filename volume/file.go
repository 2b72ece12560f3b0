package volume

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/diskfs/go-ext2/sector"
)

// ErrReadOnly is returned by File.Commit when asked to write back to a
// volume opened read-only.
var ErrReadOnly = errors.New("volume not open for write")

// Handle is the host file surface a File volume reads through. *os.File
// satisfies it, as does any image or device wrapper exposing positioned
// reads.
type Handle interface {
	io.ReaderAt
	Stat() (os.FileInfo, error)
}

// WritableHandle is a Handle that also accepts positioned writes.
type WritableHandle interface {
	Handle
	io.WriterAt
}

// File is a Volume over a host file or block device. Every Slice seeks and
// reads into a freshly owned buffer, so slices from a File are always
// committable. A single mutex serialises access to the handle.
type File struct {
	mu       sync.Mutex
	handle   Handle
	size     sector.Size
	readOnly bool
}

// NewFile wraps an open host file as a volume with the given sector size.
// When readOnly is set, Commit fails if actually asked to write.
func NewFile(handle Handle, size sector.Size, readOnly bool) *File {
	return &File{handle: handle, size: size, readOnly: readOnly}
}

// OpenFromPath opens a device or image file at pathName as a volume.
// Pass a path to a block device, e.g. /dev/sda, or to an image file,
// e.g. /tmp/foo.img. The file must exist.
func OpenFromPath(pathName string, size sector.Size, readOnly bool) (*File, error) {
	if pathName == "" {
		return nil, errors.New("must pass device or file name")
	}
	if _, err := os.Stat(pathName); os.IsNotExist(err) {
		return nil, fmt.Errorf("provided device/file %s does not exist", pathName)
	}

	openMode := os.O_RDONLY
	if !readOnly {
		openMode |= os.O_RDWR | os.O_EXCL
	}

	f, err := os.OpenFile(pathName, openMode, 0o600)
	if err != nil {
		return nil, fmt.Errorf("could not open device %s with mode %v: %w", pathName, openMode, err)
	}
	return NewFile(f, size, readOnly), nil
}

func (f *File) SectorSize() sector.Size {
	return f.size
}

// Size returns the bounded size of the backing file. For block devices whose
// Stat size is zero, the size is probed from the device itself where the
// platform supports it; when nothing can be learned the volume reports
// unbounded and slice reads are bounded by the host instead.
func (f *File) Size() Size {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, err := f.handle.Stat()
	if err != nil {
		return Unbounded()
	}
	length := info.Size()
	if length == 0 {
		if dev, ok := deviceSize(f.handle); ok {
			length = dev
		} else {
			return Unbounded()
		}
	}
	return Bounded(sector.FromIndex(f.size, uint64(length)))
}

func (f *File) Slice(from, to sector.Address) (*Slice, error) {
	if !f.Size().Contains(to) {
		return nil, &OutOfBoundsError{Addr: to, Size: f.Size()}
	}
	return f.SliceUnchecked(from, to)
}

func (f *File) SliceUnchecked(from, to sector.Address) (*Slice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]byte, to.Index()-from.Index())
	if _, err := f.handle.ReadAt(buf, int64(from.Index())); err != nil {
		return nil, fmt.Errorf("could not read %d bytes at %s: %w", len(buf), from, err)
	}
	return NewOwned(buf, from), nil
}

func (f *File) Commit(c *Commit) error {
	if c == nil {
		return nil
	}
	if f.readOnly {
		return ErrReadOnly
	}
	w, ok := f.handle.(WritableHandle)
	if !ok {
		return ErrReadOnly
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := w.WriteAt(c.Bytes(), int64(c.Addr().Index())); err != nil {
		return fmt.Errorf("could not write %d bytes at %s: %w", len(c.Bytes()), c.Addr(), err)
	}
	return nil
}

// Close closes the underlying handle if it is closeable.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.handle.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// interface guard
var _ Volume = (*File)(nil)
