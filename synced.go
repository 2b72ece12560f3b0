package ext2

import (
	"bytes"
	"strings"
	"sync"

	"github.com/diskfs/go-ext2/sector"
	"github.com/diskfs/go-ext2/volume"
)

// Synced is a shareable handle on a FileSystem. All operations take a
// shared mutex for the duration of a single step — one inode projection,
// one volume slice, one pointer-table lookup — so long traversals never
// hold the lock across user code. Synced values are cheap to copy and all
// copies name the same filesystem.
//
// Inode snapshots handed out by a Synced are plain values; they can go
// stale if another writer changes the volume, which a read-oriented
// filesystem accepts.
type Synced struct {
	mu *sync.Mutex
	fs *FileSystem
}

// NewSynced places the filesystem behind a mutex. The caller must stop
// using the bare handle afterwards.
func NewSynced(fs *FileSystem) Synced {
	return Synced{mu: &sync.Mutex{}, fs: fs}
}

// RootInode returns the root directory's inode.
func (s Synced) RootInode() (*Inode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fs.RootInode()
}

// InodeNth projects the 1-based inode n.
func (s Synced) InodeNth(n uint32) (*Inode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fs.InodeNth(n)
}

// Open resolves an absolute path to an inode. The walk locks per step —
// one inode projection or one directory-entry decode at a time — so other
// handles interleave with long path resolutions.
func (s Synced) Open(absPath string) (*Inode, error) {
	if len(absPath) == 0 || absPath[0] != '/' {
		return nil, &NotAbsoluteError{Name: absPath}
	}

	in, err := s.RootInode()
	if err != nil {
		return nil, err
	}
	if absPath == "/" {
		return in, nil
	}

	for _, component := range strings.Split(absPath, "/")[1:] {
		name := []byte(component)

		dir := s.Directory(in)
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

		child, err := s.InodeNth(entry.Inode)
		if err != nil {
			return nil, &InodeNotFoundError{Inode: entry.Inode}
		}
		in = child
	}
	return in, nil
}

// Read copies the inode's data into buf under the lock.
func (s Synced) Read(in *Inode, buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return in.Read(buf)
}

// BlockSize returns the filesystem block size in bytes.
func (s Synced) BlockSize() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fs.BlockSize()
}

// Version returns the filesystem revision as (major, minor).
func (s Synced) Version() (uint32, uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fs.Version()
}

// Inodes returns an iterator over every inode. Each step takes and
// releases the lock.
func (s Synced) Inodes() *SyncedInodes {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &SyncedInodes{mu: s.mu, inner: s.fs.Inodes()}
}

// SyncedInodes is an Inodes iterator that locks per step.
type SyncedInodes struct {
	mu    *sync.Mutex
	inner *Inodes
}

func (it *SyncedInodes) Next() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.inner.Next()
}

func (it *SyncedInodes) Inode() *Inode {
	return it.inner.Inode()
}

func (it *SyncedInodes) Err() error {
	return it.inner.Err()
}

// Blocks returns an iterator over the inode's data blocks, locking per
// step.
func (s Synced) Blocks(in *Inode) *SyncedBlocks {
	return &SyncedBlocks{mu: s.mu, inner: in.Blocks()}
}

// SyncedBlocks is a Blocks iterator that locks per step.
type SyncedBlocks struct {
	mu    *sync.Mutex
	inner *Blocks
}

func (bl *SyncedBlocks) Next() bool {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	return bl.inner.Next()
}

func (bl *SyncedBlocks) Block() (*volume.Slice, sector.Address) {
	return bl.inner.Block()
}

func (bl *SyncedBlocks) Err() error {
	return bl.inner.Err()
}

// Directory returns an iterator over the inode's directory entries,
// locking per step, or nil when the inode is not a directory.
func (s Synced) Directory(in *Inode) *SyncedDirectory {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := in.Directory()
	if dir == nil {
		return nil
	}
	return &SyncedDirectory{mu: s.mu, inner: dir}
}

// SyncedDirectory is a Directory iterator that locks per step.
type SyncedDirectory struct {
	mu    *sync.Mutex
	inner *Directory
}

func (d *SyncedDirectory) Next() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inner.Next()
}

func (d *SyncedDirectory) Entry() DirEntry {
	return d.inner.Entry()
}

func (d *SyncedDirectory) Err() error {
	return d.inner.Err()
}
