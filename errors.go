package ext2

import "fmt"

// BadMagicError reports a superblock whose magic is not 0xEF53.
type BadMagicError struct {
	Magic uint16
}

func (e *BadMagicError) Error() string {
	return fmt.Sprintf("invalid magic value: %#04x", e.Magic)
}

// OutOfBoundsError reports an index past the end of a table, e.g. an inode
// number beyond the filesystem's inode count.
type OutOfBoundsError struct {
	Index uint64
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("index out of bounds: %d", e.Index)
}

// BadBlockGroupCountError reports a superblock whose block-group count
// derived from block totals disagrees with the one derived from inode
// totals.
type BadBlockGroupCountError struct {
	ByBlocks uint32
	ByInodes uint32
}

func (e *BadBlockGroupCountError) Error() string {
	return fmt.Sprintf("conflicting block group count data; by blocks: %d, by inodes: %d", e.ByBlocks, e.ByInodes)
}

// InodeNotFoundError reports a directory entry pointing at an inode the
// filesystem could not produce.
type InodeNotFoundError struct {
	Inode uint32
}

func (e *InodeNotFoundError) Error() string {
	return fmt.Sprintf("couldn't find inode no. %d", e.Inode)
}

// NotADirectoryError reports a path component that is not a directory.
type NotADirectoryError struct {
	Inode uint32
	Name  string
}

func (e *NotADirectoryError) Error() string {
	return fmt.Sprintf("inode no. %d at: %s is not a directory", e.Inode, e.Name)
}

// NotAbsoluteError reports a path that does not start with '/'.
type NotAbsoluteError struct {
	Name string
}

func (e *NotAbsoluteError) Error() string {
	return fmt.Sprintf("%s is not an absolute path", e.Name)
}

// NotFoundError reports a path with no matching directory entry.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("couldn't find %s", e.Name)
}
