package volume

import (
	"os"

	"golang.org/x/sys/unix"
)

// deviceSize asks the kernel for the byte size of a block device whose Stat
// size is zero.
func deviceSize(h Handle) (int64, bool) {
	f, ok := h.(*os.File)
	if !ok {
		return 0, false
	}
	size, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKGETSIZE64)
	if err != nil {
		return 0, false
	}
	return int64(size), true
}
