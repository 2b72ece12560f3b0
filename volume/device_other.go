//go:build !linux

package volume

// deviceSize probing is only implemented for linux block devices.
func deviceSize(_ Handle) (int64, bool) {
	return 0, false
}
