//go:build !windows
// +build !windows

package fs

import "os"

// Open opens path read-only.
func Open(path string) (File, error) {
	return os.Open(path)
}

// OpenFile opens path read-only, or read-write when writable is true.
func OpenFile(path string, writable bool) (File, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	return os.OpenFile(path, flag, 0)
}
