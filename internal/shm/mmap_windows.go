// +build windows

package shm

import (
	"io"
	"os"
)

// segments are read into the heap where mmap is unavailable
func mmap(f *os.File, size int) ([]byte, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, err
	}
	return data, nil
}

func munmap(data []byte) error {
	return nil
}
