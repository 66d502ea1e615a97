//go:build !unix

package mmap

import (
	"io"
	"os"
)

// osMap reads the file into memory where mmap(2) is unavailable.
func osMap(f *os.File, size int) ([]byte, func([]byte) error, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, nil, err
	}
	return data, nil, nil
}

func adviseSequential([]byte) error { return nil }
