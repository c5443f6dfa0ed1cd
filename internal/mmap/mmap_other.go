//go:build !unix && !windows

package mmap

import (
	"errors"
	"os"
)

const supported = false

func mmap(*os.File, int, Options) ([]byte, error) {
	return nil, errors.ErrUnsupported
}

func munmap([]byte) error {
	return nil
}
