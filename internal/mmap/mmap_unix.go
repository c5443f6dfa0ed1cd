//go:build unix

package mmap

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

const supported = true

func mmap(f *os.File, size int, opt Options) ([]byte, error) {
	b, err := unix.Mmap(int(f.Fd()), 0, size, syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	advice := 0
	if opt.Has(SequentialAccess) {
		advice = unix.MADV_SEQUENTIAL
	} else if opt.Has(RandomAccess) {
		advice = unix.MADV_RANDOM
	}
	if advice != 0 {
		err = unix.Madvise(b, advice)
		// ENOSYS: the kernel ignores the hint but the mapping still works.
		if err != nil && err != syscall.ENOSYS {
			unix.Munmap(b)
			return nil, fmt.Errorf("madvise(%d): %w", advice, err)
		}
	}
	return b, nil
}

func munmap(b []byte) error {
	return unix.Munmap(b)
}
