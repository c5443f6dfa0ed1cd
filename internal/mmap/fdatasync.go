package mmap

import "os"

// Fdatasync flushes the written contents of f to stable storage, skipping
// metadata such as access times where the platform allows it. Table files
// are synced before being renamed into place.
//
// Errors returned by this function are not recoverable: the data in the
// page cache may no longer match the disk.
func Fdatasync(f *os.File) error {
	return fdatasync(f)
}
