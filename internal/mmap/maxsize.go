package mmap

import "strconv"

// MaxSize is the largest file that Open maps; bigger files are read instead.
const MaxSize = 1<<(strconv.IntSize-2) - 1
