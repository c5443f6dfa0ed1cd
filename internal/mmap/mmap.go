// Package mmap maps table files into memory for read-only line scanning.
package mmap

import (
	"bytes"
	"os"
)

type Options uint

const (
	// SequentialAccess is a hint requesting aggressive read-ahead.
	// Incompatible with RandomAccess. Maps to MADV_SEQUENTIAL on Unix.
	SequentialAccess Options = 1 << 0

	// RandomAccess is a hint that read ahead is less useful than normally.
	// Incompatible with SequentialAccess. Maps to MADV_RANDOM on Unix.
	RandomAccess Options = 1 << 1
)

func (o Options) Has(v Options) bool {
	return o&v != 0
}

// Mapping is a read-only view of a whole file.
type Mapping struct {
	Data   []byte
	mapped bool
}

// Open maps the file at path. Empty files and files larger than MaxSize
// are read into memory instead, so callers never need a separate code path.
func Open(path string, opt Options) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := st.Size()
	if size == 0 {
		return &Mapping{}, nil
	}
	if size > MaxSize || !supported {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return &Mapping{Data: data}, nil
	}

	data, err := mmap(f, int(size), opt)
	if err != nil {
		return nil, err
	}
	return &Mapping{Data: data, mapped: true}, nil
}

// Close unmaps the data. The mapping must not be used afterwards.
func (m *Mapping) Close() error {
	if m == nil || !m.mapped {
		return nil
	}
	m.mapped = false
	data := m.Data
	m.Data = nil
	return munmap(data)
}

// Lines calls fn for every newline-terminated line (the final line may lack
// the terminator), without the trailing "\n". The slice passed to fn aliases
// the mapping. Iteration stops when fn returns false.
func Lines(data []byte, fn func(i int, line []byte) bool) {
	for i := 0; len(data) > 0; i++ {
		var line []byte
		if n := bytes.IndexByte(data, '\n'); n >= 0 {
			line, data = data[:n], data[n+1:]
		} else {
			line, data = data, nil
		}
		if !fn(i, line) {
			return
		}
	}
}

// Offsets returns the byte offset of the start of every line, plus a final
// entry equal to len(data), so line i spans data[off[i]:off[i+1]].
func Offsets(data []byte) []int64 {
	off := make([]int64, 0, 1+bytes.Count(data, []byte{'\n'}))
	pos := int64(0)
	Lines(data, func(_ int, line []byte) bool {
		off = append(off, pos)
		pos += int64(len(line)) + 1
		return true
	})
	return append(off, int64(len(data)))
}
