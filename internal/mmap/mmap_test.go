package mmap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOptionsHas(t *testing.T) {
	var o Options = SequentialAccess
	if !o.Has(SequentialAccess) || o.Has(RandomAccess) {
		t.Fatalf("Options.Has returned unexpected results for %v", o)
	}
}

func TestOpenAndClose(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "item")
	ensure(os.WriteFile(fn, []byte("1@a\n2@b\n"), 0o666))

	m, err := Open(fn, SequentialAccess)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(m.Data) != "1@a\n2@b\n" {
		t.Fatalf("Data = %q", m.Data)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestOpen_EmptyFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "empty")
	ensure(os.WriteFile(fn, nil, 0o666))

	m, err := Open(fn, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()
	if len(m.Data) != 0 {
		t.Fatalf("len(Data) = %d, wanted 0", len(m.Data))
	}
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"), 0)
	if !os.IsNotExist(err) {
		t.Fatalf("err = %v, wanted not-exist", err)
	}
}

func TestLines(t *testing.T) {
	var got []string
	Lines([]byte("a\nbb\n\nc"), func(i int, line []byte) bool {
		if i != len(got) {
			t.Fatalf("i = %d, wanted %d", i, len(got))
		}
		got = append(got, string(line))
		return true
	})
	want := []string{"a", "bb", "", "c"}
	if len(got) != len(want) {
		t.Fatalf("Lines = %q, wanted %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Lines = %q, wanted %q", got, want)
		}
	}

	n := 0
	Lines([]byte("a\nb\nc\n"), func(i int, line []byte) bool {
		n++
		return i < 1
	})
	if n != 2 {
		t.Fatalf("Lines did not stop early, n = %d", n)
	}
}

func TestOffsets(t *testing.T) {
	data := []byte("ab\nc\n")
	off := Offsets(data)
	want := []int64{0, 3, 5}
	if len(off) != len(want) {
		t.Fatalf("Offsets = %v, wanted %v", off, want)
	}
	for i := range want {
		if off[i] != want[i] {
			t.Fatalf("Offsets = %v, wanted %v", off, want)
		}
	}
	if got := string(data[off[1] : off[2]-1]); got != "c" {
		t.Fatalf("line 1 = %q, wanted c", got)
	}

	if off := Offsets(nil); len(off) != 1 || off[0] != 0 {
		t.Fatalf("Offsets(nil) = %v, wanted [0]", off)
	}
}

func TestFdatasync(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "sync_*")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString("x"); err != nil {
		t.Fatal(err)
	}
	if err := Fdatasync(f); err != nil {
		t.Fatalf("Fdatasync: %v", err)
	}
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}
