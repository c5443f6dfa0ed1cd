package itsdb

import (
	"golang.org/x/text/encoding"
)

// rowStore is what a Table keeps its rows in: either memStore (detached)
// or fileStore (attached). Cells passed in and out are owned by the store;
// callers copy when handing them to the outside.
type rowStore interface {
	len() int
	get(i int) ([]string, error)
	set(i int, cells []string)
	append(cells []string)
	each(fn func(i int, cells []string) error) error
	clear()
}

type memStore struct {
	rows [][]string
}

func (s *memStore) len() int {
	return len(s.rows)
}

func (s *memStore) get(i int) ([]string, error) {
	return s.rows[i], nil
}

func (s *memStore) set(i int, cells []string) {
	s.rows[i] = cells
}

func (s *memStore) append(cells []string) {
	s.rows = append(s.rows, cells)
}

func (s *memStore) each(fn func(i int, cells []string) error) error {
	for i, row := range s.rows {
		if err := fn(i, row); err != nil {
			return err
		}
	}
	return nil
}

func (s *memStore) clear() {
	s.rows = nil
}

// slot is one row of an attached table: either unloaded (read it from the
// file when needed) or overridden by an in-memory value.
type slot struct {
	cells      []string
	overridden bool
}

type fileStore struct {
	table   string
	rel     *Relation
	path    string
	encName string
	enc     encoding.Encoding
	catalog *Catalog
	slots   []slot
	synced  int  // rows [0, synced) are on disk
	rewrite bool // the file must be rewritten in full on the next commit
}

func (s *fileStore) len() int {
	return len(s.slots)
}

func (s *fileStore) resolve() (tableFile, error) {
	return resolveTableFile(s.path)
}

func (s *fileStore) get(i int) ([]string, error) {
	if sl := s.slots[i]; sl.overridden {
		return sl.cells, nil
	}
	tf, err := s.resolve()
	if err != nil {
		return nil, err
	}

	var line string
	var found bool
	if s.catalog != nil && !tf.gz && tf.exists && s.enc == nil {
		line, found, err = s.catalog.readLineAt(tf.path, i)
		if err != nil {
			return nil, err
		}
	} else {
		err = readLines(tf, s.enc, func(j int, l string) bool {
			if j == i {
				line, found = l, true
				return false
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	if !found {
		return nil, lineErrf(s.table, i+1, "", nil, "row is missing from the table file")
	}
	return s.decode(i, line)
}

func (s *fileStore) decode(i int, line string) ([]string, error) {
	cells := SplitRow(line)
	if len(cells) != s.rel.Len() {
		return nil, lineErrf(s.table, i+1, line, nil, "field count mismatch: got %d, expected %d", len(cells), s.rel.Len())
	}
	return cells, nil
}

func (s *fileStore) set(i int, cells []string) {
	s.slots[i] = slot{cells: cells, overridden: true}
}

func (s *fileStore) append(cells []string) {
	s.slots = append(s.slots, slot{cells: cells, overridden: true})
}

// each merges the file with the overrides: file lines are streamed once and
// only decoded for slots that aren't overridden.
func (s *fileStore) each(fn func(i int, cells []string) error) error {
	n := 0
	if s.synced > 0 && s.hasUnloaded() {
		tf, err := s.resolve()
		if err != nil {
			return err
		}
		var ferr error
		err = readLines(tf, s.enc, func(i int, line string) bool {
			if i >= len(s.slots) {
				return false
			}
			n = i + 1
			cells := s.slots[i].cells
			if !s.slots[i].overridden {
				cells, ferr = s.decode(i, line)
				if ferr != nil {
					return false
				}
			}
			ferr = fn(i, cells)
			return ferr == nil
		})
		if err != nil {
			return err
		}
		if ferr != nil {
			return ferr
		}
	}
	for i := n; i < len(s.slots); i++ {
		sl := s.slots[i]
		if !sl.overridden {
			return lineErrf(s.table, i+1, "", nil, "row is missing from the table file")
		}
		if err := fn(i, sl.cells); err != nil {
			return err
		}
	}
	return nil
}

func (s *fileStore) hasUnloaded() bool {
	for _, sl := range s.slots {
		if !sl.overridden {
			return true
		}
	}
	return false
}

func (s *fileStore) clear() {
	s.slots = nil
	s.synced = 0
	s.rewrite = true
}

// changes returns the indices of overridden rows.
func (s *fileStore) changes() []int {
	var out []int
	for i, sl := range s.slots {
		if sl.overridden {
			out = append(out, i)
		}
	}
	return out
}

// pending counts rows appended since the last commit.
func (s *fileStore) pending() int {
	n := 0
	for i := s.synced; i < len(s.slots); i++ {
		if s.slots[i].overridden {
			n++
		}
	}
	return n
}

// appendOnly reports whether every override is a new row past the synced
// part of the file, which lets commit append instead of rewriting.
func (s *fileStore) appendOnly() bool {
	if s.rewrite || len(s.slots) < s.synced {
		return false
	}
	for i := 0; i < s.synced; i++ {
		if s.slots[i].overridden {
			return false
		}
	}
	return true
}

func (s *fileStore) markSynced() {
	for i := range s.slots {
		s.slots[i] = slot{}
	}
	s.synced = len(s.slots)
	s.rewrite = false
}
