package itsdb

import (
	"errors"
	"iter"
	"path/filepath"
	"strings"
	"weak"

	"go.uber.org/zap"
)

// Table is a named collection of rows sharing one Relation.
//
// A table is either detached (all rows in memory) or attached to a table
// file. Attached tables read rows from the file on demand and keep edits
// and appended rows in memory until Commit.
type Table struct {
	name    string
	rel     *Relation
	store   rowStore
	logger  *zap.Logger
	catalog *Catalog
}

type TableOptions struct {
	// Encoding of the table file; empty means UTF-8.
	Encoding string
	Logger   *zap.Logger
	// Catalog, when set, caches line offsets of plain-text table files.
	Catalog *Catalog
}

// Change is an in-memory row of an attached table that differs from (or
// is missing in) the table file.
type Change struct {
	Index  int
	Record *Record
}

var errStopIteration = errors.New("stop iteration")

// NewTable creates a detached table holding raw rows.
func NewTable(name string, rel *Relation, rows ...[]string) (*Table, error) {
	t := &Table{
		name:   name,
		rel:    rel,
		store:  &memStore{},
		logger: zap.NewNop(),
	}
	for _, row := range rows {
		if err := t.AppendCells(row); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// OpenTable creates a table attached to dir/name (or dir/name.gz).
// A missing file is treated as an empty table and created on Commit.
func OpenTable(dir, name string, rel *Relation, opt TableOptions) (*Table, error) {
	t := must(NewTable(name, rel))
	if opt.Logger != nil {
		t.logger = opt.Logger
	}
	t.catalog = opt.Catalog
	if err := t.Attach(filepath.Join(dir, name), opt.Encoding); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) Name() string {
	return t.name
}

func (t *Table) Relation() *Relation {
	return t.rel
}

func (t *Table) Len() int {
	return t.store.len()
}

func (t *Table) IsAttached() bool {
	_, ok := t.store.(*fileStore)
	return ok
}

// Path returns the canonical (uncompressed) path of the table file, or an
// empty string for a detached table.
func (t *Table) Path() string {
	if fs, ok := t.store.(*fileStore); ok {
		return fs.path
	}
	return ""
}

// Encoding returns the file encoding of an attached table.
func (t *Table) Encoding() string {
	if fs, ok := t.store.(*fileStore); ok {
		return fs.encName
	}
	return ""
}

func (t *Table) checkIndex(i int) error {
	if i < 0 || i >= t.store.len() {
		return tableErrf(t.name, nil, "row index %d out of range [0, %d)", i, t.store.len())
	}
	return nil
}

func (t *Table) checkCells(cells []string) error {
	if len(cells) != t.rel.Len() {
		return lineErrf(t.name, 0, JoinRow(cells), nil, "field count mismatch: got %d, expected %d", len(cells), t.rel.Len())
	}
	return nil
}

// Get returns row i. The record writes back into the table on Set.
func (t *Table) Get(i int) (*Record, error) {
	if err := t.checkIndex(i); err != nil {
		return nil, err
	}
	cells, err := t.store.get(i)
	if err != nil {
		return nil, err
	}
	return t.record(i, cells), nil
}

func (t *Table) record(i int, cells []string) *Record {
	return &Record{
		rel:   t.rel,
		cells: append([]string(nil), cells...),
		owner: weak.Make(t),
		row:   i,
	}
}

// Set replaces row i with formatted values.
func (t *Table) Set(i int, values ...any) error {
	rec, err := NewRecord(t.rel, values...)
	if err != nil {
		return err
	}
	return t.SetCells(i, rec.cells)
}

// SetCells replaces row i with raw cells.
func (t *Table) SetCells(i int, cells []string) error {
	if err := t.checkIndex(i); err != nil {
		return err
	}
	if err := t.checkCells(cells); err != nil {
		return err
	}
	t.store.set(i, append([]string(nil), cells...))
	return nil
}

func (t *Table) writeBack(row int, rel *Relation, cells []string) error {
	if rel != t.rel {
		return tableErrf(t.name, nil, "record belongs to a different relation")
	}
	return t.SetCells(row, cells)
}

// Append adds one row of formatted values.
func (t *Table) Append(values ...any) error {
	rec, err := NewRecord(t.rel, values...)
	if err != nil {
		return err
	}
	t.store.append(rec.cells)
	return nil
}

// AppendCells adds one row of raw cells.
func (t *Table) AppendCells(cells []string) error {
	if err := t.checkCells(cells); err != nil {
		return err
	}
	t.store.append(append([]string(nil), cells...))
	return nil
}

// AppendMap adds one row built from a column map (see MakeRow).
func (t *Table) AppendMap(values map[string]any) error {
	cells, err := MakeRow(values, t.rel)
	if err != nil {
		return err
	}
	t.store.append(cells)
	return nil
}

// Extend appends copies of records. Each record must have the same number
// of fields as the table.
func (t *Table) Extend(records ...*Record) error {
	for _, rec := range records {
		if err := t.AppendCells(rec.cells); err != nil {
			return err
		}
	}
	return nil
}

// Rows calls fn with the raw cells of every row in order. The cells must
// not be retained or modified.
func (t *Table) Rows(fn func(i int, cells []string) error) error {
	return t.store.each(fn)
}

// All iterates over the table's records. Attached tables stream the file
// once.
func (t *Table) All() iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		err := t.store.each(func(i int, cells []string) error {
			if !yield(t.record(i, cells), nil) {
				return errStopIteration
			}
			return nil
		})
		if err != nil && err != errStopIteration {
			yield(nil, err)
		}
	}
}

// Records returns every record of the table.
func (t *Table) Records() ([]*Record, error) {
	out := make([]*Record, 0, t.Len())
	for rec, err := range t.All() {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (t *Table) materialize() ([][]string, error) {
	rows := make([][]string, 0, t.Len())
	err := t.store.each(func(_ int, cells []string) error {
		rows = append(rows, append([]string(nil), cells...))
		return nil
	})
	return rows, err
}

// Clear removes all rows. For an attached table the file is replaced on
// the next Commit.
func (t *Table) Clear() {
	t.store.clear()
}

// Truncate clears the table and, when attached, commits the empty file.
func (t *Table) Truncate() error {
	t.Clear()
	return t.Commit()
}

// Attach binds a detached table to a table file.
//
// A table without rows takes over the rows of the file. A table with rows
// can only be attached to a missing or empty file; its rows become
// pending and are written by the next Commit.
func (t *Table) Attach(path, encoding string) error {
	mem, ok := t.store.(*memStore)
	if !ok {
		return tableErrf(t.name, nil, "table is already attached to %s", t.Path())
	}
	enc, err := lookupEncoding(encoding)
	if err != nil {
		return tableErrf(t.name, err, "cannot attach")
	}
	if encoding == "" {
		encoding = DefaultEncoding
	}
	path = strings.TrimSuffix(path, gzipSuffix)
	tf, err := resolveTableFile(path)
	if err != nil {
		return tableErrf(t.name, err, "cannot attach")
	}
	n, err := countLines(tf, enc)
	if err != nil {
		return tableErrf(t.name, err, "cannot attach")
	}

	fs := &fileStore{
		table:   t.name,
		rel:     t.rel,
		path:    path,
		encName: encoding,
		enc:     enc,
		catalog: t.catalog,
	}
	switch {
	case len(mem.rows) == 0:
		fs.slots = make([]slot, n)
		fs.synced = n
	case n > 0:
		return tableErrf(t.name, nil, "cannot attach a table with %d rows to non-empty file %s", len(mem.rows), tf.actual())
	default:
		fs.slots = make([]slot, len(mem.rows))
		for i, row := range mem.rows {
			fs.slots[i] = slot{cells: row, overridden: true}
		}
	}
	t.store = fs
	t.logger.Debug("table attached", zap.String("table", t.name), zap.String("file", tf.actual()), zap.Int("rows", fs.len()))
	return nil
}

// Detach loads every row into memory and unbinds the table from its file.
func (t *Table) Detach() error {
	if _, ok := t.store.(*fileStore); !ok {
		return tableErrf(t.name, nil, "table is not attached")
	}
	rows, err := t.materialize()
	if err != nil {
		return err
	}
	t.store = &memStore{rows: rows}
	return nil
}

// ListChanges returns the rows of an attached table that are held in
// memory: edits of file rows and appended rows.
func (t *Table) ListChanges() ([]Change, error) {
	fs, ok := t.store.(*fileStore)
	if !ok {
		return nil, tableErrf(t.name, nil, "cannot list changes of a detached table")
	}
	var out []Change
	for _, i := range fs.changes() {
		out = append(out, Change{Index: i, Record: t.record(i, fs.slots[i].cells)})
	}
	return out, nil
}

// Pending returns the number of rows appended to an attached table since
// the last commit. Detached tables have nothing pending.
func (t *Table) Pending() int {
	if fs, ok := t.store.(*fileStore); ok {
		return fs.pending()
	}
	return 0
}

// Commit writes the in-memory changes of an attached table to its file.
// When the only changes are rows appended after the last commit they are
// appended to the file; otherwise the file is rewritten. Detached tables
// are left alone.
func (t *Table) Commit() error {
	fs, ok := t.store.(*fileStore)
	if !ok {
		return nil
	}
	dir, name := filepath.Dir(fs.path), filepath.Base(fs.path)
	tf, err := fs.resolve()
	if err != nil {
		return tableErrf(t.name, err, "cannot commit")
	}

	if fs.appendOnly() {
		rows := make([][]string, 0, len(fs.slots)-fs.synced)
		for _, sl := range fs.slots[fs.synced:] {
			rows = append(rows, sl.cells)
		}
		if len(rows) == 0 && tf.exists {
			return nil
		}
		err = WriteTable(dir, name, rows, WriteOptions{
			Append:   true,
			Encoding: fs.encName,
			Logger:   t.logger,
		})
		if err != nil {
			return err
		}
		t.logger.Debug("table committed", zap.String("table", t.name), zap.String("mode", "append"), zap.Int("rows", len(rows)))
	} else {
		rows, err := t.materialize()
		if err != nil {
			return err
		}
		err = WriteTable(dir, name, rows, WriteOptions{
			Gzip:     tf.gz,
			Encoding: fs.encName,
			Logger:   t.logger,
		})
		if err != nil {
			return err
		}
		t.logger.Debug("table committed", zap.String("table", t.name), zap.String("mode", "rewrite"), zap.Int("rows", len(rows)))
	}

	fs.markSynced()
	if t.catalog != nil {
		if err := t.catalog.Invalidate(fs.path); err != nil {
			return tableErrf(t.name, err, "cannot commit")
		}
	}
	return nil
}

// Write writes every row of the table to dir/<name>, regardless of whether
// the table is attached.
func (t *Table) Write(dir string, opt WriteOptions) error {
	rows, err := t.materialize()
	if err != nil {
		return err
	}
	if opt.Logger == nil {
		opt.Logger = t.logger
	}
	return WriteTable(dir, t.name, rows, opt)
}

// Select projects the table's records onto columns; see SelectRows.
func (t *Table) Select(cols []string, mode SelectMode, cast bool) ([]any, error) {
	recs, err := t.Records()
	if err != nil {
		return nil, err
	}
	return SelectRows(cols, recs, mode, cast)
}
