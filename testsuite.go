package itsdb

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RelationsFile is the name of the schema file of a profile.
const RelationsFile = "relations"

// TestSuite is a profile: a set of tables sharing one Relations schema,
// either stored in a directory or held in memory.
//
// A TestSuite is not safe for concurrent use.
type TestSuite struct {
	dir    string
	rels   *Relations
	tables map[string]*Table // nil entries are loaded on first access
	opt    Options
	logger *zap.Logger
}

type Options struct {
	// Encoding of the table files; empty means UTF-8.
	Encoding string
	Logger   *zap.Logger
	Catalog  *Catalog
}

// WriteSuiteOptions control TestSuite.Write.
type WriteSuiteOptions struct {
	// Dir defaults to the profile's own directory.
	Dir string
	// Tables to write; all tables of Relations when empty.
	Tables []string
	Append bool
	Gzip   bool
	// Relations to write instead of the profile's own schema.
	Relations *Relations
}

// TableStat describes the on-disk state of one table.
type TableStat struct {
	Name  string
	Rows  int
	Bytes int64
	Gzip  bool
}

// Open loads the profile in dir, attaching every table to its file.
func Open(dir string, opt Options) (*TestSuite, error) {
	rels, err := LoadRelations(filepath.Join(dir, RelationsFile))
	if err != nil {
		return nil, err
	}
	ts := newTestSuite(dir, rels, opt)
	if err := ts.Reload(); err != nil {
		return nil, err
	}
	return ts, nil
}

// New creates an in-memory profile. Tables are created empty on first
// access.
func New(rels *Relations, opt Options) *TestSuite {
	return newTestSuite("", rels, opt)
}

func newTestSuite(dir string, rels *Relations, opt Options) *TestSuite {
	logger := opt.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TestSuite{
		dir:    dir,
		rels:   rels,
		tables: make(map[string]*Table, rels.Len()),
		opt:    opt,
		logger: logger,
	}
}

// Dir returns the profile directory, or an empty string for an in-memory
// profile.
func (ts *TestSuite) Dir() string {
	return ts.dir
}

func (ts *TestSuite) Relations() *Relations {
	return ts.rels
}

// Table returns the named table, loading it if needed.
func (ts *TestSuite) Table(name string) (*Table, error) {
	rel := ts.rels.Relation(name)
	if rel == nil {
		return nil, tableErrf(name, nil, "no such table in relations")
	}
	if t := ts.tables[name]; t != nil {
		return t, nil
	}
	t, err := ts.loadTable(name, rel)
	if err != nil {
		return nil, err
	}
	ts.tables[name] = t
	return t, nil
}

func (ts *TestSuite) loadTable(name string, rel *Relation) (*Table, error) {
	if ts.dir == "" {
		t := must(NewTable(name, rel))
		t.logger = ts.logger
		return t, nil
	}
	return OpenTable(ts.dir, name, rel, TableOptions{
		Encoding: ts.opt.Encoding,
		Logger:   ts.logger,
		Catalog:  ts.opt.Catalog,
	})
}

// Reload discards in-memory changes. Tables of a directory profile are
// re-attached to their files; tables of an in-memory profile are dropped.
func (ts *TestSuite) Reload() error {
	clear(ts.tables)
	if ts.dir == "" {
		return nil
	}
	for _, name := range ts.rels.order {
		t, err := ts.loadTable(name, ts.rels.tables[name])
		if err != nil {
			return err
		}
		ts.tables[name] = t
	}
	ts.logger.Debug("profile loaded", zap.String("dir", ts.dir), zap.Int("tables", len(ts.tables)))
	return nil
}

// Commit commits every loaded table.
func (ts *TestSuite) Commit() error {
	for _, name := range ts.rels.order {
		if t := ts.tables[name]; t != nil {
			if err := t.Commit(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Write writes tables (and, for another directory or an explicit schema,
// the relations file) to a directory. Tables rewritten in the profile's
// own directory are re-attached afterwards.
func (ts *TestSuite) Write(opt WriteSuiteOptions) error {
	dir := opt.Dir
	if dir == "" {
		dir = ts.dir
	}
	if dir == "" {
		return errf(nil, "cannot write an in-memory profile without a directory")
	}
	own := ts.dir != "" && sameDir(dir, ts.dir)
	rels := opt.Relations
	if rels == nil {
		rels = ts.rels
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errf(err, "cannot create profile directory %s", dir)
	}
	if !own || opt.Relations != nil {
		err := os.WriteFile(filepath.Join(dir, RelationsFile), []byte(rels.String()), 0o644)
		if err != nil {
			return errf(err, "cannot write relations file")
		}
	}

	names := opt.Tables
	if len(names) == 0 {
		names = rels.Tables()
	}
	wopt := WriteOptions{
		Append:   opt.Append,
		Gzip:     opt.Gzip,
		Encoding: ts.opt.Encoding,
		Logger:   ts.logger,
	}
	for _, name := range names {
		if !rels.Has(name) {
			return tableErrf(name, nil, "no such table in relations")
		}
		if !ts.rels.Has(name) {
			if err := WriteTable(dir, name, nil, wopt); err != nil {
				return err
			}
			continue
		}
		t, err := ts.Table(name)
		if err != nil {
			return err
		}
		if err := t.Write(dir, wopt); err != nil {
			return err
		}
		if own && t.IsAttached() {
			delete(ts.tables, name)
		}
	}
	ts.logger.Debug("profile written", zap.String("dir", dir), zap.Strings("tables", names))
	return nil
}

func sameDir(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}

// Select selects data using a data specifier (see ParseDataSpecifier).
// The table of an unqualified column is resolved through PrimaryKeys and
// then the first table that has it; a compound table name is joined.
func (ts *TestSuite) Select(spec string, mode SelectMode, cast bool) ([]any, error) {
	name, cols := ParseDataSpecifier(spec)
	if name == "" {
		if len(cols) == 0 {
			return nil, errf(nil, "invalid data specifier %q", spec)
		}
		var err error
		name, err = ts.ownerOf(cols[0])
		if err != nil {
			return nil, err
		}
	}
	var t *Table
	var err error
	if strings.Contains(name, "+") {
		t, err = ts.Join(name)
	} else {
		t, err = ts.Table(name)
	}
	if err != nil {
		return nil, err
	}
	return t.Select(cols, mode, cast)
}

func (ts *TestSuite) ownerOf(col string) (string, error) {
	if name, ok := PrimaryKeys[col]; ok {
		if rel := ts.rels.Relation(name); rel != nil && rel.Has(col) {
			return name, nil
		}
	}
	if found := ts.rels.Find(col); len(found) > 0 {
		return found[0], nil
	}
	return "", errf(nil, "no table has field %q", col)
}

// Join joins the tables of a compound name such as "item+parse+result",
// adding each along the shortest key path from the tables joined so far.
// Intermediate tables on a path are joined in as well.
func (ts *TestSuite) Join(name string) (*Table, error) {
	names := splitTableNames(name)
	t, err := ts.Table(names[0])
	if err != nil {
		return nil, err
	}
	for _, next := range names[1:] {
		path, err := ts.rels.Path(strings.Join(t.rel.Sources(), "+"), next)
		if err != nil {
			return nil, err
		}
		ts.logger.Debug("join path", zap.String("from", t.name), zap.String("to", next), zap.String("path", formatPath(path)))
		for _, step := range path {
			right, err := ts.Table(step.Table)
			if err != nil {
				return nil, err
			}
			t, err = Join(t, right, JoinOptions{On: []string{step.Key}})
			if err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

// Exists reports whether the table file (plain or gzip) exists.
func (ts *TestSuite) Exists(name string) bool {
	if ts.dir == "" {
		return false
	}
	tf, err := resolveTableFile(filepath.Join(ts.dir, name))
	return err == nil && tf.exists
}

// Size returns the size in bytes of the table file, or 0 when it doesn't
// exist.
func (ts *TestSuite) Size(name string) (int64, error) {
	if ts.dir == "" {
		return 0, errf(nil, "in-memory profile has no files")
	}
	tf, err := resolveTableFile(filepath.Join(ts.dir, name))
	if err != nil {
		return 0, tableErrf(name, err, "cannot stat table file")
	}
	if !tf.exists {
		return 0, nil
	}
	st, err := os.Stat(tf.actual())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, tableErrf(name, err, "cannot stat table file")
	}
	return st.Size(), nil
}

// Stats reports row counts of every table. For a directory profile the
// files are read concurrently and in-memory changes are not counted; for
// an in-memory profile the table lengths are used.
func (ts *TestSuite) Stats(ctx context.Context) ([]TableStat, error) {
	stats := make([]TableStat, len(ts.rels.order))
	for i, name := range ts.rels.order {
		stats[i].Name = name
	}
	if ts.dir == "" {
		for i, name := range ts.rels.order {
			if t := ts.tables[name]; t != nil {
				stats[i].Rows = t.Len()
			}
		}
		return stats, nil
	}

	enc, err := lookupEncoding(ts.opt.Encoding)
	if err != nil {
		return nil, err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range stats {
		st := &stats[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tf, err := resolveTableFile(filepath.Join(ts.dir, st.Name))
			if err != nil {
				return tableErrf(st.Name, err, "cannot stat table file")
			}
			if !tf.exists {
				return nil
			}
			fi, err := os.Stat(tf.actual())
			if err != nil {
				return tableErrf(st.Name, err, "cannot stat table file")
			}
			st.Bytes, st.Gzip = fi.Size(), tf.gz
			st.Rows, err = countLines(tf, enc)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// MakeSkeleton creates a profile in dir with the given schema, the given
// item rows and every other table empty.
func MakeSkeleton(dir string, rels *Relations, items []map[string]any, opt WriteOptions) (*TestSuite, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errf(err, "cannot create profile directory %s", dir)
	}
	err := os.WriteFile(filepath.Join(dir, RelationsFile), []byte(rels.String()), 0o644)
	if err != nil {
		return nil, errf(err, "cannot write relations file")
	}
	opt.Append = false
	for _, name := range rels.order {
		var rows [][]string
		if name == "item" {
			for _, item := range items {
				row, err := MakeRow(item, rels.tables[name])
				if err != nil {
					return nil, err
				}
				rows = append(rows, row)
			}
		}
		if err := WriteTable(dir, name, rows, opt); err != nil {
			return nil, err
		}
	}
	return Open(dir, Options{Encoding: opt.Encoding, Logger: opt.Logger})
}
