package itsdb

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/andreyvit/itsdb/internal/mmap"
)

const gzipSuffix = ".gz"

// DefaultEncoding is the character encoding of table files unless
// configured otherwise.
const DefaultEncoding = "utf-8"

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, errf(err, "unknown encoding %q", name)
	}
	return enc, nil
}

// tableFile is the on-disk location of a table: path is the canonical
// (uncompressed) name; gz tells whether path+".gz" is the one to use.
type tableFile struct {
	path   string
	gz     bool
	exists bool
}

func (tf tableFile) actual() string {
	if tf.gz {
		return tf.path + gzipSuffix
	}
	return tf.path
}

// resolveTableFile picks between path and path.gz. The gzip file wins only
// when it exists and the plain one doesn't, or is strictly older.
func resolveTableFile(path string) (tableFile, error) {
	path = strings.TrimSuffix(path, gzipSuffix)
	plain, perr := os.Stat(path)
	if perr != nil && !errors.Is(perr, fs.ErrNotExist) {
		return tableFile{}, errf(perr, "cannot stat table file")
	}
	gz, gerr := os.Stat(path + gzipSuffix)
	if gerr != nil && !errors.Is(gerr, fs.ErrNotExist) {
		return tableFile{}, errf(gerr, "cannot stat table file")
	}
	switch {
	case gerr == nil && (perr != nil || gz.ModTime().After(plain.ModTime())):
		return tableFile{path: path, gz: true, exists: true}, nil
	case perr == nil:
		return tableFile{path: path, exists: true}, nil
	default:
		return tableFile{path: path}, nil
	}
}

// readLines calls fn for every line of the table file, in order, until fn
// returns false. A missing file has no lines.
func readLines(tf tableFile, enc encoding.Encoding, fn func(i int, line string) bool) error {
	if !tf.exists {
		return nil
	}
	if !tf.gz {
		m, err := mmap.Open(tf.path, mmap.SequentialAccess)
		if err != nil {
			return errf(err, "cannot read table file")
		}
		defer m.Close()
		data := m.Data
		if enc != nil {
			data, err = enc.NewDecoder().Bytes(data)
			if err != nil {
				return errf(err, "cannot decode table file %s", tf.path)
			}
		}
		mmap.Lines(data, func(i int, line []byte) bool {
			return fn(i, string(bytes.TrimSuffix(line, []byte{'\r'})))
		})
		return nil
	}

	f, err := os.Open(tf.actual())
	if err != nil {
		return errf(err, "cannot read table file")
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return errf(err, "cannot read gzip table file %s", tf.actual())
	}
	defer zr.Close()

	var r io.Reader = zr
	if enc != nil {
		r = transform.NewReader(zr, enc.NewDecoder())
	}
	br := bufio.NewReaderSize(r, 64*1024)
	for i := 0; ; i++ {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			if !fn(i, strings.TrimSuffix(line, "\r")) {
				return nil
			}
		}
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errf(err, "cannot read gzip table file %s", tf.actual())
		}
	}
}

func countLines(tf tableFile, enc encoding.Encoding) (int, error) {
	n := 0
	err := readLines(tf, enc, func(int, string) bool {
		n++
		return true
	})
	return n, err
}

// WriteOptions control how table files are written.
type WriteOptions struct {
	// Append adds rows to the end of the existing file instead of replacing it.
	Append bool
	// Gzip writes a compressed file. Ignored for empty tables and when
	// appending (the existing file's compression is kept).
	Gzip bool
	// Encoding of the file; empty means UTF-8.
	Encoding string
	Logger   *zap.Logger
}

func (o WriteOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// WriteTable writes encoded rows to dir/name (or dir/name.gz).
//
// A full write goes to a temporary file in dir that is then renamed over
// the target, and the sibling with the other compression state is removed.
// Appending writes directly to the existing file; appending to a gzip file
// adds a new gzip member, which compresses poorly and is logged as a warning.
func WriteTable(dir, name string, rows [][]string, opt WriteOptions) error {
	enc, err := lookupEncoding(opt.Encoding)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, name)

	if opt.Append {
		tf, err := resolveTableFile(path)
		if err != nil {
			return err
		}
		if tf.exists {
			return appendTableFile(tf, name, rows, enc, opt.logger())
		}
	}

	gz := opt.Gzip && len(rows) > 0
	target := tableFile{path: path, gz: gz}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp*")
	if err != nil {
		return tableErrf(name, err, "cannot create temporary file")
	}
	ok := false
	defer closeAndDeleteUnlessOK(tmp, &ok)

	if err := encodeRows(tmp, rows, gz, enc, false); err != nil {
		return tableErrf(name, err, "cannot write table")
	}
	if err := mmap.Fdatasync(tmp); err != nil {
		return tableErrf(name, err, "cannot sync table file")
	}
	if err := tmp.Close(); err != nil {
		return tableErrf(name, err, "cannot close table file")
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return tableErrf(name, err, "cannot chmod table file")
	}
	if err := os.Rename(tmp.Name(), target.actual()); err != nil {
		return tableErrf(name, err, "cannot move table file into place")
	}
	ok = true

	stale := tableFile{path: path, gz: !gz}
	if err := os.Remove(stale.actual()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return tableErrf(name, err, "cannot remove stale table file")
	}
	return nil
}

func appendTableFile(tf tableFile, name string, rows [][]string, enc encoding.Encoding, logger *zap.Logger) error {
	if len(rows) == 0 {
		return nil
	}
	if tf.gz {
		logger.Warn("appending to a gzipped table file is inefficient",
			zap.String("table", name), zap.String("file", tf.actual()), zap.Int("rows", len(rows)))
	}
	terminated, err := endsWithNewline(tf, enc)
	if err != nil {
		return tableErrf(name, err, "cannot append to table")
	}
	f, err := os.OpenFile(tf.actual(), os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return tableErrf(name, err, "cannot open table file for appending")
	}
	defer f.Close()
	if err := encodeRows(f, rows, tf.gz, enc, !terminated); err != nil {
		return tableErrf(name, err, "cannot append to table")
	}
	if err := f.Close(); err != nil {
		return tableErrf(name, err, "cannot close table file")
	}
	return nil
}

// endsWithNewline reports whether the decoded content of an existing table
// file is empty or ends in "\n". The reader accepts a final line without
// one, so appending must terminate it first.
func endsWithNewline(tf tableFile, enc encoding.Encoding) (bool, error) {
	if !tf.gz && enc == nil {
		f, err := os.Open(tf.path)
		if err != nil {
			return false, err
		}
		defer f.Close()
		st, err := f.Stat()
		if err != nil {
			return false, err
		}
		if st.Size() == 0 {
			return true, nil
		}
		var last [1]byte
		if _, err := f.ReadAt(last[:], st.Size()-1); err != nil {
			return false, err
		}
		return last[0] == '\n', nil
	}

	f, err := os.Open(tf.actual())
	if err != nil {
		return false, err
	}
	defer f.Close()
	var r io.Reader = f
	if tf.gz {
		zr, err := gzip.NewReader(f)
		if err == io.EOF {
			return true, nil
		} else if err != nil {
			return false, err
		}
		defer zr.Close()
		r = zr
	}
	if enc != nil {
		r = transform.NewReader(r, enc.NewDecoder())
	}
	var tw tailWriter
	if _, err := io.Copy(&tw, r); err != nil {
		return false, err
	}
	return tw.n == 0 || tw.last == '\n', nil
}

// tailWriter discards its input, remembering the last byte.
type tailWriter struct {
	n    int64
	last byte
}

func (w *tailWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		w.n += int64(len(p))
		w.last = p[len(p)-1]
	}
	return len(p), nil
}

// encodeRows writes one line per row. With lead, a "\n" is written first to
// terminate an unterminated last line of the file being appended to.
func encodeRows(w io.Writer, rows [][]string, gz bool, enc encoding.Encoding, lead bool) error {
	var closers []io.Closer
	if gz {
		zw := gzip.NewWriter(w)
		closers = append(closers, zw)
		w = zw
	}
	if enc != nil {
		tw := transform.NewWriter(w, enc.NewEncoder())
		closers = append(closers, tw)
		w = tw
	}
	bw := bufio.NewWriterSize(w, 64*1024)
	if lead {
		bw.WriteByte('\n')
	}
	for _, row := range rows {
		bw.WriteString(JoinRow(row))
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			return err
		}
	}
	return nil
}

func closeAndDeleteUnlessOK(f *os.File, ok *bool) {
	if *ok {
		return
	}
	f.Close()
	os.Remove(f.Name())
}
