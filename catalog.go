package itsdb

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/andreyvit/itsdb/internal/mmap"
)

var offsetsBucket = []byte("offsets")

const fingerprintHeadSize = 4096

// Catalog is a persistent cache of line offsets of plain-text table files,
// keyed by absolute path. It turns random access into attached tables from
// a scan of the file into a single positioned read.
//
// Entries are validated against a fingerprint of the file (size, mtime and
// the first 4 KiB), so a stale entry is rebuilt rather than trusted.
type Catalog struct {
	bdb    *bbolt.DB
	logger *zap.Logger
}

type CatalogOptions struct {
	Logger *zap.Logger
	// Timeout for acquiring the database file lock; 0 means 10 seconds.
	Timeout time.Duration
}

func OpenCatalog(path string, opt CatalogOptions) (*Catalog, error) {
	if opt.Timeout == 0 {
		opt.Timeout = 10 * time.Second
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = opt.Timeout
	bopt.FreelistType = bbolt.FreelistMapType

	bdb, err := bbolt.Open(path, 0o666, &bopt)
	if err != nil {
		return nil, errf(err, "cannot open catalog %s", path)
	}
	err = bdb.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(offsetsBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, errf(err, "cannot initialize catalog %s", path)
	}
	return &Catalog{bdb: bdb, logger: opt.Logger}, nil
}

func (c *Catalog) Close() error {
	return c.bdb.Close()
}

// Offsets returns the start offset of every line of the file at path plus
// a final entry equal to the file size, building and storing them when the
// cached entry is missing or stale.
func (c *Catalog) Offsets(path string) ([]int64, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errf(err, "cannot resolve %s", path)
	}
	fp, err := fingerprint(abs)
	if err != nil {
		return nil, errf(err, "cannot fingerprint %s", abs)
	}

	var off []int64
	err = c.bdb.View(func(btx *bbolt.Tx) error {
		raw := btx.Bucket(offsetsBucket).Get([]byte(abs))
		if raw == nil {
			return nil
		}
		off, err = decodeOffsets(raw, fp)
		return err
	})
	if err != nil {
		return nil, errf(err, "cannot read catalog entry for %s", abs)
	}
	if off != nil {
		return off, nil
	}

	m, err := mmap.Open(abs, mmap.SequentialAccess)
	if err != nil {
		return nil, errf(err, "cannot index %s", abs)
	}
	off = mmap.Offsets(m.Data)
	m.Close()

	err = c.bdb.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(offsetsBucket).Put([]byte(abs), encodeOffsets(fp, off))
	})
	if err != nil {
		return nil, errf(err, "cannot store catalog entry for %s", abs)
	}
	c.logger.Debug("catalog: indexed file", zap.String("file", abs), zap.Int("lines", len(off)-1))
	return off, nil
}

// Invalidate drops the cached entry for path, if any.
func (c *Catalog) Invalidate(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errf(err, "cannot resolve %s", path)
	}
	err = c.bdb.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(offsetsBucket).Delete([]byte(abs))
	})
	if err != nil {
		return errf(err, "cannot invalidate catalog entry for %s", abs)
	}
	return nil
}

// Len returns the number of cached files.
func (c *Catalog) Len() int {
	var n int
	c.bdb.View(func(btx *bbolt.Tx) error {
		n = btx.Bucket(offsetsBucket).Stats().KeyN
		return nil
	})
	return n
}

// readLineAt reads line i of a plain-text file using cached offsets.
func (c *Catalog) readLineAt(path string, i int) (string, bool, error) {
	off, err := c.Offsets(path)
	if err != nil {
		return "", false, err
	}
	if i < 0 || i+1 >= len(off) {
		return "", false, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", false, errf(err, "cannot read table file")
	}
	defer f.Close()
	buf := make([]byte, off[i+1]-off[i])
	if _, err := f.ReadAt(buf, off[i]); err != nil && err != io.EOF {
		return "", false, errf(err, "cannot read table file")
	}
	if n := len(buf); n > 0 && buf[n-1] == '\n' {
		buf = buf[:n-1]
	}
	if n := len(buf); n > 0 && buf[n-1] == '\r' {
		buf = buf[:n-1]
	}
	return string(buf), true, nil
}

func fingerprint(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}

	var h xxhash.Digest
	h.Reset()
	var meta [16]byte
	binary.LittleEndian.PutUint64(meta[0:], uint64(st.Size()))
	binary.LittleEndian.PutUint64(meta[8:], uint64(st.ModTime().UnixNano()))
	h.Write(meta[:])

	head := make([]byte, fingerprintHeadSize)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, err
	}
	h.Write(head[:n])
	return h.Sum64(), nil
}

// Entry format: fingerprint:64 count:uvarint delta:uvarint*count
func encodeOffsets(fp uint64, off []int64) []byte {
	buf := make([]byte, 8, 8+binary.MaxVarintLen64*(len(off)+1))
	binary.LittleEndian.PutUint64(buf, fp)
	buf = binary.AppendUvarint(buf, uint64(len(off)))
	prev := int64(0)
	for _, o := range off {
		buf = binary.AppendUvarint(buf, uint64(o-prev))
		prev = o
	}
	return buf
}

// decodeOffsets returns nil, nil for an entry with a different fingerprint.
func decodeOffsets(raw []byte, fp uint64) ([]int64, error) {
	d := makeByteDecoder(raw)
	got, err := d.Fixed64()
	if err != nil {
		return nil, errf(err, "corrupted catalog entry")
	}
	if got != fp {
		return nil, nil
	}
	count, err := d.Uvarint()
	if err != nil {
		return nil, errf(err, "corrupted catalog entry")
	}
	if count > uint64(d.Remaining()) {
		return nil, errf(nil, "corrupted catalog entry: %d offsets in %d bytes", count, d.Remaining())
	}
	off := make([]int64, 0, count)
	prev := int64(0)
	for range count {
		delta, err := d.Uvarint()
		if err != nil {
			return nil, errf(err, "corrupted catalog entry")
		}
		prev += int64(delta)
		off = append(off, prev)
	}
	return off, nil
}
