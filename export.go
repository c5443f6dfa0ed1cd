package itsdb

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/bson"
)

type ExportFormat string

const (
	// ExportJSON writes one JSON object per line.
	ExportJSON ExportFormat = "json"
	// ExportMsgPack writes a stream of MessagePack maps.
	ExportMsgPack ExportFormat = "msgpack"
	// ExportBSON writes concatenated BSON documents.
	ExportBSON ExportFormat = "bson"
)

func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(s); f {
	case ExportJSON, ExportMsgPack, ExportBSON:
		return f, nil
	case "":
		return ExportJSON, nil
	default:
		return "", errf(nil, "invalid export format %q", s)
	}
}

// ExportTable writes every row of t to w as a column name to value map.
// With cast, values have their Go types; otherwise they are raw strings
// with defaults substituted.
func ExportTable(w io.Writer, t *Table, format ExportFormat, cast bool) error {
	bw := bufio.NewWriter(w)
	var encode func(rec *Record) error
	switch format {
	case ExportJSON:
		enc := json.NewEncoder(bw)
		enc.SetEscapeHTML(false)
		encode = func(rec *Record) error {
			m, err := rec.Map(cast)
			if err != nil {
				return err
			}
			return enc.Encode(m)
		}
	case ExportMsgPack:
		enc := msgpack.GetEncoder()
		defer msgpack.PutEncoder(enc)
		enc.Reset(bw)
		enc.SetSortMapKeys(true)
		encode = func(rec *Record) error {
			m, err := rec.Map(cast)
			if err != nil {
				return err
			}
			return enc.Encode(m)
		}
	case ExportBSON:
		encode = func(rec *Record) error {
			doc := make(bson.D, 0, rec.Len())
			for i, f := range rec.rel.fields {
				v, err := rec.value(i, cast)
				if err != nil {
					return err
				}
				doc = append(doc, bson.E{Key: f.Name, Value: v})
			}
			raw, err := bson.Marshal(doc)
			if err != nil {
				return err
			}
			_, err = bw.Write(raw)
			return err
		}
	default:
		return errf(nil, "invalid export format %q", format)
	}

	n := 0
	for rec, err := range t.All() {
		if err != nil {
			return err
		}
		if err := encode(rec); err != nil {
			return tableErrf(t.name, err, "cannot export row %d as %s", n, format)
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		return tableErrf(t.name, err, "cannot export")
	}
	return nil
}
