package itsdb

import (
	"strings"
)

const fieldSep = '@'

var (
	escaper   = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "@", `\s`)
	needsEsc  = "\\\n@"
	stringFld = Field{Name: "", Datatype: String}
)

// Escape makes s safe to store in a single cell of a row.
func Escape(s string) string {
	if !strings.ContainsAny(s, needsEsc) {
		return s
	}
	return escaper.Replace(s)
}

// Unescape reverses Escape. Unknown escape sequences are kept verbatim.
func Unescape(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}
	var buf strings.Builder
	buf.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			buf.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case '\\':
			buf.WriteByte('\\')
		case 'n':
			buf.WriteByte('\n')
		case 's':
			buf.WriteByte('@')
		default:
			buf.WriteByte('\\')
			buf.WriteByte(s[i])
		}
	}
	return buf.String()
}

// SplitRow splits an encoded line into unescaped raw cells. One trailing
// "\n" is dropped; carriage returns are data here; the file readers are the
// ones that accept CRLF line ends.
func SplitRow(line string) []string {
	line = strings.TrimSuffix(line, "\n")
	cells := strings.Split(line, string(fieldSep))
	for i, c := range cells {
		cells[i] = Unescape(c)
	}
	return cells
}

// JoinRow escapes raw cells and joins them into one encoded line (without
// the trailing newline).
func JoinRow(cells []string) string {
	var buf strings.Builder
	for i, c := range cells {
		if i > 0 {
			buf.WriteByte(fieldSep)
		}
		buf.WriteString(Escape(c))
	}
	return buf.String()
}

// DecodeRow decodes one line. When fields is non-nil, the number of cells
// must match and empty cells are replaced by field defaults; with cast,
// values are also converted to their datatypes (see Field.Cast). Without
// fields, every cell is returned as a string.
func DecodeRow(line string, fields []Field, cast bool) ([]any, error) {
	cells := SplitRow(line)
	if fields != nil && len(cells) != len(fields) {
		return nil, lineErrf("", 0, line, nil, "field count mismatch: got %d, expected %d", len(cells), len(fields))
	}
	out := make([]any, len(cells))
	for i, c := range cells {
		if fields == nil {
			out[i] = c
			continue
		}
		if cast {
			v, err := fields[i].Cast(c)
			if err != nil {
				return nil, err
			}
			out[i] = v
		} else if c == "" {
			out[i] = fields[i].Default()
		} else {
			out[i] = c
		}
	}
	return out, nil
}

// EncodeRow formats and escapes values into one line. fields may be nil,
// in which case values are formatted by their Go type only.
func EncodeRow(values []any, fields []Field) (string, error) {
	if fields != nil && len(values) != len(fields) {
		return "", errf(nil, "field count mismatch: got %d values, expected %d", len(values), len(fields))
	}
	cells, err := formatCells(values, fields)
	if err != nil {
		return "", err
	}
	return JoinRow(cells), nil
}

func formatCells(values []any, fields []Field) ([]string, error) {
	cells := make([]string, len(values))
	for i, v := range values {
		f := stringFld
		if fields != nil {
			f = fields[i]
		}
		s, err := f.Format(v)
		if err != nil {
			return nil, err
		}
		cells[i] = s
	}
	return cells, nil
}

// MakeRow builds raw cells for rel from a column map. Missing non-key
// columns become empty cells; a missing key column is an error.
func MakeRow(values map[string]any, rel *Relation) ([]string, error) {
	for name := range values {
		if !rel.Has(name) {
			return nil, tableErrf(rel.name, nil, "unknown field %q", name)
		}
	}
	cells := make([]string, len(rel.fields))
	for i, f := range rel.fields {
		v, ok := values[f.Name]
		if !ok || v == nil {
			if f.Key {
				return nil, tableErrf(rel.name, nil, "missing value for key field %q", f.Name)
			}
			continue
		}
		s, err := f.Format(v)
		if err != nil {
			return nil, err
		}
		cells[i] = s
	}
	return cells, nil
}
