package itsdb

import (
	"strings"
)

// SelectMode decides the shape of each selected row.
type SelectMode string

const (
	// SelectList yields []any with one value per selected column.
	SelectList SelectMode = "list"
	// SelectRow yields the encoded line of the selected columns.
	SelectRow SelectMode = "row"
	// SelectDict yields map[string]any keyed by column name.
	SelectDict SelectMode = "dict"
	// SelectRecord yields a *Record projected onto the selected columns.
	SelectRecord SelectMode = "record"
)

func ParseSelectMode(s string) (SelectMode, error) {
	switch m := SelectMode(s); m {
	case SelectList, SelectRow, SelectDict, SelectRecord:
		return m, nil
	case "":
		return SelectList, nil
	default:
		return "", errf(nil, "invalid select mode %q", s)
	}
}

// SelectRows projects records onto cols (all columns when cols is empty).
// With cast, values are converted to their datatypes; otherwise they are
// raw strings with defaults substituted. SelectRow always yields raw cells.
func SelectRows(cols []string, records []*Record, mode SelectMode, cast bool) ([]any, error) {
	if _, err := ParseSelectMode(string(mode)); err != nil {
		return nil, err
	}
	out := make([]any, 0, len(records))
	if len(records) == 0 {
		return out, nil
	}
	rel := records[0].rel
	if len(cols) == 0 {
		cols = rel.Names()
	}
	idx := make([]int, len(cols))
	for j, c := range cols {
		i, ok := rel.index[c]
		if !ok {
			return nil, tableErrf(rel.name, nil, "no field %q", c)
		}
		idx[j] = i
	}

	var proj *Relation
	if mode == SelectRecord {
		fields := make([]Field, len(idx))
		for j, i := range idx {
			fields[j] = rel.fields[i]
		}
		var err error
		proj, err = NewRelation(rel.name, fields...)
		if err != nil {
			return nil, err
		}
	}

	for _, rec := range records {
		if rec.rel != rel {
			return nil, tableErrf(rel.name, nil, "cannot select from records of different relations")
		}
		switch mode {
		case SelectRow:
			cells := make([]string, len(idx))
			for j, i := range idx {
				cells[j] = rec.cells[i]
			}
			out = append(out, JoinRow(cells))
		case SelectRecord:
			cells := make([]string, len(idx))
			for j, i := range idx {
				cells[j] = rec.cells[i]
			}
			out = append(out, &Record{rel: proj, cells: cells})
		case SelectDict:
			m := make(map[string]any, len(idx))
			for j, i := range idx {
				v, err := rec.value(i, cast)
				if err != nil {
					return nil, err
				}
				m[cols[j]] = v
			}
			out = append(out, m)
		default:
			vals := make([]any, len(idx))
			for j, i := range idx {
				v, err := rec.value(i, cast)
				if err != nil {
					return nil, err
				}
				vals[j] = v
			}
			out = append(out, vals)
		}
	}
	return out, nil
}

func (rec *Record) value(i int, cast bool) (any, error) {
	if cast {
		return rec.Get(i)
	}
	return rec.rawOrDefault(i), nil
}

// ParseDataSpecifier splits a data specifier of the form "table:col1@col2".
// "table" alone selects every column (cols is nil) and ":col" leaves the
// table to be resolved from the column name.
func ParseDataSpecifier(s string) (table string, cols []string) {
	table, rest, ok := splitByte(strings.TrimSpace(s), ':')
	if !ok {
		return table, nil
	}
	for _, c := range strings.Split(rest, string(fieldSep)) {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return table, cols
}

// RowMatch groups the records of two sets that share a key value.
type RowMatch struct {
	Key   string
	Left  []*Record
	Right []*Record
}

// MatchRows groups left and right records by the raw value of key. Groups
// are returned in order of first appearance, left records first.
func MatchRows(left, right []*Record, key string) ([]RowMatch, error) {
	var out []RowMatch
	pos := make(map[string]int)
	group := func(rec *Record) (*RowMatch, error) {
		i, ok := rec.rel.index[key]
		if !ok {
			return nil, tableErrf(rec.rel.name, nil, "no field %q", key)
		}
		k := rec.rawOrDefault(i)
		p, ok := pos[k]
		if !ok {
			p = len(out)
			pos[k] = p
			out = append(out, RowMatch{Key: k})
		}
		return &out[p], nil
	}
	for _, rec := range left {
		m, err := group(rec)
		if err != nil {
			return nil, err
		}
		m.Left = append(m.Left, rec)
	}
	for _, rec := range right {
		m, err := group(rec)
		if err != nil {
			return nil, err
		}
		m.Right = append(m.Right, rec)
	}
	return out, nil
}
