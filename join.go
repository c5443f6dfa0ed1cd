package itsdb

import (
	"strings"
)

type JoinHow string

const (
	InnerJoin JoinHow = "inner"
	LeftJoin  JoinHow = "left"
)

func ParseJoinHow(s string) (JoinHow, error) {
	switch h := JoinHow(s); h {
	case InnerJoin, LeftJoin:
		return h, nil
	case "":
		return InnerJoin, nil
	default:
		return "", errf(nil, "invalid join method %q", s)
	}
}

type JoinOptions struct {
	// On lists the columns to join on. When empty, the key fields of either
	// table that the other table also has are used.
	On []string
	// How defaults to InnerJoin.
	How JoinHow
	// Name of the result table; defaults to "left+right".
	Name string
}

// Join performs a hash join of two tables and returns a detached table.
//
// Columns of the result are prefixed with their table name ("parse:readings"),
// except key fields, which keep their names and appear once. A left join
// keeps left rows without a match and fills the right columns with their
// field defaults.
func Join(left, right *Table, opt JoinOptions) (*Table, error) {
	how, err := ParseJoinHow(string(opt.How))
	if err != nil {
		return nil, err
	}
	lrel, rrel := left.rel, right.rel
	for _, s := range lrel.Sources() {
		if contains(rrel.Sources(), s) {
			return nil, errf(nil, "cannot join %s and %s: table %s appears on both sides", left.name, right.name, s)
		}
	}

	on := opt.On
	if len(on) == 0 {
		on = sharedKeys(lrel, rrel)
		if len(on) == 0 {
			return nil, errf(nil, "cannot join %s and %s: no shared key", left.name, right.name)
		}
	}
	lon, ron := make([]int, len(on)), make([]int, len(on))
	for j, k := range on {
		li, lok := lrel.index[k]
		ri, rok := rrel.index[k]
		if !lok || !rok {
			return nil, errf(nil, "cannot join %s and %s on %q: not a column of both tables", left.name, right.name, k)
		}
		lon[j], ron[j] = li, ri
	}

	name := opt.Name
	if name == "" {
		name = left.name + "+" + right.name
	}
	rel, rightCols, err := joinRelation(name, lrel, rrel, on)
	if err != nil {
		return nil, err
	}

	index := make(map[string][][]string)
	err = right.Rows(func(_ int, cells []string) error {
		k := joinKey(cells, ron, rrel)
		index[k] = append(index[k], append([]string(nil), cells...))
		return nil
	})
	if err != nil {
		return nil, err
	}

	var defaults []string
	if how == LeftJoin {
		defaults = make([]string, len(rrel.fields))
		for i, f := range rrel.fields {
			defaults[i] = f.def
		}
	}

	out := must(NewTable(name, rel))
	out.logger = left.logger
	err = left.Rows(func(_ int, cells []string) error {
		matches := index[joinKey(cells, lon, lrel)]
		if len(matches) == 0 && how == LeftJoin {
			matches = [][]string{defaults}
		}
		for _, rcells := range matches {
			row := make([]string, 0, rel.Len())
			row = append(row, cells...)
			for _, i := range rightCols {
				row = append(row, rcells[i])
			}
			out.store.append(row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func sharedKeys(a, b *Relation) []string {
	var on []string
	for _, k := range a.keys {
		if b.Has(k) && !contains(on, k) {
			on = append(on, k)
		}
	}
	for _, k := range b.keys {
		if a.Has(k) && !contains(on, k) {
			on = append(on, k)
		}
	}
	return on
}

func joinKey(cells []string, idx []int, rel *Relation) string {
	var buf strings.Builder
	for j, i := range idx {
		if j > 0 {
			buf.WriteByte(0)
		}
		c := cells[i]
		if c == "" {
			c = rel.fields[i].def
		}
		buf.WriteString(c)
	}
	return buf.String()
}

// joinRelation builds the schema of a join. The left relation's columns
// come first, in order; rightCols lists the right relation's columns that
// follow them.
func joinRelation(name string, left, right *Relation, on []string) (*Relation, []int, error) {
	fields := make([]Field, 0, len(left.fields)+len(right.fields))
	for _, f := range left.fields {
		if !left.joined && !f.Key && !contains(on, f.Name) {
			f.Name = left.name + ":" + f.Name
		}
		fields = append(fields, f)
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		seen[f.Name] = true
	}
	var rightCols []int
	for i, f := range right.fields {
		if contains(on, f.Name) {
			continue
		}
		if !right.joined && (!f.Key || seen[f.Name]) {
			f.Name = right.name + ":" + f.Name
		}
		if seen[f.Name] {
			return nil, nil, errf(nil, "cannot join %s and %s: duplicate column %q", left.name, right.name, f.Name)
		}
		seen[f.Name] = true
		fields = append(fields, f)
		rightCols = append(rightCols, i)
	}
	rel, err := NewRelation(name, fields...)
	if err != nil {
		return nil, nil, err
	}
	rel.joined = true
	rel.sources = append(left.Sources(), right.Sources()...)
	return rel, rightCols, nil
}
