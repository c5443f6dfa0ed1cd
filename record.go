package itsdb

import (
	"weak"
)

// Record is one row: raw (unescaped) cell strings bound to a Relation.
// Values are cast lazily by Get.
//
// Records produced by a Table keep a weak reference to it; Set writes
// through to the table's row while the table is alive and is kept local
// once the table has been collected.
type Record struct {
	rel   *Relation
	cells []string

	owner weak.Pointer[Table]
	row   int
}

// NewRecord formats values into a new detached record.
func NewRecord(rel *Relation, values ...any) (*Record, error) {
	if len(values) != rel.Len() {
		return nil, tableErrf(rel.name, nil, "field count mismatch: got %d values, expected %d", len(values), rel.Len())
	}
	cells, err := formatCells(values, rel.fields)
	if err != nil {
		return nil, err
	}
	return &Record{rel: rel, cells: cells}, nil
}

// RecordFromMap builds a record from a column map (see MakeRow).
func RecordFromMap(rel *Relation, values map[string]any) (*Record, error) {
	cells, err := MakeRow(values, rel)
	if err != nil {
		return nil, err
	}
	return &Record{rel: rel, cells: cells}, nil
}

// RecordFromCells wraps raw cells without copying.
func RecordFromCells(rel *Relation, cells []string) (*Record, error) {
	if len(cells) != rel.Len() {
		return nil, lineErrf(rel.name, 0, JoinRow(cells), nil, "field count mismatch: got %d, expected %d", len(cells), rel.Len())
	}
	return &Record{rel: rel, cells: cells}, nil
}

func (rec *Record) Relation() *Relation {
	return rec.rel
}

func (rec *Record) Len() int {
	return len(rec.cells)
}

// Raw returns the raw string of cell i, without default substitution.
func (rec *Record) Raw(i int) string {
	return rec.cells[i]
}

// Cells returns a copy of the raw cells.
func (rec *Record) Cells() []string {
	return append([]string(nil), rec.cells...)
}

// Get returns cell i cast to its field's datatype.
func (rec *Record) Get(i int) (any, error) {
	return rec.rel.fields[i].Cast(rec.cells[i])
}

func (rec *Record) GetByName(name string) (any, error) {
	i, ok := rec.rel.index[name]
	if !ok {
		return nil, tableErrf(rec.rel.name, nil, "no field %q", name)
	}
	return rec.Get(i)
}

// Value returns the cast value of the named field, or def when the field
// doesn't exist or its cell is empty with no default.
func (rec *Record) Value(name string, def any) any {
	i, ok := rec.rel.index[name]
	if !ok {
		return def
	}
	v, err := rec.Get(i)
	if err != nil || v == nil {
		return def
	}
	return v
}

// Set formats v into cell i and writes the row back into the owning table.
func (rec *Record) Set(i int, v any) error {
	s, err := rec.rel.fields[i].Format(v)
	if err != nil {
		return err
	}
	rec.cells[i] = s
	if tbl := rec.owner.Value(); tbl != nil {
		return tbl.writeBack(rec.row, rec.rel, rec.cells)
	}
	return nil
}

func (rec *Record) SetByName(name string, v any) error {
	i, ok := rec.rel.index[name]
	if !ok {
		return tableErrf(rec.rel.name, nil, "no field %q", name)
	}
	return rec.Set(i, v)
}

// Attached reports whether the record still writes through to a live table.
func (rec *Record) Attached() bool {
	return rec.owner.Value() != nil
}

// Keys returns the raw values of the relation's key fields.
func (rec *Record) Keys() []string {
	out := make([]string, 0, len(rec.rel.keys))
	for _, k := range rec.rel.keys {
		out = append(out, rec.cells[rec.rel.index[k]])
	}
	return out
}

// Map returns the record as a field-name map. With cast, values are
// converted; otherwise raw strings with defaults substituted.
func (rec *Record) Map(cast bool) (map[string]any, error) {
	m := make(map[string]any, len(rec.cells))
	for i, f := range rec.rel.fields {
		if cast {
			v, err := rec.Get(i)
			if err != nil {
				return nil, err
			}
			m[f.Name] = v
		} else {
			m[f.Name] = rec.rawOrDefault(i)
		}
	}
	return m, nil
}

func (rec *Record) rawOrDefault(i int) string {
	if s := rec.cells[i]; s != "" {
		return s
	}
	return rec.rel.fields[i].def
}

// String returns the encoded line of the record.
func (rec *Record) String() string {
	return JoinRow(rec.cells)
}

// Validate checks enumerated fields against their allowed codes. Empty
// cells and field defaults are always accepted.
func (rec *Record) Validate(codes map[string][]string) error {
	for name, allowed := range codes {
		i, ok := rec.rel.index[name]
		if !ok {
			continue
		}
		s := rec.cells[i]
		if s == "" || s == rec.rel.fields[i].def || contains(allowed, s) {
			continue
		}
		return tableErrf(rec.rel.name, nil, "invalid code %q for field %s", s, name)
	}
	return nil
}
