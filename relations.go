package itsdb

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

// Relation is the ordered column schema of one table.
type Relation struct {
	name    string
	fields  []Field
	index   map[string]int
	keys    []string
	joined  bool
	sources []string
}

func NewRelation(name string, fields ...Field) (*Relation, error) {
	rel := &Relation{
		name:   name,
		fields: append([]Field(nil), fields...),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range rel.fields {
		if _, dup := rel.index[f.Name]; dup {
			return nil, tableErrf(name, nil, "duplicate field %q", f.Name)
		}
		rel.index[f.Name] = i
		if f.Key {
			rel.keys = append(rel.keys, f.Name)
		}
	}
	return rel, nil
}

// MustRelation is NewRelation that panics on error.
func MustRelation(name string, fields ...Field) *Relation {
	return must(NewRelation(name, fields...))
}

func (rel *Relation) Name() string {
	return rel.name
}

func (rel *Relation) Len() int {
	return len(rel.fields)
}

func (rel *Relation) Field(i int) Field {
	return rel.fields[i]
}

// Fields returns a copy of the relation's fields.
func (rel *Relation) Fields() []Field {
	return append([]Field(nil), rel.fields...)
}

func (rel *Relation) Index(name string) (int, bool) {
	i, ok := rel.index[name]
	return i, ok
}

func (rel *Relation) Has(name string) bool {
	_, ok := rel.index[name]
	return ok
}

func (rel *Relation) Names() []string {
	names := make([]string, len(rel.fields))
	for i, f := range rel.fields {
		names[i] = f.Name
	}
	return names
}

// Keys returns the names of the key fields in declaration order.
func (rel *Relation) Keys() []string {
	return append([]string(nil), rel.keys...)
}

// Joined reports whether the relation is the synthetic schema of a join.
func (rel *Relation) Joined() bool {
	return rel.joined
}

// Sources returns the names of the tables a joined relation was built from.
func (rel *Relation) Sources() []string {
	if !rel.joined {
		return []string{rel.name}
	}
	return append([]string(nil), rel.sources...)
}

// Relations is the full schema of a profile.
type Relations struct {
	order    []string
	tables   map[string]*Relation
	defaults Defaults

	fieldTables map[string][]string
}

func NewRelations(rels ...*Relation) (*Relations, error) {
	r := &Relations{
		tables:   make(map[string]*Relation, len(rels)),
		defaults: StandardDefaults,
	}
	for _, rel := range rels {
		if _, dup := r.tables[rel.name]; dup {
			return nil, tableErrf(rel.name, nil, "table defined more than once")
		}
		r.order = append(r.order, rel.name)
		r.tables[rel.name] = rel
	}
	r.buildFieldIndex()
	return r, nil
}

func MustRelations(rels ...*Relation) *Relations {
	return must(NewRelations(rels...))
}

func (r *Relations) buildFieldIndex() {
	r.fieldTables = make(map[string][]string)
	for _, name := range r.order {
		for _, f := range r.tables[name].fields {
			r.fieldTables[f.Name] = append(r.fieldTables[f.Name], name)
		}
	}
}

var (
	tableHeaderRe = regexp.MustCompile(`^([^\s:#]+)\s*:\s*(?:#.*)?$`)
	fieldLineRe   = regexp.MustCompile(`^\s+(\S+)((?:\s+:\S+)*)\s*(?:#\s*(.*))?$`)
)

// ParseRelations parses schema text using StandardDefaults.
func ParseRelations(text string) (*Relations, error) {
	return ParseRelationsWith(text, StandardDefaults)
}

// ParseRelationsWith parses the relations file format:
//
//	item:
//	  i-id :integer :key     # item id
//	  i-input :string
//
// Table and field order is preserved.
func ParseRelationsWith(text string, defaults Defaults) (*Relations, error) {
	r := &Relations{
		tables:   make(map[string]*Relation),
		defaults: defaults,
	}

	var cur string
	var fields []Field
	flush := func() error {
		if cur == "" {
			return nil
		}
		rel, err := NewRelation(cur, fields...)
		if err != nil {
			return err
		}
		r.order = append(r.order, cur)
		r.tables[cur] = rel
		cur, fields = "", nil
		return nil
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := tableHeaderRe.FindStringSubmatch(line); m != nil {
			if err := flush(); err != nil {
				return nil, err
			}
			name := m[1]
			if _, dup := r.tables[name]; dup {
				return nil, lineErrf("relations", lineNo, line, nil, "table %q defined more than once", name)
			}
			cur = name
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		m := fieldLineRe.FindStringSubmatch(line)
		if m == nil || cur == "" {
			return nil, lineErrf("relations", lineNo, line, nil, "invalid line in relations file")
		}
		dt := String
		var key, partial bool
		for i, tok := range strings.Fields(m[2]) {
			switch {
			case tok == ":key":
				key = true
			case tok == ":partial":
				partial = true
			case i == 0:
				dt = Datatype(tok)
			default:
				return nil, lineErrf("relations", lineNo, line, nil, "unknown field flag %q", tok)
			}
		}
		f, err := NewField(m[1], dt, key, partial, strings.TrimSpace(m[3]))
		if err != nil {
			return nil, lineErrf("relations", lineNo, line, err, "invalid field")
		}
		fields = append(fields, f.withDefaults(defaults))
	}
	if err := sc.Err(); err != nil {
		return nil, errf(err, "reading relations")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	r.buildFieldIndex()
	return r, nil
}

// LoadRelations reads and parses a relations file.
func LoadRelations(path string) (*Relations, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errf(err, "cannot read relations file")
	}
	return ParseRelations(string(raw))
}

// Tables returns table names in declaration order.
func (r *Relations) Tables() []string {
	return append([]string(nil), r.order...)
}

func (r *Relations) Len() int {
	return len(r.order)
}

func (r *Relations) Has(name string) bool {
	_, ok := r.tables[name]
	return ok
}

// Relation returns the schema of a table, or nil when it isn't defined.
func (r *Relations) Relation(name string) *Relation {
	return r.tables[name]
}

// Find returns the tables that contain the given field, in declaration order.
func (r *Relations) Find(field string) []string {
	return append([]string(nil), r.fieldTables[field]...)
}

// Defaults returns the default-value configuration the schema was parsed with.
func (r *Relations) Defaults() Defaults {
	return r.defaults
}

// String formats the schema in the relations file format.
func (r *Relations) String() string {
	var buf strings.Builder
	for i, name := range r.order {
		if i > 0 {
			buf.WriteByte('\n')
		}
		rel := r.tables[name]
		buf.WriteString(name)
		buf.WriteString(":\n")

		nameW, typeW := 0, 0
		for _, f := range rel.fields {
			nameW = max(nameW, len(f.Name))
			typeW = max(typeW, len(fieldFlags(f)))
		}
		for _, f := range rel.fields {
			line := "  " + rpad(f.Name, nameW, ' ') + " " + fieldFlags(f)
			if f.Comment != "" {
				line = rpad(line, 2+nameW+1+typeW, ' ') + "  # " + f.Comment
			}
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

func fieldFlags(f Field) string {
	s := string(f.Datatype)
	if f.Key {
		s += " :key"
	}
	if f.Partial {
		s += " :partial"
	}
	return s
}
