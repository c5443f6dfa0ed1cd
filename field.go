package itsdb

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type Datatype string

const (
	Integer Datatype = ":integer"
	Float   Datatype = ":float"
	Date    Datatype = ":date"
	String  Datatype = ":string"
)

// Known reports whether dt is one of the datatypes with special casting
// rules. Unknown datatypes are kept verbatim and behave like String.
func (dt Datatype) Known() bool {
	switch dt {
	case Integer, Float, Date, String:
		return true
	default:
		return false
	}
}

// Field describes one column of a Relation.
type Field struct {
	Name     string
	Datatype Datatype
	Key      bool
	Partial  bool
	Comment  string

	def string
}

func NewField(name string, dt Datatype, key, partial bool, comment string) (Field, error) {
	if name == "" {
		return Field{}, errf(nil, "field name cannot be empty")
	}
	if partial && !key {
		return Field{}, errf(nil, "field %q is :partial but not :key", name)
	}
	if dt == "" {
		dt = String
	}
	f := Field{
		Name:     name,
		Datatype: dt,
		Key:      key,
		Partial:  partial,
		Comment:  comment,
	}
	f.def = StandardDefaults.For(f)
	return f, nil
}

// MustField is NewField that panics; intended for package-level schemas and tests.
func MustField(name string, dt Datatype, flags ...string) Field {
	var key, partial bool
	for _, fl := range flags {
		switch fl {
		case ":key":
			key = true
		case ":partial":
			partial = true
		default:
			panic(fmt.Errorf("invalid field flag %q", fl))
		}
	}
	return must(NewField(name, dt, key, partial, ""))
}

// Default returns the raw string that an empty cell of this field stands for.
func (f Field) Default() string {
	return f.def
}

func (f Field) withDefaults(d Defaults) Field {
	f.def = d.For(f)
	return f
}

func (f Field) String() string {
	var buf strings.Builder
	buf.WriteString(f.Name)
	buf.WriteByte(' ')
	buf.WriteString(string(f.Datatype))
	if f.Key {
		buf.WriteString(" :key")
	}
	if f.Partial {
		buf.WriteString(" :partial")
	}
	return buf.String()
}

// Cast converts a raw (unescaped) cell to the field's Go type: int64,
// float64, time.Time or string. Empty cells take the field's default first;
// a still-empty non-string cell casts to nil.
func (f Field) Cast(raw string) (any, error) {
	if raw == "" {
		raw = f.def
	}
	switch f.Datatype {
	case Integer:
		if raw == "" {
			return nil, nil
		}
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, errf(err, "field %s: invalid integer %q", f.Name, raw)
		}
		return v, nil
	case Float:
		if raw == "" {
			return nil, nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, errf(err, "field %s: invalid float %q", f.Name, raw)
		}
		return v, nil
	case Date:
		if raw == "" {
			return nil, nil
		}
		return parseDate(f.Name, raw)
	default:
		return raw, nil
	}
}

// Format converts a value to its canonical raw string form.
func (f Field) Format(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return formatFloat(float64(v)), nil
	case float64:
		return formatFloat(v), nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case time.Time:
		return v.Format(canonicalDateLayout), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", errf(nil, "field %s: cannot encode value of type %T", f.Name, v)
	}
}

func formatFloat(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

const canonicalDateLayout = "2006-01-02 15:04:05"

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2-Jan-2006 15:04:05",
	"2-Jan-2006 15:04",
	"2-Jan-2006",
	"2-1-2006 15:04:05",
	"2-1-2006",
}

func parseDate(name, raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, errf(nil, "field %s: invalid date %q", name, raw)
}

// Defaults decides the value an empty cell stands for. It is configuration,
// never mutated after construction; pass a custom value to
// ParseRelationsWith to change it.
type Defaults struct {
	byDatatype map[Datatype]string
	byField    map[string]string
}

func NewDefaults(byDatatype map[Datatype]string, byField map[string]string) Defaults {
	d := Defaults{
		byDatatype: make(map[Datatype]string, len(byDatatype)),
		byField:    make(map[string]string, len(byField)),
	}
	for k, v := range byDatatype {
		d.byDatatype[k] = v
	}
	for k, v := range byField {
		d.byField[k] = v
	}
	return d
}

// For returns the default raw value for f. Field-specific entries win over
// datatype ones.
func (d Defaults) For(f Field) string {
	if v, ok := d.byField[f.Name]; ok {
		return v
	}
	return d.byDatatype[f.Datatype]
}

var StandardDefaults = NewDefaults(
	map[Datatype]string{Integer: "-1"},
	map[string]string{
		"i-wf":         "-1",
		"i-difficulty": "-1",
		"polarity":     "-1",
	},
)

// CoreFiles lists the tables every [incr tsdb()] profile is expected to have.
var CoreFiles = []string{
	"item",
	"analysis",
	"phenomenon",
	"parameter",
	"set",
	"item-phenomenon",
	"item-set",
	"run",
	"parse",
	"result",
	"rule",
	"output",
	"edge",
	"tree",
	"decision",
	"preference",
	"update",
	"fold",
	"score",
}

// PrimaryKeys maps a key field to the table that defines it. Used to pick
// the owning table of a column that several tables share.
var PrimaryKeys = map[string]string{
	"i-id":     "item",
	"p-id":     "phenomenon",
	"ip-id":    "item-phenomenon",
	"s-id":     "set",
	"run-id":   "run",
	"parse-id": "parse",
	"e-id":     "edge",
	"f-id":     "fold",
}

// CodedAttributes lists the allowed raw values of enumerated fields.
var CodedAttributes = map[string][]string{
	"i-wf":     {"0", "1", "2"},
	"polarity": {"-1", "0", "1", "2"},
}
