package itsdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeUnescape(t *testing.T) {
	tests := []struct {
		raw, esc string
	}{
		{"", ""},
		{"plain", "plain"},
		{"a@b", `a\sb`},
		{"line1\nline2", `line1\nline2`},
		{`back\slash`, `back\\slash`},
		{`\s`, `\\s`},
		{"@\n\\", `\s\n\\`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.esc, Escape(tt.raw), "Escape(%q)", tt.raw)
		assert.Equal(t, tt.raw, Unescape(tt.esc), "Unescape(%q)", tt.esc)
	}

	assert.Equal(t, `\x`, Unescape(`\x`), "unknown escapes are kept")
	assert.Equal(t, `a\`, Unescape(`a\`), "trailing backslash is kept")
}

func FuzzEscapeRoundTrip(f *testing.F) {
	for _, s := range []string{"", "@", "\\s", "a\nb", "\\\\@@"} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, s string) {
		esc := Escape(s)
		if got := Unescape(esc); got != s {
			t.Fatalf("Unescape(Escape(%q)) = %q", s, got)
		}
		for i := 0; i < len(esc); i++ {
			if esc[i] == '@' || esc[i] == '\n' {
				t.Fatalf("Escape(%q) = %q contains a separator", s, esc)
			}
		}
	})
}

func TestSplitJoinRow(t *testing.T) {
	cells := SplitRow("1@a\\sb@\n")
	assert.Equal(t, []string{"1", "a@b", ""}, cells)
	assert.Equal(t, `1@a\sb@`, JoinRow(cells))

	assert.Equal(t, []string{"1", "a\r"}, SplitRow("1@a\r"), "only the newline is a terminator")
	assert.Equal(t, []string{"1", "a\r"}, SplitRow("1@a\r\n"))
}

func TestDecodeRow(t *testing.T) {
	fields := []Field{
		must(NewField("i-id", Integer, true, false, "")),
		must(NewField("i-input", String, false, false, "")),
	}

	t.Run("cast", func(t *testing.T) {
		row, err := DecodeRow("11@hello world", fields, true)
		require.NoError(t, err)
		assert.Equal(t, []any{int64(11), "hello world"}, row)
	})

	t.Run("escaped separator", func(t *testing.T) {
		line, err := EncodeRow([]any{11, "hello@world"}, fields)
		require.NoError(t, err)
		assert.Equal(t, `11@hello\sworld`, line)

		row, err := DecodeRow(line, fields, true)
		require.NoError(t, err)
		assert.Equal(t, []any{int64(11), "hello@world"}, row)
	})

	t.Run("defaults without cast", func(t *testing.T) {
		row, err := DecodeRow("@x", fields, false)
		require.NoError(t, err)
		assert.Equal(t, []any{"-1", "x"}, row)
	})

	t.Run("trailing carriage return in last cell", func(t *testing.T) {
		line, err := EncodeRow([]any{1, "a\r"}, fields)
		require.NoError(t, err)
		row, err := DecodeRow(line, fields, false)
		require.NoError(t, err)
		assert.Equal(t, []any{"1", "a\r"}, row)
	})

	t.Run("no fields", func(t *testing.T) {
		row, err := DecodeRow("1@2@3", nil, true)
		require.NoError(t, err)
		assert.Equal(t, []any{"1", "2", "3"}, row)
	})

	t.Run("field count mismatch", func(t *testing.T) {
		_, err := DecodeRow("1@2@3", fields, true)
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Contains(t, e.Msg, "field count mismatch")
		assert.Equal(t, "1@2@3", e.Data)
	})
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rel := testRels(t).Relation("item")
	rows := [][]any{
		{int64(1), "the dog barks", int64(1), "2024-03-01 00:00:00"},
		{int64(2), "multi\nline @ \\ input", int64(0), ""},
	}
	for _, row := range rows {
		line, err := EncodeRow(row, rel.Fields())
		require.NoError(t, err)
		got, err := DecodeRow(line, rel.Fields(), false)
		require.NoError(t, err)
		want := make([]any, len(row))
		for i, v := range row {
			want[i] = must(rel.Field(i).Format(v))
		}
		assert.Equal(t, want, got)
	}

	_, err := EncodeRow([]any{1}, rel.Fields())
	assert.Error(t, err)
}

func TestMakeRow(t *testing.T) {
	rel := testRels(t).Relation("item")

	cells, err := MakeRow(map[string]any{"i-id": 5, "i-input": "hi"}, rel)
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "hi", "", ""}, cells)

	_, err = MakeRow(map[string]any{"i-input": "hi"}, rel)
	assert.ErrorContains(t, err, "missing value for key field")

	_, err = MakeRow(map[string]any{"i-id": 1, "bogus": 2}, rel)
	assert.ErrorContains(t, err, "unknown field")
}
