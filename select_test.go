package itsdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelectMode(t *testing.T) {
	for _, s := range []string{"list", "row", "dict", "record"} {
		m, err := ParseSelectMode(s)
		require.NoError(t, err)
		assert.Equal(t, SelectMode(s), m)
	}
	m, err := ParseSelectMode("")
	require.NoError(t, err)
	assert.Equal(t, SelectList, m)

	_, err = ParseSelectMode("table")
	var e *Error
	assert.ErrorAs(t, err, &e)
}

func TestParseDataSpecifier(t *testing.T) {
	tests := []struct {
		spec  string
		table string
		cols  []string
	}{
		{"item:i-id@i-input", "item", []string{"i-id", "i-input"}},
		{"item", "item", nil},
		{":i-input", "", []string{"i-input"}},
		{"item+parse:readings", "item+parse", []string{"readings"}},
		{"item:", "item", nil},
	}
	for _, tt := range tests {
		table, cols := ParseDataSpecifier(tt.spec)
		assert.Equal(t, tt.table, table, tt.spec)
		assert.Equal(t, tt.cols, cols, tt.spec)
	}
}

func TestSelectRows(t *testing.T) {
	rel := testRels(t).Relation("item")
	tbl := must(NewTable("item", rel,
		[]string{"1", "a@b", "1", ""},
		[]string{"2", "c", "", ""},
	))
	recs := must(tbl.Records())

	t.Run("list", func(t *testing.T) {
		rows, err := SelectRows([]string{"i-id", "i-wf"}, recs, SelectList, false)
		require.NoError(t, err)
		assert.Equal(t, []any{[]any{"1", "1"}, []any{"2", "-1"}}, rows)

		rows, err = SelectRows([]string{"i-id", "i-wf"}, recs, SelectList, true)
		require.NoError(t, err)
		assert.Equal(t, []any{[]any{int64(1), int64(1)}, []any{int64(2), int64(-1)}}, rows)
	})

	t.Run("row", func(t *testing.T) {
		rows, err := SelectRows([]string{"i-input", "i-id"}, recs, SelectRow, false)
		require.NoError(t, err)
		assert.Equal(t, []any{`a\sb@1`, "c@2"}, rows)
	})

	t.Run("dict", func(t *testing.T) {
		rows, err := SelectRows([]string{"i-input"}, recs, SelectDict, true)
		require.NoError(t, err)
		assert.Equal(t, []any{map[string]any{"i-input": "a@b"}, map[string]any{"i-input": "c"}}, rows)
	})

	t.Run("record", func(t *testing.T) {
		rows, err := SelectRows([]string{"i-id", "i-input"}, recs, SelectRecord, false)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		rec := rows[0].(*Record)
		assert.Equal(t, []string{"i-id", "i-input"}, rec.Relation().Names())
		assert.Equal(t, `1@a\sb`, rec.String())
	})

	t.Run("all columns", func(t *testing.T) {
		rows, err := tbl.Select(nil, SelectList, false)
		require.NoError(t, err)
		assert.Equal(t, []any{"2", "c", "-1", ""}, rows[1])
	})

	t.Run("errors", func(t *testing.T) {
		_, err := SelectRows([]string{"nope"}, recs, SelectList, false)
		assert.Error(t, err)
		_, err = SelectRows(nil, recs, "bogus", false)
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		rows, err := SelectRows([]string{"nope"}, nil, SelectList, false)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestMatchRows(t *testing.T) {
	rels := testRels(t)
	items := must(NewTable("item", rels.Relation("item"),
		[]string{"1", "a", "1", ""},
		[]string{"2", "b", "1", ""},
	))
	parses := must(NewTable("parse", rels.Relation("parse"),
		[]string{"10", "0", "2", "1"},
		[]string{"11", "0", "2", "3"},
		[]string{"12", "0", "5", "0"},
	))

	matches, err := MatchRows(must(items.Records()), must(parses.Records()), "i-id")
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "1", matches[0].Key)
	assert.Len(t, matches[0].Left, 1)
	assert.Empty(t, matches[0].Right)

	assert.Equal(t, "2", matches[1].Key)
	assert.Len(t, matches[1].Left, 1)
	assert.Len(t, matches[1].Right, 2)

	assert.Equal(t, "5", matches[2].Key)
	assert.Empty(t, matches[2].Left)

	_, err = MatchRows(must(items.Records()), nil, "readings")
	assert.Error(t, err)
}
