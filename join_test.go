package itsdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinFixture(t *testing.T) (item, parse, result *Table) {
	t.Helper()
	rels := testRels(t)
	item = must(NewTable("item", rels.Relation("item"),
		[]string{"1", "a", "1", ""},
		[]string{"2", "b", "1", ""},
		[]string{"99", "lonely", "0", ""},
	))
	parse = must(NewTable("parse", rels.Relation("parse"),
		[]string{"10", "0", "1", "1"},
		[]string{"20", "0", "2", "2"},
		[]string{"21", "0", "2", "0"},
	))
	result = must(NewTable("result", rels.Relation("result"),
		[]string{"10", "0", "mrs-1a"},
		[]string{"20", "0", "mrs-2a"},
		[]string{"20", "1", "mrs-2b"},
	))
	return item, parse, result
}

func TestJoin_Relation(t *testing.T) {
	item, parse, _ := joinFixture(t)
	j, err := Join(item, parse, JoinOptions{On: []string{"i-id"}})
	require.NoError(t, err)

	assert.Equal(t, "item+parse", j.Name())
	assert.True(t, j.Relation().Joined())
	assert.Equal(t, []string{"item", "parse"}, j.Relation().Sources())
	assert.Equal(t, []string{
		"i-id", "item:i-input", "item:i-wf", "item:i-date",
		"parse-id", "run-id", "parse:readings",
	}, j.Relation().Names())
	assert.Equal(t, []string{"i-id", "parse-id", "run-id"}, j.Relation().Keys())
}

func TestJoin_Inner(t *testing.T) {
	item, parse, _ := joinFixture(t)
	j, err := Join(item, parse, JoinOptions{On: []string{"i-id"}, How: InnerJoin})
	require.NoError(t, err)

	// sum over left rows of matching right rows: 1 + 2 + 0
	assert.Equal(t, 3, j.Len())
	assert.Equal(t, [][]string{
		{"1", "a", "1", "", "10", "0", "1"},
		{"2", "b", "1", "", "20", "0", "2"},
		{"2", "b", "1", "", "21", "0", "0"},
	}, rawRows(t, j))
	assert.False(t, j.IsAttached())
}

func TestJoin_LeftFillsDefaults(t *testing.T) {
	item, parse, _ := joinFixture(t)
	j, err := Join(item, parse, JoinOptions{On: []string{"i-id"}, How: LeftJoin})
	require.NoError(t, err)

	// sum over left rows of max(1, matches): 1 + 2 + 1
	require.Equal(t, 4, j.Len())
	var lonely []*Record
	for rec, err := range j.All() {
		require.NoError(t, err)
		if rec.Raw(0) == "99" {
			lonely = append(lonely, rec)
		}
	}
	require.Len(t, lonely, 1)
	rec := lonely[0]
	assert.Equal(t, int64(-1), rec.Value("parse:readings", nil))
	i, ok := rec.Relation().Index("parse:readings")
	require.True(t, ok)
	assert.Equal(t, "-1", rec.Raw(i))
	assert.Equal(t, int64(-1), rec.Value("parse-id", nil))
	assert.Equal(t, "lonely", rec.Value("item:i-input", nil))
}

func TestJoin_AutoDetectAndChain(t *testing.T) {
	item, parse, result := joinFixture(t)
	ip, err := Join(item, parse, JoinOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, ip.Len())

	ipr, err := Join(ip, result, JoinOptions{})
	require.NoError(t, err)
	assert.Equal(t, "item+parse+result", ipr.Name())
	assert.Equal(t, []string{"item", "parse", "result"}, ipr.Relation().Sources())
	assert.Equal(t, []string{
		"i-id", "item:i-input", "item:i-wf", "item:i-date",
		"parse-id", "run-id", "parse:readings",
		"result:result-id", "result:mrs",
	}, ipr.Relation().Names())

	mrs, err := ipr.Select([]string{"i-id", "result:mrs"}, SelectRow, false)
	require.NoError(t, err)
	assert.Equal(t, []any{"1@mrs-1a", "2@mrs-2a", "2@mrs-2b"}, mrs)
}

func TestJoin_Errors(t *testing.T) {
	item, parse, result := joinFixture(t)

	_, err := Join(item, item, JoinOptions{})
	assert.ErrorContains(t, err, "appears on both sides")

	_, err = Join(item, result, JoinOptions{})
	assert.ErrorContains(t, err, "no shared key")

	_, err = Join(item, parse, JoinOptions{On: []string{"readings"}})
	assert.ErrorContains(t, err, "not a column of both tables")

	_, err = Join(item, parse, JoinOptions{How: "outer"})
	assert.ErrorContains(t, err, "invalid join method")

	ip := must(Join(item, parse, JoinOptions{}))
	_, err = Join(ip, parse, JoinOptions{})
	assert.ErrorContains(t, err, "appears on both sides")
}

func TestParseJoinHow(t *testing.T) {
	h, err := ParseJoinHow("left")
	require.NoError(t, err)
	assert.Equal(t, LeftJoin, h)
	h, err = ParseJoinHow("")
	require.NoError(t, err)
	assert.Equal(t, InnerJoin, h)
	_, err = ParseJoinHow("cross")
	assert.Error(t, err)
}
