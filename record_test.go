package itsdb

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Accessors(t *testing.T) {
	rel := testRels(t).Relation("item")
	rec, err := NewRecord(rel, 7, "a@b", nil, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 4, rec.Len())
	assert.Equal(t, "a@b", rec.Raw(1))
	assert.Equal(t, "", rec.Raw(2))
	assert.Equal(t, `7@a\sb@@2024-01-02 03:04:05`, rec.String())
	assert.Equal(t, []string{"7"}, rec.Keys())
	assert.False(t, rec.Attached())

	v, err := rec.GetByName("i-wf")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)
	assert.Equal(t, int64(7), rec.Value("i-id", nil))
	assert.Equal(t, "dflt", rec.Value("nope", "dflt"))

	_, err = rec.GetByName("nope")
	assert.Error(t, err)

	m, err := rec.Map(false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"i-id": "7", "i-input": "a@b", "i-wf": "-1", "i-date": "2024-01-02 03:04:05"}, m)

	_, err = NewRecord(rel, 1, 2)
	assert.ErrorContains(t, err, "field count mismatch")
}

func TestRecord_FromMapAndCells(t *testing.T) {
	rel := testRels(t).Relation("item")
	rec, err := RecordFromMap(rel, map[string]any{"i-id": 3, "i-input": "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "x", "", ""}, rec.Cells())

	_, err = RecordFromCells(rel, []string{"1"})
	assert.Error(t, err)
}

func TestRecord_Validate(t *testing.T) {
	rel := testRels(t).Relation("item")
	ok := must(RecordFromCells(rel, []string{"1", "x", "2", ""}))
	assert.NoError(t, ok.Validate(CodedAttributes))

	dflt := must(RecordFromCells(rel, []string{"1", "x", "-1", ""}))
	assert.NoError(t, dflt.Validate(CodedAttributes))

	bad := must(RecordFromCells(rel, []string{"1", "x", "9", ""}))
	assert.ErrorContains(t, bad.Validate(CodedAttributes), "invalid code")
}

func TestRecord_WritesBackToTable(t *testing.T) {
	rel := testRels(t).Relation("item")
	tbl, err := NewTable("item", rel, []string{"1", "a", "1", ""}, []string{"2", "b", "1", ""})
	require.NoError(t, err)

	rec, err := tbl.Get(1)
	require.NoError(t, err)
	assert.True(t, rec.Attached())
	require.NoError(t, rec.SetByName("i-input", "changed"))

	again, err := tbl.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "changed", again.Raw(1))

	// cells handed out are copies
	cells := again.Cells()
	cells[1] = "mutated"
	assert.Equal(t, "changed", must(tbl.Get(1)).Raw(1))
}

func TestRecord_OutlivesTable(t *testing.T) {
	rel := testRels(t).Relation("item")
	rec := func() *Record {
		tbl := must(NewTable("item", rel, []string{"1", "a", "1", ""}))
		return must(tbl.Get(0))
	}()

	for i := 0; i < 10 && rec.Attached(); i++ {
		runtime.GC()
	}
	if rec.Attached() {
		t.Skip("table was not collected")
	}
	require.NoError(t, rec.Set(1, "local"))
	assert.Equal(t, "local", rec.Raw(1))
}
