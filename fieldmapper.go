package itsdb

import (
	"strconv"
	"time"
)

type fieldMapper struct {
	nextParseID int64
	runID       string
	items       int
	start       time.Time
	now         func() time.Time
}

// NewFieldMapper returns the default mapper. Each response becomes one
// parse row (keys and item-level fields, readings = number of results) and
// one result row per result, numbered from 0. Cleanup adds a run row.
func NewFieldMapper() FieldMapper {
	return newFieldMapper(time.Now)
}

func newFieldMapper(now func() time.Time) *fieldMapper {
	return &fieldMapper{now: now, runID: "0"}
}

func (m *fieldMapper) AffectedTables() []string {
	return []string{"parse", "result", "run"}
}

func (m *fieldMapper) Map(resp *Response) ([]MappedRow, error) {
	if m.items == 0 {
		m.start = m.now()
		if id, ok := resp.Fields["run-id"]; ok && id != "" {
			m.runID = id
		}
	}
	m.items++
	parseID := m.nextParseID
	m.nextParseID++

	parse := make(map[string]any, len(resp.Fields)+3)
	for k, v := range resp.Fields {
		parse[k] = v
	}
	parse["parse-id"] = parseID
	parse["run-id"] = m.runID
	parse["readings"] = len(resp.Results)

	rows := make([]MappedRow, 0, 1+len(resp.Results))
	rows = append(rows, MappedRow{Table: "parse", Values: parse})
	for i, res := range resp.Results {
		result := make(map[string]any, len(res)+2)
		for k, v := range res {
			result[k] = v
		}
		result["parse-id"] = parseID
		result["result-id"] = i
		rows = append(rows, MappedRow{Table: "result", Values: result})
	}
	return rows, nil
}

func (m *fieldMapper) Cleanup() ([]MappedRow, error) {
	if m.start.IsZero() {
		m.start = m.now()
	}
	return []MappedRow{{
		Table: "run",
		Values: map[string]any{
			"run-id": m.runID,
			"items":  strconv.Itoa(m.items),
			"start":  m.start,
			"end":    m.now(),
		},
	}}, nil
}
