package itsdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Processor turns one input datum into results; typically a parser or
// generator running out of process.
type Processor interface {
	// Task is "parse", "generate" or "transfer"; it picks the default
	// input column.
	Task() string
	ProcessItem(ctx context.Context, datum string, keys map[string]string) (*Response, error)
}

// Response is what a Processor returns for one item.
type Response struct {
	Results []map[string]string
	// Fields are item-level values. Process adds the key values of the
	// source row to them.
	Fields map[string]string
}

// MappedRow is one row produced by a FieldMapper.
type MappedRow struct {
	Table  string
	Values map[string]any
}

// FieldMapper turns responses into rows of the profile's tables.
type FieldMapper interface {
	// AffectedTables are cleared before processing starts.
	AffectedTables() []string
	Map(resp *Response) ([]MappedRow, error)
	// Cleanup returns trailing rows once every item has been processed.
	Cleanup() ([]MappedRow, error)
}

type ProcessOptions struct {
	// Selector is a data specifier of the input column. Defaults to
	// "item:i-input" for parsing and "result:mrs" for generation and
	// transfer.
	Selector string
	// Source of the inputs; defaults to the profile being written.
	Source *TestSuite
	// Mapper defaults to NewFieldMapper().
	Mapper FieldMapper
	// BufferSize, when positive, commits an attached table once it has
	// more than BufferSize uncommitted new rows. Zero keeps all output in
	// memory until the end.
	BufferSize int
	// Gzip compresses the affected tables when they are finally written.
	Gzip bool
}

type processInput struct {
	datum string
	keys  map[string]string
}

// DefaultSelector returns the input column used for a task.
func DefaultSelector(task string) (string, error) {
	switch task {
	case "parse":
		return "item:i-input", nil
	case "generate", "transfer":
		return "result:mrs", nil
	default:
		return "", errf(nil, "no default input selector for task %q", task)
	}
}

// Process runs p over every selected input and stores the mapped results
// in this profile. The affected tables are cleared first.
func (ts *TestSuite) Process(ctx context.Context, p Processor, opt ProcessOptions) error {
	selector := opt.Selector
	if selector == "" {
		var err error
		selector, err = DefaultSelector(p.Task())
		if err != nil {
			return err
		}
	}
	source := opt.Source
	if source == nil {
		source = ts
	}
	mapper := opt.Mapper
	if mapper == nil {
		mapper = NewFieldMapper()
	}

	inputs, err := source.selectInputs(selector)
	if err != nil {
		return err
	}

	buffered := opt.BufferSize > 0 && ts.dir != ""
	affected := mapper.AffectedTables()
	for _, name := range affected {
		t, err := ts.Table(name)
		if err != nil {
			return err
		}
		t.Clear()
		if buffered && t.IsAttached() {
			if err := t.Commit(); err != nil {
				return err
			}
		}
	}

	// runID only correlates the log lines of one call; the stored run-id
	// is chosen by the mapper.
	runID := uuid.NewString()
	logger := ts.logger.With(zap.String("run", runID), zap.String("task", p.Task()))
	logger.Info("processing started", zap.String("selector", selector), zap.Int("items", len(inputs)))
	start := time.Now()

	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := p.ProcessItem(ctx, in.datum, in.keys)
		if err != nil {
			return errf(err, "processing %q failed", in.datum)
		}
		if resp == nil {
			resp = &Response{}
		}
		if resp.Fields == nil {
			resp.Fields = make(map[string]string, len(in.keys))
		}
		for k, v := range in.keys {
			if _, ok := resp.Fields[k]; !ok {
				resp.Fields[k] = v
			}
		}
		logger.Info("processed item", zap.String("input", Escape(in.datum)), zap.Int("results", len(resp.Results)))

		rows, err := mapper.Map(resp)
		if err != nil {
			return err
		}
		if err := ts.storeMapped(rows, buffered, opt.BufferSize); err != nil {
			return err
		}
	}

	rows, err := mapper.Cleanup()
	if err != nil {
		return err
	}
	if err := ts.storeMapped(rows, false, 0); err != nil {
		return err
	}

	if ts.dir != "" {
		if opt.Gzip {
			err = ts.Write(WriteSuiteOptions{Tables: affected, Gzip: true})
		} else {
			for _, name := range affected {
				if err = ts.tables[name].Commit(); err != nil {
					break
				}
			}
		}
		if err != nil {
			return err
		}
	}
	logger.Info("processing finished", zap.Int("items", len(inputs)), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (ts *TestSuite) selectInputs(selector string) ([]processInput, error) {
	name, cols := ParseDataSpecifier(selector)
	if len(cols) != 1 {
		return nil, errf(nil, "input selector %q must name exactly one column", selector)
	}
	if name == "" {
		var err error
		if name, err = ts.ownerOf(cols[0]); err != nil {
			return nil, err
		}
	}
	t, err := ts.Table(name)
	if err != nil {
		return nil, err
	}
	col, ok := t.rel.index[cols[0]]
	if !ok {
		return nil, tableErrf(name, nil, "no field %q", cols[0])
	}

	var inputs []processInput
	for rec, err := range t.All() {
		if err != nil {
			return nil, err
		}
		keys := make(map[string]string, len(t.rel.keys))
		for _, k := range t.rel.keys {
			keys[k] = rec.rawOrDefault(t.rel.index[k])
		}
		inputs = append(inputs, processInput{datum: rec.cells[col], keys: keys})
	}
	return inputs, nil
}

// storeMapped appends rows, ignoring columns their table doesn't have.
func (ts *TestSuite) storeMapped(rows []MappedRow, buffered bool, bufferSize int) error {
	for _, row := range rows {
		t, err := ts.Table(row.Table)
		if err != nil {
			return err
		}
		values := make(map[string]any, len(row.Values))
		for k, v := range row.Values {
			if t.rel.Has(k) {
				values[k] = v
			}
		}
		if err := t.AppendMap(values); err != nil {
			return err
		}
		if buffered && t.IsAttached() && t.Pending() > bufferSize {
			if err := t.Commit(); err != nil {
				return err
			}
		}
	}
	return nil
}
