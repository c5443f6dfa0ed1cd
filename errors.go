package itsdb

import (
	"fmt"
	"strconv"
	"strings"
)

// Error is the only error kind returned by this package. Table and Line
// locate the failure when known; Err carries the underlying cause (usually
// an I/O error).
type Error struct {
	Table string
	Line  int // 1-based; 0 when not applicable
	Data  string
	Msg   string
	Err   error
}

func errf(err error, format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...), Err: err}
}

func tableErrf(table string, err error, format string, args ...any) error {
	return &Error{Table: table, Msg: fmt.Sprintf(format, args...), Err: err}
}

func lineErrf(table string, line int, data string, err error, format string, args ...any) error {
	return &Error{Table: table, Line: line, Data: data, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	const maxData = 64

	var buf strings.Builder
	buf.WriteString("itsdb: ")
	if e.Table != "" {
		buf.WriteString(e.Table)
		if e.Line > 0 {
			buf.WriteByte(':')
			buf.WriteString(strconv.Itoa(e.Line))
		}
		buf.WriteString(": ")
	}
	buf.WriteString(e.Msg)
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	if e.Data != "" {
		d := e.Data
		if len(d) > maxData {
			d = d[:maxData] + "..."
		}
		fmt.Fprintf(&buf, " (%q)", d)
	}
	return buf.String()
}
