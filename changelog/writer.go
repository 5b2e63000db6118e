// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package changelog

import (
	"encoding/csv"
	"io"
	"strconv"
)

// Columns is the header row written by Writer.
var Columns = []string{
	"Status",
	"Clip Name",
	"Tape Name",
	"Old Src In",
	"Old Src Out",
	"New Src In",
	"New Src Out",
	"Old Duration",
	"New Duration",
	"HEAD",
	"TAIL",
	"LOC",
	"REC IN",
	"Comment",
}

// Writer exports changelog rows as delimited text with a header row.
type Writer struct {
	w     *csv.Writer
	comma rune
}

// NewWriter creates a comma-delimited writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(w), comma: ','}
}

// SetDelimiter sets the field delimiter.
func (w *Writer) SetDelimiter(r rune) {
	w.comma = r
}

// Write writes the header and one row per record, then flushes.
func (w *Writer) Write(records []ChangeRecord) error {
	w.w.Comma = w.comma
	if err := w.w.Write(Columns); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.w.Write(row(r)); err != nil {
			return err
		}
	}
	w.w.Flush()
	return w.w.Error()
}

func row(r ChangeRecord) []string {
	var oldIn, oldOut, oldDur, newIn, newOut, newDur string
	if r.Old != nil {
		oldIn, oldOut = r.Old.SourceIn, r.Old.SourceOut
		oldDur = strconv.Itoa(r.Old.Duration)
	}
	if r.New != nil {
		newIn, newOut = r.New.SourceIn, r.New.SourceOut
		newDur = strconv.Itoa(r.New.Duration)
	}
	return []string{
		string(r.Status),
		r.ClipName,
		r.TapeName,
		oldIn,
		oldOut,
		newIn,
		newOut,
		oldDur,
		newDur,
		r.Head.String(),
		r.Tail.String(),
		r.LocatorSummary,
		r.RecordIn,
		r.Comment,
	}
}
