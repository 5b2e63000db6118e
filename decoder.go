// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package cmx3600

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultRate is the frame rate a Decoder reports until SetRate is called.
const DefaultRate = 25

// maxLineLength bounds a single EDL line read by the Decoder.
const maxLineLength = 1 << 20

// Annotation markers recognised after a header line.
const (
	annotationMarker = "*"
	clipNameMarker   = "FROM CLIP NAME:"
	locatorMarker    = "LOC:"
)

// Decoder reads CMX 3600 EDL text and produces the video cut events it contains.
type Decoder struct {
	r        io.Reader
	rate     int
	logger   logrus.FieldLogger
	title    string
	fcmMode  string // "DROP FRAME" or "NON-DROP FRAME"
	warnings []Warning
}

// NewDecoder creates a new EDL decoder.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:      r,
		rate:   DefaultRate,
		logger: discardLogger(),
	}
}

// SetRate records the frame rate of the EDL. Parsing does not depend on it;
// it is carried for callers that convert the decoded timecodes to frames.
func (d *Decoder) SetRate(rate int) {
	d.rate = rate
}

// Rate returns the frame rate set with SetRate.
func (d *Decoder) Rate() int { return d.rate }

// SetLogger sets the logger that receives dropped-event and unmatched-line reports.
func (d *Decoder) SetLogger(logger logrus.FieldLogger) {
	if logger == nil {
		logger = discardLogger()
	}
	d.logger = logger
}

// Title returns the TITLE: value seen by the last Decode.
func (d *Decoder) Title() string { return d.title }

// FCM returns the frame count mode seen by the last Decode.
func (d *Decoder) FCM() string { return d.fcmMode }

// Warnings returns the problems recovered from during the last Decode.
func (d *Decoder) Warnings() []Warning {
	return d.warnings
}

// headerLineRegex matches a single-line video cut header.
// Format: EVENT# REEL V C SRC_IN SRC_OUT REC_IN REC_OUT [CLIP NAME]
var headerLineRegex = regexp.MustCompile(`^(\d{6})\s+(\S+)\s+V\s+C\s+(\d{2}:\d{2}:\d{2}[:;]\d{2})\s+(\d{2}:\d{2}:\d{2}[:;]\d{2})\s+(\d{2}:\d{2}:\d{2}[:;]\d{2})\s+(\d{2}:\d{2}:\d{2}[:;]\d{2})(?:\s+(.*))?$`)

// Decode reads all lines and returns the events in file order.
// Only a read failure is returned as an error; malformed events are skipped
// and reported through Warnings.
func (d *Decoder) Decode() ([]EditEvent, error) {
	lines, err := ReadLines(d.r)
	if err != nil {
		return nil, err
	}
	return d.ParseLines(lines), nil
}

// ReadLines splits r into lines. Invalid UTF-8 sequences are dropped rather than reported.
func ReadLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, strings.ToValidUTF8(scanner.Text(), ""))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

type scanState int

const (
	stateHeaderSearch scanState = iota
	stateMetadataCollect
)

// ParseLines runs the header/annotation state machine over lines.
func (d *Decoder) ParseLines(lines []string) []EditEvent {
	d.title = ""
	d.fcmMode = ""
	d.warnings = nil

	var (
		events  []EditEvent
		current EditEvent
		state   = stateHeaderSearch
		i       = 0
	)

	for i < len(lines) || state == stateMetadataCollect {
		switch state {
		case stateHeaderSearch:
			event, matched, err := d.parseHeader(lines[i], i+1)
			if !matched {
				d.noteUnmatched(lines[i], i+1)
				i++
				continue
			}
			if err != nil {
				d.warn(i+1, err)
				d.logger.WithFields(logrus.Fields{
					"line":  i + 1,
					"event": event.EventID,
				}).Warnf("dropping event: %v", err)
				// The dropped event's annotations go with it.
				_, i = CollectAnnotations(lines, i+1)
				continue
			}
			current = event
			state = stateMetadataCollect
			i++

		case stateMetadataCollect:
			run, next := CollectAnnotations(lines, i)
			applyAnnotations(&current, run)
			events = append(events, current)
			current = EditEvent{}
			state = stateHeaderSearch
			i = next
		}
	}

	return events
}

// CollectAnnotations returns the run of annotation lines starting at start and
// the index of the first line after the run.
func CollectAnnotations(lines []string, start int) (run []string, next int) {
	next = start
	for next < len(lines) && strings.HasPrefix(lines[next], annotationMarker) {
		next++
	}
	if start < next {
		run = lines[start:next]
	}
	return run, next
}

// applyAnnotations folds FROM CLIP NAME and LOC annotations into event.
// Other annotations are ignored.
func applyAnnotations(event *EditEvent, run []string) {
	for _, line := range run {
		body := strings.TrimLeft(strings.TrimPrefix(line, annotationMarker), " \t")
		switch {
		case strings.HasPrefix(body, clipNameMarker):
			event.ClipName = strings.TrimSpace(strings.TrimPrefix(body, clipNameMarker))
		case strings.HasPrefix(body, locatorMarker):
			if tag, ok := ExtractLocatorTag(line); ok {
				event.LocatorTags = append(event.LocatorTags, tag)
			}
		}
	}
}

// parseHeader reports whether line is a cut header. A matched header whose
// timecodes do not parse is returned with a non-nil error.
func (d *Decoder) parseHeader(line string, lineNum int) (EditEvent, bool, error) {
	matches := headerLineRegex.FindStringSubmatch(line)
	if matches == nil {
		return EditEvent{}, false, nil
	}

	event := EditEvent{
		EventID:   matches[1],
		TapeName:  matches[2],
		SourceIn:  matches[3],
		SourceOut: matches[4],
		RecordIn:  matches[5],
		RecordOut: matches[6],
		ClipName:  strings.TrimSpace(matches[7]),
		Line:      lineNum,
	}

	for _, tc := range []string{event.SourceIn, event.SourceOut, event.RecordIn, event.RecordOut} {
		if _, err := splitTimecode(tc); err != nil {
			return event, true, err
		}
	}

	return event, true, nil
}

// noteUnmatched records a FormatError for a non-blank line outside any event.
func (d *Decoder) noteUnmatched(line string, lineNum int) {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return
	case strings.HasPrefix(trimmed, "TITLE:"):
		d.title = strings.TrimSpace(strings.TrimPrefix(trimmed, "TITLE:"))
		return
	case strings.HasPrefix(trimmed, "FCM:"):
		d.fcmMode = strings.TrimSpace(strings.TrimPrefix(trimmed, "FCM:"))
		return
	}

	err := &ParseError{Line: lineNum, Message: "unrecognized line"}
	d.warn(lineNum, err)
	d.logger.WithField("line", lineNum).Debugf("skipping line: %q", trimmed)
}

func (d *Decoder) warn(lineNum int, err error) {
	d.warnings = append(d.warnings, Warning{Line: lineNum, Err: err})
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
