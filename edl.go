// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

// Package cmx3600 reads and writes the video-cut subset of CMX 3600 EDL (Edit Decision List) files.
// The CMX 3600 format is a text-based interchange format used in video editing.
package cmx3600

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// EditType represents the type of edit in an EDL.
type EditType string

// EditTypeCut represents a cut (instantaneous transition). It is the only edit type read.
const EditTypeCut EditType = "C"

// TrackType represents the type of track in an EDL.
type TrackType string

// TrackTypeVideo represents a video track. It is the only track type read.
const TrackTypeVideo TrackType = "V"

// EditEvent represents a single cut in one EDL version.
// Events are produced by the Decoder and never modified afterwards.
type EditEvent struct {
	EventID     string   // Six-digit event number as written; not unique
	TapeName    string   // Source reel/tape name
	ClipName    string   // From the header line, overridden by FROM CLIP NAME
	SourceIn    string   // Source in timecode (HH:MM:SS:FF)
	SourceOut   string   // Source out timecode (HH:MM:SS:FF)
	RecordIn    string   // Record in timecode (HH:MM:SS:FF)
	RecordOut   string   // Record out timecode (HH:MM:SS:FF)
	LocatorTags []string // Tags extracted from LOC lines, in file order
	Line        int      // 1-based line number of the header
}

// Duration returns the source duration of the event in frames.
// The result is negative when the source out precedes the source in.
func (e EditEvent) Duration(fps int) (int, error) {
	return DurationFrames(e.SourceIn, e.SourceOut, fps)
}

// DefaultReelNameLength is the reel name limit of strict CMX 3600 readers.
const DefaultReelNameLength = 8

// SanitizeReelName maps name onto the ASCII letters, digits and underscores
// accepted by strict readers, replacing anything else with '_', and cuts it to
// maxLength characters when maxLength is positive. An empty result becomes "AX".
func SanitizeReelName(name string, maxLength int) string {
	var b strings.Builder
	for _, r := range name {
		if maxLength > 0 && b.Len() >= maxLength {
			break
		}
		if r == '_' || (r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	if b.Len() == 0 {
		return "AX"
	}
	return b.String()
}

// ErrEmptyInput is returned by callers that treat an input without events as a failure.
// The Decoder itself never returns it.
var ErrEmptyInput = errors.New("no events found")

// ParseError represents a line that matched no recognized structure.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// TimecodeError reports a timecode that is not four colon-delimited integers.
type TimecodeError struct {
	Timecode string
	Reason   string
}

func (e *TimecodeError) Error() string {
	return fmt.Sprintf("invalid timecode %q: %s", e.Timecode, e.Reason)
}

// Warning is a recovered problem recorded while decoding.
type Warning struct {
	Line int
	Err  error
}

func (w Warning) Error() string {
	return fmt.Sprintf("line %d: %v", w.Line, w.Err)
}

func (w Warning) Unwrap() error {
	return w.Err
}

// EncodeError represents an error that occurred during EDL encoding.
type EncodeError struct {
	Message string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode error: %s", e.Message)
}
