// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package cmx3600

import (
	"fmt"
	"io"
	"strings"
	"unicode"
)

// Encoder writes edit events in the single-line CMX 3600 dialect read by Decoder.
type Encoder struct {
	w           io.Writer
	title       string
	sanitize    bool
	reelNameLen int
}

// NewEncoder creates a new EDL encoder.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:     w,
		title: "Timeline",
	}
}

// SetTitle sets the TITLE: value written in the header.
func (e *Encoder) SetTitle(title string) {
	if title != "" {
		e.title = title
	}
}

// SanitizeReelNames makes the encoder rewrite tape names with SanitizeReelName,
// cut to maxLength characters (0 or negative for no limit). Tape names are
// written unchanged otherwise, so a decoded EDL keeps its matching keys.
func (e *Encoder) SanitizeReelNames(maxLength int) {
	e.sanitize = true
	e.reelNameLen = maxLength
}

// Encode writes the header followed by every event.
func (e *Encoder) Encode(events []EditEvent) error {
	if _, err := fmt.Fprintf(e.w, "TITLE: %s\nFCM: NON-DROP FRAME\n\n", e.title); err != nil {
		return err
	}

	for i, event := range events {
		if err := e.writeEvent(i+1, event); err != nil {
			return err
		}
	}
	return nil
}

// writeEvent writes a single event and its annotations.
func (e *Encoder) writeEvent(seq int, event EditEvent) error {
	if seq > 999999 {
		return &EncodeError{Message: fmt.Sprintf("event %d exceeds six-digit numbering", seq)}
	}
	id := event.EventID
	if len(id) != 6 {
		id = fmt.Sprintf("%06d", seq)
	}

	reel, err := e.reelName(event.TapeName)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(e.w, "%s  %-8s %s     %s        %s %s %s %s\n",
		id,
		reel,
		TrackTypeVideo,
		EditTypeCut,
		event.SourceIn,
		event.SourceOut,
		event.RecordIn,
		event.RecordOut,
	)
	if err != nil {
		return err
	}

	if event.ClipName != "" {
		if _, err := fmt.Fprintf(e.w, "* FROM CLIP NAME: %s\n", event.ClipName); err != nil {
			return err
		}
	}

	for _, tag := range event.LocatorTags {
		if _, err := fmt.Fprintf(e.w, "* LOC: %s\n", tag); err != nil {
			return err
		}
	}

	_, err = fmt.Fprintf(e.w, "\n")
	return err
}

// reelName returns the tape name as written in the header. Without sanitizing,
// a name that would not survive header tokenizing is an error.
func (e *Encoder) reelName(tape string) (string, error) {
	if e.sanitize {
		return SanitizeReelName(tape, e.reelNameLen), nil
	}
	if tape == "" || strings.IndexFunc(tape, unicode.IsSpace) >= 0 {
		return "", &EncodeError{Message: fmt.Sprintf("tape name %q cannot be written to a header", tape)}
	}
	return tape, nil
}
