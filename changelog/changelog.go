// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package changelog

import (
	"fmt"
	"sort"
	"strings"

	cmx3600 "github.com/Avalanche-io/edl-changelog"
)

// Side holds the timecodes and source duration of one version of an event.
type Side struct {
	SourceIn  string `json:"source_in"`
	SourceOut string `json:"source_out"`
	RecordIn  string `json:"record_in"`
	RecordOut string `json:"record_out"`
	Duration  int    `json:"duration"`
}

// ChangeRecord is one row of the changelog.
type ChangeRecord struct {
	Status         Status   `json:"status"`
	ClipName       string   `json:"clip_name"`
	TapeName       string   `json:"tape_name"`
	Old            *Side    `json:"old,omitempty"`
	New            *Side    `json:"new,omitempty"`
	Head           Delta    `json:"head"`
	Tail           Delta    `json:"tail"`
	Locators       []string `json:"locators,omitempty"`
	LocatorSummary string   `json:"loc"`
	Comment        string   `json:"comment"`
	RecordIn       string   `json:"rec_in"`

	recordFrames int
}

// Build turns diff changes into changelog rows ordered by record in
// timecode. Rows with equal record in keep their encounter order.
func Build(changes []Change, fps int) ([]ChangeRecord, error) {
	records := make([]ChangeRecord, 0, len(changes))
	for _, c := range changes {
		rec, err := buildRecord(c, fps)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].recordFrames < records[j].recordFrames
	})
	return records, nil
}

func buildRecord(c Change, fps int) (ChangeRecord, error) {
	rec := ChangeRecord{
		Status: c.Status,
		Head:   c.Head,
		Tail:   c.Tail,
	}

	// Identity columns come from the old side when present; timeline
	// placement and locators from the new side.
	var identity, placement *cmx3600.EditEvent
	switch c.Status {
	case StatusRemoved:
		identity, placement = c.Old, c.Old
		rec.Old = sideOf(c.Old, c.OldDuration)
	case StatusNew:
		identity, placement = c.New, c.New
		rec.New = sideOf(c.New, c.NewDuration)
	case StatusModified:
		identity, placement = c.Old, c.New
		rec.Old = sideOf(c.Old, c.OldDuration)
		rec.New = sideOf(c.New, c.NewDuration)
	default:
		return ChangeRecord{}, fmt.Errorf("unknown status %q", c.Status)
	}
	if identity == nil || placement == nil {
		return ChangeRecord{}, fmt.Errorf("%s change for key %s is missing an event", c.Status, c.Key)
	}

	rec.ClipName = identity.ClipName
	rec.TapeName = identity.TapeName
	rec.RecordIn = placement.RecordIn
	rec.Locators = placement.LocatorTags
	rec.LocatorSummary = cmx3600.JoinTags(placement.LocatorTags)
	rec.Comment = describe(c)

	frames, err := cmx3600.FramesFromTimecode(placement.RecordIn, fps)
	if err != nil {
		return ChangeRecord{}, fmt.Errorf("record in of key %s: %w", c.Key, err)
	}
	rec.recordFrames = frames
	return rec, nil
}

func sideOf(e *cmx3600.EditEvent, duration int) *Side {
	if e == nil {
		return nil
	}
	return &Side{
		SourceIn:  e.SourceIn,
		SourceOut: e.SourceOut,
		RecordIn:  e.RecordIn,
		RecordOut: e.RecordOut,
		Duration:  duration,
	}
}

// describe writes the human-readable comment of a change.
func describe(c Change) string {
	switch c.Status {
	case StatusRemoved:
		return "event removed from cut"
	case StatusNew:
		return "event added to cut"
	}

	var parts []string
	if c.Old.ClipName != c.New.ClipName {
		parts = append(parts, fmt.Sprintf("clip name %q -> %q", c.Old.ClipName, c.New.ClipName))
	}
	if !c.Head.IsZero() {
		parts = append(parts, "head "+c.Head.String())
	}
	if !c.Tail.IsZero() {
		parts = append(parts, "tail "+c.Tail.String())
	}
	if c.Head.IsZero() && c.Tail.IsZero() &&
		(c.Old.SourceIn != c.New.SourceIn || c.Old.SourceOut != c.New.SourceOut) {
		parts = append(parts, "source timecode rewritten, same frames")
	}
	if d := c.NewDuration - c.OldDuration; d != 0 {
		parts = append(parts, fmt.Sprintf("duration %+df", d))
	}
	return strings.Join(parts, "; ")
}

// Summary counts changelog rows by status.
type Summary struct {
	New      int `json:"new"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
}

// Total returns the number of rows counted.
func (s Summary) Total() int {
	return s.New + s.Removed + s.Modified
}

// Summarize counts records by status.
func Summarize(records []ChangeRecord) Summary {
	var s Summary
	for _, r := range records {
		switch r.Status {
		case StatusNew:
			s.New++
		case StatusRemoved:
			s.Removed++
		case StatusModified:
			s.Modified++
		}
	}
	return s
}
