// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package changelog

import (
	"encoding/json"
	"strings"
	"testing"
)

const oldCut = `TITLE: Reel 1 v1
FCM: NON-DROP FRAME

000001  TAPE1 V C 01:00:00:00 01:00:10:00 00:00:00:00 00:00:10:00
* FROM CLIP NAME: a.mov
000002  TAPE2 V C 02:00:00:00 02:00:04:00 00:00:10:00 00:00:14:00
* FROM CLIP NAME: b.mov
* LOC: 00:00:11:00 RED   old_001_0001
000003  TAPE3 V C 03:00:00:00 03:00:02:00 00:00:14:00 00:00:16:00
* FROM CLIP NAME: c.mov
`

const newCut = `TITLE: Reel 1 v2
FCM: NON-DROP FRAME

000001  TAPE3 V C 03:00:00:00 03:00:02:00 00:00:00:00 00:00:02:00
* FROM CLIP NAME: c.mov
000002  TAPE1 V C 00:59:59:20 01:00:09:15 00:00:02:00 00:00:11:20
* FROM CLIP NAME: a.mov
* LOC: 00:00:03:00 GREEN vfx_010_0040
000003  TAPE4 V C 04:00:00:00 04:00:01:00 00:00:02:00 00:00:03:00
* FROM CLIP NAME: d.mov
`

func buildFixture(t *testing.T, strategy KeyStrategy) []ChangeRecord {
	t.Helper()
	res, err := Diff(decode(t, oldCut), decode(t, newCut), Options{Strategy: strategy, FPS: 25})
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	records, err := Build(res.Changes, 25)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return records
}

func TestBuild_IdentityKey(t *testing.T) {
	records := buildFixture(t, IdentityKey)

	// Encounter order is a(Modified), b(Removed), d(New); c is unchanged.
	// Sorted by record in: a @00:00:02:00, d @00:00:02:00 (stable), b @00:00:10:00.
	want := []struct {
		status Status
		clip   string
		recIn  string
	}{
		{StatusModified, "a.mov", "00:00:02:00"},
		{StatusNew, "d.mov", "00:00:02:00"},
		{StatusRemoved, "b.mov", "00:00:10:00"},
	}

	if len(records) != len(want) {
		t.Fatalf("Expected %d records, got %d: %+v", len(want), len(records), records)
	}
	for i, w := range want {
		r := records[i]
		if r.Status != w.status || r.ClipName != w.clip || r.RecordIn != w.recIn {
			t.Errorf("records[%d] = %s %s %s, want %s %s %s", i, r.Status, r.ClipName, r.RecordIn, w.status, w.clip, w.recIn)
		}
	}

	mod := records[0]
	if mod.Head.String() != "extend (5f)" || mod.Tail.String() != "trim (10f)" {
		t.Errorf("head/tail = %q/%q, want extend (5f)/trim (10f)", mod.Head, mod.Tail)
	}
	if mod.Old == nil || mod.New == nil || mod.Old.Duration != 250 || mod.New.Duration != 245 {
		t.Errorf("durations = %+v / %+v", mod.Old, mod.New)
	}
	if mod.LocatorSummary != "vfx_010_0040" {
		t.Errorf("LocatorSummary = %q, want vfx_010_0040", mod.LocatorSummary)
	}
	if !strings.Contains(mod.Comment, "head extend (5f)") || !strings.Contains(mod.Comment, "tail trim (10f)") {
		t.Errorf("Comment = %q", mod.Comment)
	}

	added := records[1]
	if added.Old != nil || added.New == nil || added.New.Duration != 25 {
		t.Errorf("New record sides = %+v / %+v", added.Old, added.New)
	}

	removed := records[2]
	if removed.New != nil || removed.Old == nil || removed.Old.Duration != 100 {
		t.Errorf("Removed record sides = %+v / %+v", removed.Old, removed.New)
	}
	if removed.LocatorSummary != "old_001_0001" {
		t.Errorf("Removed LocatorSummary = %q, want old_001_0001", removed.LocatorSummary)
	}
	if !removed.Head.IsZero() || !removed.Tail.IsZero() {
		t.Error("Removed record must not carry head/tail")
	}
}

func TestBuild_TimelineKey(t *testing.T) {
	records := buildFixture(t, TimelineKey)

	// Record ins: old 0:00, 0:10, 0:14; new 0:00, 0:02 (twice, last wins).
	// 0:00 changes clip a -> c, 0:10 and 0:14 are removed, 0:02 is new.
	s := Summarize(records)
	if s.Modified != 1 || s.Removed != 2 || s.New != 1 {
		t.Errorf("Summarize() = %+v, want 1 modified, 2 removed, 1 new", s)
	}
	if s.Total() != len(records) {
		t.Errorf("Total() = %d, want %d", s.Total(), len(records))
	}

	for i := 1; i < len(records); i++ {
		if records[i-1].recordFrames > records[i].recordFrames {
			t.Errorf("records not ordered by record in at %d", i)
		}
	}

	if records[0].Status != StatusModified || !strings.Contains(records[0].Comment, `clip name "a.mov" -> "c.mov"`) {
		t.Errorf("records[0] = %s %q", records[0].Status, records[0].Comment)
	}
	if records[1].Status != StatusNew || records[1].ClipName != "d.mov" {
		t.Errorf("records[1] = %s %s, want New d.mov", records[1].Status, records[1].ClipName)
	}
}

func TestBuild_Empty(t *testing.T) {
	records, err := Build(nil, 25)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
}

func TestChangeRecord_JSON(t *testing.T) {
	records := buildFixture(t, IdentityKey)

	data, err := json.Marshal(records[0])
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got["head"] != "extend (5f)" {
		t.Errorf("head = %v, want extend (5f)", got["head"])
	}
	if got["status"] != "Modified" {
		t.Errorf("status = %v, want Modified", got["status"])
	}
}
