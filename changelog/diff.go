// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

// Package changelog matches the events of two EDL versions and reports, per
// event, whether it was added, removed or modified, with head and tail trim
// deltas in frames.
package changelog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	cmx3600 "github.com/Avalanche-io/edl-changelog"
)

// Status classifies a change between the old and new EDL.
type Status string

const (
	StatusNew      Status = "New"
	StatusRemoved  Status = "Removed"
	StatusModified Status = "Modified"
)

// Key identifies an event for matching across versions.
type Key [2]string

func (k Key) String() string {
	if k[1] == "" {
		return k[0]
	}
	return k[0] + "/" + k[1]
}

// KeyStrategy derives the matching key of an event.
type KeyStrategy struct {
	Name string
	Key  func(cmx3600.EditEvent) Key
}

// IdentityKey matches events by (clip name, tape name), regardless of position.
var IdentityKey = KeyStrategy{
	Name: "identity",
	Key: func(e cmx3600.EditEvent) Key {
		return Key{e.ClipName, e.TapeName}
	},
}

// TimelineKey matches events by their record in timecode.
var TimelineKey = KeyStrategy{
	Name: "timeline",
	Key: func(e cmx3600.EditEvent) Key {
		return Key{e.RecordIn}
	},
}

// ParseKeyStrategy returns the strategy registered under name.
func ParseKeyStrategy(name string) (KeyStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", IdentityKey.Name:
		return IdentityKey, nil
	case TimelineKey.Name:
		return TimelineKey, nil
	default:
		return KeyStrategy{}, fmt.Errorf("unknown key strategy %q", name)
	}
}

// CollisionPolicy decides which event an index keeps when two share a key.
type CollisionPolicy int

const (
	// LastWins keeps the later event in file order.
	LastWins CollisionPolicy = iota
	// FirstWins keeps the earlier event in file order.
	FirstWins
)

func (p CollisionPolicy) String() string {
	if p == FirstWins {
		return "first"
	}
	return "last"
}

// ParseCollisionPolicy accepts "last" or "first".
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last":
		return LastWins, nil
	case "first":
		return FirstWins, nil
	default:
		return LastWins, fmt.Errorf("unknown collision policy %q", s)
	}
}

// Collision records two events of one file that produced the same key.
type Collision struct {
	Key     Key
	Kept    cmx3600.EditEvent
	Dropped cmx3600.EditEvent
}

// Index maps keys to events. Keys keep the order in which they were first seen.
type Index struct {
	keys       []Key
	events     map[Key]cmx3600.EditEvent
	Collisions []Collision
}

// NewIndex builds an index over events in file order.
func NewIndex(events []cmx3600.EditEvent, strategy KeyStrategy, policy CollisionPolicy) *Index {
	ix := &Index{events: make(map[Key]cmx3600.EditEvent, len(events))}
	for _, e := range events {
		k := strategy.Key(e)
		prev, exists := ix.events[k]
		if !exists {
			ix.keys = append(ix.keys, k)
			ix.events[k] = e
			continue
		}
		if policy == FirstWins {
			ix.Collisions = append(ix.Collisions, Collision{Key: k, Kept: prev, Dropped: e})
			continue
		}
		ix.events[k] = e
		ix.Collisions = append(ix.Collisions, Collision{Key: k, Kept: e, Dropped: prev})
	}
	return ix
}

// Get returns the event stored under k.
func (ix *Index) Get(k Key) (cmx3600.EditEvent, bool) {
	e, ok := ix.events[k]
	return e, ok
}

// Keys returns the keys in first-seen order.
func (ix *Index) Keys() []Key {
	return ix.keys
}

// Len returns the number of distinct keys.
func (ix *Index) Len() int {
	return len(ix.keys)
}

// DeltaKind names the direction of a trim boundary change.
type DeltaKind string

const (
	DeltaNone   DeltaKind = ""
	DeltaExtend DeltaKind = "extend"
	DeltaTrim   DeltaKind = "trim"
)

// Delta is a head or tail change of a matched event, in frames.
type Delta struct {
	Kind   DeltaKind
	Frames int
}

// IsZero reports whether the boundary is unchanged.
func (d Delta) IsZero() bool {
	return d.Kind == DeltaNone
}

// String renders the delta as "extend (5f)" or "trim (10f)"; unchanged is "".
func (d Delta) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s (%df)", d.Kind, d.Frames)
}

// MarshalText encodes the delta in its display form.
func (d Delta) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses the display form written by MarshalText.
func (d *Delta) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*d = Delta{}
		return nil
	}
	kind, rest, ok := strings.Cut(s, " (")
	if !ok || !strings.HasSuffix(rest, "f)") {
		return fmt.Errorf("invalid delta %q", s)
	}
	frames, err := strconv.Atoi(strings.TrimSuffix(rest, "f)"))
	if err != nil {
		return fmt.Errorf("invalid delta %q: %w", s, err)
	}
	switch DeltaKind(kind) {
	case DeltaExtend, DeltaTrim:
	default:
		return fmt.Errorf("invalid delta kind %q", kind)
	}
	*d = Delta{Kind: DeltaKind(kind), Frames: frames}
	return nil
}

// HeadDelta compares source in points. Moving the head earlier extends the event.
func HeadDelta(oldIn, newIn string, fps int) (Delta, error) {
	diff, err := cmx3600.DurationFrames(oldIn, newIn, fps)
	if err != nil {
		return Delta{}, err
	}
	switch {
	case diff < 0:
		return Delta{Kind: DeltaExtend, Frames: -diff}, nil
	case diff > 0:
		return Delta{Kind: DeltaTrim, Frames: diff}, nil
	}
	return Delta{}, nil
}

// TailDelta compares source out points. Moving the tail later extends the event.
func TailDelta(oldOut, newOut string, fps int) (Delta, error) {
	diff, err := cmx3600.DurationFrames(oldOut, newOut, fps)
	if err != nil {
		return Delta{}, err
	}
	switch {
	case diff > 0:
		return Delta{Kind: DeltaExtend, Frames: diff}, nil
	case diff < 0:
		return Delta{Kind: DeltaTrim, Frames: -diff}, nil
	}
	return Delta{}, nil
}

// Change is one classified difference. Old is nil for New changes and New is
// nil for Removed changes; durations are only meaningful for present sides.
type Change struct {
	Status      Status
	Key         Key
	Old         *cmx3600.EditEvent
	New         *cmx3600.EditEvent
	Head        Delta
	Tail        Delta
	OldDuration int
	NewDuration int
}

// Options configures a Diff.
type Options struct {
	Strategy  KeyStrategy
	FPS       int
	Collision CollisionPolicy
}

// Result is the outcome of a Diff, in encounter order: changes for old keys
// first, then keys only present in the new events.
type Result struct {
	Changes       []Change
	OldCollisions []Collision
	NewCollisions []Collision
}

// ErrInvalidRate is returned when the frame rate is not positive.
var ErrInvalidRate = errors.New("frame rate must be positive")

// Diff matches oldEvents against newEvents and classifies every difference.
// Events that are equal on both sides produce no change.
func Diff(oldEvents, newEvents []cmx3600.EditEvent, opts Options) (*Result, error) {
	if opts.FPS <= 0 {
		return nil, ErrInvalidRate
	}
	strategy := opts.Strategy
	if strategy.Key == nil {
		strategy = IdentityKey
	}

	oldIndex := NewIndex(oldEvents, strategy, opts.Collision)
	newIndex := NewIndex(newEvents, strategy, opts.Collision)

	res := &Result{
		OldCollisions: oldIndex.Collisions,
		NewCollisions: newIndex.Collisions,
	}

	for _, k := range oldIndex.Keys() {
		oldEvent, _ := oldIndex.Get(k)
		newEvent, ok := newIndex.Get(k)
		if !ok {
			c, err := sideOnly(StatusRemoved, k, oldEvent, opts.FPS)
			if err != nil {
				return nil, err
			}
			res.Changes = append(res.Changes, c)
			continue
		}

		c, changed, err := compare(k, oldEvent, newEvent, opts.FPS)
		if err != nil {
			return nil, err
		}
		if changed {
			res.Changes = append(res.Changes, c)
		}
	}

	for _, k := range newIndex.Keys() {
		if _, ok := oldIndex.Get(k); ok {
			continue
		}
		newEvent, _ := newIndex.Get(k)
		c, err := sideOnly(StatusNew, k, newEvent, opts.FPS)
		if err != nil {
			return nil, err
		}
		res.Changes = append(res.Changes, c)
	}

	return res, nil
}

func sideOnly(status Status, k Key, e cmx3600.EditEvent, fps int) (Change, error) {
	d, err := e.Duration(fps)
	if err != nil {
		return Change{}, fmt.Errorf("event %s (line %d): %w", e.EventID, e.Line, err)
	}
	c := Change{Status: status, Key: k}
	if status == StatusRemoved {
		c.Old = &e
		c.OldDuration = d
	} else {
		c.New = &e
		c.NewDuration = d
	}
	return c, nil
}

func compare(k Key, oldEvent, newEvent cmx3600.EditEvent, fps int) (Change, bool, error) {
	if oldEvent.ClipName == newEvent.ClipName &&
		oldEvent.SourceIn == newEvent.SourceIn &&
		oldEvent.SourceOut == newEvent.SourceOut {
		return Change{}, false, nil
	}

	head, err := HeadDelta(oldEvent.SourceIn, newEvent.SourceIn, fps)
	if err != nil {
		return Change{}, false, fmt.Errorf("key %s: %w", k, err)
	}
	tail, err := TailDelta(oldEvent.SourceOut, newEvent.SourceOut, fps)
	if err != nil {
		return Change{}, false, fmt.Errorf("key %s: %w", k, err)
	}
	oldDur, err := oldEvent.Duration(fps)
	if err != nil {
		return Change{}, false, fmt.Errorf("key %s: %w", k, err)
	}
	newDur, err := newEvent.Duration(fps)
	if err != nil {
		return Change{}, false, fmt.Errorf("key %s: %w", k, err)
	}

	return Change{
		Status:      StatusModified,
		Key:         k,
		Old:         &oldEvent,
		New:         &newEvent,
		Head:        head,
		Tail:        tail,
		OldDuration: oldDur,
		NewDuration: newDur,
	}, true, nil
}
