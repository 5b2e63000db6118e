// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package cmx3600

import (
	"regexp"
	"strings"
)

// locatorTagRegex matches a structured shot tag such as abc_001_0002.
// The prefix accepts any Unicode letter or digit, not just ASCII.
var locatorTagRegex = regexp.MustCompile(`[\p{L}\p{N}_]{3}_\p{Nd}{3}_\p{Nd}{4}`)

// locatorWindow is how many trailing characters of a LOC line are searched for a tag.
const locatorWindow = 20

// tagDisplayLength is the maximum number of characters shown for a tag.
const tagDisplayLength = 12

// ExtractLocatorTag returns the shot tag near the end of a LOC annotation line.
// Only the last 20 characters are examined; ok is false when no tag is present.
func ExtractLocatorTag(line string) (tag string, ok bool) {
	r := []rune(line)
	if len(r) > locatorWindow {
		r = r[len(r)-locatorWindow:]
	}
	tag = locatorTagRegex.FindString(string(r))
	return tag, tag != ""
}

// DisplayTag returns at most the last 12 characters of tag.
func DisplayTag(tag string) string {
	r := []rune(tag)
	if len(r) <= tagDisplayLength {
		return tag
	}
	return string(r[len(r)-tagDisplayLength:])
}

// JoinTags renders tags for display, separated by ", ".
func JoinTags(tags []string) string {
	shown := make([]string, len(tags))
	for i, t := range tags {
		shown[i] = DisplayTag(t)
	}
	return strings.Join(shown, ", ")
}
