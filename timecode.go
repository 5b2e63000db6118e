// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package cmx3600

import (
	"fmt"
	"strconv"
	"strings"
)

// FramesFromTimecode converts an HH:MM:SS:FF timecode to a frame count at fps.
// The frame field is not checked against fps.
func FramesFromTimecode(tc string, fps int) (int, error) {
	fields, err := splitTimecode(tc)
	if err != nil {
		return 0, err
	}
	h, m, s, f := fields[0], fields[1], fields[2], fields[3]
	return (h*3600+m*60+s)*fps + f, nil
}

// splitTimecode returns the four integer fields of tc.
func splitTimecode(tc string) ([4]int, error) {
	var fields [4]int
	parts := strings.Split(tc, ":")
	if len(parts) != 4 {
		return fields, &TimecodeError{Timecode: tc, Reason: "expected four colon-delimited fields"}
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return fields, &TimecodeError{Timecode: tc, Reason: fmt.Sprintf("field %d is not an integer", i+1)}
		}
		fields[i] = n
	}
	return fields, nil
}

// DurationFrames returns frames(outTC) - frames(inTC). Negative results are returned as is.
func DurationFrames(inTC, outTC string, fps int) (int, error) {
	in, err := FramesFromTimecode(inTC, fps)
	if err != nil {
		return 0, err
	}
	out, err := FramesFromTimecode(outTC, fps)
	if err != nil {
		return 0, err
	}
	return out - in, nil
}

// FormatTimecode converts a non-negative frame count back to HH:MM:SS:FF.
func FormatTimecode(frames, fps int) string {
	if frames < 0 || fps <= 0 {
		return "00:00:00:00"
	}
	f := frames % fps
	totalSeconds := frames / fps
	s := totalSeconds % 60
	m := (totalSeconds / 60) % 60
	h := totalSeconds / 3600
	return fmt.Sprintf("%02d:%02d:%02d:%02d", h, m, s, f)
}
