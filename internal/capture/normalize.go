// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package capture

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	streamPort      = "1935"
	streamContainer = "mp4:audio-vga-streamable.m4v/playlist.m3u8"
	audioFile       = "audio.mp3"
	thumbnailMarker = "low"
)

var startTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// OrdinalSuffix returns the English ordinal suffix for a day of month.
func OrdinalSuffix(day int) string {
	switch day {
	case 1, 21, 31:
		return "st"
	case 2, 22:
		return "nd"
	case 3, 23:
		return "rd"
	default:
		return "th"
	}
}

// Title formats t as "March 5th (Tuesday)" in loc.
func Title(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("%s %d%s (%s)", t.Month(), t.Day(), OrdinalSuffix(t.Day()), t.Weekday())
}

// StreamURL builds the HLS playlist URL from the presentation's streamDir:
// plain http on the streaming port, streamDir's path and query, then the
// fixed container path.
func StreamURL(streamDir string) (string, error) {
	u, err := url.Parse(streamDir)
	if err != nil {
		return "", fmt.Errorf("parse streamDir: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("streamDir %q has no host", streamDir)
	}
	pathAndQuery := u.EscapedPath()
	if pathAndQuery == "" {
		pathAndQuery = "/"
	}
	if u.RawQuery != "" {
		pathAndQuery += "?" + u.RawQuery
	}
	return "http://" + u.Hostname() + ":" + streamPort + pathAndQuery + streamContainer, nil
}

// AudioURL is the audio-only source under a content directory.
func AudioURL(contentDir string) string {
	return contentDir + audioFile
}

// PickThumbnail returns the first low-resolution thumbnail, or nil when the
// presentation has none (audio-only).
func PickThumbnail(thumbs []string) *string {
	for _, t := range thumbs {
		if strings.Contains(t, thumbnailMarker) {
			return &t
		}
	}
	return nil
}

// ParseStartTime parses presentation start times. Zone-less values are read in loc.
func ParseStartTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	var lastErr error
	for _, layout := range startTimeLayouts {
		t, err := time.ParseInLocation(layout, strings.TrimSpace(s), loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("parse startTime %q: %w", s, lastErr)
}

// presentationDirs extracts contentDir and streamDir from the player frame URL.
func presentationDirs(frame *url.URL) (contentDir, streamDir string, err error) {
	q := frame.Query()
	contentDir = q.Get("contentDir")
	streamDir = q.Get("streamDir")
	if contentDir == "" || streamDir == "" {
		return "", "", fmt.Errorf("player frame %s lacks contentDir or streamDir", frame.Redacted())
	}
	return contentDir, streamDir, nil
}
