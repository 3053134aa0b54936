// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package capture

import (
	"encoding/json"
	"strings"
)

// SectionData is the section listing returned by the lecture-capture API.
type SectionData struct {
	Section struct {
		UUID   string `json:"uuid"`
		Course struct {
			Identifier string `json:"identifier"`
			Name       string `json:"name"`
		} `json:"course"`
		Presentations struct {
			PageContents []Presentation `json:"pageContents"`
		} `json:"presentations"`
	} `json:"section"`
}

// Presentation is one entry of the section listing.
type Presentation struct {
	UUID       string            `json:"uuid"`
	DurationMS int64             `json:"durationMS"`
	Title      string            `json:"title"`
	StartTime  string            `json:"startTime"`
	Thumbnails []json.RawMessage `json:"thumbnails"`
}

// ThumbnailURLs returns the thumbnails as strings. Entries that are not JSON
// strings are returned as their raw JSON text.
func (p Presentation) ThumbnailURLs() []string {
	out := make([]string, 0, len(p.Thumbnails))
	for _, raw := range p.Thumbnails {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, strings.TrimSpace(string(raw)))
	}
	return out
}

// UnitName is the course display name up to the first '['.
func (d SectionData) UnitName() string {
	name := d.Section.Course.Name
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}
