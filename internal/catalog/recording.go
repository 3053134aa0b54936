// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
)

// legacyDateLayout is how older catalog files stored dates (no zone).
const legacyDateLayout = "2006-01-02T15:04:05.9999999"

// Recording is one captured lecture. ID is the catalog key and is not
// serialized inside the record.
type Recording struct {
	ID string `json:"-"`

	Unit        string    `json:"unit"`
	UnitName    string    `json:"unitName"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Venue       *string   `json:"venue"`
	Thumbnail   *string   `json:"thumbnail"`
	ContentDir  string    `json:"contentDir"`
	Description string    `json:"description"`
	Episode     int       `json:"episode"`
	Date        time.Time `json:"date"`
	Duration    int64     `json:"duration"` // milliseconds
	Downloaded  bool      `json:"downloaded"`
}

// UnmarshalJSON accepts RFC 3339 dates as well as the zone-less form older
// catalogs were written with (read as local time).
func (r *Recording) UnmarshalJSON(b []byte) error {
	type alias Recording
	aux := struct {
		*alias
		Date string `json:"date"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Date == "" {
		r.Date = time.Time{}
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, aux.Date)
	if err != nil {
		t, err = time.ParseInLocation(legacyDateLayout, aux.Date, time.Local)
		if err != nil {
			return fmt.Errorf("recording date %q: %w", aux.Date, err)
		}
	}
	r.Date = t
	return nil
}

// VenueOrEmpty returns the venue, or "" when unknown.
func (r Recording) VenueOrEmpty() string {
	if r.Venue == nil {
		return ""
	}
	return *r.Venue
}

// ShortVenue is the last comma-separated part of the venue with any
// bracketed suffix removed, or "N/A" when unknown.
func (r Recording) ShortVenue() string {
	if r.Venue == nil {
		return "N/A"
	}
	parts := strings.Split(*r.Venue, ",")
	last := parts[len(parts)-1]
	if i := strings.Index(last, "["); i >= 0 {
		last = last[:i]
	}
	return strings.TrimSpace(last)
}

// Extension is the file extension of the source URL without the dot.
func (r Recording) Extension() string {
	p := r.URL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.TrimPrefix(path.Ext(p), ".")
}

// AudioOnly reports whether the recording has no video thumbnail.
func (r Recording) AudioOnly() bool { return r.Thumbnail == nil }
