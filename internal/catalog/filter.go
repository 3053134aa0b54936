// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Criteria selects recordings. All set criteria must hold.
type Criteria struct {
	ExcludeUnits  []string
	ExcludeVenues []string
	// After and Before are exclusive bounds on the recording date.
	// Zero After and zero Before mean unbounded.
	After  time.Time
	Before time.Time
	// Downloaded, when set, must equal the recording's flag.
	Downloaded *bool
}

// WithDownloaded returns a copy of c that also requires the downloaded flag to be v.
func (c Criteria) WithDownloaded(v bool) Criteria {
	c.Downloaded = &v
	return c
}

// Match reports whether r satisfies every criterion.
func (c Criteria) Match(r Recording) bool {
	return c.compile().match(r)
}

// ExcludesUnit reports whether a unit code matches one of the unit exclusions.
func (c Criteria) ExcludesUnit(unit string) bool {
	m := c.compile()
	return m.containsAny(unit, m.units)
}

type matcher struct {
	c      Criteria
	fold   cases.Caser
	units  []string
	venues []string
}

func (c Criteria) compile() *matcher {
	m := &matcher{c: c, fold: cases.Fold()}
	m.units = m.foldAll(c.ExcludeUnits)
	m.venues = m.foldAll(c.ExcludeVenues)
	return m
}

// foldAll folds each needle. Blank needles are dropped; they would
// otherwise exclude everything.
func (m *matcher) foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, m.foldString(s))
	}
	return out
}

func (m *matcher) foldString(s string) string {
	return m.fold.String(norm.NFC.String(s))
}

func (m *matcher) containsAny(haystack string, needles []string) bool {
	if len(needles) == 0 {
		return false
	}
	h := m.foldString(haystack)
	for _, n := range needles {
		if strings.Contains(h, n) {
			return true
		}
	}
	return false
}

func (m *matcher) match(r Recording) bool {
	if m.c.Downloaded != nil && *m.c.Downloaded != r.Downloaded {
		return false
	}
	if m.containsAny(r.Unit, m.units) {
		return false
	}
	if m.containsAny(r.VenueOrEmpty(), m.venues) {
		return false
	}
	if !m.c.Before.IsZero() && !r.Date.Before(m.c.Before) {
		return false
	}
	if !m.c.After.IsZero() && !r.Date.After(m.c.After) {
		return false
	}
	return true
}

// Filter returns the matching recordings ordered by date, then id.
func (s *Store) Filter(c Criteria) []Recording {
	m := c.compile()

	s.mu.RLock()
	out := make([]Recording, 0, len(s.records))
	for _, r := range s.records {
		if m.match(r) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SetDownloaded sets the downloaded flag of every recording matching c
// (regardless of its current flag) and returns how many were changed.
// The caller saves.
func (s *Store) SetDownloaded(c Criteria, v bool) int {
	c.Downloaded = nil
	m := c.compile()

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.records {
		if !m.match(r) {
			continue
		}
		if r.Downloaded != v {
			n++
		}
		r.Downloaded = v
		s.records[id] = r
	}
	return n
}
