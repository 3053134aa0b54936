// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package portal

import "time"

// Membership is one entry of the user's course-membership listing.
type Membership struct {
	CourseID string    `json:"courseId"`
	Created  time.Time `json:"created"`
}

type membershipPage struct {
	Results []Membership `json:"results"`
	Paging  struct {
		NextPage string `json:"nextPage"`
	} `json:"paging"`
}

// Course is the subset of the course detail record used for discovery.
type Course struct {
	ID           string `json:"id"`
	CourseID     string `json:"courseId"`
	Name         string `json:"name"`
	Availability struct {
		Duration struct {
			Type string     `json:"type"`
			End  *time.Time `json:"end"`
		} `json:"duration"`
	} `json:"availability"`
}

// Current reports whether the course has an end date that has not passed.
// Courses without an end date are not current.
func (c Course) Current(now time.Time) bool {
	end := c.Availability.Duration.End
	return end != nil && now.Before(*end)
}
