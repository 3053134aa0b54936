// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRunID       = "run_id"
	FieldCourseID    = "course_id"
	FieldUnit        = "unit"
	FieldRecordingID = "recording_id"
	FieldSectionID   = "section_id"
	FieldUsername    = "username"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"
	FieldDuration  = "duration_ms"

	// Path / URL fields
	FieldPath    = "path"
	FieldURL     = "url"
	FieldBaseURL = "base_url"
	FieldFile    = "file"

	// Counters
	FieldCount     = "count"
	FieldRemaining = "remaining"
)
