// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by all spans.
const (
	JobTypeKey  = "job.type"
	JobRunIDKey = "job.run_id"

	CourseIDKey   = "course.id"
	CourseUnitKey = "course.unit"

	RecordingIDKey      = "recording.id"
	RecordingEpisodeKey = "recording.episode"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// JobAttributes identifies a fetch or download run.
func JobAttributes(jobType, runID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobTypeKey, jobType),
		attribute.String(JobRunIDKey, runID),
	}
}

// CourseAttributes identifies a course. Empty values are left out.
func CourseAttributes(courseID, unit string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if courseID != "" {
		attrs = append(attrs, attribute.String(CourseIDKey, courseID))
	}
	if unit != "" {
		attrs = append(attrs, attribute.String(CourseUnitKey, unit))
	}
	return attrs
}

// RecordingAttributes identifies a recording being downloaded.
func RecordingAttributes(id, unit string, episode int) []attribute.KeyValue {
	return append(CourseAttributes("", unit),
		attribute.String(RecordingIDKey, id),
		attribute.Int(RecordingEpisodeKey, episode),
	)
}

// ErrorAttributes marks a span as failed with a coarse error class.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
