// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func lookup(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestJobAttributes(t *testing.T) {
	attrs := JobAttributes("fetch", "run-1")
	if v, _ := lookup(attrs, JobTypeKey); v.AsString() != "fetch" {
		t.Errorf("job.type = %q", v.AsString())
	}
	if v, _ := lookup(attrs, JobRunIDKey); v.AsString() != "run-1" {
		t.Errorf("job.run_id = %q", v.AsString())
	}
}

func TestCourseAttributes_SkipsEmpty(t *testing.T) {
	tests := []struct {
		name       string
		id, unit   string
		wantLength int
	}{
		{"both", "_1_1", "CITS1001", 2},
		{"unit only", "", "CITS1001", 1},
		{"none", "", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(CourseAttributes(tt.id, tt.unit)); got != tt.wantLength {
				t.Errorf("Expected %d attributes, got %d", tt.wantLength, got)
			}
		})
	}
}

func TestRecordingAttributes(t *testing.T) {
	attrs := RecordingAttributes("p-1", "CITS1001", 7)
	if len(attrs) != 3 {
		t.Fatalf("Expected 3 attributes, got %d", len(attrs))
	}
	if v, _ := lookup(attrs, RecordingEpisodeKey); v.AsInt64() != 7 {
		t.Errorf("recording.episode = %d", v.AsInt64())
	}
	if _, ok := lookup(attrs, CourseIDKey); ok {
		t.Error("course.id must be omitted when empty")
	}
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes("relay")
	if v, _ := lookup(attrs, ErrorKey); !v.AsBool() {
		t.Error("error flag not set")
	}
	if v, _ := lookup(attrs, ErrorTypeKey); v.AsString() != "relay" {
		t.Errorf("error.type = %q", v.AsString())
	}
}
