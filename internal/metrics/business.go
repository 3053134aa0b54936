// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Fetch pipeline
	loginTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echodl_login_total",
		Help: "Portal login attempts by outcome",
	}, []string{"outcome"}) // outcome=success|rejected|error

	coursesDiscovered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "echodl_courses_discovered",
		Help: "Number of current courses discovered in the last fetch",
	})

	relayTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echodl_relay_total",
		Help: "Per-course lecture-capture relay attempts by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	recordingsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "echodl_recordings_added_total",
		Help: "Recordings added to the catalog",
	})

	presentationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echodl_presentation_failures_total",
		Help: "Presentation detail resolutions that failed, by stage",
	}, []string{"stage"}) // stage=detail|frame|venue

	// Download pipeline
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echodl_downloads_total",
		Help: "Completed download jobs by outcome",
	}, []string{"outcome"}) // outcome=success|failure|cancelled

	downloadsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "echodl_downloads_in_flight",
		Help: "Download jobs currently running",
	})

	downloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "echodl_download_duration_seconds",
		Help:    "Wall time of successful download jobs",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 2400},
	})

	publishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echodl_publish_total",
		Help: "SFTP mirror uploads by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	breakerStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "echodl_breaker_state",
		Help: "Circuit breaker state (1 for the current state)",
	}, []string{"name", "state"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echodl_breaker_trips_total",
		Help: "Circuit breaker transitions to open by reason",
	}, []string{"name", "reason"}) // reason=threshold|probe_failed

	// Catalog
	catalogSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echodl_catalog_saves_total",
		Help: "Catalog persistence attempts by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	catalogRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "echodl_catalog_records",
		Help: "Number of recordings in the catalog at last save",
	})

	// Upstream HTTP
	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echodl_upstream_requests_total",
		Help: "Outbound HTTP requests by host and status class",
	}, []string{"host", "class"}) // class=2xx|3xx|4xx|5xx|error

	// Child processes
	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echodl_proc_terminate_total",
		Help: "Signals sent to child process groups by outcome",
	}, []string{"signal", "outcome"}) // outcome=sent|esrch|error
)

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordLogin records a login attempt. outcome is success, rejected or error.
func RecordLogin(outcome string) { loginTotal.WithLabelValues(outcome).Inc() }

func SetCoursesDiscovered(n int) { coursesDiscovered.Set(float64(n)) }

func RecordRelay(ok bool) { relayTotal.WithLabelValues(outcome(ok)).Inc() }

func AddRecordings(n int) {
	if n > 0 {
		recordingsAdded.Add(float64(n))
	}
}

func RecordPresentationFailure(stage string) { presentationFailures.WithLabelValues(stage).Inc() }

// DownloadStarted marks a job as running and returns the func that records its end.
func DownloadStarted() func(outcome string) {
	start := time.Now()
	downloadsInFlight.Inc()
	return func(outcome string) {
		downloadsInFlight.Dec()
		downloadsTotal.WithLabelValues(outcome).Inc()
		if outcome == "success" {
			downloadDuration.Observe(time.Since(start).Seconds())
		}
	}
}

func RecordPublish(ok bool) { publishTotal.WithLabelValues(outcome(ok)).Inc() }

var breakerStates = []string{"closed", "open", "half-open"}

// SetBreakerState marks state as current for the named breaker.
func SetBreakerState(name, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		breakerStateGauge.WithLabelValues(name, s).Set(v)
	}
}

func RecordBreakerTrip(name, reason string) {
	breakerTrips.WithLabelValues(name, reason).Inc()
}

func RecordCatalogSave(ok bool, records int) {
	catalogSaves.WithLabelValues(outcome(ok)).Inc()
	if ok {
		catalogRecords.Set(float64(records))
	}
}

// RecordUpstream records an outbound request. status 0 means transport error.
func RecordUpstream(host string, status int) {
	class := "error"
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status >= 300:
		class = "3xx"
	case status >= 200:
		class = "2xx"
	}
	upstreamRequests.WithLabelValues(host, class).Inc()
}

func IncProcTerminate(signal, outcome string) {
	procTerminateTotal.WithLabelValues(signal, outcome).Inc()
}
