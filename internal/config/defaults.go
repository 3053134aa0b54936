// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

const (
	DefaultConfigFile  = "config.json"
	DefaultCatalogFile = "echoes.json"
	DefaultFFmpegBin   = "ffmpeg"
	DefaultWorkers     = 8

	DefaultPortalBaseURL = "https://lms.uwa.edu.au"
	DefaultSSOURL        = "https://sso.uwa.edu.au/siteminderagent/forms/uwalogin.fcc"
	DefaultAgentName     = "GCS23xIxgS7fdRlcwRobZbcKcGiz2HARAVD4LGRn6JtGwfdc1G0BnNt9BwOjIZgtJ9SRUO+9A7TRrHTxoGYqXK0A3Vgwllbu"
	DefaultTarget        = "HTTPS://blackboardsso.webservices.uwa.edu.au/BlackBoardSSO.aspx?env=prod"
	DefaultMarker        = "blackboard"
)

var (
	// MinDate and MaxDate are the open bounds of the date window.
	MinDate = time.Time{}
	MaxDate = time.Date(9999, time.December, 31, 23, 59, 59, 999999900, time.UTC)
)

// Defaults returns the configuration used when no file exists.
func Defaults() AppConfig {
	return AppConfig{
		ExcludeUnits:  []string{},
		ExcludeVenues: []string{},
		After:         MinDate,
		Before:        MaxDate,
		CatalogFile:   DefaultCatalogFile,
		FFmpegBin:     DefaultFFmpegBin,
		Workers:       DefaultWorkers,
		Portal: PortalConfig{
			BaseURL:   DefaultPortalBaseURL,
			SSOURL:    DefaultSSOURL,
			AgentName: DefaultAgentName,
			Target:    DefaultTarget,
			Marker:    DefaultMarker,
		},
		Publish:   PublishConfig{Port: 22, RemoteDir: "/"},
		Telemetry: TelemetryConfig{Exporter: "http", SamplingRate: 1.0},
	}
}
