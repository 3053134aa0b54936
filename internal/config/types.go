// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the resolved runtime configuration.
type AppConfig struct {
	ExcludeUnits  []string
	ExcludeVenues []string
	After         time.Time // lower date bound, exclusive
	Before        time.Time // upper date bound, exclusive
	Downloads     string

	CatalogFile       string
	FFmpegBin         string
	Workers           int
	RequestsPerSecond float64
	RequestTimeout    time.Duration
	LogFile           string

	Portal    PortalConfig
	Publish   PublishConfig
	Telemetry TelemetryConfig
}

// PortalConfig holds the fixed SSO handshake parameters of the learning portal.
type PortalConfig struct {
	BaseURL   string
	SSOURL    string
	AgentName string
	Target    string
	// Marker is the substring a response header name must contain after a successful login.
	Marker string
}

// PublishConfig configures the optional SFTP mirror. Host empty means disabled.
type PublishConfig struct {
	Host                  string
	Port                  int
	User                  string
	Password              string
	RemoteDir             string
	InsecureIgnoreHostKey bool
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool
	Exporter     string // "grpc" or "http"
	Endpoint     string
	SamplingRate float64
}

// FileConfig is the on-disk shape. Field names match the files written by
// earlier releases so existing config.json files keep loading.
type FileConfig struct {
	ExcludeUnits  []string `yaml:"excludeUnits" json:"excludeUnits"`
	ExcludeVenues []string `yaml:"excludeVenues" json:"excludeVenues"`
	Before        string   `yaml:"before" json:"before"`
	After         string   `yaml:"after" json:"after"`
	Downloads     string   `yaml:"downloads" json:"downloads"`

	CatalogFile       string   `yaml:"catalogFile,omitempty" json:"catalogFile,omitempty"`
	FFmpeg            string   `yaml:"ffmpeg,omitempty" json:"ffmpeg,omitempty"`
	Workers           *int     `yaml:"workers,omitempty" json:"workers,omitempty"`
	RequestsPerSecond *float64 `yaml:"requestsPerSecond,omitempty" json:"requestsPerSecond,omitempty"`
	RequestTimeout    string   `yaml:"requestTimeout,omitempty" json:"requestTimeout,omitempty"`
	LogFile           string   `yaml:"logFile,omitempty" json:"logFile,omitempty"`

	Portal    *FilePortal    `yaml:"portal,omitempty" json:"portal,omitempty"`
	Publish   *FilePublish   `yaml:"publish,omitempty" json:"publish,omitempty"`
	Telemetry *FileTelemetry `yaml:"telemetry,omitempty" json:"telemetry,omitempty"`
}

type FilePortal struct {
	BaseURL   string `yaml:"baseURL,omitempty" json:"baseURL,omitempty"`
	SSOURL    string `yaml:"ssoURL,omitempty" json:"ssoURL,omitempty"`
	AgentName string `yaml:"agentName,omitempty" json:"agentName,omitempty"`
	Target    string `yaml:"target,omitempty" json:"target,omitempty"`
	Marker    string `yaml:"marker,omitempty" json:"marker,omitempty"`
}

type FilePublish struct {
	Host                  string `yaml:"host,omitempty" json:"host,omitempty"`
	Port                  int    `yaml:"port,omitempty" json:"port,omitempty"`
	User                  string `yaml:"user,omitempty" json:"user,omitempty"`
	Password              string `yaml:"password,omitempty" json:"password,omitempty"`
	RemoteDir             string `yaml:"remoteDir,omitempty" json:"remoteDir,omitempty"`
	InsecureIgnoreHostKey bool   `yaml:"insecureIgnoreHostKey,omitempty" json:"insecureIgnoreHostKey,omitempty"`
}

type FileTelemetry struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter,omitempty" json:"exporter,omitempty"`
	Endpoint     string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
}
