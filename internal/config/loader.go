// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/echodl/internal/log"
	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// dateLayouts are tried in order when parsing the date window bounds. The
// second form is what older releases wrote (no zone, seven fractional digits).
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath string
}

// NewLoader creates a new configuration loader.
func NewLoader(configPath string) *Loader {
	if strings.TrimSpace(configPath) == "" {
		configPath = DefaultConfigFile
	}
	return &Loader{configPath: configPath}
}

// Path returns the config file location.
func (l *Loader) Path() string { return l.configPath }

// Load resolves the configuration. A missing or unreadable file is replaced by
// the defaults, which are written back so the user has something to edit.
// A file that does not parse is kept as <path>.bad before the defaults are
// written. Unknown fields and invalid values are errors.
func (l *Loader) Load() (AppConfig, error) {
	logger := log.WithComponent("config")
	cfg := Defaults()

	fileCfg, err := l.loadFile(l.configPath)
	switch {
	case err == nil:
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	case errors.Is(err, errUnreadable):
		logger.Warn().Err(err).Str(log.FieldPath, l.configPath).Str(log.FieldEvent, "config.unreadable").Msg("unable to read config file")
		if werr := Save(l.configPath, cfg); werr != nil {
			return cfg, fmt.Errorf("write default config: %w", werr)
		}
		logger.Info().
			Str(log.FieldPath, l.configPath).
			Str(log.FieldEvent, "config.default_written").
			Msg("written new configuration file, please add the downloads folder to it")
	case errors.Is(err, errCorrupt):
		backup := l.configPath + ".bad"
		logger.Warn().Err(err).Str(log.FieldPath, l.configPath).Str("backup", backup).
			Str(log.FieldEvent, "config.corrupt").Msg("config file is corrupt, replacing it with defaults")
		if rerr := os.Rename(l.configPath, backup); rerr != nil {
			return cfg, fmt.Errorf("keep corrupt config: %w", rerr)
		}
		if werr := Save(l.configPath, cfg); werr != nil {
			return cfg, fmt.Errorf("write default config: %w", werr)
		}
	default:
		return cfg, fmt.Errorf("load config file: %w", err)
	}

	mergeEnvConfig(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var (
	errUnreadable = errors.New("config file unreadable")
	errCorrupt    = errors.New("config file corrupt")
)

func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", errUnreadable, path)
		}
		return nil, fmt.Errorf("%w: %v", errUnreadable, err)
	}

	// JSON is a subset of YAML; the strict YAML decoder rejects unknown keys.
	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("%w: %w", errCorrupt, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("%w: multiple documents or trailing content", errCorrupt)
	}
	return &fileCfg, nil
}

func mergeFileConfig(dst *AppConfig, src *FileConfig) error {
	if src.ExcludeUnits != nil {
		dst.ExcludeUnits = src.ExcludeUnits
	}
	if src.ExcludeVenues != nil {
		dst.ExcludeVenues = src.ExcludeVenues
	}
	if src.After != "" {
		t, err := ParseDate(src.After)
		if err != nil {
			return fmt.Errorf("after: %w", err)
		}
		dst.After = t
	}
	if src.Before != "" {
		t, err := ParseDate(src.Before)
		if err != nil {
			return fmt.Errorf("before: %w", err)
		}
		dst.Before = t
	}
	dst.Downloads = src.Downloads
	if src.CatalogFile != "" {
		dst.CatalogFile = src.CatalogFile
	}
	if src.FFmpeg != "" {
		dst.FFmpegBin = src.FFmpeg
	}
	if src.Workers != nil {
		dst.Workers = *src.Workers
	}
	if src.RequestsPerSecond != nil {
		dst.RequestsPerSecond = *src.RequestsPerSecond
	}
	if src.RequestTimeout != "" {
		d, err := time.ParseDuration(src.RequestTimeout)
		if err != nil {
			return fmt.Errorf("requestTimeout: %w", err)
		}
		dst.RequestTimeout = d
	}
	if src.LogFile != "" {
		dst.LogFile = src.LogFile
	}
	if p := src.Portal; p != nil {
		setIfNotEmpty(&dst.Portal.BaseURL, p.BaseURL)
		setIfNotEmpty(&dst.Portal.SSOURL, p.SSOURL)
		setIfNotEmpty(&dst.Portal.AgentName, p.AgentName)
		setIfNotEmpty(&dst.Portal.Target, p.Target)
		setIfNotEmpty(&dst.Portal.Marker, p.Marker)
	}
	if p := src.Publish; p != nil {
		setIfNotEmpty(&dst.Publish.Host, p.Host)
		setIfNotEmpty(&dst.Publish.User, p.User)
		setIfNotEmpty(&dst.Publish.Password, p.Password)
		setIfNotEmpty(&dst.Publish.RemoteDir, p.RemoteDir)
		if p.Port > 0 {
			dst.Publish.Port = p.Port
		}
		dst.Publish.InsecureIgnoreHostKey = p.InsecureIgnoreHostKey
	}
	if t := src.Telemetry; t != nil {
		dst.Telemetry.Enabled = t.Enabled
		setIfNotEmpty(&dst.Telemetry.Exporter, t.Exporter)
		setIfNotEmpty(&dst.Telemetry.Endpoint, t.Endpoint)
		if t.SamplingRate > 0 {
			dst.Telemetry.SamplingRate = t.SamplingRate
		}
	}
	return nil
}

func setIfNotEmpty(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func mergeEnvConfig(cfg *AppConfig) {
	cfg.Downloads = ParseString(EnvDownloads, cfg.Downloads)
	cfg.CatalogFile = ParseString(EnvCatalog, cfg.CatalogFile)
	cfg.FFmpegBin = ParseString(EnvFFmpeg, cfg.FFmpegBin)
	cfg.Workers = ParseInt(EnvWorkers, cfg.Workers)
	cfg.RequestsPerSecond = ParseFloat(EnvRPS, cfg.RequestsPerSecond)
	cfg.LogFile = ParseString(EnvLogFile, cfg.LogFile)
	cfg.RequestTimeout = ParseDuration(EnvTimeout, cfg.RequestTimeout)
}

// Validate checks value ranges that would otherwise surface as confusing runtime errors.
func Validate(cfg AppConfig) error {
	if cfg.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0 (0 = unbounded), got %d", ErrInvalidConfig, cfg.Workers)
	}
	if cfg.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requestsPerSecond must be >= 0, got %v", ErrInvalidConfig, cfg.RequestsPerSecond)
	}
	if !cfg.Before.After(cfg.After) {
		return fmt.Errorf("%w: before (%s) must be later than after (%s)", ErrInvalidConfig,
			cfg.Before.Format(time.RFC3339), cfg.After.Format(time.RFC3339))
	}
	if strings.TrimSpace(cfg.CatalogFile) == "" {
		return fmt.Errorf("%w: catalogFile is empty", ErrInvalidConfig)
	}
	return nil
}

// ParseDate parses a date bound in any of the accepted layouts. Zone-less values are local time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("invalid date %q: %w", s, lastErr)
}

// ToFile converts the runtime config back into its on-disk shape.
func ToFile(cfg AppConfig) FileConfig {
	workers := cfg.Workers
	out := FileConfig{
		ExcludeUnits:  nonNil(cfg.ExcludeUnits),
		ExcludeVenues: nonNil(cfg.ExcludeVenues),
		Before:        cfg.Before.Format(time.RFC3339Nano),
		After:         cfg.After.Format(time.RFC3339Nano),
		Downloads:     cfg.Downloads,
		CatalogFile:   cfg.CatalogFile,
		FFmpeg:        cfg.FFmpegBin,
		Workers:       &workers,
		LogFile:       cfg.LogFile,
		Portal: &FilePortal{
			BaseURL:   cfg.Portal.BaseURL,
			SSOURL:    cfg.Portal.SSOURL,
			AgentName: cfg.Portal.AgentName,
			Target:    cfg.Portal.Target,
			Marker:    cfg.Portal.Marker,
		},
	}
	if cfg.RequestsPerSecond > 0 {
		rps := cfg.RequestsPerSecond
		out.RequestsPerSecond = &rps
	}
	if cfg.RequestTimeout > 0 {
		out.RequestTimeout = cfg.RequestTimeout.String()
	}
	if cfg.Publish.Host != "" {
		p := FilePublish(cfg.Publish)
		out.Publish = &p
	}
	if cfg.Telemetry.Enabled {
		t := FileTelemetry(cfg.Telemetry)
		out.Telemetry = &t
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Save writes cfg to path as indented JSON, replacing the file atomically.
func Save(path string, cfg AppConfig) error {
	data, err := json.MarshalIndent(ToFile(cfg), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := renameio.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
