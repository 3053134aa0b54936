// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package jobs runs the fetch and download operations over the catalog.
package jobs

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ManuGH/echodl/internal/catalog"
	"github.com/ManuGH/echodl/internal/config"
)

var (
	// ErrDownloadsDirMissing is returned when the downloads root does not exist.
	ErrDownloadsDirMissing = errors.New("downloads folder does not exist")
	// ErrTranscoderUnavailable is returned when the remux tool cannot be started.
	ErrTranscoderUnavailable = errors.New("ffmpeg is not available")
	// ErrMissingCredentials is returned by Fetch when either credential is empty.
	ErrMissingCredentials = errors.New("username and password are required")
)

// Credentials for the portal login. The password is never logged.
type Credentials struct {
	Username string
	Password string
}

// Complete reports whether both fields are set.
func (c Credentials) Complete() bool {
	return c.Username != "" && c.Password != ""
}

// FetchDeps holds what a fetch run needs.
type FetchDeps struct {
	Portal config.PortalConfig
	// Client is the base HTTP client; sessions share its transport.
	Client *http.Client
	Store  *catalog.Store
	// ExcludeUnits are skipped before the relay runs.
	ExcludeUnits []string
	// Workers caps concurrent courses and concurrent presentations per course.
	// Zero or less is unbounded.
	Workers int
	// Location is used for recording titles. Nil means time.Local.
	Location *time.Location
}

// FetchResult summarises a fetch run.
type FetchResult struct {
	RunID    string
	Courses  int
	Relayed  int
	Failed   int
	Added    int
	Duration time.Duration
}

// Transcoder runs the external remux tool.
type Transcoder interface {
	Run(ctx context.Context, args []string) error
	Probe(ctx context.Context) error
}

// Publisher mirrors a finished download somewhere else.
type Publisher interface {
	Upload(ctx context.Context, localPath, remoteName string) error
}

// DownloadDeps holds what a download run needs.
type DownloadDeps struct {
	Store      *catalog.Store
	Criteria   catalog.Criteria
	Downloads  string
	Transcoder Transcoder
	// Publisher is optional.
	Publisher Publisher
	// Workers caps concurrent transcoder processes. Zero or less is unbounded.
	Workers int
}

// DownloadResult summarises a download run.
type DownloadResult struct {
	RunID     string
	Queued    int
	Succeeded int
	Failed    int
	Duration  time.Duration
}
