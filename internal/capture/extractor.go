// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package capture reads a course's presentations from the lecture-capture
// service and turns new ones into catalog recordings.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/ManuGH/echodl/internal/catalog"
	"github.com/ManuGH/echodl/internal/log"
	"github.com/ManuGH/echodl/internal/metrics"
	"github.com/ManuGH/echodl/internal/platform/httpx"
	"github.com/ManuGH/echodl/internal/relay"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// SectionPageSize is large enough to list every presentation of a semester.
const SectionPageSize = 999

// Extractor fetches section listings and presentation details.
type Extractor struct {
	client *http.Client
	store  *catalog.Store
	logger zerolog.Logger

	// Location is used for titles and zone-less start times.
	Location *time.Location
	// Workers caps concurrent detail fetches per course. Zero or less is unbounded.
	Workers int
}

// NewExtractor binds an extractor to the HTTP client of a relayed session.
func NewExtractor(client *http.Client, store *catalog.Store, workers int) *Extractor {
	return &Extractor{
		client:   client,
		store:    store,
		logger:   log.WithComponent("capture"),
		Location: time.Local,
		Workers:  workers,
	}
}

// SectionData fetches the presentation listing for a relayed section.
func (e *Extractor) SectionData(ctx context.Context, sec relay.Section) (SectionData, error) {
	var data SectionData
	if err := httpx.GetJSON(ctx, e.client, sec.SectionDataURL(SectionPageSize), &data); err != nil {
		return SectionData{}, fmt.Errorf("section %s: %w", sec.ID, err)
	}
	return data, nil
}

// Course lists the section and adds every presentation not yet in the store.
// It returns the number of recordings added. Individual presentation
// failures are logged and skipped; only the listing itself can fail.
func (e *Extractor) Course(ctx context.Context, sec relay.Section) (int, error) {
	data, err := e.SectionData(ctx, sec)
	if err != nil {
		return 0, err
	}
	return e.Extract(ctx, sec.Base, data), nil
}

// Extract resolves the presentations of data concurrently and stores new
// recordings. Episode numbers count down from the listing length.
func (e *Extractor) Extract(ctx context.Context, base *url.URL, data SectionData) int {
	logger := log.WithContext(ctx, e.logger).With().
		Str(log.FieldUnit, data.Section.Course.Identifier).
		Str(log.FieldSectionID, data.Section.UUID).
		Logger()

	presentations := data.Section.Presentations.PageContents
	unitName := data.UnitName()
	total := len(presentations)

	var added atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	if e.Workers > 0 {
		g.SetLimit(e.Workers)
	}
	for i, p := range presentations {
		if p.UUID == "" || e.store.Has(p.UUID) {
			continue
		}
		skeleton := catalog.Recording{
			Unit:     data.Section.Course.Identifier,
			UnitName: unitName,
			Episode:  total - i,
		}
		g.Go(func() error {
			rec, err := e.populate(gctx, base, p, skeleton)
			if err != nil {
				logger.Warn().Err(err).
					Str(log.FieldRecordingID, p.UUID).
					Str(log.FieldEvent, "capture.presentation_failed").
					Msg("failed to add presentation")
				return nil
			}
			if e.store.PutIfAbsent(p.UUID, rec) {
				added.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	n := int(added.Load())
	metrics.AddRecordings(n)
	logger.Debug().Int(log.FieldCount, n).Int("listed", total).Msg("extracted presentations")
	return n
}

func (e *Extractor) populate(ctx context.Context, base *url.URL, p Presentation, rec catalog.Recording) (catalog.Recording, error) {
	// Player frame on the presentation page carries the media directories.
	detail := base.JoinPath("/ess/echo/presentation", p.UUID)
	resp, body, err := httpx.Get(ctx, e.client, detail.String())
	if err != nil {
		metrics.RecordPresentationFailure("detail")
		return rec, fmt.Errorf("presentation page: %w", err)
	}
	src, err := relay.ParseFrameSource(bytes.NewReader(body))
	if err != nil {
		metrics.RecordPresentationFailure("frame")
		return rec, fmt.Errorf("presentation page: %w", err)
	}
	frame, err := resp.Request.URL.Parse(src)
	if err != nil {
		metrics.RecordPresentationFailure("frame")
		return rec, fmt.Errorf("player frame %q: %w", src, err)
	}
	contentDir, streamDir, err := presentationDirs(frame)
	if err != nil {
		metrics.RecordPresentationFailure("frame")
		return rec, err
	}
	stream, err := StreamURL(streamDir)
	if err != nil {
		metrics.RecordPresentationFailure("frame")
		return rec, err
	}

	_, body, err = httpx.Get(ctx, e.client, contentDir+"presentation.xml")
	if err != nil {
		metrics.RecordPresentationFailure("venue")
		return rec, fmt.Errorf("presentation.xml: %w", err)
	}
	venue, err := ParseVenue(bytes.NewReader(body))
	if err != nil {
		metrics.RecordPresentationFailure("venue")
		return rec, err
	}

	start, err := ParseStartTime(p.StartTime, e.Location)
	if err != nil {
		metrics.RecordPresentationFailure("detail")
		return rec, err
	}

	rec.ContentDir = contentDir
	rec.URL = stream
	rec.Venue = venue
	rec.Duration = p.DurationMS
	rec.Description = p.Title
	rec.Date = start
	rec.Title = Title(start, e.Location)
	rec.Thumbnail = PickThumbnail(p.ThumbnailURLs())
	if rec.Thumbnail == nil {
		rec.URL = AudioURL(contentDir)
	}
	return rec, nil
}
