// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/ManuGH/echodl/internal/catalog"
	"github.com/ManuGH/echodl/internal/infra/ffmpeg"
	xglog "github.com/ManuGH/echodl/internal/log"
	"github.com/ManuGH/echodl/internal/metrics"
	"github.com/ManuGH/echodl/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Download remuxes every matching recording that is not downloaded yet.
// Preconditions are checked once before any job starts: the downloads
// folder must exist and the transcoder must start. Each successful job
// marks its recording downloaded and saves the catalog immediately; a
// failed job removes its partial output and leaves the flag unset.
func Download(ctx context.Context, deps DownloadDeps) (DownloadResult, error) {
	res := DownloadResult{RunID: uuid.NewString()}
	ctx = xglog.ContextWithRunID(ctx, res.RunID)
	logger := xglog.WithComponentFromContext(ctx, "jobs")
	start := time.Now()

	queue := deps.Store.Filter(deps.Criteria.WithDownloaded(false))
	res.Queued = len(queue)
	if len(queue) == 0 {
		logger.Info().Str(xglog.FieldEvent, "download.empty").Msg("no lectures to download")
		return res, nil
	}

	if err := checkDownloadsDir(deps.Downloads); err != nil {
		logger.Error().Err(err).Str(xglog.FieldPath, deps.Downloads).Str(xglog.FieldEvent, "download.precondition").
			Msg("downloads folder does not exist, please set it in the configuration file")
		return res, err
	}
	if err := deps.Transcoder.Probe(ctx); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "download.precondition").
			Msg("ffmpeg is not installed or not on the PATH")
		return res, fmt.Errorf("%w: %w", ErrTranscoderUnavailable, err)
	}

	ctx, span := telemetry.Tracer("echodl/jobs").Start(ctx, "jobs.download",
		trace.WithAttributes(telemetry.JobAttributes("download", res.RunID)...))
	defer span.End()

	logger.Info().Int(xglog.FieldCount, len(queue)).Str(xglog.FieldEvent, "download.start").
		Msgf("Downloading %d lecture(s)", len(queue))

	var (
		remaining atomic.Int64
		succeeded atomic.Int64
		names     = newReservations()
	)
	remaining.Store(int64(len(queue)))

	// Jobs never return errors so one failure does not cancel its siblings.
	var g errgroup.Group
	if deps.Workers > 0 {
		g.SetLimit(deps.Workers)
	}
	for _, rec := range queue {
		g.Go(func() error {
			if downloadOne(ctx, deps, names, rec) {
				succeeded.Add(1)
			}
			left := remaining.Add(-1)
			logger.Info().Int64(xglog.FieldRemaining, left).Str(xglog.FieldEvent, "download.queue").
				Msgf("%d lecture(s) in the download queue", left)
			return nil
		})
	}
	_ = g.Wait()

	res.Succeeded = int(succeeded.Load())
	res.Failed = res.Queued - res.Succeeded
	res.Duration = time.Since(start)
	if res.Failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d failed", res.Failed))
	}

	logger.Info().
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Int64(xglog.FieldDuration, res.Duration.Milliseconds()).
		Str(xglog.FieldEvent, "download.done").
		Msg("Finished downloading lectures")
	return res, nil
}

func checkDownloadsDir(dir string) error {
	if dir == "" {
		return ErrDownloadsDirMissing
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrDownloadsDirMissing, dir)
		}
		return fmt.Errorf("%w: %w", ErrDownloadsDirMissing, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrDownloadsDirMissing, dir)
	}
	return nil
}

// downloadOne runs a single job and reports success.
func downloadOne(ctx context.Context, deps DownloadDeps, names *reservations, rec catalog.Recording) bool {
	done := metrics.DownloadStarted()
	dest := names.reserve(deps.Downloads, rec)
	defer names.release(dest)

	fileName := filepath.Base(dest)
	logger := xglog.WithComponentFromContext(ctx, "jobs").With().
		Str(xglog.FieldRecordingID, rec.ID).
		Str(xglog.FieldUnit, rec.Unit).
		Str(xglog.FieldFile, fileName).
		Logger()

	ctx, span := telemetry.Tracer("echodl/jobs").Start(ctx, "jobs.download.recording",
		trace.WithAttributes(telemetry.RecordingAttributes(rec.ID, rec.Unit, rec.Episode)...))
	defer span.End()

	err := transcode(ctx, deps.Transcoder, dest, rec, logger)
	if err != nil {
		if rmErr := os.Remove(dest); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			logger.Debug().Err(rmErr).Msg("failed to remove partial download")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "transcode")
		outcome := "failed"
		if ctx.Err() != nil {
			outcome = "cancelled"
		}
		done(outcome)
		logger.Error().Err(err).Str(xglog.FieldEvent, "download.failed").
			Msgf("Failed to download %q", fileName)
		return false
	}

	deps.Store.Update(rec.ID, func(r *catalog.Recording) { r.Downloaded = true })
	if err := deps.Store.Save(); err != nil {
		logger.Error().Err(err).Str(xglog.FieldPath, deps.Store.Path()).Msg("failed to save the catalog")
	}
	done("success")
	logger.Info().Str(xglog.FieldEvent, "download.success").Msgf("Successfully downloaded %q", fileName)

	publish(ctx, deps.Publisher, dest, rec, logger)
	return true
}

func transcode(ctx context.Context, tc Transcoder, dest string, rec catalog.Recording, logger zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create unit folder: %w", err)
	}
	args := ffmpeg.BuildArgs(ffmpeg.Job{
		Input:  rec.URL,
		Output: dest,
		Meta: ffmpeg.Metadata{
			Show:        rec.Unit + " - " + rec.UnitName,
			Title:       rec.Title + " - " + rec.Description,
			EpisodeSort: rec.Episode,
			Description: rec.Description,
		},
	})
	logger.Debug().Strs("args", args).Msg("executing ffmpeg")
	return tc.Run(ctx, args)
}

// publish mirrors a finished download. Failures do not undo the download.
func publish(ctx context.Context, p Publisher, dest string, rec catalog.Recording, logger zerolog.Logger) {
	if p == nil {
		return
	}
	remote := path.Join(cleanName(rec.Unit, "unit"), filepath.Base(dest))
	if err := p.Upload(ctx, dest, remote); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "download.publish_failed").Msg("failed to publish download")
		return
	}
	logger.Debug().Str(xglog.FieldPath, remote).Str(xglog.FieldEvent, "download.published").Msg("published download")
}
