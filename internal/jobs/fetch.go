// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ManuGH/echodl/internal/capture"
	"github.com/ManuGH/echodl/internal/catalog"
	xglog "github.com/ManuGH/echodl/internal/log"
	"github.com/ManuGH/echodl/internal/metrics"
	"github.com/ManuGH/echodl/internal/portal"
	"github.com/ManuGH/echodl/internal/relay"
	"github.com/ManuGH/echodl/internal/session"
	"github.com/ManuGH/echodl/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Fetch logs into the portal, discovers the current courses and adds every
// new presentation to the store. The store is saved only when something was
// added. Login failure ends the run; a failed course discovery is logged and
// yields an empty run; per-course failures are logged and isolated.
func Fetch(ctx context.Context, deps FetchDeps, creds Credentials) (FetchResult, error) {
	res := FetchResult{RunID: uuid.NewString()}
	ctx = xglog.ContextWithRunID(ctx, res.RunID)
	logger := xglog.WithComponentFromContext(ctx, "jobs")
	start := time.Now()

	if !creds.Complete() {
		return res, ErrMissingCredentials
	}

	ctx, span := telemetry.Tracer("echodl/jobs").Start(ctx, "jobs.fetch",
		trace.WithAttributes(telemetry.JobAttributes("fetch", res.RunID)...))
	defer span.End()

	sess, err := session.New(creds.Username, deps.Portal.BaseURL, deps.Client)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session")
		return res, fmt.Errorf("create session: %w", err)
	}

	lms := portal.New(deps.Portal, sess)
	if err := lms.Login(ctx, creds.Password); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login")
		logger.Error().Err(err).Str(xglog.FieldEvent, "fetch.login_failed").
			Msg("unable to fetch lectures without LMS login")
		return res, err
	}

	units, err := lms.Courses(ctx)
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "fetch.courses_failed").Msg("failed to load units")
		units = map[string]string{}
	}

	exclude := catalog.Criteria{ExcludeUnits: deps.ExcludeUnits}
	courseIDs := make([]string, 0, len(units))
	for id, unit := range units {
		if exclude.ExcludesUnit(unit) {
			logger.Debug().Str(xglog.FieldCourseID, id).Str(xglog.FieldUnit, unit).Msg("skipping excluded unit")
			continue
		}
		courseIDs = append(courseIDs, id)
	}
	sort.Strings(courseIDs)
	res.Courses = len(courseIDs)

	var relayed, failed, added atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	if deps.Workers > 0 {
		g.SetLimit(deps.Workers)
	}
	for _, id := range courseIDs {
		g.Go(func() error {
			n, err := fetchCourse(gctx, deps, sess, id, units[id])
			if err != nil {
				failed.Add(1)
				return nil
			}
			relayed.Add(1)
			added.Add(int64(n))
			return nil
		})
	}
	_ = g.Wait()

	res.Relayed = int(relayed.Load())
	res.Failed = int(failed.Load())
	res.Added = int(added.Load())
	res.Duration = time.Since(start)

	if res.Added > 0 {
		logger.Info().Int(xglog.FieldCount, res.Added).Str(xglog.FieldEvent, "fetch.added").
			Msgf("Fetched %d lectures", res.Added)
		if err := deps.Store.Save(); err != nil {
			span.RecordError(err)
			logger.Error().Err(err).Str(xglog.FieldFile, deps.Store.Path()).Msg("failed to save the catalog")
			return res, err
		}
	}

	logger.Debug().
		Int("courses", res.Courses).
		Int("relayed", res.Relayed).
		Int("failed", res.Failed).
		Int64(xglog.FieldDuration, res.Duration.Milliseconds()).
		Str(xglog.FieldEvent, "fetch.done").
		Msg("fetch finished")
	return res, ctx.Err()
}

// fetchCourse relays one course on a forked session and extracts its
// presentations. Errors are logged here.
func fetchCourse(ctx context.Context, deps FetchDeps, sess *session.Session, courseID, unit string) (int, error) {
	ctx = xglog.ContextWithCourseID(ctx, courseID)
	logger := xglog.WithComponentFromContext(ctx, "jobs").With().Str(xglog.FieldUnit, unit).Logger()

	ctx, span := telemetry.Tracer("echodl/jobs").Start(ctx, "jobs.fetch.course",
		trace.WithAttributes(telemetry.CourseAttributes(courseID, unit)...))
	defer span.End()

	fail := func(stage string, err error) (int, error) {
		span.RecordError(err)
		span.SetAttributes(telemetry.ErrorAttributes(stage)...)
		span.SetStatus(codes.Error, stage)
		logger.Error().Err(err).Str(xglog.FieldStage, stage).Str(xglog.FieldEvent, "fetch.course_failed").
			Msg("failed to fetch unit")
		return 0, err
	}

	fork, err := sess.Fork()
	if err != nil {
		return fail("session", err)
	}

	section, err := relay.New(fork).Resolve(ctx, courseID)
	metrics.RecordRelay(err == nil)
	if err != nil {
		return fail("relay", err)
	}

	ex := capture.NewExtractor(fork.Client(), deps.Store, deps.Workers)
	if deps.Location != nil {
		ex.Location = deps.Location
	}
	n, err := ex.Course(ctx, section)
	if err != nil {
		return fail("listing", err)
	}

	logger.Debug().Int(xglog.FieldCount, n).Str(xglog.FieldSectionID, section.ID).
		Str(xglog.FieldEvent, "fetch.course_done").Msg("unit fetched")
	return n, nil
}
