// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package portal talks to the learning-management portal: the SSO login
// and the course-membership API.
package portal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/echodl/internal/config"
	"github.com/ManuGH/echodl/internal/log"
	"github.com/ManuGH/echodl/internal/metrics"
	"github.com/ManuGH/echodl/internal/platform/httpx"
	"github.com/ManuGH/echodl/internal/session"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	membershipLimit = 200
	// maxMembershipPages stops a paging loop on a misbehaving server.
	maxMembershipPages = 20
	courseLookupWidth  = 4
)

// Client performs portal calls on behalf of one session.
type Client struct {
	cfg    config.PortalConfig
	sess   *session.Session
	logger zerolog.Logger

	// Now is the clock used for the current-year and expiry checks.
	Now func() time.Time
}

func New(cfg config.PortalConfig, sess *session.Session) *Client {
	return &Client{
		cfg:    cfg,
		sess:   sess,
		logger: log.WithComponent("portal"),
		Now:    time.Now,
	}
}

// HasPortalMarker reports whether any response header name contains marker,
// case-insensitively. It is the only login success signal the SSO offers.
func HasPortalMarker(h http.Header, marker string) bool {
	marker = strings.ToLower(marker)
	if marker == "" {
		return false
	}
	for name := range h {
		if strings.Contains(strings.ToLower(name), marker) {
			return true
		}
	}
	return false
}

// Login submits the SSO form. On success the session jar holds the portal
// cookies. Any failure wraps ErrNotAuthenticated; there are no retries.
func (c *Client) Login(ctx context.Context, password string) error {
	logger := log.WithContext(ctx, c.logger).With().Str(log.FieldUsername, c.sess.Username).Logger()

	form := url.Values{
		"PASSWORD":    {password},
		"USER":        {c.sess.Username},
		"smagentname": {c.cfg.AgentName},
		"target":      {c.cfg.Target},
	}
	resp, _, err := httpx.PostForm(ctx, c.sess.Client(), c.cfg.SSOURL, form)
	if resp == nil && err != nil {
		metrics.RecordLogin("error")
		logger.Warn().Err(err).Str(log.FieldEvent, "portal.login_failed").Msg("failed to login to the portal")
		return &UpstreamError{Sentinel: ErrNotAuthenticated, Operation: "login", Err: Classify("login", err)}
	}

	if !HasPortalMarker(resp.Header, c.cfg.Marker) {
		metrics.RecordLogin("rejected")
		logger.Warn().
			Int("status", resp.StatusCode).
			Str(log.FieldEvent, "portal.login_rejected").
			Msg("failed to login to the portal")
		return &UpstreamError{Sentinel: ErrNotAuthenticated, Operation: "login", Status: resp.StatusCode}
	}

	metrics.RecordLogin("success")
	logger.Info().Str(log.FieldEvent, "portal.login").Msg("logged into the portal")
	return nil
}

// Memberships lists every course membership, following paging links.
func (c *Client) Memberships(ctx context.Context) ([]Membership, error) {
	next := fmt.Sprintf("/learn/api/public/v1/users/userName:%s/courses?&limit=%d",
		url.PathEscape(c.sess.Username), membershipLimit)

	var all []Membership
	for page := 0; next != "" && page < maxMembershipPages; page++ {
		var p membershipPage
		if err := httpx.GetJSON(ctx, c.sess.Client(), c.sess.Resolve(next), &p); err != nil {
			return nil, Classify("memberships", err)
		}
		all = append(all, p.Results...)
		next = p.Paging.NextPage
	}
	return all, nil
}

// Course fetches one course detail record.
func (c *Client) Course(ctx context.Context, courseID string) (Course, error) {
	var course Course
	path := "/learn/api/public/v1/courses/" + url.PathEscape(courseID)
	if err := httpx.GetJSON(ctx, c.sess.Client(), c.sess.Resolve(path), &course); err != nil {
		return Course{}, Classify("course "+courseID, err)
	}
	return course, nil
}

// Courses returns internal course id -> course code for every membership
// created this calendar year whose course has a future end date. Any failure
// fails the whole discovery.
func (c *Client) Courses(ctx context.Context) (map[string]string, error) {
	start := time.Now()
	logger := log.WithContext(ctx, c.logger)

	memberships, err := c.Memberships(ctx)
	if err != nil {
		return nil, err
	}

	now := c.Now()
	var (
		mu    sync.Mutex
		units = make(map[string]string)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(courseLookupWidth)
	for _, m := range memberships {
		if m.Created.In(now.Location()).Year() != now.Year() {
			continue
		}
		g.Go(func() error {
			course, err := c.Course(gctx, m.CourseID)
			if err != nil {
				return err
			}
			if !course.Current(now) {
				logger.Debug().
					Str(log.FieldCourseID, course.ID).
					Str(log.FieldUnit, course.CourseID).
					Msg("skipping course without a future end date")
				return nil
			}
			mu.Lock()
			units[course.ID] = course.CourseID
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	metrics.SetCoursesDiscovered(len(units))
	logger.Debug().
		Int(log.FieldCount, len(units)).
		Int64(log.FieldDuration, time.Since(start).Milliseconds()).
		Str(log.FieldEvent, "portal.courses").
		Msg("loaded units")
	return units, nil
}
