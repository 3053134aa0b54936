// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package relay performs the per-course handoff from the portal into the
// lecture-capture service: launch form, blind form re-post, two nested frames.
package relay

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/ManuGH/echodl/internal/log"
	"github.com/ManuGH/echodl/internal/platform/httpx"
	"github.com/ManuGH/echodl/internal/session"
	"github.com/rs/zerolog"
)

// launchPath is the portal's LTI tool launch for the lecture-capture link.
const launchPath = "/webapps/osc-BasicLTI-BBLEARN/window.jsp"

// Relay resolves lecture-capture sections for courses of one session.
type Relay struct {
	sess   *session.Session
	logger zerolog.Logger
}

func New(sess *session.Session) *Relay {
	return &Relay{sess: sess, logger: log.WithComponent("relay")}
}

// LaunchURL is the tool launch page for courseID.
func (r *Relay) LaunchURL(courseID string) string {
	q := url.Values{}
	q.Set("course_id", courseID)
	q.Set("id", "lectur")
	return r.sess.Resolve(launchPath) + "?" + q.Encode()
}

// Resolve runs the four relay stages for courseID using the session's cookies.
// The caller should pass a forked session when courses run concurrently.
func (r *Relay) Resolve(ctx context.Context, courseID string) (Section, error) {
	logger := log.WithContext(ctx, r.logger).With().Str(log.FieldCourseID, courseID).Logger()
	client := r.sess.Client()

	// 1. Launch page -> relay form.
	launch := r.LaunchURL(courseID)
	logger.Debug().Str(log.FieldStage, "launch").Str(log.FieldURL, launch).Msg("getting launch page")
	resp, body, err := httpx.Get(ctx, client, launch)
	if err != nil {
		return Section{}, fmt.Errorf("launch page: %w", err)
	}
	form, err := ParseLaunchForm(bytes.NewReader(body), resp.Request.URL)
	if err != nil {
		return Section{}, err
	}
	base := form.Origin()

	// 2. Re-post the form as-is.
	logger.Debug().Str(log.FieldStage, "relay").Str(log.FieldURL, form.Action.Redacted()).Int("fields", len(form.Fields)).Msg("posting relay form")
	resp, body, err = httpx.PostForm(ctx, client, form.Action.String(), form.Values())
	if err != nil {
		return Section{}, fmt.Errorf("relay post: %w", err)
	}

	// 3. Outer frame -> course page -> section frame.
	outer, err := ParseFrameSource(bytes.NewReader(body))
	if err != nil {
		return Section{}, fmt.Errorf("relay response: %w", err)
	}
	coursePage, err := resolve(resp.Request.URL, outer)
	if err != nil {
		return Section{}, fmt.Errorf("course frame %q: %w", outer, err)
	}
	logger.Debug().Str(log.FieldStage, "course_frame").Str(log.FieldURL, coursePage.Redacted()).Msg("getting course page")
	_, body, err = httpx.Get(ctx, client, coursePage.String())
	if err != nil {
		return Section{}, fmt.Errorf("course page: %w", err)
	}
	inner, err := ParseFrameSource(bytes.NewReader(body))
	if err != nil {
		return Section{}, fmt.Errorf("course page: %w", err)
	}
	section, err := SectionFromFrame(inner, base)
	if err != nil {
		return Section{}, err
	}

	// 4. Open the section frame so the service binds the session to it.
	logger.Debug().Str(log.FieldStage, "section_frame").Str(log.FieldSectionID, section.ID).Msg("finalizing section session")
	if _, _, err := httpx.Get(ctx, client, section.Frame.String()); err != nil {
		return Section{}, fmt.Errorf("section frame: %w", err)
	}
	return section, nil
}
