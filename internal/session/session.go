// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session holds the authenticated cookie state shared by the portal
// client, the relay and the lecture-capture client for one run.
package session

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/ManuGH/echodl/internal/platform/httpx"
	"golang.org/x/net/publicsuffix"
)

// Session is the cookie context obtained from a portal login. It is never
// persisted and is rebuilt on every run.
type Session struct {
	Username string
	Portal   *url.URL

	jar    *cookiejar.Jar
	client *http.Client
}

// New creates an unauthenticated session for portalURL. base supplies the
// transport; its jar is replaced by the session's own.
func New(username, portalURL string, base *http.Client) (*Session, error) {
	u, err := url.Parse(portalURL)
	if err != nil {
		return nil, fmt.Errorf("parse portal url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("portal url %q must be absolute", portalURL)
	}
	jar, err := newJar()
	if err != nil {
		return nil, err
	}
	return &Session{
		Username: username,
		Portal:   u,
		jar:      jar,
		client:   httpx.WithJar(base, jar),
	}, nil
}

func newJar() (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return jar, nil
}

// Client returns the HTTP client bound to the session jar.
func (s *Session) Client() *http.Client { return s.client }

// Jar exposes the underlying cookie jar.
func (s *Session) Jar() http.CookieJar { return s.jar }

// Cookies returns the cookies the jar would send to the portal.
func (s *Session) Cookies() []*http.Cookie { return s.jar.Cookies(s.Portal) }

// Authenticated reports whether any portal cookie is present.
func (s *Session) Authenticated() bool { return len(s.Cookies()) > 0 }

// Fork returns a session with a fresh jar seeded only with the portal
// cookies. Each course relay runs on a fork so the lecture-capture cookies of
// one course never leak into a sibling's handoff.
func (s *Session) Fork() (*Session, error) {
	jar, err := newJar()
	if err != nil {
		return nil, err
	}
	jar.SetCookies(s.Portal, s.jar.Cookies(s.Portal))
	return &Session{
		Username: s.Username,
		Portal:   s.Portal,
		jar:      jar,
		client:   httpx.WithJar(s.client, jar),
	}, nil
}

// Resolve resolves ref against the portal root.
func (s *Session) Resolve(ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return s.Portal.ResolveReference(r).String()
}
